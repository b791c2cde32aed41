package prompt

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
	"github.com/tanpawarit/Chative-Travel-Router/agent/routing"
)

//go:embed template/*.prompty
var templates embed.FS

const frontMatterDelim = "---"

// fileNames keeps the historical prompt file names.
var fileNames = map[routing.State]string{
	routing.StateEntry:       "orchestrator",
	routing.StateHotel:       "hotel_agent",
	routing.StateActivity:    "activity_agent",
	routing.StateDining:      "dining_agent",
	routing.StateSynthesizer: "itinerary_generator",
	routing.StateCompactor:   "summarizer",
}

// Prompt is a parsed .prompty file: YAML front matter plus a system body.
type Prompt struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Model       map[string]any `yaml:"model,omitempty"`
	Body        string         `yaml:"-"`
}

// PromptSet holds the instruction prompt of every worker.
type PromptSet map[routing.State]Prompt

// LoadPromptSet parses every embedded worker prompt.
func LoadPromptSet() (PromptSet, error) {
	set := make(PromptSet, len(fileNames))
	for state, name := range fileNames {
		raw, err := templates.ReadFile("template/" + name + ".prompty")
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", contractx.ErrPromptMissing, name, err)
		}
		p, err := Parse(string(raw))
		if err != nil {
			return nil, fmt.Errorf("parse prompt %s: %w", name, err)
		}
		set[state] = p
	}
	return set, nil
}

// Instruction returns the system text for a worker, falling back to a
// generic line when the body is empty.
func (s PromptSet) Instruction(state routing.State) string {
	if p, ok := s[state]; ok && strings.TrimSpace(p.Body) != "" {
		return p.Body
	}
	name := fileNames[state]
	if name == "" {
		name = state.String()
	}
	return fmt.Sprintf("You are a %s agent in a travel planning system.", name)
}

// Parse splits front matter from the body. A leading "system:" role marker
// in the body is dropped.
func Parse(raw string) (Prompt, error) {
	text := strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	var p Prompt

	if rest, ok := strings.CutPrefix(text, frontMatterDelim+"\n"); ok {
		header, body, found := strings.Cut(rest, "\n"+frontMatterDelim)
		if !found {
			return Prompt{}, fmt.Errorf("%w: unterminated front matter", contractx.ErrValidation)
		}
		if err := yaml.Unmarshal([]byte(header), &p); err != nil {
			return Prompt{}, fmt.Errorf("%w: front matter: %v", contractx.ErrValidation, err)
		}
		text = strings.TrimSpace(body)
	}

	if rest, ok := strings.CutPrefix(text, "system:"); ok {
		text = strings.TrimSpace(rest)
	}
	p.Body = text
	return p, nil
}
