package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
	"github.com/tanpawarit/Chative-Travel-Router/agent/routing"
	openrouterx "github.com/tanpawarit/Chative-Travel-Router/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
	Preflight          bool          `envconfig:"PREFLIGHT" split_words:"true" default:"true"`

	// Overrides. Domain covers hotel, activity and dining.
	EntryModel             string  `envconfig:"ENTRY_MODEL" split_words:"true"`
	DomainModel            string  `envconfig:"DOMAIN_MODEL" split_words:"true"`
	SynthesizerModel       string  `envconfig:"SYNTHESIZER_MODEL" split_words:"true"`
	CompactorModel         string  `envconfig:"COMPACTOR_MODEL" split_words:"true"`
	EntryTemperature       float32 `envconfig:"ENTRY_TEMPERATURE" split_words:"true" default:"-1"`
	DomainTemperature      float32 `envconfig:"DOMAIN_TEMPERATURE" split_words:"true" default:"-1"`
	SynthesizerTemperature float32 `envconfig:"SYNTHESIZER_TEMPERATURE" split_words:"true" default:"-1"`
	CompactorTemperature   float32 `envconfig:"COMPACTOR_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

func (c Config) OpenRouterFor(state routing.State) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	override := func(m string, t float32) {
		if v := strings.TrimSpace(m); v != "" {
			modelName = v
		}
		if t >= 0 {
			temp = t
		}
	}

	switch {
	case state == routing.StateEntry:
		override(c.EntryModel, c.EntryTemperature)
	case state.IsDomain():
		override(c.DomainModel, c.DomainTemperature)
	case state == routing.StateSynthesizer:
		override(c.SynthesizerModel, c.SynthesizerTemperature)
	case state == routing.StateCompactor:
		override(c.CompactorModel, c.CompactorTemperature)
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}

// Models lists the model each worker state runs on, in state order.
func (c Config) Models() []string {
	states := routing.WorkerStates()
	out := make([]string, 0, len(states))
	for _, state := range states {
		out = append(out, c.OpenRouterFor(state).Model)
	}
	return out
}
