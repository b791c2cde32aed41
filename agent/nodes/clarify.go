package routernode

import (
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
)

const conflictTool = "resolve_memory_conflicts"

// Conflict is one stored preference contradicted by the new message.
type Conflict struct {
	Preference struct {
		Text string `json:"text"`
	} `json:"preference"`
	Existing string `json:"conflict"`
	Strategy string `json:"strategy,omitempty"`
}

type conflictReport struct {
	Conflicts []Conflict `json:"conflicts"`
}

// PendingConflicts collects conflicts the conflict resolver asked the user
// to confirm. Unreadable results are ignored.
func PendingConflicts(results []contractx.ToolResult) []Conflict {
	var out []Conflict
	for _, res := range results {
		if res.Tool != conflictTool || res.Error != "" {
			continue
		}
		var report conflictReport
		if err := json.Unmarshal([]byte(strings.TrimSpace(res.Content)), &report); err != nil {
			continue
		}
		out = append(out, report.Conflicts...)
	}
	return out
}

func FormatConflictMessage(conflicts []Conflict) string {
	if len(conflicts) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("I noticed something about your preferences that I'd like to clarify:\n\n")
	for i, c := range conflicts {
		fmt.Fprintf(&b, "%d. You previously mentioned: \"%s\"\n", i+1, c.Existing)
		fmt.Fprintf(&b, "   But now you said: \"%s\"\n", c.Preference.Text)
		if c.Strategy != "" {
			fmt.Fprintf(&b, "   (%s)\n", c.Strategy)
		}
		b.WriteString("\n")
	}
	b.WriteString("Have your preferences changed, or is this specific to a particular trip? Let me know so I can update your profile correctly!")
	return b.String()
}
