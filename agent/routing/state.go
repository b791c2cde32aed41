// Package routing holds the closed set of router states, the transition
// table between them and the pure next-state resolution.
package routing

import "strings"

type State uint8

const (
	StateEntry State = iota
	StateHotel
	StateActivity
	StateDining
	StateSynthesizer
	StateCompactor
	StateAwaitInput

	stateCount
)

var stateNames = [stateCount]string{
	StateEntry:       "entry",
	StateHotel:       "hotel",
	StateActivity:    "activity",
	StateDining:      "dining",
	StateSynthesizer: "synthesizer",
	StateCompactor:   "compactor",
	StateAwaitInput:  "await_input",
}

// aliases maps names older sessions and tool backends still emit.
var aliases = map[string]State{
	"orchestrator":              StateEntry,
	"hotel_agent":               StateHotel,
	"activity_agent":            StateActivity,
	"dining_agent":              StateDining,
	"itinerary_generator":       StateSynthesizer,
	"itinerary_generator_agent": StateSynthesizer,
	"summarizer":                StateCompactor,
	"summarizer_agent":          StateCompactor,
	"human":                     StateAwaitInput,
}

func (s State) String() string {
	if s >= stateCount {
		return "invalid"
	}
	return stateNames[s]
}

func (s State) Valid() bool {
	return s < stateCount
}

// IsWorker reports whether the state runs a worker.
func (s State) IsWorker() bool {
	return s.Valid() && s != StateAwaitInput
}

func (s State) IsDomain() bool {
	return s == StateHotel || s == StateActivity || s == StateDining
}

// Resumable reports whether the state may be recorded as a session's
// active worker.
func (s State) Resumable() bool {
	return s == StateEntry || s.IsDomain() || s == StateSynthesizer
}

// ParseState accepts canonical names and legacy aliases. "unknown" and the
// empty string are not states.
func ParseState(name string) (State, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" || n == "unknown" {
		return StateEntry, false
	}
	for i, candidate := range stateNames {
		if candidate == n {
			return State(i), true
		}
	}
	if s, ok := aliases[n]; ok {
		return s, true
	}
	return StateEntry, false
}

// States lists every state in declaration order.
func States() []State {
	out := make([]State, 0, stateCount)
	for s := State(0); s < stateCount; s++ {
		out = append(out, s)
	}
	return out
}

// WorkerStates lists the states that run a worker.
func WorkerStates() []State {
	out := make([]State, 0, stateCount-1)
	for _, s := range States() {
		if s.IsWorker() {
			out = append(out, s)
		}
	}
	return out
}
