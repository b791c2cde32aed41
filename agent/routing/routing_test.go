package routing

import (
	"errors"
	"testing"

	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
)

func transfer(tool, content string) contractx.ToolResult {
	return contractx.ToolResult{Tool: tool, Content: content}
}

func TestParseStateAliases(t *testing.T) {
	t.Parallel()

	cases := map[string]State{
		"entry":               StateEntry,
		"orchestrator":        StateEntry,
		"Hotel_Agent":         StateHotel,
		"activity":            StateActivity,
		"dining_agent":        StateDining,
		"itinerary_generator": StateSynthesizer,
		"summarizer":          StateCompactor,
		"human":               StateAwaitInput,
		" await_input ":       StateAwaitInput,
	}
	for name, want := range cases {
		got, ok := ParseState(name)
		if !ok || got != want {
			t.Fatalf("ParseState(%q) = %s,%v want %s", name, got, ok, want)
		}
	}

	for _, name := range []string{"", "unknown", "flights"} {
		if _, ok := ParseState(name); ok {
			t.Fatalf("ParseState(%q) ok = true, want false", name)
		}
	}
}

func TestStateStringRoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range States() {
		got, ok := ParseState(s.String())
		if !ok || got != s {
			t.Fatalf("ParseState(%s.String()) = %s,%v", s, got, ok)
		}
	}
	if State(200).String() != "invalid" {
		t.Fatalf("out of range state should render as invalid")
	}
}

func TestDefaultTableValidates(t *testing.T) {
	t.Parallel()

	if err := DefaultTable().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestTableValidateRejectsBrokenTables(t *testing.T) {
	t.Parallel()

	missing := DefaultTable()
	delete(missing, StateDining)
	if err := missing.Validate(); !errors.Is(err, ErrInvalidTable) {
		t.Fatalf("missing entry: error = %v", err)
	}

	unreachable := DefaultTable()
	unreachable[StateEntry] = []State{StateHotel, StateAwaitInput, StateEntry}
	if err := unreachable.Validate(); !errors.Is(err, ErrInvalidTable) {
		t.Fatalf("unreachable: error = %v", err)
	}

	nonTerminal := DefaultTable()
	nonTerminal[StateAwaitInput] = []State{StateEntry}
	if err := nonTerminal.Validate(); !errors.Is(err, ErrInvalidTable) {
		t.Fatalf("non-terminal await: error = %v", err)
	}

	noReturn := DefaultTable()
	noReturn[StateSynthesizer] = []State{StateSynthesizer}
	if err := noReturn.Validate(); !errors.Is(err, ErrInvalidTable) {
		t.Fatalf("no return to entry: error = %v", err)
	}
}

func TestTableClamp(t *testing.T) {
	t.Parallel()

	table := DefaultTable()
	if got, clamped := table.Clamp(StateHotel, StateSynthesizer); got != StateSynthesizer || clamped {
		t.Fatalf("hotel->synthesizer = %s,%v", got, clamped)
	}
	if got, clamped := table.Clamp(StateHotel, StateDining); got != StateEntry || !clamped {
		t.Fatalf("hotel->dining = %s,%v want entry,true", got, clamped)
	}
	if got, clamped := table.Clamp(StateSynthesizer, StateHotel); got != StateEntry || !clamped {
		t.Fatalf("synthesizer->hotel = %s,%v want entry,true", got, clamped)
	}
}

func TestCompactionCheckDue(t *testing.T) {
	t.Parallel()

	for c := 0; c <= 45; c++ {
		got := CompactionCheck{ActiveCount: c, Head: int64(c)}.Due()
		want := c >= 10 && c%10 == 0
		if got != want {
			t.Fatalf("Due() with count=%d = %v, want %v", c, got, want)
		}
	}
}

func TestCompactionCheckFiresOncePerHead(t *testing.T) {
	t.Parallel()

	check := CompactionCheck{ActiveCount: 20, Head: 31}
	if !check.Due() {
		t.Fatal("first evaluation should fire")
	}
	check.LastFiredHead = check.Head
	if check.Due() {
		t.Fatal("second evaluation at the same head should not fire")
	}
}

func TestResolveSignalBeatsPersisted(t *testing.T) {
	t.Parallel()

	d := Resolve(Input{
		Current:     StateEntry,
		ToolResults: []contractx.ToolResult{transfer("transfer_to_dining", `{"goto":"dining_agent"}`)},
		Persisted:   "hotel",
	})
	if d.Next != StateDining || d.Source != SourceSignal || d.Signal != "dining_agent" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestResolveCompactionBeatsSignalAndPersisted(t *testing.T) {
	t.Parallel()

	d := Resolve(Input{
		Current:     StateEntry,
		ToolResults: []contractx.ToolResult{transfer("transfer_to_dining", `{"goto":"dining"}`)},
		Persisted:   "hotel",
		Compaction:  CompactionCheck{ActiveCount: 20, Head: 20},
	})
	if d.Next != StateCompactor || d.Source != SourceCompaction {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if d.Deferred != StateDining {
		t.Fatalf("Deferred = %s, want dining", d.Deferred)
	}
}

func TestResolveNewestSignalWins(t *testing.T) {
	t.Parallel()

	d := Resolve(Input{
		Current: StateEntry,
		ToolResults: []contractx.ToolResult{
			transfer("transfer_to_hotel", `{"goto":"hotel"}`),
			transfer("discover_places", `[{"name":"Cafe"}]`),
			transfer("transfer_to_activity", `{"goto":"activity_agent"}`),
		},
	})
	if d.Next != StateActivity {
		t.Fatalf("Next = %s, want activity", d.Next)
	}
}

func TestResolveMalformedFallsThroughToPersisted(t *testing.T) {
	t.Parallel()

	d := Resolve(Input{
		Current:     StateEntry,
		ToolResults: []contractx.ToolResult{transfer("transfer_to_hotel", `{"goto": 17}`)},
		Persisted:   "activity",
	})
	if d.Next != StateActivity || d.Source != SourcePersisted {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if len(d.Malformed) != 1 || !errors.Is(d.Malformed[0], ErrMalformedSignal) {
		t.Fatalf("Malformed = %v", d.Malformed)
	}
}

func TestResolveUnknownSignalTarget(t *testing.T) {
	t.Parallel()

	d := Resolve(Input{
		Current:     StateHotel,
		ToolResults: []contractx.ToolResult{transfer("transfer_to_flights", `{"goto":"flights_agent"}`)},
		Persisted:   "hotel",
	})
	if d.Next != StateEntry || d.Source != SourceSignal {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestResolveDefaults(t *testing.T) {
	t.Parallel()

	for _, persisted := range []string{"", "unknown", "nonsense", "summarizer", "human"} {
		d := Resolve(Input{Current: StateEntry, Persisted: persisted})
		if d.Next != StateEntry || d.Source != SourceDefault {
			t.Fatalf("persisted=%q: unexpected decision %+v", persisted, d)
		}
	}
}

func TestResolveIgnoresPlainToolOutput(t *testing.T) {
	t.Parallel()

	d := Resolve(Input{
		Current:     StateHotel,
		ToolResults: []contractx.ToolResult{transfer("discover_places", "not json at all")},
		Persisted:   "hotel",
	})
	if d.Next != StateHotel || len(d.Malformed) != 0 {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestHasSignal(t *testing.T) {
	t.Parallel()

	if HasSignal([]contractx.ToolResult{transfer("recall_memories", `{"items":[]}`)}) {
		t.Fatal("HasSignal() = true for result without goto")
	}
	if !HasSignal([]contractx.ToolResult{transfer("transfer_to_orchestrator", `{"goto":"orchestrator"}`)}) {
		t.Fatal("HasSignal() = false for transfer result")
	}
}
