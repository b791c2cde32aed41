package routing

import (
	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
)

type Source string

const (
	SourceCompaction Source = "compaction"
	SourceSignal     Source = "signal"
	SourcePersisted  Source = "persisted"
	SourceDefault    Source = "default"
)

type Input struct {
	Current     State
	ToolResults []contractx.ToolResult
	Persisted   string
	Compaction  CompactionCheck
}

type Decision struct {
	Next   State
	Source Source
	// Signal is the raw worker name read from a transfer signal, if any.
	Signal string
	// Deferred is where control would have gone without the compaction
	// override. Equal to Next otherwise.
	Deferred State
	// Malformed collects signals that could not be read.
	Malformed []error
}

// Resolve picks the state that runs after in.Current. Precedence: a due
// compaction, then the newest transfer signal, then the persisted active
// worker, then Entry. A signal naming an unknown worker resolves to Entry.
// Resolve does not consult the transition table; see Table.Clamp.
func Resolve(in Input) Decision {
	d := resolveWithoutCompaction(in)
	d.Deferred = d.Next
	if in.Compaction.Due() {
		d.Next = StateCompactor
		d.Source = SourceCompaction
	}
	return d
}

func resolveWithoutCompaction(in Input) Decision {
	var d Decision
	for i := len(in.ToolResults) - 1; i >= 0; i-- {
		name, ok, err := ExtractSignal(in.ToolResults[i])
		if err != nil {
			d.Malformed = append(d.Malformed, err)
			continue
		}
		if !ok {
			continue
		}
		d.Signal = name
		d.Source = SourceSignal
		if s, known := ParseState(name); known && s.IsWorker() {
			d.Next = s
		} else {
			d.Next = StateEntry
		}
		return d
	}

	if s, known := ParseState(in.Persisted); known && s.Resumable() {
		d.Next = s
		d.Source = SourcePersisted
		return d
	}

	d.Next = StateEntry
	d.Source = SourceDefault
	return d
}
