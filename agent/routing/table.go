package routing

import (
	"errors"
	"fmt"
	"slices"
)

var ErrInvalidTable = errors.New("invalid transition table")

// Table lists, per state, the states it may hand control to.
type Table map[State][]State

func DefaultTable() Table {
	domainNext := func(self State) []State {
		return []State{StateSynthesizer, StateEntry, self}
	}
	return Table{
		StateEntry: {
			StateHotel, StateActivity, StateDining,
			StateSynthesizer, StateCompactor, StateAwaitInput, StateEntry,
		},
		StateHotel:       domainNext(StateHotel),
		StateActivity:    domainNext(StateActivity),
		StateDining:      domainNext(StateDining),
		StateSynthesizer: {StateEntry, StateSynthesizer},
		StateCompactor:   {StateEntry, StateCompactor},
		StateAwaitInput:  nil,
	}
}

func (t Table) Allows(from, to State) bool {
	return slices.Contains(t[from], to)
}

// Clamp returns to when the table allows it and StateEntry otherwise.
func (t Table) Clamp(from, to State) (State, bool) {
	if t.Allows(from, to) {
		return to, false
	}
	return StateEntry, true
}

// Validate checks that every state is present, every target is a known
// state, AwaitInput is terminal and every worker is reachable from Entry.
func (t Table) Validate() error {
	for _, s := range States() {
		targets, ok := t[s]
		if !ok {
			return fmt.Errorf("%w: state %s has no entry", ErrInvalidTable, s)
		}
		for _, to := range targets {
			if !to.Valid() {
				return fmt.Errorf("%w: %s lists unknown target %d", ErrInvalidTable, s, to)
			}
		}
		if s.IsWorker() && !slices.Contains(targets, StateEntry) && s != StateEntry {
			return fmt.Errorf("%w: %s cannot return to %s", ErrInvalidTable, s, StateEntry)
		}
	}
	if len(t[StateAwaitInput]) != 0 {
		return fmt.Errorf("%w: %s must be terminal", ErrInvalidTable, StateAwaitInput)
	}
	for s := range t {
		if !s.Valid() {
			return fmt.Errorf("%w: unknown state %d", ErrInvalidTable, s)
		}
	}

	reached := map[State]bool{StateEntry: true}
	queue := []State{StateEntry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, to := range t[cur] {
			if !reached[to] {
				reached[to] = true
				queue = append(queue, to)
			}
		}
	}
	for _, s := range States() {
		if !reached[s] {
			return fmt.Errorf("%w: %s is unreachable from %s", ErrInvalidTable, s, StateEntry)
		}
	}
	return nil
}
