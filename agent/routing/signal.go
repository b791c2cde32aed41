package routing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
)

const (
	signalField        = "goto"
	transferToolPrefix = "transfer_to_"
)

var ErrMalformedSignal = errors.New("malformed transfer signal")

// ExtractSignal returns the worker named by a tool result's transfer field.
// ok is false when the result carries no signal; err is set when it tried
// to and could not be read.
func ExtractSignal(res contractx.ToolResult) (target string, ok bool, err error) {
	content := strings.TrimSpace(res.Content)
	isTransfer := strings.HasPrefix(res.Tool, transferToolPrefix)
	if content == "" {
		if isTransfer {
			return "", false, fmt.Errorf("%w: tool=%s returned empty content", ErrMalformedSignal, res.Tool)
		}
		return "", false, nil
	}

	var fields map[string]json.RawMessage
	if jerr := json.Unmarshal([]byte(content), &fields); jerr != nil {
		if isTransfer {
			return "", false, fmt.Errorf("%w: tool=%s: %v", ErrMalformedSignal, res.Tool, jerr)
		}
		return "", false, nil
	}

	raw, present := fields[signalField]
	if !present {
		if isTransfer {
			return "", false, fmt.Errorf("%w: tool=%s has no %q field", ErrMalformedSignal, res.Tool, signalField)
		}
		return "", false, nil
	}

	var name string
	if jerr := json.Unmarshal(raw, &name); jerr != nil {
		return "", false, fmt.Errorf("%w: tool=%s %q is not a string", ErrMalformedSignal, res.Tool, signalField)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, fmt.Errorf("%w: tool=%s %q is empty", ErrMalformedSignal, res.Tool, signalField)
	}
	return name, true, nil
}

// HasSignal reports whether any result carries a readable transfer signal.
func HasSignal(results []contractx.ToolResult) bool {
	for _, res := range results {
		if _, ok, _ := ExtractSignal(res); ok {
			return true
		}
	}
	return false
}
