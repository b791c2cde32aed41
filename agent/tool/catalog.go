package tool

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/tanpawarit/Chative-Travel-Router/agent/routing"
	mcpx "github.com/tanpawarit/Chative-Travel-Router/pkg/mcp"
)

var domainPrefixes = []string{
	"discover_places",
	"recall_memories",
	"transfer_to_orchestrator",
	"transfer_to_itinerary_generator",
}

// WorkerPrefixes decides which discovered tools each worker may call. A tool
// belongs to a worker when its name starts with one of the prefixes.
var WorkerPrefixes = map[routing.State][]string{
	routing.StateEntry: {
		"create_session",
		"get_session_context",
		"append_turn",
		"extract_preferences_from_message",
		"resolve_memory_conflicts",
		"store_resolved_preferences",
		"transfer_to_",
	},
	routing.StateHotel:    domainPrefixes,
	routing.StateActivity: domainPrefixes,
	routing.StateDining:   domainPrefixes,
	routing.StateSynthesizer: {
		"create_new_trip",
		"update_trip",
		"get_trip_details",
		"transfer_to_orchestrator",
	},
	routing.StateCompactor: {
		"get_summarizable_span",
		"mark_span_summarized",
		"get_session_context",
		"get_all_user_summaries",
		"transfer_to_orchestrator",
	},
}

func MatchesPrefix(name string, prefixes []string) bool {
	return slices.ContainsFunc(prefixes, func(p string) bool {
		return strings.HasPrefix(name, p)
	})
}

// Catalog is the per-worker tool partition, built once from discovery.
type Catalog struct {
	infos   map[routing.State][]*schema.ToolInfo
	allowed map[routing.State]map[string]struct{}
}

func NewCatalog(defs []mcpx.ToolDefinition) (*Catalog, error) {
	c := &Catalog{
		infos:   make(map[routing.State][]*schema.ToolInfo, len(WorkerPrefixes)),
		allowed: make(map[routing.State]map[string]struct{}, len(WorkerPrefixes)),
	}
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			return nil, errors.New("tool definition without a name")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate tool definition %q", name)
		}
		seen[name] = struct{}{}

		info := &schema.ToolInfo{
			Name:        name,
			Desc:        strings.TrimSpace(def.Description),
			ParamsOneOf: toParamsOneOf(def.InputSchema),
		}
		for _, state := range routing.WorkerStates() {
			if !MatchesPrefix(name, WorkerPrefixes[state]) {
				continue
			}
			c.infos[state] = append(c.infos[state], info)
			if c.allowed[state] == nil {
				c.allowed[state] = make(map[string]struct{}, 8)
			}
			c.allowed[state][name] = struct{}{}
		}
	}
	return c, nil
}

func (c *Catalog) ToolsFor(state routing.State) []*schema.ToolInfo {
	if c == nil {
		return nil
	}
	return c.infos[state]
}

func (c *Catalog) Allowed(state routing.State, tool string) bool {
	if c == nil {
		return false
	}
	_, ok := c.allowed[state][tool]
	return ok
}

// Distribution lists tool names per worker, for startup logging.
func (c *Catalog) Distribution() map[string][]string {
	out := make(map[string][]string, len(c.infos))
	for state, infos := range c.infos {
		names := make([]string, 0, len(infos))
		for _, info := range infos {
			names = append(names, info.Name)
		}
		sort.Strings(names)
		out[state.String()] = names
	}
	return out
}

func toParamsOneOf(inputSchema map[string]any) *schema.ParamsOneOf {
	props, _ := inputSchema["properties"].(map[string]any)
	if len(props) == 0 {
		return nil
	}
	return schema.NewParamsOneOfByParams(toParams(props, requiredSet(inputSchema)))
}

func toParams(props map[string]any, required map[string]bool) map[string]*schema.ParameterInfo {
	params := make(map[string]*schema.ParameterInfo, len(props))
	for name, raw := range props {
		prop, _ := raw.(map[string]any)
		params[name] = toParam(prop, required[name])
	}
	return params
}

func toParam(prop map[string]any, required bool) *schema.ParameterInfo {
	p := &schema.ParameterInfo{
		Type:     dataType(prop["type"]),
		Required: required,
	}
	p.Desc, _ = prop["description"].(string)
	if enum, ok := prop["enum"].([]any); ok {
		for _, v := range enum {
			if s, ok := v.(string); ok {
				p.Enum = append(p.Enum, s)
			}
		}
	}
	switch p.Type {
	case schema.Array:
		if items, ok := prop["items"].(map[string]any); ok {
			p.ElemInfo = toParam(items, false)
		}
	case schema.Object:
		if sub, ok := prop["properties"].(map[string]any); ok && len(sub) > 0 {
			p.SubParams = toParams(sub, requiredSet(prop))
		}
	}
	return p
}

func requiredSet(prop map[string]any) map[string]bool {
	out := map[string]bool{}
	list, _ := prop["required"].([]any)
	for _, v := range list {
		if s, ok := v.(string); ok {
			out[s] = true
		}
	}
	return out
}

// dataType maps a JSON Schema type, which may be a list such as
// ["string","null"], onto the model tool schema.
func dataType(raw any) schema.DataType {
	var name string
	switch v := raw.(type) {
	case string:
		name = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "null" {
				name = s
				break
			}
		}
	}
	switch name {
	case "integer":
		return schema.Integer
	case "number":
		return schema.Number
	case "boolean":
		return schema.Boolean
	case "array":
		return schema.Array
	case "object":
		return schema.Object
	default:
		return schema.String
	}
}
