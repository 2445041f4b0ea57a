package registry

import (
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/golovatskygroup/mcp-atlas/pkg/mcp"
)

// Registry is the process-wide tool catalog. It is built once at startup and
// never changes, so lookups need no locking. List always returns the tools
// in declaration order.
type Registry struct {
	tools map[string]mcp.Tool
	order []string
}

// New builds a registry from the given tools, preserving their order.
// Duplicate names keep the first declaration.
func New(tools []mcp.Tool) *Registry {
	r := &Registry{tools: make(map[string]mcp.Tool, len(tools))}
	for _, t := range tools {
		if _, ok := r.tools[t.Name]; ok {
			continue
		}
		r.tools[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return r
}

// List returns the full catalog in declaration order.
func (r *Registry) List() []mcp.Tool {
	out := make([]mcp.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (mcp.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the tool names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Suggest returns the closest catalog name to the given (unknown) name, or
// "" when nothing is plausibly close.
func (r *Registry) Suggest(name string) string {
	ranks := fuzzy.RankFindFold(name, r.order)
	if len(ranks) == 0 {
		return ""
	}
	best := ranks[0]
	for _, rank := range ranks[1:] {
		if rank.Distance < best.Distance {
			best = rank
		}
	}
	return best.Target
}
