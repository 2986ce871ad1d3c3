package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"agent-tools/pkg/apperr"
	"agent-tools/pkg/metrics"
	"agent-tools/pkg/types"
)

// Registry holds tools by name
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds tools. Names must be unique.
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range tools {
		if t.Name == "" || t.Execute == nil {
			return fmt.Errorf("tool %q is incomplete", t.Name)
		}
		if _, ok := r.tools[t.Name]; ok {
			return fmt.Errorf("tool %q already registered", t.Name)
		}
		r.tools[t.Name] = t
	}
	return nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns tools sorted by plugin, then name
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Plugin != out[j].Plugin {
			return out[i].Plugin < out[j].Plugin
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Allowed returns a registry restricted to the named tools or plugins. An
// empty list allows everything.
func (r *Registry) Allowed(names []string) *Registry {
	if len(names) == 0 {
		return r
	}
	allow := make(map[string]bool, len(names))
	for _, n := range names {
		allow[strings.ToLower(strings.TrimSpace(n))] = true
	}

	out := NewRegistry()
	for _, t := range r.List() {
		if allow[strings.ToLower(t.Name)] || allow[strings.ToLower(t.Plugin)] {
			out.tools[t.Name] = t
		}
	}
	return out
}

// Invoke runs a tool and always returns an envelope
func (r *Registry) Invoke(ctx context.Context, name string, params json.RawMessage) types.Result {
	t, ok := r.Get(name)
	if !ok {
		res := types.Failure(apperr.Newf(apperr.KindValidation, "tools", "unknown tool %q", name))
		metrics.ToolInvocations.WithLabelValues("unknown", string(res.Status)).Inc()
		return res
	}

	start := time.Now()
	res := envelope(t.Execute(ctx, params))
	metrics.ToolInvocations.WithLabelValues(t.Name, string(res.Status)).Inc()

	log := zap.L().With(
		zap.String("tool", t.Name),
		zap.String("status", string(res.Status)),
		zap.Duration("elapsed", time.Since(start)))
	if res.Error != nil {
		log.Warn("Tool call failed", zap.String("kind", string(res.Error.Kind)), zap.String("error", res.Error.Message))
	} else {
		log.Info("Tool call finished")
	}
	return res
}
