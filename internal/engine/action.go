// ABOUTME: Action dispatch: explicit string→Handler registry populated at startup, no reflection.
// ABOUTME: Failures are isolated per action; a handler error or panic becomes a failed ActionResult.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler executes one action kind. Params come from the rule's action
// configuration; tc is the triggering context. Handlers own their timeout
// discipline — the engine imposes none.
type Handler func(ctx context.Context, params map[string]string, tc TriggerContext) error

// Registry maps action type names to handlers. The surrounding application
// registers its handlers once at process start; the engine ships none of its
// own side-effecting handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty action registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register associates h with the named action type, replacing any previous handler.
func (r *Registry) Register(actionType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[actionType] = h
}

// Has reports whether a handler is registered for actionType.
func (r *Registry) Has(actionType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[actionType]
	return ok
}

// Types returns the registered action type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Dispatch invokes the handler for a single action. Unregistered types and
// handler errors produce a failed ActionResult; a panicking handler is
// recovered at this boundary so one broken action cannot take down a firing.
func (r *Registry) Dispatch(ctx context.Context, a Action, tc TriggerContext) (res ActionResult) {
	res = ActionResult{Type: a.Type}
	if a.Type == "" {
		res.Message = "action has no type"
		return res
	}

	r.mu.RLock()
	h, ok := r.handlers[a.Type]
	r.mu.RUnlock()
	if !ok {
		res.Message = "unknown action type"
		return res
	}

	defer func() {
		if p := recover(); p != nil {
			res.Success = false
			res.Message = fmt.Sprintf("action handler panicked: %v", p)
		}
	}()

	if err := h(ctx, a.Params, tc); err != nil {
		res.Message = err.Error()
		return res
	}
	res.Success = true
	return res
}

// NoopHandler succeeds without side effects. Useful as a stand-in for action
// types whose real handler is not wired in a given deployment, and in tests.
func NoopHandler(context.Context, map[string]string, TriggerContext) error {
	return nil
}

// DryRunRegistry returns a registry covering the same action types as real,
// with every handler replaced by a recording no-op. Dry-run firings go through
// the identical dispatch path, so unknown-type detection behaves the same and
// no real side effect can be invoked.
func DryRunRegistry(real *Registry) *Registry {
	stub := NewRegistry()
	for _, t := range real.Types() {
		stub.Register(t, NoopHandler)
	}
	return stub
}
