package flow

import (
	"context"
	"log/slog"

	"github.com/machinepilot/machinepilot/internal/models"
)

// ActionResult reports the business outcome of an action. OK=false is a hard
// stop: the engine does not advance past the step and discards the action's
// context mutations. Reason carries a machine-readable failure cause
// ("expired", "invalid", ...) so the UI can react without the context being
// touched.
type ActionResult struct {
	OK     bool
	Reason string
}

// OK is the successful action result.
func OK() ActionResult {
	return ActionResult{OK: true}
}

// Fail returns a failed action result with a reason.
func Fail(reason string) ActionResult {
	return ActionResult{Reason: reason}
}

// Action is a named side-effecting procedure invoked during a transition.
// It may mutate the flow context and perform external calls. A returned error
// is a programming/transport failure and aborts the send without committing
// any context mutation. Actions must tolerate being re-run on the same step
// (self-transitions permit retries).
type Action func(ctx context.Context, fc *models.FlowContext, ev models.Event) (ActionResult, error)

// Registry associates action names with implementations. Instance-scoped so
// each engine/test wires its own set; there is no global registry.
type Registry struct {
	actions map[string]Action
}

// NewRegistry creates an empty action registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Register associates a name with an action implementation.
func (r *Registry) Register(name string, a Action) {
	if _, dup := r.actions[name]; dup {
		slog.Warn("Registry.Register overwriting action", "name", name)
	}
	r.actions[name] = a
}

// Get retrieves the action for a name.
func (r *Registry) Get(name string) (Action, bool) {
	a, ok := r.actions[name]
	return a, ok
}
