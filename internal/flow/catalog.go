// Package flow implements the scripted conversation engine that drives the
// MachinePilot onboarding demo: an event-keyed step catalog, a per-session
// engine with persisted snapshots, a transcript projector and a cancellable
// auto-advance runner.
package flow

import (
	"fmt"

	"github.com/machinepilot/machinepilot/internal/models"
)

// MessageFunc renders a step's message from the flow context. Must be pure:
// side effects belong exclusively in actions.
type MessageFunc func(fc *models.FlowContext) string

// TargetFunc resolves a conditional transition target from the flow context.
// Must be pure and deterministic for a given context.
type TargetFunc func(fc *models.FlowContext) models.StepID

// Text returns a MessageFunc for a literal message.
func Text(s string) MessageFunc {
	return func(*models.FlowContext) string { return s }
}

// Transition is the rule mapping a step plus a triggering event to an
// optional action and an optional next step.
type Transition struct {
	// To is the static target step. Ignored when TargetFn is set. An empty
	// target (with nil TargetFn) means "run the action but stay on this step".
	To models.StepID
	// TargetFn resolves the target from the context, for branching paths.
	TargetFn TargetFunc
	// Action is the registry name of the side effect to run before the target
	// is committed. Empty means no action.
	Action string
}

// resolve returns the target step id for the current context; empty means no
// step change.
func (t Transition) resolve(fc *models.FlowContext) models.StepID {
	if t.TargetFn != nil {
		return t.TargetFn(fc)
	}
	return t.To
}

// Step is one immutable node of the scripted conversation. Every step is
// expressed uniformly as an event-keyed transition table; unconditional
// auto-advance uses the single implicit models.EventContinue event.
type Step struct {
	ID      models.StepID
	Actor   models.Actor
	Message MessageFunc
	// Widget is an opaque UI descriptor; the engine treats it as inert payload.
	Widget *models.Widget
	// AwaitInput halts auto-advance until an external event arrives.
	AwaitInput  bool
	Transitions map[models.EventType]Transition
}

// Catalog is the static, validated step table for one flow.
type Catalog struct {
	steps   map[models.StepID]Step
	initial models.StepID
}

// NewCatalog builds a catalog and validates it: step ids must be unique, the
// initial step must exist, and every static transition target must refer to a
// defined step. Function-valued targets are checked at transition time.
func NewCatalog(initial models.StepID, steps []Step) (*Catalog, error) {
	byID := make(map[models.StepID]Step, len(steps))
	for _, s := range steps {
		if s.ID == "" {
			return nil, fmt.Errorf("step with empty id")
		}
		if _, dup := byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate step id %q", s.ID)
		}
		byID[s.ID] = s
	}
	if _, ok := byID[initial]; !ok {
		return nil, fmt.Errorf("initial step %q not defined", initial)
	}
	for _, s := range byID {
		for ev, tr := range s.Transitions {
			if tr.TargetFn != nil || tr.To == "" {
				continue
			}
			if _, ok := byID[tr.To]; !ok {
				return nil, fmt.Errorf("step %q transition %q targets unknown step %q", s.ID, ev, tr.To)
			}
		}
	}
	return &Catalog{steps: byID, initial: initial}, nil
}

// Initial returns the catalog's declared initial step id.
func (c *Catalog) Initial() models.StepID {
	return c.initial
}

// Step looks up a step by id.
func (c *Catalog) Step(id models.StepID) (Step, bool) {
	s, ok := c.steps[id]
	return s, ok
}

// Has reports whether the catalog defines the step id.
func (c *Catalog) Has(id models.StepID) bool {
	_, ok := c.steps[id]
	return ok
}

// Len returns the number of steps.
func (c *Catalog) Len() int {
	return len(c.steps)
}
