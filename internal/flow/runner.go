package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/machinepilot/machinepilot/internal/models"
)

// DefaultAutoAdvanceDelay is the pause before each automatic step, producing
// the illusion of the assistant "thinking". A UX constant, not a correctness
// requirement.
const DefaultAutoAdvanceDelay = 600 * time.Millisecond

// Runner drives auto-advance for one engine: steps that do not await input
// get the implicit continue event after a short delay, chaining until an
// input-waiting step is reached or no continue transition exists.
type Runner struct {
	engine *Engine
	delay  time.Duration
}

// NewRunner creates a runner. A non-positive delay falls back to the default.
func NewRunner(engine *Engine, delay time.Duration) *Runner {
	if delay <= 0 {
		delay = DefaultAutoAdvanceDelay
	}
	return &Runner{engine: engine, delay: delay}
}

// Drive advances the flow until it needs user input. Cancelling the context
// stops the runner between steps, so a reset during a pending delay never
// applies a stale transition.
func (r *Runner) Drive(ctx context.Context) error {
	for r.engine.CanAutoAdvance() {
		select {
		case <-ctx.Done():
			slog.Debug("Runner cancelled", "sessionID", r.engine.SessionID())
			return ctx.Err()
		case <-time.After(r.delay):
		}

		res, err := r.engine.Send(ctx, models.Event{Type: models.EventContinue})
		if err != nil {
			slog.Error("Runner: auto-advance failed", "sessionID", r.engine.SessionID(), "error", err)
			return err
		}
		if !res.StepChanged {
			// Failed, ignored, or a self-transition: nothing further to chain.
			return nil
		}
	}
	return nil
}
