package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/machinepilot/machinepilot/internal/models"
)

// SnapshotStore is the persistence adapter consumed by the engine: load/save/
// clear of the flow snapshot and the transcript. Writes are best-effort; the
// engine swallows store errors and keeps going.
type SnapshotStore interface {
	GetFlowSnapshot(sessionID string) (*models.FlowSnapshot, error)
	SaveFlowSnapshot(s models.FlowSnapshot) error
	DeleteFlowSnapshot(sessionID string) error
	GetTranscript(sessionID string) ([]models.ChatMessage, error)
	SaveTranscript(sessionID string, msgs []models.ChatMessage) error
	DeleteTranscript(sessionID string) error
}

// SendResult reports what a Send call did.
type SendResult struct {
	// Ignored means no transition matched the event type; nothing changed.
	Ignored bool
	// Failed means the transition's action reported a business failure; the
	// step and context are unchanged. Reason carries the failure cause.
	Failed bool
	Reason string
	// StepChanged means the engine committed a new current step.
	StepChanged bool
	Step        models.StepID
	// Message is the transcript entry emitted for the new step, if any.
	Message *models.ChatMessage
}

// Engine drives one conversation: it owns the current step id, the flow
// context and the visited history, and keeps them consistent with persisted
// storage. All mutation happens through Send/Reset under an internal mutex,
// so overlapping calls from the host are serialized rather than interleaved.
type Engine struct {
	mu          sync.Mutex
	catalog     *Catalog
	actions     *Registry
	store       SnapshotStore
	sessionID   string
	current     models.StepID
	fctx        *models.FlowContext
	history     []models.StepID
	transcript  *Transcript
	wasRestored bool
	listener    func(models.ChatMessage)
}

// NewEngine constructs an engine for a session, restoring persisted state
// when a valid snapshot exists. A snapshot referencing a step id unknown to
// the catalog falls back to a fresh flow at the catalog's initial step. A
// fresh flow emits the initial step's message and persists immediately, so a
// reload before any interaction is stable.
func NewEngine(catalog *Catalog, actions *Registry, store SnapshotStore, sessionID string) (*Engine, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	e := &Engine{
		catalog:   catalog,
		actions:   actions,
		store:     store,
		sessionID: sessionID,
	}

	snap, err := store.GetFlowSnapshot(sessionID)
	if err != nil {
		slog.Warn("Engine: snapshot load failed, starting fresh", "sessionID", sessionID, "error", err)
		snap = nil
	}
	if snap != nil && !catalog.Has(snap.CurrentStepID) {
		slog.Warn("Engine: snapshot references unknown step, starting fresh",
			"sessionID", sessionID, "stepID", snap.CurrentStepID)
		snap = nil
	}

	if snap != nil {
		e.current = snap.CurrentStepID
		e.fctx = snap.Context.Clone()
		e.history = append([]models.StepID(nil), snap.History...)
		e.wasRestored = true
		msgs, err := store.GetTranscript(sessionID)
		if err != nil {
			slog.Warn("Engine: transcript load failed", "sessionID", sessionID, "error", err)
		}
		e.transcript = RestoreTranscript(msgs)
		slog.Debug("Engine restored", "sessionID", sessionID, "stepID", e.current, "historyLen", len(e.history))
		return e, nil
	}

	e.initFreshLocked(nil)
	slog.Debug("Engine initialized fresh", "sessionID", sessionID, "stepID", e.current)
	return e, nil
}

// initFreshLocked resets in-memory state to the initial step. A restored
// transcript never re-emits the initial message; this path is only taken for
// genuinely fresh flows, so the initial message is emitted here.
func (e *Engine) initFreshLocked(seed *models.FlowContext) {
	e.current = e.catalog.Initial()
	if seed != nil {
		e.fctx = seed.Clone()
	} else {
		e.fctx = models.NewFlowContext()
	}
	if e.fctx.SessionID == "" {
		e.fctx.SessionID = e.sessionID
	}
	e.history = []models.StepID{e.current}
	e.transcript = NewTranscript()
	e.wasRestored = false
	if step, ok := e.catalog.Step(e.current); ok {
		if msg := e.transcript.Append(step, e.fctx); msg != nil {
			e.notify(*msg)
		}
	}
	e.persistLocked()
}

// Send applies one external event to the flow.
//
// Unmatched event types are a silent no-op by design (the UI only emits
// events a step declares), logged for diagnosability. If the matched
// transition names an action, the action runs against a clone of the context:
// an error return aborts the send with the committed context untouched, a
// failed result discards the clone and halts on the current step, and a
// successful result commits the clone before the target is resolved. A
// missing target, or a target equal to the current step, changes nothing:
// history only grows on an actual step change and no duplicate transcript
// message is emitted.
func (e *Engine) Send(ctx context.Context, ev models.Event) (SendResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	step, ok := e.catalog.Step(e.current)
	if !ok {
		return SendResult{}, fmt.Errorf("%w: %s", models.ErrUnknownStep, e.current)
	}

	tr, ok := step.Transitions[ev.Type]
	if !ok {
		slog.Debug("Engine: unmatched event ignored", "sessionID", e.sessionID, "stepID", e.current, "event", ev.Type)
		return SendResult{Ignored: true}, nil
	}

	if tr.Action != "" {
		act, ok := e.actions.Get(tr.Action)
		if !ok {
			return SendResult{}, fmt.Errorf("%w: %s", models.ErrUnknownAction, tr.Action)
		}
		clone := e.fctx.Clone()
		res, err := act(ctx, clone, ev)
		if err != nil {
			slog.Error("Engine: action failed", "sessionID", e.sessionID, "stepID", e.current, "action", tr.Action, "error", err)
			return SendResult{}, fmt.Errorf("action %s: %w", tr.Action, err)
		}
		if !res.OK {
			slog.Debug("Engine: action reported failure", "sessionID", e.sessionID, "stepID", e.current, "action", tr.Action, "reason", res.Reason)
			return SendResult{Failed: true, Reason: res.Reason}, nil
		}
		e.fctx = clone
		e.persistLocked()
	}

	target := tr.resolve(e.fctx)
	if target == "" || target == e.current {
		return SendResult{Step: e.current}, nil
	}
	next, ok := e.catalog.Step(target)
	if !ok {
		slog.Warn("Engine: transition resolved to unknown step, staying", "sessionID", e.sessionID, "stepID", e.current, "target", target)
		return SendResult{Step: e.current}, nil
	}

	e.current = target
	e.history = append(e.history, target)
	msg := e.transcript.Append(next, e.fctx)
	if msg != nil {
		e.notify(*msg)
	}
	e.persistLocked()

	slog.Info("Engine: transition", "sessionID", e.sessionID, "event", ev.Type, "from", step.ID, "to", target)
	return SendResult{StepChanged: true, Step: target, Message: msg}, nil
}

// Reset clears persisted state and reinitializes to the initial step with a
// fresh (or caller-supplied) context. The transcript is cleared and its id
// counter starts over.
func (e *Engine) Reset(seed *models.FlowContext) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.DeleteFlowSnapshot(e.sessionID); err != nil {
		slog.Warn("Engine.Reset: snapshot clear failed", "sessionID", e.sessionID, "error", err)
	}
	if err := e.store.DeleteTranscript(e.sessionID); err != nil {
		slog.Warn("Engine.Reset: transcript clear failed", "sessionID", e.sessionID, "error", err)
	}
	e.initFreshLocked(seed)
	slog.Info("Engine reset", "sessionID", e.sessionID)
}

// persistLocked snapshots the engine state and transcript. Best-effort:
// losing the latest snapshot is acceptable demo-grade degradation, so store
// errors are logged and swallowed.
func (e *Engine) persistLocked() {
	snap := models.FlowSnapshot{
		SessionID:     e.sessionID,
		CurrentStepID: e.current,
		Context:       e.fctx.Clone(),
		History:       append([]models.StepID(nil), e.history...),
		UpdatedAt:     time.Now(),
	}
	if err := e.store.SaveFlowSnapshot(snap); err != nil {
		slog.Warn("Engine: snapshot save failed", "sessionID", e.sessionID, "error", err)
	}
	if err := e.store.SaveTranscript(e.sessionID, e.transcript.Messages()); err != nil {
		slog.Warn("Engine: transcript save failed", "sessionID", e.sessionID, "error", err)
	}
}

func (e *Engine) notify(msg models.ChatMessage) {
	if e.listener != nil {
		e.listener(msg)
	}
}

// SetMessageListener registers a callback invoked for every transcript entry
// the engine emits. Used by the websocket stream.
func (e *Engine) SetMessageListener(fn func(models.ChatMessage)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = fn
}

// SessionID returns the session this engine belongs to.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// WasRestored reports whether the engine came up from a persisted snapshot.
func (e *Engine) WasRestored() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wasRestored
}

// CurrentStepID returns the current step id.
func (e *Engine) CurrentStepID() models.StepID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// CurrentStep returns the current step definition.
func (e *Engine) CurrentStep() (Step, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.Step(e.current)
}

// Context returns a copy of the flow context.
func (e *Engine) Context() *models.FlowContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fctx.Clone()
}

// History returns a copy of the visited step ids.
func (e *Engine) History() []models.StepID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.StepID(nil), e.history...)
}

// Messages returns a copy of the transcript.
func (e *Engine) Messages() []models.ChatMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transcript.Messages()
}

// CanAutoAdvance reports whether the current step should be advanced
// automatically: it does not await input and declares a continue transition.
func (e *Engine) CanAutoAdvance() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	step, ok := e.catalog.Step(e.current)
	if !ok || step.AwaitInput {
		return false
	}
	_, ok = step.Transitions[models.EventContinue]
	return ok
}
