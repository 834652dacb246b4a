package models

import "time"

// StepID identifies a single step in the conversation catalog.
type StepID string

// EventType identifies an event that can trigger a transition out of a step.
type EventType string

const (
	// EventContinue is the implicit event fired by the auto-advance runner for
	// steps that do not wait on user input. A linear step is just a step with a
	// single EventContinue transition.
	EventContinue EventType = "continue"
	// EventSubmit carries user-entered form data (email, otp code, password...).
	EventSubmit EventType = "submit"
	// EventSelect carries a button/choice selection.
	EventSelect EventType = "select"
	// EventRetry re-runs the current step's side effect without advancing.
	EventRetry EventType = "retry"
	// EventResend asks for a fresh OTP code on the otp step.
	EventResend EventType = "resend"
	// EventSkip advances past an optional step without running its side effect.
	EventSkip EventType = "skip"
	// EventForgot routes from the login step into the password-reset branch.
	EventForgot EventType = "forgot"
)

// Actor determines the transcript rendering role of a step's message.
type Actor string

const (
	ActorAssistant Actor = "assistant"
	ActorUser      Actor = "user"
)

// Event is the external input applied to the flow engine. Payload carries
// user-provided values keyed by field name; steps and actions agree on the
// keys by convention.
type Event struct {
	Type    EventType         `json:"type"`
	Payload map[string]string `json:"payload,omitempty"`
}

// Get returns a payload value, tolerating a nil payload map.
func (e Event) Get(key string) string {
	if e.Payload == nil {
		return ""
	}
	return e.Payload[key]
}

// Widget is an opaque UI descriptor emitted by a step. The engine never
// interprets Type; it is a contract between the catalog author and the UI.
type Widget struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// ChatMessage is a single transcript entry. Created once when the flow lands
// on a step with a non-empty rendering, never mutated afterward.
type ChatMessage struct {
	ID        int       `json:"id"`
	Actor     Actor     `json:"actor"`
	Text      string    `json:"text,omitempty"`
	Widget    *Widget   `json:"widget,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FlowSnapshot is the persisted engine state for one chat session.
// CurrentStepID must refer to an existing catalog entry; restore falls back to
// the catalog's initial step otherwise.
type FlowSnapshot struct {
	SessionID     string       `json:"session_id"`
	CurrentStepID StepID       `json:"current_step_id"`
	Context       *FlowContext `json:"context"`
	History       []StepID     `json:"history"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
