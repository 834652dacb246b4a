package flow

import (
	"time"

	"github.com/machinepilot/machinepilot/internal/models"
)

// Transcript owns the ordered chat messages produced as the flow progresses.
// Ids are monotonically increasing and never reused while the transcript
// lives; a reset clears the transcript and starts a fresh counter from zero.
type Transcript struct {
	messages []models.ChatMessage
	nextID   int
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// RestoreTranscript rebuilds a transcript from persisted messages, resuming
// the id counter past the highest restored id.
func RestoreTranscript(msgs []models.ChatMessage) *Transcript {
	t := &Transcript{messages: append([]models.ChatMessage(nil), msgs...)}
	for _, m := range msgs {
		if m.ID >= t.nextID {
			t.nextID = m.ID + 1
		}
	}
	return t
}

// Append projects a step into zero or one transcript entries. A step whose
// rendered text is empty and which carries no widget emits nothing; such
// steps exist purely to run an action.
func (t *Transcript) Append(step Step, fc *models.FlowContext) *models.ChatMessage {
	var text string
	if step.Message != nil {
		text = step.Message(fc)
	}
	if text == "" && step.Widget == nil {
		return nil
	}
	msg := models.ChatMessage{
		ID:        t.nextID,
		Actor:     step.Actor,
		Text:      text,
		Widget:    step.Widget,
		CreatedAt: time.Now(),
	}
	t.nextID++
	t.messages = append(t.messages, msg)
	return &msg
}

// Messages returns a copy of the transcript entries.
func (t *Transcript) Messages() []models.ChatMessage {
	return append([]models.ChatMessage(nil), t.messages...)
}

// Len returns the number of transcript entries.
func (t *Transcript) Len() int {
	return len(t.messages)
}
