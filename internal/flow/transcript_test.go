package flow

import (
	"testing"
	"time"

	"github.com/machinepilot/machinepilot/internal/models"
)

func TestTranscriptMonotonicIDs(t *testing.T) {
	tr := NewTranscript()
	fc := models.NewFlowContext()
	step := Step{ID: "a", Actor: models.ActorAssistant, Message: Text("one")}

	m1 := tr.Append(step, fc)
	m2 := tr.Append(step, fc)
	if m1 == nil || m2 == nil {
		t.Fatalf("expected messages, got %v %v", m1, m2)
	}
	if m1.ID != 0 || m2.ID != 1 {
		t.Errorf("ids = %d, %d; want 0, 1", m1.ID, m2.ID)
	}
	if tr.Len() != 2 {
		t.Errorf("Len = %d, want 2", tr.Len())
	}
}

func TestTranscriptSuppressesEmptySteps(t *testing.T) {
	tr := NewTranscript()
	fc := models.NewFlowContext()

	if msg := tr.Append(Step{ID: "silent"}, fc); msg != nil {
		t.Errorf("step with no message and no widget emitted %+v", msg)
	}
	if msg := tr.Append(Step{ID: "empty", Message: Text("")}, fc); msg != nil {
		t.Errorf("step rendering empty text emitted %+v", msg)
	}
	// A widget-only step still emits.
	msg := tr.Append(Step{ID: "w", Widget: &models.Widget{Type: "spinner"}}, fc)
	if msg == nil {
		t.Fatalf("widget-only step emitted nothing")
	}
	if msg.ID != 0 {
		t.Errorf("suppressed steps consumed ids: got %d", msg.ID)
	}
}

func TestRestoreTranscriptResumesCounter(t *testing.T) {
	persisted := []models.ChatMessage{
		{ID: 0, Actor: models.ActorAssistant, Text: "a", CreatedAt: time.Now()},
		{ID: 4, Actor: models.ActorAssistant, Text: "b", CreatedAt: time.Now()},
	}
	tr := RestoreTranscript(persisted)
	if tr.Len() != 2 {
		t.Fatalf("Len = %d, want 2", tr.Len())
	}
	msg := tr.Append(Step{ID: "c", Actor: models.ActorAssistant, Message: Text("c")}, models.NewFlowContext())
	if msg.ID != 5 {
		t.Errorf("restored counter issued id %d, want 5", msg.ID)
	}
}

func TestTranscriptMessagesReturnsCopy(t *testing.T) {
	tr := NewTranscript()
	tr.Append(Step{ID: "a", Message: Text("one")}, models.NewFlowContext())
	msgs := tr.Messages()
	msgs[0].Text = "mutated"
	if tr.Messages()[0].Text != "one" {
		t.Errorf("Messages exposed internal slice")
	}
}
