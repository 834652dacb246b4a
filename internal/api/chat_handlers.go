package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/machinepilot/machinepilot/internal/flow"
	"github.com/machinepilot/machinepilot/internal/models"
)

type chatEventRequest struct {
	Type    string            `json:"type" validate:"required"`
	Payload map[string]string `json:"payload"`
}

type chatStateResponse struct {
	SessionID     string              `json:"session_id"`
	CurrentStepID models.StepID       `json:"current_step_id"`
	AwaitingInput bool                `json:"awaiting_input"`
	Widget        *models.Widget      `json:"widget,omitempty"`
	Context       *models.FlowContext `json:"context"`
	History       []models.StepID     `json:"history"`
	WasRestored   bool                `json:"was_restored"`
}

func (s *Server) stateOf(eng *flow.Engine) chatStateResponse {
	state := chatStateResponse{
		SessionID:     eng.SessionID(),
		CurrentStepID: eng.CurrentStepID(),
		Context:       eng.Context(),
		History:       eng.History(),
		WasRestored:   eng.WasRestored(),
	}
	if step, ok := eng.CurrentStep(); ok {
		state.AwaitingInput = step.AwaitInput
		state.Widget = step.Widget
	}
	return state
}

func (s *Server) createChatSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !s.decode(w, r, &req) {
		return
	}
	sess, err := s.sessions.Create(req.OwnerEmail)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	eng, err := s.flows.Engine(sess.ID)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, map[string]interface{}{
		"session":  sess,
		"state":    s.stateOf(eng),
		"messages": eng.Messages(),
	})
}

func (s *Server) chatEventHandler(w http.ResponseWriter, r *http.Request) {
	var req chatEventRequest
	if !s.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	res, err := s.flows.Send(r.Context(), id, models.Event{
		Type:    models.EventType(req.Type),
		Payload: req.Payload,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnknownStep), errors.Is(err, models.ErrUnknownAction):
			respondError(w, r, http.StatusInternalServerError, err.Error())
		default:
			respondError(w, r, http.StatusBadGateway, err.Error())
		}
		return
	}
	eng, err := s.flows.Engine(id)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, map[string]interface{}{
		"ignored":      res.Ignored,
		"failed":       res.Failed,
		"reason":       res.Reason,
		"step_changed": res.StepChanged,
		"message":      res.Message,
		"state":        s.stateOf(eng),
	})
}

func (s *Server) chatTranscriptHandler(w http.ResponseWriter, r *http.Request) {
	eng, err := s.flows.Engine(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, eng.Messages())
}

func (s *Server) chatStateHandler(w http.ResponseWriter, r *http.Request) {
	eng, err := s.flows.Engine(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, s.stateOf(eng))
}

func (s *Server) chatResetHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.flows.Reset(id, nil); err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	eng, err := s.flows.Engine(id)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, map[string]interface{}{
		"state":    s.stateOf(eng),
		"messages": eng.Messages(),
	})
}
