package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/machinepilot/machinepilot/internal/models"
)

type createSessionRequest struct {
	OwnerEmail string `json:"owner_email" validate:"omitempty,email"`
}

type transferSessionRequest struct {
	OwnerEmail string `json:"owner_email" validate:"required,email"`
}

type updateMessagesRequest struct {
	Messages []models.ChatMessage `json:"messages" validate:"required"`
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !s.decode(w, r, &req) {
		return
	}
	sess, err := s.sessions.Create(req.OwnerEmail)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, sess)
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			respondError(w, r, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, sess)
}

func (s *Server) transferSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req transferSessionRequest
	if !s.decode(w, r, &req) {
		return
	}
	next, err := s.sessions.Transfer(chi.URLParam(r, "id"), req.OwnerEmail)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrSessionNotFound):
			respondError(w, r, http.StatusNotFound, err.Error())
		case errors.Is(err, models.ErrSessionSupersede):
			respondError(w, r, http.StatusConflict, err.Error())
		default:
			respondError(w, r, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondOK(w, r, next)
}

func (s *Server) updateSessionMessagesHandler(w http.ResponseWriter, r *http.Request) {
	var req updateMessagesRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.sessions.UpdateMessages(chi.URLParam(r, "id"), req.Messages); err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			respondError(w, r, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, nil)
}

func (s *Server) cleanupSessionsHandler(w http.ResponseWriter, r *http.Request) {
	maxAge := time.Duration(s.cfg.Flow.SessionTTLMinutes) * time.Minute
	removed, err := s.sessions.Cleanup(maxAge)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, map[string]int{"removed": removed})
}
