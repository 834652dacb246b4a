package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/machinepilot/machinepilot/internal/models"
)

type createTicketRequest struct {
	Subject     string `json:"subject" validate:"required"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by" validate:"omitempty,email"`
}

type updateTicketRequest struct {
	Status      string `json:"status" validate:"omitempty,oneof=open in-progress closed"`
	Description string `json:"description"`
}

func (s *Server) createTicketHandler(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if !s.decode(w, r, &req) {
		return
	}
	t, err := s.tickets.Create(req.Subject, req.Description, req.CreatedBy)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, t)
}

func (s *Server) listTicketsHandler(w http.ResponseWriter, r *http.Request) {
	tickets, err := s.tickets.List()
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, tickets)
}

func (s *Server) getTicketHandler(w http.ResponseWriter, r *http.Request) {
	t, err := s.tickets.Get(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrTicketNotFound) {
			respondError(w, r, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, t)
}

func (s *Server) updateTicketHandler(w http.ResponseWriter, r *http.Request) {
	var req updateTicketRequest
	if !s.decode(w, r, &req) {
		return
	}
	t, err := s.tickets.Update(chi.URLParam(r, "id"), req.Status, req.Description)
	if err != nil {
		if errors.Is(err, models.ErrTicketNotFound) {
			respondError(w, r, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, t)
}

func (s *Server) deleteTicketHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.tickets.Delete(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, models.ErrTicketNotFound) {
			respondError(w, r, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, nil)
}

func (s *Server) listMachinesHandler(w http.ResponseWriter, r *http.Request) {
	respondOK(w, r, s.demo.Machines())
}

func (s *Server) getMachineHandler(w http.ResponseWriter, r *http.Request) {
	m, err := s.demo.Machine(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusNotFound, err.Error())
		return
	}
	respondOK(w, r, m)
}

func (s *Server) updateMachineHandler(w http.ResponseWriter, r *http.Request) {
	var m models.Machine
	if err := decodeJSON(r, &m); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	m.ID = chi.URLParam(r, "id")
	if err := s.demo.UpdateMachine(m); err != nil {
		respondError(w, r, http.StatusNotFound, err.Error())
		return
	}
	respondOK(w, r, m)
}

func (s *Server) apmMetricsHandler(w http.ResponseWriter, r *http.Request) {
	respondOK(w, r, s.demo.APMMetrics())
}

func (s *Server) securityEventsHandler(w http.ResponseWriter, r *http.Request) {
	respondOK(w, r, s.demo.SecurityEvents())
}

func (s *Server) getProfileHandler(w http.ResponseWriter, r *http.Request) {
	respondOK(w, r, s.demo.Profile(chi.URLParam(r, "key")))
}

func (s *Server) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var p models.Profile
	if err := decodeJSON(r, &p); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p.ProfileKey = chi.URLParam(r, "key")
	s.demo.UpdateProfile(p)
	respondOK(w, r, p)
}
