package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/machinepilot/machinepilot/internal/models"
)

type spawnDeviceRequest struct {
	Mode       string `json:"mode" validate:"required,oneof=demo live"`
	ProfileKey string `json:"profile_key"`
}

func (s *Server) spawnDeviceHandler(w http.ResponseWriter, r *http.Request) {
	var req spawnDeviceRequest
	if !s.decode(w, r, &req) {
		return
	}
	dev, err := s.devices.Spawn(models.Mode(req.Mode), req.ProfileKey)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, dev)
}

func (s *Server) listDevicesHandler(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.List()
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, devices)
}

func (s *Server) deviceStatusHandler(w http.ResponseWriter, r *http.Request) {
	dev, err := s.devices.Status(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrDeviceNotFound) {
			respondError(w, r, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, dev)
}

func (s *Server) deviceHealthHandler(w http.ResponseWriter, r *http.Request) {
	health, err := s.devices.Health(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrDeviceNotFound) {
			respondError(w, r, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, health)
}

func (s *Server) deviceShutdownHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.devices.Shutdown(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, models.ErrDeviceNotFound) {
			respondError(w, r, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, nil)
}

func (s *Server) cleanupDevicesHandler(w http.ResponseWriter, r *http.Request) {
	removed, err := s.devices.CleanupExpired()
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, map[string]int{"removed": removed})
}
