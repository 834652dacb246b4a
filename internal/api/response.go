// Package api provides the HTTP surface for MachinePilot: the mock platform
// endpoints (auth, devices, sessions, tickets, demo records) and the chat
// endpoints driving the onboarding conversation engine.
package api

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/machinepilot/machinepilot/internal/models"
)

// decodeJSON parses a JSON request body without struct validation, for
// endpoints that accept a domain model directly.
func decodeJSON(r *http.Request, dst interface{}) error {
	return render.DecodeJSON(r.Body, dst)
}

// respondOK writes a 200 envelope with result data.
func respondOK(w http.ResponseWriter, r *http.Request, result interface{}) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, models.Success(result))
}

// respondError writes a failure envelope with the given status.
func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, models.Error(message))
}

// respondFailure writes a failure envelope that still carries result data,
// used for business failures like OTP validation (so the UI can read the
// expired-vs-invalid reason).
func respondFailure(w http.ResponseWriter, r *http.Request, status int, message string, result interface{}) {
	render.Status(r, status)
	resp := models.Error(message)
	resp.Result = result
	render.JSON(w, r, resp)
}
