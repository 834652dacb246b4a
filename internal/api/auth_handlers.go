package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/machinepilot/machinepilot/internal/backend"
	"github.com/machinepilot/machinepilot/internal/models"
)

type registerRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type validateOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

type completeResetRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type passwordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// decode parses and validates a JSON request body. Returns false after
// writing the error response.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.auth.Register(req.Email, req.Name)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, res)
}

func (s *Server) checkEmailHandler(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.decode(w, r, &req) {
		return
	}
	exists, verified, err := s.auth.CheckEmail(req.Email)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, map[string]bool{"exists": exists, "verified": verified})
}

func (s *Server) validateOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req validateOTPRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.auth.ValidateOTP(req.Email, req.Code)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if !res.OK {
		status := http.StatusBadRequest
		if res.Reason == backend.OTPReasonNotFound {
			status = http.StatusNotFound
		}
		respondFailure(w, r, status, res.Reason, res)
		return
	}
	respondOK(w, r, res)
}

func (s *Server) resendOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.decode(w, r, &req) {
		return
	}
	otp, err := s.auth.ResendOTP(req.Email)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			respondError(w, r, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, map[string]string{"otp": otp})
}

func (s *Server) sendPasswordResetHandler(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.decode(w, r, &req) {
		return
	}
	token, err := s.auth.SendPasswordReset(req.Email)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			respondError(w, r, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, map[string]string{"token": token})
}

func (s *Server) completePasswordResetHandler(w http.ResponseWriter, r *http.Request) {
	var req completeResetRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.auth.CompletePasswordReset(req.Email, req.Token, req.Password); err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			respondError(w, r, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, r, nil)
}

func (s *Server) setPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.auth.SetPassword(req.Email, req.Password); err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			respondError(w, r, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, r, nil)
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	acct, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			respondError(w, r, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	respondOK(w, r, map[string]string{"email": acct.Email, "profile_key": acct.ProfileKey})
}

func (s *Server) createProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.decode(w, r, &req) {
		return
	}
	key, err := s.auth.CreateProfile(req.Email)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			respondError(w, r, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, r, map[string]string{"profile_key": key})
}
