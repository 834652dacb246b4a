// Package models defines the core data structures for MachinePilot.
//
// It includes the flow step/event/transcript types, the typed flow context, the
// mock backend records, and the shared API response envelope.
package models

import "errors"

// Error variables for better error handling and testability
var (
	ErrEmptyEmail       = errors.New("email cannot be empty")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrEmptyOTP         = errors.New("otp code cannot be empty")
	ErrWeakPassword     = errors.New("password must be at least 8 characters")
	ErrAccountNotFound  = errors.New("account not found")
	ErrAccountExists    = errors.New("account already registered")
	ErrDeviceNotFound   = errors.New("device not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrMachineNotFound  = errors.New("machine not found")
	ErrUnknownStep      = errors.New("unknown step id")
	ErrUnknownAction    = errors.New("unknown action name")
	ErrInvalidMode      = errors.New("mode must be demo or live")
	ErrSessionSupersede = errors.New("session already superseded")
)

// APIResponse is the standard envelope returned by every mock endpoint.
// Handlers always populate Success; Error is set only on failure.
type APIResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Success: true, Result: result}
}

// Error creates a failed API response with an error message.
func Error(message string) APIResponse {
	return APIResponse{Success: false, Error: message}
}
