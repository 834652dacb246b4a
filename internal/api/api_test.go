package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/machinepilot/machinepilot/internal/backend"
	"github.com/machinepilot/machinepilot/internal/config"
	"github.com/machinepilot/machinepilot/internal/flow"
	"github.com/machinepilot/machinepilot/internal/models"
	"github.com/machinepilot/machinepilot/internal/store"
)

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

func testServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Flow.SessionTTLMinutes = 60

	st := store.NewInMemoryStore()
	auth := backend.NewAuthService(st)
	devices := backend.NewDeviceService(st, nil)
	sessions := backend.NewSessionService(st)
	tickets := backend.NewTicketService(st)
	demo := backend.NewDemoDataset()

	cat, err := flow.OnboardingCatalog()
	if err != nil {
		t.Fatalf("OnboardingCatalog: %v", err)
	}
	reg := flow.NewRegistry()
	flow.RegisterOnboardingActions(reg, auth, devices, sessions, tickets)
	// Delay of 1ns keeps auto-advance effectively synchronous for assertions
	// that poll state shortly after an event.
	flows := flow.NewManager(cat, reg, st, 1)

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	srv := NewServer(cfg, log, Deps{
		Auth: auth, Devices: devices, Sessions: sessions,
		Tickets: tickets, Demo: demo, Flows: flows,
	})
	t.Cleanup(flows.Stop)
	return srv, srv.Router()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope from %s %s (%d): %v: %s", method, path, rec.Code, err, rec.Body.String())
	}
	return rec, env
}

func TestAuthRegisterAndValidateOTP(t *testing.T) {
	_, h := testServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/auth/register", map[string]string{"email": "ada@plant.io", "name": "Ada"})
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("register: %d %s", rec.Code, rec.Body.String())
	}
	var reg backend.RegisterResult
	if err := json.Unmarshal(env.Result, &reg); err != nil {
		t.Fatalf("decode register result: %v", err)
	}
	if reg.OTP == "" {
		t.Fatalf("no OTP issued: %s", env.Result)
	}

	// Wrong code: business failure envelope with a reason, not a transport error.
	rec, env = doJSON(t, h, http.MethodPost, "/api/v1/auth/validate-otp", map[string]string{"email": "ada@plant.io", "code": "000000"})
	if rec.Code != http.StatusBadRequest || env.Success {
		t.Errorf("wrong code: %d %s", rec.Code, rec.Body.String())
	}
	if env.Error != backend.OTPReasonInvalid {
		t.Errorf("reason = %q", env.Error)
	}

	rec, env = doJSON(t, h, http.MethodPost, "/api/v1/auth/validate-otp", map[string]string{"email": "ada@plant.io", "code": reg.OTP})
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("correct code: %d %s", rec.Code, rec.Body.String())
	}

	rec, env = doJSON(t, h, http.MethodPost, "/api/v1/auth/check-email", map[string]string{"email": "ada@plant.io"})
	if rec.Code != http.StatusOK {
		t.Fatalf("check-email: %d", rec.Code)
	}
	var check map[string]bool
	json.Unmarshal(env.Result, &check)
	if !check["exists"] || !check["verified"] {
		t.Errorf("check-email = %v", check)
	}
}

func TestAuthValidationErrors(t *testing.T) {
	_, h := testServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/auth/register", map[string]string{"email": "not-an-email"})
	if rec.Code != http.StatusBadRequest || env.Success {
		t.Errorf("malformed email: %d", rec.Code)
	}
	rec, _ = doJSON(t, h, http.MethodPost, "/api/v1/auth/resend-otp", map[string]string{"email": "nobody@plant.io"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown account resend: %d", rec.Code)
	}
	rec, _ = doJSON(t, h, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "nobody@plant.io", "password": "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown account login: %d", rec.Code)
	}
}

func TestDeviceEndpoints(t *testing.T) {
	_, h := testServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/devices/spawn", map[string]string{"mode": "live"})
	if rec.Code != http.StatusOK {
		t.Fatalf("spawn: %d %s", rec.Code, rec.Body.String())
	}
	var dev models.Device
	json.Unmarshal(env.Result, &dev)
	if dev.MQTT == nil {
		t.Fatalf("live device has no broker credentials: %s", env.Result)
	}

	rec, _ = doJSON(t, h, http.MethodGet, "/api/v1/devices/"+dev.ID+"/status", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status: %d", rec.Code)
	}
	rec, _ = doJSON(t, h, http.MethodGet, "/api/v1/devices/"+dev.ID+"/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health: %d", rec.Code)
	}
	rec, _ = doJSON(t, h, http.MethodPost, "/api/v1/devices/"+dev.ID+"/shutdown", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("shutdown: %d", rec.Code)
	}
	rec, _ = doJSON(t, h, http.MethodGet, "/api/v1/devices/mp-missing/status", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing device: %d", rec.Code)
	}
	rec, _ = doJSON(t, h, http.MethodPost, "/api/v1/devices/spawn", map[string]string{"mode": "bogus"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus mode: %d", rec.Code)
	}
}

func TestTicketEndpoints(t *testing.T) {
	_, h := testServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/tickets/", map[string]string{"subject": "Sensor drift", "description": "reads high"})
	if rec.Code != http.StatusOK {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var tk models.Ticket
	json.Unmarshal(env.Result, &tk)

	rec, _ = doJSON(t, h, http.MethodPut, "/api/v1/tickets/"+tk.ID, map[string]string{"status": "closed"})
	if rec.Code != http.StatusOK {
		t.Errorf("update: %d", rec.Code)
	}
	rec, env = doJSON(t, h, http.MethodGet, "/api/v1/tickets/"+tk.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	json.Unmarshal(env.Result, &tk)
	if tk.Status != "closed" {
		t.Errorf("status = %q", tk.Status)
	}
	rec, _ = doJSON(t, h, http.MethodDelete, "/api/v1/tickets/"+tk.ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("delete: %d", rec.Code)
	}
	rec, _ = doJSON(t, h, http.MethodGet, "/api/v1/tickets/"+tk.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleted ticket: %d", rec.Code)
	}
}

func TestDemoRecordEndpoints(t *testing.T) {
	_, h := testServer(t)

	rec, env := doJSON(t, h, http.MethodGet, "/api/v1/machines/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("machines: %d", rec.Code)
	}
	var machines []models.Machine
	json.Unmarshal(env.Result, &machines)
	if len(machines) != 4 {
		t.Errorf("machines = %d", len(machines))
	}

	rec, _ = doJSON(t, h, http.MethodGet, "/api/v1/machines/mc-1001", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("machine: %d", rec.Code)
	}
	rec, _ = doJSON(t, h, http.MethodGet, "/api/v1/machines/mc-9999", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown machine: %d", rec.Code)
	}
	rec, _ = doJSON(t, h, http.MethodGet, "/api/v1/apm/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("apm: %d", rec.Code)
	}
	rec, _ = doJSON(t, h, http.MethodGet, "/api/v1/security/events", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("security: %d", rec.Code)
	}

	rec, env = doJSON(t, h, http.MethodGet, "/api/v1/profile/key-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile: %d", rec.Code)
	}
	var p models.Profile
	json.Unmarshal(env.Result, &p)
	if p.Plan != "trial" {
		t.Errorf("profile plan = %q", p.Plan)
	}
}

func TestSessionTransferEndpoint(t *testing.T) {
	_, h := testServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/sessions/", map[string]string{})
	if rec.Code != http.StatusOK {
		t.Fatalf("create session: %d", rec.Code)
	}
	var sess models.Session
	json.Unmarshal(env.Result, &sess)

	path := fmt.Sprintf("/api/v1/sessions/%s/transfer", sess.ID)
	rec, _ = doJSON(t, h, http.MethodPost, path, map[string]string{"owner_email": "ada@plant.io"})
	if rec.Code != http.StatusOK {
		t.Fatalf("transfer: %d %s", rec.Code, rec.Body.String())
	}
	// A second transfer of the superseded session conflicts.
	rec, _ = doJSON(t, h, http.MethodPost, path, map[string]string{"owner_email": "eve@plant.io"})
	if rec.Code != http.StatusConflict {
		t.Errorf("second transfer: %d", rec.Code)
	}
}

func TestChatSessionLifecycle(t *testing.T) {
	_, h := testServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/chat/sessions/", map[string]string{})
	if rec.Code != http.StatusOK {
		t.Fatalf("create chat session: %d %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Session  models.Session       `json:"session"`
		State    chatStateResponse    `json:"state"`
		Messages []models.ChatMessage `json:"messages"`
	}
	if err := json.Unmarshal(env.Result, &created); err != nil {
		t.Fatalf("decode create result: %v", err)
	}
	if created.Session.ID == "" {
		t.Fatalf("no session id")
	}
	if len(created.Messages) == 0 {
		t.Errorf("no initial message")
	}

	id := created.Session.ID
	// Submitting an email while the flow is on the user-info step advances it;
	// the welcome step may still be draining, so send continue first.
	doJSON(t, h, http.MethodPost, "/api/v1/chat/sessions/"+id+"/events",
		map[string]interface{}{"type": "continue"})
	rec, env = doJSON(t, h, http.MethodPost, "/api/v1/chat/sessions/"+id+"/events",
		map[string]interface{}{"type": "submit", "payload": map[string]string{"email": "ada@plant.io"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("event: %d %s", rec.Code, rec.Body.String())
	}

	rec, env = doJSON(t, h, http.MethodGet, "/api/v1/chat/sessions/"+id+"/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("state: %d", rec.Code)
	}
	var state chatStateResponse
	json.Unmarshal(env.Result, &state)
	if state.SessionID != id {
		t.Errorf("state session = %q", state.SessionID)
	}
	if len(state.History) == 0 {
		t.Errorf("empty history")
	}

	rec, env = doJSON(t, h, http.MethodGet, "/api/v1/chat/sessions/"+id+"/transcript", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("transcript: %d", rec.Code)
	}
	var msgs []models.ChatMessage
	json.Unmarshal(env.Result, &msgs)
	if len(msgs) == 0 {
		t.Errorf("empty transcript")
	}

	rec, env = doJSON(t, h, http.MethodPost, "/api/v1/chat/sessions/"+id+"/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: %d %s", rec.Code, rec.Body.String())
	}
	var afterReset struct {
		State chatStateResponse `json:"state"`
	}
	json.Unmarshal(env.Result, &afterReset)
	if afterReset.State.CurrentStepID != flow.StepWelcome && afterReset.State.CurrentStepID != flow.StepUserInfo {
		t.Errorf("reset landed on %q", afterReset.State.CurrentStepID)
	}
}

func TestChatEventIgnoredForUnknownType(t *testing.T) {
	_, h := testServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/chat/sessions/", map[string]string{})
	if rec.Code != http.StatusOK {
		t.Fatalf("create: %d", rec.Code)
	}
	var created struct {
		Session models.Session `json:"session"`
	}
	json.Unmarshal(env.Result, &created)

	rec, env = doJSON(t, h, http.MethodPost, "/api/v1/chat/sessions/"+created.Session.ID+"/events",
		map[string]interface{}{"type": "no-such-event"})
	if rec.Code != http.StatusOK {
		t.Fatalf("event: %d %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Ignored bool `json:"ignored"`
	}
	json.Unmarshal(env.Result, &res)
	if !res.Ignored {
		t.Errorf("unknown event type not ignored: %s", env.Result)
	}
}
