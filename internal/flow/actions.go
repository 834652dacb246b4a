package flow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/machinepilot/machinepilot/internal/backend"
	"github.com/machinepilot/machinepilot/internal/models"
)

// Onboarding action names. The catalog references actions by these names.
const (
	ActionRegisterEmail     = "register-email"
	ActionLogin             = "login"
	ActionValidateOTP       = "validate-otp"
	ActionResendOTP         = "resend-otp"
	ActionSendReset         = "send-password-reset"
	ActionCompleteReset     = "complete-password-reset"
	ActionSelectMode        = "select-mode"
	ActionSpawnDemoDevice   = "spawn-demo-device"
	ActionSpawnLiveDevice   = "spawn-live-device"
	ActionTransferSession   = "transfer-session"
	ActionAddUsers          = "add-users"
	ActionSubscribeNotifs   = "subscribe-notifications"
	ActionCreateTestTicket  = "create-test-ticket"
)

// Failure reasons surfaced through SendResult.Reason.
const (
	ReasonInvalidEmail     = "invalid-email"
	ReasonInvalidMode      = "invalid-mode"
	ReasonInvalidPassword  = "invalid-password"
	ReasonBadCredentials   = "bad-credentials"
	ReasonNoUsers          = "no-users"
	ReasonNotAuthenticated = "not-authenticated"
)

// AuthService is the slice of the account service the onboarding actions use.
type AuthService interface {
	Register(email, name string) (*backend.RegisterResult, error)
	ValidateOTP(email, code string) (*backend.OTPValidation, error)
	ResendOTP(email string) (string, error)
	SendPasswordReset(email string) (string, error)
	CompletePasswordReset(email, token, password string) error
	Login(email, password string) (*models.Account, error)
}

// DeviceSpawner spawns synthetic devices.
type DeviceSpawner interface {
	Spawn(mode models.Mode, profileKey string) (*models.Device, error)
}

// SessionDirectory transfers chat sessions to authenticated identities.
type SessionDirectory interface {
	Transfer(id, ownerEmail string) (*models.Session, error)
}

// TicketCreator opens demo support tickets.
type TicketCreator interface {
	Create(subject, description, createdBy string) (*models.Ticket, error)
}

// RegisterOnboardingActions wires the onboarding side effects into a
// registry. Each action performs one side effect and/or context mutation and
// is safe to re-invoke on a self-transition.
func RegisterOnboardingActions(reg *Registry, auth AuthService, devices DeviceSpawner, sessions SessionDirectory, tickets TicketCreator) {
	reg.Register(ActionRegisterEmail, func(ctx context.Context, fc *models.FlowContext, ev models.Event) (ActionResult, error) {
		email := strings.TrimSpace(ev.Get("email"))
		res, err := auth.Register(email, ev.Get("name"))
		if err != nil {
			if errors.Is(err, models.ErrEmptyEmail) || errors.Is(err, models.ErrInvalidEmail) {
				return Fail(ReasonInvalidEmail), nil
			}
			return ActionResult{}, err
		}
		fc.Email = email
		if name := ev.Get("name"); name != "" {
			fc.Name = name
		}
		fc.AccountExists = res.ExistsVerified
		fc.Verified = res.ExistsVerified
		// The issued code rides in the context so the demo can show it; a real
		// system would deliver it out of band.
		fc.OTP = res.OTP
		return OK(), nil
	})

	reg.Register(ActionLogin, func(ctx context.Context, fc *models.FlowContext, ev models.Event) (ActionResult, error) {
		acct, err := auth.Login(fc.Email, ev.Get("password"))
		if err != nil {
			if errors.Is(err, models.ErrAccountNotFound) {
				return Fail(backend.OTPReasonNotFound), nil
			}
			slog.Debug("login action rejected", "email", fc.Email)
			return Fail(ReasonBadCredentials), nil
		}
		fc.Verified = true
		fc.ProfileKey = acct.ProfileKey
		return OK(), nil
	})

	reg.Register(ActionValidateOTP, func(ctx context.Context, fc *models.FlowContext, ev models.Event) (ActionResult, error) {
		res, err := auth.ValidateOTP(fc.Email, ev.Get("code"))
		if err != nil {
			if errors.Is(err, models.ErrEmptyOTP) {
				return Fail(backend.OTPReasonInvalid), nil
			}
			return ActionResult{}, err
		}
		if !res.OK {
			return Fail(res.Reason), nil
		}
		fc.Verified = true
		fc.ProfileKey = res.ProfileKey
		fc.OTP = ""
		return OK(), nil
	})

	reg.Register(ActionResendOTP, func(ctx context.Context, fc *models.FlowContext, ev models.Event) (ActionResult, error) {
		otp, err := auth.ResendOTP(fc.Email)
		if err != nil {
			if errors.Is(err, models.ErrAccountNotFound) {
				return Fail(backend.OTPReasonNotFound), nil
			}
			return ActionResult{}, err
		}
		fc.OTP = otp
		return OK(), nil
	})

	reg.Register(ActionSendReset, func(ctx context.Context, fc *models.FlowContext, ev models.Event) (ActionResult, error) {
		if email := strings.TrimSpace(ev.Get("email")); email != "" {
			fc.Email = email
		}
		token, err := auth.SendPasswordReset(fc.Email)
		if err != nil {
			if errors.Is(err, models.ErrAccountNotFound) {
				return Fail(backend.OTPReasonNotFound), nil
			}
			return ActionResult{}, err
		}
		fc.ResetToken = token
		return OK(), nil
	})

	reg.Register(ActionCompleteReset, func(ctx context.Context, fc *models.FlowContext, ev models.Event) (ActionResult, error) {
		token := ev.Get("token")
		if token == "" {
			token = fc.ResetToken
		}
		if err := auth.CompletePasswordReset(fc.Email, token, ev.Get("password")); err != nil {
			if errors.Is(err, models.ErrWeakPassword) {
				return Fail(ReasonInvalidPassword), nil
			}
			slog.Debug("complete-password-reset rejected", "email", fc.Email, "error", err)
			return Fail(ReasonBadCredentials), nil
		}
		fc.ResetToken = ""
		fc.Verified = true
		return OK(), nil
	})

	reg.Register(ActionSelectMode, func(ctx context.Context, fc *models.FlowContext, ev models.Event) (ActionResult, error) {
		mode := models.Mode(ev.Get("mode"))
		if mode != models.ModeDemo && mode != models.ModeLive {
			return Fail(ReasonInvalidMode), nil
		}
		fc.Mode = mode
		return OK(), nil
	})

	spawn := func(mode models.Mode) Action {
		return func(ctx context.Context, fc *models.FlowContext, ev models.Event) (ActionResult, error) {
			dev, err := devices.Spawn(mode, fc.ProfileKey)
			if err != nil {
				return ActionResult{}, err
			}
			fc.DeviceID = dev.ID
			if dev.MQTT != nil {
				mqtt := *dev.MQTT
				fc.MQTT = &mqtt
			}
			return OK(), nil
		}
	}
	reg.Register(ActionSpawnDemoDevice, spawn(models.ModeDemo))
	reg.Register(ActionSpawnLiveDevice, spawn(models.ModeLive))

	reg.Register(ActionTransferSession, func(ctx context.Context, fc *models.FlowContext, ev models.Event) (ActionResult, error) {
		if fc.Email == "" {
			return Fail(ReasonNotAuthenticated), nil
		}
		next, err := sessions.Transfer(fc.SessionID, fc.Email)
		if err != nil {
			if errors.Is(err, models.ErrSessionNotFound) || errors.Is(err, models.ErrSessionSupersede) {
				slog.Debug("transfer-session skipped", "sessionID", fc.SessionID, "error", err)
				return OK(), nil
			}
			return ActionResult{}, err
		}
		fc.TransferredTo = next.ID
		return OK(), nil
	})

	reg.Register(ActionAddUsers, func(ctx context.Context, fc *models.FlowContext, ev models.Event) (ActionResult, error) {
		raw := strings.FieldsFunc(ev.Get("emails"), func(r rune) bool {
			return r == ',' || r == ' ' || r == ';' || r == '\n'
		})
		added := 0
		for _, email := range raw {
			email = strings.TrimSpace(email)
			if email == "" {
				continue
			}
			dup := false
			for _, existing := range fc.InvitedUsers {
				if existing == email {
					dup = true
					break
				}
			}
			if !dup {
				fc.InvitedUsers = append(fc.InvitedUsers, email)
				added++
			}
		}
		if added == 0 && len(fc.InvitedUsers) == 0 {
			return Fail(ReasonNoUsers), nil
		}
		return OK(), nil
	})

	reg.Register(ActionSubscribeNotifs, func(ctx context.Context, fc *models.FlowContext, ev models.Event) (ActionResult, error) {
		fc.Notifications = ev.Get("enabled") != "false"
		return OK(), nil
	})

	reg.Register(ActionCreateTestTicket, func(ctx context.Context, fc *models.FlowContext, ev models.Event) (ActionResult, error) {
		t, err := tickets.Create(
			"Onboarding test ticket",
			"Automatically created during onboarding to verify the ticketing pipeline.",
			fc.Email,
		)
		if err != nil {
			return ActionResult{}, err
		}
		fc.TicketID = t.ID
		return OK(), nil
	})
}
