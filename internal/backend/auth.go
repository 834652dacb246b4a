// Package backend implements the mock platform services behind the demo:
// accounts, device spawning, chat sessions and support tickets. Everything is
// store-backed and constructed per process; there are no package-level
// singletons, so tests can build isolated instances.
package backend

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/machinepilot/machinepilot/internal/models"
	"github.com/machinepilot/machinepilot/internal/store"
	"github.com/machinepilot/machinepilot/internal/util"
)

// OTP validation failure reasons, surfaced so the UI can offer "resend"
// rather than "retry same code".
const (
	OTPReasonExpired  = "expired"
	OTPReasonInvalid  = "invalid"
	OTPReasonNotFound = "not-found"
)

// Default TTLs matching the reference behavior.
const (
	DefaultOTPTTL        = 10 * time.Minute
	DefaultResetTokenTTL = time.Hour
	otpCodeLength        = 6
	profileKeyLength     = 12
)

// RegisterResult reports the outcome of a registration attempt.
type RegisterResult struct {
	// ExistsVerified means the account is already registered and verified;
	// callers should route to a login path instead of OTP entry.
	ExistsVerified bool `json:"exists_verified"`
	// OTP is the issued code. Exposed only because this is a mocked demo with
	// no delivery channel; a real system would never return it.
	OTP string `json:"otp,omitempty"`
}

// OTPValidation reports the outcome of an OTP check.
type OTPValidation struct {
	OK         bool   `json:"ok"`
	Reason     string `json:"reason,omitempty"`
	ProfileKey string `json:"profile_key,omitempty"`
}

// AuthService is the mock account service.
type AuthService struct {
	store    store.Store
	validate *validator.Validate
	otpTTL   time.Duration
	resetTTL time.Duration
	now      func() time.Time
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithOTPTTL overrides the OTP expiry window.
func WithOTPTTL(ttl time.Duration) AuthOption {
	return func(s *AuthService) { s.otpTTL = ttl }
}

// WithResetTokenTTL overrides the password reset token expiry window.
func WithResetTokenTTL(ttl time.Duration) AuthOption {
	return func(s *AuthService) { s.resetTTL = ttl }
}

// WithClock overrides the time source, used by expiry tests.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService creates a new mock account service.
func NewAuthService(st store.Store, opts ...AuthOption) *AuthService {
	s := &AuthService{
		store:    st,
		validate: validator.New(),
		otpTTL:   DefaultOTPTTL,
		resetTTL: DefaultResetTokenTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuthService) validEmail(email string) error {
	if email == "" {
		return models.ErrEmptyEmail
	}
	if err := s.validate.Var(email, "email"); err != nil {
		return models.ErrInvalidEmail
	}
	return nil
}

// Register stores (or refreshes) an account for the email and issues an OTP
// unless the account is already verified.
func (s *AuthService) Register(email, name string) (*RegisterResult, error) {
	slog.Debug("AuthService.Register", "email", email)
	if err := s.validEmail(email); err != nil {
		return nil, err
	}

	acct, err := s.store.GetAccount(email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	now := s.now()
	if acct != nil && acct.Verified {
		slog.Debug("AuthService.Register account exists and is verified", "email", email)
		return &RegisterResult{ExistsVerified: true}, nil
	}

	if acct == nil {
		acct = &models.Account{Email: email, CreatedAt: now}
	}
	if name != "" {
		acct.Name = name
	}
	acct.OTPCode = util.GenerateNumericCode(otpCodeLength)
	acct.OTPExpiresAt = now.Add(s.otpTTL)
	acct.UpdatedAt = now

	if err := s.store.SaveAccount(*acct); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}
	slog.Info("AuthService.Register issued OTP", "email", email)
	return &RegisterResult{OTP: acct.OTPCode}, nil
}

// CheckEmail reports whether an account exists and whether it is verified.
func (s *AuthService) CheckEmail(email string) (exists, verified bool, err error) {
	if err := s.validEmail(email); err != nil {
		return false, false, err
	}
	acct, err := s.store.GetAccount(email)
	if err != nil {
		return false, false, fmt.Errorf("failed to look up account: %w", err)
	}
	if acct == nil {
		return false, false, nil
	}
	return true, acct.Verified, nil
}

// ValidateOTP compares a submitted code against the stored, time-expiring
// code. On success it marks the account verified and provisions a profile
// key; on failure or expiry it reports the reason without mutating the
// account.
func (s *AuthService) ValidateOTP(email, code string) (*OTPValidation, error) {
	slog.Debug("AuthService.ValidateOTP", "email", email)
	if code == "" {
		return nil, models.ErrEmptyOTP
	}

	acct, err := s.store.GetAccount(email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if acct == nil || acct.OTPCode == "" {
		return &OTPValidation{Reason: OTPReasonNotFound}, nil
	}
	if s.now().After(acct.OTPExpiresAt) {
		slog.Debug("AuthService.ValidateOTP code expired", "email", email)
		return &OTPValidation{Reason: OTPReasonExpired}, nil
	}
	if code != acct.OTPCode {
		return &OTPValidation{Reason: OTPReasonInvalid}, nil
	}

	now := s.now()
	acct.Verified = true
	acct.OTPCode = ""
	acct.OTPExpiresAt = time.Time{}
	if acct.ProfileKey == "" {
		acct.ProfileKey = util.GenerateNumericCode(profileKeyLength)
	}
	acct.UpdatedAt = now
	if err := s.store.SaveAccount(*acct); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}
	slog.Info("AuthService.ValidateOTP verified", "email", email)
	return &OTPValidation{OK: true, ProfileKey: acct.ProfileKey}, nil
}

// ResendOTP issues a fresh code with a fresh expiry.
func (s *AuthService) ResendOTP(email string) (string, error) {
	slog.Debug("AuthService.ResendOTP", "email", email)
	acct, err := s.store.GetAccount(email)
	if err != nil {
		return "", fmt.Errorf("failed to look up account: %w", err)
	}
	if acct == nil {
		return "", models.ErrAccountNotFound
	}
	now := s.now()
	acct.OTPCode = util.GenerateNumericCode(otpCodeLength)
	acct.OTPExpiresAt = now.Add(s.otpTTL)
	acct.UpdatedAt = now
	if err := s.store.SaveAccount(*acct); err != nil {
		return "", fmt.Errorf("failed to save account: %w", err)
	}
	return acct.OTPCode, nil
}

// SendPasswordReset issues a single-use, time-expiring reset token keyed by
// the account email. As with the OTP, the token is returned to the caller
// only because the demo has no delivery channel.
func (s *AuthService) SendPasswordReset(email string) (string, error) {
	slog.Debug("AuthService.SendPasswordReset", "email", email)
	acct, err := s.store.GetAccount(email)
	if err != nil {
		return "", fmt.Errorf("failed to look up account: %w", err)
	}
	if acct == nil {
		return "", models.ErrAccountNotFound
	}
	now := s.now()
	acct.ResetToken = util.GenerateResetToken()
	acct.ResetExpiresAt = now.Add(s.resetTTL)
	acct.UpdatedAt = now
	if err := s.store.SaveAccount(*acct); err != nil {
		return "", fmt.Errorf("failed to save account: %w", err)
	}
	return acct.ResetToken, nil
}

// CompletePasswordReset validates the token and expiry, sets the password,
// and marks the account verified. The token is single-use: it is cleared on
// success and also on a failed expiry check.
func (s *AuthService) CompletePasswordReset(email, token, password string) error {
	slog.Debug("AuthService.CompletePasswordReset", "email", email)
	if len(password) < 8 {
		return models.ErrWeakPassword
	}
	acct, err := s.store.GetAccount(email)
	if err != nil {
		return fmt.Errorf("failed to look up account: %w", err)
	}
	if acct == nil || acct.ResetToken == "" {
		return models.ErrAccountNotFound
	}
	now := s.now()
	if now.After(acct.ResetExpiresAt) {
		acct.ResetToken = ""
		acct.ResetExpiresAt = time.Time{}
		acct.UpdatedAt = now
		if err := s.store.SaveAccount(*acct); err != nil {
			return fmt.Errorf("failed to save account: %w", err)
		}
		return fmt.Errorf("reset token expired")
	}
	if token != acct.ResetToken {
		return fmt.Errorf("invalid reset token")
	}

	acct.Password = password
	acct.Verified = true
	acct.ResetToken = ""
	acct.ResetExpiresAt = time.Time{}
	acct.UpdatedAt = now
	if err := s.store.SaveAccount(*acct); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	slog.Info("AuthService.CompletePasswordReset succeeded", "email", email)
	return nil
}

// SetPassword overwrites the account password directly (used by the
// post-verification "choose a password" step).
func (s *AuthService) SetPassword(email, password string) error {
	if len(password) < 8 {
		return models.ErrWeakPassword
	}
	acct, err := s.store.GetAccount(email)
	if err != nil {
		return fmt.Errorf("failed to look up account: %w", err)
	}
	if acct == nil {
		return models.ErrAccountNotFound
	}
	acct.Password = password
	acct.UpdatedAt = s.now()
	return s.store.SaveAccount(*acct)
}

// Login checks credentials against the stored account.
func (s *AuthService) Login(email, password string) (*models.Account, error) {
	slog.Debug("AuthService.Login", "email", email)
	acct, err := s.store.GetAccount(email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if acct == nil {
		return nil, models.ErrAccountNotFound
	}
	if acct.Password == "" || acct.Password != password {
		return nil, fmt.Errorf("invalid credentials")
	}
	return acct, nil
}

// CreateProfile provisions a profile key for a verified account, returning
// the existing key if one was already issued.
func (s *AuthService) CreateProfile(email string) (string, error) {
	acct, err := s.store.GetAccount(email)
	if err != nil {
		return "", fmt.Errorf("failed to look up account: %w", err)
	}
	if acct == nil {
		return "", models.ErrAccountNotFound
	}
	if acct.ProfileKey == "" {
		acct.ProfileKey = util.GenerateNumericCode(profileKeyLength)
		acct.UpdatedAt = s.now()
		if err := s.store.SaveAccount(*acct); err != nil {
			return "", fmt.Errorf("failed to save account: %w", err)
		}
	}
	return acct.ProfileKey, nil
}
