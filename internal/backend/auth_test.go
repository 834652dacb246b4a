package backend

import (
	"errors"
	"testing"
	"time"

	"github.com/machinepilot/machinepilot/internal/models"
	"github.com/machinepilot/machinepilot/internal/store"
)

func TestRegisterIssuesOTP(t *testing.T) {
	svc := NewAuthService(store.NewInMemoryStore())

	res, err := svc.Register("ada@plant.io", "Ada")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.ExistsVerified {
		t.Errorf("fresh account reported as existing")
	}
	if len(res.OTP) != otpCodeLength {
		t.Errorf("OTP length = %d, want %d", len(res.OTP), otpCodeLength)
	}

	exists, verified, err := svc.CheckEmail("ada@plant.io")
	if err != nil {
		t.Fatalf("CheckEmail: %v", err)
	}
	if !exists || verified {
		t.Errorf("expected existing unverified account, got exists=%v verified=%v", exists, verified)
	}
}

func TestRegisterRejectsBadEmail(t *testing.T) {
	svc := NewAuthService(store.NewInMemoryStore())
	if _, err := svc.Register("", ""); !errors.Is(err, models.ErrEmptyEmail) {
		t.Errorf("empty email: got %v", err)
	}
	if _, err := svc.Register("not-an-email", ""); !errors.Is(err, models.ErrInvalidEmail) {
		t.Errorf("malformed email: got %v", err)
	}
}

func TestRegisterVerifiedAccountShortCircuits(t *testing.T) {
	st := store.NewInMemoryStore()
	svc := NewAuthService(st)
	res, _ := svc.Register("ada@plant.io", "Ada")
	if _, err := svc.ValidateOTP("ada@plant.io", res.OTP); err != nil {
		t.Fatalf("ValidateOTP: %v", err)
	}

	again, err := svc.Register("ada@plant.io", "")
	if err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if !again.ExistsVerified {
		t.Errorf("verified account should short-circuit registration")
	}
	if again.OTP != "" {
		t.Errorf("no OTP should be issued for a verified account")
	}
}

func TestValidateOTP(t *testing.T) {
	svc := NewAuthService(store.NewInMemoryStore())
	res, _ := svc.Register("ada@plant.io", "")

	v, err := svc.ValidateOTP("ada@plant.io", "000000")
	if err != nil {
		t.Fatalf("ValidateOTP: %v", err)
	}
	if v.OK || v.Reason != OTPReasonInvalid {
		t.Errorf("wrong code: got %+v", v)
	}

	v, err = svc.ValidateOTP("nobody@plant.io", "000000")
	if err != nil {
		t.Fatalf("ValidateOTP: %v", err)
	}
	if v.OK || v.Reason != OTPReasonNotFound {
		t.Errorf("unknown account: got %+v", v)
	}

	v, err = svc.ValidateOTP("ada@plant.io", res.OTP)
	if err != nil {
		t.Fatalf("ValidateOTP: %v", err)
	}
	if !v.OK {
		t.Fatalf("correct code rejected: %+v", v)
	}
	if len(v.ProfileKey) != profileKeyLength {
		t.Errorf("profile key length = %d, want %d", len(v.ProfileKey), profileKeyLength)
	}

	// The code is single-use.
	v, _ = svc.ValidateOTP("ada@plant.io", res.OTP)
	if v.OK || v.Reason != OTPReasonNotFound {
		t.Errorf("consumed code should report not-found, got %+v", v)
	}
}

func TestValidateOTPExpiry(t *testing.T) {
	now := time.Now()
	clock := &now
	svc := NewAuthService(store.NewInMemoryStore(),
		WithOTPTTL(10*time.Minute),
		WithClock(func() time.Time { return *clock }),
	)
	res, _ := svc.Register("ada@plant.io", "")

	later := now.Add(11 * time.Minute)
	clock = &later
	v, err := svc.ValidateOTP("ada@plant.io", res.OTP)
	if err != nil {
		t.Fatalf("ValidateOTP: %v", err)
	}
	if v.OK || v.Reason != OTPReasonExpired {
		t.Errorf("expired code: got %+v", v)
	}

	// A resend issues a fresh window.
	otp, err := svc.ResendOTP("ada@plant.io")
	if err != nil {
		t.Fatalf("ResendOTP: %v", err)
	}
	v, _ = svc.ValidateOTP("ada@plant.io", otp)
	if !v.OK {
		t.Errorf("resent code rejected: %+v", v)
	}
}

func TestValidateOTPEmptyCode(t *testing.T) {
	svc := NewAuthService(store.NewInMemoryStore())
	if _, err := svc.ValidateOTP("ada@plant.io", ""); !errors.Is(err, models.ErrEmptyOTP) {
		t.Errorf("empty code: got %v", err)
	}
}

func TestPasswordResetRoundTrip(t *testing.T) {
	svc := NewAuthService(store.NewInMemoryStore())
	svc.Register("ada@plant.io", "")

	token, err := svc.SendPasswordReset("ada@plant.io")
	if err != nil {
		t.Fatalf("SendPasswordReset: %v", err)
	}
	if token == "" {
		t.Fatalf("empty reset token")
	}

	if err := svc.CompletePasswordReset("ada@plant.io", token, "short"); !errors.Is(err, models.ErrWeakPassword) {
		t.Errorf("weak password: got %v", err)
	}
	if err := svc.CompletePasswordReset("ada@plant.io", "wrong", "longenough"); err == nil {
		t.Errorf("wrong token accepted")
	}
	if err := svc.CompletePasswordReset("ada@plant.io", token, "longenough"); err != nil {
		t.Fatalf("CompletePasswordReset: %v", err)
	}

	// The token is single-use.
	if err := svc.CompletePasswordReset("ada@plant.io", token, "longenough"); err == nil {
		t.Errorf("consumed token accepted")
	}

	acct, err := svc.Login("ada@plant.io", "longenough")
	if err != nil {
		t.Fatalf("Login after reset: %v", err)
	}
	if !acct.Verified {
		t.Errorf("reset completion should mark the account verified")
	}
}

func TestPasswordResetExpiry(t *testing.T) {
	now := time.Now()
	clock := &now
	svc := NewAuthService(store.NewInMemoryStore(),
		WithResetTokenTTL(time.Hour),
		WithClock(func() time.Time { return *clock }),
	)
	svc.Register("ada@plant.io", "")
	token, _ := svc.SendPasswordReset("ada@plant.io")

	later := now.Add(2 * time.Hour)
	clock = &later
	if err := svc.CompletePasswordReset("ada@plant.io", token, "longenough"); err == nil {
		t.Fatalf("expired token accepted")
	}
	// Expiry clears the token entirely.
	if err := svc.CompletePasswordReset("ada@plant.io", token, "longenough"); !errors.Is(err, models.ErrAccountNotFound) {
		t.Errorf("cleared token: got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc := NewAuthService(store.NewInMemoryStore())
	svc.Register("ada@plant.io", "")
	if err := svc.SetPassword("ada@plant.io", "hunter2222"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}

	if _, err := svc.Login("nobody@plant.io", "x"); !errors.Is(err, models.ErrAccountNotFound) {
		t.Errorf("unknown account: got %v", err)
	}
	if _, err := svc.Login("ada@plant.io", "wrong"); err == nil {
		t.Errorf("wrong password accepted")
	}
	acct, err := svc.Login("ada@plant.io", "hunter2222")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if acct.Email != "ada@plant.io" {
		t.Errorf("login returned %q", acct.Email)
	}
}

func TestCreateProfileIdempotent(t *testing.T) {
	svc := NewAuthService(store.NewInMemoryStore())
	svc.Register("ada@plant.io", "")

	key1, err := svc.CreateProfile("ada@plant.io")
	if err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	key2, _ := svc.CreateProfile("ada@plant.io")
	if key1 != key2 {
		t.Errorf("profile key changed across calls: %q vs %q", key1, key2)
	}
	if _, err := svc.CreateProfile("nobody@plant.io"); !errors.Is(err, models.ErrAccountNotFound) {
		t.Errorf("unknown account: got %v", err)
	}
}
