package models

import "time"

// Account is a mock user account. OTP and reset-token fields live inline
// because the store is a demo-grade key/value surface, not a real auth system.
type Account struct {
	Email          string    `json:"email"`
	Name           string    `json:"name,omitempty"`
	Password       string    `json:"password,omitempty"`
	Verified       bool      `json:"verified"`
	ProfileKey     string    `json:"profile_key,omitempty"`
	OTPCode        string    `json:"otp_code,omitempty"`
	OTPExpiresAt   time.Time `json:"otp_expires_at,omitempty"`
	ResetToken     string    `json:"reset_token,omitempty"`
	ResetExpiresAt time.Time `json:"reset_expires_at,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DeviceStatus tracks the simulated lifecycle of a spawned device.
type DeviceStatus string

const (
	DeviceStatusProvisioning DeviceStatus = "provisioning"
	DeviceStatusOnline       DeviceStatus = "online"
	DeviceStatusShutdown     DeviceStatus = "shutdown"
)

// Device is a synthetic machine spawned during onboarding.
type Device struct {
	ID         string          `json:"id"`
	ProfileKey string          `json:"profile_key,omitempty"`
	Mode       Mode            `json:"mode"`
	Status     DeviceStatus    `json:"status"`
	MQTT       *MQTTConnection `json:"mqtt,omitempty"`
	SpawnedAt  time.Time       `json:"spawned_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// Session is a chat session record. Transfer re-keys an anonymous session
// under an authenticated identity; the old record is kept for audit with
// SupersededBy set, never deleted.
type Session struct {
	ID           string        `json:"id"`
	OwnerEmail   string        `json:"owner_email,omitempty"`
	Messages     []ChatMessage `json:"messages,omitempty"`
	SupersededBy string        `json:"superseded_by,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Ticket is a demo support ticket.
type Ticket struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Machine is a static demo record shown on the monitoring dashboard.
type Machine struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Site     string  `json:"site"`
	Status   string  `json:"status"`
	HealthPc float64 `json:"health_pc"`
}

// APMMetric is a static application-performance demo record.
type APMMetric struct {
	Service   string  `json:"service"`
	LatencyMs float64 `json:"latency_ms"`
	ErrorRate float64 `json:"error_rate"`
	Rpm       float64 `json:"rpm"`
}

// SecurityEvent is a static security-feed demo record.
type SecurityEvent struct {
	ID       string    `json:"id"`
	Severity string    `json:"severity"`
	Summary  string    `json:"summary"`
	SeenAt   time.Time `json:"seen_at"`
}

// Profile is the editable demo org profile.
type Profile struct {
	ProfileKey string `json:"profile_key"`
	OrgName    string `json:"org_name"`
	Plan       string `json:"plan"`
	Contact    string `json:"contact,omitempty"`
}
