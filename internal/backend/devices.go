package backend

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/machinepilot/machinepilot/internal/models"
	"github.com/machinepilot/machinepilot/internal/store"
	"github.com/machinepilot/machinepilot/internal/util"
)

// Timer schedules delayed actions. Satisfied by flow.SimpleTimer; declared
// here so the service depends only on what it uses.
type Timer interface {
	ScheduleAfter(delay time.Duration, fn func()) (string, error)
	Cancel(id string) error
}

// Defaults for the simulated device lifecycle.
const (
	DefaultDeviceTTL         = 24 * time.Hour
	DefaultProvisioningDelay = 2 * time.Second
)

// DeviceHealth is the synthetic health payload for a spawned device.
type DeviceHealth struct {
	DeviceID    string  `json:"device_id"`
	Status      string  `json:"status"`
	UptimeSec   int64   `json:"uptime_sec"`
	SignalDb    float64 `json:"signal_db"`
	QueueDepth  int     `json:"queue_depth"`
	LastSeenUTC string  `json:"last_seen_utc"`
}

// DeviceService spawns and tracks synthetic devices.
type DeviceService struct {
	store          store.Store
	timer          Timer
	deviceTTL      time.Duration
	provisionDelay time.Duration
	now            func() time.Time
}

// DeviceOption configures a DeviceService.
type DeviceOption func(*DeviceService)

// WithDeviceTTL overrides how long spawned devices live before cleanup.
func WithDeviceTTL(ttl time.Duration) DeviceOption {
	return func(s *DeviceService) { s.deviceTTL = ttl }
}

// WithProvisioningDelay overrides the simulated provisioning delay.
func WithProvisioningDelay(d time.Duration) DeviceOption {
	return func(s *DeviceService) { s.provisionDelay = d }
}

// WithDeviceClock overrides the time source.
func WithDeviceClock(now func() time.Time) DeviceOption {
	return func(s *DeviceService) { s.now = now }
}

// NewDeviceService creates a device service. The timer drives the simulated
// provisioning delay; pass nil to make spawned devices online immediately.
func NewDeviceService(st store.Store, timer Timer, opts ...DeviceOption) *DeviceService {
	s := &DeviceService{
		store:          st,
		timer:          timer,
		deviceTTL:      DefaultDeviceTTL,
		provisionDelay: DefaultProvisioningDelay,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Spawn generates a synthetic device. Live devices also get MQTT connection
// parameters for the hand-off page. The device starts in "provisioning" and
// flips to "online" after the simulated delay.
func (s *DeviceService) Spawn(mode models.Mode, profileKey string) (*models.Device, error) {
	if mode != models.ModeDemo && mode != models.ModeLive {
		return nil, models.ErrInvalidMode
	}

	now := s.now()
	dev := models.Device{
		ID:         util.GenerateDeviceID(),
		ProfileKey: profileKey,
		Mode:       mode,
		Status:     models.DeviceStatusProvisioning,
		SpawnedAt:  now,
		ExpiresAt:  now.Add(s.deviceTTL),
	}
	if mode == models.ModeLive {
		dev.MQTT = &models.MQTTConnection{
			BrokerEndpoint: "mqtt.machinepilot.example",
			BrokerPort:     8883,
			Topic:          fmt.Sprintf("machines/%s/telemetry", dev.ID),
			Username:       dev.ID,
			Password:       util.GenerateRandomHex(24),
			SampleSchema:   `{"ts":"2026-01-01T00:00:00Z","temp_c":41.2,"vibration_mm_s":1.8,"rpm":1490}`,
		}
	}

	if err := s.store.SaveDevice(dev); err != nil {
		return nil, fmt.Errorf("failed to save device: %w", err)
	}
	slog.Info("DeviceService.Spawn", "deviceID", dev.ID, "mode", mode)

	if s.timer == nil || s.provisionDelay <= 0 {
		dev.Status = models.DeviceStatusOnline
		if err := s.store.SaveDevice(dev); err != nil {
			return nil, fmt.Errorf("failed to save device: %w", err)
		}
		return &dev, nil
	}

	id := dev.ID
	if _, err := s.timer.ScheduleAfter(s.provisionDelay, func() {
		s.markOnline(id)
	}); err != nil {
		slog.Warn("DeviceService.Spawn failed to schedule provisioning", "deviceID", id, "error", err)
		dev.Status = models.DeviceStatusOnline
		if err := s.store.SaveDevice(dev); err != nil {
			return nil, fmt.Errorf("failed to save device: %w", err)
		}
	}
	return &dev, nil
}

func (s *DeviceService) markOnline(id string) {
	dev, err := s.store.GetDevice(id)
	if err != nil || dev == nil {
		slog.Warn("DeviceService.markOnline device missing", "deviceID", id, "error", err)
		return
	}
	if dev.Status != models.DeviceStatusProvisioning {
		return
	}
	dev.Status = models.DeviceStatusOnline
	if err := s.store.SaveDevice(*dev); err != nil {
		slog.Warn("DeviceService.markOnline save failed", "deviceID", id, "error", err)
		return
	}
	slog.Debug("DeviceService device online", "deviceID", id)
}

// Status returns the device record.
func (s *DeviceService) Status(id string) (*models.Device, error) {
	dev, err := s.store.GetDevice(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load device: %w", err)
	}
	if dev == nil {
		return nil, models.ErrDeviceNotFound
	}
	return dev, nil
}

// Health returns a synthetic health snapshot. Values are random within
// plausible ranges; this exists purely for the demo dashboard.
func (s *DeviceService) Health(id string) (*DeviceHealth, error) {
	dev, err := s.Status(id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &DeviceHealth{
		DeviceID:    dev.ID,
		Status:      string(dev.Status),
		UptimeSec:   int64(now.Sub(dev.SpawnedAt).Seconds()),
		SignalDb:    -40 - rand.Float64()*30,
		QueueDepth:  rand.Intn(5),
		LastSeenUTC: now.UTC().Format(time.RFC3339),
	}, nil
}

// Shutdown marks a device as shut down.
func (s *DeviceService) Shutdown(id string) error {
	dev, err := s.Status(id)
	if err != nil {
		return err
	}
	dev.Status = models.DeviceStatusShutdown
	if err := s.store.SaveDevice(*dev); err != nil {
		return fmt.Errorf("failed to save device: %w", err)
	}
	slog.Info("DeviceService.Shutdown", "deviceID", id)
	return nil
}

// CleanupExpired removes devices past their TTL, returning how many were
// deleted.
func (s *DeviceService) CleanupExpired() (int, error) {
	devices, err := s.store.ListDevices()
	if err != nil {
		return 0, fmt.Errorf("failed to list devices: %w", err)
	}
	now := s.now()
	removed := 0
	for _, dev := range devices {
		if now.After(dev.ExpiresAt) {
			if err := s.store.DeleteDevice(dev.ID); err != nil {
				slog.Warn("DeviceService.CleanupExpired delete failed", "deviceID", dev.ID, "error", err)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		slog.Info("DeviceService.CleanupExpired", "removed", removed)
	}
	return removed, nil
}

// List returns all known devices.
func (s *DeviceService) List() ([]models.Device, error) {
	return s.store.ListDevices()
}
