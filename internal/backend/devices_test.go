package backend

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/machinepilot/machinepilot/internal/models"
	"github.com/machinepilot/machinepilot/internal/store"
)

// immediateTimer runs callbacks synchronously, standing in for the real timer.
type immediateTimer struct{ scheduled int }

func (t *immediateTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	t.scheduled++
	fn()
	return "t1", nil
}

func (t *immediateTimer) Cancel(id string) error { return nil }

func TestSpawnDemoDevice(t *testing.T) {
	svc := NewDeviceService(store.NewInMemoryStore(), nil)

	dev, err := svc.Spawn(models.ModeDemo, "key-1")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if !strings.HasPrefix(dev.ID, "mp-") {
		t.Errorf("device id = %q", dev.ID)
	}
	if dev.MQTT != nil {
		t.Errorf("demo device should not carry broker credentials")
	}
	// No timer: the device comes up online immediately.
	if dev.Status != models.DeviceStatusOnline {
		t.Errorf("status = %q, want %q", dev.Status, models.DeviceStatusOnline)
	}
}

func TestSpawnLiveDeviceHasMQTT(t *testing.T) {
	svc := NewDeviceService(store.NewInMemoryStore(), nil)

	dev, err := svc.Spawn(models.ModeLive, "key-1")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if dev.MQTT == nil {
		t.Fatalf("live device missing broker credentials")
	}
	if dev.MQTT.BrokerPort != 8883 {
		t.Errorf("broker port = %d", dev.MQTT.BrokerPort)
	}
	if !strings.Contains(dev.MQTT.Topic, dev.ID) {
		t.Errorf("topic %q should embed the device id %q", dev.MQTT.Topic, dev.ID)
	}
}

func TestSpawnInvalidMode(t *testing.T) {
	svc := NewDeviceService(store.NewInMemoryStore(), nil)
	if _, err := svc.Spawn("bogus", ""); !errors.Is(err, models.ErrInvalidMode) {
		t.Errorf("got %v", err)
	}
}

func TestSpawnProvisioningLifecycle(t *testing.T) {
	timer := &immediateTimer{}
	svc := NewDeviceService(store.NewInMemoryStore(), timer, WithProvisioningDelay(time.Second))

	dev, err := svc.Spawn(models.ModeDemo, "")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	// The returned record still says provisioning; the timer callback already
	// flipped the stored record.
	if dev.Status != models.DeviceStatusProvisioning {
		t.Errorf("returned status = %q", dev.Status)
	}
	if timer.scheduled != 1 {
		t.Errorf("scheduled = %d", timer.scheduled)
	}
	stored, err := svc.Status(dev.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if stored.Status != models.DeviceStatusOnline {
		t.Errorf("stored status = %q, want online", stored.Status)
	}
}

func TestDeviceStatusNotFound(t *testing.T) {
	svc := NewDeviceService(store.NewInMemoryStore(), nil)
	if _, err := svc.Status("mp-missing"); !errors.Is(err, models.ErrDeviceNotFound) {
		t.Errorf("got %v", err)
	}
}

func TestDeviceHealth(t *testing.T) {
	svc := NewDeviceService(store.NewInMemoryStore(), nil)
	dev, _ := svc.Spawn(models.ModeDemo, "")

	h, err := svc.Health(dev.ID)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if h.DeviceID != dev.ID || h.Status != string(models.DeviceStatusOnline) {
		t.Errorf("health = %+v", h)
	}
}

func TestDeviceShutdown(t *testing.T) {
	svc := NewDeviceService(store.NewInMemoryStore(), nil)
	dev, _ := svc.Spawn(models.ModeDemo, "")

	if err := svc.Shutdown(dev.ID); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	stored, _ := svc.Status(dev.ID)
	if stored.Status != models.DeviceStatusShutdown {
		t.Errorf("status = %q", stored.Status)
	}
}

func TestCleanupExpired(t *testing.T) {
	now := time.Now()
	clock := now
	svc := NewDeviceService(store.NewInMemoryStore(), nil,
		WithDeviceTTL(time.Hour),
		WithDeviceClock(func() time.Time { return clock }),
	)
	svc.Spawn(models.ModeDemo, "")
	svc.Spawn(models.ModeDemo, "")

	removed, err := svc.CleanupExpired()
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed %d fresh devices", removed)
	}

	clock = now.Add(2 * time.Hour)
	removed, err = svc.CleanupExpired()
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	devices, _ := svc.List()
	if len(devices) != 0 {
		t.Errorf("%d devices left after cleanup", len(devices))
	}
}
