package backend

import (
	"sync"
	"time"

	"github.com/machinepilot/machinepilot/internal/models"
)

// DemoDataset holds the static machine/APM/security/profile records served by
// the read-mostly mock endpoints. It is constructed per process and injected,
// never a package-level singleton, so tests get isolated copies.
type DemoDataset struct {
	mu       sync.RWMutex
	machines map[string]models.Machine
	apm      []models.APMMetric
	security []models.SecurityEvent
	profiles map[string]models.Profile
}

// NewDemoDataset seeds the dataset with the fixed demo records.
func NewDemoDataset() *DemoDataset {
	d := &DemoDataset{
		machines: make(map[string]models.Machine),
		profiles: make(map[string]models.Profile),
	}
	for _, m := range []models.Machine{
		{ID: "mc-1001", Name: "CNC Mill A", Site: "Plant 1", Status: "running", HealthPc: 97.2},
		{ID: "mc-1002", Name: "Press Line 3", Site: "Plant 1", Status: "running", HealthPc: 88.4},
		{ID: "mc-1003", Name: "Packaging Robot", Site: "Plant 2", Status: "idle", HealthPc: 93.1},
		{ID: "mc-1004", Name: "Compressor B", Site: "Plant 2", Status: "maintenance", HealthPc: 61.0},
	} {
		d.machines[m.ID] = m
	}
	d.apm = []models.APMMetric{
		{Service: "ingest-gateway", LatencyMs: 12.4, ErrorRate: 0.002, Rpm: 8400},
		{Service: "rules-engine", LatencyMs: 31.7, ErrorRate: 0.011, Rpm: 2100},
		{Service: "alert-dispatcher", LatencyMs: 8.9, ErrorRate: 0.0, Rpm: 640},
	}
	d.security = []models.SecurityEvent{
		{ID: "sec-1", Severity: "low", Summary: "TLS certificate for edge relay renews in 21 days", SeenAt: time.Now().Add(-36 * time.Hour)},
		{ID: "sec-2", Severity: "medium", Summary: "Repeated auth failures from 10.4.2.17", SeenAt: time.Now().Add(-5 * time.Hour)},
	}
	return d
}

// Machines returns all machine records.
func (d *DemoDataset) Machines() []models.Machine {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Machine, 0, len(d.machines))
	for _, m := range d.machines {
		out = append(out, m)
	}
	return out
}

// Machine returns one machine record.
func (d *DemoDataset) Machine(id string) (*models.Machine, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if m, ok := d.machines[id]; ok {
		return &m, nil
	}
	return nil, models.ErrMachineNotFound
}

// UpdateMachine overwrites a machine record.
func (d *DemoDataset) UpdateMachine(m models.Machine) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.machines[m.ID]; !ok {
		return models.ErrMachineNotFound
	}
	d.machines[m.ID] = m
	return nil
}

// APMMetrics returns the static APM records.
func (d *DemoDataset) APMMetrics() []models.APMMetric {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]models.APMMetric(nil), d.apm...)
}

// SecurityEvents returns the static security feed.
func (d *DemoDataset) SecurityEvents() []models.SecurityEvent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]models.SecurityEvent(nil), d.security...)
}

// Profile returns the org profile for a profile key, lazily creating the
// default demo profile on first access.
func (d *DemoDataset) Profile(profileKey string) models.Profile {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.profiles[profileKey]; ok {
		return p
	}
	p := models.Profile{ProfileKey: profileKey, OrgName: "Acme Industrial", Plan: "trial"}
	d.profiles[profileKey] = p
	return p
}

// UpdateProfile overwrites the org profile.
func (d *DemoDataset) UpdateProfile(p models.Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.ProfileKey] = p
}
