// Package store provides storage backends for MachinePilot.
//
// It includes an in-memory store (the default for the demo) plus SQLite and
// PostgreSQL backends behind the same interface. Everything here is
// demo-grade: records reset with the process unless a database DSN is given.
package store

import (
	"sort"
	"sync"

	"github.com/machinepilot/machinepilot/internal/models"
)

// Store is the persistence surface shared by the mock backend services and
// the flow engine. Lookups return (nil, nil) when the record is absent.
type Store interface {
	// Accounts
	GetAccount(email string) (*models.Account, error)
	SaveAccount(a models.Account) error
	DeleteAccount(email string) error

	// Devices
	GetDevice(id string) (*models.Device, error)
	SaveDevice(d models.Device) error
	DeleteDevice(id string) error
	ListDevices() ([]models.Device, error)

	// Sessions
	GetSession(id string) (*models.Session, error)
	SaveSession(s models.Session) error
	DeleteSession(id string) error
	ListSessions() ([]models.Session, error)

	// Tickets
	GetTicket(id string) (*models.Ticket, error)
	SaveTicket(t models.Ticket) error
	DeleteTicket(id string) error
	ListTickets() ([]models.Ticket, error)

	// Flow snapshots (current step id, context, history) per chat session.
	GetFlowSnapshot(sessionID string) (*models.FlowSnapshot, error)
	SaveFlowSnapshot(s models.FlowSnapshot) error
	DeleteFlowSnapshot(sessionID string) error

	// Transcripts per chat session, stored wholesale.
	GetTranscript(sessionID string) ([]models.ChatMessage, error)
	SaveTranscript(sessionID string, msgs []models.ChatMessage) error
	DeleteTranscript(sessionID string) error

	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option configures store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// InMemoryStore is the default process-local store.
type InMemoryStore struct {
	mu          sync.RWMutex
	accounts    map[string]models.Account
	devices     map[string]models.Device
	sessions    map[string]models.Session
	tickets     map[string]models.Ticket
	snapshots   map[string]models.FlowSnapshot
	transcripts map[string][]models.ChatMessage
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		accounts:    make(map[string]models.Account),
		devices:     make(map[string]models.Device),
		sessions:    make(map[string]models.Session),
		tickets:     make(map[string]models.Ticket),
		snapshots:   make(map[string]models.FlowSnapshot),
		transcripts: make(map[string][]models.ChatMessage),
	}
}

func (s *InMemoryStore) GetAccount(email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.accounts[email]; ok {
		return &a, nil
	}
	return nil, nil
}

func (s *InMemoryStore) SaveAccount(a models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.Email] = a
	return nil
}

func (s *InMemoryStore) DeleteAccount(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, email)
	return nil
}

func (s *InMemoryStore) GetDevice(id string) (*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.devices[id]; ok {
		return &d, nil
	}
	return nil, nil
}

func (s *InMemoryStore) SaveDevice(d models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.ID] = d
	return nil
}

func (s *InMemoryStore) DeleteDevice(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.devices, id)
	return nil
}

func (s *InMemoryStore) ListDevices() ([]models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SpawnedAt.Before(out[j].SpawnedAt) })
	return out, nil
}

func (s *InMemoryStore) GetSession(id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[id]; ok {
		return &sess, nil
	}
	return nil, nil
}

func (s *InMemoryStore) SaveSession(sess models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *InMemoryStore) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *InMemoryStore) ListSessions() ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) GetTicket(id string) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tickets[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (s *InMemoryStore) SaveTicket(t models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.ID] = t
	return nil
}

func (s *InMemoryStore) DeleteTicket(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tickets, id)
	return nil
}

func (s *InMemoryStore) ListTickets() ([]models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) GetFlowSnapshot(sessionID string) (*models.FlowSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if snap, ok := s.snapshots[sessionID]; ok {
		copied := snap
		copied.Context = snap.Context.Clone()
		copied.History = append([]models.StepID(nil), snap.History...)
		return &copied, nil
	}
	return nil, nil
}

func (s *InMemoryStore) SaveFlowSnapshot(snap models.FlowSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.Context = snap.Context.Clone()
	snap.History = append([]models.StepID(nil), snap.History...)
	s.snapshots[snap.SessionID] = snap
	return nil
}

func (s *InMemoryStore) DeleteFlowSnapshot(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, sessionID)
	return nil
}

func (s *InMemoryStore) GetTranscript(sessionID string) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.transcripts[sessionID]
	if !ok {
		return nil, nil
	}
	return append([]models.ChatMessage(nil), msgs...), nil
}

func (s *InMemoryStore) SaveTranscript(sessionID string, msgs []models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[sessionID] = append([]models.ChatMessage(nil), msgs...)
	return nil
}

func (s *InMemoryStore) DeleteTranscript(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transcripts, sessionID)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
