package backend

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/machinepilot/machinepilot/internal/models"
	"github.com/machinepilot/machinepilot/internal/store"
)

// SessionService manages chat session records and the hand-off from an
// anonymous session to an authenticated one.
type SessionService struct {
	store store.Store
	now   func() time.Time
}

// NewSessionService creates a session service.
func NewSessionService(st store.Store) *SessionService {
	return &SessionService{store: st, now: time.Now}
}

// Create starts a new session, anonymous unless ownerEmail is given.
func (s *SessionService) Create(ownerEmail string) (*models.Session, error) {
	now := s.now()
	sess := models.Session{
		ID:         uuid.NewString(),
		OwnerEmail: ownerEmail,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.SaveSession(sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	slog.Info("SessionService.Create", "sessionID", sess.ID, "anonymous", ownerEmail == "")
	return &sess, nil
}

// Get returns a session record.
func (s *SessionService) Get(id string) (*models.Session, error) {
	sess, err := s.store.GetSession(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if sess == nil {
		return nil, models.ErrSessionNotFound
	}
	return sess, nil
}

// Transfer re-keys an anonymous session under an authenticated identity. The
// transcript and flow snapshot are copied to the new session id so the
// conversation continues seamlessly; the old session is marked superseded and
// kept for audit, never deleted.
func (s *SessionService) Transfer(id, ownerEmail string) (*models.Session, error) {
	old, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if old.SupersededBy != "" {
		return nil, models.ErrSessionSupersede
	}

	now := s.now()
	next := models.Session{
		ID:         uuid.NewString(),
		OwnerEmail: ownerEmail,
		Messages:   append([]models.ChatMessage(nil), old.Messages...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.SaveSession(next); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	// Carry over engine state and transcript under the new key.
	if snap, err := s.store.GetFlowSnapshot(old.ID); err == nil && snap != nil {
		snap.SessionID = next.ID
		if err := s.store.SaveFlowSnapshot(*snap); err != nil {
			slog.Warn("SessionService.Transfer snapshot copy failed", "sessionID", next.ID, "error", err)
		}
	}
	if msgs, err := s.store.GetTranscript(old.ID); err == nil && msgs != nil {
		if err := s.store.SaveTranscript(next.ID, msgs); err != nil {
			slog.Warn("SessionService.Transfer transcript copy failed", "sessionID", next.ID, "error", err)
		}
	}

	old.SupersededBy = next.ID
	old.UpdatedAt = now
	if err := s.store.SaveSession(*old); err != nil {
		return nil, fmt.Errorf("failed to mark session superseded: %w", err)
	}

	slog.Info("SessionService.Transfer", "from", old.ID, "to", next.ID, "owner", ownerEmail)
	return &next, nil
}

// UpdateMessages replaces the session's stored message snapshot.
func (s *SessionService) UpdateMessages(id string, msgs []models.ChatMessage) error {
	sess, err := s.Get(id)
	if err != nil {
		return err
	}
	sess.Messages = append([]models.ChatMessage(nil), msgs...)
	sess.UpdatedAt = s.now()
	return s.store.SaveSession(*sess)
}

// Cleanup removes sessions idle longer than maxAge, returning how many were
// deleted. Superseded sessions are kept regardless, for audit.
func (s *SessionService) Cleanup(maxAge time.Duration) (int, error) {
	sessions, err := s.store.ListSessions()
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	cutoff := s.now().Add(-maxAge)
	removed := 0
	for _, sess := range sessions {
		if sess.SupersededBy != "" {
			continue
		}
		if sess.UpdatedAt.Before(cutoff) {
			if err := s.store.DeleteSession(sess.ID); err != nil {
				slog.Warn("SessionService.Cleanup delete failed", "sessionID", sess.ID, "error", err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}
