package backend

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/machinepilot/machinepilot/internal/models"
	"github.com/machinepilot/machinepilot/internal/store"
)

// TicketService manages demo support tickets.
type TicketService struct {
	store store.Store
	now   func() time.Time
}

// NewTicketService creates a ticket service.
func NewTicketService(st store.Store) *TicketService {
	return &TicketService{store: st, now: time.Now}
}

// Create opens a ticket. Used both by the API and the onboarding flow's
// "create a test ticket" step.
func (s *TicketService) Create(subject, description, createdBy string) (*models.Ticket, error) {
	if subject == "" {
		return nil, fmt.Errorf("ticket subject is required")
	}
	now := s.now()
	t := models.Ticket{
		ID:          "tk-" + uuid.NewString()[:8],
		Subject:     subject,
		Description: description,
		Status:      "open",
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.SaveTicket(t); err != nil {
		return nil, fmt.Errorf("failed to save ticket: %w", err)
	}
	slog.Info("TicketService.Create", "ticketID", t.ID, "subject", subject)
	return &t, nil
}

// Get returns a ticket.
func (s *TicketService) Get(id string) (*models.Ticket, error) {
	t, err := s.store.GetTicket(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket: %w", err)
	}
	if t == nil {
		return nil, models.ErrTicketNotFound
	}
	return t, nil
}

// Update applies a status and/or description change.
func (s *TicketService) Update(id, status, description string) (*models.Ticket, error) {
	t, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if status != "" {
		t.Status = status
	}
	if description != "" {
		t.Description = description
	}
	t.UpdatedAt = s.now()
	if err := s.store.SaveTicket(*t); err != nil {
		return nil, fmt.Errorf("failed to save ticket: %w", err)
	}
	return t, nil
}

// List returns all tickets.
func (s *TicketService) List() ([]models.Ticket, error) {
	return s.store.ListTickets()
}

// Delete removes a ticket.
func (s *TicketService) Delete(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	return s.store.DeleteTicket(id)
}
