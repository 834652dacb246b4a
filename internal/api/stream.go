package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/machinepilot/machinepilot/internal/models"
)

// chatStreamHandler upgrades to a websocket and pushes every new assistant
// message for the session as it is emitted. The existing transcript is
// replayed first so a client connecting mid-flow starts from a complete view.
func (s *Server) chatStreamHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	eng, err := s.flows.Engine(id)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("chat stream upgrade failed", slog.String("sessionID", id), slog.Any("error", err))
		return
	}
	defer conn.Close()

	// Single writer goroutine; the engine listener only enqueues.
	backlog := eng.Messages()
	out := make(chan models.ChatMessage, len(backlog)+64)
	for _, msg := range backlog {
		out <- msg
	}
	eng.SetMessageListener(func(msg models.ChatMessage) {
		select {
		case out <- msg:
		default:
			s.log.Warn("chat stream buffer full, dropping message", slog.String("sessionID", id), slog.Int("messageID", msg.ID))
		}
	})
	defer eng.SetMessageListener(nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Drain reads so close frames and pings are processed.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg := <-out:
			if err := conn.WriteJSON(msg); err != nil {
				s.log.Debug("chat stream write failed", slog.String("sessionID", id), slog.Any("error", err))
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
