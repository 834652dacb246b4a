package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/machinepilot/machinepilot/internal/backend"
	"github.com/machinepilot/machinepilot/internal/config"
	"github.com/machinepilot/machinepilot/internal/flow"
)

// Server wires the mock services and the flow manager into an HTTP API.
type Server struct {
	cfg      *config.Config
	log      *slog.Logger
	validate *validator.Validate

	auth     *backend.AuthService
	devices  *backend.DeviceService
	sessions *backend.SessionService
	tickets  *backend.TicketService
	demo     *backend.DemoDataset
	flows    *flow.Manager

	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// Deps holds the constructed services injected into the server.
type Deps struct {
	Auth     *backend.AuthService
	Devices  *backend.DeviceService
	Sessions *backend.SessionService
	Tickets  *backend.TicketService
	Demo     *backend.DemoDataset
	Flows    *flow.Manager
}

// NewServer creates the API server.
func NewServer(cfg *config.Config, log *slog.Logger, deps Deps) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		validate: validator.New(),
		auth:     deps.Auth,
		devices:  deps.Devices,
		sessions: deps.Sessions,
		tickets:  deps.Tickets,
		demo:     deps.Demo,
		flows:    deps.Flows,
		upgrader: websocket.Upgrader{
			// Demo server: the chat UI is served from arbitrary local origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the chi router. Exported so tests can drive the API through
// httptest without binding a socket.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.Route("/api/v1", func(v1 chi.Router) {
		v1.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.registerHandler)
			r.Post("/check-email", s.checkEmailHandler)
			r.Post("/validate-otp", s.validateOTPHandler)
			r.Post("/resend-otp", s.resendOTPHandler)
			r.Post("/send-password-reset", s.sendPasswordResetHandler)
			r.Post("/complete-password-reset", s.completePasswordResetHandler)
			r.Post("/set-password", s.setPasswordHandler)
			r.Post("/login", s.loginHandler)
			r.Post("/create-profile", s.createProfileHandler)
		})
		v1.Route("/devices", func(r chi.Router) {
			r.Post("/spawn", s.spawnDeviceHandler)
			r.Get("/", s.listDevicesHandler)
			r.Post("/cleanup", s.cleanupDevicesHandler)
			r.Get("/{id}/status", s.deviceStatusHandler)
			r.Get("/{id}/health", s.deviceHealthHandler)
			r.Post("/{id}/shutdown", s.deviceShutdownHandler)
		})
		v1.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.createSessionHandler)
			r.Post("/cleanup", s.cleanupSessionsHandler)
			r.Get("/{id}", s.getSessionHandler)
			r.Post("/{id}/transfer", s.transferSessionHandler)
			r.Put("/{id}/messages", s.updateSessionMessagesHandler)
		})
		v1.Route("/tickets", func(r chi.Router) {
			r.Post("/", s.createTicketHandler)
			r.Get("/", s.listTicketsHandler)
			r.Get("/{id}", s.getTicketHandler)
			r.Put("/{id}", s.updateTicketHandler)
			r.Delete("/{id}", s.deleteTicketHandler)
		})
		v1.Route("/machines", func(r chi.Router) {
			r.Get("/", s.listMachinesHandler)
			r.Get("/{id}", s.getMachineHandler)
			r.Put("/{id}", s.updateMachineHandler)
		})
		v1.Get("/apm/metrics", s.apmMetricsHandler)
		v1.Get("/security/events", s.securityEventsHandler)
		v1.Route("/profile", func(r chi.Router) {
			r.Get("/{key}", s.getProfileHandler)
			r.Put("/{key}", s.updateProfileHandler)
		})
		v1.Route("/chat/sessions", func(r chi.Router) {
			r.Post("/", s.createChatSessionHandler)
			r.Post("/{id}/events", s.chatEventHandler)
			r.Get("/{id}/transcript", s.chatTranscriptHandler)
			r.Get("/{id}/state", s.chatStateHandler)
			r.Post("/{id}/reset", s.chatResetHandler)
			r.Get("/{id}/stream", s.chatStreamHandler)
		})
	})

	return router
}

// Start runs the HTTP server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api server listening", slog.String("addr", s.cfg.Addr()))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.flows.Stop()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("api server stopped")
	return nil
}
