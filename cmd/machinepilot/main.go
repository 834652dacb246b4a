package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/machinepilot/machinepilot/internal/api"
	"github.com/machinepilot/machinepilot/internal/backend"
	"github.com/machinepilot/machinepilot/internal/config"
	"github.com/machinepilot/machinepilot/internal/flow"
	"github.com/machinepilot/machinepilot/internal/store"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	confPath := flag.String("conf", "config.yaml", "path to the configuration file")
	flag.Parse()

	// Optional .env for local development.
	if err := godotenv.Load(); err == nil {
		slog.Debug(".env file loaded")
	}

	cfg := config.MustLoad(*confPath)
	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting machinepilot", slog.String("env", cfg.Env), slog.String("storeDriver", cfg.Store.Driver))

	st, err := openStore(cfg)
	if err != nil {
		log.Error("failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	timer := flow.NewSimpleTimer()
	defer timer.Stop()

	auth := backend.NewAuthService(st,
		backend.WithOTPTTL(time.Duration(cfg.Flow.OTPTTLMinutes)*time.Minute),
		backend.WithResetTokenTTL(time.Duration(cfg.Flow.ResetTTLMinutes)*time.Minute),
	)
	devices := backend.NewDeviceService(st, timer,
		backend.WithDeviceTTL(time.Duration(cfg.Flow.DeviceTTLMinutes)*time.Minute),
		backend.WithProvisioningDelay(time.Duration(cfg.Flow.ProvisionDelayMs)*time.Millisecond),
	)
	sessions := backend.NewSessionService(st)
	tickets := backend.NewTicketService(st)
	demo := backend.NewDemoDataset()

	catalog, err := flow.OnboardingCatalog()
	if err != nil {
		log.Error("invalid onboarding catalog", slog.Any("error", err))
		os.Exit(1)
	}
	actions := flow.NewRegistry()
	flow.RegisterOnboardingActions(actions, auth, devices, sessions, tickets)
	flows := flow.NewManager(catalog, actions, st, time.Duration(cfg.Flow.AutoAdvanceDelayMs)*time.Millisecond)

	server := api.NewServer(cfg, log, api.Deps{
		Auth:     auth,
		Devices:  devices,
		Sessions: sessions,
		Tickets:  tickets,
		Demo:     demo,
		Flows:    flows,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		log.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("machinepilot stopped")
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLiteStore(store.WithSQLiteDSN(cfg.Store.DSN))
	case "postgres":
		return store.NewPostgresStore(store.WithPostgresDSN(cfg.Store.DSN))
	default:
		return store.NewInMemoryStore(), nil
	}
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}
