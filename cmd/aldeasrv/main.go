// Command aldeasrv runs the Aldea world server: the live simulation loop,
// the HTTP API, and the websocket gateway.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/varelagames/aldea/internal/api"
	"github.com/varelagames/aldea/internal/config"
	"github.com/varelagames/aldea/internal/engine"
	"github.com/varelagames/aldea/internal/ledger"
	"github.com/varelagames/aldea/internal/payments"
	"github.com/varelagames/aldea/internal/profile"
	"github.com/varelagames/aldea/internal/store"
	"github.com/varelagames/aldea/internal/world"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	slog.Info("Aldea world server starting", "port", cfg.Port)

	// ── Durable store ─────────────────────────────────────────────────
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Documents ─────────────────────────────────────────────────────
	led, err := ledger.New(st)
	if err != nil {
		slog.Error("failed to load ledger", "error", err)
		os.Exit(1)
	}
	profiles, err := profile.New(st, led)
	if err != nil {
		slog.Error("failed to load profiles", "error", err)
		os.Exit(1)
	}
	registry, err := world.NewRegistry(st)
	if err != nil {
		slog.Error("failed to load world registry", "error", err)
		os.Exit(1)
	}

	seed := cfg.WorldSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	registry.Bootstrap(seed)

	// ── Live world ────────────────────────────────────────────────────
	engCfg := engine.Config{
		SnapshotInterval: cfg.SnapshotInterval,
		AgentTick:        cfg.AgentTick,
		RentInterval:     cfg.RentInterval,
		SalaryInterval:   cfg.SalaryInterval,
		ExploreReset:     cfg.ExploreReset,
		RentAmount:       cfg.RentAmount,
		SalaryAmount:     cfg.SalaryAmount,
		UpdateMinGap:     80 * time.Millisecond,
		AgentCount:       cfg.AgentCount,
		Seed:             seed,
	}
	sim := engine.New(engCfg, profiles, registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := sim.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("simulation stopped", "error", err)
		}
	}()

	// ── HTTP + websocket ──────────────────────────────────────────────
	srv := &api.Server{
		Profiles:  profiles,
		Registry:  registry,
		Sim:       sim,
		Payments:  payments.New(profiles, cfg.WebhookSecret, []byte(cfg.PayHMACKey)),
		Port:      cfg.Port,
		JWTSecret: []byte(cfg.JWTSecret),
	}
	srv.Start()

	// ── Shutdown ──────────────────────────────────────────────────────
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	slog.Info("shutting down")

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}

	// Flush everything the debounce windows are still holding.
	if err := profiles.Flush(); err != nil {
		slog.Error("flush profiles", "error", err)
	}
	if err := led.Flush(); err != nil {
		slog.Error("flush ledger", "error", err)
	}
	if err := registry.Flush(); err != nil {
		slog.Error("flush world registry", "error", err)
	}
	slog.Info("goodbye")
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
