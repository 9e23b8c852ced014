package cmd

import (
	"context"
	"crypto/rand"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kensei-chat/kensei/internal/api"
	"github.com/kensei-chat/kensei/internal/app"
	"github.com/kensei-chat/kensei/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe initializes and starts the HTTP API server.
func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := setupLogger(cfg)
	logger.Info("starting HTTP API server", "version", Version)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	secret := []byte(cfg.HMACSecret)
	if len(secret) == 0 {
		// No configured secret: issue an ephemeral one so the server still
		// starts. Tokens signed elsewhere won't verify, so every request
		// runs as a guest.
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("generating ephemeral secret: %w", err)
		}
		logger.Warn("no HMAC secret configured, authenticated features unavailable")
	}

	srv, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Runner:      a.Orchestrator,
		Titler:      a.Titler,
		Transcripts: a.Transcripts,
		Pool:        a.Pool,
		Breaker:     a.Orchestrator,
		HMACSecret:  secret,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   cfg.RateBurst,
		Tracing:     cfg.TracingEnabled,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	logger.Info("HTTP server ready",
		"addr", cfg.ServerAddr(),
		"api", "/api/*",
		"health", "/health, /ready",
	)

	if err := srv.Run(ctx, cfg.ServerAddr()); err != nil {
		return fmt.Errorf("HTTP server: %w", err)
	}
	return nil
}
