// Package app provides application initialization and dependency wiring.
//
// App is the container assembling the conversation service: configuration,
// the Gemini client, the tool registry, the in-memory session store, the
// optional PostgreSQL transcript store and the orchestrator on top of them.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kensei-chat/kensei/internal/chat"
	"github.com/kensei-chat/kensei/internal/config"
	"github.com/kensei-chat/kensei/internal/gemini"
	"github.com/kensei-chat/kensei/internal/session"
	"github.com/kensei-chat/kensei/internal/tools"
	"github.com/kensei-chat/kensei/internal/transcript"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Model        *gemini.Client
	Registry     *tools.Registry
	Sessions     *session.Store
	Orchestrator *chat.Orchestrator
	Titler       *chat.Titler

	// Transcript persistence; nil when PostgreSQL is not configured.
	Pool        *pgxpool.Pool
	Transcripts *transcript.Store

	otelShutdown func(context.Context) error
}

// Close gracefully releases all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}

	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			a.Logger.Warn("shutting down tracer provider", "error", err)
		}
	}

	return nil
}
