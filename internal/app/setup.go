package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kensei-chat/kensei/db"
	"github.com/kensei-chat/kensei/internal/chat"
	"github.com/kensei-chat/kensei/internal/config"
	"github.com/kensei-chat/kensei/internal/gemini"
	"github.com/kensei-chat/kensei/internal/observability"
	"github.com/kensei-chat/kensei/internal/session"
	"github.com/kensei-chat/kensei/internal/tools"
	"github.com/kensei-chat/kensei/internal/transcript"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	if cfg.TracingEnabled {
		shutdown, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.TracingEndpoint,
			Environment: cfg.Environment,
			ServiceName: cfg.ServiceName,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("setting up tracing: %w", err)
		}
		a.otelShutdown = shutdown
	}

	if cfg.TranscriptsEnabled() {
		pool, err := provideDBPool(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		a.Pool = pool
		a.Transcripts = transcript.New(pool, logger)
	} else {
		logger.Info("transcripts disabled, running with in-memory sessions only")
	}

	model, err := gemini.New(ctx, gemini.Config{
		APIKey:          cfg.GeminiAPIKey,
		Model:           cfg.ModelName,
		Temperature:     cfg.Temperature,
		TopK:            cfg.TopK,
		TopP:            cfg.TopP,
		MaxOutputTokens: int32(cfg.MaxTokens),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	a.Model = model

	registry, err := provideRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Registry = registry

	a.Sessions = session.New()
	a.Orchestrator = chat.NewOrchestrator(a.Sessions, model, registry, logger, chat.Options{
		MaxToolTurns:      cfg.MaxToolTurns,
		RequestsPerSecond: cfg.ModelRPS,
		RequestTimeout:    cfg.RequestTimeout,
		TurnTimeout:       cfg.TurnTimeout,
	})
	a.Titler = chat.NewTitler(model, logger)

	return a, nil
}

// provideRegistry builds the tool registry with every handler the model
// can call.
func provideRegistry(cfg *config.Config, logger *slog.Logger) (*tools.Registry, error) {
	clock, err := tools.NewClock(nil, logger)
	if err != nil {
		return nil, fmt.Errorf("creating clock tool: %w", err)
	}

	weather, err := tools.NewWeather(tools.WeatherConfig{
		APIKey:  cfg.WeatherAPIKey,
		BaseURL: cfg.WeatherBaseURL,
		Units:   cfg.WeatherUnits,
		Lang:    cfg.WeatherLang,
		Timeout: cfg.WeatherTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating weather tool: %w", err)
	}

	registry, err := tools.NewRegistry(clock, weather)
	if err != nil {
		return nil, fmt.Errorf("building tool registry: %w", err)
	}

	logger.Info("tool registry ready", "tools", registry.Names())
	return registry, nil
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
func provideDBPool(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("database pool ready",
		"host", cfg.PostgresHost,
		"database", cfg.PostgresDBName,
	)
	return pool, nil
}
