// Package api provides the HTTP surface of the chat service: the
// conversation endpoint, transcript management for authenticated users,
// and health probes.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kensei-chat/kensei/internal/chat"
	"github.com/kensei-chat/kensei/internal/transcript"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Generation calls can take a while, so this stays generous.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the maximum keep-alive wait between requests.
	IdleTimeout = 120 * time.Second
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Runner      ChatRunner        // Required
	Titler      TitleSuggester    // Optional: nil falls back to truncation titles
	Transcripts *transcript.Store // Optional: nil disables transcript and preference routes
	Pool        *pgxpool.Pool     // Optional: nil skips the DB ping in /ready
	Breaker     BreakerProbe      // Optional: nil skips the circuit check in /ready
	HMACSecret  []byte            // Required: 32+ bytes, signs identity tokens
	CORSOrigins []string          // Allowed origins for CORS
	TrustProxy  bool              // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst   int               // Rate limiter burst size per IP (0 = default 60)
	Tracing     bool              // Wrap the API routes in OpenTelemetry spans
}

// Server is the JSON API HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Runner == nil {
		return nil, errors.New("chat runner is required")
	}
	if len(cfg.HMACSecret) < 32 {
		return nil, errors.New("hmac secret must be at least 32 bytes")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{
		runner:      cfg.Runner,
		transcripts: cfg.Transcripts,
		logger:      logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", ch.send)

	// Transcript management only makes sense with a database behind it.
	if cfg.Transcripts != nil {
		th := &transcriptHandler{
			store:  cfg.Transcripts,
			titler: cfg.Titler,
			logger: logger,
		}
		if th.titler == nil {
			th.titler = truncationTitler{}
		}
		mux.HandleFunc("GET /api/transcripts", th.list)
		mux.HandleFunc("DELETE /api/transcripts/stale", th.purgeStale)
		mux.HandleFunc("GET /api/transcripts/{id}", th.get)
		mux.HandleFunc("DELETE /api/transcripts/{id}", th.delete)
		mux.HandleFunc("PUT /api/transcripts/{id}", th.rename)
		mux.HandleFunc("POST /api/transcripts/{id}/title", th.suggestTitle)
		mux.HandleFunc("GET /api/stats", th.stats)
		mux.HandleFunc("GET /api/user/preferences", th.getPreferences)
		mux.HandleFunc("PUT /api/user/preferences", th.putPreferences)
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Auth → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. CORS must be before RateLimit so preflight OPTIONS gets
	// proper CORS headers.
	var handler http.Handler = mux
	if cfg.Tracing {
		handler = otelhttp.NewHandler(handler, "kensei.api")
	}
	handler = authMiddleware(cfg.HMACSecret, logger)(handler)
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool, cfg.Breaker))
	topMux.Handle("/", final)

	return &Server{mux: topMux, logger: logger}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// truncationTitler is the fallback TitleSuggester when no model-backed
// titler is configured.
type truncationTitler struct{}

func (truncationTitler) Suggest(_ context.Context, firstPrompt string) string {
	return chat.TruncateForTitle(firstPrompt)
}
