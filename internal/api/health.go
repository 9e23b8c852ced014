package api

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kensei-chat/kensei/internal/chat"
)

// BreakerProbe reports the state of the upstream model circuit.
// Implemented by *chat.Orchestrator.
type BreakerProbe interface {
	BreakerState() chat.CircuitState
}

// health is a liveness probe for Docker/Kubernetes.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness reports whether dependencies are usable. When no pool is
// configured the service runs without transcript persistence and is ready
// as soon as the process is up. An open model circuit means every chat
// request would fall back, so the instance reports not ready until the
// breaker admits a trial call again.
func readiness(pool *pgxpool.Pool, breaker BreakerProbe) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			if err := pool.Ping(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "not_ready", "database not ready")
				return
			}
		}
		if breaker != nil && breaker.BreakerState() == chat.CircuitOpen {
			writeError(w, http.StatusServiceUnavailable, "not_ready", "model circuit open")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
}
