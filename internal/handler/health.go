package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oneshare/signal-server-go/internal/config"
	"github.com/oneshare/signal-server-go/internal/model"
)

type StatsSource interface {
	Stats() model.Stats
}

type SocketCounter interface {
	Count() int
}

// DependencyChecker is an optional backing service checked by the readiness
// probe.
type DependencyChecker interface {
	CheckHealth(ctx context.Context) error
}

// MirrorStats exposes the write-behind queue counters.
type MirrorStats interface {
	Pending() int
	Dropped() int64
	Failed() int64
}

type HealthHandler struct {
	stats          StatsSource
	sockets        SocketCounter
	mirror         MirrorStats
	redis          DependencyChecker
	turnConfigured bool
}

// NewHealthHandler builds the probe endpoints. mirror and redis may be nil
// when those backends are not configured.
func NewHealthHandler(stats StatsSource, sockets SocketCounter, mirror MirrorStats, redis DependencyChecker, turnConfigured bool) *HealthHandler {
	return &HealthHandler{
		stats:          stats,
		sockets:        sockets,
		mirror:         mirror,
		redis:          redis,
		turnConfigured: turnConfigured,
	}
}

func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Health)
	r.Get("/live", h.Live)
	r.Get("/ready", h.Ready)

	return r
}

// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UnixMilli(),
	})
}

// GET /health/live
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// GET /health/ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	deps := map[string]any{
		"mirror":         "disabled",
		"redis":          "disabled",
		"turnConfigured": h.turnConfigured,
	}

	if h.mirror != nil {
		deps["mirror"] = map[string]any{
			"pending": h.mirror.Pending(),
			"dropped": h.mirror.Dropped(),
			"failed":  h.mirror.Failed(),
		}
	}

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), config.PingTimeout)
		defer cancel()
		if err := h.redis.CheckHealth(ctx); err != nil {
			deps["redis"] = "unavailable"
		} else {
			deps["redis"] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"stats":        h.stats.Stats(),
		"sockets":      h.sockets.Count(),
		"dependencies": deps,
	})
}
