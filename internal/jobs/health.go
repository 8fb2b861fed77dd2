package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oneshare/signal-server-go/internal/model"
)

type StatsSource interface {
	Stats() model.Stats
}

type SocketCounter interface {
	Count() int
}

type HealthSink interface {
	PublishHealth(ctx context.Context, snapshot model.HealthSnapshot, ttl time.Duration) error
}

// HealthReporter periodically publishes room and socket counts.
type HealthReporter struct {
	stats    StatsSource
	sockets  SocketCounter
	sink     HealthSink
	interval time.Duration
	ttl      time.Duration
	now      func() time.Time
	done     chan struct{}
}

func NewHealthReporter(stats StatsSource, sockets SocketCounter, sink HealthSink, interval, ttl time.Duration) *HealthReporter {
	return &HealthReporter{
		stats:    stats,
		sockets:  sockets,
		sink:     sink,
		interval: interval,
		ttl:      ttl,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

func (h *HealthReporter) Start() {
	go h.run()
	log.Info().Dur("interval", h.interval).Msg("health reporter started")
}

func (h *HealthReporter) Stop() {
	close(h.done)
	log.Info().Msg("health reporter stopped")
}

func (h *HealthReporter) run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.report()
		}
	}
}

func (h *HealthReporter) Snapshot() model.HealthSnapshot {
	return model.HealthSnapshot{
		Stats:      h.stats.Stats(),
		Sockets:    h.sockets.Count(),
		ReportedAt: h.now().UTC(),
	}
}

func (h *HealthReporter) report() {
	ctx, cancel := context.WithTimeout(context.Background(), h.interval)
	defer cancel()

	if err := h.sink.PublishHealth(ctx, h.Snapshot(), h.ttl); err != nil {
		log.Warn().Err(err).Msg("failed to publish health snapshot")
	}
}
