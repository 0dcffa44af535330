package room

import (
	"context"
	"log/slog"
	"time"

	"github.com/aircast/signaling-relay/internal/metrics"
)

// Reaper periodically evicts abandoned rooms past the persistence timeout,
// plus an absolute max-age sweep for rooms that never drained. It is the
// only component that permanently deletes rooms.
type Reaper struct {
	reg *Registry
	log *slog.Logger
	m   *metrics.Metrics

	interval    time.Duration
	persistence time.Duration
	maxAge      time.Duration
}

func NewReaper(reg *Registry, log *slog.Logger, m *metrics.Metrics, interval, persistence, maxAge time.Duration) *Reaper {
	if log == nil {
		log = slog.Default()
	}
	return &Reaper{
		reg:         reg,
		log:         log,
		m:           m,
		interval:    interval,
		persistence: persistence,
		maxAge:      maxAge,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("room reaper running",
		"interval", r.interval,
		"persistence_timeout", r.persistence,
		"max_age", r.maxAge,
	)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("room reaper stopped")
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Reaper) sweep() {
	if n := r.reg.CleanupOldRooms(r.persistence); n > 0 {
		r.m.Add(metrics.RoomReaped, uint64(n))
		r.log.Info("evicted abandoned rooms", "count", n)
	}
	if n := r.reg.CleanupMaxAge(r.maxAge); n > 0 {
		r.m.Add(metrics.RoomReapedMaxAge, uint64(n))
		r.log.Warn("evicted rooms past max age", "count", n)
	}
}
