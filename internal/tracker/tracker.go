package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bustrack/internal/domain"
	"bustrack/internal/metrics"
	"bustrack/internal/store"
)

// PositionSource is the slice of storage the tracker needs.
type PositionSource interface {
	ActivePositions(ctx context.Context) ([]*domain.BusPosition, error)
}

type Broadcaster interface {
	Broadcast(deltas []domain.PositionDelta)
}

// Tracker polls storage for the latest bus positions, keeps the live
// snapshot store current and pushes deltas to websocket subscribers.
type Tracker struct {
	source      PositionSource
	live        *store.LiveStore
	broadcaster Broadcaster
	metrics     *metrics.Collector
	interval    time.Duration
	logger      *slog.Logger

	ready   bool
	readyMu sync.RWMutex
}

func New(source PositionSource, live *store.LiveStore, broadcaster Broadcaster, m *metrics.Collector, interval time.Duration, logger *slog.Logger) *Tracker {
	return &Tracker{
		source:      source,
		live:        live,
		broadcaster: broadcaster,
		metrics:     m,
		interval:    interval,
		logger:      logger.With("component", "tracker"),
	}
}

func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	pruneTicker := time.NewTicker(t.interval * 3)
	defer pruneTicker.Stop()

	t.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.poll(ctx)
		case <-pruneTicker.C:
			t.prune()
		}
	}
}

func (t *Tracker) poll(ctx context.Context) {
	start := time.Now()

	positions, err := t.source.ActivePositions(ctx)
	if err != nil {
		t.logger.Error("failed to poll positions", "error", err)
		return
	}

	deltas := t.live.Update(positions)

	if t.broadcaster != nil {
		t.broadcaster.Broadcast(deltas)
	}

	if !t.IsReady() {
		t.setReady(true)
		t.logger.Info("tracker ready", "buses", len(positions))
	}

	t.metrics.PollDuration.Observe(time.Since(start).Seconds())
	t.logger.Debug("poll completed",
		"buses", len(positions),
		"deltas", len(deltas),
		"tracked", t.live.Count(),
	)
}

func (t *Tracker) prune() {
	deltas := t.live.PruneStale()
	if len(deltas) > 0 {
		if t.broadcaster != nil {
			t.broadcaster.Broadcast(deltas)
		}
		t.logger.Info("pruned stale positions", "count", len(deltas))
	}
}

func (t *Tracker) IsReady() bool {
	t.readyMu.RLock()
	defer t.readyMu.RUnlock()
	return t.ready
}

func (t *Tracker) setReady(ready bool) {
	t.readyMu.Lock()
	defer t.readyMu.Unlock()
	t.ready = ready
}
