package cache

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically evicts expired entries so memory stays bounded
// even when keys are never read again. Started at service startup and
// cancelled through the lifecycle context.
type Sweeper struct {
	cache    *Cache
	interval time.Duration
	onSweep  func(removed int)
	logger   *slog.Logger
}

func NewSweeper(c *Cache, interval time.Duration, onSweep func(removed int), logger *slog.Logger) *Sweeper {
	return &Sweeper{
		cache:    c,
		interval: interval,
		onSweep:  onSweep,
		logger:   logger.With("component", "cache_sweeper"),
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.cache.Sweep()
			if removed > 0 {
				s.logger.Debug("sweep completed", "removed", removed, "remaining", s.cache.Len())
			}
			if s.onSweep != nil {
				s.onSweep(removed)
			}
		}
	}
}
