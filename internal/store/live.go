package store

import (
	"sync"
	"time"

	"bustrack/internal/domain"
)

// LiveStore holds the latest known position per bus for cheap snapshot
// reads and websocket fan-out, avoiding a database round trip on every
// subscriber join.
type LiveStore struct {
	mu        sync.RWMutex
	positions map[string]*domain.BusPosition

	staleAfter time.Duration
}

func NewLive(staleAfter time.Duration) *LiveStore {
	return &LiveStore{
		positions:  make(map[string]*domain.BusPosition),
		staleAfter: staleAfter,
	}
}

// Update merges a batch of positions and returns deltas for the ones
// that actually changed.
func (s *LiveStore) Update(positions []*domain.BusPosition) []domain.PositionDelta {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	deltas := make([]domain.PositionDelta, 0, len(positions))

	for _, pos := range positions {
		pos.UpdatedAt = now

		existing, exists := s.positions[pos.BusNumber]
		if !exists || hasMoved(existing, pos) {
			s.positions[pos.BusNumber] = pos
			deltas = append(deltas, domain.PositionDelta{
				Type:      domain.DeltaUpdate,
				Position:  pos,
				BusNumber: pos.BusNumber,
			})
		}
	}

	return deltas
}

func hasMoved(a, b *domain.BusPosition) bool {
	return a.Latitude != b.Latitude ||
		a.Longitude != b.Longitude ||
		!a.RecordedAt.Equal(b.RecordedAt) ||
		a.RouteName != b.RouteName
}

func (s *LiveStore) Get(busNumber string) (*domain.BusPosition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[busNumber]
	return pos, ok
}

// Snapshot returns the known positions for the given bus numbers,
// skipping buses with no position yet.
func (s *LiveStore) Snapshot(busNumbers []string) []*domain.BusPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.BusPosition, 0, len(busNumbers))
	for _, number := range busNumbers {
		if pos, ok := s.positions[number]; ok {
			result = append(result, pos)
		}
	}
	return result
}

func (s *LiveStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}

// PruneStale drops positions that have not been refreshed within the
// staleness window and returns remove deltas for them.
func (s *LiveStore) PruneStale() []domain.PositionDelta {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var deltas []domain.PositionDelta

	for number, pos := range s.positions {
		if now.Sub(pos.UpdatedAt) > s.staleAfter {
			delete(s.positions, number)
			deltas = append(deltas, domain.PositionDelta{
				Type:      domain.DeltaRemove,
				BusNumber: number,
			})
		}
	}

	return deltas
}
