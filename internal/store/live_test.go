package store

import (
	"testing"
	"time"

	"bustrack/internal/domain"
)

func pos(busNumber string, lat, lon float64, at time.Time) *domain.BusPosition {
	return &domain.BusPosition{
		BusNumber:  busNumber,
		Latitude:   lat,
		Longitude:  lon,
		RecordedAt: at,
	}
}

func TestUpdateEmitsDeltaForNewBus(t *testing.T) {
	s := NewLive(time.Minute)
	now := time.Now()

	deltas := s.Update([]*domain.BusPosition{pos("42A", 52.23, 21.01, now)})

	if len(deltas) != 1 {
		t.Fatalf("got %d deltas, want 1", len(deltas))
	}
	if deltas[0].Type != domain.DeltaUpdate || deltas[0].BusNumber != "42A" {
		t.Errorf("unexpected delta: %+v", deltas[0])
	}
	if s.Count() != 1 {
		t.Errorf("count = %d, want 1", s.Count())
	}
}

func TestUpdateSkipsUnchangedPosition(t *testing.T) {
	s := NewLive(time.Minute)
	now := time.Now()

	s.Update([]*domain.BusPosition{pos("42A", 52.23, 21.01, now)})
	deltas := s.Update([]*domain.BusPosition{pos("42A", 52.23, 21.01, now)})

	if len(deltas) != 0 {
		t.Errorf("got %d deltas for unchanged position, want 0", len(deltas))
	}
}

func TestUpdateDetectsMovement(t *testing.T) {
	s := NewLive(time.Minute)
	now := time.Now()

	s.Update([]*domain.BusPosition{pos("42A", 52.23, 21.01, now)})
	deltas := s.Update([]*domain.BusPosition{pos("42A", 52.24, 21.01, now.Add(10 * time.Second))})

	if len(deltas) != 1 {
		t.Fatalf("got %d deltas for moved bus, want 1", len(deltas))
	}

	got, ok := s.Get("42A")
	if !ok {
		t.Fatal("position missing after update")
	}
	if got.Latitude != 52.24 {
		t.Errorf("latitude = %v, want 52.24", got.Latitude)
	}
}

func TestSnapshotReturnsOnlyKnownBuses(t *testing.T) {
	s := NewLive(time.Minute)
	now := time.Now()

	s.Update([]*domain.BusPosition{
		pos("42A", 52.23, 21.01, now),
		pos("175", 52.20, 20.98, now),
	})

	snap := s.Snapshot([]string{"42A", "999"})
	if len(snap) != 1 {
		t.Fatalf("got %d positions, want 1", len(snap))
	}
	if snap[0].BusNumber != "42A" {
		t.Errorf("snapshot bus = %q, want 42A", snap[0].BusNumber)
	}
}

func TestPruneStale(t *testing.T) {
	s := NewLive(10 * time.Millisecond)
	now := time.Now()

	s.Update([]*domain.BusPosition{pos("42A", 52.23, 21.01, now)})
	time.Sleep(20 * time.Millisecond)
	s.Update([]*domain.BusPosition{pos("175", 52.20, 20.98, now.Add(20 * time.Millisecond))})

	deltas := s.PruneStale()
	if len(deltas) != 1 {
		t.Fatalf("got %d remove deltas, want 1", len(deltas))
	}
	if deltas[0].Type != domain.DeltaRemove || deltas[0].BusNumber != "42A" {
		t.Errorf("unexpected delta: %+v", deltas[0])
	}
	if _, ok := s.Get("175"); !ok {
		t.Error("fresh bus should survive pruning")
	}
}
