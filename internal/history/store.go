package history

import (
	"fmt"
	"sync"

	"level-indicator/internal/levels"
)

// Store is the in-memory candle history. Bars are appended in order; the
// newest bar may be replaced while it is still forming.
type Store struct {
	mu   sync.RWMutex
	bars []levels.BarSnapshot
}

func NewStore() *Store { return &Store{} }

// Put appends snap, replaces the newest bar, or fills a gap with empty bars.
// Rewriting an older bar is rejected.
func (s *Store) Put(snap levels.BarSnapshot) error {
	if snap.Bar < 0 {
		return fmt.Errorf("negative bar %d", snap.Bar)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.bars)
	switch {
	case snap.Bar == n-1:
		s.bars[n-1] = snap
	case snap.Bar >= n:
		for bar := n; bar < snap.Bar; bar++ {
			s.bars = append(s.bars, levels.BarSnapshot{Bar: bar})
		}
		s.bars = append(s.bars, snap)
	default:
		return fmt.Errorf("bar %d is closed (newest is %d)", snap.Bar, n-1)
	}
	return nil
}

func (s *Store) Candle(bar int) (levels.BarSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if bar < 0 || bar >= len(s.bars) {
		return levels.BarSnapshot{}, false
	}
	snap := s.bars[bar]
	return snap, len(snap.Levels) > 0
}

func (s *Store) CurrentBar() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bars) - 1
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bars)
}

// Snapshots returns a copy of the history.
func (s *Store) Snapshots() []levels.BarSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]levels.BarSnapshot, len(s.bars))
	copy(out, s.bars)
	return out
}
