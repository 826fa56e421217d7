package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"level-indicator/internal/levels"
)

// BarFeed delivers bar snapshots in order. A snapshot for the same bar may be
// delivered more than once while that bar is forming.
type BarFeed interface {
	Run(ctx context.Context, onStatus func(connected bool))
	Updates() <-chan levels.BarSnapshot
	Errors() <-chan error
	Connected() bool
	Close()
}

// ReplayFeed plays a recorded bar history back at a fixed interval.
type ReplayFeed struct {
	bars     []levels.BarSnapshot
	interval time.Duration
	log      *slog.Logger

	mu        sync.RWMutex
	connected bool

	updCh chan levels.BarSnapshot
	errCh chan error

	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewReplayFeed(bars []levels.BarSnapshot, interval time.Duration, logger *slog.Logger) *ReplayFeed {
	return &ReplayFeed{
		bars:     bars,
		interval: interval,
		log:      logger,
		updCh:    make(chan levels.BarSnapshot, 1024),
		errCh:    make(chan error, 16),
	}
}

func (f *ReplayFeed) Updates() <-chan levels.BarSnapshot { return f.updCh }
func (f *ReplayFeed) Errors() <-chan error               { return f.errCh }

func (f *ReplayFeed) Connected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connected
}

func (f *ReplayFeed) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}

// Run blocks until every bar is sent or ctx is done.
func (f *ReplayFeed) Run(ctx context.Context, onStatus func(connected bool)) {
	f.mu.Lock()
	if f.cancel != nil {
		f.mu.Unlock()
		return
	}
	ctx, f.cancel = context.WithCancel(ctx)
	f.mu.Unlock()

	if len(f.bars) == 0 {
		f.emitErr(errors.New("replay: no bars to play"))
		onStatus(false)
		return
	}
	f.setConnected(true)
	onStatus(true)
	defer func() {
		f.setConnected(false)
		onStatus(false)
	}()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for i, b := range f.bars {
		select {
		case <-ctx.Done():
			return
		case f.updCh <- b:
		}
		if i < len(f.bars)-1 {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
	if f.log != nil {
		f.log.Info("replay finished", slog.Int("bars", len(f.bars)))
	}
}

func (f *ReplayFeed) Close() {
	f.closeOnce.Do(func() {
		f.mu.RLock()
		cancel := f.cancel
		f.mu.RUnlock()
		if cancel != nil {
			cancel()
		}
	})
}

func (f *ReplayFeed) emitErr(err error) {
	select {
	case f.errCh <- err:
	default:
		// drop if buffer full
	}
}

// ---------- Test/mock feed ----------

type MockBarFeed struct {
	updates   chan levels.BarSnapshot
	errors    chan error
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewMockBarFeed() *MockBarFeed {
	return &MockBarFeed{
		updates:   make(chan levels.BarSnapshot, 10),
		errors:    make(chan error, 10),
		connected: true,
	}
}

func (m *MockBarFeed) Run(ctx context.Context, onStatus func(connected bool)) {
	m.ctx, m.cancel = context.WithCancel(ctx)
	go func() {
		onStatus(m.connected)
		<-m.ctx.Done()
	}()
}

func (m *MockBarFeed) Updates() <-chan levels.BarSnapshot { return m.updates }
func (m *MockBarFeed) Errors() <-chan error               { return m.errors }
func (m *MockBarFeed) Connected() bool                    { return m.connected }

func (m *MockBarFeed) Close() {
	if m.cancel != nil {
		m.cancel()
	}
	close(m.updates)
	close(m.errors)
}

// Helpers for tests
func (m *MockBarFeed) SendBar(s levels.BarSnapshot) { m.updates <- s }
func (m *MockBarFeed) SendError(e error)            { m.errors <- e }
