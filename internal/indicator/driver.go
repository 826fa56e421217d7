package indicator

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"level-indicator/internal/levels"
)

// BarSource is the host's candle history.
type BarSource interface {
	// Candle returns the snapshot for bar; ok=false means nothing traded.
	Candle(bar int) (levels.BarSnapshot, bool)
	// CurrentBar is the newest bar index, -1 when there is none.
	CurrentBar() int
}

// Headline is the single strongest level of one bar.
type Headline struct {
	Bar   int             `json:"bar"`
	Value decimal.Decimal `json:"value"`
	Price decimal.Decimal `json:"price"`
}

// Driver is the per-bar callback surface around a levels.Aggregator.
// It is safe for concurrent use: OnBar and Reconfigure take the write lock,
// readers get copies under the read lock.
type Driver struct {
	src BarSource
	log *slog.Logger

	mu         sync.RWMutex
	settings   Settings
	agg        *levels.Aggregator
	generation string
}

// New validates settings and replays every bar src already holds.
func New(src BarSource, settings Settings, logger *slog.Logger) (*Driver, error) {
	d := &Driver{src: src, log: logger}
	if err := d.Reconfigure(settings); err != nil {
		return nil, err
	}
	return d, nil
}

// OnBar (re)calculates one bar from the source.
func (d *Driver) OnBar(bar int) error {
	snap, ok := d.src.Candle(bar)
	if !ok {
		snap = levels.BarSnapshot{Bar: bar}
	}
	snap.Bar = bar

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.agg.Ingest(snap)
}

// Reconfigure discards all aggregator state and replays bars 0..CurrentBar
// under the new settings. Invalid settings leave the driver untouched.
func (d *Driver) Reconfigure(s Settings) error {
	mode, err := ParseDrawMode(string(s.DrawMode))
	if err != nil {
		return err
	}
	s.DrawMode = mode
	if err := s.Validate(); err != nil {
		return err
	}
	agg, err := levels.NewAggregator(s.Params)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.replay(agg); err != nil {
		return err
	}
	d.settings = s
	d.agg = agg
	d.generation = uuid.NewString()
	if d.log != nil {
		st := agg.Stats()
		d.log.Info("indicator recalculated",
			slog.String("generation", d.generation),
			slog.String("cluster_type", string(s.ClusterType)),
			slog.Int("current_bar", st.CurrentBar),
			slog.Int("ranked", st.Ranked),
		)
	}
	return nil
}

// Recalculate replays history under the current settings.
func (d *Driver) Recalculate() error {
	return d.Reconfigure(d.Settings())
}

func (d *Driver) replay(agg *levels.Aggregator) error {
	last := d.src.CurrentBar()
	for bar := 0; bar <= last; bar++ {
		snap, ok := d.src.Candle(bar)
		if !ok {
			snap = levels.BarSnapshot{}
		}
		snap.Bar = bar
		if err := agg.Ingest(snap); err != nil {
			return fmt.Errorf("replay bar %d: %w", bar, err)
		}
	}
	return nil
}

func (d *Driver) TopK() []levels.LevelEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.agg.TopK()
}

// Ranking returns the top K together with the generation that produced it.
func (d *Driver) Ranking() (generation string, top []levels.LevelEntry) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.generation, d.agg.TopK()
}

func (d *Driver) Settings() Settings {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.settings
}

// Generation identifies the current aggregator state; it changes on every reconfigure.
func (d *Driver) Generation() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.generation
}

func (d *Driver) Stats() levels.Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.agg.Stats()
}

func (d *Driver) CurrentBar() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.agg.CurrentBar()
}

// Headline reports the bar's strongest single level under the active cluster type.
func (d *Driver) Headline(bar int) (Headline, bool) {
	snap, ok := d.src.Candle(bar)
	if !ok {
		return Headline{}, false
	}
	d.mu.RLock()
	ex := d.agg.Extractor()
	d.mu.RUnlock()

	v, p, ok := ex.Headline(snap)
	if !ok {
		return Headline{}, false
	}
	return Headline{Bar: bar, Value: v, Price: p}, true
}

// NewEntries returns the entries of next whose price is absent from prev.
func NewEntries(prev, next []levels.LevelEntry) []levels.LevelEntry {
	seen := make(map[string]struct{}, len(prev))
	for _, e := range prev {
		seen[e.Price.String()] = struct{}{}
	}
	var out []levels.LevelEntry
	for _, e := range next {
		if _, ok := seen[e.Price.String()]; !ok {
			out = append(out, e)
		}
	}
	return out
}
