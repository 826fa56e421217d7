package levels

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Aggregator accumulates per-price values across the trailing barsToUse bars
// and ranks them inside a rolling lookback window.
//
// Bars must be ingested in non-decreasing order. Re-ingesting the newest bar
// replaces its contribution. An Aggregator is not safe for concurrent use.
type Aggregator struct {
	params    Params
	extractor Extractor

	win       *window
	raw       *rawSet
	compactor *Compactor

	currentBar int
	staleSkips int
}

func NewAggregator(p Params) (*Aggregator, error) {
	a := &Aggregator{}
	if err := a.Reconfigure(p); err != nil {
		return nil, err
	}
	return a, nil
}

// Reconfigure validates p and replaces all state. The caller replays history afterwards.
func (a *Aggregator) Reconfigure(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	ex, err := NewExtractor(p.ClusterType)
	if err != nil {
		return err
	}
	a.params = p
	a.extractor = ex
	a.Reset()
	return nil
}

// Reset discards every entry, keeping the current parameters.
func (a *Aggregator) Reset() {
	a.win = newWindow()
	a.raw = newRawSet()
	a.compactor = NewCompactor(a.params.LookbackBars, a.params.BarsToUse)
	a.currentBar = -1
	a.staleSkips = 0
}

func (a *Aggregator) Params() Params       { return a.params }
func (a *Aggregator) Extractor() Extractor { return a.extractor }
func (a *Aggregator) CurrentBar() int      { return a.currentBar }

// Ingest merges one bar into the window. Bars too old to affect the window
// are skipped without error; an older bar that is still relevant fails with
// ErrOutOfOrderIngestion.
func (a *Aggregator) Ingest(snap BarSnapshot) error {
	bar := snap.Bar
	if bar < 0 {
		return fmt.Errorf("%w: negative bar %d", ErrOutOfOrderIngestion, bar)
	}
	if a.currentBar >= 0 && a.currentBar-a.params.LookbackBars-a.params.BarsToUse >= bar {
		a.staleSkips++
		return nil
	}
	if bar < a.currentBar {
		return fmt.Errorf("%w: bar %d after bar %d", ErrOutOfOrderIngestion, bar, a.currentBar)
	}

	if bar == a.currentBar {
		a.drop(bar)
	}

	bucket := newBarBucket(bar, a.extractor.Levels(snap, a.params.ChunkSize))
	a.raw.push(bucket)

	for key, v := range bucket.values {
		sum := v
		for b := bar - 1; b > bar-a.params.BarsToUse; b-- {
			sum = sum.Add(a.raw.value(b, key))
		}
		a.win.put(LevelEntry{Bar: bar, Price: bucket.prices[key], Value: sum})
	}

	a.currentBar = bar
	if a.compactor.Due(bar) {
		a.compactor.Compact(bar, a.win, a.raw)
	}
	return nil
}

// drop removes bar's raw bucket and its aggregated entries.
func (a *Aggregator) drop(bar int) {
	bucket, ok := a.raw.popIfLast(bar)
	if !ok {
		return
	}
	for _, p := range bucket.prices {
		a.win.remove(LevelEntry{Bar: bar, Price: p})
	}
}

// TopK ranks the current window with the configured K and exclusions.
func (a *Aggregator) TopK() []LevelEntry {
	return SelectTopK(a.win, a.currentBar, a.params.LookbackBars, a.params.TopItems, a.params.ExcludeRecentBars)
}

// Value returns the aggregated value attributed to (bar, price).
func (a *Aggregator) Value(bar int, price decimal.Decimal) (decimal.Decimal, bool) {
	e, ok := a.win.get(bar, price)
	if !ok {
		return decimal.Zero, false
	}
	return e.Value, true
}

// Entries returns every entry still held, in ranking order.
func (a *Aggregator) Entries() []LevelEntry {
	out := make([]LevelEntry, 0, a.win.Len())
	a.win.Ascend(func(e LevelEntry) bool {
		out = append(out, e)
		return true
	})
	return out
}

func (a *Aggregator) Stats() Stats {
	return Stats{
		CurrentBar:  a.currentBar,
		Ranked:      a.win.Len(),
		RawBars:     a.raw.Len(),
		StaleSkips:  a.staleSkips,
		Compactions: a.compactor.Runs(),
	}
}
