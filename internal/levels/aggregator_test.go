package levels

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
)

// vol builds a snapshot whose levels carry only total volume, as "price=value" pairs.
func vol(bar int, pv ...string) BarSnapshot {
	s := BarSnapshot{Bar: bar}
	for i := 0; i+1 < len(pv); i += 2 {
		s.Levels = append(s.Levels, PriceLevel{Price: d(pv[i]), TotalVolume: d(pv[i+1])})
	}
	return s
}

func mustAggregator(t *testing.T, lookback, barsToUse, k int) *Aggregator {
	t.Helper()
	p := DefaultParams()
	p.LookbackBars, p.BarsToUse, p.TopItems = lookback, barsToUse, k
	a, err := NewAggregator(p)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func mustIngest(t *testing.T, a *Aggregator, snaps ...BarSnapshot) {
	t.Helper()
	for _, s := range snaps {
		if err := a.Ingest(s); err != nil {
			t.Fatalf("ingest bar %d: %v", s.Bar, err)
		}
	}
}

func checkEntry(t *testing.T, e LevelEntry, bar int, price, value string) {
	t.Helper()
	if e.Bar != bar || !e.Price.Equal(d(price)) || !e.Value.Equal(d(value)) {
		t.Fatalf("entry got (bar=%d,price=%s,value=%s) want (bar=%d,price=%s,value=%s)",
			e.Bar, e.Price, e.Value, bar, price, value)
	}
}

func sameEntries(a, b []LevelEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Bar != b[i].Bar || !a[i].Price.Equal(b[i].Price) || !a[i].Value.Equal(b[i].Value) {
			return false
		}
	}
	return true
}

func TestTopKWithoutCrossBarSummation(t *testing.T) {
	a := mustAggregator(t, 3, 1, 2)
	mustIngest(t, a, vol(0, "100", "5"), vol(1, "100", "9"), vol(2, "100", "3"))

	top := a.TopK()
	if len(top) != 2 {
		t.Fatalf("got %d entries want 2", len(top))
	}
	checkEntry(t, top[0], 1, "100", "9")
	checkEntry(t, top[1], 0, "100", "5")
}

func TestBarsToUseSumsTrailingBars(t *testing.T) {
	a := mustAggregator(t, 10, 2, 5)
	mustIngest(t, a, vol(0, "100", "4"), vol(1, "100", "6"))

	v, ok := a.Value(1, d("100"))
	if !ok || !v.Equal(d("10")) {
		t.Fatalf("value at bar 1 got (%s,%v) want 10", v, ok)
	}
	// The older entry is superseded, not removed.
	if v, ok := a.Value(0, d("100")); !ok || !v.Equal(d("4")) {
		t.Fatalf("value at bar 0 got (%s,%v) want 4", v, ok)
	}
	checkEntry(t, a.TopK()[0], 1, "100", "10")
}

func TestSumIsDecimalExact(t *testing.T) {
	a := mustAggregator(t, 20, 3, 5)
	mustIngest(t, a,
		vol(0, "50.25", "0.1"),
		vol(1, "50.25", "0.2", "50.5", "1"),
		vol(2, "50.250", "0.3"),
		vol(3, "50.25", "0.7"),
	)
	if v, _ := a.Value(2, d("50.25")); !v.Equal(d("0.6")) {
		t.Fatalf("bar 2 sum got %s want 0.6", v)
	}
	// Bar 0 has left the three-bar sub-window by bar 3.
	if v, _ := a.Value(3, d("50.25")); !v.Equal(d("1.2")) {
		t.Fatalf("bar 3 sum got %s want 1.2", v)
	}
}

func TestReingestSameBarIsIdempotent(t *testing.T) {
	a := mustAggregator(t, 6, 3, 10)
	for bar := 0; bar < 8; bar++ {
		mustIngest(t, a, vol(bar, "10", fmt.Sprint(bar+1), "11", "2"))
	}
	before := a.Entries()
	stats := a.Stats()

	mustIngest(t, a, vol(7, "10", "8", "11", "2"))
	if !sameEntries(before, a.Entries()) {
		t.Fatalf("entries changed after re-ingest:\n%v\n%v", before, a.Entries())
	}
	if a.Stats() != stats {
		t.Fatalf("stats changed after re-ingest: %+v vs %+v", stats, a.Stats())
	}
}

func TestReingestReplacesContribution(t *testing.T) {
	a := mustAggregator(t, 10, 2, 10)
	mustIngest(t, a, vol(0, "100", "4"), vol(1, "100", "6", "101", "9"))
	mustIngest(t, a, vol(1, "100", "1"))

	if v, _ := a.Value(1, d("100")); !v.Equal(d("5")) {
		t.Fatalf("bar 1 got %s want 5", v)
	}
	if _, ok := a.Value(1, d("101")); ok {
		t.Fatal("price 101 should be gone after re-ingest")
	}
}

func TestOutOfOrderIngestionFails(t *testing.T) {
	a := mustAggregator(t, 10, 2, 3)
	for bar := 0; bar <= 5; bar++ {
		mustIngest(t, a, vol(bar, "1", "1"))
	}
	if err := a.Ingest(vol(3, "1", "1")); !errors.Is(err, ErrOutOfOrderIngestion) {
		t.Fatalf("got %v want ErrOutOfOrderIngestion", err)
	}
	if err := a.Ingest(vol(-1)); !errors.Is(err, ErrOutOfOrderIngestion) {
		t.Fatalf("negative bar got %v", err)
	}
}

func TestStaleBarIsSkipped(t *testing.T) {
	a := mustAggregator(t, 2, 1, 3)
	for bar := 0; bar <= 10; bar++ {
		mustIngest(t, a, vol(bar, "1", "1"))
	}
	before := a.Entries()
	if err := a.Ingest(vol(7, "1", "100")); err != nil {
		t.Fatalf("stale bar should be a no-op, got %v", err)
	}
	if !sameEntries(before, a.Entries()) || a.CurrentBar() != 10 {
		t.Fatal("stale bar mutated state")
	}
	if a.Stats().StaleSkips != 1 {
		t.Fatalf("stale skips got %d want 1", a.Stats().StaleSkips)
	}
}

func TestEmptySnapshotAdvancesBar(t *testing.T) {
	a := mustAggregator(t, 5, 1, 3)
	mustIngest(t, a, vol(0, "100", "5"), vol(1))
	if a.CurrentBar() != 1 {
		t.Fatalf("current bar got %d want 1", a.CurrentBar())
	}
	if top := a.TopK(); len(top) != 1 {
		t.Fatalf("got %d entries want 1", len(top))
	}
}

func TestTopKStaysInsideLookback(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := mustAggregator(t, 12, 3, 5)
	for bar := 0; bar < 300; bar++ {
		s := BarSnapshot{Bar: bar}
		base := 4000 + rng.Intn(20)
		for i := 0; i < 1+rng.Intn(6); i++ {
			s.Levels = append(s.Levels, PriceLevel{
				Price:       d(fmt.Sprintf("%d.%02d", base+i, rng.Intn(4)*25)),
				TotalVolume: d(fmt.Sprint(rng.Intn(500))),
			})
		}
		mustIngest(t, a, s)

		for _, e := range a.TopK() {
			if e.Bar < bar-12+1 || e.Bar > bar {
				t.Fatalf("bar %d: entry at bar %d outside lookback", bar, e.Bar)
			}
		}
		// Compaction lags by at most barsToUse bars.
		for _, e := range a.Entries() {
			if e.Bar < bar-12-1-3 {
				t.Fatalf("bar %d: expired entry at bar %d still held", bar, e.Bar)
			}
		}
		if a.Stats().RawBars > 2*3+2 {
			t.Fatalf("bar %d: %d raw bars held", bar, a.Stats().RawBars)
		}
	}
}

func TestCompactionRunsEveryBarsToUsePlusOneBars(t *testing.T) {
	a := mustAggregator(t, 10, 3, 5)
	for bar := 0; bar < 20; bar++ {
		mustIngest(t, a, vol(bar, "100", "1"))
		// Re-ingesting the newest bar never triggers an extra run.
		mustIngest(t, a, vol(bar, "100", "2"))
		if want := bar/4 + 1; a.Stats().Compactions != want {
			t.Fatalf("bar %d: %d compactions want %d", bar, a.Stats().Compactions, want)
		}
	}
	if got := a.Stats().Compactions; got != 5 {
		t.Fatalf("20 bars: %d compactions want 5", got)
	}
}

func TestReconfigureRejectsInvalidParams(t *testing.T) {
	a := mustAggregator(t, 5, 1, 3)
	mustIngest(t, a, vol(0, "1", "1"))

	bad := []Params{
		{LookbackBars: 0, BarsToUse: 1, ChunkSize: 1, TopItems: 1, ClusterType: ClusterVolume},
		{LookbackBars: 5, BarsToUse: 0, ChunkSize: 1, TopItems: 1, ClusterType: ClusterVolume},
		{LookbackBars: 5, BarsToUse: 1, ChunkSize: 0, TopItems: 1, ClusterType: ClusterVolume},
		{LookbackBars: 5, BarsToUse: 1, ChunkSize: 1, TopItems: 0, ClusterType: ClusterVolume},
		{LookbackBars: 5, BarsToUse: 1, ChunkSize: 1, TopItems: 1, ExcludeRecentBars: 5, ClusterType: ClusterVolume},
		{LookbackBars: 5, BarsToUse: 1, ChunkSize: 1, TopItems: 1, ClusterType: "delta"},
	}
	for i, p := range bad {
		if err := a.Reconfigure(p); !errors.Is(err, ErrInvalidConfiguration) {
			t.Fatalf("case %d: got %v want ErrInvalidConfiguration", i, err)
		}
	}
	// A rejected configuration leaves the previous state alone.
	if a.CurrentBar() != 0 || len(a.Entries()) != 1 {
		t.Fatal("state changed after rejected reconfigure")
	}

	p := a.Params()
	p.ClusterType = ClusterBuyAggression
	if err := a.Reconfigure(p); err != nil {
		t.Fatal(err)
	}
	if a.CurrentBar() != -1 || len(a.Entries()) != 0 {
		t.Fatal("reconfigure should discard state")
	}
}
