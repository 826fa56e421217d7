package levels

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func lvl(price, ask, bid string) PriceLevel {
	a, b := d(ask), d(bid)
	return PriceLevel{Price: d(price), VolumeAtAsk: a, VolumeAtBid: b, TotalVolume: a.Add(b)}
}

func threeLevels() BarSnapshot {
	return BarSnapshot{Bar: 0, Levels: []PriceLevel{
		lvl("100", "3", "2"), // total 5
		lvl("101", "1", "6"), // total 7
		lvl("102", "4", "0"), // total 4
	}}
}

func checkSamples(t *testing.T, got []Sample, want ...string) {
	t.Helper()
	if len(got) != len(want)/2 {
		t.Fatalf("got %d samples want %d: %v", len(got), len(want)/2, got)
	}
	for i := range got {
		if !got[i].Price.Equal(d(want[2*i])) || !got[i].Value.Equal(d(want[2*i+1])) {
			t.Fatalf("sample %d got (%s,%s) want (%s,%s)", i, got[i].Price, got[i].Value, want[2*i], want[2*i+1])
		}
	}
}

func TestVolumeLevelsUnchunked(t *testing.T) {
	ex, err := NewExtractor(ClusterVolume)
	if err != nil {
		t.Fatal(err)
	}
	checkSamples(t, ex.Levels(threeLevels(), 1), "101", "7", "100", "5", "102", "4")
}

func TestChunkedLevelsUseTrailingWindow(t *testing.T) {
	vol, _ := NewExtractor(ClusterVolume)
	checkSamples(t, vol.Levels(threeLevels(), 2), "101", "12", "102", "11", "100", "5")

	sell, _ := NewExtractor(ClusterSellAggression)
	checkSamples(t, sell.Levels(threeLevels(), 2), "101", "8", "102", "6", "100", "2")

	buy, _ := NewExtractor(ClusterBuyAggression)
	checkSamples(t, buy.Levels(threeLevels(), 3), "102", "8", "101", "4", "100", "3")
}

func TestLevelsTieBreaksOnLowerPrice(t *testing.T) {
	ex, _ := NewExtractor(ClusterVolume)
	snap := BarSnapshot{Levels: []PriceLevel{lvl("10.25", "2", "0"), lvl("10.5", "1", "1")}}
	checkSamples(t, ex.Levels(snap, 1), "10.25", "2", "10.5", "2")
}

func TestHeadline(t *testing.T) {
	ex, _ := NewExtractor(ClusterVolume)
	v, p, ok := ex.Headline(threeLevels())
	if !ok || !v.Equal(d("7")) || !p.Equal(d("101")) {
		t.Fatalf("headline got (%s,%s,%v) want (7,101,true)", v, p, ok)
	}
	buy, _ := NewExtractor(ClusterBuyAggression)
	if _, p, _ := buy.Headline(threeLevels()); !p.Equal(d("102")) {
		t.Fatalf("buy headline price got %s want 102", p)
	}
}

func TestEmptySnapshot(t *testing.T) {
	ex, _ := NewExtractor(ClusterSellAggression)
	if got := ex.Levels(BarSnapshot{Bar: 3}, 4); len(got) != 0 {
		t.Fatalf("expected no samples, got %v", got)
	}
	v, _, ok := ex.Headline(BarSnapshot{Bar: 3})
	if ok || !v.IsZero() {
		t.Fatalf("empty headline got (%s,%v)", v, ok)
	}
}

func TestUnknownClusterType(t *testing.T) {
	if _, err := NewExtractor("delta"); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("got %v want ErrInvalidConfiguration", err)
	}
	if _, err := ParseClusterType("nope"); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("got %v want ErrInvalidConfiguration", err)
	}
	for in, want := range map[string]ClusterType{
		"Volume":            ClusterVolume,
		"DeltaPositive":     ClusterBuyAggression,
		"DeltaNegative":     ClusterSellAggression,
		" sell_aggression ": ClusterSellAggression,
	} {
		got, err := ParseClusterType(in)
		if err != nil || got != want {
			t.Fatalf("ParseClusterType(%q) got (%s,%v) want %s", in, got, err, want)
		}
	}
}
