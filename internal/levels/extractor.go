package levels

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// ClusterType selects which per-level metric is ranked.
type ClusterType string

const (
	ClusterVolume         ClusterType = "volume"
	ClusterBuyAggression  ClusterType = "buy_aggression"
	ClusterSellAggression ClusterType = "sell_aggression"
)

// ParseClusterType accepts the canonical names plus the legacy
// Volume/DeltaPositive/DeltaNegative spelling.
func ParseClusterType(s string) (ClusterType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "volume":
		return ClusterVolume, nil
	case "buy_aggression", "buy", "ask", "deltapositive":
		return ClusterBuyAggression, nil
	case "sell_aggression", "sell", "bid", "deltanegative":
		return ClusterSellAggression, nil
	}
	return "", fmt.Errorf("%w: unknown cluster type %q", ErrInvalidConfiguration, s)
}

// Extractor turns a bar snapshot into ranked samples for one ClusterType.
// The zero value is not usable; build one with NewExtractor.
type Extractor struct {
	kind   ClusterType
	metric func(PriceLevel) decimal.Decimal
}

// NewExtractor validates kind once so per-bar extraction never fails.
func NewExtractor(kind ClusterType) (Extractor, error) {
	switch kind {
	case ClusterVolume:
		return Extractor{kind: kind, metric: func(l PriceLevel) decimal.Decimal { return l.TotalVolume }}, nil
	case ClusterBuyAggression:
		return Extractor{kind: kind, metric: func(l PriceLevel) decimal.Decimal { return l.VolumeAtAsk }}, nil
	case ClusterSellAggression:
		return Extractor{kind: kind, metric: func(l PriceLevel) decimal.Decimal { return l.VolumeAtBid }}, nil
	}
	return Extractor{}, fmt.Errorf("%w: unknown cluster type %q", ErrInvalidConfiguration, kind)
}

func (e Extractor) Kind() ClusterType { return e.kind }

// Headline returns the largest single-level value of the bar and its price.
// ok is false for an empty snapshot; callers treat that as no contribution.
func (e Extractor) Headline(snap BarSnapshot) (value, price decimal.Decimal, ok bool) {
	for _, lvl := range snap.Levels {
		v := e.metric(lvl)
		if !ok || v.GreaterThan(value) {
			value, price, ok = v, lvl.Price, true
		}
	}
	if !ok {
		return decimal.Zero, decimal.Decimal{}, false
	}
	return value, price, true
}

// Levels returns one sample per traded price, sorted by value descending.
// With chunkSize > 1 each sample is the sum over a trailing window of chunkSize
// adjacent levels ending at (and attributed to) that level's price.
func (e Extractor) Levels(snap BarSnapshot, chunkSize int) []Sample {
	if len(snap.Levels) == 0 {
		return nil
	}
	if chunkSize < 1 {
		chunkSize = 1
	}

	out := make([]Sample, 0, len(snap.Levels))
	running := decimal.Zero
	for i, lvl := range snap.Levels {
		running = running.Add(e.metric(lvl))
		if i >= chunkSize {
			running = running.Sub(e.metric(snap.Levels[i-chunkSize]))
		}
		out = append(out, Sample{Price: lvl.Price, Value: running})
	}

	slices.SortStableFunc(out, func(a, b Sample) int {
		if c := b.Value.Cmp(a.Value); c != 0 {
			return c
		}
		return a.Price.Cmp(b.Price)
	})
	return out
}
