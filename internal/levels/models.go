package levels

import (
	"github.com/shopspring/decimal"
)

// PriceLevel is one traded price inside a bar.
type PriceLevel struct {
	Price       decimal.Decimal `json:"price"`
	VolumeAtAsk decimal.Decimal `json:"volumeAtAsk"` // aggressive buys lifting the ask
	VolumeAtBid decimal.Decimal `json:"volumeAtBid"` // aggressive sells hitting the bid
	TotalVolume decimal.Decimal `json:"totalVolume"`
}

// BarSnapshot is the read-only view of one candle handed to the aggregator.
// Levels are ordered by ascending price.
type BarSnapshot struct {
	Bar    int          `json:"bar"`
	Levels []PriceLevel `json:"levels"`
}

// Sample is a (price, value) pair produced by an Extractor for one bar.
type Sample struct {
	Price decimal.Decimal `json:"price"`
	Value decimal.Decimal `json:"value"`
}

// LevelEntry is a ranked value attributed to a price at a bar.
type LevelEntry struct {
	Bar   int             `json:"bar"`
	Price decimal.Decimal `json:"price"`
	Value decimal.Decimal `json:"value"`
}

// Stats describes the aggregator's current footprint.
type Stats struct {
	CurrentBar  int `json:"currentBar"`
	Ranked      int `json:"ranked"`
	RawBars     int `json:"rawBars"`
	StaleSkips  int `json:"staleSkips"`
	Compactions int `json:"compactions"`
}

// priceKey normalizes a Decimal so numerically equal prices share a key
// ("100.00" and "100" both become "100").
func priceKey(p decimal.Decimal) string {
	return p.String()
}
