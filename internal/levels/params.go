package levels

import "fmt"

// Params configures an Aggregator. Any change requires a full reset and replay.
type Params struct {
	LookbackBars      int         `json:"lookbackBars"`
	BarsToUse         int         `json:"barsToUse"`
	ChunkSize         int         `json:"pricesLevels"`
	TopItems          int         `json:"topItems"`
	ExcludeRecentBars int         `json:"excludeRecentBars"`
	ClusterType       ClusterType `json:"clusterType"`
}

func DefaultParams() Params {
	return Params{
		LookbackBars: 100,
		BarsToUse:    1,
		ChunkSize:    1,
		TopItems:     10,
		ClusterType:  ClusterVolume,
	}
}

func (p Params) Validate() error {
	if p.LookbackBars < 1 {
		return fmt.Errorf("%w: lookback bars must be >=1, got %d", ErrInvalidConfiguration, p.LookbackBars)
	}
	if p.BarsToUse < 1 {
		return fmt.Errorf("%w: bars to use must be >=1, got %d", ErrInvalidConfiguration, p.BarsToUse)
	}
	if p.ChunkSize < 1 {
		return fmt.Errorf("%w: prices levels must be >=1, got %d", ErrInvalidConfiguration, p.ChunkSize)
	}
	if p.TopItems < 1 {
		return fmt.Errorf("%w: top items must be >=1, got %d", ErrInvalidConfiguration, p.TopItems)
	}
	if p.ExcludeRecentBars < 0 || p.ExcludeRecentBars >= p.LookbackBars {
		return fmt.Errorf("%w: exclude recent bars must be in [0,%d), got %d", ErrInvalidConfiguration, p.LookbackBars, p.ExcludeRecentBars)
	}
	if _, err := NewExtractor(p.ClusterType); err != nil {
		return err
	}
	return nil
}
