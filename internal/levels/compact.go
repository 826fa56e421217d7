package levels

// Compactor prunes entries that fell behind the rolling windows. It runs once
// every barsToUse+1 bars rather than on every bar.
type Compactor struct {
	lookbackBars int
	barsToUse    int
	lastRun      int
	runs         int
}

func NewCompactor(lookbackBars, barsToUse int) *Compactor {
	return &Compactor{lookbackBars: lookbackBars, barsToUse: barsToUse, lastRun: -1}
}

func (c *Compactor) Due(bar int) bool {
	return c.lastRun < 0 || bar-c.lastRun >= c.barsToUse+1
}

// Compact drops ranking entries older than bar-lookbackBars-1 and raw buckets
// older than bar-barsToUse-1. The btree views stay sorted through deletes, so
// the ranking needs no rebuild afterwards.
func (c *Compactor) Compact(bar int, w *window, raw *rawSet) (ranked, rawBars int) {
	ranked = w.pruneBefore(bar - c.lookbackBars - 1)
	rawBars = raw.pruneBefore(bar - c.barsToUse - 1)
	c.lastRun = bar
	c.runs++
	return ranked, rawBars
}

func (c *Compactor) Runs() int { return c.runs }
