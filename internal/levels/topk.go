package levels

// RankedView is anything that can be walked in ranking order: value
// descending, newer bar first on ties, then lower price.
type RankedView interface {
	Ascend(fn func(LevelEntry) bool)
}

// SelectTopK returns at most k entries whose bar lies in
// [currentBar-lookbackBars+1, currentBar-excludeRecent], best first.
// It only reads from view.
func SelectTopK(view RankedView, currentBar, lookbackBars, k, excludeRecent int) []LevelEntry {
	if k <= 0 || lookbackBars <= 0 {
		return nil
	}
	lo := currentBar - lookbackBars + 1
	hi := currentBar - excludeRecent
	if hi < lo {
		return nil
	}

	out := make([]LevelEntry, 0, k)
	view.Ascend(func(e LevelEntry) bool {
		if e.Bar >= lo && e.Bar <= hi {
			out = append(out, e)
		}
		return len(out) < k
	})
	return out
}
