package levels

import (
	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

const btreeDegree = 32

// rankedBefore orders entries by value descending, then newer bar, then lower price.
// (bar, price) is unique inside a window, so the order is strict.
func rankedBefore(a, b LevelEntry) bool {
	if c := a.Value.Cmp(b.Value); c != 0 {
		return c > 0
	}
	if a.Bar != b.Bar {
		return a.Bar > b.Bar
	}
	return a.Price.Cmp(b.Price) < 0
}

func lookupBefore(a, b LevelEntry) bool {
	if a.Bar != b.Bar {
		return a.Bar < b.Bar
	}
	return a.Price.Cmp(b.Price) < 0
}

// window holds the aggregated entries under two views that every mutation
// updates together: ranking (for top-K scans) and lookup keyed by (bar, price).
// Entries are never changed in place; a new value is a remove followed by an insert.
type window struct {
	ranking *btree.BTreeG[LevelEntry]
	lookup  *btree.BTreeG[LevelEntry]
}

func newWindow() *window {
	return &window{
		ranking: btree.NewG[LevelEntry](btreeDegree, rankedBefore),
		lookup:  btree.NewG[LevelEntry](btreeDegree, lookupBefore),
	}
}

func (w *window) Len() int { return w.lookup.Len() }

func (w *window) get(bar int, price decimal.Decimal) (LevelEntry, bool) {
	return w.lookup.Get(LevelEntry{Bar: bar, Price: price})
}

func (w *window) put(e LevelEntry) {
	w.remove(e)
	w.lookup.ReplaceOrInsert(e)
	w.ranking.ReplaceOrInsert(e)
}

// remove drops the entry at e's (bar, price), whatever value it currently holds.
func (w *window) remove(e LevelEntry) bool {
	old, ok := w.lookup.Delete(e)
	if !ok {
		return false
	}
	w.ranking.Delete(old)
	return true
}

// pruneBefore drops every entry with bar < cutoff and reports how many went.
func (w *window) pruneBefore(cutoff int) int {
	var expired []LevelEntry
	w.lookup.Ascend(func(e LevelEntry) bool {
		if e.Bar >= cutoff {
			return false
		}
		expired = append(expired, e)
		return true
	})
	for _, e := range expired {
		w.lookup.Delete(e)
		w.ranking.Delete(e)
	}
	return len(expired)
}

// Ascend walks entries in ranking order.
func (w *window) Ascend(fn func(LevelEntry) bool) {
	w.ranking.Ascend(btree.ItemIteratorG[LevelEntry](fn))
}
