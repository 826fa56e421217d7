package levels

import (
	"github.com/edwingeng/deque/v2"
	"github.com/shopspring/decimal"
)

// barBucket holds one bar's raw contributions keyed by canonical price.
type barBucket struct {
	bar    int
	values map[string]decimal.Decimal
	prices map[string]decimal.Decimal
}

func newBarBucket(bar int, samples []Sample) *barBucket {
	b := &barBucket{
		bar:    bar,
		values: make(map[string]decimal.Decimal, len(samples)),
		prices: make(map[string]decimal.Decimal, len(samples)),
	}
	for _, s := range samples {
		k := priceKey(s.Price)
		b.values[k] = b.values[k].Add(s.Value)
		if _, ok := b.prices[k]; !ok {
			b.prices[k] = s.Price
		}
	}
	return b
}

// rawSet keeps the per-bar raw entries in ingestion order. Bars only ever
// arrive at the back (or replace the back), and expire from the front.
type rawSet struct {
	order *deque.Deque[*barBucket]
	byBar map[int]*barBucket
}

func newRawSet() *rawSet {
	return &rawSet{
		order: deque.NewDeque[*barBucket](),
		byBar: make(map[int]*barBucket),
	}
}

func (r *rawSet) Len() int { return r.order.Len() }

func (r *rawSet) push(b *barBucket) {
	r.order.PushBack(b)
	r.byBar[b.bar] = b
}

// popIfLast removes and returns the bucket for bar when it is the newest one.
func (r *rawSet) popIfLast(bar int) (*barBucket, bool) {
	last, ok := r.order.Back()
	if !ok || last.bar != bar {
		return nil, false
	}
	r.order.PopBack()
	delete(r.byBar, bar)
	return last, true
}

// value returns the raw contribution at (bar, key), zero when absent.
func (r *rawSet) value(bar int, key string) decimal.Decimal {
	b, ok := r.byBar[bar]
	if !ok {
		return decimal.Zero
	}
	return b.values[key]
}

// pruneBefore drops every bucket with bar < cutoff.
func (r *rawSet) pruneBefore(cutoff int) int {
	n := 0
	for {
		front, ok := r.order.Front()
		if !ok || front.bar >= cutoff {
			return n
		}
		r.order.PopFront()
		delete(r.byBar, front.bar)
		n++
	}
}
