package indicator

import (
	"github.com/shopspring/decimal"

	"level-indicator/internal/levels"
)

// Marker is one horizontal line anchored at (Bar, Price) and drawn to EndBar.
type Marker struct {
	Rank    int             `json:"rank"`
	Bar     int             `json:"bar"`
	EndBar  int             `json:"endBar"`
	Price   decimal.Decimal `json:"price"`
	Value   decimal.Decimal `json:"value"`
	Touched bool            `json:"touched"`
}

// Markers turns the current top-K into line geometry for the rendering layer.
func (d *Driver) Markers() []Marker {
	d.mu.RLock()
	top := d.agg.TopK()
	current := d.agg.CurrentBar()
	s := d.settings
	d.mu.RUnlock()

	out := make([]Marker, 0, len(top))
	for i, e := range top {
		m := Marker{Rank: i, Bar: e.Bar, Price: e.Price, Value: e.Value}
		switch s.DrawMode {
		case DrawUntilTouched:
			m.EndBar = current
			if bar, ok := d.firstTouch(e.Price, e.Bar+1, current); ok {
				m.EndBar, m.Touched = bar, true
			}
		default:
			m.EndBar = min(current, e.Bar+s.LineLength)
		}
		out = append(out, m)
	}
	return out
}

// firstTouch finds the first bar in [from, to] whose traded range contains price.
func (d *Driver) firstTouch(price decimal.Decimal, from, to int) (int, bool) {
	for bar := from; bar <= to; bar++ {
		snap, ok := d.src.Candle(bar)
		if !ok || len(snap.Levels) == 0 {
			continue
		}
		if touches(snap, price) {
			return bar, true
		}
	}
	return 0, false
}

func touches(snap levels.BarSnapshot, price decimal.Decimal) bool {
	low := snap.Levels[0].Price
	high := snap.Levels[len(snap.Levels)-1].Price
	return price.GreaterThanOrEqual(low) && price.LessThanOrEqual(high)
}
