package main

import (
	"testing"

	"github.com/shopspring/decimal"

	"level-indicator/internal/history"
	"level-indicator/internal/indicator"
	"level-indicator/internal/levels"
)

func putBar(t *testing.T, st *history.Store, bar int, price, ask, bid string) {
	t.Helper()
	a, b := decimal.RequireFromString(ask), decimal.RequireFromString(bid)
	err := st.Put(levels.BarSnapshot{Bar: bar, Levels: []levels.PriceLevel{{
		Price:       decimal.RequireFromString(price),
		VolumeAtAsk: a,
		VolumeAtBid: b,
		TotalVolume: a.Add(b),
	}}})
	if err != nil {
		t.Fatal(err)
	}
}

func TestLevelWatchRebaselinesAfterReconfigure(t *testing.T) {
	st := history.NewStore()
	putBar(t, st, 0, "100", "1", "9")
	putBar(t, st, 1, "101", "8", "1")

	settings := indicator.DefaultSettings()
	settings.TopItems = 1
	drv, err := indicator.New(st, settings, nil)
	if err != nil {
		t.Fatal(err)
	}

	var watch levelWatch
	if got := watch.fresh(drv.Ranking()); len(got) != 0 {
		t.Fatalf("first call should only set the baseline, got %+v", got)
	}

	// Bar 2 takes the top spot: one new level.
	putBar(t, st, 2, "102", "20", "0")
	if err := drv.OnBar(2); err != nil {
		t.Fatal(err)
	}
	got := watch.fresh(drv.Ranking())
	if len(got) != 1 || !got[0].Price.Equal(decimal.NewFromInt(102)) {
		t.Fatalf("want level 102 as new, got %+v", got)
	}

	// Switching to sell aggression reshuffles the ranking to price 100.
	// That is not new activity.
	settings.ClusterType = levels.ClusterSellAggression
	if err := drv.Reconfigure(settings); err != nil {
		t.Fatal(err)
	}
	putBar(t, st, 3, "103", "0", "1")
	if err := drv.OnBar(3); err != nil {
		t.Fatal(err)
	}
	if got := watch.fresh(drv.Ranking()); len(got) != 0 {
		t.Fatalf("settings change should not alert, got %+v", got)
	}

	putBar(t, st, 4, "104", "0", "50")
	if err := drv.OnBar(4); err != nil {
		t.Fatal(err)
	}
	got = watch.fresh(drv.Ranking())
	if len(got) != 1 || !got[0].Price.Equal(decimal.NewFromInt(104)) {
		t.Fatalf("want level 104 as new after the baseline, got %+v", got)
	}
}
