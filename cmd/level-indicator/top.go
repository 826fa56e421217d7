package main

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"level-indicator/internal/history"
	"level-indicator/internal/indicator"
	"level-indicator/internal/levels"
)

type topOptions struct {
	barsFile    string
	outFile     string
	at          int
	clusterType string
	drawMode    string
	settings    indicator.Settings
}

func newTopCmd() *cobra.Command {
	opts := topOptions{settings: indicator.DefaultSettings(), at: -1}
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Rank levels from a bar history file and print the top K",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTop(opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.barsFile, "bars", "b", "", "bar history parquet file (required)")
	f.StringVarP(&opts.outFile, "out", "o", "", "optional parquet file for the ranked levels")
	f.IntVar(&opts.at, "at", opts.at, "evaluate at this bar (default: last bar)")
	f.IntVar(&opts.settings.LookbackBars, "lookback", opts.settings.LookbackBars, "lookback window in bars")
	f.IntVar(&opts.settings.BarsToUse, "bars-to-use", opts.settings.BarsToUse, "bars summed per price before ranking")
	f.IntVar(&opts.settings.ChunkSize, "prices-levels", opts.settings.ChunkSize, "adjacent price levels merged per sample")
	f.IntVarP(&opts.settings.TopItems, "top", "k", opts.settings.TopItems, "number of levels to keep")
	f.IntVar(&opts.settings.ExcludeRecentBars, "exclude-recent", opts.settings.ExcludeRecentBars, "skip levels from the newest N bars")
	f.IntVar(&opts.settings.LineLength, "line-length", opts.settings.LineLength, "marker length in bars (fixed draw mode)")
	f.StringVar(&opts.clusterType, "cluster", string(levels.ClusterVolume), "volume | buy_aggression | sell_aggression")
	f.StringVar(&opts.drawMode, "draw-mode", string(indicator.DrawFixed), "fixed | until_touched")
	_ = cmd.MarkFlagRequired("bars")
	return cmd
}

// loadTop replays the bars file (cut at --at) into a fresh driver.
func loadTop(opts topOptions) (*indicator.Driver, *history.Store, error) {
	kind, err := levels.ParseClusterType(opts.clusterType)
	if err != nil {
		return nil, nil, err
	}
	mode, err := indicator.ParseDrawMode(opts.drawMode)
	if err != nil {
		return nil, nil, err
	}
	s := opts.settings
	s.ClusterType, s.DrawMode = kind, mode

	bars, err := history.ReadBars(opts.barsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load bars: %w", err)
	}
	if opts.at >= 0 && opts.at < len(bars) {
		bars = bars[:opts.at+1]
	}
	store := history.NewStore()
	for _, b := range bars {
		if err := store.Put(b); err != nil {
			return nil, nil, err
		}
	}

	drv, err := indicator.New(store, s, nil)
	if err != nil {
		return nil, nil, err
	}
	return drv, store, nil
}

func runTop(opts topOptions) error {
	drv, store, err := loadTop(opts)
	if err != nil {
		return err
	}
	s := drv.Settings()
	markers := drv.Markers()

	stats := drv.Stats()
	pterm.Info.Printfln("%d bars, current bar %d, %s, lookback %d, bars-to-use %d",
		store.Len(), stats.CurrentBar, s.ClusterType, s.LookbackBars, s.BarsToUse)

	data := pterm.TableData{{"Rank", "Bar", "End", "Price", "Value", "Touched"}}
	for _, m := range markers {
		data = append(data, []string{
			strconv.Itoa(m.Rank + 1),
			strconv.Itoa(m.Bar),
			strconv.Itoa(m.EndBar),
			m.Price.String(),
			m.Value.String(),
			strconv.FormatBool(m.Touched),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	if opts.outFile != "" {
		if err := history.WriteLevels(opts.outFile, drv.TopK()); err != nil {
			return fmt.Errorf("write %s: %w", opts.outFile, err)
		}
		pterm.Success.Printfln("wrote %d levels to %s", len(markers), opts.outFile)
	}
	return nil
}
