package history

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"level-indicator/internal/levels"
)

// BarRow is one price level of one bar in a bar history file.
// Decimals are stored as strings to keep them exact. A row with an empty
// price marks a bar that traded nothing.
type BarRow struct {
	Bar         int64  `parquet:"bar"`
	Price       string `parquet:"price"`
	VolumeAtAsk string `parquet:"volume_at_ask"`
	VolumeAtBid string `parquet:"volume_at_bid"`
	TotalVolume string `parquet:"total_volume"`
}

// LevelRow is one ranked level in an export file.
type LevelRow struct {
	Rank  int64  `parquet:"rank"`
	Bar   int64  `parquet:"bar"`
	Price string `parquet:"price"`
	Value string `parquet:"value"`
}

const batchSize = 1000

// ReadBars loads a bar history file. Rows may come in any order; the result
// holds one snapshot per bar from 0 to the highest bar, levels ascending by price.
func ReadBars(path string) ([]levels.BarSnapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := parquet.NewGenericReader[BarRow](file)
	defer reader.Close()

	byBar := map[int][]levels.PriceLevel{}
	maxBar := -1
	rows := make([]BarRow, batchSize)
	for {
		n, err := reader.Read(rows)
		for _, r := range rows[:n] {
			bar := int(r.Bar)
			if bar < 0 {
				return nil, fmt.Errorf("negative bar %d", bar)
			}
			maxBar = max(maxBar, bar)
			if r.Price == "" {
				continue
			}
			lvl, perr := r.level()
			if perr != nil {
				return nil, fmt.Errorf("bar %d: %w", r.Bar, perr)
			}
			byBar[bar] = append(byBar[bar], lvl)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	out := make([]levels.BarSnapshot, maxBar+1)
	for bar := range out {
		lv := byBar[bar]
		sort.Slice(lv, func(i, j int) bool { return lv[i].Price.LessThan(lv[j].Price) })
		out[bar] = levels.BarSnapshot{Bar: bar, Levels: lv}
	}
	return out, nil
}

func (r BarRow) level() (levels.PriceLevel, error) {
	var (
		lvl levels.PriceLevel
		err error
	)
	if lvl.Price, err = decimal.NewFromString(r.Price); err != nil {
		return lvl, fmt.Errorf("price %q: %w", r.Price, err)
	}
	if lvl.VolumeAtAsk, err = parseOptional(r.VolumeAtAsk); err != nil {
		return lvl, fmt.Errorf("volume_at_ask: %w", err)
	}
	if lvl.VolumeAtBid, err = parseOptional(r.VolumeAtBid); err != nil {
		return lvl, fmt.Errorf("volume_at_bid: %w", err)
	}
	if r.TotalVolume == "" {
		lvl.TotalVolume = lvl.VolumeAtAsk.Add(lvl.VolumeAtBid)
	} else if lvl.TotalVolume, err = decimal.NewFromString(r.TotalVolume); err != nil {
		return lvl, fmt.Errorf("total_volume: %w", err)
	}
	return lvl, nil
}

func parseOptional(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// WriteBars writes snapshots as a bar history file. Empty bars get a marker
// row so a quiet tail of the session still counts toward the bar index.
func WriteBars(path string, snaps []levels.BarSnapshot) error {
	rows := make([]BarRow, 0, len(snaps))
	for _, s := range snaps {
		if len(s.Levels) == 0 {
			rows = append(rows, BarRow{Bar: int64(s.Bar)})
			continue
		}
		for _, l := range s.Levels {
			rows = append(rows, BarRow{
				Bar:         int64(s.Bar),
				Price:       l.Price.String(),
				VolumeAtAsk: l.VolumeAtAsk.String(),
				VolumeAtBid: l.VolumeAtBid.String(),
				TotalVolume: l.TotalVolume.String(),
			})
		}
	}
	return writeRows(path, rows)
}

// WriteLevels exports ranked entries, best first.
func WriteLevels(path string, entries []levels.LevelEntry) error {
	rows := make([]LevelRow, len(entries))
	for i, e := range entries {
		rows[i] = LevelRow{
			Rank:  int64(i),
			Bar:   int64(e.Bar),
			Price: e.Price.String(),
			Value: e.Value.String(),
		}
	}
	return writeRows(path, rows)
}

func writeRows[T any](path string, rows []T) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeBatches(file, rows); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func writeBatches[T any](w io.Writer, rows []T) error {
	writer := parquet.NewGenericWriter[T](w)
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		if _, err := writer.Write(rows[start:end]); err != nil {
			return err
		}
	}
	return writer.Close()
}
