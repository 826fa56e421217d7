package indicator

import (
	"fmt"
	"strings"

	"level-indicator/internal/levels"
)

// DrawMode decides where a marker line ends.
type DrawMode string

const (
	DrawFixed        DrawMode = "fixed"
	DrawUntilTouched DrawMode = "until_touched"
)

func ParseDrawMode(s string) (DrawMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fixed":
		return DrawFixed, nil
	case "until_touched", "till_touch", "touch":
		return DrawUntilTouched, nil
	}
	return "", fmt.Errorf("%w: unknown draw mode %q", levels.ErrInvalidConfiguration, s)
}

// Settings is the full per-instance configuration. Changing any field resets
// the aggregator and replays history.
type Settings struct {
	levels.Params
	LineLength int      `json:"lineLength"`
	DrawMode   DrawMode `json:"drawMode"`
}

func DefaultSettings() Settings {
	return Settings{
		Params:     levels.DefaultParams(),
		LineLength: 50,
		DrawMode:   DrawFixed,
	}
}

func (s Settings) Validate() error {
	if err := s.Params.Validate(); err != nil {
		return err
	}
	if s.LineLength < 1 {
		return fmt.Errorf("%w: line length must be >=1, got %d", levels.ErrInvalidConfiguration, s.LineLength)
	}
	if _, err := ParseDrawMode(string(s.DrawMode)); err != nil {
		return err
	}
	return nil
}
