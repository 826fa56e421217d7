package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"level-indicator/internal/indicator"
	"level-indicator/internal/levels"
)

// PathEnv overrides the config file path.
const PathEnv = "LEVEL_INDICATOR_CONFIG"

type Config struct {
	Port                 int             `yaml:"port"`
	LogLevel             string          `yaml:"log_level"`
	Symbol               string          `yaml:"symbol"`
	BarsFile             string          `yaml:"bars_file"`
	ReplayIntervalMs     int             `yaml:"replay_interval_ms"`
	AlertCooldownSeconds int             `yaml:"alert_cooldown_seconds"`
	Indicator            IndicatorConfig `yaml:"indicator"`
}

// IndicatorConfig mirrors the indicator's property grid.
type IndicatorConfig struct {
	LookbackBars      int    `yaml:"lookback_bars"`
	BarsToUse         int    `yaml:"bars_to_use"`
	PricesLevels      int    `yaml:"prices_levels"`
	TopItems          int    `yaml:"top_items"`
	ClusterType       string `yaml:"cluster_type"`
	DrawMode          string `yaml:"draw_mode"`
	LineLength        int    `yaml:"line_length"`
	ExcludeRecentBars int    `yaml:"exclude_recent_bars"`
}

func defaults() Config {
	return Config{
		Port:                 8086,
		LogLevel:             "info",
		Symbol:               "ES",
		BarsFile:             "./data/bars.parquet",
		ReplayIntervalMs:     250,
		AlertCooldownSeconds: 30,
		Indicator: IndicatorConfig{
			LookbackBars: 100,
			BarsToUse:    1,
			PricesLevels: 1,
			TopItems:     10,
			ClusterType:  string(levels.ClusterVolume),
			DrawMode:     string(indicator.DrawFixed),
			LineLength:   50,
		},
	}
}

// Path returns the config path from the environment (after loading .env), or def.
func Path(def string) string {
	_ = godotenv.Load() // best-effort: .env is optional
	if p := strings.TrimSpace(os.Getenv(PathEnv)); p != "" {
		return p
	}
	return def
}

func Load(path string) (Config, error) {
	cfg := defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("invalid port")
	}
	if c.ReplayIntervalMs < 1 {
		return errors.New("replay_interval_ms must be >=1")
	}
	if c.AlertCooldownSeconds < 0 {
		return errors.New("alert_cooldown_seconds must be >=0")
	}
	if _, err := c.Indicator.Settings(); err != nil {
		return fmt.Errorf("indicator: %w", err)
	}
	return nil
}

// Settings converts the YAML block into validated indicator settings.
func (ic IndicatorConfig) Settings() (indicator.Settings, error) {
	kind, err := levels.ParseClusterType(ic.ClusterType)
	if err != nil {
		return indicator.Settings{}, err
	}
	mode, err := indicator.ParseDrawMode(ic.DrawMode)
	if err != nil {
		return indicator.Settings{}, err
	}
	s := indicator.Settings{
		Params: levels.Params{
			LookbackBars:      ic.LookbackBars,
			BarsToUse:         ic.BarsToUse,
			ChunkSize:         ic.PricesLevels,
			TopItems:          ic.TopItems,
			ExcludeRecentBars: ic.ExcludeRecentBars,
			ClusterType:       kind,
		},
		LineLength: ic.LineLength,
		DrawMode:   mode,
	}
	return s, s.Validate()
}

func NewLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}
