package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is the full on-disk configuration surface.
type Config struct {
	Database Database `toml:"database"`
	Logging  Logging  `toml:"logging"`
	Tracker  Tracker  `toml:"tracker"`
	Registry Registry `toml:"registry"`
	Planning Planning `toml:"planning"`
}

// Database configures the plan store.
type Database struct {
	Path string `toml:"path"`
}

// Logging configures the runtime logger.
type Logging struct {
	Level string `toml:"level"` // debug | info | warn | error
}

// Tracker configures the issue tracker connection. The API key is always read
// from the environment, never from the file.
type Tracker struct {
	Endpoint string `toml:"endpoint"`
	TeamKey  string `toml:"team_key"`
	Project  string `toml:"project"`
}

// Registry configures the feature-status registry source.
type Registry struct {
	Path string `toml:"path"`
}

// Planning carries every planning threshold.
type Planning struct {
	WipLimits     WipLimits       `toml:"wip_limits"`
	Aging         Aging           `toml:"aging"`
	Triggers      Triggers        `toml:"release_triggers"`
	DebtRatio     DebtRatio       `toml:"debt_ratio"`
	Capacity      Capacity        `toml:"capacity"`
	Progress      Progress        `toml:"progress"`
	Initiation    Initiation      `toml:"initiation"`
	DebtTolerance float64         `toml:"debt_tolerance"`
	ReleaseDate   string          `toml:"release_date"` // YYYY-MM-DD, empty when none scheduled
	SprintFlag    bool            `toml:"release_sprint_override"`
}

// WipLimits holds per-category WIP limits.
type WipLimits struct {
	Features     int `toml:"features"`
	Fixes        int `toml:"fixes"`
	Enhancements int `toml:"enhancements"`
	Docs         int `toml:"docs"`
}

// Aging holds staleness thresholds in days.
type Aging struct {
	WarningDays  int `toml:"warning_days"`
	CriticalDays int `toml:"critical_days"`
	SevereDays   int `toml:"severe_days"`
	StaleDays    int `toml:"stale_days"`
}

// Triggers holds the release-sprint trigger thresholds.
type Triggers struct {
	DaysToRelease       int     `toml:"days_to_release"`
	PartialFeatureRatio float64 `toml:"partial_feature_ratio"`
	WipHealthScore      float64 `toml:"wip_health_score"`
	SevereAgedItems     int     `toml:"severe_aged_items"`
}

// DebtRatio holds the base debt split and its clamp bounds.
type DebtRatio struct {
	Base float64 `toml:"base"`
	Min  float64 `toml:"min"`
	Max  float64 `toml:"max"`
}

// Capacity holds team capacity knobs.
type Capacity struct {
	TeamHours            float64 `toml:"team_hours"`
	FocusFactor          float64 `toml:"focus_factor"`
	ComplexityMultiplier float64 `toml:"complexity_multiplier"`
	BufferFactor         float64 `toml:"buffer_factor"`
}

// Progress holds the trailing progress window.
type Progress struct {
	WindowDays int `toml:"window_days"`
}

// Initiation holds the health-band boundaries for initiation throttling.
type Initiation struct {
	CriticalHealth float64 `toml:"critical_health"`
	WarningHealth  float64 `toml:"warning_health"`
	CriticalCap    int     `toml:"critical_cap"`
	WarningCap     int     `toml:"warning_cap"`
}

// Default returns the configuration defaults rooted at dbPath.
func Default(dbPath string) Config {
	return Config{
		Database: Database{Path: dbPath},
		Logging:  Logging{Level: "info"},
		Tracker: Tracker{
			Endpoint: "https://api.linear.app/graphql",
		},
		Planning: Planning{
			WipLimits: WipLimits{Features: 3, Fixes: 5, Enhancements: 2, Docs: 2},
			Aging:     Aging{WarningDays: 14, CriticalDays: 21, SevereDays: 30, StaleDays: 7},
			Triggers: Triggers{
				DaysToRelease:       7,
				PartialFeatureRatio: 0.20,
				WipHealthScore:      0.6,
				SevereAgedItems:     2,
			},
			DebtRatio: DebtRatio{Base: 0.30, Min: 0.10, Max: 0.50},
			Capacity: Capacity{
				TeamHours:            40,
				FocusFactor:          0.7,
				ComplexityMultiplier: 1.0,
				BufferFactor:         0.15,
			},
			Progress: Progress{WindowDays: 14},
			Initiation: Initiation{
				CriticalHealth: 0.6,
				WarningHealth:  0.8,
				CriticalCap:    1,
				WarningCap:     2,
			},
			DebtTolerance: 0.05,
		},
	}
}

// Load reads TOML at path over the provided defaults. A missing file is not
// an error; a malformed or invalid one is.
func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks structural validity of the file: the deeper range checks on
// planning thresholds run in the planner before any tracker call.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path is required")
	}
	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if strings.TrimSpace(c.Tracker.Endpoint) == "" {
		return errors.New("tracker.endpoint is required")
	}
	if c.Planning.ReleaseDate != "" {
		if _, err := time.Parse("2006-01-02", c.Planning.ReleaseDate); err != nil {
			return fmt.Errorf("invalid planning.release_date: %w", err)
		}
	}
	return nil
}

// ReleaseAt parses the configured release date; zero when none is scheduled.
func (c Config) ReleaseAt() time.Time {
	if c.Planning.ReleaseDate == "" {
		return time.Time{}
	}
	ts, err := time.Parse("2006-01-02", c.Planning.ReleaseDate)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// EnsureConfigDir creates the directory holding path.
func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
