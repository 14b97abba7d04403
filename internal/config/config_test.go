package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/cadence.db")
	if cfg.Database.Path != "/tmp/cadence.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("unexpected log level %q", cfg.Logging.Level)
	}
	if cfg.Planning.DebtRatio.Base != 0.30 || cfg.Planning.DebtRatio.Min != 0.10 || cfg.Planning.DebtRatio.Max != 0.50 {
		t.Fatalf("unexpected debt ratio defaults %+v", cfg.Planning.DebtRatio)
	}
	if cfg.Planning.Capacity.TeamHours != 40 || cfg.Planning.Capacity.FocusFactor != 0.7 {
		t.Fatalf("unexpected capacity defaults %+v", cfg.Planning.Capacity)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate, got %v", err)
	}
	if !cfg.ReleaseAt().IsZero() {
		t.Fatal("expected no release scheduled by default")
	}
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"), Default("/tmp/cadence.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Planning.Aging.SevereDays != 30 {
		t.Fatalf("expected defaults to survive, got %+v", cfg.Planning.Aging)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[logging]
level = "debug"

[tracker]
team_key = "CAD"

[planning]
debt_tolerance = 0.1
release_date = "2026-09-15"
release_sprint_override = true

[planning.capacity]
team_hours = 60.0
focus_factor = 0.8
complexity_multiplier = 1.2
buffer_factor = 0.1

[planning.aging]
warning_days = 10
critical_days = 20
severe_days = 40
stale_days = 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, Default("/tmp/cadence.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Tracker.TeamKey != "CAD" {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if cfg.Planning.Capacity.TeamHours != 60 || cfg.Planning.Aging.SevereDays != 40 {
		t.Fatalf("unexpected planning overrides %+v", cfg.Planning)
	}
	if !cfg.Planning.SprintFlag || cfg.Planning.DebtTolerance != 0.1 {
		t.Fatalf("unexpected planning flags %+v", cfg.Planning)
	}
	// Untouched sections keep their defaults.
	if cfg.Planning.WipLimits.Fixes != 5 {
		t.Fatalf("expected untouched defaults to survive, got %+v", cfg.Planning.WipLimits)
	}

	want := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	if !cfg.ReleaseAt().Equal(want) {
		t.Fatalf("expected release at %v, got %v", want, cfg.ReleaseAt())
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"malformed toml":  "planning = [",
		"bad log level":   "[logging]\nlevel = \"loud\"",
		"bad date":        "[planning]\nrelease_date = \"soon\"",
		"missing db path": "[database]\npath = \"\"",
	}
	for name, content := range cases {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if _, err := Load(path, Default("/tmp/cadence.db")); err == nil {
			t.Fatalf("%s: expected load failure", name)
		}
	}
}

func TestEnsureConfigDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := EnsureConfigDir(path); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("expected directory to exist, got %v", err)
	}
}
