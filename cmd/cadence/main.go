package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/nizamiq/cadence/internal/adapters/registry"
	"github.com/nizamiq/cadence/internal/adapters/storage/sqlite"
	"github.com/nizamiq/cadence/internal/adapters/tracker/linear"
	"github.com/nizamiq/cadence/internal/config"
	"github.com/nizamiq/cadence/internal/domain"
	"github.com/nizamiq/cadence/internal/planner"
	"github.com/nizamiq/cadence/internal/platform"
	"github.com/nizamiq/cadence/internal/report"
	"github.com/spf13/cobra"
)

// version stores the build version, injected at link time.
var version = "dev"

// Exit codes for the command surface.
const (
	exitOK            = 0
	exitUnsatisfiable = 1
	exitExternalError = 2
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:]))
}

// run executes the requested command flow and maps failures onto exit codes.
func run(ctx context.Context, args []string) int {
	root := newRootCommand()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitCodeFor(err)
	}
	return exitOK
}

// exitCodeFor maps the error taxonomy onto exit codes: constraint failures
// exit 1, everything else (external services, configuration, storage) exit 2.
func exitCodeFor(err error) int {
	var unsat *planner.ConstraintUnsatisfiableError
	if errors.As(err, &unsat) {
		return exitUnsatisfiable
	}
	return exitExternalError
}

// rootOptions holds the persistent flag values.
type rootOptions struct {
	configPath string
	dbPath     string
	devMode    bool
	override   bool
}

// newRootCommand builds the cadence command tree.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "cadence",
		Short:         "Capacity-aware cycle planning for the issue tracker",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config TOML")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "path to plan store database")
	root.PersistentFlags().BoolVar(&opts.devMode, "dev", false, "use dev mode paths (cadence-dev)")
	root.PersistentFlags().BoolVar(&opts.override, "release-sprint", false, "force release-sprint mode for this run")

	root.AddCommand(newPlanCommand(opts))
	root.AddCommand(newStatusCommand(opts))
	root.AddCommand(newValidateCommand(opts))
	return root
}

// newPlanCommand builds the plan command.
func newPlanCommand(opts *rootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compose and commit the plan for the active cycle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer env.close()

			plan, err := env.service.Plan(cmd.Context(), planner.PlanOptions{DryRun: dryRun})
			if err != nil {
				env.logger.Error("planning run failed", "err", err)
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report.Render(plan))
			if plan.ReasonCode != "" {
				return &planner.ConstraintUnsatisfiableError{ReasonCode: plan.ReasonCode}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute the plan without committing it")
	return cmd
}

// newStatusCommand builds the status command.
func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report cycle snapshot and progress metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer env.close()

			status, err := env.service.Status(cmd.Context())
			if err != nil {
				env.logger.Error("status fetch failed", "err", err)
				return err
			}
			printStatus(cmd, status)
			return nil
		},
	}
}

// newValidateCommand builds the validate command.
func newValidateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Dry-run the planning constraint checks without emitting a plan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer env.close()

			if err := env.service.Validate(cmd.Context()); err != nil {
				env.logger.Error("validation failed", "err", err)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "constraints satisfiable")
			return nil
		},
	}
}

// printStatus writes the status report in a plain key/value layout.
func printStatus(cmd *cobra.Command, status planner.StatusReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "cycle: %s (%s)\n", status.Cycle.Name, status.Cycle.ID)
	fmt.Fprintf(out, "completion_rate: %.2f\n", status.Cycle.CompletionRate())
	fmt.Fprintf(out, "average_velocity: %.1f\n", status.Cycle.AverageVelocity())
	fmt.Fprintf(out, "wip_health: %.2f\n", status.Wip.OverallScore)
	for _, rec := range status.Wip.Recommendations {
		fmt.Fprintf(out, "wip_recommendation: %s\n", rec)
	}
	fmt.Fprintf(out, "severe_aged_items: %d\n", status.Aging.SevereCount)
	fmt.Fprintf(out, "completion_ratio: %.2f\n", status.Progress.CompletionRatio)
	fmt.Fprintf(out, "wip_burn_rate: %.2f\n", status.Progress.WipBurnRate)
	fmt.Fprintf(out, "average_cycle_time_days: %.1f\n", status.Progress.AverageCycleTime)
	fmt.Fprintf(out, "overall_health: %.2f\n", status.Progress.OverallHealth)
}

// environment bundles the wired collaborators for one command invocation.
type environment struct {
	service *planner.Service
	logger  *charmLog.Logger
	repo    *sqlite.Repository
}

// close releases held resources.
func (e *environment) close() {
	if e.repo != nil {
		if err := e.repo.Close(); err != nil {
			e.logger.Warn("plan store close failed", "err", err)
		}
	}
}

// bootstrap resolves paths, loads configuration and wires the service.
// Configuration is validated before any tracker credentials are touched.
func bootstrap(opts *rootOptions) (*environment, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: "cadence", DevMode: opts.devMode})
	if err != nil {
		return nil, err
	}

	configPath, dbPath, err := resolvePaths(opts, paths, os.Getenv)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if opts.dbPath != "" {
		cfg.Database.Path = opts.dbPath
	}

	logger := newLogger(cfg.Logging.Level)
	logger.Info("startup configuration resolved", "config_path", configPath, "db_path", cfg.Database.Path, "dev_mode", opts.devMode)

	plannerCfg := plannerConfigFrom(cfg)
	if opts.override {
		plannerCfg.ReleaseSprintOverride = true
	}
	if err := plannerCfg.Validate(); err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(os.Getenv("LINEAR_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("LINEAR_API_KEY is not set")
	}
	teamKey := strings.TrimSpace(os.Getenv("LINEAR_TEAM_ID"))
	if teamKey == "" {
		teamKey = cfg.Tracker.TeamKey
	}
	if teamKey == "" {
		return nil, errors.New("tracker team key is not configured (set tracker.team_key or LINEAR_TEAM_ID)")
	}

	tracker := linear.NewClient(apiKey, teamKey).WithEndpoint(cfg.Tracker.Endpoint)
	featureRegistry := registry.NewFileRegistry(cfg.Registry.Path)

	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("plan store open failed", "db_path", cfg.Database.Path, "err", err)
		return nil, fmt.Errorf("open plan store: %w", err)
	}
	logger.Info("plan store ready", "db_path", cfg.Database.Path)

	service := planner.NewService(tracker, featureRegistry, repo, plannerCfg, logger, uuid.NewString, time.Now)
	return &environment{service: service, logger: logger, repo: repo}, nil
}

// resolvePaths picks the config and database locations: explicit flags win,
// then environment overrides, then the platform defaults. The default config
// directory is created so a first run has somewhere to drop a config file.
func resolvePaths(opts *rootOptions, paths platform.Paths, getenv func(string) string) (string, string, error) {
	configPath := opts.configPath
	if configPath == "" {
		if envPath := strings.TrimSpace(getenv("CADENCE_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
			if err := config.EnsureConfigDir(configPath); err != nil {
				return "", "", fmt.Errorf("ensure config dir: %w", err)
			}
		}
	}
	dbPath := opts.dbPath
	if dbPath == "" {
		if envPath := strings.TrimSpace(getenv("CADENCE_DB_PATH")); envPath != "" {
			dbPath = envPath
		} else {
			dbPath = paths.DBPath
		}
	}
	return configPath, dbPath, nil
}

// newLogger builds the runtime logger at the configured level.
func newLogger(level string) *charmLog.Logger {
	logger := charmLog.NewWithOptions(os.Stderr, charmLog.Options{
		ReportTimestamp: true,
		Prefix:          "cadence",
	})
	switch strings.TrimSpace(strings.ToLower(level)) {
	case "debug":
		logger.SetLevel(charmLog.DebugLevel)
	case "warn":
		logger.SetLevel(charmLog.WarnLevel)
	case "error":
		logger.SetLevel(charmLog.ErrorLevel)
	default:
		logger.SetLevel(charmLog.InfoLevel)
	}
	return logger
}

// plannerConfigFrom maps file configuration onto the planner thresholds.
func plannerConfigFrom(cfg config.Config) planner.Config {
	p := cfg.Planning
	return planner.Config{
		WipLimits: domain.WipLimits{
			Features:     p.WipLimits.Features,
			Fixes:        p.WipLimits.Fixes,
			Enhancements: p.WipLimits.Enhancements,
			Docs:         p.WipLimits.Docs,
		},
		Aging: domain.AgingThresholds{
			WarningDays:  p.Aging.WarningDays,
			CriticalDays: p.Aging.CriticalDays,
			SevereDays:   p.Aging.SevereDays,
			StaleDays:    p.Aging.StaleDays,
		},
		Triggers: domain.ReleaseTriggers{
			DaysToRelease:       p.Triggers.DaysToRelease,
			PartialFeatureRatio: p.Triggers.PartialFeatureRatio,
			WipHealthScore:      p.Triggers.WipHealthScore,
			SevereAgedItems:     p.Triggers.SevereAgedItems,
		},
		DebtRatio: domain.DebtRatioConfig{
			BaseRatio: p.DebtRatio.Base,
			MinRatio:  p.DebtRatio.Min,
			MaxRatio:  p.DebtRatio.Max,
		},
		Capacity: domain.CapacityConfig{
			TeamHours:            p.Capacity.TeamHours,
			FocusFactor:          p.Capacity.FocusFactor,
			ComplexityMultiplier: p.Capacity.ComplexityMultiplier,
			BufferFactor:         p.Capacity.BufferFactor,
		},
		Progress: domain.ProgressConfig{WindowDays: p.Progress.WindowDays},
		Initiation: domain.InitiationBands{
			CriticalHealth: p.Initiation.CriticalHealth,
			WarningHealth:  p.Initiation.WarningHealth,
			CriticalCap:    p.Initiation.CriticalCap,
			WarningCap:     p.Initiation.WarningCap,
		},
		DebtTolerance:         p.DebtTolerance,
		ReleaseAt:             cfg.ReleaseAt(),
		ReleaseSprintOverride: p.SprintFlag,
	}
}
