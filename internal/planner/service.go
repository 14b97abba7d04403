package planner

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/nizamiq/cadence/internal/domain"
	"github.com/nizamiq/cadence/internal/report"
	"golang.org/x/sync/errgroup"
)

// Conservative defaults used when an analysis phase cannot compute. Planning
// quality degrades gracefully; the capacity bound in selection is unaffected.
const (
	fallbackWipHealth = 0.7
)

// Default run timing knobs.
const (
	defaultFetchTimeout  = 30 * time.Second
	defaultRunBudget     = 10 * time.Minute
	defaultFetchAttempts = 3
)

// Config carries every tunable threshold for a planning run. All values have
// defaults; Validate fails fast before any tracker call.
type Config struct {
	WipLimits     domain.WipLimits
	Aging         domain.AgingThresholds
	Triggers      domain.ReleaseTriggers
	DebtRatio     domain.DebtRatioConfig
	Capacity      domain.CapacityConfig
	Progress      domain.ProgressConfig
	Initiation    domain.InitiationBands
	DebtTolerance float64

	ReleaseAt             time.Time
	ReleaseSprintOverride bool

	FetchTimeout  time.Duration
	RunBudget     time.Duration
	FetchAttempts int
}

// DefaultConfig returns the default planning configuration.
func DefaultConfig() Config {
	return Config{
		WipLimits:     domain.DefaultWipLimits(),
		Aging:         domain.DefaultAgingThresholds(),
		Triggers:      domain.DefaultReleaseTriggers(),
		DebtRatio:     domain.DefaultDebtRatioConfig(),
		Capacity:      domain.DefaultCapacityConfig(),
		Progress:      domain.DefaultProgressConfig(),
		Initiation:    domain.DefaultInitiationBands(),
		DebtTolerance: 0.05,
		FetchTimeout:  defaultFetchTimeout,
		RunBudget:     defaultRunBudget,
		FetchAttempts: defaultFetchAttempts,
	}
}

// Validate checks every threshold group and wraps the first failure in a
// ConfigurationError naming the offending field group.
func (c Config) Validate() error {
	checks := []struct {
		field string
		err   error
	}{
		{"wip_limits", c.WipLimits.Validate()},
		{"aging", c.Aging.Validate()},
		{"release_triggers", c.Triggers.Validate()},
		{"debt_ratio", c.DebtRatio.Validate()},
		{"capacity", c.Capacity.Validate()},
		{"progress", c.Progress.Validate()},
		{"initiation", c.Initiation.Validate()},
	}
	for _, check := range checks {
		if check.err != nil {
			return &ConfigurationError{Field: check.field, Err: check.err}
		}
	}
	if c.DebtTolerance < 0 || c.DebtTolerance > 0.5 {
		return &ConfigurationError{Field: "debt_tolerance", Err: domain.ErrInvalidRatioBound}
	}
	if c.FetchAttempts <= 0 {
		return &ConfigurationError{Field: "fetch_attempts", Err: domain.ErrInvalidLimit}
	}
	return nil
}

// Service orchestrates one planning run: fetch one immutable snapshot,
// fan out the pure analyzers, run the sequential planning stages, and hand the
// plan to the store and tracker.
type Service struct {
	tracker  Tracker
	registry FeatureRegistry
	store    PlanStore
	cfg      Config
	logger   *log.Logger
	idGen    IDGenerator
	clock    Clock
}

// NewService constructs a planning service. A nil logger, idGen or clock get
// safe defaults.
func NewService(tracker Tracker, registry FeatureRegistry, store PlanStore, cfg Config, logger *log.Logger, idGen IDGenerator, clock Clock) *Service {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.RunBudget <= 0 {
		cfg.RunBudget = defaultRunBudget
	}
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = defaultFetchAttempts
	}
	return &Service{
		tracker:  tracker,
		registry: registry,
		store:    store,
		cfg:      cfg,
		logger:   logger,
		idGen:    idGen,
		clock:    clock,
	}
}

// PlanOptions controls one planning run.
type PlanOptions struct {
	// DryRun computes the plan without taking the cycle lock, persisting, or
	// annotating the tracker.
	DryRun bool
}

// analysis is the fork-join output of the parallel phase.
type analysis struct {
	wip      domain.WipReport
	aging    domain.AgingReport
	release  domain.ReleaseContext
	classes  map[string]domain.Classification
	features []domain.FeatureRecord
}

// Plan executes one full planning run against a fresh snapshot.
func (s *Service) Plan(ctx context.Context, opts PlanOptions) (domain.Plan, error) {
	if err := s.cfg.Validate(); err != nil {
		return domain.Plan{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunBudget)
	defer cancel()

	now := s.clock().UTC()
	snapshot, err := s.fetchSnapshot(ctx)
	if err != nil {
		return domain.Plan{}, &PlanningAbortedError{Cause: err}
	}
	s.logSkipped(snapshot)

	an, err := s.analyze(ctx, snapshot, now)
	if err != nil {
		return domain.Plan{}, &PlanningAbortedError{Cause: err}
	}

	plan := s.compose(snapshot, an, now)
	s.logger.Info("plan composed",
		"run_id", plan.RunID,
		"cycle", plan.CycleID,
		"mode", plan.Mode,
		"selected", len(plan.Selected),
		"capacity_used", plan.CapacityUsed,
		"debt_ratio", plan.AchievedDebtRatio,
	)
	if opts.DryRun {
		return plan, nil
	}
	if err := s.commit(ctx, plan); err != nil {
		return domain.Plan{}, err
	}
	return plan, nil
}

// StatusReport is the read-only cycle health view for the status command.
type StatusReport struct {
	Cycle    domain.CycleSnapshot
	Progress domain.ProgressMetrics
	Wip      domain.WipReport
	Aging    domain.AgingReport
}

// Status fetches a fresh snapshot and reports cycle and progress health
// without planning anything.
func (s *Service) Status(ctx context.Context) (StatusReport, error) {
	if err := s.cfg.Validate(); err != nil {
		return StatusReport{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunBudget)
	defer cancel()

	now := s.clock().UTC()
	snapshot, err := s.fetchSnapshot(ctx)
	if err != nil {
		return StatusReport{}, &PlanningAbortedError{Cause: err}
	}
	avg := snapshot.Cycle.AverageVelocity()
	return StatusReport{
		Cycle:    snapshot.Cycle,
		Progress: domain.AnalyzeProgress(snapshot.AllItems(), now, snapshot.Cycle.ProjectedVelocity(now), avg, s.cfg.Progress),
		Wip:      s.analyzeWIPSafe(snapshot.AllItems()),
		Aging:    s.analyzeAgingSafe(snapshot.AllItems(), now),
	}, nil
}

// Validate dry-runs the constraint checks only: configuration, capacity and
// eligible backlog. No plan is emitted and nothing is persisted.
func (s *Service) Validate(ctx context.Context) error {
	plan, err := s.Plan(ctx, PlanOptions{DryRun: true})
	if err != nil {
		return err
	}
	if plan.ReasonCode != "" {
		return &ConstraintUnsatisfiableError{ReasonCode: plan.ReasonCode}
	}
	return nil
}

// fetchSnapshot pulls one snapshot from the tracker, retrying transient
// failures with exponential backoff up to the configured attempt count. Each
// attempt is bounded by the per-call timeout.
func (s *Service) fetchSnapshot(ctx context.Context) (Snapshot, error) {
	var snapshot Snapshot
	attempt := 0
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.cfg.FetchAttempts-1))
	err := backoff.Retry(func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
		snap, err := s.tracker.FetchSnapshot(callCtx)
		if err != nil {
			s.logger.Warn("snapshot fetch failed", "attempt", attempt, "err", err)
			return err
		}
		snapshot = snap
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return Snapshot{}, &ExternalServiceError{Service: "tracker", Err: err}
	}
	s.logger.Info("snapshot fetched",
		"cycle", snapshot.Cycle.ID,
		"cycle_items", len(snapshot.CycleItems),
		"backlog", len(snapshot.Backlog),
		"skipped", len(snapshot.Skipped),
	)
	return snapshot, nil
}

// analyze runs the parallel analysis phase over the immutable snapshot. The
// four analyzers read disjoint views of read-only data, so they fan out and
// join with no locking.
func (s *Service) analyze(ctx context.Context, snapshot Snapshot, now time.Time) (analysis, error) {
	var an analysis
	all := snapshot.AllItems()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		an.wip = s.analyzeWIPSafe(all)
		return nil
	})
	g.Go(func() error {
		an.aging = s.analyzeAgingSafe(all, now)
		return nil
	})
	g.Go(func() error {
		classes := make(map[string]domain.Classification, len(all))
		for _, item := range all {
			classes[item.ID] = domain.Classify(item)
		}
		an.classes = classes
		return nil
	})
	g.Go(func() error {
		features, err := s.listFeatures(gctx)
		if err != nil {
			return err
		}
		an.features = features
		manual := s.cfg.ReleaseSprintOverride
		an.release = domain.BuildReleaseContext(s.cfg.ReleaseAt, features, manual, now)
		return nil
	})
	if err := g.Wait(); err != nil {
		return analysis{}, err
	}
	return an, nil
}

// compose runs the sequential planning stages over the analysis outputs and
// assembles the final plan.
func (s *Service) compose(snapshot Snapshot, an analysis, now time.Time) domain.Plan {
	mode, modeReason := domain.DecideMode(an.release, an.wip.OverallScore, an.aging.SevereCount, s.cfg.Triggers)

	avgVelocity := snapshot.Cycle.AverageVelocity()
	recentVelocity := snapshot.Cycle.ProjectedVelocity(now)
	carryover := domain.EstimateCarryover(snapshot.CycleItems, snapshot.Cycle.DaysRemaining(now), avgVelocity)
	capacity := domain.PlanCapacity(s.cfg.Capacity, velocityCoefficient(recentVelocity, avgVelocity), mode, carryover)

	required := domain.RequiredCapacity(snapshot.Backlog, s.cfg.Capacity.ComplexityMultiplier)
	utilization := 0.0
	if capacity.Gross > 0 {
		utilization = required / capacity.Gross
	}
	ratio := domain.ComputeDebtRatio(domain.DebtContext{
		DaysToRelease:          an.release.DaysToRelease,
		BlockedPartialFeatures: an.release.BlockedPartialFeatureCount,
		WipHealthScore:         an.wip.OverallScore,
		IsPostRelease:          an.release.IsPostRelease,
		CapacityUtilization:    utilization,
	}, s.cfg.DebtRatio)

	candidates := s.eligibleCandidates(snapshot, an)
	selection := domain.SelectItems(candidates, domain.SelectionConfig{
		AvailableCapacity: capacity.Available,
		TargetDebtRatio:   ratio.Ratio,
		DebtTolerance:     s.cfg.DebtTolerance,
		Mode:              mode,
	})

	progress := domain.AnalyzeProgress(snapshot.AllItems(), now, recentVelocity, avgVelocity, s.cfg.Progress)
	initCap, capped := progress.InitiationCap(s.cfg.Initiation)
	selected := selection.Selected
	var truncated []domain.Selection
	if capped {
		selected, truncated = domain.ApplyInitiationCap(selected, initCap)
		s.logger.Info("initiation throttled", "health", progress.OverallHealth, "cap", initCap, "truncated", len(truncated))
	}

	plan := domain.Plan{
		RunID:             s.idGen(),
		CycleID:           snapshot.Cycle.ID,
		CycleName:         snapshot.Cycle.Name,
		GeneratedAt:       now,
		Mode:              mode,
		ModeReason:        modeReason,
		Selected:          selected,
		Truncated:         truncated,
		CapacityGross:     capacity.Gross,
		CapacityCarryover: capacity.Carryover,
		CapacityBuffer:    capacity.Buffer,
		CapacityAvailable: capacity.Available,
		TargetDebtRatio:   ratio.Ratio,
		DebtAdjustments:   ratio.Applied,
		InitiationCap:     initCap,
		InitiationCapped:  capped,
		Escalations:       an.aging.Escalations,
		ReasonCode:        selection.ReasonCode,
	}
	for _, sel := range selected {
		plan.CapacityUsed += sel.Estimate
		if sel.Class == domain.ClassOptimization {
			plan.DebtSpend += sel.Estimate
		}
	}
	if plan.CapacityUsed > 0 {
		plan.AchievedDebtRatio = plan.DebtSpend / plan.CapacityUsed
	}
	if plan.ReasonCode == "" && plan.IsEmpty() {
		plan.ReasonCode = domain.ReasonCodeEmptyBacklog
	}
	return plan
}

// commit serializes on the cycle lock, persists the plan, and writes the plan
// and escalation annotations back to the tracker. The stored plan is the
// source of truth; tracker write failures after the save are logged but do
// not fail the run.
func (s *Service) commit(ctx context.Context, plan domain.Plan) error {
	if err := s.store.AcquireCycleLock(ctx, plan.CycleID, plan.RunID); err != nil {
		return fmt.Errorf("acquire cycle lock: %w", err)
	}
	defer func() {
		if err := s.store.ReleaseCycleLock(ctx, plan.CycleID, plan.RunID); err != nil {
			s.logger.Warn("release cycle lock failed", "cycle", plan.CycleID, "err", err)
		}
	}()

	if err := s.store.SavePlan(ctx, plan); err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	if err := s.tracker.PublishPlan(ctx, plan, report.Render(plan)); err != nil {
		s.logger.Warn("plan publication failed", "cycle", plan.CycleID, "err", err)
	}
	if len(plan.Escalations) > 0 {
		if err := s.tracker.AnnotateEscalations(ctx, plan.CycleID, plan.Escalations); err != nil {
			s.logger.Warn("escalation annotation failed", "cycle", plan.CycleID, "err", err)
		}
	}
	s.logger.Info("plan committed", "run_id", plan.RunID, "cycle", plan.CycleID)
	return nil
}

// eligibleCandidates filters the backlog to scoreable items: open state, a
// positive estimate, and no unresolved blockers. Estimate-less items are
// logged and skipped per item, never aborting the run.
func (s *Service) eligibleCandidates(snapshot Snapshot, an analysis) []domain.ScoredItem {
	finished := map[string]bool{}
	for _, item := range snapshot.AllItems() {
		finished[item.ID] = item.IsFinished()
	}

	candidates := make([]domain.ScoredItem, 0, len(snapshot.Backlog))
	for _, item := range snapshot.Backlog {
		if !item.IsOpen() {
			continue
		}
		if item.Estimate <= 0 {
			incErr := &DataInconsistencyError{ItemID: item.ID, Err: domain.ErrMissingEstimate}
			s.logger.Warn("item skipped", "item", item.ID, "err", incErr)
			continue
		}
		if hasUnresolvedBlockers(item, finished) {
			continue
		}
		class, ok := an.classes[item.ID]
		if !ok {
			class = domain.Classify(item)
		}
		candidates = append(candidates, domain.ScoreItem(item, class, an.release))
	}
	return candidates
}

// hasUnresolvedBlockers reports whether any blocker is known and unfinished.
// Blockers outside the snapshot are assumed resolved.
func hasUnresolvedBlockers(item domain.WorkItem, finished map[string]bool) bool {
	for _, blocker := range item.BlockedBy {
		done, known := finished[blocker]
		if known && !done {
			return true
		}
	}
	return false
}

// listFeatures reads the feature registry with the same retry policy as the
// tracker fetch.
func (s *Service) listFeatures(ctx context.Context) ([]domain.FeatureRecord, error) {
	if s.registry == nil {
		return nil, nil
	}
	var features []domain.FeatureRecord
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.cfg.FetchAttempts-1))
	err := backoff.Retry(func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
		fs, err := s.registry.ListFeatures(callCtx)
		if err != nil {
			return err
		}
		features = fs
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, &ExternalServiceError{Service: "feature registry", Err: err}
	}
	return features, nil
}

// analyzeWIPSafe computes WIP health, substituting the conservative default
// score if the analysis cannot complete.
func (s *Service) analyzeWIPSafe(items []domain.WorkItem) (report domain.WipReport) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("wip analysis failed; using conservative default", "cause", r)
			report = domain.WipReport{OverallScore: fallbackWipHealth}
		}
	}()
	return domain.AnalyzeWIP(items, s.cfg.WipLimits)
}

// analyzeAgingSafe computes aging, substituting an empty (all-normal) report
// if the analysis cannot complete.
func (s *Service) analyzeAgingSafe(items []domain.WorkItem, now time.Time) (report domain.AgingReport) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("aging analysis failed; treating items as normal", "cause", r)
			report = domain.AgingReport{}
		}
	}()
	return domain.AnalyzeAging(items, now, s.cfg.Aging)
}

// logSkipped reports each snapshot item the adapter dropped.
func (s *Service) logSkipped(snapshot Snapshot) {
	for _, skipped := range snapshot.Skipped {
		incErr := &DataInconsistencyError{ItemID: skipped.ID, Err: fmt.Errorf("%s", skipped.Reason)}
		s.logger.Warn("item skipped", "item", skipped.ID, "err", incErr)
	}
}

// velocityCoefficient scales capacity by how the current cycle is tracking
// against historical velocity, clamped so one anomalous cycle cannot swing
// capacity by more than half.
func velocityCoefficient(recent, average float64) float64 {
	if average <= 0 || recent <= 0 {
		return 1.0
	}
	coeff := recent / average
	if coeff < 0.5 {
		return 0.5
	}
	if coeff > 1.5 {
		return 1.5
	}
	return coeff
}
