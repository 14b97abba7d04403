package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nizamiq/cadence/internal/domain"
	"github.com/nizamiq/cadence/internal/planner"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestOpenCreatesDatabaseDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cadence.db")
	repo, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = repo.Close() }()

	if err := repo.SavePlan(context.Background(), testPlan("run-1", "cyc-open")); err != nil {
		t.Fatalf("SavePlan() error = %v", err)
	}
}

func testPlan(runID, cycleID string) domain.Plan {
	return domain.Plan{
		RunID:       runID,
		CycleID:     cycleID,
		CycleName:   "Cycle 12",
		GeneratedAt: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		Mode:        domain.ModeNormal,
		Selected: []domain.Selection{
			{ItemID: "item-1", Identifier: "CAD-1", Title: "Fix login crash", Class: domain.ClassEssential, Estimate: 3, Adjusted: 5.6, Tier: domain.TierMustHave},
		},
		CapacityAvailable: 20,
		CapacityUsed:      3,
		TargetDebtRatio:   0.3,
	}
}

func TestCycleLockSerializesRuns(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if err := repo.AcquireCycleLock(ctx, "cyc-1", "run-1"); err != nil {
		t.Fatalf("AcquireCycleLock() error = %v", err)
	}
	if err := repo.AcquireCycleLock(ctx, "cyc-1", "run-2"); !errors.Is(err, planner.ErrCycleLocked) {
		t.Fatalf("expected ErrCycleLocked for second run, got %v", err)
	}
	// A different cycle is independent.
	if err := repo.AcquireCycleLock(ctx, "cyc-2", "run-2"); err != nil {
		t.Fatalf("AcquireCycleLock(other cycle) error = %v", err)
	}

	if err := repo.ReleaseCycleLock(ctx, "cyc-1", "run-1"); err != nil {
		t.Fatalf("ReleaseCycleLock() error = %v", err)
	}
	if err := repo.AcquireCycleLock(ctx, "cyc-1", "run-3"); err != nil {
		t.Fatalf("expected lock to be free after release, got %v", err)
	}
}

func TestCycleLockStealsAbandonedLock(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	past := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return past }
	if err := repo.AcquireCycleLock(ctx, "cyc-1", "run-dead"); err != nil {
		t.Fatalf("AcquireCycleLock() error = %v", err)
	}

	// Within the TTL the lock holds; past it the lock is stolen.
	repo.clock = func() time.Time { return past.Add(5 * time.Minute) }
	if err := repo.AcquireCycleLock(ctx, "cyc-1", "run-live"); !errors.Is(err, planner.ErrCycleLocked) {
		t.Fatalf("expected live lock to hold, got %v", err)
	}
	repo.clock = func() time.Time { return past.Add(lockTTL + time.Minute) }
	if err := repo.AcquireCycleLock(ctx, "cyc-1", "run-live"); err != nil {
		t.Fatalf("expected abandoned lock to be stolen, got %v", err)
	}

	// The dead run can no longer release the stolen lock.
	if err := repo.ReleaseCycleLock(ctx, "cyc-1", "run-dead"); err != nil {
		t.Fatalf("ReleaseCycleLock() error = %v", err)
	}
	if err := repo.AcquireCycleLock(ctx, "cyc-1", "run-other"); !errors.Is(err, planner.ErrCycleLocked) {
		t.Fatalf("expected stolen lock to stay held, got %v", err)
	}
}

func TestCycleLockValidation(t *testing.T) {
	repo := testRepo(t)
	if err := repo.AcquireCycleLock(context.Background(), " ", "run-1"); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestSavePlanAndLatestPlanRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if _, err := repo.LatestPlan(ctx, "cyc-1"); !errors.Is(err, planner.ErrNoPlan) {
		t.Fatalf("expected ErrNoPlan before any save, got %v", err)
	}

	first := testPlan("run-1", "cyc-1")
	if err := repo.SavePlan(ctx, first); err != nil {
		t.Fatalf("SavePlan() error = %v", err)
	}
	second := testPlan("run-2", "cyc-1")
	second.GeneratedAt = first.GeneratedAt.Add(time.Hour)
	second.CapacityUsed = 8
	if err := repo.SavePlan(ctx, second); err != nil {
		t.Fatalf("SavePlan(second) error = %v", err)
	}

	got, err := repo.LatestPlan(ctx, "cyc-1")
	if err != nil {
		t.Fatalf("LatestPlan() error = %v", err)
	}
	if got.RunID != "run-2" || got.CapacityUsed != 8 {
		t.Fatalf("expected the newer plan, got %+v", got)
	}
	if len(got.Selected) != 1 || got.Selected[0].ItemID != "item-1" {
		t.Fatalf("selection did not survive the round trip: %+v", got.Selected)
	}
	if !got.GeneratedAt.Equal(second.GeneratedAt) {
		t.Fatalf("expected generated-at %v, got %v", second.GeneratedAt, got.GeneratedAt)
	}
}

func TestSavePlanValidation(t *testing.T) {
	repo := testRepo(t)
	plan := testPlan("", "cyc-1")
	if err := repo.SavePlan(context.Background(), plan); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID for empty run id, got %v", err)
	}
}
