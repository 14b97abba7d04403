package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nizamiq/cadence/internal/domain"
	"github.com/nizamiq/cadence/internal/planner"
	_ "modernc.org/sqlite"
)

// driverName defines the sql driver in use.
const driverName = "sqlite"

// lockTTL bounds how long a crashed run can hold a cycle lock.
const lockTTL = 15 * time.Minute

// Repository is the sqlite-backed plan store.
type Repository struct {
	db    *sql.DB
	clock func() time.Time
}

// Open opens (and migrates) the plan store at path.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db, clock: time.Now}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens an in-memory plan store, used by tests.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	repo := &Repository{db: db, clock: time.Now}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate applies the schema.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS plans (
			run_id TEXT PRIMARY KEY,
			cycle_id TEXT NOT NULL,
			cycle_name TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL,
			mode_reason TEXT NOT NULL DEFAULT '',
			capacity_available REAL NOT NULL,
			capacity_used REAL NOT NULL,
			target_debt_ratio REAL NOT NULL,
			achieved_debt_ratio REAL NOT NULL,
			reason_code TEXT NOT NULL DEFAULT '',
			plan_json TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS cycle_locks (
			cycle_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			acquired_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_plans_cycle_created_at ON plans(cycle_id, created_at DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// AcquireCycleLock takes the advisory single-writer lock for one cycle. A
// live lock held by another run fails with planner.ErrCycleLocked; locks past
// their TTL are treated as abandoned and stolen.
func (r *Repository) AcquireCycleLock(ctx context.Context, cycleID, runID string) error {
	if strings.TrimSpace(cycleID) == "" || strings.TrimSpace(runID) == "" {
		return domain.ErrInvalidID
	}
	now := r.clock().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cycle_locks (cycle_id, run_id, acquired_at) VALUES (?, ?, ?)`,
		cycleID, runID, now.Format(time.RFC3339Nano))
	if err == nil {
		return nil
	}

	var holder, acquiredAt string
	row := r.db.QueryRowContext(ctx,
		`SELECT run_id, acquired_at FROM cycle_locks WHERE cycle_id = ?`, cycleID)
	if scanErr := row.Scan(&holder, &acquiredAt); scanErr != nil {
		return fmt.Errorf("inspect cycle lock: %w", scanErr)
	}
	held, parseErr := time.Parse(time.RFC3339Nano, acquiredAt)
	if parseErr == nil && now.Sub(held) < lockTTL {
		return fmt.Errorf("cycle %s held by run %s: %w", cycleID, holder, planner.ErrCycleLocked)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE cycle_locks SET run_id = ?, acquired_at = ? WHERE cycle_id = ? AND run_id = ?`,
		runID, now.Format(time.RFC3339Nano), cycleID, holder)
	if err != nil {
		return fmt.Errorf("steal stale cycle lock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("steal stale cycle lock: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("cycle %s: %w", cycleID, planner.ErrCycleLocked)
	}
	return nil
}

// ReleaseCycleLock drops the advisory lock if this run still holds it.
func (r *Repository) ReleaseCycleLock(ctx context.Context, cycleID, runID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM cycle_locks WHERE cycle_id = ? AND run_id = ?`, cycleID, runID)
	if err != nil {
		return fmt.Errorf("release cycle lock: %w", err)
	}
	return nil
}

// SavePlan persists one committed plan.
func (r *Repository) SavePlan(ctx context.Context, plan domain.Plan) error {
	if strings.TrimSpace(plan.RunID) == "" || strings.TrimSpace(plan.CycleID) == "" {
		return domain.ErrInvalidID
	}
	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO plans (run_id, cycle_id, cycle_name, mode, mode_reason,
			capacity_available, capacity_used, target_debt_ratio, achieved_debt_ratio,
			reason_code, plan_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.RunID, plan.CycleID, plan.CycleName, string(plan.Mode), plan.ModeReason,
		plan.CapacityAvailable, plan.CapacityUsed, plan.TargetDebtRatio, plan.AchievedDebtRatio,
		plan.ReasonCode, string(payload), plan.GeneratedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

// LatestPlan returns the most recently committed plan for one cycle.
func (r *Repository) LatestPlan(ctx context.Context, cycleID string) (domain.Plan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT plan_json FROM plans WHERE cycle_id = ? ORDER BY created_at DESC, run_id DESC LIMIT 1`,
		cycleID)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Plan{}, planner.ErrNoPlan
		}
		return domain.Plan{}, fmt.Errorf("load plan: %w", err)
	}
	var plan domain.Plan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		return domain.Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	return plan, nil
}
