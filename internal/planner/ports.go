package planner

import (
	"context"
	"time"

	"github.com/nizamiq/cadence/internal/domain"
)

// SkippedItem records one tracker item dropped from the snapshot for missing
// or inconsistent fields.
type SkippedItem struct {
	ID     string
	Reason string
}

// Snapshot is the immutable tracker state one planning run operates on. It is
// fetched once at the start of a run and never mutated afterwards.
type Snapshot struct {
	Cycle      domain.CycleSnapshot
	CycleItems []domain.WorkItem
	Backlog    []domain.WorkItem
	Skipped    []SkippedItem
	FetchedAt  time.Time
}

// AllItems returns cycle and backlog items as one slice.
func (s Snapshot) AllItems() []domain.WorkItem {
	all := make([]domain.WorkItem, 0, len(s.CycleItems)+len(s.Backlog))
	all = append(all, s.CycleItems...)
	all = append(all, s.Backlog...)
	return all
}

// Tracker reads work items and cycles from the issue tracker and writes back
// the committed plan and escalation annotations.
type Tracker interface {
	FetchSnapshot(context.Context) (Snapshot, error)
	PublishPlan(ctx context.Context, plan domain.Plan, document string) error
	AnnotateEscalations(context.Context, string, []domain.Escalation) error
}

// FeatureRegistry reads per-feature implementation status.
type FeatureRegistry interface {
	ListFeatures(context.Context) ([]domain.FeatureRecord, error)
}

// PlanStore persists committed plans and serializes concurrent runs for the
// same cycle.
type PlanStore interface {
	AcquireCycleLock(ctx context.Context, cycleID, runID string) error
	ReleaseCycleLock(ctx context.Context, cycleID, runID string) error
	SavePlan(context.Context, domain.Plan) error
	LatestPlan(ctx context.Context, cycleID string) (domain.Plan, error)
}

// IDGenerator returns unique identifiers for new runs.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time
