package domain

import (
	"math"
	"testing"
)

func TestPlanCapacityNormalMode(t *testing.T) {
	plan := PlanCapacity(DefaultCapacityConfig(), 1.0, ModeNormal, 5)
	if math.Abs(plan.Gross-28.0) > 1e-9 {
		t.Fatalf("expected gross 28, got %.4f", plan.Gross)
	}
	if math.Abs(plan.Buffer-4.2) > 1e-9 {
		t.Fatalf("expected buffer 4.2, got %.4f", plan.Buffer)
	}
	if math.Abs(plan.Available-18.8) > 1e-9 {
		t.Fatalf("expected available 18.8, got %.4f", plan.Available)
	}
}

func TestPlanCapacityReleaseSprintShrinks(t *testing.T) {
	plan := PlanCapacity(DefaultCapacityConfig(), 1.0, ModeReleaseSprint, 0)
	if math.Abs(plan.Gross-21.0) > 1e-9 {
		t.Fatalf("expected gross 21 under release sprint, got %.4f", plan.Gross)
	}
}

func TestPlanCapacityNeverNegative(t *testing.T) {
	plan := PlanCapacity(DefaultCapacityConfig(), 1.0, ModeNormal, 50)
	if plan.Available != 0 {
		t.Fatalf("expected clamped available, got %.4f", plan.Available)
	}
}

func TestPlanCapacityVelocityCoefficient(t *testing.T) {
	plan := PlanCapacity(DefaultCapacityConfig(), 0.5, ModeNormal, 0)
	if math.Abs(plan.Gross-14.0) > 1e-9 {
		t.Fatalf("expected halved gross, got %.4f", plan.Gross)
	}
	// Non-positive coefficient falls back to neutral.
	plan = PlanCapacity(DefaultCapacityConfig(), 0, ModeNormal, 0)
	if math.Abs(plan.Gross-28.0) > 1e-9 {
		t.Fatalf("expected neutral gross, got %.4f", plan.Gross)
	}
}

func TestRequiredCapacity(t *testing.T) {
	items := []WorkItem{
		newTestItem(t, "r1", func(in *WorkItemInput) { in.Estimate = 3 }),
		newTestItem(t, "r2", func(in *WorkItemInput) { in.Estimate = 5 }),
	}
	if got := RequiredCapacity(items, 1.0); math.Abs(got-8) > 1e-9 {
		t.Fatalf("expected 8, got %.4f", got)
	}
	if got := RequiredCapacity(items, 1.5); math.Abs(got-12) > 1e-9 {
		t.Fatalf("expected 12 with multiplier, got %.4f", got)
	}
}

func TestEstimateCarryover(t *testing.T) {
	items := []WorkItem{
		// Finished work never carries over.
		newTestItem(t, "done", func(in *WorkItemInput) {
			in.State = StateCompleted
			in.Estimate = 5
		}),
		// Started at half weight: 20 * 0.5 = 10 exceeds the 6 points that fit.
		newTestItem(t, "big", func(in *WorkItemInput) {
			in.State = StateStarted
			in.Estimate = 20
		}),
		// Started at half weight: 2 * 0.5 = 1 fits.
		newTestItem(t, "small", func(in *WorkItemInput) {
			in.State = StateStarted
			in.Estimate = 2
		}),
		// Unstarted 5 fits within remaining daily velocity.
		newTestItem(t, "fits", func(in *WorkItemInput) { in.Estimate = 5 }),
		// Missing estimate counts at the conservative default of 3, fits.
		newTestItem(t, "unsized", func(in *WorkItemInput) { in.Estimate = 0 }),
	}

	// avgVelocity 20 over a 10-working-day cycle is 2 points/day; 3 days
	// remaining fit 6 points.
	carryover := EstimateCarryover(items, 3, 20)
	if math.Abs(carryover-10) > 1e-9 {
		t.Fatalf("expected carryover 10, got %.4f", carryover)
	}
}

func TestEstimateCarryoverAtCycleEnd(t *testing.T) {
	items := []WorkItem{
		newTestItem(t, "a", func(in *WorkItemInput) { in.Estimate = 2 }),
		newTestItem(t, "b", func(in *WorkItemInput) { in.Estimate = 0 }),
	}
	// Nothing fits with zero days remaining: 2 + default 3.
	carryover := EstimateCarryover(items, 0, 20)
	if math.Abs(carryover-5) > 1e-9 {
		t.Fatalf("expected carryover 5, got %.4f", carryover)
	}
}

func TestCapacityConfigValidate(t *testing.T) {
	if err := DefaultCapacityConfig().Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	cases := []func(*CapacityConfig){
		func(c *CapacityConfig) { c.TeamHours = -1 },
		func(c *CapacityConfig) { c.FocusFactor = 0 },
		func(c *CapacityConfig) { c.FocusFactor = 1.1 },
		func(c *CapacityConfig) { c.ComplexityMultiplier = 0 },
		func(c *CapacityConfig) { c.BufferFactor = 1 },
	}
	for i, mutate := range cases {
		cfg := DefaultCapacityConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: expected validation failure for %+v", i, cfg)
		}
	}
}
