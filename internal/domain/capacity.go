package domain

// releaseSprintCapacityFactor shrinks capacity under release sprint to leave
// room for stabilization work.
const releaseSprintCapacityFactor = 0.75

// fallbackEstimate stands in for a missing estimate in carryover projections
// only; selection never uses it.
const fallbackEstimate = 3.0

// CapacityConfig configures available-capacity computation.
type CapacityConfig struct {
	TeamHours            float64
	FocusFactor          float64
	ComplexityMultiplier float64
	BufferFactor         float64
}

// DefaultCapacityConfig returns the default capacity knobs.
func DefaultCapacityConfig() CapacityConfig {
	return CapacityConfig{
		TeamHours:            40,
		FocusFactor:          0.7,
		ComplexityMultiplier: 1.0,
		BufferFactor:         0.15,
	}
}

// Validate reports whether capacity knobs are in range.
func (c CapacityConfig) Validate() error {
	if c.TeamHours < 0 {
		return ErrInvalidLimit
	}
	if c.FocusFactor <= 0 || c.FocusFactor > 1 {
		return ErrInvalidLimit
	}
	if c.ComplexityMultiplier <= 0 {
		return ErrInvalidLimit
	}
	if c.BufferFactor < 0 || c.BufferFactor >= 1 {
		return ErrInvalidLimit
	}
	return nil
}

// CapacityPlan is the derived capacity picture for one run.
type CapacityPlan struct {
	Gross     float64
	Carryover float64
	Buffer    float64
	Available float64
}

// PlanCapacity computes available capacity for new work: team hours scaled by
// the focus factor and velocity coefficient, reduced under release sprint,
// then less projected carryover and the safety buffer. Never negative.
func PlanCapacity(cfg CapacityConfig, velocityCoefficient float64, mode Mode, carryover float64) CapacityPlan {
	if velocityCoefficient <= 0 {
		velocityCoefficient = 1.0
	}
	gross := cfg.TeamHours * cfg.FocusFactor * velocityCoefficient
	if mode == ModeReleaseSprint {
		gross *= releaseSprintCapacityFactor
	}
	plan := CapacityPlan{
		Gross:     gross,
		Carryover: carryover,
		Buffer:    gross * cfg.BufferFactor,
	}
	plan.Available = gross - carryover - plan.Buffer
	if plan.Available < 0 {
		plan.Available = 0
	}
	return plan
}

// RequiredCapacity sums estimates scaled by the complexity multiplier.
func RequiredCapacity(items []WorkItem, complexityMultiplier float64) float64 {
	if complexityMultiplier <= 0 {
		complexityMultiplier = 1.0
	}
	var total float64
	for _, item := range items {
		total += item.Estimate * complexityMultiplier
	}
	return total
}

// EstimateCarryover projects the points unlikely to finish in the current
// cycle. Started items count at half their estimate; anything that cannot fit
// into the remaining daily velocity carries over. Items without an estimate
// count at a conservative default here so load is not understated.
func EstimateCarryover(cycleItems []WorkItem, daysRemaining int, avgVelocity float64) float64 {
	const workingDaysPerCycle = 10
	dailyVelocity := avgVelocity / workingDaysPerCycle

	var carryover float64
	for _, item := range cycleItems {
		if item.IsFinished() {
			continue
		}
		estimate := item.Estimate
		if estimate <= 0 {
			estimate = fallbackEstimate
		}
		if item.State == StateStarted {
			estimate *= 0.5
		}
		if estimate > dailyVelocity*float64(daysRemaining) {
			carryover += estimate
		}
	}
	return carryover
}
