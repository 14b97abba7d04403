package domain

import (
	"strings"
	"time"
)

// defaultVelocity is assumed when no historical cycle data exists yet.
const defaultVelocity = 20.0

// CycleSnapshot stores read-only state for one planning cycle, captured once
// per run.
type CycleSnapshot struct {
	ID              string
	Name            string
	Number          int
	StartsAt        time.Time
	EndsAt          time.Time
	ScopePoints     float64
	CompletedPoints float64
	TotalIssues     int
	CompletedIssues int
	VelocitySamples []float64
}

// NewCycleSnapshot validates and normalizes one cycle snapshot.
func NewCycleSnapshot(id, name string, number int, startsAt, endsAt time.Time) (CycleSnapshot, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return CycleSnapshot{}, ErrInvalidID
	}
	if startsAt.IsZero() || endsAt.IsZero() || endsAt.Before(startsAt) {
		return CycleSnapshot{}, ErrInvalidTimestamp
	}
	return CycleSnapshot{
		ID:       id,
		Name:     strings.TrimSpace(name),
		Number:   number,
		StartsAt: startsAt.UTC(),
		EndsAt:   endsAt.UTC(),
	}, nil
}

// CompletionRate returns completed/total issues, zero when the cycle is empty.
func (c CycleSnapshot) CompletionRate() float64 {
	if c.TotalIssues <= 0 {
		return 0
	}
	return float64(c.CompletedIssues) / float64(c.TotalIssues)
}

// Velocity returns completed points per elapsed day as of now.
func (c CycleSnapshot) Velocity(now time.Time) float64 {
	elapsed := c.ElapsedDays(now)
	if elapsed <= 0 {
		return 0
	}
	return c.CompletedPoints / float64(elapsed)
}

// AverageVelocity returns the mean of historical velocity samples, falling
// back to a conservative default when no history exists.
func (c CycleSnapshot) AverageVelocity() float64 {
	if len(c.VelocitySamples) == 0 {
		return defaultVelocity
	}
	var sum float64
	for _, v := range c.VelocitySamples {
		sum += v
	}
	return sum / float64(len(c.VelocitySamples))
}

// ProjectedVelocity extrapolates the current completion pace to a full cycle
// so it is comparable with historical per-cycle velocity samples.
func (c CycleSnapshot) ProjectedVelocity(now time.Time) float64 {
	totalDays := int(c.EndsAt.Sub(c.StartsAt).Hours() / 24)
	if totalDays <= 0 {
		return 0
	}
	return c.Velocity(now) * float64(totalDays)
}

// ElapsedDays returns whole days elapsed since the cycle started, at least zero.
func (c CycleSnapshot) ElapsedDays(now time.Time) int {
	d := int(now.UTC().Sub(c.StartsAt).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// DaysRemaining returns whole days until the cycle ends, at least zero.
func (c CycleSnapshot) DaysRemaining(now time.Time) int {
	d := int(c.EndsAt.Sub(now.UTC()).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
