package domain

import "time"

// Sub-health weights for the overall progress blend.
const (
	weightCompletionHealth = 0.4
	weightBurnRateHealth   = 0.25
	weightVelocityHealth   = 0.2
	weightCycleTimeHealth  = 0.15
)

// ProgressConfig configures the trailing progress window.
type ProgressConfig struct {
	WindowDays int
}

// DefaultProgressConfig returns the default trailing window.
func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{WindowDays: 14}
}

// Validate reports whether the window is positive.
func (c ProgressConfig) Validate() error {
	if c.WindowDays <= 0 {
		return ErrInvalidThresholds
	}
	return nil
}

// ProgressMetrics is the derived completion-versus-initiation picture over the
// trailing window. All health values are in [0,1].
type ProgressMetrics struct {
	CompletedInWindow int
	InitiatedInWindow int
	CompletionRatio   float64
	InitiationRate    float64
	WipBurnRate       float64
	AverageCycleTime  float64

	CompletionHealth float64
	BurnRateHealth   float64
	VelocityHealth   float64
	CycleTimeHealth  float64
	OverallHealth    float64
}

// AnalyzeProgress computes trailing-window progress metrics. Completion ratio
// is completed/(completed+initiated) within the window; burn rate is
// completions per window day; average cycle time is mean(completedAt -
// createdAt) in days over window completions. Velocity health compares recent
// velocity against the historical average.
func AnalyzeProgress(items []WorkItem, now time.Time, recentVelocity, avgVelocity float64, cfg ProgressConfig) ProgressMetrics {
	now = now.UTC()
	windowStart := now.AddDate(0, 0, -cfg.WindowDays)

	var metrics ProgressMetrics
	var cycleTimeSum float64
	for _, item := range items {
		if item.CompletedAt != nil && !item.CompletedAt.Before(windowStart) {
			metrics.CompletedInWindow++
			cycleTimeSum += item.CompletedAt.Sub(item.CreatedAt).Hours() / 24
		}
		if item.StartedAt != nil && !item.StartedAt.Before(windowStart) {
			metrics.InitiatedInWindow++
		}
	}

	if total := metrics.CompletedInWindow + metrics.InitiatedInWindow; total > 0 {
		metrics.CompletionRatio = float64(metrics.CompletedInWindow) / float64(total)
	}
	metrics.InitiationRate = float64(metrics.InitiatedInWindow) / float64(cfg.WindowDays)
	metrics.WipBurnRate = float64(metrics.CompletedInWindow) / float64(cfg.WindowDays)
	if metrics.CompletedInWindow > 0 {
		metrics.AverageCycleTime = cycleTimeSum / float64(metrics.CompletedInWindow)
	}

	metrics.CompletionHealth = completionHealthBand(metrics.CompletionRatio)
	metrics.BurnRateHealth = burnRateHealthBand(metrics.WipBurnRate)
	metrics.VelocityHealth = velocityHealthBand(recentVelocity, avgVelocity)
	metrics.CycleTimeHealth = cycleTimeHealthBand(metrics.AverageCycleTime, metrics.CompletedInWindow)
	metrics.OverallHealth = weightCompletionHealth*metrics.CompletionHealth +
		weightBurnRateHealth*metrics.BurnRateHealth +
		weightVelocityHealth*metrics.VelocityHealth +
		weightCycleTimeHealth*metrics.CycleTimeHealth
	return metrics
}

// completionHealthBand maps completion ratio onto fixed health bands.
func completionHealthBand(ratio float64) float64 {
	switch {
	case ratio >= 0.7:
		return 1.0
	case ratio >= 0.5:
		return 0.8
	case ratio >= 0.3:
		return 0.5
	default:
		return 0.2
	}
}

// burnRateHealthBand maps completions per day onto fixed health bands.
func burnRateHealthBand(rate float64) float64 {
	switch {
	case rate >= 1.0:
		return 1.0
	case rate >= 0.5:
		return 0.8
	case rate >= 0.25:
		return 0.5
	default:
		return 0.2
	}
}

// velocityHealthBand maps recent velocity relative to the historical average
// onto fixed health bands. With no history it reports neutral health.
func velocityHealthBand(recent, average float64) float64 {
	if average <= 0 {
		return 0.8
	}
	ratio := recent / average
	switch {
	case ratio >= 1.0:
		return 1.0
	case ratio >= 0.8:
		return 0.8
	case ratio >= 0.5:
		return 0.5
	default:
		return 0.2
	}
}

// cycleTimeHealthBand maps average cycle time in days onto fixed health bands.
// With no completions in the window it reports neutral health.
func cycleTimeHealthBand(days float64, completed int) float64 {
	if completed == 0 {
		return 0.8
	}
	switch {
	case days <= 3:
		return 1.0
	case days <= 7:
		return 0.8
	case days <= 14:
		return 0.5
	default:
		return 0.2
	}
}

// InitiationBands configures the health boundaries for initiation throttling.
type InitiationBands struct {
	CriticalHealth float64
	WarningHealth  float64
	CriticalCap    int
	WarningCap     int
}

// DefaultInitiationBands returns the default throttle boundaries.
func DefaultInitiationBands() InitiationBands {
	return InitiationBands{CriticalHealth: 0.6, WarningHealth: 0.8, CriticalCap: 1, WarningCap: 2}
}

// Validate reports whether band boundaries are ordered and in range.
func (b InitiationBands) Validate() error {
	if b.CriticalHealth <= 0 || b.WarningHealth > 1 || b.CriticalHealth >= b.WarningHealth {
		return ErrInvalidThresholds
	}
	if b.CriticalCap < 0 || b.WarningCap < b.CriticalCap {
		return ErrInvalidThresholds
	}
	return nil
}

// InitiationCap returns the per-run cap on newly initiated items and whether a
// cap applies at all.
func (m ProgressMetrics) InitiationCap(bands InitiationBands) (int, bool) {
	switch {
	case m.OverallHealth < bands.CriticalHealth:
		return bands.CriticalCap, true
	case m.OverallHealth < bands.WarningHealth:
		return bands.WarningCap, true
	default:
		return 0, false
	}
}

// ApplyInitiationCap truncates a selection to at most cap newly initiated
// items, preserving selection order. Items already started are never removed;
// the capacity bound still holds because truncation only removes items.
func ApplyInitiationCap(selected []Selection, cap int) (kept, truncated []Selection) {
	newCount := 0
	for _, sel := range selected {
		if !sel.NewWork {
			kept = append(kept, sel)
			continue
		}
		if newCount < cap {
			kept = append(kept, sel)
			newCount++
			continue
		}
		truncated = append(truncated, sel)
	}
	return kept, truncated
}
