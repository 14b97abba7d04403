package domain

// DebtRatioConfig configures the adaptive debt/feature split.
type DebtRatioConfig struct {
	BaseRatio float64
	MinRatio  float64
	MaxRatio  float64
}

// DefaultDebtRatioConfig returns the default debt-ratio bounds.
func DefaultDebtRatioConfig() DebtRatioConfig {
	return DebtRatioConfig{BaseRatio: 0.30, MinRatio: 0.10, MaxRatio: 0.50}
}

// Validate enforces ordered, in-range ratio bounds.
func (c DebtRatioConfig) Validate() error {
	if c.MinRatio <= 0 || c.MaxRatio > 1 || c.MinRatio >= c.MaxRatio {
		return ErrInvalidRatioBound
	}
	if c.BaseRatio < c.MinRatio || c.BaseRatio > c.MaxRatio {
		return ErrInvalidRatioBound
	}
	return nil
}

// DebtContext carries the signals the ratio adjusters read.
type DebtContext struct {
	DaysToRelease          int
	BlockedPartialFeatures int
	WipHealthScore         float64
	IsPostRelease          bool
	CapacityUtilization    float64
}

// AppliedAdjustment records one adjuster that fired during a computation.
type AppliedAdjustment struct {
	Name       string
	Multiplier float64
}

// DebtRatioResult is the computed split target plus its audit trail.
type DebtRatioResult struct {
	Ratio   float64
	Applied []AppliedAdjustment
}

// ratioAdjuster is one named pure adjustment. It returns 1.0 when it does not
// apply.
type ratioAdjuster struct {
	name  string
	apply func(DebtContext) float64
}

// ratioAdjusters is folded left-to-right over the base ratio with a single
// clamp at the end. The order is a committed contract: because the clamp is
// not commutative with multiplication, reordering adjusters can change which
// bound a near-boundary context lands on.
var ratioAdjusters = []ratioAdjuster{
	{
		name: "release_proximity",
		apply: func(ctx DebtContext) float64 {
			switch {
			case ctx.DaysToRelease <= 7:
				return 0.5
			case ctx.DaysToRelease <= 14:
				return 0.7
			default:
				return 1.0
			}
		},
	},
	{
		name: "blocked_partial_features",
		apply: func(ctx DebtContext) float64 {
			if ctx.BlockedPartialFeatures > 0 {
				return 0.6
			}
			return 1.0
		},
	},
	{
		name: "wip_health",
		apply: func(ctx DebtContext) float64 {
			if ctx.WipHealthScore < 0.7 {
				return 0.8
			}
			return 1.0
		},
	},
	{
		name: "post_release",
		apply: func(ctx DebtContext) float64 {
			if ctx.IsPostRelease {
				return 1.5
			}
			return 1.0
		},
	},
	{
		name: "capacity_utilization",
		apply: func(ctx DebtContext) float64 {
			if ctx.CapacityUtilization > 0.9 {
				return 0.9
			}
			return 1.0
		},
	},
}

// ComputeDebtRatio folds the adjuster chain over the base ratio and clamps the
// result to the configured bounds.
func ComputeDebtRatio(ctx DebtContext, cfg DebtRatioConfig) DebtRatioResult {
	result := DebtRatioResult{Ratio: cfg.BaseRatio}
	for _, adj := range ratioAdjusters {
		m := adj.apply(ctx)
		if m == 1.0 {
			continue
		}
		result.Ratio *= m
		result.Applied = append(result.Applied, AppliedAdjustment{Name: adj.name, Multiplier: m})
	}
	if result.Ratio < cfg.MinRatio {
		result.Ratio = cfg.MinRatio
	}
	if result.Ratio > cfg.MaxRatio {
		result.Ratio = cfg.MaxRatio
	}
	return result
}
