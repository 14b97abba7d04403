package domain

import "sort"

// Score factor weights. These are the committed blend for ranking candidates.
const (
	weightBusinessValue  = 0.4
	weightTechDebtImpact = 0.3
	weightRiskMitigation = 0.2
	weightVelocityFit    = 0.1
)

// nearReleaseDays is the window in which deferrable work is damped even
// outside release sprint.
const nearReleaseDays = 14

// nearReleaseDampening halves deferrable-work scores near a release.
const nearReleaseDampening = 0.5

// ScoreBreakdown holds the per-factor sub-scores, each normalized to [0,10].
type ScoreBreakdown struct {
	BusinessValue  float64
	TechDebtImpact float64
	RiskMitigation float64
	VelocityFit    float64
}

// Composite blends the sub-scores with the committed factor weights.
func (s ScoreBreakdown) Composite() float64 {
	return weightBusinessValue*s.BusinessValue +
		weightTechDebtImpact*s.TechDebtImpact +
		weightRiskMitigation*s.RiskMitigation +
		weightVelocityFit*s.VelocityFit
}

// ScoredItem pairs one candidate with its classification and adjusted score.
type ScoredItem struct {
	Item     WorkItem
	Class    Classification
	Score    ScoreBreakdown
	Adjusted float64
}

// ScoreItem computes the ranked score for one candidate. The composite score
// is scaled by the classification weight, and deferrable work is further
// damped when a release is near.
func ScoreItem(item WorkItem, class Classification, rc ReleaseContext) ScoredItem {
	breakdown := ScoreBreakdown{
		BusinessValue:  businessValueScore(item),
		TechDebtImpact: techDebtScore(item, class),
		RiskMitigation: riskScore(item),
		VelocityFit:    velocityFitScore(item.Estimate),
	}
	adjusted := breakdown.Composite() * class.Weight()
	if class.IsDeferrable() && rc.DaysToRelease <= nearReleaseDays {
		adjusted *= nearReleaseDampening
	}
	return ScoredItem{Item: item, Class: class, Score: breakdown, Adjusted: adjusted}
}

// businessValueScore maps priority and value labels onto [0,10].
func businessValueScore(item WorkItem) float64 {
	score := map[Priority]float64{
		PriorityUrgent: 10,
		PriorityHigh:   8,
		PriorityMedium: 6,
		PriorityLow:    4,
		PriorityNone:   2,
	}[item.Priority]
	if item.HasLabel("mvp") {
		score += 2
	}
	return clamp10(score)
}

// techDebtScore maps debt relevance onto [0,10].
func techDebtScore(item WorkItem, class Classification) float64 {
	score := 2.0
	if class == ClassOptimization {
		score = 8.0
	}
	if item.HasLabel("tech-debt") || item.HasLabel("technical-debt") || item.HasLabel("tdd") || item.HasLabel("clean-code") {
		score += 2
	}
	return clamp10(score)
}

// riskScore maps risk relevance onto [0,10]. Items that unblock other work
// score higher.
func riskScore(item WorkItem) float64 {
	score := 2.0
	if item.HasLabel("security") {
		score += 4
	}
	if item.HasLabel("bug") {
		score += 3
	}
	score += 2 * float64(len(item.Blocks))
	return clamp10(score)
}

// velocityFitScore prefers small items that finish within a cycle.
func velocityFitScore(estimate float64) float64 {
	switch {
	case estimate <= 0:
		return 0
	case estimate <= 2:
		return 10
	case estimate <= 3:
		return 8
	case estimate <= 5:
		return 6
	case estimate <= 8:
		return 4
	default:
		return 2
	}
}

// clamp10 clamps a sub-score to [0,10].
func clamp10(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// SelectionConfig configures one greedy selection pass.
type SelectionConfig struct {
	AvailableCapacity float64
	TargetDebtRatio   float64
	DebtTolerance     float64
	Mode              Mode
}

// Commitment tiers, assigned by capacity consumed in selection order.
const (
	TierMustHave   = "must_have"
	TierShouldHave = "should_have"
	TierCouldHave  = "could_have"
)

// Reason codes for empty or partial selections.
const (
	ReasonCodeZeroCapacity = "zero_capacity"
	ReasonCodeEmptyBacklog = "empty_backlog"
)

// Selection is one selected item with its score audit trail.
type Selection struct {
	ItemID     string
	Identifier string
	Title      string
	Class      Classification
	Estimate   float64
	Score      ScoreBreakdown
	Adjusted   float64
	Tier       string
	NewWork    bool
}

// SelectionResult is the outcome of one greedy selection pass.
type SelectionResult struct {
	Selected     []Selection
	CapacityUsed float64
	DebtSpend    float64
	ReasonCode   string
}

// SelectItems ranks candidates and greedily selects under the capacity bound
// and the debt-spend ceiling. Ordering is descending adjusted score with
// ascending item ID as the deterministic tie-break. Under release sprint,
// deferrable classifications are filtered out before ranking. The capacity
// bound is hard and never relaxed; the debt ceiling is target+tolerance of
// available capacity.
func SelectItems(candidates []ScoredItem, cfg SelectionConfig) SelectionResult {
	if cfg.AvailableCapacity <= 0 {
		return SelectionResult{ReasonCode: ReasonCodeZeroCapacity}
	}

	eligible := make([]ScoredItem, 0, len(candidates))
	for _, c := range candidates {
		if cfg.Mode == ModeReleaseSprint && c.Class.IsDeferrable() {
			continue
		}
		eligible = append(eligible, c)
	}
	if len(eligible) == 0 {
		return SelectionResult{ReasonCode: ReasonCodeEmptyBacklog}
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Adjusted != eligible[j].Adjusted {
			return eligible[i].Adjusted > eligible[j].Adjusted
		}
		return eligible[i].Item.ID < eligible[j].Item.ID
	})

	maxDebtSpend := (cfg.TargetDebtRatio + cfg.DebtTolerance) * cfg.AvailableCapacity

	var result SelectionResult
	for _, c := range eligible {
		estimate := c.Item.Estimate
		if estimate <= 0 {
			continue
		}
		if result.CapacityUsed+estimate > cfg.AvailableCapacity {
			continue
		}
		debt := c.Class == ClassOptimization
		if debt && result.DebtSpend+estimate > maxDebtSpend {
			continue
		}
		result.CapacityUsed += estimate
		if debt {
			result.DebtSpend += estimate
		}
		result.Selected = append(result.Selected, Selection{
			ItemID:     c.Item.ID,
			Identifier: c.Item.Identifier,
			Title:      c.Item.Title,
			Class:      c.Class,
			Estimate:   estimate,
			Score:      c.Score,
			Adjusted:   c.Adjusted,
			Tier:       tierFor(result.CapacityUsed, cfg.AvailableCapacity),
			NewWork:    c.Item.State != StateStarted,
		})
	}
	return result
}

// tierFor assigns the commitment tier from capacity consumed so far.
func tierFor(used, available float64) string {
	switch {
	case used <= 0.7*available:
		return TierMustHave
	case used <= 0.9*available:
		return TierShouldHave
	default:
		return TierCouldHave
	}
}
