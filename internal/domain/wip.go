package domain

import "fmt"

// WipCategory identifies one tracked work-in-progress category.
type WipCategory string

// WipCategory values.
const (
	WipFeatures     WipCategory = "features"
	WipFixes        WipCategory = "fixes"
	WipEnhancements WipCategory = "enhancements"
	WipDocs         WipCategory = "docs"
)

// wipCategoryOrder fixes the reporting order for category snapshots.
var wipCategoryOrder = []WipCategory{WipFeatures, WipFixes, WipEnhancements, WipDocs}

// WipStatus labels the load level of one category.
type WipStatus string

// WipStatus values.
const (
	WipStatusHealthy    WipStatus = "healthy"
	WipStatusWarning    WipStatus = "warning"
	WipStatusOverloaded WipStatus = "overloaded"
)

// WipLimits holds per-category concurrency limits.
type WipLimits struct {
	Features     int
	Fixes        int
	Enhancements int
	Docs         int
}

// DefaultWipLimits returns the default per-category limits.
func DefaultWipLimits() WipLimits {
	return WipLimits{Features: 3, Fixes: 5, Enhancements: 2, Docs: 2}
}

// Validate reports whether every limit is positive.
func (l WipLimits) Validate() error {
	for _, limit := range []int{l.Features, l.Fixes, l.Enhancements, l.Docs} {
		if limit <= 0 {
			return ErrInvalidLimit
		}
	}
	return nil
}

// limitFor returns the configured limit for one category.
func (l WipLimits) limitFor(category WipCategory) int {
	switch category {
	case WipFeatures:
		return l.Features
	case WipFixes:
		return l.Fixes
	case WipEnhancements:
		return l.Enhancements
	default:
		return l.Docs
	}
}

// WipSnapshot is the derived load picture for one category.
type WipSnapshot struct {
	Category    WipCategory
	Count       int
	Limit       int
	Utilization float64
	HealthScore float64
	Status      WipStatus
}

// WipReport aggregates per-category snapshots into an overall health picture.
type WipReport struct {
	Categories      []WipSnapshot
	OverallScore    float64
	Recommendations []string
}

// wipCategoryFor buckets one active item into a WIP category. Labels win over
// classification so that fix/doc work tagged by the tracker lands in the right
// bucket regardless of its title keywords.
func wipCategoryFor(item WorkItem) WipCategory {
	switch {
	case item.HasLabel("bug") || item.HasLabel("fix"):
		return WipFixes
	case item.HasLabel("documentation") || item.HasLabel("docs"):
		return WipDocs
	case item.HasLabel("feature"):
		return WipFeatures
	}
	switch Classify(item) {
	case ClassEnhancement:
		return WipEnhancements
	case ClassOptimization, ClassImprovement:
		return WipEnhancements
	default:
		return WipFeatures
	}
}

// AnalyzeWIP scores current work-in-progress load per category against limits.
// Only active items count. Category health: 1.0 up to 80% utilization, 0.8 in
// the warning band, and max(0, 1-(utilization-1.0)) once over the limit.
func AnalyzeWIP(items []WorkItem, limits WipLimits) WipReport {
	counts := map[WipCategory]int{}
	for _, item := range items {
		if !item.IsActive() {
			continue
		}
		counts[wipCategoryFor(item)]++
	}

	report := WipReport{Categories: make([]WipSnapshot, 0, len(wipCategoryOrder))}
	var total float64
	for _, category := range wipCategoryOrder {
		snap := scoreWipCategory(category, counts[category], limits.limitFor(category))
		report.Categories = append(report.Categories, snap)
		total += snap.HealthScore

		switch snap.Status {
		case WipStatusOverloaded:
			report.Recommendations = append(report.Recommendations, fmt.Sprintf(
				"%s overloaded: %d active against limit %d; finish before starting new work",
				category, snap.Count, snap.Limit))
		case WipStatusWarning:
			report.Recommendations = append(report.Recommendations, fmt.Sprintf(
				"%s near limit: %d active against limit %d", category, snap.Count, snap.Limit))
		}
	}
	report.OverallScore = total / float64(len(wipCategoryOrder))
	return report
}

// scoreWipCategory derives one category snapshot from its count and limit.
func scoreWipCategory(category WipCategory, count, limit int) WipSnapshot {
	snap := WipSnapshot{Category: category, Count: count, Limit: limit}
	if limit <= 0 {
		limit = 1
		snap.Limit = limit
	}
	snap.Utilization = float64(count) / float64(limit)

	switch {
	case snap.Utilization > 1.0:
		snap.Status = WipStatusOverloaded
		snap.HealthScore = 1.0 - (snap.Utilization - 1.0)
		if snap.HealthScore < 0 {
			snap.HealthScore = 0
		}
	case snap.Utilization > 0.8:
		snap.Status = WipStatusWarning
		snap.HealthScore = 0.8
	default:
		snap.Status = WipStatusHealthy
		snap.HealthScore = 1.0
	}
	return snap
}
