package domain

import (
	"strings"
	"time"
)

// FeatureStatus represents one registry entry's implementation status.
type FeatureStatus string

// FeatureStatus values.
const (
	FeatureImplemented FeatureStatus = "implemented"
	FeaturePartial     FeatureStatus = "partial"
	FeaturePlanned     FeatureStatus = "planned"
)

// NormalizeFeatureStatus canonicalizes one feature-status value.
func NormalizeFeatureStatus(status FeatureStatus) FeatureStatus {
	switch strings.TrimSpace(strings.ToLower(string(status))) {
	case "implemented", "done", "complete":
		return FeatureImplemented
	case "partial", "in-progress", "wip":
		return FeaturePartial
	default:
		return FeaturePlanned
	}
}

// FeatureRecord is one feature registry entry.
type FeatureRecord struct {
	Name    string
	Status  FeatureStatus
	Blocked bool
}

// ReleaseContext holds the release-proximity signals for one planning run.
// It is recomputed from scratch every run and never persisted.
type ReleaseContext struct {
	DaysToRelease              int
	PartialFeatureRatio        float64
	BlockedPartialFeatureCount int
	ManualSprintFlag           bool
	IsPostRelease              bool
}

// BuildReleaseContext derives release signals from the release date and the
// feature registry. A zero releaseAt means no release is scheduled; days to
// release is then reported as a large sentinel so no proximity trigger fires.
// A past releaseAt marks the context post-release and reports the same
// sentinel: proximity stops firing once the date passes, and only the
// post-release debt boost remains active.
func BuildReleaseContext(releaseAt time.Time, features []FeatureRecord, manualFlag bool, now time.Time) ReleaseContext {
	ctx := ReleaseContext{ManualSprintFlag: manualFlag, DaysToRelease: noReleaseScheduled}
	if !releaseAt.IsZero() {
		days := int(releaseAt.UTC().Sub(now.UTC()).Hours() / 24)
		if days < 0 {
			ctx.IsPostRelease = true
		} else {
			ctx.DaysToRelease = days
		}
	}

	var partial int
	for _, f := range features {
		if NormalizeFeatureStatus(f.Status) != FeaturePartial {
			continue
		}
		partial++
		if f.Blocked {
			ctx.BlockedPartialFeatureCount++
		}
	}
	if len(features) > 0 {
		ctx.PartialFeatureRatio = float64(partial) / float64(len(features))
	}
	return ctx
}

// noReleaseScheduled keeps proximity triggers quiet when no date is set.
const noReleaseScheduled = 1 << 20

// Mode is the planning operating mode.
type Mode string

// Mode values.
const (
	ModeNormal        Mode = "normal"
	ModeReleaseSprint Mode = "release_sprint"
)

// Mode transition reasons, in trigger-evaluation order.
const (
	ReasonManualOverride  = "manual_override"
	ReasonReleaseImminent = "release_imminent"
	ReasonPartialFeatures = "partial_features"
	ReasonWipHealth       = "wip_health"
	ReasonAgingPressure   = "aging_pressure"
)

// ReleaseTriggers configures the release-sprint predicate thresholds.
type ReleaseTriggers struct {
	DaysToRelease       int
	PartialFeatureRatio float64
	WipHealthScore      float64
	SevereAgedItems     int
}

// DefaultReleaseTriggers returns the default trigger thresholds.
func DefaultReleaseTriggers() ReleaseTriggers {
	return ReleaseTriggers{
		DaysToRelease:       7,
		PartialFeatureRatio: 0.20,
		WipHealthScore:      0.6,
		SevereAgedItems:     2,
	}
}

// Validate reports whether trigger thresholds are in range.
func (t ReleaseTriggers) Validate() error {
	if t.DaysToRelease < 0 || t.SevereAgedItems < 0 {
		return ErrInvalidThresholds
	}
	if t.PartialFeatureRatio < 0 || t.PartialFeatureRatio > 1 {
		return ErrInvalidThresholds
	}
	if t.WipHealthScore < 0 || t.WipHealthScore > 1 {
		return ErrInvalidThresholds
	}
	return nil
}

// DecideMode recomputes the operating mode from current signals. There is no
// stored mode and no transition back: a run that no longer satisfies any
// trigger simply evaluates to normal again. The first matching trigger, in
// fixed order, supplies the reason.
func DecideMode(rc ReleaseContext, wipOverall float64, severeCount int, triggers ReleaseTriggers) (Mode, string) {
	switch {
	case rc.ManualSprintFlag:
		return ModeReleaseSprint, ReasonManualOverride
	case rc.DaysToRelease <= triggers.DaysToRelease:
		return ModeReleaseSprint, ReasonReleaseImminent
	case rc.PartialFeatureRatio > triggers.PartialFeatureRatio:
		return ModeReleaseSprint, ReasonPartialFeatures
	case wipOverall < triggers.WipHealthScore:
		return ModeReleaseSprint, ReasonWipHealth
	case severeCount > triggers.SevereAgedItems:
		return ModeReleaseSprint, ReasonAgingPressure
	default:
		return ModeNormal, ""
	}
}
