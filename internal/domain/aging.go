package domain

import (
	"fmt"
	"time"
)

// AgingStatus classifies how long an item has been sitting in the backlog.
type AgingStatus string

// AgingStatus values, from youngest to oldest.
const (
	AgingNormal   AgingStatus = "normal"
	AgingWarning  AgingStatus = "warning"
	AgingCritical AgingStatus = "critical"
	AgingSevere   AgingStatus = "severe"
)

// AgingThresholds configures the day boundaries for aging classification and
// the stale-update window.
type AgingThresholds struct {
	WarningDays  int
	CriticalDays int
	SevereDays   int
	StaleDays    int
}

// DefaultAgingThresholds returns the default aging boundaries.
func DefaultAgingThresholds() AgingThresholds {
	return AgingThresholds{WarningDays: 14, CriticalDays: 21, SevereDays: 30, StaleDays: 7}
}

// Validate enforces strictly increasing thresholds and a positive stale window.
func (t AgingThresholds) Validate() error {
	if t.WarningDays <= 0 || t.StaleDays <= 0 {
		return ErrInvalidThresholds
	}
	if t.CriticalDays <= t.WarningDays || t.SevereDays <= t.CriticalDays {
		return ErrInvalidThresholds
	}
	return nil
}

// AgingRecord is the derived staleness picture for one item.
type AgingRecord struct {
	WorkItemID       string
	Identifier       string
	DaysSinceCreated int
	DaysSinceUpdate  int
	Status           AgingStatus
	IsStale          bool
}

// EscalationKind identifies one escalation signal type.
type EscalationKind string

// EscalationKind values.
const (
	EscalationImmediateReview EscalationKind = "immediate_review"
	EscalationScheduledReview EscalationKind = "scheduled_review"
	EscalationStatusUpdate    EscalationKind = "status_update"
)

// Escalation is one raised signal for a stagnating item.
type Escalation struct {
	WorkItemID string
	Identifier string
	Kind       EscalationKind
	Message    string
}

// AgingReport aggregates per-item aging records and the escalations they raise.
type AgingReport struct {
	Records     []AgingRecord
	SevereCount int
	Escalations []Escalation
}

// AnalyzeAging classifies active and open items by staleness against now and
// raises escalation entries for severe, critical and stale items.
func AnalyzeAging(items []WorkItem, now time.Time, thresholds AgingThresholds) AgingReport {
	now = now.UTC()
	report := AgingReport{Records: make([]AgingRecord, 0, len(items))}

	for _, item := range items {
		if item.IsFinished() {
			continue
		}
		record := AgingRecord{
			WorkItemID:       item.ID,
			Identifier:       item.Identifier,
			DaysSinceCreated: wholeDays(item.CreatedAt, now),
			DaysSinceUpdate:  wholeDays(item.UpdatedAt, now),
		}
		record.Status = agingStatusFor(record.DaysSinceCreated, thresholds)
		record.IsStale = record.DaysSinceUpdate > thresholds.StaleDays
		report.Records = append(report.Records, record)

		switch record.Status {
		case AgingSevere:
			report.SevereCount++
			report.Escalations = append(report.Escalations, Escalation{
				WorkItemID: item.ID,
				Identifier: item.Identifier,
				Kind:       EscalationImmediateReview,
				Message:    fmt.Sprintf("%s open for %d days; review immediately or close", displayRef(item), record.DaysSinceCreated),
			})
		case AgingCritical:
			report.Escalations = append(report.Escalations, Escalation{
				WorkItemID: item.ID,
				Identifier: item.Identifier,
				Kind:       EscalationScheduledReview,
				Message:    fmt.Sprintf("%s open for %d days; schedule a review", displayRef(item), record.DaysSinceCreated),
			})
		}
		if record.IsStale {
			report.Escalations = append(report.Escalations, Escalation{
				WorkItemID: item.ID,
				Identifier: item.Identifier,
				Kind:       EscalationStatusUpdate,
				Message:    fmt.Sprintf("%s has had no update for %d days; request a status update", displayRef(item), record.DaysSinceUpdate),
			})
		}
	}
	return report
}

// agingStatusFor maps days-since-created onto an aging status.
func agingStatusFor(days int, t AgingThresholds) AgingStatus {
	switch {
	case days >= t.SevereDays:
		return AgingSevere
	case days >= t.CriticalDays:
		return AgingCritical
	case days >= t.WarningDays:
		return AgingWarning
	default:
		return AgingNormal
	}
}

// wholeDays returns whole days between from and to, at least zero.
func wholeDays(from, to time.Time) int {
	d := int(to.Sub(from).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// displayRef prefers the human identifier when referring to an item.
func displayRef(item WorkItem) string {
	if item.Identifier != "" {
		return item.Identifier
	}
	return item.ID
}
