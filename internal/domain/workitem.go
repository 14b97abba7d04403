package domain

import (
	"slices"
	"strings"
	"time"
)

// ItemState represents canonical tracker lifecycle state values.
type ItemState string

// Canonical item states, mirroring tracker workflow state types.
const (
	StateTriage    ItemState = "triage"
	StateBacklog   ItemState = "backlog"
	StateUnstarted ItemState = "unstarted"
	StateStarted   ItemState = "started"
	StateCompleted ItemState = "completed"
	StateCanceled  ItemState = "canceled"
)

// validItemStates stores supported item-state values.
var validItemStates = []ItemState{
	StateTriage,
	StateBacklog,
	StateUnstarted,
	StateStarted,
	StateCompleted,
	StateCanceled,
}

// Priority represents tracker priority, 0 (urgent) through 4 (none).
type Priority int

// Priority values, lower is more urgent.
const (
	PriorityUrgent Priority = 0
	PriorityHigh   Priority = 1
	PriorityMedium Priority = 2
	PriorityLow    Priority = 3
	PriorityNone   Priority = 4
)

// WorkItem stores one immutable tracker item snapshot used for a planning run.
type WorkItem struct {
	ID          string
	Identifier  string
	Title       string
	Labels      []string
	Priority    Priority
	Estimate    float64
	State       ItemState
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	BlockedBy   []string
	Blocks      []string
}

// WorkItemInput holds raw tracker values for constructing one work item.
type WorkItemInput struct {
	ID          string
	Identifier  string
	Title       string
	Labels      []string
	Priority    Priority
	Estimate    float64
	State       ItemState
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	BlockedBy   []string
	Blocks      []string
}

// NewWorkItem validates and normalizes one tracker item snapshot.
func NewWorkItem(in WorkItemInput) (WorkItem, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Identifier = strings.TrimSpace(in.Identifier)
	in.Title = strings.TrimSpace(in.Title)
	in.State = NormalizeItemState(in.State)

	if in.ID == "" {
		return WorkItem{}, ErrInvalidID
	}
	if in.Title == "" {
		return WorkItem{}, ErrInvalidTitle
	}
	if !IsValidItemState(in.State) {
		return WorkItem{}, ErrInvalidState
	}
	if in.Priority < PriorityUrgent || in.Priority > PriorityNone {
		return WorkItem{}, ErrInvalidPriority
	}
	if in.Estimate < 0 {
		return WorkItem{}, ErrInvalidEstimate
	}
	if in.CreatedAt.IsZero() || in.UpdatedAt.IsZero() {
		return WorkItem{}, ErrInvalidTimestamp
	}
	if in.UpdatedAt.Before(in.CreatedAt) {
		return WorkItem{}, ErrInvalidTimestamp
	}

	item := WorkItem{
		ID:         in.ID,
		Identifier: in.Identifier,
		Title:      in.Title,
		Labels:     normalizeLabels(in.Labels),
		Priority:   in.Priority,
		Estimate:   in.Estimate,
		State:      in.State,
		CreatedAt:  in.CreatedAt.UTC(),
		UpdatedAt:  in.UpdatedAt.UTC(),
		BlockedBy:  normalizeStringList(in.BlockedBy),
		Blocks:     normalizeStringList(in.Blocks),
	}
	if in.StartedAt != nil {
		ts := in.StartedAt.UTC()
		item.StartedAt = &ts
	}
	if in.CompletedAt != nil {
		ts := in.CompletedAt.UTC()
		item.CompletedAt = &ts
	}
	return item, nil
}

// NormalizeItemState canonicalizes tracker state aliases.
func NormalizeItemState(state ItemState) ItemState {
	switch strings.TrimSpace(strings.ToLower(string(state))) {
	case "triage":
		return StateTriage
	case "backlog":
		return StateBacklog
	case "unstarted", "todo", "to-do":
		return StateUnstarted
	case "started", "in-progress", "progress", "doing":
		return StateStarted
	case "completed", "done", "complete":
		return StateCompleted
	case "canceled", "cancelled":
		return StateCanceled
	default:
		return ItemState(strings.TrimSpace(strings.ToLower(string(state))))
	}
}

// IsValidItemState reports whether the item state is canonical.
func IsValidItemState(state ItemState) bool {
	return slices.Contains(validItemStates, NormalizeItemState(state))
}

// IsActive reports whether the item counts toward work in progress.
func (item WorkItem) IsActive() bool {
	return item.State == StateStarted
}

// IsOpen reports whether the item is still selectable backlog work.
func (item WorkItem) IsOpen() bool {
	switch item.State {
	case StateTriage, StateBacklog, StateUnstarted:
		return true
	default:
		return false
	}
}

// IsFinished reports whether the item reached a terminal state.
func (item WorkItem) IsFinished() bool {
	return item.State == StateCompleted || item.State == StateCanceled
}

// HasLabel reports whether the item carries the given normalized label.
func (item WorkItem) HasLabel(label string) bool {
	return slices.Contains(item.Labels, strings.TrimSpace(strings.ToLower(label)))
}

// normalizeLabels lowercases, trims and deduplicates labels.
func normalizeLabels(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, raw := range in {
		label := strings.TrimSpace(strings.ToLower(raw))
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

// normalizeStringList trims and deduplicates string slices.
func normalizeStringList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, raw := range in {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
