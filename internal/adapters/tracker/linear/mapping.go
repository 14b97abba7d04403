package linear

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nizamiq/cadence/internal/domain"
	"github.com/nizamiq/cadence/internal/planner"
)

// gqlCycle is the wire shape of one Linear cycle.
type gqlCycle struct {
	ID                         string    `json:"id"`
	Name                       string    `json:"name"`
	Number                     int       `json:"number"`
	StartsAt                   string    `json:"startsAt"`
	EndsAt                     string    `json:"endsAt"`
	ScopeHistory               []float64 `json:"scopeHistory"`
	CompletedScopeHistory      []float64 `json:"completedScopeHistory"`
	IssueCountHistory          []int     `json:"issueCountHistory"`
	CompletedIssueCountHistory []int     `json:"completedIssueCountHistory"`
}

// gqlIssue is the wire shape of one Linear issue.
type gqlIssue struct {
	ID         string   `json:"id"`
	Identifier string   `json:"identifier"`
	Title      string   `json:"title"`
	Priority   int      `json:"priority"`
	Estimate   *float64 `json:"estimate"`
	State      struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"state"`
	Labels struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"labels"`
	Relations struct {
		Nodes []struct {
			Type         string `json:"type"`
			RelatedIssue struct {
				ID    string `json:"id"`
				State struct {
					Type string `json:"type"`
				} `json:"state"`
			} `json:"relatedIssue"`
		} `json:"nodes"`
	} `json:"relations"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
	StartedAt   string `json:"startedAt"`
	CompletedAt string `json:"completedAt"`
}

// mapCycle converts one wire cycle into a domain snapshot.
func mapCycle(gc gqlCycle) (domain.CycleSnapshot, error) {
	startsAt, err := time.Parse(time.RFC3339, gc.StartsAt)
	if err != nil {
		return domain.CycleSnapshot{}, fmt.Errorf("cycle %s startsAt: %w", gc.ID, err)
	}
	endsAt, err := time.Parse(time.RFC3339, gc.EndsAt)
	if err != nil {
		return domain.CycleSnapshot{}, fmt.Errorf("cycle %s endsAt: %w", gc.ID, err)
	}
	cycle, err := domain.NewCycleSnapshot(gc.ID, gc.Name, gc.Number, startsAt, endsAt)
	if err != nil {
		return domain.CycleSnapshot{}, fmt.Errorf("cycle %s: %w", gc.ID, err)
	}
	if n := len(gc.ScopeHistory); n > 0 {
		cycle.ScopePoints = gc.ScopeHistory[n-1]
	}
	if n := len(gc.CompletedScopeHistory); n > 0 {
		cycle.CompletedPoints = gc.CompletedScopeHistory[n-1]
	}
	if n := len(gc.IssueCountHistory); n > 0 {
		cycle.TotalIssues = gc.IssueCountHistory[n-1]
	}
	if n := len(gc.CompletedIssueCountHistory); n > 0 {
		cycle.CompletedIssues = gc.CompletedIssueCountHistory[n-1]
	}
	return cycle, nil
}

// mapIssues converts wire issues into domain items, appending unusable ones to
// the skip list instead of failing the snapshot.
func mapIssues(issues []gqlIssue, skipped []planner.SkippedItem) ([]domain.WorkItem, []planner.SkippedItem) {
	items := make([]domain.WorkItem, 0, len(issues))
	for _, gi := range issues {
		item, err := mapIssue(gi)
		if err != nil {
			skipped = append(skipped, planner.SkippedItem{ID: gi.ID, Reason: err.Error()})
			continue
		}
		items = append(items, item)
	}
	return items, skipped
}

// mapIssue converts one wire issue into a domain work item.
func mapIssue(gi gqlIssue) (domain.WorkItem, error) {
	createdAt, err := time.Parse(time.RFC3339, gi.CreatedAt)
	if err != nil {
		return domain.WorkItem{}, fmt.Errorf("createdAt: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339, gi.UpdatedAt)
	if err != nil {
		return domain.WorkItem{}, fmt.Errorf("updatedAt: %w", err)
	}

	in := domain.WorkItemInput{
		ID:         gi.ID,
		Identifier: gi.Identifier,
		Title:      gi.Title,
		Priority:   mapPriority(gi.Priority),
		State:      domain.NormalizeItemState(domain.ItemState(gi.State.Type)),
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
	if gi.Estimate != nil {
		in.Estimate = *gi.Estimate
	}
	for _, label := range gi.Labels.Nodes {
		in.Labels = append(in.Labels, label.Name)
	}
	for _, rel := range gi.Relations.Nodes {
		switch rel.Type {
		case "blocks":
			in.BlockedBy = append(in.BlockedBy, rel.RelatedIssue.ID)
		case "blocked":
			in.Blocks = append(in.Blocks, rel.RelatedIssue.ID)
		}
	}
	if gi.StartedAt != "" {
		if ts, err := time.Parse(time.RFC3339, gi.StartedAt); err == nil {
			in.StartedAt = &ts
		}
	}
	if gi.CompletedAt != "" {
		if ts, err := time.Parse(time.RFC3339, gi.CompletedAt); err == nil {
			in.CompletedAt = &ts
		}
	}
	return domain.NewWorkItem(in)
}

// mapPriority converts Linear priority (0 none, 1 urgent .. 4 low) onto the
// domain scale (0 urgent .. 4 none).
func mapPriority(p int) domain.Priority {
	switch p {
	case 1:
		return domain.PriorityUrgent
	case 2:
		return domain.PriorityHigh
	case 3:
		return domain.PriorityMedium
	case 4:
		return domain.PriorityLow
	default:
		return domain.PriorityNone
	}
}

// PublishPlan assigns every selected issue to the planned cycle and files the
// rendered planning document as a new issue on the team.
func (c *Client) PublishPlan(ctx context.Context, plan domain.Plan, document string) error {
	for _, id := range plan.SelectedIDs() {
		var out struct {
			IssueUpdate struct {
				Success bool `json:"success"`
			} `json:"issueUpdate"`
		}
		vars := map[string]any{"id": id, "input": map[string]any{"cycleId": plan.CycleID}}
		if err := c.do(ctx, assignCycleMutation, vars, &out); err != nil {
			return fmt.Errorf("assign %s to cycle: %w", id, err)
		}
		if !out.IssueUpdate.Success {
			return fmt.Errorf("assign %s to cycle: tracker rejected update", id)
		}
	}

	teamID, err := c.resolveTeamID(ctx)
	if err != nil {
		return err
	}
	name := plan.CycleName
	if name == "" {
		name = plan.CycleID
	}
	input := map[string]any{
		"teamId":      teamID,
		"cycleId":     plan.CycleID,
		"title":       fmt.Sprintf("Cycle Planning: %s", name),
		"description": document,
	}
	var out struct {
		IssueCreate struct {
			Success bool `json:"success"`
		} `json:"issueCreate"`
	}
	if err := c.do(ctx, planningIssueMutation, map[string]any{"input": input}, &out); err != nil {
		return fmt.Errorf("file planning issue: %w", err)
	}
	if !out.IssueCreate.Success {
		return fmt.Errorf("file planning issue: tracker rejected create")
	}
	return nil
}

// AnnotateEscalations writes one comment per escalated issue back to the
// tracker.
func (c *Client) AnnotateEscalations(ctx context.Context, cycleID string, escalations []domain.Escalation) error {
	for _, esc := range escalations {
		body := fmt.Sprintf("**%s**: %s", strings.ReplaceAll(string(esc.Kind), "_", " "), esc.Message)
		input := map[string]any{"issueId": esc.WorkItemID, "body": body}
		var out struct {
			CommentCreate struct {
				Success bool `json:"success"`
			} `json:"commentCreate"`
		}
		if err := c.do(ctx, commentMutation, map[string]any{"input": input}, &out); err != nil {
			return fmt.Errorf("annotate %s: %w", esc.WorkItemID, err)
		}
		if !out.CommentCreate.Success {
			return fmt.Errorf("annotate %s: tracker rejected comment", esc.WorkItemID)
		}
	}
	return nil
}
