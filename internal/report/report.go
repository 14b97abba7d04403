// Package report renders a committed plan as the markdown planning document
// pushed to the tracker, and parses rendered documents back. Rendering and
// parsing round-trip the selected-item-ID set exactly.
package report

import (
	"fmt"
	"strings"

	"github.com/nizamiq/cadence/internal/domain"
)

// tier headings in render order.
var tierHeadings = []struct {
	tier  string
	title string
}{
	{domain.TierMustHave, "Must Have (Committed)"},
	{domain.TierShouldHave, "Should Have (Likely)"},
	{domain.TierCouldHave, "Could Have (Stretch)"},
}

// Render emits the markdown planning document for one plan.
func Render(plan domain.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Cycle Planning: %s\n\n", planTitle(plan))
	fmt.Fprintf(&b, "Mode: **%s**", plan.Mode)
	if plan.ModeReason != "" {
		fmt.Fprintf(&b, " (%s)", plan.ModeReason)
	}
	b.WriteString("\n\n")

	b.WriteString("## Capacity\n\n")
	b.WriteString("| Metric | Points |\n|--------|--------|\n")
	fmt.Fprintf(&b, "| Gross | %.1f |\n", plan.CapacityGross)
	fmt.Fprintf(&b, "| Carryover | %.1f |\n", plan.CapacityCarryover)
	fmt.Fprintf(&b, "| Buffer | %.1f |\n", plan.CapacityBuffer)
	fmt.Fprintf(&b, "| Available | %.1f |\n", plan.CapacityAvailable)
	fmt.Fprintf(&b, "| Used | %.1f |\n", plan.CapacityUsed)
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Technical Debt\n\nTarget ratio %.2f, achieved %.2f (%.1f points).\n\n",
		plan.TargetDebtRatio, plan.AchievedDebtRatio, plan.DebtSpend)
	for _, adj := range plan.DebtAdjustments {
		fmt.Fprintf(&b, "- adjustment %s: x%.2f\n", adj.Name, adj.Multiplier)
	}
	if len(plan.DebtAdjustments) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("## Selected Issues\n")
	for _, heading := range tierHeadings {
		fmt.Fprintf(&b, "\n### %s\n\n", heading.title)
		count := 0
		for _, sel := range plan.Selected {
			if sel.Tier != heading.tier {
				continue
			}
			b.WriteString(renderSelection(sel))
			count++
		}
		if count == 0 {
			b.WriteString("_none_\n")
		}
	}

	if len(plan.Truncated) > 0 {
		fmt.Fprintf(&b, "\n## Deferred by Initiation Control (cap %d)\n\n", plan.InitiationCap)
		for _, sel := range plan.Truncated {
			b.WriteString(renderSelection(sel))
		}
	}

	if len(plan.Escalations) > 0 {
		b.WriteString("\n## Escalations\n\n")
		for _, esc := range plan.Escalations {
			fmt.Fprintf(&b, "- %s: %s\n", esc.Kind, esc.Message)
		}
	}

	if plan.ReasonCode != "" {
		fmt.Fprintf(&b, "\n> Plan is partial or empty: %s\n", plan.ReasonCode)
	}
	return b.String()
}

// renderSelection emits one selected-item bullet. The backticked item ID is
// the parse anchor; everything after it is presentation.
func renderSelection(sel domain.Selection) string {
	ref := sel.Identifier
	if ref == "" {
		ref = sel.ItemID
	}
	return fmt.Sprintf("- `%s` [%s] %s (%.1f pts, %s, score %.2f)\n",
		sel.ItemID, ref, sel.Title, sel.Estimate, sel.Class, sel.Adjusted)
}

// planTitle falls back to the cycle ID when the cycle is unnamed.
func planTitle(plan domain.Plan) string {
	if plan.CycleName != "" {
		return plan.CycleName
	}
	return plan.CycleID
}

// ParseSelectedIDs recovers the selected-item-ID set, in selection order, from
// a rendered planning document. Deferred and escalation sections are ignored.
func ParseSelectedIDs(doc string) []string {
	var ids []string
	inSelected := false
	for _, line := range strings.Split(doc, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "## "):
			inSelected = trimmed == "## Selected Issues"
			continue
		case !inSelected:
			continue
		case !strings.HasPrefix(trimmed, "- `"):
			continue
		}
		rest := trimmed[len("- `"):]
		end := strings.Index(rest, "`")
		if end <= 0 {
			continue
		}
		ids = append(ids, rest[:end])
	}
	return ids
}
