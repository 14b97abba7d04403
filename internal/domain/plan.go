package domain

import "time"

// Plan is the final output of one planning run. It is produced once, handed to
// downstream collaborators for persistence and reporting, then discarded.
type Plan struct {
	RunID       string
	CycleID     string
	CycleName   string
	GeneratedAt time.Time

	Mode       Mode
	ModeReason string

	Selected  []Selection
	Truncated []Selection

	CapacityGross     float64
	CapacityCarryover float64
	CapacityBuffer    float64
	CapacityAvailable float64
	CapacityUsed      float64

	TargetDebtRatio   float64
	AchievedDebtRatio float64
	DebtSpend         float64
	DebtAdjustments   []AppliedAdjustment

	InitiationCap    int
	InitiationCapped bool

	Escalations []Escalation
	ReasonCode  string
}

// SelectedIDs returns the selected item IDs in selection order.
func (p Plan) SelectedIDs() []string {
	ids := make([]string, 0, len(p.Selected))
	for _, sel := range p.Selected {
		ids = append(ids, sel.ItemID)
	}
	return ids
}

// IsEmpty reports whether the plan selected nothing.
func (p Plan) IsEmpty() bool {
	return len(p.Selected) == 0
}
