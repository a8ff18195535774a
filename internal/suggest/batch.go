// Package suggest applies caller-reviewed batches of proposed dossier
// records. Proposals come from an external advisory service already shaped
// into unit/risk/action records; this package only orders, creates and
// accounts for them — it never calls the advisory service itself.
package suggest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"duerp.org/internal/prevention"
)

// Batch statuses reported in Result.
const (
	StatusApplied          = "applied"
	StatusPartiallyApplied = "partially_applied"
)

// ProposedUnit is a candidate work unit. Skip excludes it from the apply.
type ProposedUnit struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Headcount *int   `json:"headcount,omitempty"`
	JobTitles string `json:"job_titles,omitempty"`
	Skip      bool   `json:"skip,omitempty"`
}

// ProposedAction is a candidate remediation action nested under a risk.
type ProposedAction struct {
	Description string                    `json:"description"`
	Type        prevention.ActionType     `json:"type"`
	Priority    prevention.ActionPriority `json:"priority"`
	Responsible string                    `json:"responsible,omitempty"`
	DueAt       *time.Time                `json:"due_at,omitempty"`
	Skip        bool                      `json:"skip,omitempty"`
}

// ProposedRisk is a candidate risk entry. UnitCode may name a proposed unit
// from the same batch or a pre-existing unit; an unresolvable code is not a
// failure — the risk is created unattached and reported for later re-linking.
type ProposedRisk struct {
	CategoryCode string           `json:"category_code,omitempty"`
	Hazard       string           `json:"hazard"`
	Situation    string           `json:"situation,omitempty"`
	Consequences string           `json:"consequences,omitempty"`
	Mitigation   string           `json:"mitigation,omitempty"`
	UnitCode     string           `json:"unit_code,omitempty"`
	Frequency    *int             `json:"frequency,omitempty"`
	Gravity      *int             `json:"gravity,omitempty"`
	Mastery      *float64         `json:"mastery,omitempty"`
	Rationale    string           `json:"rationale,omitempty"`
	Actions      []ProposedAction `json:"actions,omitempty"`
	Skip         bool             `json:"skip,omitempty"`
}

// Batch is one advisory proposal set after caller review.
type Batch struct {
	Units []ProposedUnit `json:"units"`
	Risks []ProposedRisk `json:"risks"`
}

// Failure records one item that could not be created. Failed items are not
// retried; the caller decides what to do with them.
type Failure struct {
	Kind  string `json:"kind"` // unit | risk | action
	Label string `json:"label"`
	Error string `json:"error"`
}

// Result accounts for what was actually created, not attempted.
type Result struct {
	Status          string    `json:"status"`
	UnitsCreated    int       `json:"units_created"`
	RisksCreated    int       `json:"risks_created"`
	ActionsCreated  int       `json:"actions_created"`
	UnattachedRisks []string  `json:"unattached_risks,omitempty"`
	Failures        []Failure `json:"failures,omitempty"`
}

// Applier creates accepted proposals against a store in dependency order.
type Applier struct {
	store prevention.Store
}

// NewApplier wires the applier to its persistence collaborator.
func NewApplier(store prevention.Store) *Applier {
	return &Applier{store: store}
}

// Apply creates the non-skipped items of the batch in three tiers: units,
// then risks, then actions nested under successfully created risks. Each
// create is independently committed and a failure never aborts its
// siblings. The returned error is non-nil only when the store is unreachable
// before any create was attempted.
func (a *Applier) Apply(ctx context.Context, batch Batch) (Result, error) {
	existing, err := a.store.ListWorkUnits(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("suggest: load existing units: %w", err)
	}

	unitIDs := make(map[string]string, len(existing)+len(batch.Units))
	for _, unit := range existing {
		unitIDs[normalizeCode(unit.Code)] = unit.ID
	}

	var res Result

	for _, proposed := range batch.Units {
		if proposed.Skip {
			continue
		}
		created, err := a.store.CreateWorkUnit(ctx, prevention.WorkUnit{
			Code:      proposed.Code,
			Name:      proposed.Name,
			Headcount: proposed.Headcount,
			JobTitles: proposed.JobTitles,
		})
		if err != nil {
			res.Failures = append(res.Failures, Failure{Kind: "unit", Label: proposed.Code, Error: err.Error()})
			continue
		}
		res.UnitsCreated++
		unitIDs[normalizeCode(created.Code)] = created.ID
	}

	for _, proposed := range batch.Risks {
		if proposed.Skip {
			continue
		}
		var unitID *string
		if code := normalizeCode(proposed.UnitCode); code != "" {
			if id, ok := unitIDs[code]; ok {
				unitID = &id
			} else {
				res.UnattachedRisks = append(res.UnattachedRisks, proposed.Hazard)
			}
		}
		created, err := a.store.CreateRisk(ctx, prevention.Risk{
			CategoryCode: proposed.CategoryCode,
			Hazard:       proposed.Hazard,
			Situation:    proposed.Situation,
			Consequences: proposed.Consequences,
			Mitigation:   proposed.Mitigation,
			UnitID:       unitID,
			Frequency:    proposed.Frequency,
			Gravity:      proposed.Gravity,
			Mastery:      proposed.Mastery,
		})
		if err != nil {
			// Nested actions have no valid parent; they are not attempted.
			res.Failures = append(res.Failures, Failure{Kind: "risk", Label: proposed.Hazard, Error: err.Error()})
			continue
		}
		res.RisksCreated++

		for _, action := range proposed.Actions {
			if action.Skip {
				continue
			}
			riskID := created.ID
			_, err := a.store.CreateAction(ctx, prevention.RemediationAction{
				RiskID:      &riskID,
				Description: action.Description,
				Type:        action.Type,
				Priority:    action.Priority,
				Responsible: action.Responsible,
				DueAt:       action.DueAt,
			})
			if err != nil {
				res.Failures = append(res.Failures, Failure{Kind: "action", Label: action.Description, Error: err.Error()})
				continue
			}
			res.ActionsCreated++
		}
	}

	res.Status = StatusApplied
	if len(res.Failures) > 0 {
		res.Status = StatusPartiallyApplied
	}
	return res, nil
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
