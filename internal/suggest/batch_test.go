package suggest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"duerp.org/internal/catalogue"
	"duerp.org/internal/prevention"
)

func TestApplyBatchWithUnresolvableUnitCode(t *testing.T) {
	store := prevention.NewInMemory(catalogue.Default())
	applier := NewApplier(store)
	ctx := context.Background()

	batch := Batch{
		Units: []ProposedUnit{
			{Code: "UT1", Name: "Atelier mécanique"},
			{Code: "UT2", Name: "Magasin"},
		},
		Risks: []ProposedRisk{
			{Hazard: "Projection de copeaux", UnitCode: "UT1", Actions: []ProposedAction{{Description: "Fournir des lunettes", Type: prevention.ActionProtection, Priority: prevention.PriorityHigh}}},
			{Hazard: "Chute d'objets stockés", UnitCode: "UT2", Actions: []ProposedAction{{Description: "Arrimer les rayonnages", Type: prevention.ActionTechnical, Priority: prevention.PriorityMedium}}},
			{Hazard: "Bruit des compresseurs", UnitCode: "UT9", Actions: []ProposedAction{{Description: "Capoter le compresseur", Type: prevention.ActionTechnical, Priority: prevention.PriorityLow}}},
		},
	}

	res, err := applier.Apply(ctx, batch)
	if err != nil {
		t.Fatal(err)
	}
	if res.UnitsCreated != 2 || res.RisksCreated != 3 || res.ActionsCreated != 3 {
		t.Fatalf("unexpected counts: %+v", res)
	}
	if len(res.Failures) != 0 {
		t.Fatalf("expected zero failures, got %+v", res.Failures)
	}
	if len(res.UnattachedRisks) != 1 || res.UnattachedRisks[0] != "Bruit des compresseurs" {
		t.Fatalf("unresolved unit reference must be reported, got %+v", res.UnattachedRisks)
	}
	if res.Status != StatusApplied {
		t.Fatalf("expected %s, got %s", StatusApplied, res.Status)
	}

	risks, _ := store.ListRisks(ctx)
	var unattached *prevention.Risk
	for i := range risks {
		if risks[i].UnitID == nil {
			unattached = &risks[i]
		}
	}
	if unattached == nil || unattached.Hazard != "Bruit des compresseurs" {
		t.Fatalf("the unresolved risk must be created with a nil unit reference: %+v", risks)
	}
}

func TestApplyResolvesPreExistingUnitsByCode(t *testing.T) {
	store := prevention.NewInMemory(catalogue.Default())
	ctx := context.Background()
	existing, err := store.CreateWorkUnit(ctx, prevention.WorkUnit{Code: "UT1", Name: "Atelier"})
	if err != nil {
		t.Fatal(err)
	}

	res, err := NewApplier(store).Apply(ctx, Batch{
		Risks: []ProposedRisk{{Hazard: "Bruit", UnitCode: "ut1"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.RisksCreated != 1 || len(res.UnattachedRisks) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	risks, _ := store.ListRisks(ctx)
	if risks[0].UnitID == nil || *risks[0].UnitID != existing.ID {
		t.Fatalf("risk must link to the pre-existing unit, got %+v", risks[0])
	}
}

func TestApplyHonoursSkipFlags(t *testing.T) {
	store := prevention.NewInMemory(catalogue.Default())
	res, err := NewApplier(store).Apply(context.Background(), Batch{
		Units: []ProposedUnit{
			{Code: "UT1", Name: "Gardée"},
			{Code: "UT2", Name: "Écartée", Skip: true},
		},
		Risks: []ProposedRisk{
			{Hazard: "Gardé"},
			{Hazard: "Écarté", Skip: true},
			{Hazard: "Avec action écartée", Actions: []ProposedAction{{Description: "Non retenue", Skip: true}}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.UnitsCreated != 1 || res.RisksCreated != 2 || res.ActionsCreated != 0 {
		t.Fatalf("skip flags not honoured: %+v", res)
	}
}

func TestApplyContinuesPastFailures(t *testing.T) {
	store := prevention.NewInMemory(catalogue.Default())
	res, err := NewApplier(store).Apply(context.Background(), Batch{
		Risks: []ProposedRisk{
			{Hazard: "", Actions: []ProposedAction{{Description: "Orpheline"}}},
			{Hazard: "Valide", Actions: []ProposedAction{{Description: "Retenue", Type: prevention.ActionPrevention, Priority: prevention.PriorityMedium}}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.RisksCreated != 1 {
		t.Fatalf("the sibling risk must still be created: %+v", res)
	}
	// The failed risk's nested action has no parent and must not be created.
	if res.ActionsCreated != 1 {
		t.Fatalf("expected 1 action, got %+v", res)
	}
	if len(res.Failures) != 1 || res.Failures[0].Kind != "risk" {
		t.Fatalf("expected one risk failure, got %+v", res.Failures)
	}
	if res.Status != StatusPartiallyApplied {
		t.Fatalf("expected %s, got %s", StatusPartiallyApplied, res.Status)
	}
}

type unreachableStore struct {
	prevention.Store
}

func (unreachableStore) ListWorkUnits(ctx context.Context) ([]prevention.WorkUnit, error) {
	return nil, errors.New("connection refused")
}

func TestApplyTotalFailureBeforeAnyCreate(t *testing.T) {
	_, err := NewApplier(unreachableStore{}).Apply(context.Background(), Batch{
		Units: []ProposedUnit{{Code: "UT1", Name: "Atelier"}},
	})
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("unreachable store must fail the batch up front, got %v", err)
	}
}
