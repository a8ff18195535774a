package prevention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"duerp.org/internal/catalogue"
)

func TestWorkUnitCodeUniqueness(t *testing.T) {
	s := NewInMemory(catalogue.Default())
	ctx := context.Background()

	if _, err := s.CreateWorkUnit(ctx, WorkUnit{Code: "UT1", Name: "Atelier"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateWorkUnit(ctx, WorkUnit{Code: "ut1", Name: "Doublon"}); !errors.Is(err, ErrCodeTaken) {
		t.Fatalf("expected ErrCodeTaken, got %v", err)
	}
}

func TestRiskRequiresExistingUnit(t *testing.T) {
	s := NewInMemory(catalogue.Default())
	ctx := context.Background()

	ghost := "no-such-unit"
	if _, err := s.CreateRisk(ctx, Risk{Hazard: "Bruit", UnitID: &ghost}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRiskCotationValidation(t *testing.T) {
	s := NewInMemory(catalogue.Default())
	ctx := context.Background()

	five := 5
	if _, err := s.CreateRisk(ctx, Risk{Hazard: "Bruit", Frequency: &five}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("frequency 5 must be rejected, got %v", err)
	}
	badMastery := 0.6
	if _, err := s.CreateRisk(ctx, Risk{Hazard: "Bruit", Mastery: &badMastery}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("mastery 0.6 must be rejected, got %v", err)
	}
	goodMastery := 0.75
	f, g := 2, 3
	if _, err := s.CreateRisk(ctx, Risk{Hazard: "Bruit", Frequency: &f, Gravity: &g, Mastery: &goodMastery}); err != nil {
		t.Fatalf("valid cotation rejected: %v", err)
	}
}

func TestUnitDeletionImpactAndCascade(t *testing.T) {
	s := NewInMemory(catalogue.Default())
	ctx := context.Background()

	unit, err := s.CreateWorkUnit(ctx, WorkUnit{Code: "UT1", Name: "Atelier soudure"})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := s.CreateRisk(ctx, Risk{Hazard: "Projection", UnitID: &unit.ID}); err != nil {
			t.Fatal(err)
		}
	}

	impact, err := s.UnitDeletionImpact(ctx, unit.ID)
	if err != nil {
		t.Fatal(err)
	}
	if impact.RiskCount != 3 {
		t.Fatalf("expected impact of 3 risks, got %d", impact.RiskCount)
	}

	if err := s.DeleteWorkUnit(ctx, unit.ID, false); !errors.Is(err, ErrCascadeDenied) {
		t.Fatalf("unconfirmed cascade must be refused, got %v", err)
	}
	if _, err := s.GetWorkUnit(ctx, unit.ID); err != nil {
		t.Fatalf("refused delete must leave the unit in place: %v", err)
	}

	if err := s.DeleteWorkUnit(ctx, unit.ID, true); err != nil {
		t.Fatal(err)
	}
	risks, err := s.ListRisks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(risks) != 0 {
		t.Fatalf("cascade must delete referencing risks, %d left", len(risks))
	}
}

func TestDeleteEmptyUnitNeedsNoConfirmation(t *testing.T) {
	s := NewInMemory(catalogue.Default())
	ctx := context.Background()

	unit, err := s.CreateWorkUnit(ctx, WorkUnit{Code: "UT2", Name: "Accueil"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteWorkUnit(ctx, unit.ID, false); err != nil {
		t.Fatalf("unit without risks must delete without confirmation: %v", err)
	}
}

func TestEquipmentItemValidation(t *testing.T) {
	s := NewInMemory(catalogue.Default())
	ctx := context.Background()

	if _, err := s.CreateEquipmentItem(ctx, EquipmentItem{TypeID: "tele_couleur"}); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("unknown equipment type must be rejected, got %v", err)
	}

	item, err := s.CreateEquipmentItem(ctx, EquipmentItem{TypeID: catalogue.EquipWaterExtinguisher, Location: "Hall A"})
	if err != nil {
		t.Fatal(err)
	}
	if item.BaseStatus != EquipmentCompliant {
		t.Fatalf("base status must default to compliant, got %s", item.BaseStatus)
	}
}

func TestCertificationExpiryMaterialized(t *testing.T) {
	s := NewInMemory(catalogue.Default())
	ctx := context.Background()

	obtained := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	rec, err := s.CreateCertification(ctx, CertificationRecord{
		PersonName: "A. Diallo",
		TypeID:     catalogue.CertFirstAid,
		ObtainedAt: &obtained,
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec.ExpiresAt == nil {
		t.Fatal("expiry must be materialized from obtained date + validity")
	}
	want := obtained.AddDate(0, 24, 0)
	if !rec.ExpiresAt.Equal(want) {
		t.Fatalf("expiry %v, want %v", rec.ExpiresAt, want)
	}
}

func TestConcurrentRiskCreates(t *testing.T) {
	s := NewInMemory(catalogue.Default())
	ctx := context.Background()

	var wg sync.WaitGroup
	const n = 50
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.CreateRisk(ctx, Risk{Hazard: "Bruit"})
		}()
	}
	wg.Wait()

	risks, err := s.ListRisks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(risks) != n {
		t.Fatalf("expected %d risks, got %d", n, len(risks))
	}
}
