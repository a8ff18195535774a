package prevention

import (
	"testing"
	"time"

	"duerp.org/internal/catalogue"
)

func TestConformityZeroMandatoryObligations(t *testing.T) {
	now := time.Now().UTC()
	eval := Evaluation{
		Equipment: []EquipmentObligation{{TypeID: catalogue.EquipDefibrillator, Mandatory: false}},
	}
	if got := ConformityPercent(catalogue.Default(), eval, nil, nil, now); got != 0 {
		t.Fatalf("zero mandatory obligations must score exactly 0, got %d", got)
	}
}

func TestConformityHalfCreditForUnderStaffedTraining(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cat := catalogue.Default()
	eval := Evaluation{
		Training: []TrainingObligation{{TypeID: catalogue.CertFirstAid, Headcount: intPtr(3), Mandatory: true}},
	}
	certs := []CertificationRecord{
		{TypeID: catalogue.CertFirstAid, PersonName: "A. Diallo", ExpiresAt: datePtr(now.AddDate(1, 0, 0))},
	}
	// One valid certification against a headcount of three: half credit,
	// 0.5/1 → 50.
	if got := ConformityPercent(cat, eval, nil, certs, now); got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}
}

func TestConformityFullAndZeroTrainingCredit(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cat := catalogue.Default()
	eval := Evaluation{
		Training: []TrainingObligation{{TypeID: catalogue.CertFirstAid, Headcount: intPtr(2), Mandatory: true}},
	}

	if got := ConformityPercent(cat, eval, nil, nil, now); got != 0 {
		t.Fatalf("no certifications: expected 0, got %d", got)
	}

	certs := []CertificationRecord{
		{TypeID: catalogue.CertFirstAid, PersonName: "A. Diallo", ExpiresAt: datePtr(now.AddDate(1, 0, 0))},
		{TypeID: catalogue.CertFirstAid, PersonName: "B. Martin", ExpiresAt: datePtr(now.AddDate(1, 0, 0))},
	}
	if got := ConformityPercent(cat, eval, nil, certs, now); got != 100 {
		t.Fatalf("headcount reached: expected 100, got %d", got)
	}
}

func TestConformityExpiredCertificationDoesNotCount(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cat := catalogue.Default()
	eval := Evaluation{
		Training: []TrainingObligation{{TypeID: catalogue.CertFirstAid, Mandatory: true}},
	}
	certs := []CertificationRecord{
		{TypeID: catalogue.CertFirstAid, PersonName: "A. Diallo", ExpiresAt: datePtr(now.AddDate(-1, 0, 0))},
	}
	if got := ConformityPercent(cat, eval, nil, certs, now); got != 0 {
		t.Fatalf("expired certification must not satisfy the obligation, got %d", got)
	}
}

func TestConformityTrainingWithoutHeadcount(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cat := catalogue.Default()
	eval := Evaluation{
		Training: []TrainingObligation{{TypeID: catalogue.CertElectrical, Mandatory: true}},
	}
	certs := []CertificationRecord{
		{TypeID: catalogue.CertElectrical, PersonName: "C. N'Guyen", ExpiresAt: datePtr(now.AddDate(0, 6, 0))},
	}
	if got := ConformityPercent(cat, eval, nil, certs, now); got != 100 {
		t.Fatalf("at-least-one obligation with one valid cert: expected 100, got %d", got)
	}
}

func TestConformityEquipmentQuantityAndStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cat := catalogue.Default()
	eval := Evaluation{
		Equipment: []EquipmentObligation{{TypeID: catalogue.EquipWaterExtinguisher, Quantity: 2, Mandatory: true}},
	}

	items := []EquipmentItem{
		{TypeID: catalogue.EquipWaterExtinguisher},
		{TypeID: catalogue.EquipWaterExtinguisher, ExpiresAt: datePtr(now.AddDate(0, -1, 0))},
	}
	// Only one of the two is compliant: the obligation is unsatisfied.
	if got := ConformityPercent(cat, eval, items, nil, now); got != 0 {
		t.Fatalf("one compliant of two required: expected 0, got %d", got)
	}

	items[1].ExpiresAt = datePtr(now.AddDate(1, 0, 0))
	if got := ConformityPercent(cat, eval, items, nil, now); got != 100 {
		t.Fatalf("two compliant of two required: expected 100, got %d", got)
	}
}

func TestConformityMixedRounding(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cat := catalogue.Default()
	eval := Evaluation{
		Equipment: []EquipmentObligation{
			{TypeID: catalogue.EquipEmergencyLighting, Quantity: 1, Mandatory: true},
		},
		Training: []TrainingObligation{
			{TypeID: catalogue.CertFirstAid, Headcount: intPtr(3), Mandatory: true},
		},
	}
	items := []EquipmentItem{{TypeID: catalogue.EquipEmergencyLighting}}
	certs := []CertificationRecord{
		{TypeID: catalogue.CertFirstAid, PersonName: "A. Diallo", ExpiresAt: datePtr(now.AddDate(1, 0, 0))},
	}
	// (1 + 0.5) / 2 = 75.
	if got := ConformityPercent(cat, eval, items, certs, now); got != 75 {
		t.Fatalf("expected 75, got %d", got)
	}
}
