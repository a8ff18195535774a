package catalogue

import "testing"

func TestDefaultCatalogueLookups(t *testing.T) {
	cat := Default()

	def, ok := cat.EquipmentType(EquipWaterExtinguisher)
	if !ok {
		t.Fatal("water extinguisher missing from default catalogue")
	}
	if def.PeriodicityMonths == nil || *def.PeriodicityMonths != 12 {
		t.Fatalf("water extinguisher periodicity: %+v", def.PeriodicityMonths)
	}
	if def.MaxServiceLifeYears == nil || *def.MaxServiceLifeYears != 20 {
		t.Fatalf("water extinguisher service life: %+v", def.MaxServiceLifeYears)
	}

	cert, ok := cat.CertificationType(CertFirstAid)
	if !ok {
		t.Fatal("SST certification missing from default catalogue")
	}
	if cert.ValidityMonths != 24 {
		t.Fatalf("SST validity: %d", cert.ValidityMonths)
	}
	if !cert.DeliverableInHouse {
		t.Fatal("SST must be flagged deliverable in-house")
	}

	if _, ok := cat.VerificationType("exercice_evacuation"); !ok {
		t.Fatal("evacuation drill verification missing")
	}
	if _, ok := cat.EquipmentType("inconnu"); ok {
		t.Fatal("unknown id must not resolve")
	}
}

func TestCatalogueAccessorsReturnCopies(t *testing.T) {
	cat := Default()
	first := cat.EquipmentTypes()
	first[0].Label = "mutated"
	if cat.EquipmentTypes()[0].Label == "mutated" {
		t.Fatal("accessor must return a copy of the table")
	}
}

func TestEveryRuleTypeIDResolves(t *testing.T) {
	cat := Default()
	for _, id := range []string{
		EquipWaterExtinguisher, EquipCO2Extinguisher, EquipPowderExtinguisher,
		EquipDefibrillator, EquipFirstAidKit, EquipEyewashStation,
		EquipFireBlanket, EquipFireAlarm, EquipEmergencyLighting, EquipEvacuationPlan,
	} {
		if _, ok := cat.EquipmentType(id); !ok {
			t.Fatalf("equipment type %s missing", id)
		}
	}
	for _, id := range []string{
		CertFirstAid, CertFireResponse, CertEvacuationDrill, CertElectrical,
		CertForklift, CertConstruction, CertAerialPlatform, CertWorkAtHeight, CertManualHandling,
	} {
		if _, ok := cat.CertificationType(id); !ok {
			t.Fatalf("certification type %s missing", id)
		}
	}
}
