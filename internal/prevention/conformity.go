package prevention

import (
	"math"
	"time"

	"duerp.org/internal/catalogue"
)

// ConformityPercent folds the mandatory obligations of an evaluation against
// the current equipment and certification collections into one 0-100 score.
// Advisory obligations never enter the computation. An equipment obligation
// is satisfied when enough items of the type derive status compliant; a
// training obligation with a headcount earns half credit when at least one
// valid certification exists but the headcount is not reached. Zero
// mandatory obligations yield exactly 0.
func ConformityPercent(cat catalogue.Catalogue, eval Evaluation, items []EquipmentItem, certs []CertificationRecord, now time.Time) int {
	var total, satisfied float64

	for _, ob := range eval.Equipment {
		if !ob.Mandatory {
			continue
		}
		total++
		required := ob.Quantity
		if required <= 0 {
			required = 1
		}
		if compliantCount(cat, items, ob.TypeID, now) >= required {
			satisfied++
		}
	}

	for _, ob := range eval.Training {
		if !ob.Mandatory {
			continue
		}
		total++
		valid := validCertCount(cat, certs, ob.TypeID, now)
		if ob.Headcount != nil {
			switch {
			case valid >= *ob.Headcount:
				satisfied++
			case valid > 0:
				satisfied += 0.5
			}
			continue
		}
		if valid > 0 {
			satisfied++
		}
	}

	if total == 0 {
		return 0
	}
	return int(math.Round(100 * satisfied / total))
}

func compliantCount(cat catalogue.Catalogue, items []EquipmentItem, typeID string, now time.Time) int {
	def, ok := cat.EquipmentType(typeID)
	if !ok {
		return 0
	}
	count := 0
	for _, item := range items {
		if item.TypeID != typeID {
			continue
		}
		if EquipmentStatus(item, def, now) == EquipmentCompliant {
			count++
		}
	}
	return count
}

func validCertCount(cat catalogue.Catalogue, certs []CertificationRecord, typeID string, now time.Time) int {
	def, ok := cat.CertificationType(typeID)
	if !ok {
		return 0
	}
	count := 0
	for _, rec := range certs {
		if rec.TypeID != typeID {
			continue
		}
		expiry := rec.EffectiveExpiry(def)
		if expiry == nil {
			continue
		}
		if expiry.After(now) {
			count++
		}
	}
	return count
}
