package prevention

import (
	"time"

	"duerp.org/internal/catalogue"
)

// certificationWarningDays is the fixed expiring-soon window. It is not
// configurable per certification type; the aggregator depends on it.
const certificationWarningDays = 60

// EquipmentStatus derives the lifecycle status of an equipment item purely
// from dates. Rules apply in strict precedence, first match wins: expiry
// outranks an overdue periodic check, so an item that is both reports
// expired ("replace immediately"), never needs_check ("schedule inspection").
func EquipmentStatus(item EquipmentItem, def catalogue.EquipmentTypeDef, now time.Time) EquipmentState {
	if item.ExpiresAt != nil && item.ExpiresAt.Before(now) {
		return EquipmentExpired
	}
	if item.NextCheckAt != nil && item.NextCheckAt.Before(now) {
		return EquipmentNeedsCheck
	}
	if def.MaxServiceLifeYears != nil && item.InstalledAt != nil {
		if item.InstalledAt.AddDate(*def.MaxServiceLifeYears, 0, 0).Before(now) {
			return EquipmentExpired
		}
	}
	if def.PeriodicityMonths != nil && item.LastCheckAt != nil {
		if item.LastCheckAt.AddDate(0, *def.PeriodicityMonths, 0).Before(now) {
			return EquipmentNeedsCheck
		}
	}
	return EquipmentCompliant
}

// EffectiveEquipmentStatus is the status shown to users. Date-derived
// signals always win; when no date rule fires, a human-set base status
// (typically a manual non_compliant) is honoured instead of the compliant
// fallback. Conformity scoring uses EquipmentStatus, not this.
func EffectiveEquipmentStatus(item EquipmentItem, def catalogue.EquipmentTypeDef, now time.Time) EquipmentState {
	derived := EquipmentStatus(item, def, now)
	if derived == EquipmentCompliant && item.BaseStatus != "" && item.BaseStatus != EquipmentCompliant {
		return item.BaseStatus
	}
	return derived
}

// CertificationStatus derives a certification's status from its expiry date.
// Records without a derivable expiry are unknown, not expired.
func CertificationStatus(rec CertificationRecord, def catalogue.CertificationTypeDef, now time.Time) CertificationState {
	expiry := rec.EffectiveExpiry(def)
	if expiry == nil {
		return CertificationUnknown
	}
	switch daysLeft := daysUntil(*expiry, now); {
	case daysLeft < 0 || !expiry.After(now):
		return CertificationExpired
	case daysLeft < certificationWarningDays:
		return CertificationExpiringSoon
	default:
		return CertificationValid
	}
}

// daysUntil floors the remaining time to whole days, so a certification
// expiring later today counts as zero days left and one expired an hour ago
// counts as negative.
func daysUntil(expiry, now time.Time) int {
	d := expiry.Sub(now)
	day := 24 * time.Hour
	q := d / day
	if d%day != 0 && d < 0 {
		q--
	}
	return int(q)
}
