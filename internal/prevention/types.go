package prevention

import (
	"errors"
	"time"

	"duerp.org/internal/catalogue"
)

// EquipmentState is the derived lifecycle status of an installed equipment item.
type EquipmentState string

const (
	EquipmentCompliant    EquipmentState = "compliant"
	EquipmentNeedsCheck   EquipmentState = "needs_check"
	EquipmentNonCompliant EquipmentState = "non_compliant"
	EquipmentExpired      EquipmentState = "expired"
	EquipmentMissing      EquipmentState = "missing"
)

// CertificationState is the derived lifecycle status of a personal certification.
type CertificationState string

const (
	CertificationValid        CertificationState = "valid"
	CertificationExpiringSoon CertificationState = "expiring_soon"
	CertificationExpired      CertificationState = "expired"
	CertificationUnknown      CertificationState = "unknown"
)

// Level is the qualitative tier a cotation score maps to.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// ActionType classifies a remediation action.
type ActionType string

const (
	ActionPrevention     ActionType = "prevention"
	ActionProtection     ActionType = "protection"
	ActionTraining       ActionType = "training"
	ActionOrganizational ActionType = "organizational"
	ActionTechnical      ActionType = "technical"
)

// ActionPriority orders remediation work.
type ActionPriority string

const (
	PriorityCritical ActionPriority = "critical"
	PriorityHigh     ActionPriority = "high"
	PriorityMedium   ActionPriority = "medium"
	PriorityLow      ActionPriority = "low"
)

// ActionStatus tracks the progress of a remediation action.
type ActionStatus string

const (
	ActionTodo       ActionStatus = "todo"
	ActionInProgress ActionStatus = "in_progress"
	ActionDone       ActionStatus = "done"
	ActionCancelled  ActionStatus = "cancelled"
)

var (
	ErrNotFound      = errors.New("prevention: not found")
	ErrCodeTaken     = errors.New("prevention: unit code already in use")
	ErrUnknownType   = errors.New("prevention: unknown catalogue type")
	ErrInvalidInput  = errors.New("prevention: invalid input")
	ErrCascadeDenied = errors.New("prevention: unit has dependent risks, cascade not confirmed")
)

// WorkUnit groups staff and workstations sharing homogeneous risk exposure.
type WorkUnit struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Headcount *int      `json:"headcount,omitempty"`
	JobTitles string    `json:"job_titles,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Risk is a single hazard entry of the dossier. Raw and residual scores are
// never stored: they are recomputed from the three cotation factors on read,
// so a displayed severity can not diverge from its inputs.
type Risk struct {
	ID           string     `json:"id"`
	CategoryCode string     `json:"category_code"`
	Hazard       string     `json:"hazard"`
	Situation    string     `json:"situation,omitempty"`
	Consequences string     `json:"consequences,omitempty"`
	Mitigation   string     `json:"mitigation,omitempty"`
	UnitID       *string    `json:"unit_id,omitempty"`
	Frequency    *int       `json:"frequency,omitempty"`
	Gravity      *int       `json:"gravity,omitempty"`
	Mastery      *float64   `json:"mastery,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// EquipmentItem is an installed instance of a catalogue equipment type.
// BaseStatus is the optional human override; the effective status shown to
// users and used for scoring is always derived, see EquipmentStatus.
type EquipmentItem struct {
	ID          string         `json:"id"`
	TypeID      string         `json:"type_id"`
	UnitID      *string        `json:"unit_id,omitempty"`
	Location    string         `json:"location,omitempty"`
	Brand       string         `json:"brand,omitempty"`
	Model       string         `json:"model,omitempty"`
	Serial      string         `json:"serial,omitempty"`
	Capacity    string         `json:"capacity,omitempty"`
	InstalledAt *time.Time     `json:"installed_at,omitempty"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	LastCheckAt *time.Time     `json:"last_check_at,omitempty"`
	NextCheckAt *time.Time     `json:"next_check_at,omitempty"`
	BaseStatus  EquipmentState `json:"base_status,omitempty"`
	Notes       string         `json:"notes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// CertificationRecord is one person's one certification.
type CertificationRecord struct {
	ID             string     `json:"id"`
	PersonName     string     `json:"person_name"`
	PersonRole     string     `json:"person_role,omitempty"`
	TypeID         string     `json:"type_id"`
	ObtainedAt     *time.Time `json:"obtained_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Issuer         string     `json:"issuer,omitempty"`
	CertificateRef string     `json:"certificate_ref,omitempty"`
	LevelNote      string     `json:"level_note,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// EffectiveExpiry returns the stored expiry when present, otherwise the
// expiry computed from the obtained date plus the type's validity duration.
// Nil when neither is derivable.
func (c CertificationRecord) EffectiveExpiry(def catalogue.CertificationTypeDef) *time.Time {
	if c.ExpiresAt != nil {
		return c.ExpiresAt
	}
	if c.ObtainedAt == nil || def.ValidityMonths <= 0 {
		return nil
	}
	exp := c.ObtainedAt.AddDate(0, def.ValidityMonths, 0)
	return &exp
}

// VerificationRecord is one completed periodic-check event.
type VerificationRecord struct {
	ID            string     `json:"id"`
	TypeID        string     `json:"type_id"`
	PerformedAt   time.Time  `json:"performed_at"`
	Performer     string     `json:"performer,omitempty"`
	Participants  int        `json:"participants,omitempty"`
	Passed        bool       `json:"passed"`
	Observations  string     `json:"observations,omitempty"`
	NextPlannedAt *time.Time `json:"next_planned_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// RemediationAction is a planned mitigation, typically linked to the risk
// that motivated it.
type RemediationAction struct {
	ID            string         `json:"id"`
	RiskID        *string        `json:"risk_id,omitempty"`
	Description   string         `json:"description"`
	Type          ActionType     `json:"type"`
	Priority      ActionPriority `json:"priority"`
	Responsible   string         `json:"responsible,omitempty"`
	DueAt         *time.Time     `json:"due_at,omitempty"`
	EstimatedCost *float64       `json:"estimated_cost,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	Status        ActionStatus   `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
}

// DeletionImpact reports what a work unit deletion would cascade to.
type DeletionImpact struct {
	UnitID    string `json:"unit_id"`
	RiskCount int    `json:"risk_count"`
}
