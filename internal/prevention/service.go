package prevention

import (
	"context"
	"strings"
	"sync"
	"time"

	"duerp.org/internal/catalogue"
	"duerp.org/internal/ids"
)

// Store persists the dossier records the engine evaluates. Implementations
// must keep every create independently committed: the suggestion batch
// applier relies on partial progress surviving individual failures.
type Store interface {
	CreateWorkUnit(ctx context.Context, unit WorkUnit) (WorkUnit, error)
	GetWorkUnit(ctx context.Context, id string) (WorkUnit, error)
	WorkUnitByCode(ctx context.Context, code string) (WorkUnit, error)
	ListWorkUnits(ctx context.Context) ([]WorkUnit, error)
	// UnitDeletionImpact reports the cascade blast radius without deleting.
	UnitDeletionImpact(ctx context.Context, id string) (DeletionImpact, error)
	// DeleteWorkUnit deletes the unit. When risks reference it, the delete
	// is refused with ErrCascadeDenied unless cascadeConfirmed is set, in
	// which case the referencing risks are deleted too.
	DeleteWorkUnit(ctx context.Context, id string, cascadeConfirmed bool) error

	CreateRisk(ctx context.Context, risk Risk) (Risk, error)
	GetRisk(ctx context.Context, id string) (Risk, error)
	ListRisks(ctx context.Context) ([]Risk, error)

	CreateAction(ctx context.Context, action RemediationAction) (RemediationAction, error)
	ListActions(ctx context.Context) ([]RemediationAction, error)

	CreateEquipmentItem(ctx context.Context, item EquipmentItem) (EquipmentItem, error)
	ListEquipmentItems(ctx context.Context) ([]EquipmentItem, error)

	CreateCertification(ctx context.Context, rec CertificationRecord) (CertificationRecord, error)
	ListCertifications(ctx context.Context) ([]CertificationRecord, error)

	CreateVerification(ctx context.Context, rec VerificationRecord) (VerificationRecord, error)
	ListVerifications(ctx context.Context) ([]VerificationRecord, error)
}

// InMemory implements Store with in-process concurrency safety. Suitable for
// tests and single-node deployments; the pg store is the durable variant.
type InMemory struct {
	mu  sync.RWMutex
	cat catalogue.Catalogue

	units         map[string]*WorkUnit
	unitOrder     []string
	risks         map[string]*Risk
	riskOrder     []string
	actions       map[string]*RemediationAction
	actionOrder   []string
	equipment     map[string]*EquipmentItem
	equipOrder    []string
	certs         map[string]*CertificationRecord
	certOrder     []string
	verifications map[string]*VerificationRecord
	verifOrder    []string
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty store validating type references against cat.
func NewInMemory(cat catalogue.Catalogue) *InMemory {
	return &InMemory{
		cat:           cat,
		units:         make(map[string]*WorkUnit),
		risks:         make(map[string]*Risk),
		actions:       make(map[string]*RemediationAction),
		equipment:     make(map[string]*EquipmentItem),
		certs:         make(map[string]*CertificationRecord),
		verifications: make(map[string]*VerificationRecord),
	}
}

func (s *InMemory) CreateWorkUnit(ctx context.Context, unit WorkUnit) (WorkUnit, error) {
	unit.Code = strings.TrimSpace(unit.Code)
	unit.Name = strings.TrimSpace(unit.Name)
	if unit.Code == "" || unit.Name == "" {
		return WorkUnit{}, ErrInvalidInput
	}
	if unit.Headcount != nil && *unit.Headcount < 0 {
		return WorkUnit{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.units {
		if strings.EqualFold(existing.Code, unit.Code) {
			return WorkUnit{}, ErrCodeTaken
		}
	}

	unit.ID = ids.New()
	unit.CreatedAt = time.Now().UTC()
	s.units[unit.ID] = &unit
	s.unitOrder = append(s.unitOrder, unit.ID)
	return unit, nil
}

func (s *InMemory) GetWorkUnit(ctx context.Context, id string) (WorkUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	unit, ok := s.units[id]
	if !ok {
		return WorkUnit{}, ErrNotFound
	}
	return *unit, nil
}

func (s *InMemory) WorkUnitByCode(ctx context.Context, code string) (WorkUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, unit := range s.units {
		if strings.EqualFold(unit.Code, strings.TrimSpace(code)) {
			return *unit, nil
		}
	}
	return WorkUnit{}, ErrNotFound
}

func (s *InMemory) ListWorkUnits(ctx context.Context) ([]WorkUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WorkUnit, 0, len(s.unitOrder))
	for _, id := range s.unitOrder {
		if unit, ok := s.units[id]; ok {
			out = append(out, *unit)
		}
	}
	return out, nil
}

func (s *InMemory) UnitDeletionImpact(ctx context.Context, id string) (DeletionImpact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.units[id]; !ok {
		return DeletionImpact{}, ErrNotFound
	}
	impact := DeletionImpact{UnitID: id}
	for _, risk := range s.risks {
		if risk.UnitID != nil && *risk.UnitID == id {
			impact.RiskCount++
		}
	}
	return impact, nil
}

func (s *InMemory) DeleteWorkUnit(ctx context.Context, id string, cascadeConfirmed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.units[id]; !ok {
		return ErrNotFound
	}

	var dependent []string
	for rid, risk := range s.risks {
		if risk.UnitID != nil && *risk.UnitID == id {
			dependent = append(dependent, rid)
		}
	}
	if len(dependent) > 0 && !cascadeConfirmed {
		return ErrCascadeDenied
	}
	for _, rid := range dependent {
		delete(s.risks, rid)
		s.riskOrder = removeID(s.riskOrder, rid)
	}
	delete(s.units, id)
	s.unitOrder = removeID(s.unitOrder, id)
	return nil
}

func (s *InMemory) CreateRisk(ctx context.Context, risk Risk) (Risk, error) {
	risk.Hazard = strings.TrimSpace(risk.Hazard)
	if risk.Hazard == "" {
		return Risk{}, ErrInvalidInput
	}
	if err := ValidateCotation(risk); err != nil {
		return Risk{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if risk.UnitID != nil {
		if _, ok := s.units[*risk.UnitID]; !ok {
			return Risk{}, ErrNotFound
		}
	}

	risk.ID = ids.New()
	risk.CreatedAt = time.Now().UTC()
	s.risks[risk.ID] = &risk
	s.riskOrder = append(s.riskOrder, risk.ID)
	return risk, nil
}

func (s *InMemory) GetRisk(ctx context.Context, id string) (Risk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	risk, ok := s.risks[id]
	if !ok {
		return Risk{}, ErrNotFound
	}
	return *risk, nil
}

func (s *InMemory) ListRisks(ctx context.Context) ([]Risk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Risk, 0, len(s.riskOrder))
	for _, id := range s.riskOrder {
		if risk, ok := s.risks[id]; ok {
			out = append(out, *risk)
		}
	}
	return out, nil
}

func (s *InMemory) CreateAction(ctx context.Context, action RemediationAction) (RemediationAction, error) {
	action.Description = strings.TrimSpace(action.Description)
	if action.Description == "" {
		return RemediationAction{}, ErrInvalidInput
	}
	if action.Status == "" {
		action.Status = ActionTodo
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if action.RiskID != nil {
		if _, ok := s.risks[*action.RiskID]; !ok {
			return RemediationAction{}, ErrNotFound
		}
	}

	action.ID = ids.New()
	action.CreatedAt = time.Now().UTC()
	s.actions[action.ID] = &action
	s.actionOrder = append(s.actionOrder, action.ID)
	return action, nil
}

func (s *InMemory) ListActions(ctx context.Context) ([]RemediationAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RemediationAction, 0, len(s.actionOrder))
	for _, id := range s.actionOrder {
		if action, ok := s.actions[id]; ok {
			out = append(out, *action)
		}
	}
	return out, nil
}

func (s *InMemory) CreateEquipmentItem(ctx context.Context, item EquipmentItem) (EquipmentItem, error) {
	if _, ok := s.cat.EquipmentType(item.TypeID); !ok {
		return EquipmentItem{}, ErrUnknownType
	}
	if item.BaseStatus == "" {
		item.BaseStatus = EquipmentCompliant
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item.UnitID != nil {
		if _, ok := s.units[*item.UnitID]; !ok {
			return EquipmentItem{}, ErrNotFound
		}
	}

	item.ID = ids.New()
	item.CreatedAt = time.Now().UTC()
	s.equipment[item.ID] = &item
	s.equipOrder = append(s.equipOrder, item.ID)
	return item, nil
}

func (s *InMemory) ListEquipmentItems(ctx context.Context) ([]EquipmentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EquipmentItem, 0, len(s.equipOrder))
	for _, id := range s.equipOrder {
		if item, ok := s.equipment[id]; ok {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *InMemory) CreateCertification(ctx context.Context, rec CertificationRecord) (CertificationRecord, error) {
	rec.PersonName = strings.TrimSpace(rec.PersonName)
	if rec.PersonName == "" {
		return CertificationRecord{}, ErrInvalidInput
	}
	def, ok := s.cat.CertificationType(rec.TypeID)
	if !ok {
		return CertificationRecord{}, ErrUnknownType
	}
	// Materialize the auto-computed expiry so downstream consumers that only
	// see the record (exports, pg rows) agree with the deriver.
	if rec.ExpiresAt == nil {
		rec.ExpiresAt = rec.EffectiveExpiry(def)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = ids.New()
	rec.CreatedAt = time.Now().UTC()
	s.certs[rec.ID] = &rec
	s.certOrder = append(s.certOrder, rec.ID)
	return rec, nil
}

func (s *InMemory) ListCertifications(ctx context.Context) ([]CertificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CertificationRecord, 0, len(s.certOrder))
	for _, id := range s.certOrder {
		if rec, ok := s.certs[id]; ok {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *InMemory) CreateVerification(ctx context.Context, rec VerificationRecord) (VerificationRecord, error) {
	if _, ok := s.cat.VerificationType(rec.TypeID); !ok {
		return VerificationRecord{}, ErrUnknownType
	}
	if rec.PerformedAt.IsZero() {
		return VerificationRecord{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = ids.New()
	rec.CreatedAt = time.Now().UTC()
	s.verifications[rec.ID] = &rec
	s.verifOrder = append(s.verifOrder, rec.ID)
	return rec, nil
}

func (s *InMemory) ListVerifications(ctx context.Context) ([]VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]VerificationRecord, 0, len(s.verifOrder))
	for _, id := range s.verifOrder {
		if rec, ok := s.verifications[id]; ok {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// ValidateCotation rejects factors outside the 1..4 scale and mastery values
// not on the discrete ladder.
func ValidateCotation(risk Risk) error {
	for _, factor := range []*int{risk.Frequency, risk.Gravity} {
		if factor != nil && (*factor < FactorMin || *factor > FactorMax) {
			return ErrInvalidInput
		}
	}
	if risk.Mastery != nil {
		for _, lvl := range MasteryLevels {
			if *risk.Mastery == lvl {
				return nil
			}
		}
		return ErrInvalidInput
	}
	return nil
}

func removeID(order []string, id string) []string {
	for i, v := range order {
		if v == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
