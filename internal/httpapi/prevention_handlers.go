package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"duerp.org/internal/prevention"
	"duerp.org/internal/stream"
)

type createUnitRequest struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Headcount *int   `json:"headcount"`
	JobTitles string `json:"job_titles"`
}

type createRiskRequest struct {
	CategoryCode string   `json:"category_code"`
	Hazard       string   `json:"hazard"`
	Situation    string   `json:"situation"`
	Consequences string   `json:"consequences"`
	Mitigation   string   `json:"mitigation"`
	UnitID       *string  `json:"unit_id"`
	Frequency    *int     `json:"frequency"`
	Gravity      *int     `json:"gravity"`
	Mastery      *float64 `json:"mastery"`
}

type createEquipmentRequest struct {
	TypeID      string     `json:"type_id"`
	UnitID      *string    `json:"unit_id"`
	Location    string     `json:"location"`
	Brand       string     `json:"brand"`
	Model       string     `json:"model"`
	Serial      string     `json:"serial"`
	Capacity    string     `json:"capacity"`
	InstalledAt *time.Time `json:"installed_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	LastCheckAt *time.Time `json:"last_check_at"`
	NextCheckAt *time.Time `json:"next_check_at"`
	Notes       string     `json:"notes"`
}

type createCertificationRequest struct {
	PersonName     string     `json:"person_name"`
	PersonRole     string     `json:"person_role"`
	TypeID         string     `json:"type_id"`
	ObtainedAt     *time.Time `json:"obtained_at"`
	ExpiresAt      *time.Time `json:"expires_at"`
	Issuer         string     `json:"issuer"`
	CertificateRef string     `json:"certificate_ref"`
	LevelNote      string     `json:"level_note"`
}

type createVerificationRequest struct {
	TypeID        string     `json:"type_id"`
	PerformedAt   time.Time  `json:"performed_at"`
	Performer     string     `json:"performer"`
	Participants  int        `json:"participants"`
	Passed        bool       `json:"passed"`
	Observations  string     `json:"observations"`
	NextPlannedAt *time.Time `json:"next_planned_at"`
}

type createActionRequest struct {
	RiskID        *string                   `json:"risk_id"`
	Description   string                    `json:"description"`
	Type          prevention.ActionType     `json:"type"`
	Priority      prevention.ActionPriority `json:"priority"`
	Responsible   string                    `json:"responsible"`
	DueAt         *time.Time                `json:"due_at"`
	EstimatedCost *float64                  `json:"estimated_cost"`
}

// riskView carries the stored risk plus its computed scores. Scores are
// derived on every read, never persisted.
type riskView struct {
	prevention.Risk
	RawScore      *float64          `json:"raw_score,omitempty"`
	ResidualScore *float64          `json:"residual_score,omitempty"`
	Level         *prevention.Level `json:"level,omitempty"`
}

func newRiskView(risk prevention.Risk) riskView {
	view := riskView{Risk: risk}
	if raw, ok := risk.RawScore(); ok {
		view.RawScore = &raw
	}
	if residual, ok := risk.ResidualScore(); ok {
		view.ResidualScore = &residual
		level := prevention.LevelFor(residual)
		view.Level = &level
	}
	return view
}

// equipmentView pairs the stored item with its derived lifecycle status.
type equipmentView struct {
	prevention.EquipmentItem
	Status prevention.EquipmentState `json:"status"`
}

// certificationView pairs the record with its derived status.
type certificationView struct {
	prevention.CertificationRecord
	Status prevention.CertificationState `json:"status"`
}

// --- work units ---

func (a *API) handleUnitsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createUnit(w, r)
	case http.MethodGet:
		a.listUnits(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleUnitResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/units/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if strings.HasSuffix(path, "/impact") {
		id := strings.TrimSuffix(strings.TrimSuffix(path, "/impact"), "/")
		if id == "" || r.Method != http.MethodGet {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.unitImpact(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getUnit(w, r, path)
	case http.MethodDelete:
		a.deleteUnit(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) createUnit(w http.ResponseWriter, r *http.Request) {
	if !a.authorizeMutation(w, r) {
		return
	}
	var req createUnitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	unit, err := a.store.CreateWorkUnit(r.Context(), prevention.WorkUnit{
		Code:      req.Code,
		Name:      req.Name,
		Headcount: req.Headcount,
		JobTitles: req.JobTitles,
	})
	if err != nil {
		handleStoreError(w, r, err)
		return
	}

	a.audit(r.Context(), "unit.create", "work_unit", unit.ID, map[string]string{"code": unit.Code})
	a.publish(stream.KindUnitCreated, unit.ID, unit.Code)

	w.Header().Set("Location", "/v1/units/"+unit.ID)
	writeJSON(w, http.StatusCreated, unit)
}

func (a *API) listUnits(w http.ResponseWriter, r *http.Request) {
	units, err := a.store.ListWorkUnits(r.Context())
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": units})
}

func (a *API) getUnit(w http.ResponseWriter, r *http.Request, id string) {
	unit, err := a.store.GetWorkUnit(r.Context(), id)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

func (a *API) unitImpact(w http.ResponseWriter, r *http.Request, id string) {
	impact, err := a.store.UnitDeletionImpact(r.Context(), id)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, impact)
}

func (a *API) deleteUnit(w http.ResponseWriter, r *http.Request, id string) {
	if !a.authorizeMutation(w, r) {
		return
	}
	cascade := r.URL.Query().Get("cascade") == "true"
	if err := a.store.DeleteWorkUnit(r.Context(), id, cascade); err != nil {
		handleStoreError(w, r, err)
		return
	}

	a.audit(r.Context(), "unit.delete", "work_unit", id, map[string]string{
		"cascade": r.URL.Query().Get("cascade"),
	})
	a.publish(stream.KindUnitDeleted, id, "")

	w.WriteHeader(http.StatusNoContent)
}

// --- risks ---

func (a *API) handleRisksCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createRisk(w, r)
	case http.MethodGet:
		a.listRisks(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleRiskResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/risks/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	risk, err := a.store.GetRisk(r.Context(), id)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRiskView(risk))
}

func (a *API) createRisk(w http.ResponseWriter, r *http.Request) {
	if !a.authorizeMutation(w, r) {
		return
	}
	var req createRiskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	risk, err := a.store.CreateRisk(r.Context(), prevention.Risk{
		CategoryCode: req.CategoryCode,
		Hazard:       req.Hazard,
		Situation:    req.Situation,
		Consequences: req.Consequences,
		Mitigation:   req.Mitigation,
		UnitID:       req.UnitID,
		Frequency:    req.Frequency,
		Gravity:      req.Gravity,
		Mastery:      req.Mastery,
	})
	if err != nil {
		handleStoreError(w, r, err)
		return
	}

	a.audit(r.Context(), "risk.create", "risk", risk.ID, map[string]string{"hazard": risk.Hazard})
	a.publish(stream.KindRiskCreated, risk.ID, "")

	w.Header().Set("Location", "/v1/risks/"+risk.ID)
	writeJSON(w, http.StatusCreated, newRiskView(risk))
}

func (a *API) listRisks(w http.ResponseWriter, r *http.Request) {
	risks, err := a.store.ListRisks(r.Context())
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	views := make([]riskView, 0, len(risks))
	for _, risk := range risks {
		views = append(views, newRiskView(risk))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": views})
}

// --- equipment ---

func (a *API) handleEquipment(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createEquipment(w, r)
	case http.MethodGet:
		a.listEquipment(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) createEquipment(w http.ResponseWriter, r *http.Request) {
	if !a.authorizeMutation(w, r) {
		return
	}
	var req createEquipmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	item, err := a.store.CreateEquipmentItem(r.Context(), prevention.EquipmentItem{
		TypeID:      req.TypeID,
		UnitID:      req.UnitID,
		Location:    req.Location,
		Brand:       req.Brand,
		Model:       req.Model,
		Serial:      req.Serial,
		Capacity:    req.Capacity,
		InstalledAt: req.InstalledAt,
		ExpiresAt:   req.ExpiresAt,
		LastCheckAt: req.LastCheckAt,
		NextCheckAt: req.NextCheckAt,
		Notes:       req.Notes,
	})
	if err != nil {
		handleStoreError(w, r, err)
		return
	}

	a.audit(r.Context(), "equipment.create", "equipment_item", item.ID, map[string]string{"type_id": item.TypeID})
	a.publish(stream.KindEquipmentAdded, item.ID, "")

	writeJSON(w, http.StatusCreated, a.equipmentView(item))
}

func (a *API) listEquipment(w http.ResponseWriter, r *http.Request) {
	items, err := a.store.ListEquipmentItems(r.Context())
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	typeFilter := strings.TrimSpace(r.URL.Query().Get("type_id"))
	views := make([]equipmentView, 0, len(items))
	for _, item := range items {
		if typeFilter != "" && item.TypeID != typeFilter {
			continue
		}
		views = append(views, a.equipmentView(item))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": views})
}

func (a *API) equipmentView(item prevention.EquipmentItem) equipmentView {
	def, _ := a.cat.EquipmentType(item.TypeID)
	return equipmentView{
		EquipmentItem: item,
		Status:        prevention.EffectiveEquipmentStatus(item, def, time.Now().UTC()),
	}
}

// --- certifications ---

func (a *API) handleCertifications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createCertification(w, r)
	case http.MethodGet:
		a.listCertifications(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) createCertification(w http.ResponseWriter, r *http.Request) {
	if !a.authorizeMutation(w, r) {
		return
	}
	var req createCertificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := a.store.CreateCertification(r.Context(), prevention.CertificationRecord{
		PersonName:     req.PersonName,
		PersonRole:     req.PersonRole,
		TypeID:         req.TypeID,
		ObtainedAt:     req.ObtainedAt,
		ExpiresAt:      req.ExpiresAt,
		Issuer:         req.Issuer,
		CertificateRef: req.CertificateRef,
		LevelNote:      req.LevelNote,
	})
	if err != nil {
		handleStoreError(w, r, err)
		return
	}

	a.audit(r.Context(), "certification.create", "certification", rec.ID, map[string]string{
		"type_id": rec.TypeID,
		"person":  rec.PersonName,
	})
	a.publish(stream.KindCertificationAdd, rec.ID, "")

	writeJSON(w, http.StatusCreated, a.certificationView(rec))
}

func (a *API) listCertifications(w http.ResponseWriter, r *http.Request) {
	recs, err := a.store.ListCertifications(r.Context())
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	views := make([]certificationView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, a.certificationView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": views})
}

func (a *API) certificationView(rec prevention.CertificationRecord) certificationView {
	def, _ := a.cat.CertificationType(rec.TypeID)
	return certificationView{
		CertificationRecord: rec,
		Status:              prevention.CertificationStatus(rec, def, time.Now().UTC()),
	}
}

// --- verifications ---

func (a *API) handleVerifications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createVerification(w, r)
	case http.MethodGet:
		a.listVerifications(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) createVerification(w http.ResponseWriter, r *http.Request) {
	if !a.authorizeMutation(w, r) {
		return
	}
	var req createVerificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := a.store.CreateVerification(r.Context(), prevention.VerificationRecord{
		TypeID:        req.TypeID,
		PerformedAt:   req.PerformedAt,
		Performer:     req.Performer,
		Participants:  req.Participants,
		Passed:        req.Passed,
		Observations:  req.Observations,
		NextPlannedAt: req.NextPlannedAt,
	})
	if err != nil {
		handleStoreError(w, r, err)
		return
	}

	a.audit(r.Context(), "verification.create", "verification", rec.ID, map[string]string{"type_id": rec.TypeID})

	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) listVerifications(w http.ResponseWriter, r *http.Request) {
	recs, err := a.store.ListVerifications(r.Context())
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": recs})
}

// --- remediation actions ---

func (a *API) handleActions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createAction(w, r)
	case http.MethodGet:
		a.listActions(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) createAction(w http.ResponseWriter, r *http.Request) {
	if !a.authorizeMutation(w, r) {
		return
	}
	var req createActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	action, err := a.store.CreateAction(r.Context(), prevention.RemediationAction{
		RiskID:        req.RiskID,
		Description:   req.Description,
		Type:          req.Type,
		Priority:      req.Priority,
		Responsible:   req.Responsible,
		DueAt:         req.DueAt,
		EstimatedCost: req.EstimatedCost,
	})
	if err != nil {
		handleStoreError(w, r, err)
		return
	}

	a.audit(r.Context(), "action.create", "remediation_action", action.ID, nil)

	writeJSON(w, http.StatusCreated, action)
}

func (a *API) listActions(w http.ResponseWriter, r *http.Request) {
	actions, err := a.store.ListActions(r.Context())
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": actions})
}

// --- helpers ---

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, prevention.ErrInvalidInput), errors.Is(err, prevention.ErrUnknownType):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, prevention.ErrCodeTaken), errors.Is(err, prevention.ErrCascadeDenied):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, prevention.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
