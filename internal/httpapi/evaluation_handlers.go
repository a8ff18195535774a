package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"duerp.org/internal/obs"
	"duerp.org/internal/prevention"
	"duerp.org/internal/stream"
)

// evaluationFacts reads the contextual inputs from query parameters and
// joins them with the stored dossier. Absent parameters stay zero, which the
// engine treats as unknown.
func (a *API) evaluationFacts(r *http.Request) (prevention.Facts, error) {
	facts := prevention.Facts{
		Sector: strings.TrimSpace(r.URL.Query().Get("sector")),
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("workforce")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return prevention.Facts{}, errors.New("workforce must be a non-negative integer")
		}
		facts.WorkforceSize = v
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("surface_m2")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return prevention.Facts{}, errors.New("surface_m2 must be a non-negative number")
		}
		facts.SurfaceAreaM2 = v
	}

	units, err := a.store.ListWorkUnits(r.Context())
	if err != nil {
		return prevention.Facts{}, err
	}
	risks, err := a.store.ListRisks(r.Context())
	if err != nil {
		return prevention.Facts{}, err
	}
	facts.Units = units
	facts.Risks = risks
	return facts, nil
}

func (a *API) handleObligations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	facts, err := a.evaluationFacts(r)
	if err != nil {
		if errors.Is(err, prevention.ErrNotFound) {
			handleStoreError(w, r, err)
			return
		}
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	eval := prevention.InferObligations(a.cat, facts)
	obs.CountEvaluation("obligations")

	writeJSON(w, http.StatusOK, eval)
}

type conformityResponse struct {
	Conformity int                   `json:"conformity_percent"`
	Evaluation prevention.Evaluation `json:"evaluation"`
	AsOf       time.Time             `json:"as_of"`
}

func (a *API) handleConformity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	facts, err := a.evaluationFacts(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, err := a.store.ListEquipmentItems(r.Context())
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	certs, err := a.store.ListCertifications(r.Context())
	if err != nil {
		handleStoreError(w, r, err)
		return
	}

	now := time.Now().UTC()
	eval := prevention.InferObligations(a.cat, facts)
	percent := prevention.ConformityPercent(a.cat, eval, items, certs, now)
	obs.CountEvaluation("conformity")

	if a.stream != nil {
		a.stream.Publish(stream.AssessmentEvent{
			Kind:       stream.KindEvaluationRun,
			Conformity: &percent,
			Timestamp:  now,
		})
	}

	writeJSON(w, http.StatusOK, conformityResponse{
		Conformity: percent,
		Evaluation: eval,
		AsOf:       now,
	})
}
