package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"duerp.org/internal/audit"
	"duerp.org/internal/catalogue"
	"duerp.org/internal/obs"
	"duerp.org/internal/prevention"
	"duerp.org/internal/stream"
	"duerp.org/internal/suggest"
)

// ReadyProbe reports whether the service can take traffic, typically a DB ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the dossier store and the assessment engine.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	store      prevention.Store
	cat        catalogue.Catalogue
	applier    *suggest.Applier
	stream     *stream.Stream

	rateBurst  int
	ratePerSec int
}

func New(rp ReadyProbe, version string, store prevention.Store, cat catalogue.Catalogue, st *stream.Stream) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		store:      store,
		cat:        cat,
		applier:    suggest.NewApplier(store),
		stream:     st,
		rateBurst:  20,
		ratePerSec: 10,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/units", a.handleUnitsCollection)
	a.mux.HandleFunc("/v1/units/", a.handleUnitResource)
	a.mux.HandleFunc("/v1/risks", a.handleRisksCollection)
	a.mux.HandleFunc("/v1/risks/", a.handleRiskResource)
	a.mux.HandleFunc("/v1/equipment", a.handleEquipment)
	a.mux.HandleFunc("/v1/certifications", a.handleCertifications)
	a.mux.HandleFunc("/v1/verifications", a.handleVerifications)
	a.mux.HandleFunc("/v1/actions", a.handleActions)

	a.mux.HandleFunc("/v1/evaluation/obligations", a.handleObligations)
	a.mux.HandleFunc("/v1/evaluation/conformity", a.handleConformity)
	a.mux.HandleFunc("/v1/suggestions/apply", a.handleSuggestionsApply)

	a.mux.HandleFunc("/v1/stream", a.Stream)
	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "duerp-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "duerp-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) publish(kind, subject, unitCode string) {
	if a.stream == nil {
		return
	}
	a.stream.Publish(stream.AssessmentEvent{Kind: kind, Subject: subject, UnitCode: unitCode})
}

func (a *API) audit(ctx context.Context, event, entity, id string, meta map[string]string) {
	fields := map[string]any{
		"entity":    entity,
		"entity_id": id,
	}
	for k, v := range meta {
		fields[k] = v
	}
	_ = audit.LogEvent(ctx, event, fields)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
