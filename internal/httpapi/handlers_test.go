package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"duerp.org/internal/auth"
	"duerp.org/internal/catalogue"
	"duerp.org/internal/prevention"
	"duerp.org/internal/stream"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("DUERP_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	cat := catalogue.Default()
	api := New(ReadyProbe{}, "test", prevention.NewInMemory(cat), cat, stream.New())
	api.rateBurst = 100
	api.ratePerSec = 100

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) obtainToken(user string, roles []string) string {
	c.t.Helper()
	resp := c.post("/v1/auth/token", map[string]any{
		"user":  user,
		"roles": roles,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected token status: %d", resp.StatusCode)
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode token response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.Token
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestAPIDossierFlow(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("demo", []string{"conseiller"})
	authHeader := map[string]string{"Authorization": "Bearer " + token}

	// Create a work unit.
	resp := api.post("/v1/units", map[string]any{
		"code":      "AT1",
		"name":      "Atelier soudure",
		"headcount": 12,
	}, authHeader)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if resp.Header.Get("Location") == "" {
		t.Fatal("expected Location header")
	}
	unit := decode[map[string]any](t, resp)
	unitID := unit["id"].(string)

	// Duplicate code is rejected.
	resp = api.post("/v1/units", map[string]any{
		"code": "at1",
		"name": "Doublon",
	}, authHeader)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate code, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Create a fully scored risk under the unit.
	resp = api.post("/v1/risks", map[string]any{
		"hazard":    "Projection de particules",
		"unit_id":   unitID,
		"frequency": 4,
		"gravity":   3,
		"mastery":   0.5,
	}, authHeader)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	risk := decode[map[string]any](t, resp)
	if risk["raw_score"].(float64) != 12 {
		t.Fatalf("unexpected raw score: %v", risk["raw_score"])
	}
	if risk["residual_score"].(float64) != 6 {
		t.Fatalf("unexpected residual score: %v", risk["residual_score"])
	}
	if risk["level"] != "medium" {
		t.Fatalf("unexpected level: %v", risk["level"])
	}

	// Impact shows the dependent risk.
	resp = api.get("/v1/units/"+unitID+"/impact", nil, authHeader)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	impact := decode[map[string]any](t, resp)
	if impact["risk_count"].(float64) != 1 {
		t.Fatalf("unexpected risk count: %v", impact["risk_count"])
	}

	// Delete without cascade confirmation is refused.
	resp = api.do(http.MethodDelete, "/v1/units/"+unitID, nil, authHeader)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Confirmed cascade removes the unit and its risks.
	resp = api.do(http.MethodDelete, "/v1/units/"+unitID+"?cascade=true", nil, authHeader)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/risks", nil, authHeader)
	risks := decode[map[string]any](t, resp)
	if items, ok := risks["items"].([]any); ok && len(items) != 0 {
		t.Fatalf("expected no risks after cascade, got %d", len(items))
	}
}

func TestAPIEquipmentValidation(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("demo", []string{"conseiller"})
	authHeader := map[string]string{"Authorization": "Bearer " + token}

	resp := api.post("/v1/equipment", map[string]any{
		"type_id":  "ext_eau",
		"location": "Hall A",
	}, authHeader)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	item := decode[map[string]any](t, resp)
	if item["status"] != "compliant" {
		t.Fatalf("unexpected derived status: %v", item["status"])
	}

	resp = api.post("/v1/equipment", map[string]any{
		"type_id": "lance_incendie",
	}, authHeader)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestEvaluationEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("demo", []string{"conseiller"})
	authHeader := map[string]string{"Authorization": "Bearer " + token}

	resp := api.post("/v1/units", map[string]any{
		"code": "AT1",
		"name": "Atelier",
	}, authHeader)
	resp.Body.Close()
	resp = api.post("/v1/risks", map[string]any{
		"hazard": "Contact électrique sur armoire haute tension",
	}, authHeader)
	resp.Body.Close()

	resp = api.get("/v1/evaluation/obligations", url.Values{
		"workforce":  []string{"60"},
		"surface_m2": []string{"400"},
	}, authHeader)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	eval := decode[map[string]any](t, resp)
	equipment, ok := eval["equipment"].([]any)
	if !ok || len(equipment) == 0 {
		t.Fatal("expected equipment obligations")
	}
	var waterQty float64
	var sawCO2 bool
	for _, raw := range equipment {
		ob := raw.(map[string]any)
		switch ob["type_id"] {
		case "ext_eau":
			waterQty = ob["quantity"].(float64)
		case "ext_co2":
			sawCO2 = true
		}
	}
	if waterQty != 2 {
		t.Fatalf("expected 2 water extinguishers for 400 m2, got %v", waterQty)
	}
	if !sawCO2 {
		t.Fatal("expected a CO2 extinguisher obligation for electrical hazard")
	}

	resp = api.get("/v1/evaluation/conformity", url.Values{
		"workforce": []string{"60"},
	}, authHeader)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	conf := decode[map[string]any](t, resp)
	if _, ok := conf["conformity_percent"]; !ok {
		t.Fatal("expected conformity_percent field")
	}

	resp = api.get("/v1/evaluation/obligations", url.Values{
		"workforce": []string{"-3"},
	}, authHeader)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative workforce, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSuggestionsApplyEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("demo", []string{"conseiller"})
	authHeader := map[string]string{"Authorization": "Bearer " + token}

	resp := api.post("/v1/suggestions/apply", map[string]any{
		"units": []map[string]any{
			{"code": "UT1", "name": "Production"},
			{"code": "UT2", "name": "Bureaux"},
		},
		"risks": []map[string]any{
			{"hazard": "Bruit", "unit_code": "UT1"},
			{"hazard": "Travail sur écran", "unit_code": "UT9"},
		},
	}, authHeader)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	result := decode[map[string]any](t, resp)
	if result["status"] != "applied" {
		t.Fatalf("unexpected batch status: %v", result["status"])
	}
	if result["units_created"].(float64) != 2 || result["risks_created"].(float64) != 2 {
		t.Fatalf("unexpected creation counts: %+v", result)
	}
	unattached, ok := result["unattached_risks"].([]any)
	if !ok || len(unattached) != 1 {
		t.Fatalf("expected one unattached risk, got %v", result["unattached_risks"])
	}

	resp = api.post("/v1/suggestions/apply", map[string]any{}, authHeader)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty batch, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAPIEnforcesAuth(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/units", map[string]any{
		"code": "AT1",
		"name": "Atelier",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var errBody map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errBody["error"] == "" {
		t.Fatalf("expected error message")
	}
}

func TestMutationRequiresConseillerRole(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("viewer", []string{"lecteur"})

	resp := api.post("/v1/units", map[string]any{
		"code": "AT1",
		"name": "Atelier",
	}, map[string]string{"Authorization": "Bearer " + token})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestTokenEndpointValidation(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/auth/token", map[string]any{"user": ""}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
