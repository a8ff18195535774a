package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/units/01J5ABC":             "/v1/units/:id",
		"/v1/units/01J5ABC/impact":      "/v1/units/:id/impact",
		"/v1/risks/01J5XYZ":             "/v1/risks/:id",
		"/v1/units/01J5ABC/extra":       "/v1/units/01J5ABC/extra",
		"/v1/evaluation/obligations":    "/v1/evaluation/obligations",
		"/v1/equipment?type_id=ext_eau": "/v1/equipment",
		"/v1/certifications/01J5DEF":    "/v1/certifications/:id",
		"/v1/suggestions/apply":         "/v1/suggestions/apply",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
