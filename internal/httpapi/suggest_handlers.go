package httpapi

import (
	"net/http"
	"strconv"

	"duerp.org/internal/obs"
	"duerp.org/internal/stream"
	"duerp.org/internal/suggest"
)

func (a *API) handleSuggestionsApply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.authorizeMutation(w, r) {
		return
	}

	var batch suggest.Batch
	if err := decodeJSON(w, r, &batch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(batch.Units) == 0 && len(batch.Risks) == 0 {
		writeError(w, r, http.StatusBadRequest, "batch is empty")
		return
	}

	result, err := a.applier.Apply(r.Context(), batch)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "store unreachable")
		return
	}

	for i := 0; i < result.UnitsCreated; i++ {
		obs.CountSuggestionItem("unit", "applied")
	}
	for i := 0; i < result.RisksCreated; i++ {
		obs.CountSuggestionItem("risk", "applied")
	}
	for i := 0; i < result.ActionsCreated; i++ {
		obs.CountSuggestionItem("action", "applied")
	}
	for _, failure := range result.Failures {
		obs.CountSuggestionItem(failure.Kind, "failed")
	}

	a.audit(r.Context(), "suggestions.apply", "batch", "", map[string]string{
		"status":          result.Status,
		"units_created":   strconv.Itoa(result.UnitsCreated),
		"risks_created":   strconv.Itoa(result.RisksCreated),
		"actions_created": strconv.Itoa(result.ActionsCreated),
		"failures":        strconv.Itoa(len(result.Failures)),
	})
	a.publish(stream.KindBatchApplied, result.Status, "")

	writeJSON(w, http.StatusOK, result)
}
