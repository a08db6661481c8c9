package httpapi

import (
	"net/http"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// handleUsageHistory returns the caller's own usage events, newest first.
func (a *API) handleUsageHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	user, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), defaultHistoryLimit, 1, maxHistoryLimit)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	events, err := a.store.ListUsageByUser(r.Context(), user.ID, limit)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":   events,
		"count":   len(events),
		"credits": user.Credits,
	})
}
