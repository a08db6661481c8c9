package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"omnihub.io/internal/audit"
)

type adjustCreditsRequest struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

func (a *API) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	users, err := a.admin.ListUsers(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// handleAdminUserAction routes /api/admin/users/{id}/suspend.
func (a *API) handleAdminUserAction(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/admin/users/")
	id, action, ok := strings.Cut(path, "/")
	if !ok || id == "" || action != "suspend" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	admin, ok := requireAdmin(w, r)
	if !ok {
		return
	}

	active, err := a.admin.SetSuspended(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "admin.user.suspend_toggle", map[string]any{
		"admin_id":  admin.ID,
		"target_id": id,
		"is_active": active,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":   id,
		"is_active": active,
	})
}

func (a *API) handleAdminCredits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	admin, ok := requireAdmin(w, r)
	if !ok {
		return
	}

	var req adjustCreditsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		writeError(w, r, http.StatusBadRequest, "reason is required")
		return
	}

	adj, err := a.admin.AdjustCredits(r.Context(), req.UserID, req.Amount, reason, admin.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "admin.credits.adjust", map[string]any{
		"admin_id":      admin.ID,
		"target_id":     req.UserID,
		"amount":        strconv.FormatInt(req.Amount, 10),
		"balance_after": strconv.FormatInt(adj.BalanceAfter, 10),
		"reason":        reason,
	})

	writeJSON(w, http.StatusOK, adj)
}

func (a *API) handleAdminUsageLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	events, err := a.admin.ListUsageEvents(r.Context(), limit)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": events,
		"count": len(events),
	})
}

func (a *API) handleAdminCreditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	adjs, err := a.admin.ListCreditAdjustments(r.Context(), limit)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": adjs,
		"count": len(adjs),
	})
}
