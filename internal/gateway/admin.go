package gateway

import (
	"context"
	"errors"

	"omnihub.io/internal/ledger"
)

// ErrProtectedAccount means the target of a suspension is an admin.
var ErrProtectedAccount = errors.New("cannot suspend an admin account")

const (
	maxAdminListLimit     = 1000
	defaultAdminListLimit = 100
)

// Admin exposes ledger override operations. Callers are expected to have
// passed the admin authentication gate already; Admin itself only guards
// target-level rules.
type Admin struct {
	store ledger.Store
}

// NewAdmin constructs the admin control surface over the shared ledger.
func NewAdmin(store ledger.Store) *Admin {
	return &Admin{store: store}
}

// AdjustCredits applies a signed balance change to the target and returns
// the recorded adjustment. Uses the same atomic ledger primitive as the
// gateway's debits, so concurrent invocations cannot lose updates.
func (a *Admin) AdjustCredits(ctx context.Context, targetID string, amount int64, reason, adminID string) (ledger.CreditAdjustment, error) {
	return a.store.Adjust(ctx, targetID, amount, reason, adminID)
}

// SetSuspended toggles the target's active flag and returns the new state.
// Admin accounts cannot be suspended through this path.
func (a *Admin) SetSuspended(ctx context.Context, targetID string) (bool, error) {
	u, err := a.store.GetUser(ctx, targetID)
	if err != nil {
		return false, err
	}
	if u.Role == ledger.RoleAdmin {
		return false, ErrProtectedAccount
	}
	return a.store.ToggleActive(ctx, targetID)
}

// ListUsers returns all principals, newest first, without secret material.
func (a *Admin) ListUsers(ctx context.Context) ([]ledger.User, error) {
	users, err := a.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

// ListUsageEvents returns the newest usage events, capped at 1000.
func (a *Admin) ListUsageEvents(ctx context.Context, limit int) ([]ledger.UsageEvent, error) {
	return a.store.ListUsageEvents(ctx, clampLimit(limit))
}

// ListCreditAdjustments returns the newest adjustments, capped at 1000.
func (a *Admin) ListCreditAdjustments(ctx context.Context, limit int) ([]ledger.CreditAdjustment, error) {
	return a.store.ListAdjustments(ctx, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultAdminListLimit
	}
	if limit > maxAdminListLimit {
		return maxAdminListLimit
	}
	return limit
}
