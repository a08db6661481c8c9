package ledger

import "context"

// Store is the durable credit ledger: current balances plus the two
// append-only audit collections. Debit and Adjust must be atomic per user —
// two concurrent callers may not both observe a stale balance and both
// mutate past zero.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)

	// Debit charges amount against the user's balance in a single
	// read-modify-write. Fails with *InsufficientCreditsError when the
	// balance cannot cover it, leaving the ledger untouched.
	Debit(ctx context.Context, userID string, amount int64) (newBalance int64, err error)

	// Adjust applies a signed administrative balance change and appends one
	// CreditAdjustment record. Fails with ErrInvalidAdjustment when the
	// resulting balance would be negative; nothing is written in that case.
	Adjust(ctx context.Context, userID string, amount int64, reason, adminID string) (CreditAdjustment, error)

	// ToggleActive flips the suspension flag and returns the new state.
	ToggleActive(ctx context.Context, userID string) (bool, error)

	AppendUsage(ctx context.Context, ev *UsageEvent) error
	ListUsageEvents(ctx context.Context, limit int) ([]UsageEvent, error)
	ListUsageByUser(ctx context.Context, userID string, limit int) ([]UsageEvent, error)
	ListAdjustments(ctx context.Context, limit int) ([]CreditAdjustment, error)
}
