package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"omnihub.io/internal/ids"
)

// InMemory implements Store with in-process concurrency safety. Suitable for
// tests and single-node deployments; production uses the Postgres store.
type InMemory struct {
	mu          sync.RWMutex
	users       map[string]*User
	byEmail     map[string]string // lowercased email -> user id
	usage       []UsageEvent
	adjustments []CreditAdjustment
}

// NewInMemory creates an empty ledger.
func NewInMemory() *InMemory {
	return &InMemory{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

func (s *InMemory) CreateUser(ctx context.Context, u *User) error {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if email == "" {
		return ErrInvalidEmail
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[email]; taken {
		return ErrEmailTaken
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.Email = email
	cp := *u
	s.users[u.ID] = &cp
	s.byEmail[email] = u.ID
	return nil
}

func (s *InMemory) GetUser(ctx context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return *u, nil
}

func (s *InMemory) GetUserByEmail(ctx context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return User{}, ErrNotFound
	}
	return *s.users[id], nil
}

func (s *InMemory) ListUsers(ctx context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	// Newest first, matching the admin projection.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, ErrNotFound
	}
	if u.Credits < amount {
		return u.Credits, &InsufficientCreditsError{Required: amount, Available: u.Credits}
	}
	u.Credits -= amount
	return u.Credits, nil
}

func (s *InMemory) Adjust(ctx context.Context, userID string, amount int64, reason, adminID string) (CreditAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return CreditAdjustment{}, ErrNotFound
	}
	after := u.Credits + amount
	if after < 0 {
		return CreditAdjustment{}, ErrInvalidAdjustment
	}
	u.Credits = after
	adj := CreditAdjustment{
		ID:           ids.New(),
		UserID:       u.ID,
		UserEmail:    u.Email,
		Amount:       amount,
		BalanceAfter: after,
		Reason:       reason,
		AdminID:      adminID,
		CreatedAt:    time.Now().UTC(),
	}
	s.adjustments = append(s.adjustments, adj)
	return adj, nil
}

func (s *InMemory) ToggleActive(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return false, ErrNotFound
	}
	u.Active = !u.Active
	return u.Active, nil
}

func (s *InMemory) AppendUsage(ctx context.Context, ev *UsageEvent) error {
	if ev.ID == "" {
		ev.ID = ids.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = append(s.usage, *ev)
	return nil
}

func (s *InMemory) ListUsageEvents(ctx context.Context, limit int) ([]UsageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestUsage(s.usage, limit, ""), nil
}

func (s *InMemory) ListUsageByUser(ctx context.Context, userID string, limit int) ([]UsageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestUsage(s.usage, limit, userID), nil
}

func (s *InMemory) ListAdjustments(ctx context.Context, limit int) ([]CreditAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	var out []CreditAdjustment
	for i := len(s.adjustments) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.adjustments[i])
	}
	return out, nil
}

func newestUsage(events []UsageEvent, limit int, userID string) []UsageEvent {
	if limit <= 0 {
		limit = 100
	}
	var out []UsageEvent
	for i := len(events) - 1; i >= 0 && len(out) < limit; i-- {
		if userID != "" && events[i].UserID != userID {
			continue
		}
		out = append(out, events[i])
	}
	return out
}
