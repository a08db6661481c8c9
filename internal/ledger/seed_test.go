package ledger

import (
	"context"
	"testing"

	"omnihub.io/internal/auth"
)

func TestEnsureAdminsIdempotent(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	admins := DefaultSeedAdmins("root@omnihub.com", "S3cret!")

	if err := EnsureAdmins(ctx, s, admins); err != nil {
		t.Fatal(err)
	}
	// Second pass must not duplicate or reset anything.
	super, err := s.GetUserByEmail(ctx, "root@omnihub.com")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Debit(ctx, super.ID, 1); err != nil {
		t.Fatal(err)
	}
	if err := EnsureAdmins(ctx, s, admins); err != nil {
		t.Fatal(err)
	}

	users, _ := s.ListUsers(ctx)
	if len(users) != 6 {
		t.Fatalf("expected 6 seeded admins, got %d", len(users))
	}
	super, _ = s.GetUserByEmail(ctx, "root@omnihub.com")
	if super.Credits != 999_998 {
		t.Fatalf("reseed reset balance: %d", super.Credits)
	}
	if super.Role != RoleAdmin || !super.Active {
		t.Fatalf("unexpected superadmin state: %+v", super)
	}
	if err := auth.VerifyPassword(super.PasswordHash, "S3cret!"); err != nil {
		t.Fatalf("seed password not verifiable: %v", err)
	}

	secondary, _ := s.GetUserByEmail(ctx, "admin1@omnihub.com")
	if secondary.Credits != 100 {
		t.Fatalf("secondary admin credits = %d, want 100", secondary.Credits)
	}
}
