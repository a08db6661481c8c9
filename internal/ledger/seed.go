package ledger

import (
	"context"
	"errors"
	"fmt"

	"omnihub.io/internal/auth"
)

// SeedAdmin describes an administrator account reconciled at startup.
type SeedAdmin struct {
	Email    string
	Name     string
	Password string
	Credits  int64
}

// DefaultSeedAdmins returns the superadmin plus the fixed set of secondary
// admin accounts. Email and password of the superadmin are overridable.
func DefaultSeedAdmins(superEmail, superPassword string) []SeedAdmin {
	if superEmail == "" {
		superEmail = "admin@omnihub.com"
	}
	if superPassword == "" {
		superPassword = "Admin@123"
	}
	admins := []SeedAdmin{
		{Email: superEmail, Name: "Super Admin", Password: superPassword, Credits: 999_999},
	}
	for i := 1; i <= 5; i++ {
		admins = append(admins, SeedAdmin{
			Email:    fmt.Sprintf("admin%d@omnihub.com", i),
			Name:     fmt.Sprintf("Admin %d", i),
			Password: fmt.Sprintf("Admin%d@123", i),
			Credits:  100,
		})
	}
	return admins
}

// EnsureAdmins reconciles the seed admin accounts, keyed by email. Existing
// accounts are left untouched, so repeated startups never duplicate or reset
// balances. A concurrent create by another instance is not an error.
func EnsureAdmins(ctx context.Context, s Store, admins []SeedAdmin) error {
	for _, a := range admins {
		_, err := s.GetUserByEmail(ctx, a.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("lookup seed admin %s: %w", a.Email, err)
		}
		hash, err := auth.HashPassword(a.Password)
		if err != nil {
			return fmt.Errorf("hash seed admin password: %w", err)
		}
		u := &User{
			Email:        a.Email,
			Name:         a.Name,
			PasswordHash: hash,
			Role:         RoleAdmin,
			Credits:      a.Credits,
			Active:       true,
		}
		if err := s.CreateUser(ctx, u); err != nil {
			if errors.Is(err, ErrEmailTaken) {
				continue
			}
			return fmt.Errorf("create seed admin %s: %w", a.Email, err)
		}
	}
	return nil
}
