package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"omnihub.io/internal/ids"
	"omnihub.io/internal/ledger"
)

type Store struct {
	db *sql.DB
}

var _ ledger.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection. Used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

const userColumns = `id, email, name, password_hash, role, credits, is_active, created_at`

func (s *Store) CreateUser(ctx context.Context, u *ledger.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Email == "" {
		return ledger.ErrInvalidEmail
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into users(id, email, name, password_hash, role, credits, is_active, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, u.ID, u.Email, u.Name, u.PasswordHash, string(u.Role), u.Credits, u.Active, u.CreatedAt)
	if isUniqueViolation(err) {
		return ledger.ErrEmailTaken
	}
	return err
}

func (s *Store) GetUser(ctx context.Context, id string) (ledger.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (ledger.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`,
		strings.ToLower(strings.TrimSpace(email))))
}

func (s *Store) ListUsers(ctx context.Context) ([]ledger.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users order by created_at desc, id desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []ledger.User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// Debit charges amount inside one transaction: the balance row is
// locked, checked, and decremented before anyone else can read it.
func (s *Store) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ledger.ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var balance int64
	err = tx.QueryRowContext(ctx,
		`select credits from users where id=$1 for update`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ledger.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if balance < amount {
		return 0, &ledger.InsufficientCreditsError{Required: amount, Available: balance}
	}

	newBalance := balance - amount
	if _, err := tx.ExecContext(ctx,
		`update users set credits=$2 where id=$1`, userID, newBalance); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *Store) Adjust(ctx context.Context, userID string, amount int64, reason, adminID string) (ledger.CreditAdjustment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.CreditAdjustment{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var balance int64
	var email string
	err = tx.QueryRowContext(ctx,
		`select credits, email from users where id=$1 for update`, userID).Scan(&balance, &email)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.CreditAdjustment{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.CreditAdjustment{}, err
	}

	newBalance := balance + amount
	if newBalance < 0 {
		return ledger.CreditAdjustment{}, ledger.ErrInvalidAdjustment
	}
	if _, err := tx.ExecContext(ctx,
		`update users set credits=$2 where id=$1`, userID, newBalance); err != nil {
		return ledger.CreditAdjustment{}, err
	}

	adj := ledger.CreditAdjustment{
		ID:           ids.New(),
		UserID:       userID,
		UserEmail:    email,
		Amount:       amount,
		BalanceAfter: newBalance,
		Reason:       reason,
		AdminID:      adminID,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, `
		insert into credit_adjustments(id, user_id, user_email, amount, balance_after, reason, admin_id, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, adj.ID, adj.UserID, adj.UserEmail, adj.Amount, adj.BalanceAfter, adj.Reason, adj.AdminID, adj.CreatedAt); err != nil {
		return ledger.CreditAdjustment{}, err
	}
	if err := tx.Commit(); err != nil {
		return ledger.CreditAdjustment{}, err
	}
	return adj, nil
}

func (s *Store) ToggleActive(ctx context.Context, userID string) (bool, error) {
	var active bool
	err := s.db.QueryRowContext(ctx,
		`update users set is_active = not is_active where id=$1 returning is_active`,
		userID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ledger.ErrNotFound
	}
	return active, err
}

func (s *Store) AppendUsage(ctx context.Context, ev *ledger.UsageEvent) error {
	if ev.ID == "" {
		ev.ID = ids.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into usage_events(id, user_id, user_email, tool, credits_used, status, details, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, ev.ID, ev.UserID, ev.UserEmail, ev.Tool, ev.CreditsUsed, ev.Status, ev.Details, ev.CreatedAt)
	return err
}

func (s *Store) ListUsageEvents(ctx context.Context, limit int) ([]ledger.UsageEvent, error) {
	return s.queryUsage(ctx, `
		select id, user_id, user_email, tool, credits_used, status, details, created_at
		from usage_events order by created_at desc, id desc limit $1
	`, limit)
}

func (s *Store) ListUsageByUser(ctx context.Context, userID string, limit int) ([]ledger.UsageEvent, error) {
	return s.queryUsage(ctx, `
		select id, user_id, user_email, tool, credits_used, status, details, created_at
		from usage_events where user_id=$1 order by created_at desc, id desc limit $2
	`, userID, limit)
}

func (s *Store) ListAdjustments(ctx context.Context, limit int) ([]ledger.CreditAdjustment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, user_email, amount, balance_after, reason, admin_id, created_at
		from credit_adjustments order by created_at desc, id desc limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []ledger.CreditAdjustment
	for rows.Next() {
		var adj ledger.CreditAdjustment
		if err := rows.Scan(&adj.ID, &adj.UserID, &adj.UserEmail, &adj.Amount,
			&adj.BalanceAfter, &adj.Reason, &adj.AdminID, &adj.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, adj)
	}
	return res, rows.Err()
}

func (s *Store) queryUsage(ctx context.Context, query string, args ...any) ([]ledger.UsageEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []ledger.UsageEvent
	for rows.Next() {
		var ev ledger.UsageEvent
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.UserEmail, &ev.Tool,
			&ev.CreditsUsed, &ev.Status, &ev.Details, &ev.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanUser(row rowScanner) (ledger.User, error) {
	u, err := scanUserRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.User{}, ledger.ErrNotFound
	}
	return u, err
}

func scanUserRow(row rowScanner) (ledger.User, error) {
	var u ledger.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role,
		&u.Credits, &u.Active, &u.CreatedAt)
	u.Role = ledger.Role(role)
	return u, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
