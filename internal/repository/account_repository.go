package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haldane-systems/carecircle-server/internal/model"
)

// AccountRepo persists accounts in the `accounts` table.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

const accountCols = `id, email, password_hash, full_name, status, email_verified,
	email_verification_expires_at, failed_login_attempts, locked_until,
	password_reset_token_hash, password_reset_expires_at, password_changed_at,
	last_login_at, created_at, updated_at`

// Create inserts a new PENDING account and returns it.
func (r *AccountRepo) Create(ctx context.Context, email, passwordHash, fullName string, verifyExpiresAt time.Time) (*model.Account, error) {
	id := uuid.New()
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, full_name, status, email_verified, email_verification_expires_at)
		 VALUES (?,?,?,?,?,?,?)`,
		id.String(), email, passwordHash, fullName, model.AccountPending, false, verifyExpiresAt)
	if err != nil {
		// 1062 = ER_DUP_ENTRY on the unique email index
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetByEmail fetches an account by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE email=? LIMIT 1`, email))
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE id=? LIMIT 1`, id.String()))
}

// GetByResetTokenHash fetches the account holding a live reset token hash.
// Expiry is checked in SQL so an expired token behaves like an unknown one.
func (r *AccountRepo) GetByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*model.Account, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM accounts
		 WHERE password_reset_token_hash=? AND password_reset_expires_at > ? LIMIT 1`,
		tokenHash, now))
}

// MarkVerified flips the account to ACTIVE and clears verification state.
func (r *AccountRepo) MarkVerified(ctx context.Context, id uuid.UUID) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE accounts SET status=?, email_verified=1, email_verification_expires_at=NULL WHERE id=?`,
		model.AccountActive, id.String())
	return err
}

// SetVerificationExpiry records when the outstanding OTP expires, for
// operational visibility. The code itself lives only in the OTP store.
func (r *AccountRepo) SetVerificationExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE accounts SET email_verification_expires_at=? WHERE id=?`, expiresAt, id.String())
	return err
}

// IncrementFailedLogins atomically bumps the failed-attempt counter and
// returns the new value. LAST_INSERT_ID(expr) surfaces the incremented
// value in the UPDATE's own OK packet, read via Result.LastInsertId — one
// statement, one connection, so concurrent wrong-password attempts cannot
// lose counts and the returned value can never come from another
// connection's counter.
func (r *AccountRepo) IncrementFailedLogins(ctx context.Context, id uuid.UUID) (int, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE accounts SET failed_login_attempts=LAST_INSERT_ID(failed_login_attempts+1) WHERE id=?`,
		id.String())
	if err != nil {
		return 0, err
	}
	n, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Lock sets locked_until after the threshold is reached.
func (r *AccountRepo) Lock(ctx context.Context, id uuid.UUID, until time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE accounts SET locked_until=? WHERE id=?`, until, id.String())
	return err
}

// RecordLogin clears lockout state and stamps last_login_at after a
// fully successful login.
func (r *AccountRepo) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE accounts SET failed_login_attempts=0, locked_until=NULL, last_login_at=? WHERE id=?`,
		at, id.String())
	return err
}

// SetResetToken stores the reset token hash and its expiry, replacing any
// outstanding token (latest request wins).
func (r *AccountRepo) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE accounts SET password_reset_token_hash=?, password_reset_expires_at=? WHERE id=?`,
		tokenHash, expiresAt, id.String())
	return err
}

// UpdatePassword persists a new credential, clears any reset token and
// stamps password_changed_at in one statement.
func (r *AccountRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE accounts SET password_hash=?, password_reset_token_hash=NULL,
		 password_reset_expires_at=NULL, password_changed_at=? WHERE id=?`,
		passwordHash, at, id.String())
	return err
}

func (r *AccountRepo) scanOne(row *sql.Row) (*model.Account, error) {
	var (
		a     model.Account
		idStr string
	)
	err := row.Scan(&idStr, &a.Email, &a.PasswordHash, &a.FullName, &a.Status,
		&a.EmailVerified, &a.EmailVerifyExpiresAt, &a.FailedLoginAttempts,
		&a.LockedUntil, &a.ResetTokenHash, &a.ResetExpiresAt,
		&a.PasswordChangedAt, &a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
