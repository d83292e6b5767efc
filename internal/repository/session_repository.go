package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/haldane-systems/carecircle-server/internal/model"
)

// SessionRepo persists sessions in the `sessions` table, one row per
// logged-in device. Only the SHA-256 hash of a refresh token is stored.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

const sessionCols = `id, account_id, refresh_token_hash, expires_at, is_active,
	last_used_at, ip_address, device_info, created_at`

// Create inserts a new active session and returns it.
func (r *SessionRepo) Create(ctx context.Context, accountID uuid.UUID, tokenHash string, expiresAt time.Time, ip, deviceInfo string) (*model.Session, error) {
	id := uuid.New()
	now := time.Now().UTC()
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO sessions (id, account_id, refresh_token_hash, expires_at, is_active, last_used_at, ip_address, device_info)
		 VALUES (?,?,?,?,1,?,?,?)`,
		id.String(), accountID.String(), tokenHash, expiresAt, now, ip, deviceInfo)
	if err != nil {
		return nil, err
	}
	return &model.Session{
		ID:               id,
		AccountID:        accountID,
		RefreshTokenHash: tokenHash,
		ExpiresAt:        expiresAt,
		IsActive:         true,
		LastUsedAt:       now,
		IPAddress:        ip,
		DeviceInfo:       deviceInfo,
		CreatedAt:        now,
	}, nil
}

// GetByTokenHash fetches a session by refresh token hash regardless of
// state; callers check IsActive/ExpiresAt so stale and revoked tokens can
// be told apart from unknown ones where that matters.
func (r *SessionRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM sessions WHERE refresh_token_hash=? LIMIT 1`, tokenHash))
}

// Rotate swaps the refresh token hash and expiry in a single conditional
// update keyed on the old hash. Of two concurrent refreshes presenting the
// same token, exactly one matches the WHERE clause; the loser sees zero
// rows affected and gets ErrNotFound.
func (r *SessionRepo) Rotate(ctx context.Context, oldHash, newHash string, expiresAt, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE sessions SET refresh_token_hash=?, expires_at=?, last_used_at=?
		 WHERE refresh_token_hash=? AND is_active=1 AND expires_at > ?`,
		newHash, expiresAt, now, oldHash, now)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate marks the session holding tokenHash inactive. Idempotent:
// revoking an unknown or already-inactive session is not an error.
func (r *SessionRepo) Deactivate(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE sessions SET is_active=0 WHERE refresh_token_hash=?`, tokenHash)
	return err
}

// DeactivateAllForAccount revokes every active session of an account.
func (r *SessionRepo) DeactivateAllForAccount(ctx context.Context, accountID uuid.UUID) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE sessions SET is_active=0 WHERE account_id=? AND is_active=1`, accountID.String())
	return err
}

// DeactivateOthersForAccount revokes every active session of an account
// except the one identified by keepID. Used by change-password, which must
// not log the caller out of the session they changed the password from.
func (r *SessionRepo) DeactivateOthersForAccount(ctx context.Context, accountID, keepID uuid.UUID) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE sessions SET is_active=0 WHERE account_id=? AND id<>? AND is_active=1`,
		accountID.String(), keepID.String())
	return err
}

// ListActiveForAccount returns the account's live sessions, most recently
// used first, for the device-overview endpoint.
func (r *SessionRepo) ListActiveForAccount(ctx context.Context, accountID uuid.UUID, now time.Time) ([]model.Session, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+sessionCols+` FROM sessions
		 WHERE account_id=? AND is_active=1 AND expires_at > ?
		 ORDER BY last_used_at DESC`,
		accountID.String(), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// CountActiveForAccount reports how many live sessions the account has.
// The login flow uses it to decide whether to send a sign-in alert.
func (r *SessionRepo) CountActiveForAccount(ctx context.Context, accountID uuid.UUID, now time.Time) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE account_id=? AND is_active=1 AND expires_at > ?`,
		accountID.String(), now).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SessionRepo) scanOne(row *sql.Row) (*model.Session, error) {
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return s, err
}

func scanSession(row rowScanner) (*model.Session, error) {
	var (
		s            model.Session
		idStr, accID string
	)
	err := row.Scan(&idStr, &accID, &s.RefreshTokenHash, &s.ExpiresAt, &s.IsActive,
		&s.LastUsedAt, &s.IPAddress, &s.DeviceInfo, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if s.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if s.AccountID, err = uuid.Parse(accID); err != nil {
		return nil, err
	}
	return &s, nil
}
