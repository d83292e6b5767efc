package model

import (
	"time"

	"github.com/google/uuid"
)

// AccountStatus enumerates the lifecycle states of an account.
// An account is created PENDING and becomes ACTIVE once its email
// address is verified.  SUSPENDED and DEACTIVATED are set by
// administrative tooling outside of the auth core; accounts in
// either state cannot authenticate.
type AccountStatus string

const (
	AccountPending     AccountStatus = "PENDING"
	AccountActive      AccountStatus = "ACTIVE"
	AccountSuspended   AccountStatus = "SUSPENDED"
	AccountDeactivated AccountStatus = "DEACTIVATED"
)

// Account represents a row in the `accounts` table.  Each field
// corresponds to a column.  The json tags are omitted because these
// structs are used internally by the repository layer; handlers
// define separate response types with appropriate JSON tags and
// never expose the password hash or reset token hash.
//
// Fields:
//  ID                    – primary key (uuid).
//  Email                 – unique, stored lowercase.
//  PasswordHash          – bcrypt hashed password.
//  FullName              – display name supplied at registration.
//  Status                – lifecycle state, see AccountStatus.
//  EmailVerified         – whether the email OTP was confirmed.
//  EmailVerifyExpiresAt  – expiry of the outstanding verification code (nullable).
//  FailedLoginAttempts   – consecutive wrong-password count.
//  LockedUntil           – lockout expiry; nil or past means unlocked.
//  ResetTokenHash        – SHA-256 hex of the password reset token (nullable).
//  ResetExpiresAt        – expiry of the reset token (nullable).
//  PasswordChangedAt     – last credential change (nullable).
//  LastLoginAt           – last successful login (nullable).
type Account struct {
	ID                   uuid.UUID     // accounts.id
	Email                string        // accounts.email
	PasswordHash         string        // accounts.password_hash
	FullName             string        // accounts.full_name
	Status               AccountStatus // accounts.status
	EmailVerified        bool          // accounts.email_verified
	EmailVerifyExpiresAt *time.Time    // accounts.email_verification_expires_at (nullable)
	FailedLoginAttempts  int           // accounts.failed_login_attempts
	LockedUntil          *time.Time    // accounts.locked_until (nullable)
	ResetTokenHash       *string       // accounts.password_reset_token_hash (nullable)
	ResetExpiresAt       *time.Time    // accounts.password_reset_expires_at (nullable)
	PasswordChangedAt    *time.Time    // accounts.password_changed_at (nullable)
	LastLoginAt          *time.Time    // accounts.last_login_at (nullable)
	CreatedAt            time.Time     // accounts.created_at
	UpdatedAt            time.Time     // accounts.updated_at
}

// Locked reports whether the account is currently locked out.
func (a *Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}
