package model

import (
	"time"

	"github.com/google/uuid"
)

// Session models a row in the `sessions` table.  One session exists
// per logged-in device or browser.  The raw refresh token is never
// stored; only its SHA-256 hash.  Rotation replaces RefreshTokenHash
// and ExpiresAt atomically so at most one live token value maps to a
// session at any instant.
//
// Fields:
//  ID               – primary key (uuid).
//  AccountID        – owning account; many sessions per account.
//  RefreshTokenHash – SHA-256 hex digest of the refresh token.
//  ExpiresAt        – refresh expiry; past means the session is unusable.
//  IsActive         – false once logged out or revoked.
//  LastUsedAt       – updated on every successful refresh.
//  IPAddress        – client IP recorded at creation (may be empty).
//  DeviceInfo       – user agent or device label (may be empty).
type Session struct {
	ID               uuid.UUID // sessions.id
	AccountID        uuid.UUID // sessions.account_id
	RefreshTokenHash string    // sessions.refresh_token_hash
	ExpiresAt        time.Time // sessions.expires_at
	IsActive         bool      // sessions.is_active
	LastUsedAt       time.Time // sessions.last_used_at
	IPAddress        string    // sessions.ip_address
	DeviceInfo       string    // sessions.device_info
	CreatedAt        time.Time // sessions.created_at
}

// Usable reports whether the session can still mint tokens: it must
// be active and not past its expiry, regardless of token validity.
func (s *Session) Usable(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}
