package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/haldane-systems/carecircle-server/internal/repository"
)

// ForgotPassword starts a reset. The response message is byte-identical
// whether or not the account exists; when it does, a high-entropy token is
// stored hashed with a short expiry and the raw value is mailed. A newer
// request supersedes any outstanding token.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	acc, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return MsgResetRequested, nil
		}
		return "", fmt.Errorf("load account: %w", err)
	}

	raw, err := newResetToken()
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	if err := s.accounts.SetResetToken(ctx, acc.ID, HashRefreshToken(raw), s.now().Add(s.cfg.ResetTokenTTL)); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	// Swallowed on failure like every other mail: surfacing a delivery
	// error here would reveal that the address is registered.
	s.sendMail(ctx, acc.Email, "Reset your password",
		fmt.Sprintf("Use this token to reset your password: %s. It expires in %d minutes.",
			raw, int(s.cfg.ResetTokenTTL.Minutes())))
	return MsgResetRequested, nil
}

// ResetPassword completes a reset: the supplied token is hashed and matched
// against a live stored hash, the new credential is persisted, the token is
// cleared, and every active session of the account is invalidated. The
// implied threat is a compromised credential, so the logout is global.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	now := s.now()
	acc, err := s.accounts.GetByResetTokenHash(ctx, HashRefreshToken(token), now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", newError(KindBadRequest, msgBadResetToken)
		}
		return "", fmt.Errorf("load account by reset token: %w", err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	if err := s.accounts.UpdatePassword(ctx, acc.ID, hash, now); err != nil {
		return "", fmt.Errorf("update password: %w", err)
	}
	if err := s.sessions.DeactivateAllForAccount(ctx, acc.ID); err != nil {
		return "", fmt.Errorf("invalidate sessions: %w", err)
	}
	return MsgPasswordReset, nil
}

// ChangePassword rotates the credential of an authenticated account after
// verifying the current password. Every other session of the account is
// invalidated; currentSessionID (resolved from the caller's refresh cookie)
// stays alive so the caller is not logged out of the device they acted
// from. With uuid.Nil all sessions are invalidated.
func (s *Service) ChangePassword(ctx context.Context, accountID, currentSessionID uuid.UUID, currentPassword, newPassword string) error {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newError(KindNotFound, "Account not found.")
		}
		return fmt.Errorf("load account: %w", err)
	}
	if !s.hasher.Compare(acc.PasswordHash, currentPassword) {
		return newError(KindUnauthorized, "Current password is incorrect.")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.accounts.UpdatePassword(ctx, acc.ID, hash, s.now()); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.sessions.DeactivateOthersForAccount(ctx, acc.ID, currentSessionID); err != nil {
		return fmt.Errorf("invalidate other sessions: %w", err)
	}
	return nil
}

// newResetToken returns 32 random bytes base64url encoded; only its
// SHA-256 is ever stored.
func newResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
