package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/haldane-systems/carecircle-server/internal/model"
	"github.com/haldane-systems/carecircle-server/internal/repository"
)

// RefreshResult carries the rotated token pair.
type RefreshResult struct {
	Access  AccessToken
	Refresh RefreshToken
}

// Refresh validates a refresh token against its session row and rotates
// it: the new pair is minted and the session's token hash and expiry are
// overwritten in one conditional update. The old token is dead from that
// point on; of two concurrent refreshes presenting the same token, exactly
// one succeeds and the other gets Unauthorized.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	now := s.now()
	oldHash := HashRefreshToken(refreshToken)

	sess, err := s.sessions.GetByTokenHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindUnauthorized, msgBadRefresh)
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !sess.Usable(now) {
		return nil, newError(KindUnauthorized, msgBadRefresh)
	}

	acc, err := s.accounts.GetByID(ctx, sess.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindUnauthorized, msgBadRefresh)
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	if acc.Status != model.AccountActive {
		return nil, newError(KindForbidden, statusMessage(acc.Status))
	}

	refresh, err := s.tokens.NewRefreshToken(s.cfg.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	// The conditional update is the rotation point: it only matches while
	// the old hash is still current, so a concurrent rotation that already
	// swapped it makes this attempt lose.
	if err := s.sessions.Rotate(ctx, oldHash, HashRefreshToken(refresh.Raw), refresh.Exp, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindUnauthorized, msgBadRefresh)
		}
		return nil, fmt.Errorf("rotate session: %w", err)
	}

	access, err := s.tokens.NewAccessToken(acc.ID, acc.Email)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &RefreshResult{Access: access, Refresh: refresh}, nil
}

// CurrentSessionID resolves the session holding the given refresh token,
// or uuid.Nil when the token is empty or unknown. Used by the transport to
// identify the acting session for change-password.
func (s *Service) CurrentSessionID(ctx context.Context, refreshToken string) uuid.UUID {
	if refreshToken == "" {
		return uuid.Nil
	}
	sess, err := s.sessions.GetByTokenHash(ctx, HashRefreshToken(refreshToken))
	if err != nil {
		return uuid.Nil
	}
	return sess.ID
}

// Logout invalidates the session holding the supplied refresh token.
// Idempotent: unknown or already-inactive sessions are not an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.sessions.Deactivate(ctx, HashRefreshToken(refreshToken)); err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return nil
}

// LogoutAll invalidates every session belonging to the account.
func (s *Service) LogoutAll(ctx context.Context, accountID uuid.UUID) error {
	if err := s.sessions.DeactivateAllForAccount(ctx, accountID); err != nil {
		return fmt.Errorf("deactivate sessions: %w", err)
	}
	return nil
}
