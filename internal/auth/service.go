package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haldane-systems/carecircle-server/internal/config"
	"github.com/haldane-systems/carecircle-server/internal/model"
	"github.com/haldane-systems/carecircle-server/internal/otp"
	"github.com/haldane-systems/carecircle-server/internal/repository"
)

// AccountStore is the persistence contract for accounts. Implemented by
// repository.AccountRepo; faked in tests.
type AccountStore interface {
	Create(ctx context.Context, email, passwordHash, fullName string, verifyExpiresAt time.Time) (*model.Account, error)
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	GetByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*model.Account, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
	SetVerificationExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	IncrementFailedLogins(ctx context.Context, id uuid.UUID) (int, error)
	Lock(ctx context.Context, id uuid.UUID, until time.Time) error
	RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, at time.Time) error
}

// SessionStore is the persistence contract for sessions. Implemented by
// repository.SessionRepo.
type SessionStore interface {
	Create(ctx context.Context, accountID uuid.UUID, tokenHash string, expiresAt time.Time, ip, deviceInfo string) (*model.Session, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error)
	Rotate(ctx context.Context, oldHash, newHash string, expiresAt, now time.Time) error
	Deactivate(ctx context.Context, tokenHash string) error
	DeactivateAllForAccount(ctx context.Context, accountID uuid.UUID) error
	DeactivateOthersForAccount(ctx context.Context, accountID, keepID uuid.UUID) error
	ListActiveForAccount(ctx context.Context, accountID uuid.UUID, now time.Time) ([]model.Session, error)
	CountActiveForAccount(ctx context.Context, accountID uuid.UUID, now time.Time) (int, error)
}

// Mailer dispatches outbound mail. Delivery is decoupled from request
// handling; every call site in this package swallows the error after
// logging it, so a mail outage can never fail an auth flow.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Generic response messages. Enumeration-sensitive flows return these
// byte-identically whether or not the account exists.
const (
	MsgRegistered       = "Registration successful. Check your email for a verification code."
	MsgVerificationSent = "If that email is registered, a verification code has been sent."
	MsgResetRequested   = "If that email is registered, a password reset link has been sent."
	MsgPasswordReset    = "Your password has been reset. Please log in again."
	MsgLoggedOut        = "Logged out."

	msgBadCredentials  = "Invalid email or password."
	msgCodeInvalid     = "Invalid or expired verification code."
	msgAlreadyVerified = "Email is already verified."
	msgCodeCooldown    = "A verification code was sent recently. Wait before requesting another."
	msgBadRefresh      = "Invalid or expired refresh token."
	msgBadResetToken   = "Invalid or expired reset token."
)

// Service is the auth orchestrator. One method per flow; each method takes
// everything it needs (acting identity, client IP, device info) as explicit
// arguments and returns a typed *Error on flow failure.
type Service struct {
	accounts AccountStore
	sessions SessionStore
	codes    *otp.Issuer
	hasher   PasswordHasher
	tokens   *TokenService
	lockout  LockoutPolicy
	mailer   Mailer
	cfg      config.Auth

	now func() time.Time // injectable clock for tests
}

func NewService(
	accounts AccountStore,
	sessions SessionStore,
	codes *otp.Issuer,
	hasher PasswordHasher,
	tokens *TokenService,
	mailer Mailer,
	cfg config.Auth,
) *Service {
	return &Service{
		accounts: accounts,
		sessions: sessions,
		codes:    codes,
		hasher:   hasher,
		tokens:   tokens,
		lockout:  LockoutPolicy{Threshold: cfg.LockoutThreshold, Duration: cfg.LockoutDuration},
		mailer:   mailer,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RegisterInput carries the registration request fields.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

// LoginInput carries the login request fields plus client metadata the
// session row records.
type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
	IP         string
	DeviceInfo string
}

// LoginResult is returned by every flow that establishes a session.
type LoginResult struct {
	Account *model.Account
	Access  AccessToken
	Refresh RefreshToken
	Session *model.Session
}

// Register creates a PENDING account, issues a verification OTP and mails
// it. Mail or OTP dispatch failure does not fail registration; the user
// can request a resend. Returns a generic success message.
func (s *Service) Register(ctx context.Context, in RegisterInput) (string, error) {
	email := normalizeEmail(in.Email)
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	acc, err := s.accounts.Create(ctx, email, hash, strings.TrimSpace(in.FullName), s.now().Add(s.cfg.OTPTTL))
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return "", newError(KindConflict, "An account with that email already exists.")
		}
		return "", fmt.Errorf("create account: %w", err)
	}

	code, err := s.codes.Issue(ctx, otp.PurposeEmailVerification, email)
	if err != nil {
		// Account exists; resend-verification recovers from this.
		log.Printf("auth: issue verification code for %s failed: %v", acc.ID, err)
		return MsgRegistered, nil
	}
	s.sendMail(ctx, email, "Verify your email",
		fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(s.cfg.OTPTTL.Minutes())))
	return MsgRegistered, nil
}

// VerifyEmail confirms the OTP, activates the account and logs the user in
// right away: on success it returns a fresh token pair and session.
func (s *Service) VerifyEmail(ctx context.Context, email, code, ip, deviceInfo string) (*LoginResult, error) {
	email = normalizeEmail(email)
	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindBadRequest, msgCodeInvalid)
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	if acc.EmailVerified {
		return nil, newError(KindBadRequest, msgAlreadyVerified)
	}

	if err := s.codes.Verify(ctx, otp.PurposeEmailVerification, email, code); err != nil {
		if errors.Is(err, otp.ErrCodeInvalid) {
			return nil, newError(KindBadRequest, msgCodeInvalid)
		}
		return nil, fmt.Errorf("verify code: %w", err)
	}

	if err := s.accounts.MarkVerified(ctx, acc.ID); err != nil {
		return nil, fmt.Errorf("mark verified: %w", err)
	}
	acc.EmailVerified = true
	acc.Status = model.AccountActive
	acc.EmailVerifyExpiresAt = nil

	return s.issueSession(ctx, acc, false, ip, deviceInfo)
}

// ResendVerification issues a fresh OTP for an unverified account. Unknown
// emails get the same generic message as success; an already-verified email
// is surfaced as a BadRequest instead.
func (s *Service) ResendVerification(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return MsgVerificationSent, nil
		}
		return "", fmt.Errorf("load account: %w", err)
	}
	if acc.EmailVerified {
		return "", newError(KindBadRequest, msgAlreadyVerified)
	}

	code, err := s.codes.Issue(ctx, otp.PurposeEmailVerification, email)
	if err != nil {
		if errors.Is(err, otp.ErrCooldown) {
			return "", newError(KindBadRequest, msgCodeCooldown)
		}
		return "", fmt.Errorf("issue code: %w", err)
	}
	if err := s.accounts.SetVerificationExpiry(ctx, acc.ID, s.now().Add(s.cfg.OTPTTL)); err != nil {
		return "", fmt.Errorf("record code expiry: %w", err)
	}
	s.sendMail(ctx, email, "Verify your email",
		fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(s.cfg.OTPTTL.Minutes())))
	return MsgVerificationSent, nil
}

// Login runs the five-step state machine: lookup, lock check, password
// check (counts toward lockout), status check, success. A locked account
// never consumes an attempt; a wrong password against an inactive account
// still does.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	now := s.now()
	acc, err := s.accounts.GetByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindUnauthorized, msgBadCredentials)
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	if acc.Locked(now) {
		return nil, newError(KindForbidden, lockMessage(*acc.LockedUntil, now))
	}

	if !s.hasher.Compare(acc.PasswordHash, in.Password) {
		count, err := s.accounts.IncrementFailedLogins(ctx, acc.ID)
		if err != nil {
			return nil, fmt.Errorf("count failed login: %w", err)
		}
		if locked, until := s.lockout.OnFailure(count, now); locked {
			if err := s.accounts.Lock(ctx, acc.ID, until); err != nil {
				return nil, fmt.Errorf("lock account: %w", err)
			}
		}
		// Unauthorized regardless of whether this attempt triggered a lock.
		return nil, newError(KindUnauthorized, msgBadCredentials)
	}

	// Status checks come after password verification so failed-password
	// attempts against inactive accounts still count toward lockout.
	if acc.Status != model.AccountActive {
		return nil, newError(KindForbidden, statusMessage(acc.Status))
	}

	if err := s.accounts.RecordLogin(ctx, acc.ID, now); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	acc.FailedLoginAttempts = 0
	acc.LockedUntil = nil
	acc.LastLoginAt = &now

	others, err := s.sessions.CountActiveForAccount(ctx, acc.ID, now)
	if err != nil {
		log.Printf("auth: count sessions for %s failed: %v", acc.ID, err)
		others = 0
	}

	res, err := s.issueSession(ctx, acc, in.RememberMe, in.IP, in.DeviceInfo)
	if err != nil {
		return nil, err
	}

	// Alert the account holder when another device is already signed in.
	if others > 0 {
		s.sendMail(ctx, acc.Email, "New sign-in to your account",
			fmt.Sprintf("A new sign-in to your account was recorded at %s from %s.",
				now.Format(time.RFC1123), signInSource(in.IP, in.DeviceInfo)))
	}
	return res, nil
}

// ListSessions returns the account's live sessions for the device
// overview endpoint.
func (s *Service) ListSessions(ctx context.Context, accountID uuid.UUID) ([]model.Session, error) {
	return s.sessions.ListActiveForAccount(ctx, accountID, s.now())
}

// GetAccount loads an account for authenticated contexts (e.g. /me).
func (s *Service) GetAccount(ctx context.Context, accountID uuid.UUID) (*model.Account, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindNotFound, "Account not found.")
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	return acc, nil
}

// issueSession mints an access token, a refresh token scoped by remember-me
// and a session row recording the client metadata.
func (s *Service) issueSession(ctx context.Context, acc *model.Account, remember bool, ip, deviceInfo string) (*LoginResult, error) {
	access, err := s.tokens.NewAccessToken(acc.ID, acc.Email)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	ttl := s.cfg.RefreshTTL
	if remember {
		ttl = s.cfg.RefreshTTLRemembered
	}
	refresh, err := s.tokens.NewRefreshToken(ttl)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	sess, err := s.sessions.Create(ctx, acc.ID, HashRefreshToken(refresh.Raw), refresh.Exp, ip, deviceInfo)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &LoginResult{Account: acc, Access: access, Refresh: refresh, Session: sess}, nil
}

// sendMail dispatches through the mail collaborator and swallows failures:
// delivery problems are logged, never surfaced to the caller.
func (s *Service) sendMail(ctx context.Context, to, subject, body string) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.Send(ctx, to, subject, body); err != nil {
		log.Printf("auth: mail dispatch to account failed: %v", err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func lockMessage(until, now time.Time) string {
	return fmt.Sprintf("Account is locked. Try again in %d minute(s).", RemainingMinutes(until, now))
}

func statusMessage(status model.AccountStatus) string {
	switch status {
	case model.AccountPending:
		return "Email is not verified."
	case model.AccountSuspended:
		return "Account is suspended."
	case model.AccountDeactivated:
		return "Account is deactivated."
	default:
		return "Account is not active."
	}
}

func signInSource(ip, deviceInfo string) string {
	switch {
	case ip != "" && deviceInfo != "":
		return ip + " (" + deviceInfo + ")"
	case ip != "":
		return ip
	case deviceInfo != "":
		return deviceInfo
	default:
		return "an unknown device"
	}
}
