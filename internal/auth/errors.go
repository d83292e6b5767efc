// Package auth implements the authentication and session lifecycle core:
// registration, email OTP verification, credentialed login with lockout,
// access/refresh token issuance and rotation, password reset, and session
// revocation. The HTTP layer calls one Service method per request and
// translates the typed errors defined here into status codes.
package auth

import "errors"

// Kind classifies a flow failure. Every error the Service returns to a
// caller carries exactly one Kind; internal failures (DB, Redis, mail) are
// wrapped and surfaced as plain errors instead, which the transport maps
// to a generic 5xx.
type Kind int

const (
	// KindConflict: duplicate registration.
	KindConflict Kind = iota + 1
	// KindUnauthorized: bad credentials, invalid/expired/reused refresh
	// token, invalid access token.
	KindUnauthorized
	// KindForbidden: locked account, inactive/suspended account.
	KindForbidden
	// KindNotFound: unknown account in authenticated contexts.
	KindNotFound
	// KindBadRequest: invalid/expired OTP or reset token, already-verified
	// email.
	KindBadRequest
)

// Error is a flow failure with a user-presentable message. Messages on
// enumeration-sensitive paths are deliberately identical across the
// "account exists" and "account does not exist" branches.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

// KindOf extracts the Kind from an error chain, or 0 when the error is not
// a flow failure (callers then treat it as internal).
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
