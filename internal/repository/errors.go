// Package repository implements MySQL persistence for accounts and
// sessions. These sentinel values allow higher layers such as the
// auth service to distinguish between failure scenarios without
// inspecting driver-specific errors. For example, ErrDuplicateEmail
// signals a unique-key violation on accounts.email, and ErrNotFound
// replaces sql.ErrNoRows at the package boundary.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row. Callers decide
// how to surface it; the auth service maps it onto its own taxonomy so
// that enumeration-sensitive flows can stay generic.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when an insert violates the unique
// constraint on accounts.email. The auth service translates it into
// a Conflict for the registration flow.
var ErrDuplicateEmail = errors.New("email already registered")
