// Package verification holds the time-boxed signup state: one-time codes and
// the pending payloads needed to materialize an account on activation.
// Absence after TTL is indistinguishable from never-written; callers treat
// every miss as "expired or not found".
package verification

import (
	"context"
	"errors"
	"time"
)

// Key families per signup. Two independent entries are written per email.
const (
	codeKeyPrefix    = "auth_code:"
	pendingKeyPrefix = "pending_data:"
	resetKeyPrefix   = "password_reset_code:"
)

// ErrNotFound is returned on any cache miss, whether the entry expired or was
// never written.
var ErrNotFound = errors.New("verification entry expired or not found")

// AccountKind tags the pending payload with the signup variant resolved once
// at signup time and carried through activation as typed data.
type AccountKind string

const (
	KindStandard AccountKind = "standard"
	KindAgent    AccountKind = "agent"
)

// PendingSignup is the ephemeral payload cached between signup and
// activation. It carries every field needed to finish provisioning.
type PendingSignup struct {
	Email          string      `json:"email"`
	Username       string      `json:"username"`
	FirstName      string      `json:"firstName"`
	LastName       string      `json:"lastName"`
	WhatsappNumber string      `json:"whatsappNumber,omitempty"`
	Kind           AccountKind `json:"kind"`
	AgencyName     string      `json:"agencyName,omitempty"`
	ContactInfo    string      `json:"contactInfo,omitempty"`
}

// Store is the injected verification cache. No business uniqueness is
// enforced here; writes are last-writer-wins.
type Store interface {
	PutCode(ctx context.Context, email, code string, ttl time.Duration) error
	GetCode(ctx context.Context, email string) (string, error)
	DeleteCode(ctx context.Context, email string) error

	PutPending(ctx context.Context, email string, pending PendingSignup, ttl time.Duration) error
	GetPending(ctx context.Context, email string) (PendingSignup, error)
	DeletePending(ctx context.Context, email string) error

	PutResetCode(ctx context.Context, email, code string, ttl time.Duration) error
	GetResetCode(ctx context.Context, email string) (string, error)
	DeleteResetCode(ctx context.Context, email string) error
}
