package port

import (
	"context"
	"time"
)

// StampStore persists the last-validation timestamp across sessions, so a
// freshly started client does not immediately re-validate a cart that was
// checked minutes ago.
type StampStore interface {
	// LastValidation returns the stored timestamp; ok is false when no
	// validation has been recorded (or the record expired).
	LastValidation(ctx context.Context) (at time.Time, ok bool, err error)

	MarkValidated(ctx context.Context, at time.Time) error
}
