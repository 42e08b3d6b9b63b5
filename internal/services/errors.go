// internal/services/errors.go
package services

import "errors"

var (
	// Recoverable client outcomes; handlers surface them distinctly.
	ErrSelfReport      = errors.New("cannot report your own content")
	ErrDuplicateReport = errors.New("content already reported by this user")
	ErrInvalidReason   = errors.New("invalid report reason")

	// Authorization guard violations, checked before any state mutation.
	ErrForbidden = errors.New("not allowed to moderate this content")

	ErrContentNotFound = errors.New("content not found")

	// Transient aggregate conflict; retried internally with backoff.
	ErrAggregationConflict = errors.New("report aggregation conflict")

	// Post-trigger transition failure; the committed score is kept and the
	// mismatch is repaired by reconciliation, never rolled back.
	ErrStateTransition = errors.New("moderation state transition failed")
)
