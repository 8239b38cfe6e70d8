package models

import "errors"

// Error taxonomy returned to callers. None of these are swallowed internally;
// the presentation layer maps them to user-visible retry/irrecoverable states.
var (
	// ErrInvalidStateTransition: an illegal move was attempted on a task or
	// request. Recoverable — re-fetch state and retry the correct action.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrScoringFailed: the scoring oracle failed, timed out, or returned no
	// score. Retryable. A missing score is never substituted with a fabricated one.
	ErrScoringFailed = errors.New("deliverable scoring failed")

	// ErrMatchingUnavailable: the ranking oracle failed or returned malformed
	// data. Retryable.
	ErrMatchingUnavailable = errors.New("partner matching unavailable")

	// ErrDuplicatePendingRequest: a PENDING request already exists for this
	// startup/partner pair. Recoverable by waiting for its resolution.
	ErrDuplicatePendingRequest = errors.New("a pending request already exists for this pair")

	// ErrAlreadyDecided: the request reached a terminal state. Informational;
	// not recoverable.
	ErrAlreadyDecided = errors.New("request already decided")

	// ErrContactUndisclosed: contact details are readable only after the
	// request is accepted.
	ErrContactUndisclosed = errors.New("contact details are not disclosed")
)
