package facts

import (
	"errors"
	"fmt"
)

// Sentinel errors for the governance operations. The HTTP layer maps these
// to distinct error codes so callers can tell a missing case from a blocked
// AI suggestion from a bad state transition.
var (
	// ErrCaseNotFound means the referenced case does not exist.
	ErrCaseNotFound = errors.New("case not found")

	// ErrFactNotFound means the verification or sign-off target does not exist.
	ErrFactNotFound = errors.New("fact not found")

	// ErrInvalidStatus means the supplied status is outside the allowed set
	// for the target state machine.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrReasonRequired means a disputed verification or amended sign-off was
	// submitted without a reason. Stricter than the original rollout, which
	// accepted reasonless disputes; the requirement is deliberate here.
	ErrReasonRequired = errors.New("amendment reason required")
)

// CitationPolicyError is returned when an AI-extracted fact fails the
// citation gate. The fact is never persisted; a hallucination-block metric
// fires for every occurrence.
type CitationPolicyError struct {
	Reason string
}

func (e *CitationPolicyError) Error() string {
	return fmt.Sprintf("facts must include valid citations from approved sources: %s", e.Reason)
}
