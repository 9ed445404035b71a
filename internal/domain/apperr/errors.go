// Package apperr defines the error taxonomy surfaced by the lifecycle
// services. Callers classify failures with errors.Is against these
// sentinels; wrapped messages carry entity ids and detail.
package apperr

import "errors"

var (
	// ErrNotFound means the referenced entity id does not exist.
	// Never retried internally.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput means the caller supplied an argument no state
	// could make acceptable: a missing id, an unsupported enum value,
	// an out-of-range number.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidState means the operation is not legal from the
	// entity's current state, including attempts to mutate terminal
	// entities. Callers must re-fetch before retrying.
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrValidationFailed means an import batch contains row errors.
	// Returned alongside the full report so the caller can correct
	// and re-upload.
	ErrValidationFailed = errors.New("batch validation failed")

	// ErrChecklistIncomplete means required closure checklist items
	// remain unconfirmed.
	ErrChecklistIncomplete = errors.New("closure checklist incomplete")

	// ErrMissingSignature means case finalization was attempted
	// without a signature.
	ErrMissingSignature = errors.New("signature required")

	// ErrConcurrentModification means a write lost a version race.
	// The only kind a caller should retry, after a fresh read.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrRegressingProgress means a progress save carried a lower
	// percentage than the stored one.
	ErrRegressingProgress = errors.New("progress percent may not decrease")

	// ErrDuplicateActiveScreening means the child already has an open
	// screening of the requested type.
	ErrDuplicateActiveScreening = errors.New("active screening of this type already exists")
)
