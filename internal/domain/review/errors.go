package review

import "errors"

var (
	// ErrValidation marks malformed input. Rejected immediately, never retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an unknown submission id. Not retried.
	ErrNotFound = errors.New("submission not found")

	// ErrStateConflict marks an action against a status that does not permit
	// it. Rejected without mutation, not retried.
	ErrStateConflict = errors.New("state conflict")

	// ErrTransientDependency marks an AI-service or ledger timeout/5xx.
	// Eligible for the queue's retry and backoff policy.
	ErrTransientDependency = errors.New("transient dependency failure")

	// ErrFatalWorkflow marks a status outside the known enum. The submission
	// is flagged for operator intervention and never auto-retried.
	ErrFatalWorkflow = errors.New("fatal workflow error")
)

// Retryable reports whether the queue should re-run a failed job.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransientDependency)
}
