package ports

import "context"

// AuditEntry is one immutable record of an action taken against a
// submission. Entries are append-only; nothing updates or deletes them.
type AuditEntry struct {
	ID           string `json:"id"`
	SubmissionID string `json:"submission_id"`
	Action       string `json:"action"`
	PayloadJSON  string `json:"payload"`
	Actor        string `json:"actor"`
	CreatedAt    string `json:"created_at"`
}

type AuditEntryCreate struct {
	SubmissionID string
	Action       string
	PayloadJSON  string
	Actor        string
}

// AuditLog is the forensic trail and the idempotency oracle: issuers check
// HasAction before minting a certificate or distributing a reward.
type AuditLog interface {
	Append(ctx context.Context, input AuditEntryCreate) (AuditEntry, error)
	ListBySubmission(ctx context.Context, submissionID string) ([]AuditEntry, error)
	HasAction(ctx context.Context, submissionID string, action string) (bool, error)
	// ListByAction returns newest-first entries for one action tag,
	// optionally restricted to submissions of one owner.
	ListByAction(ctx context.Context, action string, ownerID string, limit int) ([]AuditEntry, error)
}
