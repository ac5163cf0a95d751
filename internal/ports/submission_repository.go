package ports

import (
	"context"
	"errors"
)

var ErrSubmissionNotFound = errors.New("submission not found")

// ErrVersionConflict reports a lost optimistic-concurrency race: the
// submission row changed between read and write. The caller re-reads and
// retries; replaying an advance is safe because it re-dispatches on the
// freshly loaded status.
var ErrVersionConflict = errors.New("submission version conflict")

// ErrWriteOnceViolation reports an attempt to overwrite a field that is
// set at most once (certificate id, chain tx, reward amount).
var ErrWriteOnceViolation = errors.New("write-once field already set")

// Submission is the port-level view of a stored submission. Optional
// review fields are pointers so "not yet computed" is distinct from zero.
type Submission struct {
	ID                 string   `json:"id"`
	OwnerID            string   `json:"owner_id"`
	Type               string   `json:"type"`
	Status             string   `json:"status"`
	Version            int64    `json:"version"`
	QualityScore       *int     `json:"quality_score,omitempty"`
	DuplicateRisk      *float64 `json:"duplicate_risk,omitempty"`
	AIFeedbackJSON     string   `json:"ai_feedback,omitempty"`
	ExpertFeedbackJSON string   `json:"expert_feedback,omitempty"`
	FilesJSON          string   `json:"files"`
	ContentHash        string   `json:"content_hash"`
	CertificateID      *string  `json:"certificate_id,omitempty"`
	ChainTx            *string  `json:"chain_tx,omitempty"`
	RewardAmount       *int64   `json:"reward_amount,omitempty"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

// SubmissionCreate carries intake fields; the repository assigns id,
// version and timestamps.
type SubmissionCreate struct {
	OwnerID     string
	Type        string
	Status      string
	FilesJSON   string
	ContentHash string
}

// SubmissionChanges is a partial update applied under version CAS. Nil
// fields are left untouched. Certificate, chain tx and reward amount are
// write-once: setting one that is already populated fails.
type SubmissionChanges struct {
	Status             *string
	QualityScore       *int
	DuplicateRisk      *float64
	AIFeedbackJSON     *string
	ExpertFeedbackJSON *string
	CertificateID      *string
	ChainTx            *string
	RewardAmount       *int64
}

// RewardTotals aggregates settled payouts for accounting reconciliation.
type RewardTotals struct {
	Count int64 `json:"count"`
	Total int64 `json:"total"`
}

type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, input SubmissionCreate) (Submission, error)
	GetSubmission(ctx context.Context, id string) (Submission, error)
	GetSubmissionByCertificateID(ctx context.Context, certificateID string) (Submission, error)
	// UpdateSubmission applies changes only when the stored version still
	// matches; otherwise it returns ErrVersionConflict and writes nothing.
	UpdateSubmission(ctx context.Context, id string, version int64, changes SubmissionChanges) error
	// RewardTotals sums reward_amount across all paid submissions.
	RewardTotals(ctx context.Context) (RewardTotals, error)
}
