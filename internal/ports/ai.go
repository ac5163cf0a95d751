package ports

import (
	"context"

	"mindvault/internal/domain/review"
)

// MatchResult is the duplicate matcher's verdict on one submission.
type MatchResult struct {
	DuplicateRisk      float64             `json:"duplicate_risk"`
	SimilarSubmissions []SimilarSubmission `json:"similar_submissions"`
	Links              []string            `json:"links"`
}

type SimilarSubmission struct {
	ID              string  `json:"id"`
	SimilarityScore float64 `json:"similarity_score"`
	Reason          string  `json:"reason"`
}

// ScoreResult carries the patentability sub-scores plus the overall
// quality score feeding the council rule.
type ScoreResult struct {
	QualityScore      int      `json:"quality_score"`
	NoveltyScore      int      `json:"novelty_score"`
	InventiveStep     int      `json:"inventive_step_score"`
	UtilityScore      int      `json:"utility_score"`
	ClarityScore      int      `json:"clarity_score"`
	OverallFeedback   string   `json:"overall_feedback"`
	Recommendations   []string `json:"recommendations"`
}

// SubmissionBrief is the slice of submission data the AI services see.
type SubmissionBrief struct {
	ID          string
	Type        string
	ContentHash string
	FilesJSON   string
}

type DuplicateMatcher interface {
	Check(ctx context.Context, sub SubmissionBrief) (MatchResult, error)
}

type PatentabilityScorer interface {
	Score(ctx context.Context, sub SubmissionBrief) (ScoreResult, error)
}

// CouncilPersona evaluates a submission from one seat's perspective.
// Implementations map timeouts and 5xx responses to
// review.ErrTransientDependency.
type CouncilPersona interface {
	Seat() review.Persona
	Evaluate(ctx context.Context, sub SubmissionBrief) (review.PersonaReview, error)
}
