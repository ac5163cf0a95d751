package ai

import (
	"context"
	"fmt"

	"mindvault/internal/ports"
)

// Scorer grades patentability of one disclosure across four criteria.
type Scorer struct {
	client *Client
}

var _ ports.PatentabilityScorer = (*Scorer)(nil)

func NewScorer(client *Client) *Scorer {
	return &Scorer{client: client}
}

const scorerSystem = "You are a patent examiner grading disclosures for an intellectual-property " +
	"registry. Score strictly and explain your reasoning. Respond with JSON only."

func (s *Scorer) Score(ctx context.Context, sub ports.SubmissionBrief) (ports.ScoreResult, error) {
	prompt := fmt.Sprintf(`Evaluate the patentability of the following %s.

Content fingerprint: %s
Files manifest: %s

Score each criterion from 0 to 100:
1. novelty_score: is this new and not previously disclosed?
2. inventive_step_score: does it go beyond the obvious?
3. utility_score: does it have practical or industrial applicability?
4. clarity_score: is the description clear and enabling?

Also provide quality_score (overall, 0-100), overall_feedback, and recommendations.

Respond in JSON:
{"novelty_score": 85, "inventive_step_score": 70, "utility_score": 90, "clarity_score": 75, "quality_score": 80, "overall_feedback": "...", "recommendations": []}`,
		sub.Type, sub.ContentHash, sub.FilesJSON)

	var result ports.ScoreResult
	if err := s.client.completeJSON(ctx, scorerSystem, prompt, &result); err != nil {
		return ports.ScoreResult{}, err
	}

	if result.QualityScore < 0 {
		result.QualityScore = 0
	}
	if result.QualityScore > 100 {
		result.QualityScore = 100
	}
	return result, nil
}
