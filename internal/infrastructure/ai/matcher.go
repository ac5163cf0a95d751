package ai

import (
	"context"
	"fmt"

	"mindvault/internal/ports"
)

// Matcher estimates duplicate risk against known prior art.
type Matcher struct {
	client *Client
}

var _ ports.DuplicateMatcher = (*Matcher)(nil)

func NewMatcher(client *Client) *Matcher {
	return &Matcher{client: client}
}

const matcherSystem = "You are a prior-art analyst for an intellectual-property registry. " +
	"You estimate how likely a disclosure duplicates existing work. Respond with JSON only."

func (m *Matcher) Check(ctx context.Context, sub ports.SubmissionBrief) (ports.MatchResult, error) {
	prompt := fmt.Sprintf(`Analyze the following disclosure for potential duplicates.

Submission type: %s
Content fingerprint: %s
Files manifest: %s

Provide:
1. duplicate_risk: a score in [0,1] where 1 is definitely a duplicate
2. similar_submissions: known similar entries, each with id, similarity_score and reason
3. links: URLs of relevant external prior art or patents

Respond in JSON:
{"duplicate_risk": 0.3, "similar_submissions": [], "links": []}`,
		sub.Type, sub.ContentHash, sub.FilesJSON)

	var result ports.MatchResult
	if err := m.client.completeJSON(ctx, matcherSystem, prompt, &result); err != nil {
		return ports.MatchResult{}, err
	}

	if result.DuplicateRisk < 0 {
		result.DuplicateRisk = 0
	}
	if result.DuplicateRisk > 1 {
		result.DuplicateRisk = 1
	}
	return result, nil
}
