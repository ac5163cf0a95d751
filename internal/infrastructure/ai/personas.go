package ai

import (
	"context"
	"fmt"

	"mindvault/internal/domain/review"
	"mindvault/internal/ports"
)

// personaProfile fixes one council seat's viewpoint and scoring axis.
type personaProfile struct {
	seat      review.Persona
	system    string
	scoreAxis string
}

var personaProfiles = map[review.Persona]personaProfile{
	review.PersonaExaminer: {
		seat: review.PersonaExaminer,
		system: "You are the Examiner seat of a three-member review council. " +
			"You judge novelty, inventive step and utility. Respond with JSON only.",
		scoreAxis: "overall patentability merit (higher is better)",
	},
	review.PersonaCritic: {
		seat: review.PersonaCritic,
		system: "You are the Critic seat of a three-member review council. " +
			"You hunt for prior art and collision risk. Respond with JSON only.",
		scoreAxis: "collision risk with existing work (higher is riskier)",
	},
	review.PersonaVisionary: {
		seat: review.PersonaVisionary,
		system: "You are the Visionary seat of a three-member review council. " +
			"You judge commercial potential and impact. Respond with JSON only.",
		scoreAxis: "commercial potential (higher is better)",
	},
}

// Persona is one AI council seat backed by the shared model client.
type Persona struct {
	client  *Client
	profile personaProfile
}

var _ ports.CouncilPersona = (*Persona)(nil)

func NewPersona(client *Client, seat review.Persona) *Persona {
	return &Persona{client: client, profile: personaProfiles[seat]}
}

func (p *Persona) Seat() review.Persona { return p.profile.seat }

func (p *Persona) Evaluate(ctx context.Context, sub ports.SubmissionBrief) (review.PersonaReview, error) {
	prompt := fmt.Sprintf(`Evaluate the following %s disclosure from your seat's perspective.

Content fingerprint: %s
Files manifest: %s

Provide:
1. verdict: APPROVED, REJECTED or NEEDS_MORE_EVIDENCE
2. score: 0-100 measuring %s
3. notes: short reasons

Respond in JSON:
{"verdict": "APPROVED", "score": 80, "notes": []}`,
		sub.Type, sub.ContentHash, sub.FilesJSON, p.profile.scoreAxis)

	var raw struct {
		Verdict string   `json:"verdict"`
		Score   float64  `json:"score"`
		Notes   []string `json:"notes"`
	}
	if err := p.client.completeJSON(ctx, p.profile.system, prompt, &raw); err != nil {
		return review.PersonaReview{}, err
	}

	verdict := review.Verdict(raw.Verdict)
	switch verdict {
	case review.VerdictApproved, review.VerdictRejected, review.VerdictNeedsMoreEvidence:
	default:
		verdict = review.VerdictNeedsMoreEvidence
	}

	return review.PersonaReview{
		Persona: p.profile.seat,
		Verdict: verdict,
		Score:   raw.Score,
		Notes:   raw.Notes,
	}, nil
}
