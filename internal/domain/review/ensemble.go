package review

// Persona identifies one member of the three-seat AI council.
type Persona string

const (
	PersonaExaminer  Persona = "examiner"
	PersonaCritic    Persona = "critic"
	PersonaVisionary Persona = "visionary"
)

// Verdict is a single persona's recommendation.
type Verdict string

const (
	VerdictApproved          Verdict = "APPROVED"
	VerdictRejected          Verdict = "REJECTED"
	VerdictNeedsMoreEvidence Verdict = "NEEDS_MORE_EVIDENCE"
)

// PersonaReview is one persona's raw output. Score is scaled 0-100; for the
// critic it is a collision-risk score and is inverted before blending.
type PersonaReview struct {
	Persona Persona  `json:"persona"`
	Verdict Verdict  `json:"verdict"`
	Score   float64  `json:"score"`
	Notes   []string `json:"notes,omitempty"`
	Failed  bool     `json:"failed,omitempty"`
}

// EnsembleResult folds the three persona outputs into one recommendation.
type EnsembleResult struct {
	Verdict      Verdict         `json:"verdict"`
	BlendedScore float64         `json:"blended_score"`
	Reviews      []PersonaReview `json:"reviews"`
}

// Consensus applies majority vote over the three verdicts. Without a clear
// majority the ensemble asks for more evidence.
func Consensus(verdicts []Verdict) Verdict {
	var approved, rejected int
	for _, v := range verdicts {
		switch v {
		case VerdictApproved:
			approved++
		case VerdictRejected:
			rejected++
		}
	}

	switch {
	case approved >= 2:
		return VerdictApproved
	case rejected >= 2:
		return VerdictRejected
	default:
		return VerdictNeedsMoreEvidence
	}
}

// Blend computes the weighted ensemble score: examiner 50%, critic 30% with
// the collision risk inverted, visionary 20%. All inputs are 0-100.
func Blend(examiner, criticRisk, visionary float64) float64 {
	return 0.5*clampScore(examiner) + 0.3*(100-clampScore(criticRisk)) + 0.2*clampScore(visionary)
}

// Fold combines three persona reviews into the persisted ensemble result.
// A failed persona already carries VerdictNeedsMoreEvidence and a zero
// score; it still occupies its seat in the vote.
func Fold(examiner, critic, visionary PersonaReview) EnsembleResult {
	criticRisk := critic.Score
	if critic.Failed {
		// A silent critic must not read as "no collision risk found".
		criticRisk = 100
	}

	return EnsembleResult{
		Verdict:      Consensus([]Verdict{examiner.Verdict, critic.Verdict, visionary.Verdict}),
		BlendedScore: Blend(examiner.Score, criticRisk, visionary.Score),
		Reviews:      []PersonaReview{examiner, critic, visionary},
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
