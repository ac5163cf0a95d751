package review

import (
	"math"
	"testing"
)

func TestConsensusMajorityVote(t *testing.T) {
	cases := []struct {
		name     string
		verdicts []Verdict
		want     Verdict
	}{
		{"two approvals win", []Verdict{VerdictApproved, VerdictApproved, VerdictRejected}, VerdictApproved},
		{"two rejections win", []Verdict{VerdictRejected, VerdictRejected, VerdictNeedsMoreEvidence}, VerdictRejected},
		{"split vote has no majority", []Verdict{VerdictApproved, VerdictRejected, VerdictNeedsMoreEvidence}, VerdictNeedsMoreEvidence},
		{"unanimous evidence request", []Verdict{VerdictNeedsMoreEvidence, VerdictNeedsMoreEvidence, VerdictNeedsMoreEvidence}, VerdictNeedsMoreEvidence},
		{"unanimous approval", []Verdict{VerdictApproved, VerdictApproved, VerdictApproved}, VerdictApproved},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Consensus(tc.verdicts); got != tc.want {
				t.Fatalf("Consensus(%v) = %s, want %s", tc.verdicts, got, tc.want)
			}
		})
	}
}

func TestBlendWeights(t *testing.T) {
	// Examiner 50%, critic 30% inverted, visionary 20%.
	got := Blend(80, 20, 50)
	want := 0.5*80 + 0.3*80 + 0.2*50
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Blend() = %v, want %v", got, want)
	}

	// Out-of-range inputs clamp to the 0-100 scale.
	if got := Blend(150, -10, 200); math.Abs(got-(0.5*100+0.3*100+0.2*100)) > 1e-9 {
		t.Fatalf("Blend() with out-of-range inputs = %v", got)
	}
}

func TestFoldDegradedCritic(t *testing.T) {
	examiner := PersonaReview{Persona: PersonaExaminer, Verdict: VerdictApproved, Score: 90}
	critic := PersonaReview{Persona: PersonaCritic, Verdict: VerdictNeedsMoreEvidence, Failed: true}
	visionary := PersonaReview{Persona: PersonaVisionary, Verdict: VerdictApproved, Score: 70}

	result := Fold(examiner, critic, visionary)
	if result.Verdict != VerdictApproved {
		t.Fatalf("Fold() verdict = %s", result.Verdict)
	}
	if len(result.Reviews) != 3 {
		t.Fatalf("Fold() reviews = %d, degraded persona must keep its seat", len(result.Reviews))
	}

	// A failed critic counts as maximum collision risk, not zero.
	want := 0.5*90 + 0.3*0 + 0.2*70
	if math.Abs(result.BlendedScore-want) > 1e-9 {
		t.Fatalf("Fold() blended = %v, want %v", result.BlendedScore, want)
	}
}
