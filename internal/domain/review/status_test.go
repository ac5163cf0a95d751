package review

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("AI_COUNCIL_DELIBERATION")
	if err != nil {
		t.Fatalf("ParseStatus() error = %v", err)
	}
	if s != StatusAICouncilDeliberate {
		t.Fatalf("ParseStatus() = %q", s)
	}

	_, err = ParseStatus("HALF_APPROVED")
	if !errors.Is(err, ErrFatalWorkflow) {
		t.Fatalf("ParseStatus() error = %v, want ErrFatalWorkflow", err)
	}
}

func TestCanTransitionFollowsGraph(t *testing.T) {
	allowed := [][2]Status{
		{StatusUploaded, StatusAIDuplicateCheck},
		{StatusAIDuplicateCheck, StatusAIPatentabilityRev},
		{StatusAIPatentabilityRev, StatusAICouncilDeliberate},
		{StatusAICouncilDeliberate, StatusPendingExpertReview},
		{StatusAICouncilDeliberate, StatusFinalizedApproved},
		{StatusAICouncilDeliberate, StatusFinalizedRejected},
		{StatusPendingExpertReview, StatusExpertApproved},
		{StatusPendingExpertReview, StatusExpertRejected},
		{StatusExpertApproved, StatusFinalizedApproved},
		{StatusExpertRejected, StatusFinalizedRejected},
		{StatusFinalizedApproved, StatusRewarded},
	}
	for _, edge := range allowed {
		if !CanTransition(edge[0], edge[1]) {
			t.Fatalf("CanTransition(%s, %s) = false", edge[0], edge[1])
		}
	}

	denied := [][2]Status{
		{StatusUploaded, StatusRewarded},
		{StatusUploaded, StatusAICouncilDeliberate},
		{StatusAIDuplicateCheck, StatusAICouncilDeliberate},
		{StatusFinalizedRejected, StatusRewarded},
		{StatusRewarded, StatusUploaded},
		{StatusPendingExpertReview, StatusFinalizedApproved},
		{StatusExpertApproved, StatusFinalizedRejected},
	}
	for _, edge := range denied {
		if CanTransition(edge[0], edge[1]) {
			t.Fatalf("CanTransition(%s, %s) = true", edge[0], edge[1])
		}
	}
}

func TestRewardedOnlyReachableFromFinalizedApproved(t *testing.T) {
	for from := range transitions {
		if from == StatusFinalizedApproved {
			continue
		}
		if CanTransition(from, StatusRewarded) {
			t.Fatalf("REWARDED reachable from %s", from)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	if !StatusRewarded.Terminal() {
		t.Fatalf("REWARDED should be terminal")
	}
	if !StatusFinalizedRejected.Terminal() {
		t.Fatalf("FINALIZED_REJECTED should be terminal")
	}
	if StatusFinalizedApproved.Terminal() {
		t.Fatalf("FINALIZED_APPROVED should not be terminal")
	}
}
