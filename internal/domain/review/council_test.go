package review

import "testing"

func TestDeliberate(t *testing.T) {
	cases := []struct {
		name    string
		subType Type
		quality int
		risk    float64
		want    Gate
	}{
		{"high duplicate risk rejects", TypeIdea, 90, 0.8, GateReject},
		{"risk at 0.75 is moderate, not reject", TypeIdea, 90, 0.75, GateNeedsExpert},
		{"low quality rejects", TypeIdea, 59, 0.1, GateReject},
		{"moderate risk needs expert", TypeDiscovery, 85, 0.5, GateNeedsExpert},
		{"moderate risk floor", TypeDiscovery, 85, 0.4, GateNeedsExpert},
		{"mid quality invention needs expert", TypeInvention, 60, 0.1, GateNeedsExpert},
		{"mid quality invention ceiling", TypeInvention, 79, 0.1, GateNeedsExpert},
		{"high quality low risk approves", TypeIdea, 80, 0.39, GateApprove},
		{"strong idea approves", TypeIdea, 85, 0.1, GateApprove},
		{"strong invention approves at rule level", TypeInvention, 90, 0.1, GateApprove},
		{"mid quality discovery is an edge case", TypeDiscovery, 70, 0.1, GateNeedsExpert},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Deliberate(tc.subType, tc.quality, tc.risk)
			if got.Gate != tc.want {
				t.Fatalf("Deliberate(%s, %d, %.2f) = %s, want %s", tc.subType, tc.quality, tc.risk, got.Gate, tc.want)
			}
			if got.Confidence <= 0 || got.Confidence > 1 {
				t.Fatalf("confidence out of range: %v", got.Confidence)
			}
			if len(got.Reasons) == 0 {
				t.Fatalf("decision carries no reasons")
			}
		})
	}
}

func TestRouteAfterCouncil(t *testing.T) {
	if got := RouteAfterCouncil(TypeIdea, GateApprove); got != StatusFinalizedApproved {
		t.Fatalf("idea approve routed to %s", got)
	}
	// Inventions always pass through a human check before reward eligibility.
	if got := RouteAfterCouncil(TypeInvention, GateApprove); got != StatusPendingExpertReview {
		t.Fatalf("invention approve routed to %s", got)
	}
	if got := RouteAfterCouncil(TypeInvention, GateReject); got != StatusFinalizedRejected {
		t.Fatalf("reject routed to %s", got)
	}
	if got := RouteAfterCouncil(TypeDiscovery, GateNeedsExpert); got != StatusPendingExpertReview {
		t.Fatalf("needs-expert routed to %s", got)
	}
}
