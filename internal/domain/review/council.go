package review

import "fmt"

// Gate is the council-stage routing decision driving the state machine.
type Gate string

const (
	GateApprove     Gate = "APPROVE"
	GateReject      Gate = "REJECT"
	GateNeedsExpert Gate = "NEEDS_EXPERT"
)

// Decision is the council-stage outcome evaluated against the persisted
// quality score and duplicate risk.
type Decision struct {
	Gate       Gate
	Confidence float64
	Reasons    []string
}

// Deliberate is the single authoritative council rule table. The rules are
// ordered; the first match wins.
func Deliberate(subType Type, qualityScore int, duplicateRisk float64) Decision {
	switch {
	case duplicateRisk > 0.75:
		return Decision{
			Gate:       GateReject,
			Confidence: 0.9,
			Reasons:    []string{fmt.Sprintf("high duplicate risk: %.2f", duplicateRisk)},
		}
	case qualityScore < 60:
		return Decision{
			Gate:       GateReject,
			Confidence: 0.8,
			Reasons:    []string{fmt.Sprintf("low quality score: %d", qualityScore)},
		}
	case duplicateRisk >= 0.4:
		// Risk in [0.4, 0.75]: the definite-duplicate rule above already
		// consumed everything past 0.75.
		return Decision{
			Gate:       GateNeedsExpert,
			Confidence: 0.7,
			Reasons:    []string{fmt.Sprintf("moderate duplicate risk: %.2f", duplicateRisk)},
		}
	case qualityScore <= 79 && subType == TypeInvention:
		return Decision{
			Gate:       GateNeedsExpert,
			Confidence: 0.6,
			Reasons:    []string{fmt.Sprintf("moderate quality score for invention: %d", qualityScore)},
		}
	case qualityScore >= 80 && duplicateRisk < 0.4:
		return Decision{
			Gate:       GateApprove,
			Confidence: 0.9,
			Reasons:    []string{fmt.Sprintf("high quality score %d with low duplicate risk %.2f", qualityScore, duplicateRisk)},
		}
	default:
		return Decision{
			Gate:       GateNeedsExpert,
			Confidence: 0.5,
			Reasons:    []string{"edge case requiring expert review"},
		}
	}
}

// RouteAfterCouncil applies the asymmetric finalization policy: approvals of
// inventions always pass through a human expert before reward eligibility.
func RouteAfterCouncil(subType Type, gate Gate) Status {
	switch gate {
	case GateApprove:
		if subType == TypeInvention {
			return StatusPendingExpertReview
		}
		return StatusFinalizedApproved
	case GateReject:
		return StatusFinalizedRejected
	default:
		return StatusPendingExpertReview
	}
}
