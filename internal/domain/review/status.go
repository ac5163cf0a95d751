package review

import "fmt"

// Status is the submission's position in the review pipeline.
type Status string

const (
	StatusUploaded             Status = "UPLOADED"
	StatusAIDuplicateCheck     Status = "AI_DUPLICATE_CHECK"
	StatusAIPatentabilityRev   Status = "AI_PATENTABILITY_REVIEW"
	StatusAICouncilDeliberate  Status = "AI_COUNCIL_DELIBERATION"
	StatusPendingExpertReview  Status = "PENDING_EXPERT_REVIEW"
	StatusExpertApproved       Status = "EXPERT_APPROVED"
	StatusExpertRejected       Status = "EXPERT_REJECTED"
	StatusFinalizedApproved    Status = "FINALIZED_APPROVED"
	StatusFinalizedRejected    Status = "FINALIZED_REJECTED"
	StatusRewarded             Status = "REWARDED"
)

// transitions is the directed edge set of the pipeline. A submission may
// only ever move along these edges; no stage is skipped.
var transitions = map[Status][]Status{
	StatusUploaded:            {StatusAIDuplicateCheck},
	StatusAIDuplicateCheck:    {StatusAIPatentabilityRev},
	StatusAIPatentabilityRev:  {StatusAICouncilDeliberate},
	StatusAICouncilDeliberate: {StatusPendingExpertReview, StatusFinalizedApproved, StatusFinalizedRejected},
	StatusPendingExpertReview: {StatusExpertApproved, StatusExpertRejected},
	StatusExpertApproved:      {StatusFinalizedApproved},
	StatusExpertRejected:      {StatusFinalizedRejected},
	StatusFinalizedApproved:   {StatusRewarded},
	StatusFinalizedRejected:   {},
	StatusRewarded:            {},
}

// ParseStatus validates a raw status value against the known enum.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := transitions[s]; !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrFatalWorkflow, raw)
	}
	return s, nil
}

// CanTransition reports whether from -> to is an edge of the pipeline graph.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further automatic transition exists.
func (s Status) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

func (s Status) String() string { return string(s) }
