package review

import "fmt"

// Type classifies the disclosed intellectual property.
type Type string

const (
	TypeInvention Type = "invention"
	TypeDiscovery Type = "discovery"
	TypeIdea      Type = "idea"
)

func ParseType(raw string) (Type, error) {
	switch Type(raw) {
	case TypeInvention, TypeDiscovery, TypeIdea:
		return Type(raw), nil
	default:
		return "", fmt.Errorf("%w: unknown submission type %q", ErrValidation, raw)
	}
}

// Pipeline stage queue names. Each stage is backed by its own named queue.
const (
	StageDuplicateCheck  = "ai_duplicate_check"
	StagePatentability   = "ai_patentability_review"
	StageCouncil         = "ai_council"
	StageExpertDispatch  = "expert_dispatch"
	StageCertify         = "certify"
	StageReward          = "reward"
)

// Stages lists every stage queue in pipeline order.
func Stages() []string {
	return []string{
		StageDuplicateCheck,
		StagePatentability,
		StageCouncil,
		StageExpertDispatch,
		StageCertify,
		StageReward,
	}
}

// Audit action tags. The audit log is append-only and doubles as the
// idempotency oracle for certificate and reward issuance.
const (
	ActionSubmissionCreated     = "SUBMISSION_CREATED"
	ActionAdvanceAttempt        = "ADVANCE_ATTEMPT"
	ActionAdvanceError          = "ADVANCE_ERROR"
	ActionStatusChange          = "STATUS_CHANGE"
	ActionDuplicateCheck        = "AI_DUPLICATE_CHECK"
	ActionPatentabilityScore    = "AI_PATENTABILITY_SCORE"
	ActionCouncilDecision       = "COUNCIL_DECISION"
	ActionExpertDispatched      = "EXPERT_DISPATCHED"
	ActionExpertDecision        = "EXPERT_DECISION"
	ActionFinalizeApprove       = "FINALIZE_APPROVE"
	ActionFinalizeReject        = "FINALIZE_REJECT"
	ActionCertificateGenerated  = "CERTIFICATE_GENERATED"
	ActionNotarizationDeferred  = "NOTARIZATION_DEFERRED"
	ActionNotarizationCompleted = "NOTARIZATION_COMPLETED"
	ActionRewardDistributed     = "REWARD_DISTRIBUTED"
	ActionRewardError           = "REWARD_ERROR"
	ActionJobExhausted          = "JOB_EXHAUSTED"
	ActionAdminOverride         = "ADMIN_STATUS_OVERRIDE"
)

// Audit actors.
const (
	ActorSystem        = "system"
	ActorMatcher       = "ai_matcher"
	ActorScorer        = "ai_scorer"
	ActorCouncil       = "ai_council"
	ActorCertification = "certification_service"
	ActorRewards       = "rewards_service"
	ActorAdmin         = "admin"
)

func ActorUser(id string) string   { return "user:" + id }
func ActorExpert(id string) string { return "expert:" + id }
