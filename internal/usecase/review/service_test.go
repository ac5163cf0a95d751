package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	domain "mindvault/internal/domain/review"
	"mindvault/internal/ports"
)

type fakeRepo struct {
	mu   sync.Mutex
	subs map[string]ports.Submission
	next int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{subs: map[string]ports.Submission{}}
}

func (r *fakeRepo) CreateSubmission(_ context.Context, input ports.SubmissionCreate) (ports.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	now := time.Now().UTC().Format(time.RFC3339Nano)
	sub := ports.Submission{
		ID:          fmt.Sprintf("sub-%04d", r.next),
		OwnerID:     input.OwnerID,
		Type:        input.Type,
		Status:      input.Status,
		Version:     1,
		FilesJSON:   input.FilesJSON,
		ContentHash: input.ContentHash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.subs[sub.ID] = sub
	return sub, nil
}

func (r *fakeRepo) GetSubmission(_ context.Context, id string) (ports.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return ports.Submission{}, ports.ErrSubmissionNotFound
	}
	return sub, nil
}

func (r *fakeRepo) GetSubmissionByCertificateID(_ context.Context, certificateID string) (ports.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		if sub.CertificateID != nil && *sub.CertificateID == certificateID {
			return sub, nil
		}
	}
	return ports.Submission{}, ports.ErrSubmissionNotFound
}

func (r *fakeRepo) RewardTotals(context.Context) (ports.RewardTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var totals ports.RewardTotals
	for _, sub := range r.subs {
		if sub.RewardAmount != nil {
			totals.Count++
			totals.Total += *sub.RewardAmount
		}
	}
	return totals, nil
}

func (r *fakeRepo) UpdateSubmission(_ context.Context, id string, version int64, changes ports.SubmissionChanges) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return ports.ErrSubmissionNotFound
	}
	if sub.Version != version {
		return ports.ErrVersionConflict
	}
	if changes.CertificateID != nil && sub.CertificateID != nil {
		return ports.ErrWriteOnceViolation
	}
	if changes.ChainTx != nil && sub.ChainTx != nil {
		return ports.ErrWriteOnceViolation
	}
	if changes.RewardAmount != nil && sub.RewardAmount != nil {
		return ports.ErrWriteOnceViolation
	}

	if changes.Status != nil {
		sub.Status = *changes.Status
	}
	if changes.QualityScore != nil {
		sub.QualityScore = changes.QualityScore
	}
	if changes.DuplicateRisk != nil {
		sub.DuplicateRisk = changes.DuplicateRisk
	}
	if changes.AIFeedbackJSON != nil {
		sub.AIFeedbackJSON = *changes.AIFeedbackJSON
	}
	if changes.ExpertFeedbackJSON != nil {
		sub.ExpertFeedbackJSON = *changes.ExpertFeedbackJSON
	}
	if changes.CertificateID != nil {
		sub.CertificateID = changes.CertificateID
	}
	if changes.ChainTx != nil {
		sub.ChainTx = changes.ChainTx
	}
	if changes.RewardAmount != nil {
		sub.RewardAmount = changes.RewardAmount
	}
	sub.Version++
	sub.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	r.subs[id] = sub
	return nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []ports.AuditEntry
}

func (a *fakeAudit) Append(_ context.Context, input ports.AuditEntryCreate) (ports.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry := ports.AuditEntry{
		ID:           fmt.Sprintf("audit-%04d", len(a.entries)+1),
		SubmissionID: input.SubmissionID,
		Action:       input.Action,
		PayloadJSON:  input.PayloadJSON,
		Actor:        input.Actor,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}
	a.entries = append(a.entries, entry)
	return entry, nil
}

func (a *fakeAudit) ListBySubmission(_ context.Context, submissionID string) ([]ports.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []ports.AuditEntry
	for _, e := range a.entries {
		if e.SubmissionID == submissionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (a *fakeAudit) HasAction(_ context.Context, submissionID string, action string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.entries {
		if e.SubmissionID == submissionID && e.Action == action {
			return true, nil
		}
	}
	return false, nil
}

func (a *fakeAudit) ListByAction(_ context.Context, action string, _ string, limit int) ([]ports.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []ports.AuditEntry
	for i := len(a.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if a.entries[i].Action == action {
			out = append(out, a.entries[i])
		}
	}
	return out, nil
}

func (a *fakeAudit) count(submissionID string, action string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.entries {
		if e.SubmissionID == submissionID && e.Action == action {
			n++
		}
	}
	return n
}

type passthroughUow struct{}

func (passthroughUow) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// syncQueue executes stage handlers inline so a whole pipeline run is a
// plain call chain in tests.
type syncQueue struct {
	mu       sync.Mutex
	handlers map[string]ports.Handler
	enqueued []string
	inline   bool
}

func newSyncQueue(inline bool) *syncQueue {
	return &syncQueue{handlers: map[string]ports.Handler{}, inline: inline}
}

func (q *syncQueue) Enqueue(ctx context.Context, stage string, submissionID string, payloadJSON string, _ ports.EnqueueOptions) error {
	q.mu.Lock()
	q.enqueued = append(q.enqueued, stage)
	handler := q.handlers[stage]
	q.mu.Unlock()

	if q.inline && handler != nil {
		return handler(ctx, ports.Job{ID: stage + "/" + submissionID, Stage: stage, SubmissionID: submissionID, PayloadJSON: payloadJSON, Attempt: 1})
	}
	return nil
}

func (q *syncQueue) Consume(stage string, _ int, handler ports.Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[stage] = handler
	return nil
}

func (q *syncQueue) Stats(string) (ports.StageStats, error) { return ports.StageStats{}, nil }
func (q *syncQueue) Pause(string) error                     { return nil }
func (q *syncQueue) Resume(string) error                    { return nil }
func (q *syncQueue) Drain(context.Context) error            { return nil }

func (q *syncQueue) stages() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.enqueued...)
}

type fakeMatcher struct {
	risk  float64
	calls int
	err   error
}

func (m *fakeMatcher) Check(context.Context, ports.SubmissionBrief) (ports.MatchResult, error) {
	m.calls++
	if m.err != nil {
		return ports.MatchResult{}, m.err
	}
	return ports.MatchResult{DuplicateRisk: m.risk}, nil
}

type fakeScorer struct {
	score int
}

func (s *fakeScorer) Score(context.Context, ports.SubmissionBrief) (ports.ScoreResult, error) {
	return ports.ScoreResult{QualityScore: s.score, OverallFeedback: "ok"}, nil
}

type fakePersona struct {
	seat    domain.Persona
	verdict domain.Verdict
	score   float64
	err     error
}

func (p *fakePersona) Seat() domain.Persona { return p.seat }

func (p *fakePersona) Evaluate(context.Context, ports.SubmissionBrief) (domain.PersonaReview, error) {
	if p.err != nil {
		return domain.PersonaReview{}, p.err
	}
	return domain.PersonaReview{Persona: p.seat, Verdict: p.verdict, Score: p.score}, nil
}

type fakeLedger struct {
	mu          sync.Mutex
	balance     int64
	transfers   []int64
	notarized   int
	notarizeErr error
}

func (l *fakeLedger) Notarize(_ context.Context, _ string, _ string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.notarizeErr != nil {
		return "", l.notarizeErr
	}
	l.notarized++
	return fmt.Sprintf("0xnotarize%04d", l.notarized), nil
}

func (l *fakeLedger) Transfer(_ context.Context, _ string, amount int64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balance < amount {
		return "", fmt.Errorf("%w: insufficient funds", domain.ErrTransientDependency)
	}
	l.balance -= amount
	l.transfers = append(l.transfers, amount)
	return fmt.Sprintf("0xtransfer%04d", len(l.transfers)), nil
}

func (l *fakeLedger) TreasuryBalance(context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance, nil
}

type memCache struct {
	mu sync.Mutex
	kv map[string]string
}

func newMemCache() *memCache { return &memCache{kv: map[string]string{}} }

func (c *memCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.kv[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kv[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.kv, key)
	return nil
}

type fixture struct {
	svc    *Service
	repo   *fakeRepo
	audit  *fakeAudit
	queue  *syncQueue
	ledger *fakeLedger
}

func newFixture(t *testing.T, matcher *fakeMatcher, scorer *fakeScorer, personas []ports.CouncilPersona) fixture {
	t.Helper()

	repo := newFakeRepo()
	audit := &fakeAudit{}
	queue := newSyncQueue(true)
	ledger := &fakeLedger{balance: 1_000_0000_0000}

	svc := NewService(Options{
		Repo:       repo,
		Audit:      audit,
		UnitOfWork: passthroughUow{},
		Queue:      queue,
		Matcher:    matcher,
		Scorer:     scorer,
		Personas:   personas,
		Ledger:     ledger,
		Cache:      newMemCache(),
		Policy:     domain.RewardPolicy{BaseAmount: 100, MinAmount: 50, MaxAmount: 200, Decimals: 8},
	})
	if err := svc.RegisterWorkers(); err != nil {
		t.Fatalf("RegisterWorkers: %v", err)
	}
	return fixture{svc: svc, repo: repo, audit: audit, queue: queue, ledger: ledger}
}

func approvePersonas() []ports.CouncilPersona {
	return []ports.CouncilPersona{
		&fakePersona{seat: domain.PersonaExaminer, verdict: domain.VerdictApproved, score: 90},
		&fakePersona{seat: domain.PersonaCritic, verdict: domain.VerdictApproved, score: 10},
		&fakePersona{seat: domain.PersonaVisionary, verdict: domain.VerdictApproved, score: 85},
	}
}

func submitFiles() []FileInput {
	return []FileInput{{Name: "claims.pdf", Hash: "abc123", Size: 1024}}
}

func TestPipelineAutoApproveToRewarded(t *testing.T) {
	f := newFixture(t, &fakeMatcher{risk: 0.1}, &fakeScorer{score: 92}, approvePersonas())
	ctx := context.Background()

	sub, err := f.svc.CreateSubmission(ctx, CreateSubmissionInput{
		OwnerID: "owner-1",
		Type:    "discovery",
		Files:   submitFiles(),
	})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	got, err := f.repo.GetSubmission(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if got.Status != string(domain.StatusRewarded) {
		t.Fatalf("status = %s, want %s", got.Status, domain.StatusRewarded)
	}
	if got.CertificateID == nil || *got.CertificateID == "" {
		t.Fatalf("certificate id not set")
	}
	if !strings.HasPrefix(*got.CertificateID, "MVI-") {
		t.Fatalf("certificate id %q lacks MVI prefix", *got.CertificateID)
	}
	if got.RewardAmount == nil {
		t.Fatalf("reward amount not set")
	}

	att, err := f.svc.GetCertificate(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetCertificate: %v", err)
	}
	if att.Issuer != "MindVaultIP" {
		t.Fatalf("attestation issuer = %q, want MindVaultIP", att.Issuer)
	}
	if att.Algorithm != "SHA256" {
		t.Fatalf("attestation algorithm = %q, want SHA256", att.Algorithm)
	}
	if att.AISignature == "" {
		t.Fatalf("attestation missing ai signature")
	}

	// base 100 * 92/100 = 92 tokens, scaled by 10^8.
	if *got.RewardAmount != 92_0000_0000 {
		t.Fatalf("reward amount = %d, want %d", *got.RewardAmount, int64(92_0000_0000))
	}

	for _, action := range []string{
		domain.ActionSubmissionCreated,
		domain.ActionDuplicateCheck,
		domain.ActionPatentabilityScore,
		domain.ActionCouncilDecision,
		domain.ActionFinalizeApprove,
		domain.ActionCertificateGenerated,
		domain.ActionRewardDistributed,
	} {
		if n := f.audit.count(sub.ID, action); n != 1 {
			t.Fatalf("audit action %s appears %d times, want 1", action, n)
		}
	}
}

func TestPipelineInventionApprovalNeedsExpert(t *testing.T) {
	f := newFixture(t, &fakeMatcher{risk: 0.1}, &fakeScorer{score: 92}, approvePersonas())
	ctx := context.Background()

	sub, err := f.svc.CreateSubmission(ctx, CreateSubmissionInput{
		OwnerID: "owner-1",
		Type:    "invention",
		Files:   submitFiles(),
	})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	got, _ := f.repo.GetSubmission(ctx, sub.ID)
	if got.Status != string(domain.StatusPendingExpertReview) {
		t.Fatalf("status = %s, want %s", got.Status, domain.StatusPendingExpertReview)
	}
	if n := f.audit.count(sub.ID, domain.ActionExpertDispatched); n != 1 {
		t.Fatalf("EXPERT_DISPATCHED appears %d times, want 1", n)
	}

	err = f.svc.ProcessExpertDecision(ctx, ExpertDecisionInput{
		SubmissionID: sub.ID,
		ExpertID:     "exp-9",
		Approved:     true,
		Feedback:     "solid claims",
	})
	if err != nil {
		t.Fatalf("ProcessExpertDecision: %v", err)
	}

	got, _ = f.repo.GetSubmission(ctx, sub.ID)
	if got.Status != string(domain.StatusRewarded) {
		t.Fatalf("status after expert approval = %s, want %s", got.Status, domain.StatusRewarded)
	}
	if got.ExpertFeedbackJSON == "" {
		t.Fatalf("expert feedback not persisted")
	}
}

func TestPipelineHighRiskRejected(t *testing.T) {
	f := newFixture(t, &fakeMatcher{risk: 0.9}, &fakeScorer{score: 92}, approvePersonas())
	ctx := context.Background()

	sub, err := f.svc.CreateSubmission(ctx, CreateSubmissionInput{
		OwnerID: "owner-1",
		Type:    "discovery",
		Files:   submitFiles(),
	})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	got, _ := f.repo.GetSubmission(ctx, sub.ID)
	if got.Status != string(domain.StatusFinalizedRejected) {
		t.Fatalf("status = %s, want %s", got.Status, domain.StatusFinalizedRejected)
	}
	if n := f.audit.count(sub.ID, domain.ActionFinalizeReject); n != 1 {
		t.Fatalf("FINALIZE_REJECT appears %d times, want 1", n)
	}
	if got.RewardAmount != nil {
		t.Fatalf("rejected submission must not be rewarded")
	}
}

func TestRewardOnRejectedSubmissionConflicts(t *testing.T) {
	f := newFixture(t, &fakeMatcher{risk: 0.9}, &fakeScorer{score: 92}, approvePersonas())
	ctx := context.Background()

	sub, err := f.svc.CreateSubmission(ctx, CreateSubmissionInput{
		OwnerID: "owner-1",
		Type:    "discovery",
		Files:   submitFiles(),
	})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	got, _ := f.repo.GetSubmission(ctx, sub.ID)
	if got.Status != string(domain.StatusFinalizedRejected) {
		t.Fatalf("status = %s, want %s", got.Status, domain.StatusFinalizedRejected)
	}

	if err := f.svc.DistributeReward(ctx, sub.ID); !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}

	after, _ := f.repo.GetSubmission(ctx, sub.ID)
	if after.Status != got.Status || after.Version != got.Version {
		t.Fatalf("rejected submission mutated: %+v", after)
	}
	if after.RewardAmount != nil {
		t.Fatalf("rejected submission must not carry a reward amount")
	}
	if n := f.audit.count(sub.ID, domain.ActionRewardDistributed); n != 0 {
		t.Fatalf("REWARD_DISTRIBUTED appears %d times, want 0", n)
	}
	if len(f.ledger.transfers) != 0 {
		t.Fatalf("ledger transfers = %d, want 0", len(f.ledger.transfers))
	}
}

func TestExpertDecisionWrongStatusConflicts(t *testing.T) {
	f := newFixture(t, &fakeMatcher{risk: 0.1}, &fakeScorer{score: 92}, approvePersonas())
	ctx := context.Background()

	sub, err := f.svc.CreateSubmission(ctx, CreateSubmissionInput{
		OwnerID: "owner-1",
		Type:    "discovery",
		Files:   submitFiles(),
	})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	err = f.svc.ProcessExpertDecision(ctx, ExpertDecisionInput{
		SubmissionID: sub.ID,
		ExpertID:     "exp-9",
		Approved:     true,
	})
	if !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestAdvanceWithoutResultConflicts(t *testing.T) {
	f := newFixture(t, &fakeMatcher{risk: 0.1}, &fakeScorer{score: 92}, approvePersonas())
	ctx := context.Background()

	sub, err := f.repo.CreateSubmission(ctx, ports.SubmissionCreate{
		OwnerID: "owner-1",
		Type:    "discovery",
		Status:  string(domain.StatusAIDuplicateCheck),
	})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	err = f.svc.Advance(ctx, sub.ID)
	if !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if n := f.audit.count(sub.ID, domain.ActionAdvanceError); n != 1 {
		t.Fatalf("ADVANCE_ERROR appears %d times, want 1", n)
	}
}

func TestCertificateIssuanceIsIdempotent(t *testing.T) {
	f := newFixture(t, &fakeMatcher{risk: 0.1}, &fakeScorer{score: 92}, approvePersonas())
	ctx := context.Background()

	sub, err := f.svc.CreateSubmission(ctx, CreateSubmissionInput{
		OwnerID: "owner-1",
		Type:    "discovery",
		Files:   submitFiles(),
	})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	if err := f.svc.IssueCertificate(ctx, sub.ID); err != nil {
		t.Fatalf("replayed IssueCertificate: %v", err)
	}
	if err := f.svc.DistributeReward(ctx, sub.ID); err != nil {
		t.Fatalf("replayed DistributeReward: %v", err)
	}

	if n := f.audit.count(sub.ID, domain.ActionCertificateGenerated); n != 1 {
		t.Fatalf("CERTIFICATE_GENERATED appears %d times, want 1", n)
	}
	if n := f.audit.count(sub.ID, domain.ActionRewardDistributed); n != 1 {
		t.Fatalf("REWARD_DISTRIBUTED appears %d times, want 1", n)
	}
	if len(f.ledger.transfers) != 1 {
		t.Fatalf("ledger transfers = %d, want 1", len(f.ledger.transfers))
	}
}

func TestCertificateIDIsDeterministic(t *testing.T) {
	a := certificateID("sub-00000001", "hash-a")
	b := certificateID("sub-00000001", "hash-a")
	if a != b {
		t.Fatalf("certificate id not deterministic: %q vs %q", a, b)
	}
	if c := certificateID("sub-00000001", "hash-b"); c == a {
		t.Fatalf("different content hashes must change the certificate id")
	}
}

func TestNotarizationFailureDefersButIssues(t *testing.T) {
	f := newFixture(t, &fakeMatcher{risk: 0.1}, &fakeScorer{score: 92}, approvePersonas())
	f.ledger.notarizeErr = fmt.Errorf("%w: rpc down", domain.ErrTransientDependency)
	ctx := context.Background()

	sub, err := f.svc.CreateSubmission(ctx, CreateSubmissionInput{
		OwnerID: "owner-1",
		Type:    "discovery",
		Files:   submitFiles(),
	})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	got, _ := f.repo.GetSubmission(ctx, sub.ID)
	if got.CertificateID == nil {
		t.Fatalf("certificate must issue despite notarization failure")
	}
	if got.ChainTx != nil {
		t.Fatalf("chain tx must stay empty when notarization is deferred")
	}
	if n := f.audit.count(sub.ID, domain.ActionNotarizationDeferred); n != 1 {
		t.Fatalf("NOTARIZATION_DEFERRED appears %d times, want 1", n)
	}
	if got.Status != string(domain.StatusRewarded) {
		t.Fatalf("status = %s, want %s", got.Status, domain.StatusRewarded)
	}
}

func TestDeferredNotarizationSettlesOnReplay(t *testing.T) {
	f := newFixture(t, &fakeMatcher{risk: 0.1}, &fakeScorer{score: 92}, approvePersonas())
	f.ledger.notarizeErr = fmt.Errorf("%w: rpc down", domain.ErrTransientDependency)
	ctx := context.Background()

	sub, err := f.svc.CreateSubmission(ctx, CreateSubmissionInput{
		OwnerID: "owner-1",
		Type:    "discovery",
		Files:   submitFiles(),
	})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	got, _ := f.repo.GetSubmission(ctx, sub.ID)
	if got.CertificateID == nil || got.ChainTx != nil {
		t.Fatalf("expected deferred certificate, got cert=%v chain_tx=%v", got.CertificateID, got.ChainTx)
	}

	// The ledger recovers; replaying the certify stage anchors the
	// existing certificate instead of minting a second one.
	f.ledger.notarizeErr = nil
	if err := f.svc.IssueCertificate(ctx, sub.ID); err != nil {
		t.Fatalf("replayed IssueCertificate: %v", err)
	}

	got, _ = f.repo.GetSubmission(ctx, sub.ID)
	if got.ChainTx == nil || *got.ChainTx == "" {
		t.Fatalf("chain tx not settled on replay")
	}
	if n := f.audit.count(sub.ID, domain.ActionCertificateGenerated); n != 1 {
		t.Fatalf("CERTIFICATE_GENERATED appears %d times, want 1", n)
	}
	if n := f.audit.count(sub.ID, domain.ActionNotarizationCompleted); n != 1 {
		t.Fatalf("NOTARIZATION_COMPLETED appears %d times, want 1", n)
	}

	att, err := f.svc.GetCertificate(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetCertificate: %v", err)
	}
	if att.ChainTx != *got.ChainTx {
		t.Fatalf("attestation chain tx = %q, want %q", att.ChainTx, *got.ChainTx)
	}

	// A further replay with the anchor in place is a no-op.
	if err := f.svc.IssueCertificate(ctx, sub.ID); err != nil {
		t.Fatalf("second replay: %v", err)
	}
	if f.ledger.notarized != 1 {
		t.Fatalf("notarize calls = %d, want 1", f.ledger.notarized)
	}
}

func TestUnderfundedTreasuryFailsLoudly(t *testing.T) {
	f := newFixture(t, &fakeMatcher{risk: 0.1}, &fakeScorer{score: 92}, approvePersonas())
	f.ledger.balance = 1 // far below any payout
	ctx := context.Background()

	sub, err := f.svc.CreateSubmission(ctx, CreateSubmissionInput{
		OwnerID: "owner-1",
		Type:    "discovery",
		Files:   submitFiles(),
	})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	// REWARDED means authorized, not settled: the payout itself must not
	// have been recorded.
	got, _ := f.repo.GetSubmission(ctx, sub.ID)
	if got.Status != string(domain.StatusRewarded) {
		t.Fatalf("status = %s, want %s", got.Status, domain.StatusRewarded)
	}
	if got.RewardAmount != nil {
		t.Fatalf("no reward must be recorded when the treasury cannot pay")
	}
	if n := f.audit.count(sub.ID, domain.ActionRewardDistributed); n != 0 {
		t.Fatalf("REWARD_DISTRIBUTED must not be written, got %d", n)
	}
	if n := f.audit.count(sub.ID, domain.ActionRewardError); n == 0 {
		t.Fatalf("REWARD_ERROR audit entry missing")
	}

	// Funding the treasury and replaying the reward stage settles it.
	f.ledger.balance = 1_000_0000_0000
	if err := f.svc.DistributeReward(ctx, sub.ID); err != nil {
		t.Fatalf("DistributeReward after funding: %v", err)
	}
	got, _ = f.repo.GetSubmission(ctx, sub.ID)
	if got.RewardAmount == nil || *got.RewardAmount != 92_0000_0000 {
		t.Fatalf("reward not settled after funding: %v", got.RewardAmount)
	}
	if n := f.audit.count(sub.ID, domain.ActionRewardDistributed); n != 1 {
		t.Fatalf("REWARD_DISTRIBUTED appears %d times, want 1", n)
	}
}

func TestCouncilDegradedCriticIsRecorded(t *testing.T) {
	personas := []ports.CouncilPersona{
		&fakePersona{seat: domain.PersonaExaminer, verdict: domain.VerdictApproved, score: 90},
		&fakePersona{seat: domain.PersonaCritic, err: fmt.Errorf("%w: timeout", domain.ErrTransientDependency)},
		&fakePersona{seat: domain.PersonaVisionary, verdict: domain.VerdictApproved, score: 85},
	}
	f := newFixture(t, &fakeMatcher{risk: 0.1}, &fakeScorer{score: 92}, personas)
	ctx := context.Background()

	sub, err := f.svc.CreateSubmission(ctx, CreateSubmissionInput{
		OwnerID: "owner-1",
		Type:    "discovery",
		Files:   submitFiles(),
	})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	att, err := f.svc.GetCertificate(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetCertificate: %v", err)
	}
	if att.SubmissionID != sub.ID {
		t.Fatalf("attestation submission id = %s, want %s", att.SubmissionID, sub.ID)
	}

	// The council record must carry a failed critic seat.
	got, _ := f.repo.GetSubmission(ctx, sub.ID)
	if !strings.Contains(got.AIFeedbackJSON, `"failed":true`) {
		t.Fatalf("ai feedback does not mark the failed seat: %s", got.AIFeedbackJSON)
	}
}

func TestSubmissionValidation(t *testing.T) {
	f := newFixture(t, &fakeMatcher{risk: 0.1}, &fakeScorer{score: 92}, approvePersonas())
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateSubmissionInput
	}{
		{"missing owner", CreateSubmissionInput{Type: "idea", Files: submitFiles()}},
		{"unknown type", CreateSubmissionInput{OwnerID: "o", Type: "poem", Files: submitFiles()}},
		{"no files", CreateSubmissionInput{OwnerID: "o", Type: "idea"}},
		{"file without hash", CreateSubmissionInput{OwnerID: "o", Type: "idea", Files: []FileInput{{Name: "a"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.CreateSubmission(ctx, tc.input); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAdminOverrideAudits(t *testing.T) {
	f := newFixture(t, &fakeMatcher{risk: 0.1}, &fakeScorer{score: 92}, approvePersonas())
	ctx := context.Background()

	sub, err := f.repo.CreateSubmission(ctx, ports.SubmissionCreate{
		OwnerID: "owner-1",
		Type:    "discovery",
		Status:  string(domain.StatusPendingExpertReview),
	})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	err = f.svc.AdminOverride(ctx, AdminOverrideInput{
		SubmissionID: sub.ID,
		NewStatus:    string(domain.StatusFinalizedRejected),
		Reason:       "policy violation",
	})
	if err != nil {
		t.Fatalf("AdminOverride: %v", err)
	}

	got, _ := f.repo.GetSubmission(ctx, sub.ID)
	if got.Status != string(domain.StatusFinalizedRejected) {
		t.Fatalf("status = %s, want %s", got.Status, domain.StatusFinalizedRejected)
	}
	if n := f.audit.count(sub.ID, domain.ActionAdminOverride); n != 1 {
		t.Fatalf("override audit entries = %d, want 1", n)
	}

	if err := f.svc.AdminOverride(ctx, AdminOverrideInput{SubmissionID: sub.ID, NewStatus: "NONSENSE", Reason: "x"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown status must be a validation error, got %v", err)
	}
}

func TestContentHashIgnoresManifestOrder(t *testing.T) {
	a := contentHash([]FileInput{{Name: "a", Hash: "h1"}, {Name: "b", Hash: "h2"}})
	b := contentHash([]FileInput{{Name: "b", Hash: "h2"}, {Name: "a", Hash: "h1"}})
	if a != b {
		t.Fatalf("content hash depends on manifest order: %q vs %q", a, b)
	}
}

func TestListRewards(t *testing.T) {
	f := newFixture(t, &fakeMatcher{risk: 0.1}, &fakeScorer{score: 92}, approvePersonas())
	ctx := context.Background()

	sub, err := f.svc.CreateSubmission(ctx, CreateSubmissionInput{
		OwnerID: "owner-1",
		Type:    "discovery",
		Files:   submitFiles(),
	})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	records, err := f.svc.ListRewards(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListRewards: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("reward records = %d, want 1", len(records))
	}
	if records[0].SubmissionID != sub.ID {
		t.Fatalf("reward record submission = %s, want %s", records[0].SubmissionID, sub.ID)
	}
	if records[0].Amount != 92_0000_0000 {
		t.Fatalf("reward record amount = %d", records[0].Amount)
	}
	if records[0].Recipient != "owner-1" {
		t.Fatalf("reward record recipient = %q, want owner-1", records[0].Recipient)
	}
	if records[0].TxHash == "" {
		t.Fatalf("reward record missing tx hash")
	}

	totals, err := f.svc.RewardTotals(ctx)
	if err != nil {
		t.Fatalf("RewardTotals: %v", err)
	}
	if totals.Count != 1 || totals.Total != 92_0000_0000 {
		t.Fatalf("reward totals = %+v", totals)
	}
}

func TestGetCertificateByID(t *testing.T) {
	f := newFixture(t, &fakeMatcher{risk: 0.1}, &fakeScorer{score: 92}, approvePersonas())
	ctx := context.Background()

	sub, err := f.svc.CreateSubmission(ctx, CreateSubmissionInput{
		OwnerID: "owner-1",
		Type:    "discovery",
		Files:   submitFiles(),
	})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	got, _ := f.repo.GetSubmission(ctx, sub.ID)
	if got.CertificateID == nil {
		t.Fatalf("certificate id not set")
	}

	att, err := f.svc.GetCertificateByID(ctx, *got.CertificateID)
	if err != nil {
		t.Fatalf("GetCertificateByID: %v", err)
	}
	if att.SubmissionID != sub.ID {
		t.Fatalf("attestation submission id = %s, want %s", att.SubmissionID, sub.ID)
	}

	if _, err := f.svc.GetCertificateByID(ctx, "MVI-nothing-000000000000"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
