package review

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"mindvault/internal/bootstrap/logging"
	domain "mindvault/internal/domain/review"
	"mindvault/internal/errs"
	"mindvault/internal/ports"
)

// CreateSubmission registers a new disclosure, writes its first audit
// entry and kicks the pipeline off at the duplicate-check stage.
func (s *Service) CreateSubmission(ctx context.Context, input CreateSubmissionInput) (ports.Submission, error) {
	if err := s.checkDeps(ctx); err != nil {
		return ports.Submission{}, err
	}

	ownerID := strings.TrimSpace(input.OwnerID)
	if ownerID == "" {
		return ports.Submission{}, fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}
	subType, err := domain.ParseType(strings.TrimSpace(input.Type))
	if err != nil {
		return ports.Submission{}, err
	}
	if len(input.Files) == 0 {
		return ports.Submission{}, fmt.Errorf("%w: at least one file is required", domain.ErrValidation)
	}
	for _, f := range input.Files {
		if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.Hash) == "" {
			return ports.Submission{}, fmt.Errorf("%w: every file needs a name and a hash", domain.ErrValidation)
		}
	}

	// The manifest keeps uploads separate from any later generated
	// artifacts.
	filesJSON, err := json.Marshal(map[string]any{
		"original": input.Files,
		"derived":  []FileInput{},
	})
	if err != nil {
		return ports.Submission{}, errs.Wrap(err, "encode files manifest")
	}

	var created ports.Submission
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		created, err = s.repo.CreateSubmission(txCtx, ports.SubmissionCreate{
			OwnerID:     ownerID,
			Type:        string(subType),
			Status:      string(domain.StatusUploaded),
			FilesJSON:   string(filesJSON),
			ContentHash: contentHash(input.Files),
		})
		if err != nil {
			return errs.Wrap(err, "create submission")
		}

		payload, _ := json.Marshal(map[string]any{
			"type":         created.Type,
			"content_hash": created.ContentHash,
			"file_count":   len(input.Files),
		})
		_, err = s.audit.Append(txCtx, ports.AuditEntryCreate{
			SubmissionID: created.ID,
			Action:       domain.ActionSubmissionCreated,
			PayloadJSON:  string(payload),
			Actor:        domain.ActorUser(ownerID),
		})
		return errs.Wrap(err, "audit submission creation")
	})
	if err != nil {
		return ports.Submission{}, err
	}

	logging.Info(ctx, "submission created",
		slog.String("submission_id", created.ID),
		slog.String("type", created.Type),
	)

	if err := s.Advance(ctx, created.ID); err != nil {
		// Intake succeeded; the pipeline picks the submission up on the
		// next advance. Surface the stall, keep the submission.
		logging.Warn(ctx, "initial advance failed",
			slog.String("submission_id", created.ID),
			slog.Any("err", errs.Loggable(err)),
		)
	}

	return s.repo.GetSubmission(ctx, created.ID)
}

// contentHash folds the file manifest into one stable fingerprint. Files
// are sorted by hash so manifest order does not change the digest.
func contentHash(files []FileInput) string {
	hashes := make([]string, 0, len(files))
	for _, f := range files {
		hashes = append(hashes, f.Hash)
	}
	sort.Strings(hashes)

	sum := sha256.Sum256([]byte(strings.Join(hashes, "\n")))
	return hex.EncodeToString(sum[:])
}
