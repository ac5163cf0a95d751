package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mindvault/internal/errs"
	"mindvault/internal/infrastructure/persistence/sqlite/model"
	"mindvault/internal/ports"
)

type SubmissionRepository struct {
	db *gorm.DB
}

var _ ports.SubmissionRepository = (*SubmissionRepository)(nil)

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *SubmissionRepository) CreateSubmission(ctx context.Context, input ports.SubmissionCreate) (ports.Submission, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Submission{}, err
	}

	if strings.TrimSpace(input.OwnerID) == "" {
		return ports.Submission{}, errors.New("owner id is required")
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	row := model.Submission{
		ID:          uuid.NewString(),
		OwnerID:     input.OwnerID,
		Type:        input.Type,
		Status:      input.Status,
		Version:     1,
		Files:       input.FilesJSON,
		ContentHash: input.ContentHash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Submission{}, errs.Wrap(err, "insert submission")
	}

	return mapSubmission(row), nil
}

func (r *SubmissionRepository) GetSubmission(ctx context.Context, id string) (ports.Submission, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Submission{}, err
	}

	var row model.Submission
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Submission{}, fmt.Errorf("submission %s: %w", id, ports.ErrSubmissionNotFound)
		}
		return ports.Submission{}, errs.Wrap(err, "query submission")
	}
	return mapSubmission(row), nil
}

func (r *SubmissionRepository) GetSubmissionByCertificateID(ctx context.Context, certificateID string) (ports.Submission, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Submission{}, err
	}
	if strings.TrimSpace(certificateID) == "" {
		return ports.Submission{}, errors.New("certificate id is required")
	}

	var row model.Submission
	if err := db.Where("certificate_id = ?", certificateID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Submission{}, fmt.Errorf("certificate %s: %w", certificateID, ports.ErrSubmissionNotFound)
		}
		return ports.Submission{}, errs.Wrap(err, "query submission by certificate")
	}
	return mapSubmission(row), nil
}

func (r *SubmissionRepository) RewardTotals(ctx context.Context) (ports.RewardTotals, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.RewardTotals{}, err
	}

	var totals ports.RewardTotals
	err = db.Model(&model.Submission{}).
		Select("COUNT(*) AS count, COALESCE(SUM(reward_amount), 0) AS total").
		Where("reward_amount IS NOT NULL").
		Scan(&totals).Error
	if err != nil {
		return ports.RewardTotals{}, errs.Wrap(err, "aggregate rewards")
	}
	return totals, nil
}

func (r *SubmissionRepository) UpdateSubmission(ctx context.Context, id string, version int64, changes ports.SubmissionChanges) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	assignments := map[string]any{
		"version":    version + 1,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if changes.Status != nil {
		assignments["status"] = *changes.Status
	}
	if changes.QualityScore != nil {
		assignments["quality_score"] = *changes.QualityScore
	}
	if changes.DuplicateRisk != nil {
		assignments["duplicate_risk"] = *changes.DuplicateRisk
	}
	if changes.AIFeedbackJSON != nil {
		assignments["ai_feedback"] = *changes.AIFeedbackJSON
	}
	if changes.ExpertFeedbackJSON != nil {
		assignments["expert_feedback"] = *changes.ExpertFeedbackJSON
	}

	query := db.Model(&model.Submission{}).Where("id = ? AND version = ?", id, version)

	// Write-once columns: the guard rides in the WHERE clause so a second
	// writer loses the race at the database, not in memory.
	if changes.CertificateID != nil {
		assignments["certificate_id"] = *changes.CertificateID
		query = query.Where("certificate_id IS NULL")
	}
	if changes.ChainTx != nil {
		assignments["chain_tx"] = *changes.ChainTx
		query = query.Where("chain_tx IS NULL")
	}
	if changes.RewardAmount != nil {
		assignments["reward_amount"] = *changes.RewardAmount
		query = query.Where("reward_amount IS NULL")
	}

	res := query.Updates(assignments)
	if res.Error != nil {
		return errs.Wrap(res.Error, "update submission")
	}
	if res.RowsAffected == 0 {
		current, getErr := r.GetSubmission(ctx, id)
		if getErr != nil {
			return getErr
		}
		if changes.CertificateID != nil && current.CertificateID != nil {
			return fmt.Errorf("certificate_id on %s: %w", id, ports.ErrWriteOnceViolation)
		}
		if changes.ChainTx != nil && current.ChainTx != nil {
			return fmt.Errorf("chain_tx on %s: %w", id, ports.ErrWriteOnceViolation)
		}
		if changes.RewardAmount != nil && current.RewardAmount != nil {
			return fmt.Errorf("reward_amount on %s: %w", id, ports.ErrWriteOnceViolation)
		}
		return fmt.Errorf("submission %s at version %d: %w", id, version, ports.ErrVersionConflict)
	}
	return nil
}

func mapSubmission(row model.Submission) ports.Submission {
	return ports.Submission{
		ID:                 row.ID,
		OwnerID:            row.OwnerID,
		Type:               row.Type,
		Status:             row.Status,
		Version:            row.Version,
		QualityScore:       row.QualityScore,
		DuplicateRisk:      row.DuplicateRisk,
		AIFeedbackJSON:     row.AIFeedback,
		ExpertFeedbackJSON: row.ExpertFeedback,
		FilesJSON:          row.Files,
		ContentHash:        row.ContentHash,
		CertificateID:      row.CertificateID,
		ChainTx:            row.ChainTx,
		RewardAmount:       row.RewardAmount,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}
