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

// AuditLogRepository only ever inserts and selects; the table has no
// update or delete path.
type AuditLogRepository struct {
	db *gorm.DB
}

var _ ports.AuditLog = (*AuditLogRepository)(nil)

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
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

func (r *AuditLogRepository) Append(ctx context.Context, input ports.AuditEntryCreate) (ports.AuditEntry, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.AuditEntry{}, err
	}

	if strings.TrimSpace(input.SubmissionID) == "" {
		return ports.AuditEntry{}, errors.New("submission id is required")
	}
	if strings.TrimSpace(input.Action) == "" {
		return ports.AuditEntry{}, errors.New("action is required")
	}
	if strings.TrimSpace(input.Actor) == "" {
		return ports.AuditEntry{}, errors.New("actor is required")
	}

	row := model.AuditEntry{
		ID:           uuid.NewString(),
		SubmissionID: input.SubmissionID,
		Action:       input.Action,
		Payload:      input.PayloadJSON,
		Actor:        input.Actor,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.AuditEntry{}, errs.Wrap(err, "append audit entry")
	}
	return mapAuditEntry(row), nil
}

func (r *AuditLogRepository) ListBySubmission(ctx context.Context, submissionID string) ([]ports.AuditEntry, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.AuditEntry
	if err := db.
		Where("submission_id = ?", submissionID).
		Order("created_at asc, id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query audit entries")
	}

	items := make([]ports.AuditEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapAuditEntry(row))
	}
	return items, nil
}

func (r *AuditLogRepository) HasAction(ctx context.Context, submissionID string, action string) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	var count int64
	if err := db.Model(&model.AuditEntry{}).
		Where("submission_id = ? AND action = ?", submissionID, action).
		Count(&count).Error; err != nil {
		return false, errs.Wrap(err, "count audit entries")
	}
	return count > 0, nil
}

func (r *AuditLogRepository) ListByAction(ctx context.Context, action string, ownerID string, limit int) ([]ports.AuditEntry, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.AuditEntry{}).Where("action = ?", action)
	if strings.TrimSpace(ownerID) != "" {
		sub := db.Model(&model.Submission{}).Select("id").Where("owner_id = ?", ownerID)
		query = query.Where("submission_id IN (?)", sub)
	}
	query = query.Order("created_at desc, id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.AuditEntry
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query audit entries by action")
	}

	items := make([]ports.AuditEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapAuditEntry(row))
	}
	return items, nil
}

func mapAuditEntry(row model.AuditEntry) ports.AuditEntry {
	return ports.AuditEntry{
		ID:           row.ID,
		SubmissionID: row.SubmissionID,
		Action:       row.Action,
		PayloadJSON:  row.Payload,
		Actor:        row.Actor,
		CreatedAt:    row.CreatedAt,
	}
}
