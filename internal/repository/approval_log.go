package repository

import (
	"context"
	"strings"

	"bizdir/internal/models"
	"bizdir/internal/observability"

	"gorm.io/gorm"
)

// ApprovalLogRepository is the append-only audit ledger of admin decisions.
type ApprovalLogRepository interface {
	Append(ctx context.Context, entry *models.ApprovalLog) error
	// History returns decisions on one entry, newest first.
	History(ctx context.Context, kind models.ApprovableType, id uint) ([]models.ApprovalLog, error)
	Count(ctx context.Context, kind models.ApprovableType, id uint) (int64, error)
}

type approvalLogRepository struct {
	base
}

// NewApprovalLogRepository returns an ApprovalLogRepository outside any transaction.
func NewApprovalLogRepository(db *gorm.DB) ApprovalLogRepository {
	return &approvalLogRepository{base: newBase(db, false)}
}

func (r *approvalLogRepository) Append(ctx context.Context, entry *models.ApprovalLog) error {
	if !entry.ApprovableType.Valid() {
		return models.NewFieldValidationError("kind", "unknown approvable kind")
	}
	switch entry.Action {
	case models.ApprovalActionApproved:
	case models.ApprovalActionRejected:
		if entry.Reason == nil || strings.TrimSpace(*entry.Reason) == "" {
			return models.NewFieldValidationError("reason", "a rejection reason is required")
		}
	default:
		return models.NewValidationError("unknown approval action")
	}
	if entry.ID != 0 {
		return models.NewValidationError("audit entries are insert-only")
	}

	ctx, span := observability.StartQuery(ctx, "Append", "approval_logs")
	defer span.End()
	defer r.metrics.TrackQuery("insert", "approval_logs")()

	if err := r.writer(ctx).Create(entry).Error; err != nil {
		span.RecordError(err)
		return models.NewInternalError(err)
	}
	return nil
}

func (r *approvalLogRepository) History(ctx context.Context, kind models.ApprovableType, id uint) ([]models.ApprovalLog, error) {
	defer r.metrics.TrackQuery("select", "approval_logs")()

	var logs []models.ApprovalLog
	err := r.reader(ctx).
		Where("approvable_type = ? AND approvable_id = ?", kind, id).
		Order("created_at DESC").
		Order("id DESC").
		Find(&logs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return logs, nil
}

func (r *approvalLogRepository) Count(ctx context.Context, kind models.ApprovableType, id uint) (int64, error) {
	var n int64
	err := r.reader(ctx).Model(&models.ApprovalLog{}).
		Where("approvable_type = ? AND approvable_id = ?", kind, id).
		Count(&n).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
