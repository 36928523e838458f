package repository

import (
	"context"
	"errors"
	"time"

	"savecircle/internal/model"

	"gorm.io/gorm"
)

var (
	ErrDisputeNotFound      = errors.New("dispute not found")
	ErrDisputeStatusInvalid = errors.New("dispute status transition not allowed")
)

type DisputeRepository struct {
	db *gorm.DB
}

func NewDisputeRepository(db *gorm.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

func (r *DisputeRepository) Create(ctx context.Context, tx *gorm.DB, dispute *model.Dispute) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(dispute).Error
}

func (r *DisputeRepository) GetByDisputeNo(ctx context.Context, disputeNo string) (*model.Dispute, error) {
	var dispute model.Dispute
	err := r.db.WithContext(ctx).Where("dispute_no = ?", disputeNo).First(&dispute).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDisputeNotFound
		}
		return nil, err
	}
	return &dispute, nil
}

func (r *DisputeRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.Dispute, error) {
	var disputes []*model.Dispute
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&disputes).Error
	return disputes, err
}

func (r *DisputeRepository) SetEvidence(ctx context.Context, disputeNo, evidence string) error {
	return r.db.WithContext(ctx).
		Model(&model.Dispute{}).
		Where("dispute_no = ?", disputeNo).
		Update("evidence", evidence).Error
}

// UpdateStatus moves a dispute along its state machine; resolution stamps
// resolved_at in the same UPDATE.
func (r *DisputeRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, disputeNo, fromStatus, toStatus string, evidence string) error {
	if !model.DisputeCanTransitionTo(fromStatus, toStatus) {
		return ErrDisputeStatusInvalid
	}
	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}
	if evidence != "" {
		updates["evidence"] = evidence
	}
	if toStatus == model.DisputeStatusResolved || toStatus == model.DisputeStatusRejected {
		now := time.Now()
		updates["resolved_at"] = &now
	}

	result := tx.WithContext(ctx).
		Model(&model.Dispute{}).
		Where("dispute_no = ? AND status = ?", disputeNo, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDisputeStatusInvalid
	}
	return nil
}
