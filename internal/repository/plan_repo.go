package repository

import (
	"context"
	"errors"
	"time"

	"savecircle/internal/model"

	"gorm.io/gorm"
)

var (
	ErrPlanNotFound      = errors.New("savings plan not found")
	ErrPlanStatusInvalid = errors.New("plan status transition not allowed")
)

type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) Create(ctx context.Context, tx *gorm.DB, plan *model.SavingsPlan) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(plan).Error
}

func (r *PlanRepository) GetByID(ctx context.Context, planID int64) (*model.SavingsPlan, error) {
	var plan model.SavingsPlan
	err := r.db.WithContext(ctx).Where("id = ?", planID).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *PlanRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.SavingsPlan, error) {
	var plans []*model.SavingsPlan
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&plans).Error
	return plans, err
}

// UpdateStatus is guarded by the transition table and a conditional WHERE;
// extra columns (pause reason, streak reset) land in the same UPDATE.
func (r *PlanRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, planID int64, fromStatus, toStatus string, extra map[string]interface{}) error {
	if !model.PlanCanTransitionTo(fromStatus, toStatus) {
		return ErrPlanStatusInvalid
	}
	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}
	for col, val := range extra {
		updates[col] = val
	}

	result := tx.WithContext(ctx).
		Model(&model.SavingsPlan{}).
		Where("id = ? AND status = ?", planID, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPlanStatusInvalid
	}
	return nil
}

// ApplyContribution folds one completed contribution into the plan's
// aggregates in a single UPDATE.
func (r *PlanRepository) ApplyContribution(ctx context.Context, tx *gorm.DB, planID int64, amount int64, streak, longest int, contributedAt time.Time) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.SavingsPlan{}).
		Where("id = ? AND status = ?", planID, model.PlanStatusActive).
		Updates(map[string]interface{}{
			"current_balance":        gorm.Expr("current_balance + ?", amount),
			"total_contributions":    gorm.Expr("total_contributions + ?", amount),
			"contribution_count":     gorm.Expr("contribution_count + 1"),
			"streak_days":            streak,
			"longest_streak":         longest,
			"last_contribution_date": contributedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPlanStatusInvalid
	}
	return nil
}
