package repository

import (
	"context"

	"savecircle/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementRepository struct {
	db *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// Unlock records a milestone, at most once per (user, threshold). Returns
// true only when a new row was inserted, so callers emit the unlock event
// exactly once even when evaluation is retried.
func (r *AchievementRepository) Unlock(ctx context.Context, tx *gorm.DB, achievement *model.Achievement) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "threshold"}},
			DoNothing: true,
		}).
		Create(achievement)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *AchievementRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.Achievement, error) {
	var achievements []*model.Achievement
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("threshold ASC").
		Find(&achievements).Error
	return achievements, err
}
