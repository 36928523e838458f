package model

import (
	"time"
)

// MilestoneThresholds are the total-saved milestones, in minor units,
// evaluated when a plan completes or a contribution lands.
var MilestoneThresholds = []int64{
	50_000, 100_000, 250_000, 500_000, 750_000, 1_000_000, 2_740_000,
}

// Achievement marks a milestone unlocked by a user. The unique index on
// (user_id, threshold) makes evaluation idempotent: re-checking after a
// retry inserts nothing new.
type Achievement struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"uniqueIndex:idx_achievement_user_threshold;not null" json:"user_id"`
	Threshold  int64     `gorm:"uniqueIndex:idx_achievement_user_threshold;not null" json:"threshold"`
	PlanID     *int64    `json:"plan_id,omitempty"`
	UnlockedAt time.Time `gorm:"autoCreateTime" json:"unlocked_at"`
}

func (Achievement) TableName() string {
	return "achievement"
}
