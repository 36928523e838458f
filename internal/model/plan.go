package model

import (
	"time"
)

const (
	PlanStatusActive    = "ACTIVE"
	PlanStatusPaused    = "PAUSED"
	PlanStatusCompleted = "COMPLETED"
	PlanStatusCancelled = "CANCELLED"
)

const (
	SavingsModeDaily  = "DAILY"
	SavingsModeWeekly = "WEEKLY"
)

// ValidPlanStatusTransitions: ACTIVE <-> PAUSED, ACTIVE -> COMPLETED,
// ACTIVE|PAUSED -> CANCELLED. COMPLETED and CANCELLED are terminal; restart
// creates a new plan row rather than resurrecting the old one.
var ValidPlanStatusTransitions = map[string][]string{
	PlanStatusActive: {PlanStatusPaused, PlanStatusCompleted, PlanStatusCancelled},
	PlanStatusPaused: {PlanStatusActive, PlanStatusCancelled},
}

func PlanCanTransitionTo(currentStatus, targetStatus string) bool {
	allowed, exists := ValidPlanStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// SavingsPlan is an individual savings goal ("pocket"/challenge). Contributed
// funds live in the owner's wallet under the locked sub-balance; the plan's
// current_balance must equal the sum of its completed contribution rows.
type SavingsPlan struct {
	ID                int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            int64  `gorm:"index;not null" json:"user_id"`
	Name              string `gorm:"type:varchar(128);not null" json:"name"`
	Status            string `gorm:"type:varchar(20);index;not null" json:"status"`
	SavingsMode       string `gorm:"type:varchar(16);not null" json:"savings_mode"`
	DailyAmount       int64  `gorm:"not null;default:0" json:"daily_amount"`
	WeeklyAmount      int64  `gorm:"not null;default:0" json:"weekly_amount"`
	TotalTargetAmount int64  `gorm:"not null" json:"total_target_amount"`
	CurrentBalance    int64  `gorm:"not null;default:0" json:"current_balance"` // overshoot past target is allowed

	TotalContributions int64 `gorm:"not null;default:0" json:"total_contributions"`
	ContributionCount  int   `gorm:"not null;default:0" json:"contribution_count"`
	StreakDays         int   `gorm:"not null;default:0" json:"streak_days"`
	LongestStreak      int   `gorm:"not null;default:0" json:"longest_streak"`

	LastContributionDate *time.Time `json:"last_contribution_date"`
	StartDate            time.Time  `gorm:"not null" json:"start_date"`
	TargetCompletionDate *time.Time `json:"target_completion_date"`
	PauseReason          string     `gorm:"type:varchar(256)" json:"pause_reason,omitempty"`
	RestartedFromID      *int64     `gorm:"index" json:"restarted_from_id,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SavingsPlan) TableName() string {
	return "savings_plan"
}

// ContributionAmount returns the per-period amount for the plan's mode.
func (p *SavingsPlan) ContributionAmount() int64 {
	if p.SavingsMode == SavingsModeWeekly {
		return p.WeeklyAmount
	}
	return p.DailyAmount
}
