package model

import (
	"time"
)

const (
	GroupStatusOpen      = "OPEN"
	GroupStatusFilled    = "FILLED"
	GroupStatusCompleted = "COMPLETED"
	GroupStatusDissolved = "DISSOLVED"
)

// ValidGroupStatusTransitions: OPEN -> FILLED -> COMPLETED, with
// OPEN|FILLED -> DISSOLVED as the escape hatch (all members leave, or a
// unanimous dissolve vote before payout).
var ValidGroupStatusTransitions = map[string][]string{
	GroupStatusOpen:   {GroupStatusFilled, GroupStatusCompleted, GroupStatusDissolved},
	GroupStatusFilled: {GroupStatusCompleted, GroupStatusDissolved},
}

func GroupCanTransitionTo(currentStatus, targetStatus string) bool {
	allowed, exists := ValidGroupStatusTransitions[currentStatus]
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

const (
	GroupFrequencyDaily   = "DAILY"
	GroupFrequencyWeekly  = "WEEKLY"
	GroupFrequencyMonthly = "MONTHLY"
)

// Product rule: rotating groups hold between 5 and 10 members.
const (
	GroupMinMembers = 5
	GroupMaxMembers = 10
)

// Group is a rotating contribution pool. total_balance tracks the sum of all
// members' total_contributed (including members who later left — their funds
// stay in the pool, there is no early cash-out).
type Group struct {
	ID                 int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name               string `gorm:"type:varchar(128);not null" json:"name"`
	Purpose            string `gorm:"type:varchar(256)" json:"purpose,omitempty"`
	CreatorID          int64  `gorm:"index;not null" json:"creator_id"`
	ContributionAmount int64  `gorm:"not null" json:"contribution_amount"` // per round, minor units
	Frequency          string `gorm:"type:varchar(16);not null" json:"frequency"`
	CycleRounds        int    `gorm:"not null;default:1" json:"cycle_rounds"` // rounds each member owes before payout
	MaxMembers         int    `gorm:"not null" json:"max_members"`
	JoinCode           string `gorm:"type:varchar(32);uniqueIndex;not null" json:"join_code"`
	Status             string `gorm:"type:varchar(20);index;not null" json:"status"`
	TotalBalance       int64  `gorm:"not null;default:0" json:"total_balance"`
	CurrentMembers     int    `gorm:"not null;default:0" json:"current_members"` // active members only

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Group) TableName() string {
	return "savings_group"
}

const (
	GroupMemberStatusActive = "ACTIVE"
	GroupMemberStatusLeft   = "LEFT"
)

// GroupMember rows are kept after a member leaves (status LEFT) because the
// leaver's contributed funds remain locked in the pool until the group
// completes or dissolves.
type GroupMember struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	GroupID          int64     `gorm:"uniqueIndex:idx_group_user;index;not null" json:"group_id"`
	UserID           int64     `gorm:"uniqueIndex:idx_group_user;not null" json:"user_id"`
	PayoutPosition   int       `gorm:"not null" json:"payout_position"`
	TotalContributed int64     `gorm:"not null;default:0" json:"total_contributed"`
	Status           string    `gorm:"type:varchar(20);not null;default:ACTIVE" json:"status"`
	DissolveVote     bool      `gorm:"not null;default:false" json:"dissolve_vote"`
	JoinedAt         time.Time `gorm:"autoCreateTime" json:"joined_at"`
	LeftAt           *time.Time `json:"left_at,omitempty"`
}

func (GroupMember) TableName() string {
	return "savings_group_member"
}
