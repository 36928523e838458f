package model

import (
	"time"
)

const (
	DisputeStatusOpen        = "OPEN"
	DisputeStatusUnderReview = "UNDER_REVIEW"
	DisputeStatusResolved    = "RESOLVED" // in favor of the user
	DisputeStatusRejected    = "REJECTED"
)

var ValidDisputeStatusTransitions = map[string][]string{
	DisputeStatusOpen:        {DisputeStatusUnderReview, DisputeStatusResolved, DisputeStatusRejected},
	DisputeStatusUnderReview: {DisputeStatusResolved, DisputeStatusRejected},
}

func DisputeCanTransitionTo(currentStatus, targetStatus string) bool {
	allowed, exists := ValidDisputeStatusTransitions[currentStatus]
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
	DisputeOriginUser    = "USER"    // user-filed dispute, 45-day response window
	DisputeOriginNetwork = "NETWORK" // chargeback from the payment network, 10-day window
)

// Dispute records a challenge against a ledger entry. Filing never moves
// funds by itself; a network chargeback additionally places an escrow hold
// (a HELD authorization entry) that resolves with the dispute.
type Dispute struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	DisputeNo   string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"dispute_no"`
	UserID      int64      `gorm:"index;not null" json:"user_id"`
	TxnNo       string     `gorm:"type:varchar(64);index;not null" json:"txn_no"`
	HoldTxnNo   string     `gorm:"type:varchar(64)" json:"hold_txn_no,omitempty"` // chargeback escrow hold
	Origin      string     `gorm:"type:varchar(16);not null" json:"origin"`
	Status      string     `gorm:"type:varchar(20);index;not null" json:"status"`
	Reason      string     `gorm:"type:varchar(128);not null" json:"reason"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	Evidence    string     `gorm:"type:text" json:"evidence,omitempty"`
	Deadline    time.Time  `gorm:"not null" json:"deadline"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Dispute) TableName() string {
	return "dispute"
}
