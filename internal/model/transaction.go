package model

import (
	"time"
)

// ============================================================================
// Transaction type constants
// ============================================================================

const (
	TxnTypeDeposit       = "DEPOSIT"
	TxnTypeWithdrawal    = "WITHDRAWAL"
	TxnTypeContribution  = "SAVINGS_CONTRIBUTION"
	TxnTypeFreeze        = "FREEZE"
	TxnTypeUnfreeze      = "UNFREEZE"
	TxnTypeAuthorization = "AUTHORIZATION"
	TxnTypeRefund        = "REFUND"
	TxnTypeGroupContrib  = "GROUP_CONTRIBUTION"
	TxnTypeGroupPayout   = "GROUP_PAYOUT"
	TxnTypeGroupForfeit  = "GROUP_FORFEIT"
	TxnTypeFee           = "FEE"
	TxnTypeReferralBonus = "REFERRAL_BONUS"
	TxnTypeReferralClaim = "REFERRAL_CLAIM"
	TxnTypePocketLock    = "POCKET_LOCK"
	TxnTypePocketRelease = "POCKET_RELEASE"
	TxnTypePlanRelease   = "PLAN_RELEASE"
)

const (
	TxnStatusPending   = "PENDING"
	TxnStatusCompleted = "COMPLETED"
	TxnStatusFailed    = "FAILED"
	TxnStatusHeld      = "HELD"
	TxnStatusCancelled = "CANCELLED"
)

// ValidTxnStatusTransitions encodes the ledger-entry state machine. A
// transaction reaches a terminal state exactly once; COMPLETED rows are
// immutable and corrections happen through new offsetting entries.
var ValidTxnStatusTransitions = map[string][]string{
	TxnStatusPending: {TxnStatusCompleted, TxnStatusFailed, TxnStatusCancelled},
	TxnStatusHeld:    {TxnStatusCompleted, TxnStatusCancelled},
}

func TxnCanTransitionTo(currentStatus, targetStatus string) bool {
	allowed, exists := ValidTxnStatusTransitions[currentStatus]
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

// ============================================================================
// Wallet ledger entry
// ============================================================================

// WalletTransaction is the append-only audit trail of every balance change.
//
// Ledger design rules:
//  1. Append only. Completed rows are never modified or deleted.
//  2. Every row carries balance_before/balance_after snapshots taken under
//     the same logical operation, so the ledger can be replayed and checked
//     against the wallet row.
//  3. Corrections are new offsetting rows (REFUND, compensating re-credit),
//     never edits of history.
type WalletTransaction struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	TxnNo        string `gorm:"type:varchar(64);uniqueIndex;not null" json:"txn_no"`
	RelatedTxnNo string `gorm:"type:varchar(64);index" json:"related_txn_no,omitempty"` // refund/compensation -> original
	UserID       int64  `gorm:"index:idx_txn_user_created;not null" json:"user_id"`
	Type         string `gorm:"type:varchar(32);index;not null" json:"type"`
	Status       string `gorm:"type:varchar(20);index;not null" json:"status"`
	Amount       int64  `gorm:"not null" json:"amount"` // gross amount, minor units
	Currency     string `gorm:"type:varchar(8);not null;default:USD" json:"currency"`
	Fee          int64  `gorm:"not null;default:0" json:"fee"`
	NetAmount    int64  `gorm:"not null" json:"net_amount"`

	BalanceBefore int64 `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64 `gorm:"not null" json:"balance_after"`

	PlanID          *int64 `gorm:"index" json:"plan_id,omitempty"`
	GroupID         *int64 `gorm:"index" json:"group_id,omitempty"`
	PaymentMethodID string `gorm:"type:varchar(64)" json:"payment_method_id,omitempty"`
	Description     string `gorm:"type:varchar(256)" json:"description,omitempty"`
	Metadata        string `gorm:"type:text" json:"metadata,omitempty"` // JSON: auth codes, transfer ids, reasons

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_txn_user_created" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transaction"
}
