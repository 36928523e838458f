package model

import (
	"time"
)

// Wallet is the per-user balance record and the core table of the system.
//
// Balance bookkeeping rule:
//
//	balance == available_balance + locked + locked_in_pockets
//
// must hold after every mutation. referral_earnings sits outside the
// equation and only merges into available_balance on an explicit claim.
// All amounts are integer minor units (cents).
type Wallet struct {
	ID               int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           int64 `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance          int64 `gorm:"not null;default:0" json:"balance"`
	AvailableBalance int64 `gorm:"not null;default:0" json:"available_balance"`
	Locked           int64 `gorm:"not null;default:0" json:"locked"`            // reserved by active savings plans and groups
	LockedInPockets  int64 `gorm:"not null;default:0" json:"locked_in_pockets"` // reserved inside sub-goal pockets
	ReferralEarnings int64 `gorm:"not null;default:0" json:"referral_earnings"`

	CurrentStreak       int        `gorm:"not null;default:0" json:"current_streak"`
	LastDailySavingDate *time.Time `json:"last_daily_saving_date"`
	DailySavingAmount   int64      `gorm:"not null;default:0" json:"daily_saving_amount"`

	FrozenUntil  *time.Time `json:"frozen_until"`
	FreezeReason string     `gorm:"type:varchar(256)" json:"freeze_reason,omitempty"`
	UnfreezeCode string     `gorm:"type:varchar(64)" json:"-"`

	Version   int       `gorm:"not null;default:0" json:"version"` // optimistic lock
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallet"
}

// IsFrozen reports whether the wallet is frozen at the given instant.
// An expired freeze window counts as unfrozen without requiring a code.
func (w *Wallet) IsFrozen(now time.Time) bool {
	return w.FrozenUntil != nil && now.Before(*w.FrozenUntil)
}

// BalanceDelta is one atomic adjustment to a wallet's sub-balances.
// A conserving delta satisfies Balance == Available + Locked + Pockets.
type BalanceDelta struct {
	Balance          int64
	Available        int64
	Locked           int64
	Pockets          int64
	ReferralEarnings int64
}

// Conserves reports whether applying the delta keeps the bookkeeping
// equation intact.
func (d BalanceDelta) Conserves() bool {
	return d.Balance == d.Available+d.Locked+d.Pockets
}
