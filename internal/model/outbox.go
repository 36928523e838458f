package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// Event types written to the outbox alongside the money movement they
// describe. Consumers (notification dispatcher) read them from Kafka.
const (
	EventContributionCompleted = "contribution.completed"
	EventAchievementUnlocked   = "achievement.unlocked"
	EventGroupFilled           = "group.filled"
	EventGroupCompleted        = "group.completed"
	EventGroupDissolved        = "group.dissolved"
	EventDisputeOpened         = "dispute.opened"
	EventWalletFrozen          = "wallet.frozen"
	EventWithdrawalSettled     = "withdrawal.settled"
)

// OutboxMessage is written in the same database transaction as the state
// change it announces, then shipped to Kafka by the outbox sender job. This
// keeps event publication atomic with the ledger mutation.
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	EventType  string    `gorm:"type:varchar(64);not null" json:"event_type"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}
