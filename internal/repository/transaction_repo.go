package repository

import (
	"context"
	"errors"
	"time"

	"savecircle/internal/model"

	"gorm.io/gorm"
)

var (
	ErrTxnNotFound      = errors.New("transaction not found")
	ErrTxnStatusInvalid = errors.New("transaction status transition not allowed")
)

// TransactionRepository owns the append-only ledger entries. Rows are
// inserted, queried, and status-transitioned exactly once; no row is ever
// deleted or financially edited.
type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, txn *model.WalletTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(txn).Error
}

func (r *TransactionRepository) GetByTxnNo(ctx context.Context, txnNo string) (*model.WalletTransaction, error) {
	var txn model.WalletTransaction
	err := r.db.WithContext(ctx).Where("txn_no = ?", txnNo).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTxnNotFound
		}
		return nil, err
	}
	return &txn, nil
}

type TxnFilter struct {
	Type   string
	Status string
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, filter TxnFilter, page, pageSize int) ([]*model.WalletTransaction, int64, error) {
	var txns []*model.WalletTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.WalletTransaction{}).Where("user_id = ?", userID)
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&txns).Error

	return txns, total, err
}

// HasCompletedContributionOn reports whether a completed savings
// contribution already exists for the plan on the given calendar day.
// Backs the one-contribution-per-day rule.
func (r *TransactionRepository) HasCompletedContributionOn(ctx context.Context, tx *gorm.DB, userID, planID int64, day time.Time) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var count int64
	err := tx.WithContext(ctx).
		Model(&model.WalletTransaction{}).
		Where("user_id = ? AND plan_id = ? AND type = ? AND status = ?",
			userID, planID, model.TxnTypeContribution, model.TxnStatusCompleted).
		Where("created_at >= ? AND created_at < ?", dayStart, dayEnd).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SumRefunded totals completed refunds issued against the original entry.
// Caps partial refunds at the original amount.
func (r *TransactionRepository) SumRefunded(ctx context.Context, tx *gorm.DB, originalTxnNo string) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var total int64
	err := tx.WithContext(ctx).
		Model(&model.WalletTransaction{}).
		Where("related_txn_no = ? AND type = ? AND status = ?",
			originalTxnNo, model.TxnTypeRefund, model.TxnStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// UpdateStatus moves an entry along its state machine, guarded both by the
// transition table and by a conditional WHERE on the current status so a
// terminal transition happens exactly once.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, txnNo, fromStatus, toStatus string, metadata string) error {
	if !model.TxnCanTransitionTo(fromStatus, toStatus) {
		return ErrTxnStatusInvalid
	}
	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}
	if metadata != "" {
		updates["metadata"] = metadata
	}

	result := tx.WithContext(ctx).
		Model(&model.WalletTransaction{}).
		Where("txn_no = ? AND status = ?", txnNo, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTxnStatusInvalid
	}
	return nil
}

// ListPendingWithdrawals returns withdrawals still pending that were created
// before the cutoff. Consumed by the settler job.
func (r *TransactionRepository) ListPendingWithdrawals(ctx context.Context, before time.Time, limit int) ([]*model.WalletTransaction, error) {
	var txns []*model.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("type = ? AND status = ? AND created_at < ?",
			model.TxnTypeWithdrawal, model.TxnStatusPending, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

// SumCompletedByTypeSince totals completed entries of one type since the
// cutoff. Backs KYC daily/monthly cap checks.
func (r *TransactionRepository) SumCompletedByTypeSince(ctx context.Context, tx *gorm.DB, userID int64, txnType string, since time.Time) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var total int64
	err := tx.WithContext(ctx).
		Model(&model.WalletTransaction{}).
		Where("user_id = ? AND type = ? AND status = ? AND created_at >= ?",
			userID, txnType, model.TxnStatusCompleted, since).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// SumActiveByTypeSince totals pending and completed entries of one type
// since the cutoff. Daily withdrawal caps use it so an in-flight
// withdrawal still consumes headroom; a cancelled or failed one gives it
// back.
func (r *TransactionRepository) SumActiveByTypeSince(ctx context.Context, tx *gorm.DB, userID int64, txnType string, since time.Time) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var total int64
	err := tx.WithContext(ctx).
		Model(&model.WalletTransaction{}).
		Where("user_id = ? AND type = ? AND status IN ? AND created_at >= ?",
			userID, txnType, []string{model.TxnStatusPending, model.TxnStatusCompleted}, since).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}
