package repository

import (
	"context"
	"errors"
	"time"

	"savecircle/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrWalletExists      = errors.New("wallet already exists")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrOptimisticLock    = errors.New("wallet update conflict, retry")
	ErrNonConserving     = errors.New("balance delta violates conservation")
)

// WalletRepository is the ledger store for wallet rows. It does not
// interpret transaction types; business rules live in the service layer.
type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Create inserts a zero-balance wallet. Fails if one already exists.
func (r *WalletRepository) Create(ctx context.Context, wallet *model.Wallet) error {
	err := r.db.WithContext(ctx).Create(wallet).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrWalletExists
	}
	return err
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID int64) (*model.Wallet, error) {
	return r.Get(ctx, nil, userID)
}

// Get reads the wallet, optionally inside an open transaction so the read
// and the following ApplyDelta see the same snapshot.
func (r *WalletRepository) Get(ctx context.Context, tx *gorm.DB, userID int64) (*model.Wallet, error) {
	if tx == nil {
		tx = r.db
	}
	var wallet model.Wallet
	err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// GetOrCreate returns the user's wallet, creating it lazily on first need.
func (r *WalletRepository) GetOrCreate(ctx context.Context, userID int64) (*model.Wallet, error) {
	wallet, err := r.GetByUserID(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	newWallet := &model.Wallet{UserID: userID}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(newWallet).Error
	if err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, userID)
}

// ApplyDelta is the critical correctness primitive: one conditional UPDATE
// guarded by the version the caller read, the non-negativity of every
// resulting sub-balance, and the conservation of the delta itself.
// Concurrent writers to the same wallet serialize here; the loser sees
// ErrOptimisticLock or ErrInsufficientFunds.
//
// extra carries additional column updates (streak, freeze fields) that must
// land atomically with the balance change.
func (r *WalletRepository) ApplyDelta(ctx context.Context, tx *gorm.DB, userID int64, version int, delta model.BalanceDelta, extra map[string]interface{}) error {
	if !delta.Conserves() {
		return ErrNonConserving
	}
	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"balance":           gorm.Expr("balance + ?", delta.Balance),
		"available_balance": gorm.Expr("available_balance + ?", delta.Available),
		"locked":            gorm.Expr("locked + ?", delta.Locked),
		"locked_in_pockets": gorm.Expr("locked_in_pockets + ?", delta.Pockets),
		"referral_earnings": gorm.Expr("referral_earnings + ?", delta.ReferralEarnings),
		"version":           gorm.Expr("version + 1"),
	}
	for col, val := range extra {
		updates[col] = val
	}

	result := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("user_id = ? AND version = ?", userID, version).
		Where("available_balance + ? >= 0", delta.Available).
		Where("locked + ? >= 0", delta.Locked).
		Where("locked_in_pockets + ? >= 0", delta.Pockets).
		Where("referral_earnings + ? >= 0", delta.ReferralEarnings).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// Classify: gone, short on funds, or a concurrent writer won.
		wallet, err := r.GetByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if wallet.AvailableBalance+delta.Available < 0 ||
			wallet.Locked+delta.Locked < 0 ||
			wallet.LockedInPockets+delta.Pockets < 0 ||
			wallet.ReferralEarnings+delta.ReferralEarnings < 0 {
			return ErrInsufficientFunds
		}
		return ErrOptimisticLock
	}

	return nil
}

// SetSavingState updates the wallet-level streak bookkeeping without
// touching balances. Guarded by version like every other wallet write.
func (r *WalletRepository) SetSavingState(ctx context.Context, tx *gorm.DB, userID int64, version int, streak int, lastSaving time.Time, dailyAmount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("user_id = ? AND version = ?", userID, version).
		Updates(map[string]interface{}{
			"current_streak":         streak,
			"last_daily_saving_date": lastSaving,
			"daily_saving_amount":    dailyAmount,
			"version":                gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	return nil
}
