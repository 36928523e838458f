package repository

import (
	"context"
	"fmt"
	"testing"

	"savecircle/internal/infrastructure/database"
	"savecircle/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedWallet(t *testing.T, repo *WalletRepository, userID, available int64) *model.Wallet {
	t.Helper()
	ctx := context.Background()
	w, err := repo.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	if available > 0 {
		err = repo.ApplyDelta(ctx, nil, userID, w.Version, model.BalanceDelta{
			Balance: available, Available: available,
		}, nil)
		require.NoError(t, err)
		w, err = repo.GetByUserID(ctx, userID)
		require.NoError(t, err)
	}
	return w
}

func TestApplyDeltaRejectsNonConserving(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	w := seedWallet(t, repo, 1, 10_000)

	err := repo.ApplyDelta(context.Background(), nil, 1, w.Version, model.BalanceDelta{
		Balance: 100, Available: 50, // 50 cents vanish
	}, nil)
	require.ErrorIs(t, err, ErrNonConserving)
}

func TestApplyDeltaClassifiesInsufficient(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	w := seedWallet(t, repo, 1, 5_000)

	err := repo.ApplyDelta(context.Background(), nil, 1, w.Version, model.BalanceDelta{
		Balance: -10_000, Available: -10_000,
	}, nil)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// Nothing changed.
	got, err := repo.GetByUserID(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, int64(5_000), got.AvailableBalance)
	require.Equal(t, w.Version, got.Version)
}

func TestApplyDeltaClassifiesStaleVersion(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	w := seedWallet(t, repo, 1, 10_000)

	// A concurrent writer wins the race.
	err := repo.ApplyDelta(context.Background(), nil, 1, w.Version, model.BalanceDelta{
		Balance: -1_000, Available: -1_000,
	}, nil)
	require.NoError(t, err)

	// The reader with the stale version loses.
	err = repo.ApplyDelta(context.Background(), nil, 1, w.Version, model.BalanceDelta{
		Balance: -1_000, Available: -1_000,
	}, nil)
	require.ErrorIs(t, err, ErrOptimisticLock)
}

func TestApplyDeltaSubBalancesGuardedIndependently(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	w := seedWallet(t, repo, 1, 10_000)

	// Balance is fine, but nothing is locked yet: releasing from locked must
	// fail even though the total could cover it.
	err := repo.ApplyDelta(context.Background(), nil, 1, w.Version, model.BalanceDelta{
		Available: 1_000, Locked: -1_000,
	}, nil)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestTxnStatusTransitionGuard(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	txn := &model.WalletTransaction{
		TxnNo:  "TXN-test-1",
		UserID: 1,
		Type:   model.TxnTypeWithdrawal,
		Status: model.TxnStatusPending,
		Amount: 1_000,
	}
	require.NoError(t, repo.Create(ctx, nil, txn))

	// Completed is terminal.
	require.NoError(t, repo.UpdateStatus(ctx, nil, txn.TxnNo, model.TxnStatusPending, model.TxnStatusCompleted, ""))
	require.ErrorIs(t,
		repo.UpdateStatus(ctx, nil, txn.TxnNo, model.TxnStatusCompleted, model.TxnStatusFailed, ""),
		ErrTxnStatusInvalid)

	// A transition whose WHERE no longer matches affects zero rows.
	require.ErrorIs(t,
		repo.UpdateStatus(ctx, nil, txn.TxnNo, model.TxnStatusPending, model.TxnStatusFailed, ""),
		ErrTxnStatusInvalid)
}

func TestSumRefundedCountsOnlyCompletedRefunds(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	rows := []*model.WalletTransaction{
		{TxnNo: "R1", UserID: 1, Type: model.TxnTypeRefund, Status: model.TxnStatusCompleted, Amount: 3_000, RelatedTxnNo: "ORIG"},
		{TxnNo: "R2", UserID: 1, Type: model.TxnTypeRefund, Status: model.TxnStatusFailed, Amount: 2_000, RelatedTxnNo: "ORIG"},
		{TxnNo: "R3", UserID: 1, Type: model.TxnTypeRefund, Status: model.TxnStatusCompleted, Amount: 1_000, RelatedTxnNo: "OTHER"},
	}
	for _, row := range rows {
		require.NoError(t, repo.Create(ctx, nil, row))
	}

	total, err := repo.SumRefunded(ctx, nil, "ORIG")
	require.NoError(t, err)
	require.Equal(t, int64(3_000), total)
}
