package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"savecircle/internal/config"
	"savecircle/internal/infrastructure/database"
	"savecircle/internal/infrastructure/lock"
	"savecircle/internal/model"
	"savecircle/internal/service/gateway"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	db       *gorm.DB
	cfg      *config.Config
	wallet   *WalletService
	plans    *PlanService
	groups   *GroupService
	disputes *DisputeService
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, gateway.StaticAuthorizer{}, gateway.StaticLimits{})
}

func newTestEnvWith(t *testing.T, auth gateway.Authorizer, limits gateway.LimitsProvider) *testEnv {
	t.Helper()
	// Per-test in-memory database to avoid cross-test interference.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{}
	config.ApplyBusinessDefaults(&cfg.Business)
	cfg.Kafka.Topic.WalletEvents = "savecircle.wallet.events.test"

	locks := lock.NewMemoryManager()
	wallet := NewWalletService(db, cfg, locks, auth, limits)

	return &testEnv{
		db:       db,
		cfg:      cfg,
		wallet:   wallet,
		plans:    NewPlanService(db, cfg, wallet),
		groups:   NewGroupService(db, cfg, locks, wallet),
		disputes: NewDisputeService(db, cfg, wallet),
	}
}

// credit funds a wallet directly, bypassing fees, so tests can start from
// round numbers.
func (e *testEnv) credit(t *testing.T, userID, amount int64) {
	t.Helper()
	ctx := context.Background()
	_, err := e.wallet.GetWallet(ctx, userID)
	require.NoError(t, err)
	err = e.db.Transaction(func(tx *gorm.DB) error {
		_, err := e.wallet.Post(ctx, tx, userID, Movement{
			Type:        model.TxnTypeDeposit,
			Amount:      amount,
			Delta:       model.BalanceDelta{Balance: amount, Available: amount},
			Description: "test funding",
		})
		return err
	})
	require.NoError(t, err)
}

func (e *testEnv) getWallet(t *testing.T, userID int64) *model.Wallet {
	t.Helper()
	w, err := e.wallet.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	return w
}

func requireConserved(t *testing.T, w *model.Wallet) {
	t.Helper()
	require.Equal(t, w.Balance, w.AvailableBalance+w.Locked+w.LockedInPockets,
		"conservation violated: balance=%d available=%d locked=%d pockets=%d",
		w.Balance, w.AvailableBalance, w.Locked, w.LockedInPockets)
}

// declineAuthorizer refuses every charge.
type declineAuthorizer struct {
	gateway.StaticAuthorizer
}

func (declineAuthorizer) Authorize(ctx context.Context, amount int64, paymentMethodID string) (*gateway.AuthResult, error) {
	return &gateway.AuthResult{Approved: false, DeclineReason: "card declined"}, nil
}

// failingPayout approves charges but cannot land outbound transfers.
type failingPayout struct {
	gateway.StaticAuthorizer
}

func (failingPayout) Payout(ctx context.Context, amount int64, destination string) (*gateway.PayoutResult, error) {
	return nil, errors.New("payout rail unavailable")
}

// cappedLimits simulates a KYC profile with daily caps.
type cappedLimits struct {
	depositCap  int64
	withdrawCap int64
	verified    bool
}

func (l cappedLimits) Limits(ctx context.Context, userID int64) (*gateway.Limits, error) {
	return &gateway.Limits{
		DailyDepositCap:    l.depositCap,
		DailyWithdrawalCap: l.withdrawCap,
		KYCVerified:        l.verified,
	}, nil
}

// freezeWindow is a convenience for tests asserting on FrozenUntil.
func freezeWindow(w *model.Wallet) time.Duration {
	if w.FrozenUntil == nil {
		return 0
	}
	return time.Until(*w.FrozenUntil)
}
