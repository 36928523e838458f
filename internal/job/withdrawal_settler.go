package job

import (
	"context"
	"log"
	"time"

	"savecircle/internal/config"
	"savecircle/internal/repository"
	"savecircle/internal/service"

	"gorm.io/gorm"
)

// WithdrawalSettler pushes pending withdrawals to the payout rail once the
// settle delay has passed. Settlement failures re-credit the wallet inside
// SettleWithdrawal, so each row needs at most one pass.
type WithdrawalSettler struct {
	db        *gorm.DB
	txnRepo   *repository.TransactionRepository
	walletSvc *service.WalletService
	cfg       *config.Config
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewWithdrawalSettler(db *gorm.DB, cfg *config.Config, walletSvc *service.WalletService) *WithdrawalSettler {
	return &WithdrawalSettler{
		db:        db,
		txnRepo:   repository.NewTransactionRepository(db),
		walletSvc: walletSvc,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		interval:  30 * time.Second,
		batchSize: 50,
	}
}

func (j *WithdrawalSettler) Start(ctx context.Context) {
	log.Println("[WithdrawalSettler] started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[WithdrawalSettler] context cancelled, exiting")
			return
		case <-j.stopCh:
			log.Println("[WithdrawalSettler] stopped")
			return
		case <-ticker.C:
			j.settlePendingWithdrawals(ctx)
		}
	}
}

func (j *WithdrawalSettler) Stop() {
	close(j.stopCh)
}

func (j *WithdrawalSettler) settlePendingWithdrawals(ctx context.Context) {
	cutoff := time.Now().Add(-time.Duration(j.cfg.Business.WithdrawalSettleDelayMinutes) * time.Minute)
	txns, err := j.txnRepo.ListPendingWithdrawals(ctx, cutoff, j.batchSize)
	if err != nil {
		log.Printf("[WithdrawalSettler] query pending withdrawals: %v", err)
		return
	}

	if len(txns) == 0 {
		return
	}

	log.Printf("[WithdrawalSettler] found %d withdrawals due for settlement", len(txns))

	for _, txn := range txns {
		if err := j.walletSvc.SettleWithdrawal(ctx, txn.TxnNo); err != nil {
			log.Printf("[WithdrawalSettler] settle failed: txnNo=%s, err=%v", txn.TxnNo, err)
			continue
		}
		log.Printf("[WithdrawalSettler] settled: txnNo=%s, userID=%d, amount=%d",
			txn.TxnNo, txn.UserID, txn.Amount)
	}
}
