package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"savecircle/internal/config"
	"savecircle/internal/infrastructure/lock"
	"savecircle/internal/model"
	"savecircle/internal/repository"
	"savecircle/internal/service/gateway"
	"savecircle/pkg/idgen"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WalletService is the sole writer of wallet balances. Every mutation runs
// as: frozen check -> validation -> wallet lock -> one database transaction
// containing the balance delta, the ledger entry, and any outbox event.
// Nothing touches wallet columns outside this service.
type WalletService struct {
	db         *gorm.DB
	cfg        *config.Config
	locks      lock.Manager
	authorizer gateway.Authorizer
	limits     gateway.LimitsProvider

	walletRepo *repository.WalletRepository
	txnRepo    *repository.TransactionRepository
	outboxRepo *repository.OutboxRepository
}

func NewWalletService(db *gorm.DB, cfg *config.Config, locks lock.Manager, authorizer gateway.Authorizer, limits gateway.LimitsProvider) *WalletService {
	return &WalletService{
		db:         db,
		cfg:        cfg,
		locks:      locks,
		authorizer: authorizer,
		limits:     limits,
		walletRepo: repository.NewWalletRepository(db),
		txnRepo:    repository.NewTransactionRepository(db),
		outboxRepo: repository.NewOutboxRepository(db),
	}
}

// withWalletLock serializes all mutations of one user's wallet. Different
// users never contend here.
func (s *WalletService) withWalletLock(ctx context.Context, userID int64, fn func() error) error {
	handle, err := s.locks.Acquire(ctx, lock.WalletKey(userID), uuid.NewString())
	if err != nil {
		return fmt.Errorf("acquire wallet lock: %w", err)
	}
	defer handle.Unlock(ctx)
	return fn()
}

// Movement describes one ledger posting: the balance delta plus the entry
// that records it. Delta must conserve; Post snapshots balance_before/after
// under the same transaction.
type Movement struct {
	Type            string
	Status          string
	Amount          int64
	Fee             int64
	Net             int64
	Delta           model.BalanceDelta
	PlanID          *int64
	GroupID         *int64
	PaymentMethodID string
	Description     string
	Metadata        string
	RelatedTxnNo    string
	Extra           map[string]interface{} // extra wallet columns, same guarded UPDATE
	SkipFrozenCheck bool                   // system-driven credits ignore a freeze
}

// Post applies one movement inside the given transaction. Caller holds the
// wallet lock; the version guard in ApplyDelta catches anything that
// slipped past it.
func (s *WalletService) Post(ctx context.Context, tx *gorm.DB, userID int64, mv Movement) (*model.WalletTransaction, error) {
	wallet, err := s.walletRepo.Get(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if !mv.SkipFrozenCheck && wallet.IsFrozen(time.Now()) {
		return nil, ErrWalletFrozen
	}

	if mv.Status == "" {
		mv.Status = model.TxnStatusCompleted
	}
	if mv.Net == 0 && mv.Fee == 0 {
		mv.Net = mv.Amount
	}

	txn := &model.WalletTransaction{
		TxnNo:           idgen.GenerateTxnNo(),
		RelatedTxnNo:    mv.RelatedTxnNo,
		UserID:          userID,
		Type:            mv.Type,
		Status:          mv.Status,
		Amount:          mv.Amount,
		Currency:        "USD",
		Fee:             mv.Fee,
		NetAmount:       mv.Net,
		BalanceBefore:   wallet.Balance,
		BalanceAfter:    wallet.Balance + mv.Delta.Balance,
		PlanID:          mv.PlanID,
		GroupID:         mv.GroupID,
		PaymentMethodID: mv.PaymentMethodID,
		Description:     mv.Description,
		Metadata:        mv.Metadata,
	}

	if err := s.walletRepo.ApplyDelta(ctx, tx, userID, wallet.Version, mv.Delta, mv.Extra); err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return nil, ErrInsufficientBalance
		}
		return nil, err
	}

	if err := s.txnRepo.Create(ctx, tx, txn); err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}

	return txn, nil
}

// Emit writes an event into the outbox inside the same transaction as the
// movement it describes.
func (s *WalletService) Emit(ctx context.Context, tx *gorm.DB, eventType, key string, payload map[string]interface{}) error {
	payload["event"] = eventType
	payload["at"] = time.Now().Format(time.RFC3339)
	body, _ := json.Marshal(payload)

	return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: key,
		Topic:      s.cfg.Kafka.Topic.WalletEvents,
		EventType:  eventType,
		Payload:    string(body),
		Status:     model.OutboxStatusPending,
	})
}

// feeFor computes the processor fee: basis points of the gross amount,
// rounded half-up to the cent, plus the fixed component.
func (s *WalletService) feeFor(amount int64) int64 {
	bps := s.cfg.Business.FeeBasisPoints
	return (amount*bps+5000)/10000 + s.cfg.Business.FeeFixed
}

// ---------------------------------------------------------------------------
// Wallet lifecycle and queries
// ---------------------------------------------------------------------------

// CreateWallet creates a zero-balance wallet at signup. Fails if the user
// already has one.
func (s *WalletService) CreateWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	wallet := &model.Wallet{UserID: userID}
	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// GetWallet returns the user's wallet, creating it lazily on first need.
func (s *WalletService) GetWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	return s.walletRepo.GetOrCreate(ctx, userID)
}

func (s *WalletService) ListTransactions(ctx context.Context, userID int64, filter repository.TxnFilter, page, pageSize int) ([]*model.WalletTransaction, int64, error) {
	return s.txnRepo.ListByUserID(ctx, userID, filter, page, pageSize)
}

// ---------------------------------------------------------------------------
// Deposit
// ---------------------------------------------------------------------------

// Deposit charges the payment method and credits the net amount (gross
// minus fee) to balance and available_balance. The authorizer's answer is
// recorded in the entry's metadata either way; a decline records a FAILED
// entry with no balance effect.
func (s *WalletService) Deposit(ctx context.Context, userID int64, amount int64, paymentMethodID string) (*model.WalletTransaction, error) {
	b := &s.cfg.Business
	if amount < b.DepositMin || amount > b.DepositMax {
		return nil, ErrInvalidAmount
	}

	limits, err := s.limits.Limits(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch limits: %w", err)
	}
	if limits.DailyDepositCap > 0 {
		// Early check so we never authorize a charge the cap will refuse;
		// the binding check runs again under the wallet lock below.
		today, err := s.txnRepo.SumCompletedByTypeSince(ctx, nil, userID, model.TxnTypeDeposit, startOfDay(time.Now()))
		if err != nil {
			return nil, err
		}
		if today+amount > limits.DailyDepositCap {
			return nil, ErrLimitExceeded
		}
	}

	// Frozen check before charging the card: never authorize money we
	// cannot credit.
	wallet, err := s.walletRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if wallet.IsFrozen(time.Now()) {
		return nil, ErrWalletFrozen
	}

	auth, err := s.authorizer.Authorize(ctx, amount, paymentMethodID)
	if err != nil {
		return nil, fmt.Errorf("payment authorizer: %w", err)
	}

	fee := s.feeFor(amount)
	net := amount - fee
	meta, _ := json.Marshal(map[string]string{
		"auth_code":      auth.AuthCode,
		"decline_reason": auth.DeclineReason,
	})

	if !auth.Approved {
		// Record the decline for the audit trail; no balance effect.
		failed := &model.WalletTransaction{
			TxnNo:           idgen.GenerateTxnNo(),
			UserID:          userID,
			Type:            model.TxnTypeDeposit,
			Status:          model.TxnStatusFailed,
			Amount:          amount,
			Currency:        "USD",
			Fee:             fee,
			NetAmount:       net,
			BalanceBefore:   wallet.Balance,
			BalanceAfter:    wallet.Balance,
			PaymentMethodID: paymentMethodID,
			Description:     "deposit declined",
			Metadata:        string(meta),
		}
		if err := s.txnRepo.Create(ctx, nil, failed); err != nil {
			log.Printf("[WalletService] record declined deposit: %v", err)
		}
		return nil, ErrAuthorizationDeclined
	}

	var txn *model.WalletTransaction
	err = s.withWalletLock(ctx, userID, func() error {
		return runInTxWithRetry(ctx, s.db, b.BalanceRetryMax, func(tx *gorm.DB) error {
			if limits.DailyDepositCap > 0 {
				today, err := s.txnRepo.SumCompletedByTypeSince(ctx, tx, userID, model.TxnTypeDeposit, startOfDay(time.Now()))
				if err != nil {
					return err
				}
				if today+amount > limits.DailyDepositCap {
					return ErrLimitExceeded
				}
			}
			var postErr error
			txn, postErr = s.Post(ctx, tx, userID, Movement{
				Type:            model.TxnTypeDeposit,
				Amount:          amount,
				Fee:             fee,
				Net:             net,
				Delta:           model.BalanceDelta{Balance: net, Available: net},
				PaymentMethodID: paymentMethodID,
				Description:     "wallet deposit",
				Metadata:        string(meta),
			})
			return postErr
		})
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ---------------------------------------------------------------------------
// Withdraw
// ---------------------------------------------------------------------------

// Withdraw debits available funds immediately and records a PENDING entry;
// the settler job later pushes the payout through the authorizer and lands
// the entry in COMPLETED or FAILED (with a compensating re-credit).
func (s *WalletService) Withdraw(ctx context.Context, userID int64, amount int64, destination string) (*model.WalletTransaction, error) {
	b := &s.cfg.Business
	if amount < b.WithdrawMin || amount > b.WithdrawMax {
		return nil, ErrInvalidAmount
	}

	limits, err := s.limits.Limits(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch limits: %w", err)
	}
	if amount > b.KYCWithdrawalThreshold && !limits.KYCVerified {
		return nil, ErrKYCRequired
	}

	var txn *model.WalletTransaction
	err = s.withWalletLock(ctx, userID, func() error {
		return runInTxWithRetry(ctx, s.db, b.BalanceRetryMax, func(tx *gorm.DB) error {
			if limits.DailyWithdrawalCap > 0 {
				// Summed under the lock so two in-flight withdrawals share
				// the cap; pending entries count until they fail or cancel.
				today, err := s.txnRepo.SumActiveByTypeSince(ctx, tx, userID, model.TxnTypeWithdrawal, startOfDay(time.Now()))
				if err != nil {
					return err
				}
				if today+amount > limits.DailyWithdrawalCap {
					return ErrLimitExceeded
				}
			}
			var postErr error
			txn, postErr = s.Post(ctx, tx, userID, Movement{
				Type:            model.TxnTypeWithdrawal,
				Status:          model.TxnStatusPending,
				Amount:          amount,
				Delta:           model.BalanceDelta{Balance: -amount, Available: -amount},
				PaymentMethodID: destination,
				Description:     "wallet withdrawal",
			})
			return postErr
		})
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// SettleWithdrawal resolves one pending withdrawal. Failure re-credits the
// wallet with a compensating entry in the same transaction that marks the
// withdrawal FAILED, so money is never lost between the two steps.
func (s *WalletService) SettleWithdrawal(ctx context.Context, txnNo string) error {
	txn, err := s.txnRepo.GetByTxnNo(ctx, txnNo)
	if err != nil {
		return err
	}
	if txn.Type != model.TxnTypeWithdrawal || txn.Status != model.TxnStatusPending {
		return repository.ErrTxnStatusInvalid
	}

	payout, payoutErr := s.authorizer.Payout(ctx, txn.Amount, txn.PaymentMethodID)

	return s.withWalletLock(ctx, txn.UserID, func() error {
		return runInTxWithRetry(ctx, s.db, s.cfg.Business.BalanceRetryMax, func(tx *gorm.DB) error {
			if payoutErr != nil {
				if err := s.txnRepo.UpdateStatus(ctx, tx, txnNo, model.TxnStatusPending, model.TxnStatusFailed, ""); err != nil {
					return err
				}
				// Compensating re-credit: the debit happened at request
				// time, so a failed payout must hand the funds back.
				_, err := s.Post(ctx, tx, txn.UserID, Movement{
					Type:            model.TxnTypeRefund,
					Amount:          txn.Amount,
					Delta:           model.BalanceDelta{Balance: txn.Amount, Available: txn.Amount},
					RelatedTxnNo:    txnNo,
					Description:     "withdrawal failed, funds returned",
					SkipFrozenCheck: true,
				})
				if err != nil {
					return err
				}
				return s.Emit(ctx, tx, model.EventWithdrawalSettled, txnNo, map[string]interface{}{
					"txn_no":  txnNo,
					"user_id": txn.UserID,
					"status":  model.TxnStatusFailed,
				})
			}

			meta, _ := json.Marshal(map[string]string{
				"transfer_id":       payout.TransferID,
				"estimated_arrival": payout.EstimatedArrival.Format(time.RFC3339),
			})
			if err := s.txnRepo.UpdateStatus(ctx, tx, txnNo, model.TxnStatusPending, model.TxnStatusCompleted, string(meta)); err != nil {
				return err
			}
			return s.Emit(ctx, tx, model.EventWithdrawalSettled, txnNo, map[string]interface{}{
				"txn_no":      txnNo,
				"user_id":     txn.UserID,
				"status":      model.TxnStatusCompleted,
				"transfer_id": payout.TransferID,
			})
		})
	})
}

// CancelWithdrawal cancels a still-pending withdrawal and hands the funds
// back. Cancellation is a compensating entry, not an edit of history.
func (s *WalletService) CancelWithdrawal(ctx context.Context, userID int64, txnNo string) error {
	txn, err := s.txnRepo.GetByTxnNo(ctx, txnNo)
	if err != nil {
		return err
	}
	if txn.UserID != userID || txn.Type != model.TxnTypeWithdrawal || txn.Status != model.TxnStatusPending {
		return repository.ErrTxnStatusInvalid
	}

	return s.withWalletLock(ctx, userID, func() error {
		return runInTxWithRetry(ctx, s.db, s.cfg.Business.BalanceRetryMax, func(tx *gorm.DB) error {
			if err := s.txnRepo.UpdateStatus(ctx, tx, txnNo, model.TxnStatusPending, model.TxnStatusCancelled, ""); err != nil {
				return err
			}
			_, err := s.Post(ctx, tx, userID, Movement{
				Type:            model.TxnTypeRefund,
				Amount:          txn.Amount,
				Delta:           model.BalanceDelta{Balance: txn.Amount, Available: txn.Amount},
				RelatedTxnNo:    txnNo,
				Description:     "withdrawal cancelled, funds returned",
				SkipFrozenCheck: true,
			})
			return err
		})
	})
}

// ---------------------------------------------------------------------------
// Reserve moves (groups and pockets)
// ---------------------------------------------------------------------------

// LockForGroup moves available funds into the locked bucket, attributed to
// a group. Called by the group engine under the member's wallet lock.
func (s *WalletService) LockForGroup(ctx context.Context, tx *gorm.DB, userID, groupID int64, amount int64) (*model.WalletTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.Post(ctx, tx, userID, Movement{
		Type:        model.TxnTypeGroupContrib,
		Amount:      amount,
		Delta:       model.BalanceDelta{Available: -amount, Locked: amount},
		GroupID:     &groupID,
		Description: "group contribution locked",
	})
}

// UnlockFromGroup moves group-attributed locked funds back to available.
// Used for dissolution refunds.
func (s *WalletService) UnlockFromGroup(ctx context.Context, tx *gorm.DB, userID, groupID int64, amount int64) (*model.WalletTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.Post(ctx, tx, userID, Movement{
		Type:            model.TxnTypeRefund,
		Amount:          amount,
		Delta:           model.BalanceDelta{Available: amount, Locked: -amount},
		GroupID:         &groupID,
		Description:     "group dissolved, contribution returned",
		SkipFrozenCheck: true,
	})
}

// LockForPocket reserves available funds inside a sub-goal pocket.
func (s *WalletService) LockForPocket(ctx context.Context, userID int64, amount int64, pocketName string) (*model.WalletTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var txn *model.WalletTransaction
	err := s.withWalletLock(ctx, userID, func() error {
		return runInTxWithRetry(ctx, s.db, s.cfg.Business.BalanceRetryMax, func(tx *gorm.DB) error {
			var postErr error
			txn, postErr = s.Post(ctx, tx, userID, Movement{
				Type:        model.TxnTypePocketLock,
				Amount:      amount,
				Delta:       model.BalanceDelta{Available: -amount, Pockets: amount},
				Description: fmt.Sprintf("locked into pocket %q", pocketName),
			})
			return postErr
		})
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// UnlockFromPocket releases pocket funds back to available.
func (s *WalletService) UnlockFromPocket(ctx context.Context, userID int64, amount int64, pocketName string) (*model.WalletTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var txn *model.WalletTransaction
	err := s.withWalletLock(ctx, userID, func() error {
		return runInTxWithRetry(ctx, s.db, s.cfg.Business.BalanceRetryMax, func(tx *gorm.DB) error {
			var postErr error
			txn, postErr = s.Post(ctx, tx, userID, Movement{
				Type:        model.TxnTypePocketRelease,
				Amount:      amount,
				Delta:       model.BalanceDelta{Available: amount, Pockets: -amount},
				Description: fmt.Sprintf("released from pocket %q", pocketName),
			})
			return postErr
		})
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ---------------------------------------------------------------------------
// Freeze / unfreeze
// ---------------------------------------------------------------------------

// Freeze blocks all balance-mutating operations for the duration and
// returns the verification code required to lift it early. Recorded as a
// zero-amount ledger entry.
func (s *WalletService) Freeze(ctx context.Context, userID int64, reason string, durationHours int) (string, error) {
	if durationHours <= 0 {
		durationHours = s.cfg.Business.DefaultFreezeHours
	}
	until := time.Now().Add(time.Duration(durationHours) * time.Hour)
	code := idgen.GenerateVerificationCode()

	err := s.withWalletLock(ctx, userID, func() error {
		if _, err := s.walletRepo.GetOrCreate(ctx, userID); err != nil {
			return err
		}
		return runInTxWithRetry(ctx, s.db, s.cfg.Business.BalanceRetryMax, func(tx *gorm.DB) error {
			_, err := s.Post(ctx, tx, userID, Movement{
				Type:        model.TxnTypeFreeze,
				Description: "wallet frozen: " + reason,
				Extra: map[string]interface{}{
					"frozen_until":  until,
					"freeze_reason": reason,
					"unfreeze_code": code,
				},
				SkipFrozenCheck: true, // re-freezing extends the window
			})
			if err != nil {
				return err
			}
			return s.Emit(ctx, tx, model.EventWalletFrozen, fmt.Sprintf("%d", userID), map[string]interface{}{
				"user_id":      userID,
				"reason":       reason,
				"frozen_until": until.Format(time.RFC3339),
			})
		})
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

// Unfreeze lifts a freeze given the verification code issued at freeze
// time. The only mutating operation allowed on a frozen wallet.
func (s *WalletService) Unfreeze(ctx context.Context, userID int64, verificationCode string) error {
	return s.withWalletLock(ctx, userID, func() error {
		wallet, err := s.walletRepo.GetByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if !wallet.IsFrozen(time.Now()) {
			return nil // already lapsed
		}
		if wallet.UnfreezeCode == "" || wallet.UnfreezeCode != verificationCode {
			return ErrInvalidVerificationCode
		}
		return runInTxWithRetry(ctx, s.db, s.cfg.Business.BalanceRetryMax, func(tx *gorm.DB) error {
			_, err := s.Post(ctx, tx, userID, Movement{
				Type:        model.TxnTypeUnfreeze,
				Description: "wallet unfrozen",
				Extra: map[string]interface{}{
					"frozen_until":  nil,
					"freeze_reason": "",
					"unfreeze_code": "",
				},
				SkipFrozenCheck: true,
			})
			return err
		})
	})
}

// ---------------------------------------------------------------------------
// Refund
// ---------------------------------------------------------------------------

// Refund creates an offsetting entry reversing the original's balance
// effect, capped at the original amount minus prior refunds. Only external
// money movements (deposits, withdrawals) are refundable; internal reserve
// moves have their own release paths.
func (s *WalletService) Refund(ctx context.Context, originalTxnNo string, amount int64) (*model.WalletTransaction, error) {
	original, err := s.txnRepo.GetByTxnNo(ctx, originalTxnNo)
	if err != nil {
		return nil, err
	}
	if original.Status != model.TxnStatusCompleted {
		return nil, repository.ErrTxnStatusInvalid
	}

	var delta model.BalanceDelta
	switch original.Type {
	case model.TxnTypeDeposit:
		delta = model.BalanceDelta{Balance: -amount, Available: -amount}
	case model.TxnTypeWithdrawal:
		delta = model.BalanceDelta{Balance: amount, Available: amount}
	default:
		return nil, ErrNotRefundable
	}

	var txn *model.WalletTransaction
	err = s.withWalletLock(ctx, original.UserID, func() error {
		return runInTxWithRetry(ctx, s.db, s.cfg.Business.BalanceRetryMax, func(tx *gorm.DB) error {
			refunded, err := s.txnRepo.SumRefunded(ctx, tx, originalTxnNo)
			if err != nil {
				return err
			}
			if amount <= 0 || amount > original.Amount-refunded {
				return ErrAmountExceedsOriginal
			}
			var postErr error
			txn, postErr = s.Post(ctx, tx, original.UserID, Movement{
				Type:            model.TxnTypeRefund,
				Amount:          amount,
				Delta:           delta,
				RelatedTxnNo:    originalTxnNo,
				Description:     "refund of " + originalTxnNo,
				SkipFrozenCheck: true,
			})
			return postErr
		})
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ---------------------------------------------------------------------------
// Escrow holds (chargebacks)
// ---------------------------------------------------------------------------

// PlaceHold reserves disputed funds in a HELD authorization entry pending
// review. Released or captured when the dispute resolves.
func (s *WalletService) PlaceHold(ctx context.Context, userID int64, amount int64, reason, relatedTxnNo string) (*model.WalletTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var txn *model.WalletTransaction
	err := s.withWalletLock(ctx, userID, func() error {
		return runInTxWithRetry(ctx, s.db, s.cfg.Business.BalanceRetryMax, func(tx *gorm.DB) error {
			var postErr error
			txn, postErr = s.Post(ctx, tx, userID, Movement{
				Type:            model.TxnTypeAuthorization,
				Status:          model.TxnStatusHeld,
				Amount:          amount,
				Delta:           model.BalanceDelta{Available: -amount, Locked: amount},
				RelatedTxnNo:    relatedTxnNo,
				Description:     "escrow hold: " + reason,
				SkipFrozenCheck: true,
			})
			return postErr
		})
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ReleaseHold resolves a hold in the user's favor: funds return to
// available and the entry lands CANCELLED.
func (s *WalletService) ReleaseHold(ctx context.Context, holdTxnNo string) error {
	return s.resolveHold(ctx, holdTxnNo, model.TxnStatusCancelled)
}

// CaptureHold resolves a hold against the user: the reserved funds leave
// the wallet and the entry lands COMPLETED.
func (s *WalletService) CaptureHold(ctx context.Context, holdTxnNo string) error {
	return s.resolveHold(ctx, holdTxnNo, model.TxnStatusCompleted)
}

func (s *WalletService) resolveHold(ctx context.Context, holdTxnNo, toStatus string) error {
	hold, err := s.txnRepo.GetByTxnNo(ctx, holdTxnNo)
	if err != nil {
		return err
	}
	if hold.Type != model.TxnTypeAuthorization || hold.Status != model.TxnStatusHeld {
		return repository.ErrTxnStatusInvalid
	}

	var delta model.BalanceDelta
	var desc string
	if toStatus == model.TxnStatusCancelled {
		delta = model.BalanceDelta{Available: hold.Amount, Locked: -hold.Amount}
		desc = "hold released"
	} else {
		delta = model.BalanceDelta{Balance: -hold.Amount, Locked: -hold.Amount}
		desc = "hold captured"
	}

	return s.withWalletLock(ctx, hold.UserID, func() error {
		return runInTxWithRetry(ctx, s.db, s.cfg.Business.BalanceRetryMax, func(tx *gorm.DB) error {
			if err := s.txnRepo.UpdateStatus(ctx, tx, holdTxnNo, model.TxnStatusHeld, toStatus, ""); err != nil {
				return err
			}
			_, err := s.Post(ctx, tx, hold.UserID, Movement{
				Type:            model.TxnTypeAuthorization,
				Amount:          hold.Amount,
				Delta:           delta,
				RelatedTxnNo:    holdTxnNo,
				Description:     desc,
				SkipFrozenCheck: true,
			})
			return err
		})
	})
}

// ---------------------------------------------------------------------------
// Referral earnings
// ---------------------------------------------------------------------------

// CreditReferral accrues a referral bonus into the separate earnings
// bucket. Sits outside the conservation equation until claimed.
func (s *WalletService) CreditReferral(ctx context.Context, userID int64, amount int64, description string) (*model.WalletTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var txn *model.WalletTransaction
	err := s.withWalletLock(ctx, userID, func() error {
		if _, err := s.walletRepo.GetOrCreate(ctx, userID); err != nil {
			return err
		}
		return runInTxWithRetry(ctx, s.db, s.cfg.Business.BalanceRetryMax, func(tx *gorm.DB) error {
			var postErr error
			txn, postErr = s.Post(ctx, tx, userID, Movement{
				Type:            model.TxnTypeReferralBonus,
				Amount:          amount,
				Delta:           model.BalanceDelta{ReferralEarnings: amount},
				Description:     description,
				SkipFrozenCheck: true,
			})
			return postErr
		})
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ClaimReferral merges the full referral earnings bucket into the spendable
// balance.
func (s *WalletService) ClaimReferral(ctx context.Context, userID int64) (*model.WalletTransaction, error) {
	var txn *model.WalletTransaction
	err := s.withWalletLock(ctx, userID, func() error {
		return runInTxWithRetry(ctx, s.db, s.cfg.Business.BalanceRetryMax, func(tx *gorm.DB) error {
			wallet, err := s.walletRepo.Get(ctx, tx, userID)
			if err != nil {
				return err
			}
			earnings := wallet.ReferralEarnings
			if earnings <= 0 {
				return ErrInvalidAmount
			}
			txn, err = s.Post(ctx, tx, userID, Movement{
				Type:        model.TxnTypeReferralClaim,
				Amount:      earnings,
				Delta:       model.BalanceDelta{Balance: earnings, Available: earnings, ReferralEarnings: -earnings},
				Description: "referral earnings claimed",
			})
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
