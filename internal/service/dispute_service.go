package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"savecircle/internal/config"
	"savecircle/internal/model"
	"savecircle/internal/repository"
	"savecircle/pkg/idgen"

	"gorm.io/gorm"
)

// DisputeService records challenges against ledger entries and drives them
// to resolution. Filing never moves money; resolution in the user's favor
// refunds through WalletService, and chargebacks carry an escrow hold from
// filing to resolution.
type DisputeService struct {
	db        *gorm.DB
	cfg       *config.Config
	walletSvc *WalletService

	disputeRepo *repository.DisputeRepository
	txnRepo     *repository.TransactionRepository
}

func NewDisputeService(db *gorm.DB, cfg *config.Config, walletSvc *WalletService) *DisputeService {
	return &DisputeService{
		db:          db,
		cfg:         cfg,
		walletSvc:   walletSvc,
		disputeRepo: repository.NewDisputeRepository(db),
		txnRepo:     repository.NewTransactionRepository(db),
	}
}

// File opens a user dispute against a transaction. Response deadline is 45
// days out (configurable).
func (s *DisputeService) File(ctx context.Context, userID int64, txnNo, reason, description string) (*model.Dispute, error) {
	txn, err := s.txnRepo.GetByTxnNo(ctx, txnNo)
	if err != nil {
		return nil, err
	}
	if txn.UserID != userID {
		return nil, repository.ErrTxnNotFound
	}

	dispute := &model.Dispute{
		DisputeNo:   idgen.GenerateDisputeNo(),
		UserID:      userID,
		TxnNo:       txnNo,
		Origin:      model.DisputeOriginUser,
		Status:      model.DisputeStatusOpen,
		Reason:      reason,
		Description: description,
		Deadline:    time.Now().AddDate(0, 0, s.cfg.Business.DisputeDeadlineDays),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.disputeRepo.Create(ctx, tx, dispute); err != nil {
			return err
		}
		return s.walletSvc.Emit(ctx, tx, model.EventDisputeOpened, dispute.DisputeNo, map[string]interface{}{
			"dispute_no": dispute.DisputeNo,
			"user_id":    userID,
			"txn_no":     txnNo,
			"origin":     dispute.Origin,
		})
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

// FileChargeback records a payment-network chargeback: a 10-day response
// window and an immediate escrow hold on the disputed amount.
func (s *DisputeService) FileChargeback(ctx context.Context, userID int64, txnNo, reason string) (*model.Dispute, error) {
	txn, err := s.txnRepo.GetByTxnNo(ctx, txnNo)
	if err != nil {
		return nil, err
	}
	if txn.UserID != userID {
		return nil, repository.ErrTxnNotFound
	}

	hold, err := s.walletSvc.PlaceHold(ctx, userID, txn.Amount, "chargeback "+reason, txnNo)
	if err != nil {
		return nil, err
	}

	dispute := &model.Dispute{
		DisputeNo: idgen.GenerateDisputeNo(),
		UserID:    userID,
		TxnNo:     txnNo,
		HoldTxnNo: hold.TxnNo,
		Origin:    model.DisputeOriginNetwork,
		Status:    model.DisputeStatusOpen,
		Reason:    reason,
		Deadline:  time.Now().AddDate(0, 0, s.cfg.Business.ChargebackDeadlineDays),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.disputeRepo.Create(ctx, tx, dispute); err != nil {
			return err
		}
		return s.walletSvc.Emit(ctx, tx, model.EventDisputeOpened, dispute.DisputeNo, map[string]interface{}{
			"dispute_no": dispute.DisputeNo,
			"user_id":    userID,
			"txn_no":     txnNo,
			"origin":     dispute.Origin,
		})
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

func (s *DisputeService) Get(ctx context.Context, disputeNo string) (*model.Dispute, error) {
	return s.disputeRepo.GetByDisputeNo(ctx, disputeNo)
}

func (s *DisputeService) ListForUser(ctx context.Context, userID int64) ([]*model.Dispute, error) {
	return s.disputeRepo.ListByUserID(ctx, userID)
}

// AttachEvidence appends evidence while the dispute is still open.
func (s *DisputeService) AttachEvidence(ctx context.Context, disputeNo, evidence string) error {
	dispute, err := s.disputeRepo.GetByDisputeNo(ctx, disputeNo)
	if err != nil {
		return err
	}
	if dispute.Status != model.DisputeStatusOpen && dispute.Status != model.DisputeStatusUnderReview {
		return ErrDisputeClosed
	}
	if dispute.Status == model.DisputeStatusOpen {
		return s.disputeRepo.UpdateStatus(ctx, nil, disputeNo, dispute.Status, model.DisputeStatusUnderReview, evidence)
	}
	return s.disputeRepo.SetEvidence(ctx, disputeNo, evidence)
}

// Resolve closes the dispute. In the user's favor: a user dispute refunds
// the disputed transaction, a chargeback releases its hold back to the
// user. Against the user: a chargeback's hold is captured by the network;
// a plain dispute just closes. Money-movement failures after the status
// change are logged and retried out of band, never silently dropped.
func (s *DisputeService) Resolve(ctx context.Context, disputeNo string, inFavorOfUser bool) error {
	dispute, err := s.disputeRepo.GetByDisputeNo(ctx, disputeNo)
	if err != nil {
		return err
	}
	if dispute.Status != model.DisputeStatusOpen && dispute.Status != model.DisputeStatusUnderReview {
		return ErrDisputeClosed
	}

	target := model.DisputeStatusRejected
	if inFavorOfUser {
		target = model.DisputeStatusResolved
	}
	if err := s.disputeRepo.UpdateStatus(ctx, nil, disputeNo, dispute.Status, target, ""); err != nil {
		return err
	}

	switch {
	case dispute.Origin == model.DisputeOriginNetwork && inFavorOfUser:
		if err := s.walletSvc.ReleaseHold(ctx, dispute.HoldTxnNo); err != nil {
			log.Printf("[DisputeService] release hold %s: %v", dispute.HoldTxnNo, err)
			return fmt.Errorf("dispute resolved but hold release failed: %w", err)
		}
	case dispute.Origin == model.DisputeOriginNetwork && !inFavorOfUser:
		if err := s.walletSvc.CaptureHold(ctx, dispute.HoldTxnNo); err != nil {
			log.Printf("[DisputeService] capture hold %s: %v", dispute.HoldTxnNo, err)
			return fmt.Errorf("dispute rejected but hold capture failed: %w", err)
		}
	case dispute.Origin == model.DisputeOriginUser && inFavorOfUser:
		txn, err := s.txnRepo.GetByTxnNo(ctx, dispute.TxnNo)
		if err != nil {
			return err
		}
		if _, err := s.walletSvc.Refund(ctx, dispute.TxnNo, txn.Amount); err != nil {
			log.Printf("[DisputeService] refund for dispute %s: %v", disputeNo, err)
			return fmt.Errorf("dispute resolved but refund failed: %w", err)
		}
	}
	return nil
}
