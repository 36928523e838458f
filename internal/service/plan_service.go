package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"savecircle/internal/config"
	"savecircle/internal/model"
	"savecircle/internal/repository"

	"gorm.io/gorm"
)

// PlanService drives the individual savings-plan lifecycle and the
// daily/weekly contribution trigger. It never touches wallet columns
// directly; every money move goes through WalletService.
type PlanService struct {
	db        *gorm.DB
	cfg       *config.Config
	walletSvc *WalletService

	planRepo        *repository.PlanRepository
	txnRepo         *repository.TransactionRepository
	achievementRepo *repository.AchievementRepository
}

func NewPlanService(db *gorm.DB, cfg *config.Config, walletSvc *WalletService) *PlanService {
	return &PlanService{
		db:              db,
		cfg:             cfg,
		walletSvc:       walletSvc,
		planRepo:        repository.NewPlanRepository(db),
		txnRepo:         repository.NewTransactionRepository(db),
		achievementRepo: repository.NewAchievementRepository(db),
	}
}

type CreatePlanRequest struct {
	UserID               int64
	Name                 string
	SavingsMode          string
	DailyAmount          int64
	WeeklyAmount         int64
	TotalTargetAmount    int64
	TargetCompletionDate *time.Time
}

func (s *PlanService) Create(ctx context.Context, req *CreatePlanRequest) (*model.SavingsPlan, error) {
	if req.TotalTargetAmount <= 0 {
		return nil, ErrInvalidAmount
	}
	mode := req.SavingsMode
	if mode == "" {
		mode = model.SavingsModeDaily
	}
	if mode == model.SavingsModeDaily && req.DailyAmount <= 0 {
		return nil, ErrInvalidAmount
	}
	if mode == model.SavingsModeWeekly && req.WeeklyAmount <= 0 {
		return nil, ErrInvalidAmount
	}

	plan := &model.SavingsPlan{
		UserID:               req.UserID,
		Name:                 req.Name,
		Status:               model.PlanStatusActive,
		SavingsMode:          mode,
		DailyAmount:          req.DailyAmount,
		WeeklyAmount:         req.WeeklyAmount,
		TotalTargetAmount:    req.TotalTargetAmount,
		StartDate:            time.Now(),
		TargetCompletionDate: req.TargetCompletionDate,
	}
	if err := s.planRepo.Create(ctx, nil, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *PlanService) Get(ctx context.Context, userID, planID int64) (*model.SavingsPlan, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.UserID != userID {
		return nil, ErrPlanNotOwned
	}
	return plan, nil
}

func (s *PlanService) List(ctx context.Context, userID int64) ([]*model.SavingsPlan, error) {
	return s.planRepo.ListByUserID(ctx, userID)
}

// ContributeDaily posts one contribution for the current calendar day.
// Idempotent per (plan, day): a second call the same day fails with
// ErrAlreadyContributedToday and moves nothing. Contributed funds are
// credited to balance and reserved under locked.
func (s *PlanService) ContributeDaily(ctx context.Context, userID, planID int64) (*model.WalletTransaction, error) {
	plan, err := s.Get(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status != model.PlanStatusActive {
		return nil, ErrPlanNotActive
	}

	amount := plan.ContributionAmount()
	if amount <= 0 {
		// Fall back to the wallet-level default saving amount.
		wallet, err := s.walletSvc.GetWallet(ctx, userID)
		if err != nil {
			return nil, err
		}
		amount = wallet.DailySavingAmount
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now()
	streak, longest := nextStreak(plan, now)

	var txn *model.WalletTransaction
	err = s.walletSvc.withWalletLock(ctx, userID, func() error {
		wallet, err := s.walletSvc.GetWallet(ctx, userID)
		if err != nil {
			return err
		}
		// The wallet streak counts consecutive saving days across all
		// plans, so it advances off the wallet's own last saving date,
		// not the contributing plan's.
		walletStreak := nextWalletStreak(wallet, now)
		return runInTxWithRetry(ctx, s.db, s.cfg.Business.BalanceRetryMax, func(tx *gorm.DB) error {
			contributed, err := s.txnRepo.HasCompletedContributionOn(ctx, tx, userID, planID, now)
			if err != nil {
				return err
			}
			if contributed {
				return ErrAlreadyContributedToday
			}

			txn, err = s.walletSvc.Post(ctx, tx, userID, Movement{
				Type:        model.TxnTypeContribution,
				Amount:      amount,
				Delta:       model.BalanceDelta{Balance: amount, Locked: amount},
				PlanID:      &planID,
				Description: fmt.Sprintf("daily saving into %q", plan.Name),
				Extra: map[string]interface{}{
					"current_streak":         walletStreak,
					"last_daily_saving_date": now,
				},
			})
			if err != nil {
				return err
			}

			if err := s.planRepo.ApplyContribution(ctx, tx, planID, amount, streak, longest, now); err != nil {
				return err
			}

			return s.walletSvc.Emit(ctx, tx, model.EventContributionCompleted, txn.TxnNo, map[string]interface{}{
				"user_id": userID,
				"plan_id": planID,
				"amount":  amount,
				"streak":  streak,
			})
		})
	})
	if err != nil {
		return nil, err
	}

	// Downstream of a completed movement: target check and achievements
	// must never roll the money back. Failures are logged and re-evaluated
	// on the next contribution.
	if plan.CurrentBalance+amount >= plan.TotalTargetAmount {
		if err := s.Complete(ctx, userID, planID); err != nil && !errors.Is(err, ErrTargetNotReached) {
			log.Printf("[PlanService] plan %d auto-complete: %v", planID, err)
		}
	}

	return txn, nil
}

// nextStreak computes the plan streak for a contribution at now: a
// contribution on the day after the previous one extends the streak,
// anything else restarts at 1.
func nextStreak(plan *model.SavingsPlan, now time.Time) (streak, longest int) {
	streak = 1
	if plan.LastContributionDate != nil {
		last := *plan.LastContributionDate
		yesterday := startOfDay(now).AddDate(0, 0, -1)
		if startOfDay(last).Equal(yesterday) {
			streak = plan.StreakDays + 1
		}
	}
	longest = plan.LongestStreak
	if streak > longest {
		longest = streak
	}
	return streak, longest
}

// nextWalletStreak is the wallet-level counterpart: any plan's completed
// contribution keeps the chain alive, and a second saving the same day
// leaves it unchanged.
func nextWalletStreak(w *model.Wallet, now time.Time) int {
	if w.LastDailySavingDate != nil {
		last := startOfDay(*w.LastDailySavingDate)
		today := startOfDay(now)
		if last.Equal(today) {
			return w.CurrentStreak
		}
		if last.Equal(today.AddDate(0, 0, -1)) {
			return w.CurrentStreak + 1
		}
	}
	return 1
}

// Pause sets the plan aside and resets streak_days to 0. The reset on
// pause (rather than on missed day) is deliberate, inherited product
// behavior; resume does not restore the prior streak.
func (s *PlanService) Pause(ctx context.Context, userID, planID int64, reason string) error {
	if _, err := s.Get(ctx, userID, planID); err != nil {
		return err
	}
	return s.planRepo.UpdateStatus(ctx, nil, planID, model.PlanStatusActive, model.PlanStatusPaused, map[string]interface{}{
		"streak_days":  0,
		"pause_reason": reason,
	})
}

func (s *PlanService) Resume(ctx context.Context, userID, planID int64) error {
	if _, err := s.Get(ctx, userID, planID); err != nil {
		return err
	}
	return s.planRepo.UpdateStatus(ctx, nil, planID, model.PlanStatusPaused, model.PlanStatusActive, map[string]interface{}{
		"pause_reason": "",
	})
}

// Cancel terminates the plan. With withdrawBalance, the plan's reserved
// total moves from locked back to available in the same transaction as the
// status change.
func (s *PlanService) Cancel(ctx context.Context, userID, planID int64, withdrawBalance bool) error {
	plan, err := s.Get(ctx, userID, planID)
	if err != nil {
		return err
	}
	if plan.Status != model.PlanStatusActive && plan.Status != model.PlanStatusPaused {
		return repository.ErrPlanStatusInvalid
	}

	return s.walletSvc.withWalletLock(ctx, userID, func() error {
		return runInTxWithRetry(ctx, s.db, s.cfg.Business.BalanceRetryMax, func(tx *gorm.DB) error {
			if err := s.planRepo.UpdateStatus(ctx, tx, planID, plan.Status, model.PlanStatusCancelled, nil); err != nil {
				return err
			}
			if withdrawBalance && plan.CurrentBalance > 0 {
				_, err := s.walletSvc.Post(ctx, tx, userID, Movement{
					Type:            model.TxnTypePlanRelease,
					Amount:          plan.CurrentBalance,
					Delta:           model.BalanceDelta{Available: plan.CurrentBalance, Locked: -plan.CurrentBalance},
					PlanID:          &planID,
					Description:     fmt.Sprintf("plan %q cancelled, savings released", plan.Name),
					SkipFrozenCheck: true,
				})
				return err
			}
			return nil
		})
	})
}

// Complete finishes a plan whose target is met: reserved funds release to
// available and milestone achievements are evaluated, idempotently.
func (s *PlanService) Complete(ctx context.Context, userID, planID int64) error {
	plan, err := s.Get(ctx, userID, planID)
	if err != nil {
		return err
	}
	if plan.Status != model.PlanStatusActive {
		return ErrPlanNotActive
	}
	if plan.CurrentBalance < plan.TotalTargetAmount {
		return ErrTargetNotReached
	}

	err = s.walletSvc.withWalletLock(ctx, userID, func() error {
		return runInTxWithRetry(ctx, s.db, s.cfg.Business.BalanceRetryMax, func(tx *gorm.DB) error {
			if err := s.planRepo.UpdateStatus(ctx, tx, planID, model.PlanStatusActive, model.PlanStatusCompleted, nil); err != nil {
				return err
			}
			if plan.CurrentBalance > 0 {
				_, err := s.walletSvc.Post(ctx, tx, userID, Movement{
					Type:            model.TxnTypePlanRelease,
					Amount:          plan.CurrentBalance,
					Delta:           model.BalanceDelta{Available: plan.CurrentBalance, Locked: -plan.CurrentBalance},
					PlanID:          &planID,
					Description:     fmt.Sprintf("plan %q completed, savings released", plan.Name),
					SkipFrozenCheck: true,
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	// Achievements ride behind the financial mutation and never undo it.
	if err := s.evaluateAchievements(ctx, userID, planID, plan.CurrentBalance); err != nil {
		log.Printf("[PlanService] achievement evaluation for plan %d: %v", planID, err)
	}
	return nil
}

// evaluateAchievements unlocks every milestone threshold covered by the
// saved amount. The unique (user, threshold) index makes re-evaluation a
// no-op, so retries cannot double-award.
func (s *PlanService) evaluateAchievements(ctx context.Context, userID, planID int64, savedAmount int64) error {
	for _, threshold := range model.MilestoneThresholds {
		if savedAmount < threshold {
			continue
		}
		inserted, err := s.achievementRepo.Unlock(ctx, nil, &model.Achievement{
			UserID:    userID,
			Threshold: threshold,
			PlanID:    &planID,
		})
		if err != nil {
			return err
		}
		if inserted {
			err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				return s.walletSvc.Emit(ctx, tx, model.EventAchievementUnlocked, fmt.Sprintf("%d", userID), map[string]interface{}{
					"user_id":   userID,
					"threshold": threshold,
					"plan_id":   planID,
				})
			})
			if err != nil {
				log.Printf("[PlanService] emit achievement event: %v", err)
			}
		}
	}
	return nil
}

// Restart spins up a fresh plan with the completed plan's configuration. A
// new row, not a resurrection: history and streaks start over.
func (s *PlanService) Restart(ctx context.Context, userID, planID int64) (*model.SavingsPlan, error) {
	old, err := s.Get(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	if old.Status != model.PlanStatusCompleted {
		return nil, ErrPlanNotCompleted
	}

	fresh := &model.SavingsPlan{
		UserID:            userID,
		Name:              old.Name,
		Status:            model.PlanStatusActive,
		SavingsMode:       old.SavingsMode,
		DailyAmount:       old.DailyAmount,
		WeeklyAmount:      old.WeeklyAmount,
		TotalTargetAmount: old.TotalTargetAmount,
		StartDate:         time.Now(),
		RestartedFromID:   &old.ID,
	}
	if err := s.planRepo.Create(ctx, nil, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}
