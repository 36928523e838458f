package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"savecircle/internal/config"
	"savecircle/internal/infrastructure/lock"
	"savecircle/internal/model"
	"savecircle/internal/repository"
	"savecircle/pkg/idgen"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GroupService runs the rotating-group lifecycle: open -> filled ->
// completed, with dissolution as the escape hatch. Group lifecycle
// transitions serialize on a per-group lock; member contributions take only
// the member's wallet lock plus atomic increments, so contributions from
// different members run in parallel.
type GroupService struct {
	db        *gorm.DB
	cfg       *config.Config
	locks     lock.Manager
	walletSvc *WalletService

	groupRepo *repository.GroupRepository
}

func NewGroupService(db *gorm.DB, cfg *config.Config, locks lock.Manager, walletSvc *WalletService) *GroupService {
	return &GroupService{
		db:        db,
		cfg:       cfg,
		locks:     locks,
		walletSvc: walletSvc,
		groupRepo: repository.NewGroupRepository(db),
	}
}

func (s *GroupService) withGroupLock(ctx context.Context, groupID int64, fn func() error) error {
	handle, err := s.locks.Acquire(ctx, lock.GroupKey(groupID), uuid.NewString())
	if err != nil {
		return fmt.Errorf("acquire group lock: %w", err)
	}
	defer handle.Unlock(ctx)
	return fn()
}

type CreateGroupRequest struct {
	CreatorID          int64
	Name               string
	Purpose            string
	ContributionAmount int64
	Frequency          string
	CycleRounds        int
	MaxMembers         int
}

// Create opens a group with the creator auto-joined at payout position 1.
func (s *GroupService) Create(ctx context.Context, req *CreateGroupRequest) (*model.Group, error) {
	if req.ContributionAmount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.MaxMembers < model.GroupMinMembers || req.MaxMembers > model.GroupMaxMembers {
		return nil, fmt.Errorf("%w: group size must be %d-%d", ErrInvalidAmount, model.GroupMinMembers, model.GroupMaxMembers)
	}
	if req.CycleRounds <= 0 {
		req.CycleRounds = 1
	}
	if req.Frequency == "" {
		req.Frequency = model.GroupFrequencyDaily
	}

	group := &model.Group{
		Name:               req.Name,
		Purpose:            req.Purpose,
		CreatorID:          req.CreatorID,
		ContributionAmount: req.ContributionAmount,
		Frequency:          req.Frequency,
		CycleRounds:        req.CycleRounds,
		MaxMembers:         req.MaxMembers,
		JoinCode:           idgen.GenerateJoinCode(),
		Status:             model.GroupStatusOpen,
		CurrentMembers:     1,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.groupRepo.Create(ctx, tx, group); err != nil {
			return err
		}
		return s.groupRepo.AddMember(ctx, tx, &model.GroupMember{
			GroupID:        group.ID,
			UserID:         req.CreatorID,
			PayoutPosition: 1,
			Status:         model.GroupMemberStatusActive,
		})
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// GroupView bundles a group with its member rows for read endpoints.
type GroupView struct {
	Group   *model.Group         `json:"group"`
	Members []*model.GroupMember `json:"members"`
}

func (s *GroupService) Get(ctx context.Context, groupID int64) (*GroupView, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	members, err := s.groupRepo.ListMembers(ctx, nil, groupID)
	if err != nil {
		return nil, err
	}
	return &GroupView{Group: group, Members: members}, nil
}

func (s *GroupService) ListForUser(ctx context.Context, userID int64) ([]*model.Group, error) {
	return s.groupRepo.ListByUserID(ctx, userID)
}

// Join adds a member via join code. Valid only while the group is OPEN;
// reaching capacity flips it to FILLED and closes membership.
func (s *GroupService) Join(ctx context.Context, userID int64, joinCode string) (*model.Group, error) {
	group, err := s.groupRepo.GetByJoinCode(ctx, joinCode)
	if err != nil {
		if err == repository.ErrGroupNotFound {
			return nil, ErrInvalidJoinCode
		}
		return nil, err
	}

	err = s.withGroupLock(ctx, group.ID, func() error {
		// Fresh read under the lock: another join may have just filled it.
		group, err = s.groupRepo.GetByID(ctx, group.ID)
		if err != nil {
			return err
		}
		if group.Status != model.GroupStatusOpen {
			return ErrGroupFull
		}
		if _, err := s.groupRepo.GetMember(ctx, group.ID, userID); err == nil {
			return ErrAlreadyMember
		} else if err != repository.ErrMemberNotFound {
			return err
		}

		members, err := s.groupRepo.ListMembers(ctx, nil, group.ID)
		if err != nil {
			return err
		}
		active := 0
		for _, m := range members {
			if m.Status == model.GroupMemberStatusActive {
				active++
			}
		}
		if active >= group.MaxMembers {
			return ErrGroupFull
		}

		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.groupRepo.AddMember(ctx, tx, &model.GroupMember{
				GroupID:        group.ID,
				UserID:         userID,
				PayoutPosition: len(members) + 1,
				Status:         model.GroupMemberStatusActive,
			}); err != nil {
				return err
			}
			if err := s.groupRepo.SetCurrentMembers(ctx, tx, group.ID, active+1); err != nil {
				return err
			}
			if active+1 == group.MaxMembers {
				if err := s.groupRepo.UpdateStatus(ctx, tx, group.ID, model.GroupStatusOpen, model.GroupStatusFilled); err != nil {
					return err
				}
				group.Status = model.GroupStatusFilled
				return s.walletSvc.Emit(ctx, tx, model.EventGroupFilled, fmt.Sprintf("group-%d", group.ID), map[string]interface{}{
					"group_id": group.ID,
					"members":  active + 1,
				})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// Contribute locks funds from the member's available balance into the
// group pool. Runs under the member's wallet lock only; the pool increment
// is atomic, so members contribute concurrently without contention.
func (s *GroupService) Contribute(ctx context.Context, groupID, userID int64, amount int64) (*model.WalletTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.Status != model.GroupStatusOpen && group.Status != model.GroupStatusFilled {
		return nil, ErrGroupClosed
	}

	member, err := s.groupRepo.GetMember(ctx, groupID, userID)
	if err != nil {
		if err == repository.ErrMemberNotFound {
			return nil, ErrNotGroupMember
		}
		return nil, err
	}
	if member.Status != model.GroupMemberStatusActive {
		return nil, ErrNotGroupMember
	}

	cycleTarget := group.ContributionAmount * int64(group.CycleRounds)
	if member.TotalContributed+amount > cycleTarget {
		return nil, ErrWrongContribution
	}

	var txn *model.WalletTransaction
	err = s.walletSvc.withWalletLock(ctx, userID, func() error {
		return runInTxWithRetry(ctx, s.db, s.cfg.Business.BalanceRetryMax, func(tx *gorm.DB) error {
			// The reads above are stale by now: the guarded UPDATEs
			// re-check member status, cycle target and group status, so a
			// contribution racing another contribution, a payout or a
			// dissolution commits nothing.
			if err := s.groupRepo.AddMemberContribution(ctx, tx, member.ID, amount, cycleTarget); err != nil {
				switch {
				case errors.Is(err, repository.ErrContributionExceedsTarget):
					return ErrWrongContribution
				case errors.Is(err, repository.ErrMemberNotFound):
					return ErrNotGroupMember
				}
				return err
			}
			if err := s.groupRepo.AddPoolContribution(ctx, tx, groupID, amount); err != nil {
				if errors.Is(err, repository.ErrGroupStatusInvalid) {
					return ErrGroupClosed
				}
				return err
			}
			var postErr error
			txn, postErr = s.walletSvc.LockForGroup(ctx, tx, userID, groupID, amount)
			return postErr
		})
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// CompleteCycle verifies, with a fresh read under the group lock, that
// every active member has met the cycle target, then releases the pool in
// payout-position order. The whole payout is one database transaction and
// the status transition is its first conditional write, so re-invocation
// on a completed group pays nothing.
func (s *GroupService) CompleteCycle(ctx context.Context, groupID int64) error {
	return s.withGroupLock(ctx, groupID, func() error {
		group, err := s.groupRepo.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		if group.Status == model.GroupStatusCompleted {
			return nil // idempotent
		}
		if group.Status != model.GroupStatusOpen && group.Status != model.GroupStatusFilled {
			return ErrGroupClosed
		}

		members, err := s.groupRepo.ListMembers(ctx, nil, groupID)
		if err != nil {
			return err
		}

		cycleTarget := group.ContributionAmount * int64(group.CycleRounds)
		var active []*model.GroupMember
		var pool int64
		for _, m := range members {
			pool += m.TotalContributed
			if m.Status == model.GroupMemberStatusActive {
				active = append(active, m)
			}
		}
		if len(active) == 0 {
			return ErrCycleIncomplete
		}
		for _, m := range active {
			if m.TotalContributed < cycleTarget {
				return ErrCycleIncomplete
			}
		}

		// Equal split across active members in payout-position order;
		// the leftover cents go to the earliest positions. Departed
		// members forfeit their contributions into the pool.
		share := pool / int64(len(active))
		remainder := pool % int64(len(active))

		return runInTxWithRetry(ctx, s.db, s.cfg.Business.BalanceRetryMax, func(tx *gorm.DB) error {
			if err := s.groupRepo.UpdateStatus(ctx, tx, groupID, group.Status, model.GroupStatusCompleted); err != nil {
				return err
			}

			for i, m := range active {
				memberShare := share
				if int64(i) < remainder {
					memberShare++
				}
				_, err := s.walletSvc.Post(ctx, tx, m.UserID, Movement{
					Type:   model.TxnTypeGroupPayout,
					Amount: memberShare,
					Delta: model.BalanceDelta{
						Balance:   memberShare - m.TotalContributed,
						Available: memberShare,
						Locked:    -m.TotalContributed,
					},
					GroupID:         &groupID,
					Description:     fmt.Sprintf("group %q cycle payout", group.Name),
					SkipFrozenCheck: true,
				})
				if err != nil {
					return err
				}
			}

			for _, m := range members {
				if m.Status != model.GroupMemberStatusLeft || m.TotalContributed == 0 {
					continue
				}
				_, err := s.walletSvc.Post(ctx, tx, m.UserID, Movement{
					Type:   model.TxnTypeGroupForfeit,
					Amount: m.TotalContributed,
					Delta: model.BalanceDelta{
						Balance: -m.TotalContributed,
						Locked:  -m.TotalContributed,
					},
					GroupID:         &groupID,
					Description:     fmt.Sprintf("group %q contribution forfeited on exit", group.Name),
					SkipFrozenCheck: true,
				})
				if err != nil {
					return err
				}
			}

			if err := s.groupRepo.IncrementTotalBalance(ctx, tx, groupID, -pool); err != nil {
				return err
			}

			return s.walletSvc.Emit(ctx, tx, model.EventGroupCompleted, fmt.Sprintf("group-%d", groupID), map[string]interface{}{
				"group_id": groupID,
				"pool":     pool,
				"members":  len(active),
			})
		})
	})
}

// Leave removes a member before completion. Contributed funds stay locked
// in the pool — there is no early cash-out — unless the departure empties
// the group, which dissolves it with refunds.
func (s *GroupService) Leave(ctx context.Context, groupID, userID int64) error {
	return s.withGroupLock(ctx, groupID, func() error {
		group, err := s.groupRepo.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		if group.Status != model.GroupStatusOpen && group.Status != model.GroupStatusFilled {
			return ErrGroupClosed
		}

		member, err := s.groupRepo.GetMember(ctx, groupID, userID)
		if err != nil {
			if err == repository.ErrMemberNotFound {
				return ErrNotGroupMember
			}
			return err
		}
		if member.Status != model.GroupMemberStatusActive {
			return ErrNotGroupMember
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.groupRepo.MarkMemberLeft(ctx, tx, member.ID, time.Now()); err != nil {
				return err
			}
			remaining, err := s.groupRepo.CountActiveMembers(ctx, tx, groupID)
			if err != nil {
				return err
			}
			return s.groupRepo.SetCurrentMembers(ctx, tx, groupID, int(remaining))
		})
		if err != nil {
			return err
		}

		remaining, err := s.groupRepo.CountActiveMembers(ctx, nil, groupID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			return s.dissolve(ctx, group)
		}
		return nil
	})
}

// VoteDissolve records a member's dissolve vote; a unanimous vote of the
// remaining active members dissolves the group with prorated refunds.
func (s *GroupService) VoteDissolve(ctx context.Context, groupID, userID int64) (bool, error) {
	var dissolved bool
	err := s.withGroupLock(ctx, groupID, func() error {
		group, err := s.groupRepo.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		if group.Status != model.GroupStatusOpen && group.Status != model.GroupStatusFilled {
			return ErrGroupClosed
		}

		member, err := s.groupRepo.GetMember(ctx, groupID, userID)
		if err != nil {
			if err == repository.ErrMemberNotFound {
				return ErrNotGroupMember
			}
			return err
		}
		if member.Status != model.GroupMemberStatusActive {
			return ErrNotGroupMember
		}

		if err := s.groupRepo.SetDissolveVote(ctx, nil, member.ID, true); err != nil {
			return err
		}

		votes, err := s.groupRepo.CountDissolveVotes(ctx, nil, groupID)
		if err != nil {
			return err
		}
		activeCount, err := s.groupRepo.CountActiveMembers(ctx, nil, groupID)
		if err != nil {
			return err
		}
		if votes < activeCount {
			return nil
		}

		dissolved = true
		return s.dissolve(ctx, group)
	})
	return dissolved, err
}

// dissolve refunds every contribution — active and departed members alike
// — and closes the group. Caller holds the group lock.
func (s *GroupService) dissolve(ctx context.Context, group *model.Group) error {
	members, err := s.groupRepo.ListMembers(ctx, nil, group.ID)
	if err != nil {
		return err
	}

	return runInTxWithRetry(ctx, s.db, s.cfg.Business.BalanceRetryMax, func(tx *gorm.DB) error {
		if err := s.groupRepo.UpdateStatus(ctx, tx, group.ID, group.Status, model.GroupStatusDissolved); err != nil {
			return err
		}

		var pool int64
		for _, m := range members {
			if m.TotalContributed == 0 {
				continue
			}
			pool += m.TotalContributed
			if _, err := s.walletSvc.UnlockFromGroup(ctx, tx, m.UserID, group.ID, m.TotalContributed); err != nil {
				return err
			}
		}

		if pool > 0 {
			if err := s.groupRepo.IncrementTotalBalance(ctx, tx, group.ID, -pool); err != nil {
				return err
			}
		}

		return s.walletSvc.Emit(ctx, tx, model.EventGroupDissolved, fmt.Sprintf("group-%d", group.ID), map[string]interface{}{
			"group_id": group.ID,
			"refunded": pool,
		})
	})
}
