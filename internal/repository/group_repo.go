package repository

import (
	"context"
	"errors"
	"time"

	"savecircle/internal/model"

	"gorm.io/gorm"
)

var (
	ErrGroupNotFound             = errors.New("group not found")
	ErrGroupStatusInvalid        = errors.New("group status transition not allowed")
	ErrMemberNotFound            = errors.New("group member not found")
	ErrContributionExceedsTarget = errors.New("contribution exceeds cycle target")
)

// GroupRepository persists rotating groups and their member rows. Group
// lifecycle transitions (fill, complete, dissolve) are conditional UPDATEs
// so they commute safely with per-member contribution increments.
type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func (r *GroupRepository) Create(ctx context.Context, tx *gorm.DB, group *model.Group) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(group).Error
}

func (r *GroupRepository) GetByID(ctx context.Context, groupID int64) (*model.Group, error) {
	var group model.Group
	err := r.db.WithContext(ctx).Where("id = ?", groupID).First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return &group, nil
}

func (r *GroupRepository) GetByJoinCode(ctx context.Context, joinCode string) (*model.Group, error) {
	var group model.Group
	err := r.db.WithContext(ctx).Where("join_code = ?", joinCode).First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return &group, nil
}

func (r *GroupRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, groupID int64, fromStatus, toStatus string) error {
	if !model.GroupCanTransitionTo(fromStatus, toStatus) {
		return ErrGroupStatusInvalid
	}
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Group{}).
		Where("id = ? AND status = ?", groupID, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrGroupStatusInvalid
	}
	return nil
}

// AddPoolContribution credits an incoming contribution to the group pool.
// The status guard lives in the UPDATE itself, so a contribution racing a
// completion or dissolution commits nothing.
func (r *GroupRepository) AddPoolContribution(ctx context.Context, tx *gorm.DB, groupID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Group{}).
		Where("id = ? AND status IN ?", groupID, []string{model.GroupStatusOpen, model.GroupStatusFilled}).
		Update("total_balance", gorm.Expr("total_balance + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Classify: group gone, or no longer accepting money.
		var group model.Group
		if err := tx.WithContext(ctx).Where("id = ?", groupID).First(&group).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}
		return ErrGroupStatusInvalid
	}
	return nil
}

// IncrementTotalBalance is the unguarded pool adjustment used by the
// lifecycle passes themselves (payout and dissolution zero the pool after
// they have already moved the group to a terminal status).
func (r *GroupRepository) IncrementTotalBalance(ctx context.Context, tx *gorm.DB, groupID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Group{}).
		Where("id = ?", groupID).
		Update("total_balance", gorm.Expr("total_balance + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func (r *GroupRepository) SetCurrentMembers(ctx context.Context, tx *gorm.DB, groupID int64, count int) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.Group{}).
		Where("id = ?", groupID).
		Update("current_members", count).Error
}

// ---------------------------------------------------------------------------
// members
// ---------------------------------------------------------------------------

func (r *GroupRepository) AddMember(ctx context.Context, tx *gorm.DB, member *model.GroupMember) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(member).Error
}

func (r *GroupRepository) GetMember(ctx context.Context, groupID, userID int64) (*model.GroupMember, error) {
	var member model.GroupMember
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

// ListMembers returns all member rows, including those who left, ordered by
// payout position.
func (r *GroupRepository) ListMembers(ctx context.Context, tx *gorm.DB, groupID int64) ([]*model.GroupMember, error) {
	if tx == nil {
		tx = r.db
	}
	var members []*model.GroupMember
	err := tx.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("payout_position ASC").
		Find(&members).Error
	return members, err
}

func (r *GroupRepository) CountActiveMembers(ctx context.Context, tx *gorm.DB, groupID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.GroupMember{}).
		Where("group_id = ? AND status = ?", groupID, model.GroupMemberStatusActive).
		Count(&count).Error
	return count, err
}

// AddMemberContribution bumps one member's running contribution total,
// refusing anything that would push it past the cycle target. The cap is
// part of the UPDATE's WHERE clause, so concurrent contributions cannot
// jointly overshoot it.
func (r *GroupRepository) AddMemberContribution(ctx context.Context, tx *gorm.DB, memberID int64, amount, cycleTarget int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.GroupMember{}).
		Where("id = ? AND status = ?", memberID, model.GroupMemberStatusActive).
		Where("total_contributed + ? <= ?", amount, cycleTarget).
		Update("total_contributed", gorm.Expr("total_contributed + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Classify: member gone or departed, or the cap is the blocker.
		var member model.GroupMember
		if err := tx.WithContext(ctx).Where("id = ?", memberID).First(&member).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMemberNotFound
			}
			return err
		}
		if member.Status != model.GroupMemberStatusActive {
			return ErrMemberNotFound
		}
		return ErrContributionExceedsTarget
	}
	return nil
}

// MarkMemberLeft flips an active member to LEFT exactly once.
func (r *GroupRepository) MarkMemberLeft(ctx context.Context, tx *gorm.DB, memberID int64, leftAt time.Time) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.GroupMember{}).
		Where("id = ? AND status = ?", memberID, model.GroupMemberStatusActive).
		Updates(map[string]interface{}{
			"status":  model.GroupMemberStatusLeft,
			"left_at": leftAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *GroupRepository) SetDissolveVote(ctx context.Context, tx *gorm.DB, memberID int64, vote bool) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.GroupMember{}).
		Where("id = ?", memberID).
		Update("dissolve_vote", vote).Error
}

func (r *GroupRepository) CountDissolveVotes(ctx context.Context, tx *gorm.DB, groupID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.GroupMember{}).
		Where("group_id = ? AND status = ? AND dissolve_vote = ?",
			groupID, model.GroupMemberStatusActive, true).
		Count(&count).Error
	return count, err
}

func (r *GroupRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.Group, error) {
	var groups []*model.Group
	err := r.db.WithContext(ctx).
		Joins("JOIN savings_group_member m ON m.group_id = savings_group.id").
		Where("m.user_id = ?", userID).
		Order("savings_group.created_at DESC").
		Find(&groups).Error
	return groups, err
}
