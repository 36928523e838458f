package repository

import (
	"context"
	"testing"

	"savecircle/internal/model"

	"github.com/stretchr/testify/require"
)

func seedGroupWithMember(t *testing.T, repo *GroupRepository, status string) (*model.Group, *model.GroupMember) {
	t.Helper()
	ctx := context.Background()
	group := &model.Group{
		Name:               "circle",
		CreatorID:          1,
		ContributionAmount: 10_000,
		Frequency:          model.GroupFrequencyDaily,
		CycleRounds:        1,
		MaxMembers:         5,
		JoinCode:           "JOINCODE",
		Status:             status,
	}
	require.NoError(t, repo.Create(ctx, nil, group))
	member := &model.GroupMember{
		GroupID:        group.ID,
		UserID:         1,
		PayoutPosition: 1,
		Status:         model.GroupMemberStatusActive,
	}
	require.NoError(t, repo.AddMember(ctx, nil, member))
	return group, member
}

func TestAddMemberContributionEnforcesCycleTarget(t *testing.T) {
	db := newTestDB(t)
	repo := NewGroupRepository(db)
	ctx := context.Background()
	_, member := seedGroupWithMember(t, repo, model.GroupStatusFilled)

	require.NoError(t, repo.AddMemberContribution(ctx, nil, member.ID, 6_000, 10_000))

	// 6_000 + 5_000 would overshoot; the row must not move.
	err := repo.AddMemberContribution(ctx, nil, member.ID, 5_000, 10_000)
	require.ErrorIs(t, err, ErrContributionExceedsTarget)

	var fresh model.GroupMember
	require.NoError(t, db.Where("id = ?", member.ID).First(&fresh).Error)
	require.Equal(t, int64(6_000), fresh.TotalContributed)

	// Topping up to exactly the target is fine.
	require.NoError(t, repo.AddMemberContribution(ctx, nil, member.ID, 4_000, 10_000))
}

func TestAddMemberContributionRejectsDepartedMember(t *testing.T) {
	db := newTestDB(t)
	repo := NewGroupRepository(db)
	ctx := context.Background()
	_, member := seedGroupWithMember(t, repo, model.GroupStatusFilled)

	require.NoError(t, db.Model(&model.GroupMember{}).
		Where("id = ?", member.ID).
		Update("status", model.GroupMemberStatusLeft).Error)

	err := repo.AddMemberContribution(ctx, nil, member.ID, 1_000, 10_000)
	require.ErrorIs(t, err, ErrMemberNotFound)
}

func TestAddPoolContributionOnlyWhileGroupAcceptsFunds(t *testing.T) {
	db := newTestDB(t)
	repo := NewGroupRepository(db)
	ctx := context.Background()
	group, _ := seedGroupWithMember(t, repo, model.GroupStatusOpen)

	require.NoError(t, repo.AddPoolContribution(ctx, nil, group.ID, 10_000))

	// A contribution that lost the race against dissolution commits nothing.
	require.NoError(t, db.Model(&model.Group{}).
		Where("id = ?", group.ID).
		Update("status", model.GroupStatusDissolved).Error)
	err := repo.AddPoolContribution(ctx, nil, group.ID, 10_000)
	require.ErrorIs(t, err, ErrGroupStatusInvalid)

	var fresh model.Group
	require.NoError(t, db.Where("id = ?", group.ID).First(&fresh).Error)
	require.Equal(t, int64(10_000), fresh.TotalBalance)

	err = repo.AddPoolContribution(ctx, nil, group.ID+999, 10_000)
	require.ErrorIs(t, err, ErrGroupNotFound)
}
