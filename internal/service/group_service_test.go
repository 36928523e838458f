package service

import (
	"context"
	"sync"
	"testing"

	"savecircle/internal/model"

	"github.com/stretchr/testify/require"
)

// newFilledGroup creates a 5-member group (creator is user 1, joiners are
// 2..5), each funded with `funding` in available balance.
func newFilledGroup(t *testing.T, env *testEnv, contribution int64, funding int64) *model.Group {
	t.Helper()
	ctx := context.Background()

	group, err := env.groups.Create(ctx, &CreateGroupRequest{
		CreatorID:          1,
		Name:               "vacation circle",
		ContributionAmount: contribution,
		CycleRounds:        1,
		MaxMembers:         5,
	})
	require.NoError(t, err)

	for userID := int64(2); userID <= 5; userID++ {
		_, err := env.groups.Join(ctx, userID, group.JoinCode)
		require.NoError(t, err)
	}
	for userID := int64(1); userID <= 5; userID++ {
		env.credit(t, userID, funding)
	}

	fresh, err := env.groups.Get(ctx, group.ID)
	require.NoError(t, err)
	require.Equal(t, model.GroupStatusFilled, fresh.Group.Status)
	return fresh.Group
}

func TestCreateGroupValidatesSize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.groups.Create(ctx, &CreateGroupRequest{
		CreatorID:          1,
		Name:               "too small",
		ContributionAmount: 1_000,
		CycleRounds:        1,
		MaxMembers:         4,
	})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = env.groups.Create(ctx, &CreateGroupRequest{
		CreatorID:          1,
		Name:               "too big",
		ContributionAmount: 1_000,
		CycleRounds:        1,
		MaxMembers:         11,
	})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestJoinFillsAndCloses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	group := newFilledGroup(t, env, 10_000, 10_000)

	// Filled group admits nobody else.
	_, err := env.groups.Join(ctx, 6, group.JoinCode)
	require.ErrorIs(t, err, ErrGroupFull)

	// Members cannot join twice (checked while still open).
	open, err := env.groups.Create(ctx, &CreateGroupRequest{
		CreatorID:          1,
		Name:               "second circle",
		ContributionAmount: 1_000,
		CycleRounds:        1,
		MaxMembers:         5,
	})
	require.NoError(t, err)
	_, err = env.groups.Join(ctx, 1, open.JoinCode)
	require.ErrorIs(t, err, ErrAlreadyMember)

	_, err = env.groups.Join(ctx, 2, "NOSUCH01")
	require.ErrorIs(t, err, ErrInvalidJoinCode)
}

func TestContributeLocksIntoPool(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	group := newFilledGroup(t, env, 10_000, 10_000)

	txn, err := env.groups.Contribute(ctx, group.ID, 2, 10_000)
	require.NoError(t, err)
	require.Equal(t, model.TxnTypeGroupContrib, txn.Type)

	w := env.getWallet(t, 2)
	require.Equal(t, int64(10_000), w.Balance)
	require.Zero(t, w.AvailableBalance)
	require.Equal(t, int64(10_000), w.Locked)
	requireConserved(t, w)

	fresh, err := env.groups.Get(ctx, group.ID)
	require.NoError(t, err)
	require.Equal(t, int64(10_000), fresh.Group.TotalBalance)

	// Over the member's cycle target.
	_, err = env.groups.Contribute(ctx, group.ID, 2, 1)
	require.ErrorIs(t, err, ErrWrongContribution)

	// Non-members cannot contribute.
	_, err = env.groups.Contribute(ctx, group.ID, 99, 10_000)
	require.ErrorIs(t, err, ErrNotGroupMember)
}

func TestCompleteCyclePaysOutEqually(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	group := newFilledGroup(t, env, 10_000, 10_000)

	for userID := int64(1); userID <= 5; userID++ {
		_, err := env.groups.Contribute(ctx, group.ID, userID, 10_000)
		require.NoError(t, err)
	}

	require.NoError(t, env.groups.CompleteCycle(ctx, group.ID))

	// Everyone paid 10_000 and gets 10_000 back: available restored, locked
	// cleared, net balance unchanged.
	for userID := int64(1); userID <= 5; userID++ {
		w := env.getWallet(t, userID)
		require.Equal(t, int64(10_000), w.Balance, "user %d", userID)
		require.Equal(t, int64(10_000), w.AvailableBalance, "user %d", userID)
		require.Zero(t, w.Locked, "user %d", userID)
		requireConserved(t, w)
	}

	fresh, err := env.groups.Get(ctx, group.ID)
	require.NoError(t, err)
	require.Equal(t, model.GroupStatusCompleted, fresh.Group.Status)
	require.Zero(t, fresh.Group.TotalBalance)
}

func TestCompleteCycleIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	group := newFilledGroup(t, env, 10_000, 10_000)

	for userID := int64(1); userID <= 5; userID++ {
		_, err := env.groups.Contribute(ctx, group.ID, userID, 10_000)
		require.NoError(t, err)
	}

	require.NoError(t, env.groups.CompleteCycle(ctx, group.ID))
	require.NoError(t, env.groups.CompleteCycle(ctx, group.ID)) // no-op

	// Second invocation paid nothing out.
	var payouts int64
	require.NoError(t, env.db.Model(&model.WalletTransaction{}).
		Where("type = ?", model.TxnTypeGroupPayout).
		Count(&payouts).Error)
	require.Equal(t, int64(5), payouts)
}

func TestCompleteCycleRequiresEveryMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	group := newFilledGroup(t, env, 10_000, 10_000)

	for userID := int64(1); userID <= 4; userID++ {
		_, err := env.groups.Contribute(ctx, group.ID, userID, 10_000)
		require.NoError(t, err)
	}
	// Member 5 has not paid in full.
	_, err := env.groups.Contribute(ctx, group.ID, 5, 4_000)
	require.NoError(t, err)

	require.ErrorIs(t, env.groups.CompleteCycle(ctx, group.ID), ErrCycleIncomplete)
}

func TestLeaveForfeitsContribution(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	group := newFilledGroup(t, env, 10_000, 10_000)

	// Member 5 pays in full, then leaves. The money stays in the pool.
	_, err := env.groups.Contribute(ctx, group.ID, 5, 10_000)
	require.NoError(t, err)
	require.NoError(t, env.groups.Leave(ctx, group.ID, 5))

	w := env.getWallet(t, 5)
	require.Equal(t, int64(10_000), w.Locked) // no early cash-out

	for userID := int64(1); userID <= 4; userID++ {
		_, err := env.groups.Contribute(ctx, group.ID, userID, 10_000)
		require.NoError(t, err)
	}
	require.NoError(t, env.groups.CompleteCycle(ctx, group.ID))

	// Pool is 50_000 split over 4 active members: 12_500 each.
	for userID := int64(1); userID <= 4; userID++ {
		w := env.getWallet(t, userID)
		require.Equal(t, int64(12_500), w.AvailableBalance, "user %d", userID)
		require.Zero(t, w.Locked, "user %d", userID)
		requireConserved(t, w)
	}

	// The leaver forfeited the contribution.
	w = env.getWallet(t, 5)
	require.Zero(t, w.Balance)
	require.Zero(t, w.Locked)
	requireConserved(t, w)
}

func TestPayoutRemainderGoesToEarliestPositions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	group := newFilledGroup(t, env, 10_001, 10_001)

	for userID := int64(1); userID <= 5; userID++ {
		_, err := env.groups.Contribute(ctx, group.ID, userID, 10_001)
		require.NoError(t, err)
	}

	// One member leaves after paying: pool 50_005 over 4 payees is 12_501
	// each with one cent left for position 1.
	require.NoError(t, env.groups.Leave(ctx, group.ID, 5))
	require.NoError(t, env.groups.CompleteCycle(ctx, group.ID))

	require.Equal(t, int64(12_502), env.getWallet(t, 1).AvailableBalance)
	for userID := int64(2); userID <= 4; userID++ {
		require.Equal(t, int64(12_501), env.getWallet(t, userID).AvailableBalance, "user %d", userID)
	}
}

func TestUnanimousDissolveRefundsEveryone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	group := newFilledGroup(t, env, 10_000, 10_000)

	_, err := env.groups.Contribute(ctx, group.ID, 1, 10_000)
	require.NoError(t, err)
	_, err = env.groups.Contribute(ctx, group.ID, 2, 4_000)
	require.NoError(t, err)

	// Four votes of five: not yet.
	for userID := int64(1); userID <= 4; userID++ {
		dissolved, err := env.groups.VoteDissolve(ctx, group.ID, userID)
		require.NoError(t, err)
		require.False(t, dissolved)
	}

	dissolved, err := env.groups.VoteDissolve(ctx, group.ID, 5)
	require.NoError(t, err)
	require.True(t, dissolved)

	// Contributions came back prorated: exactly what each member put in.
	w := env.getWallet(t, 1)
	require.Equal(t, int64(10_000), w.AvailableBalance)
	require.Zero(t, w.Locked)
	w = env.getWallet(t, 2)
	require.Equal(t, int64(10_000), w.AvailableBalance)
	require.Zero(t, w.Locked)

	fresh, err := env.groups.Get(ctx, group.ID)
	require.NoError(t, err)
	require.Equal(t, model.GroupStatusDissolved, fresh.Group.Status)
	require.Zero(t, fresh.Group.TotalBalance)

	// Dissolved groups accept nothing further.
	_, err = env.groups.Contribute(ctx, group.ID, 3, 1_000)
	require.ErrorIs(t, err, ErrGroupClosed)
	require.ErrorIs(t, env.groups.CompleteCycle(ctx, group.ID), ErrGroupClosed)
}

func TestLastLeaverDissolvesGroup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	group, err := env.groups.Create(ctx, &CreateGroupRequest{
		CreatorID:          1,
		Name:               "short lived",
		ContributionAmount: 1_000,
		CycleRounds:        1,
		MaxMembers:         5,
	})
	require.NoError(t, err)
	env.credit(t, 1, 5_000)

	_, err = env.groups.Contribute(ctx, group.ID, 1, 1_000)
	require.NoError(t, err)

	require.NoError(t, env.groups.Leave(ctx, group.ID, 1))

	// Sole member gone: dissolved, contribution refunded despite leaving.
	fresh, err := env.groups.Get(ctx, group.ID)
	require.NoError(t, err)
	require.Equal(t, model.GroupStatusDissolved, fresh.Group.Status)

	w := env.getWallet(t, 1)
	require.Equal(t, int64(5_000), w.AvailableBalance)
	require.Zero(t, w.Locked)
}

func TestConcurrentContributionsStopAtCycleTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	group := newFilledGroup(t, env, 10_000, 50_000)

	// Several simultaneous full contributions from one member: only the
	// first may commit, the rest must fail without moving money.
	const attempts = 4
	start := make(chan struct{})
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = env.groups.Contribute(ctx, group.ID, 2, 10_000)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, ErrWrongContribution)
		}
	}
	require.Equal(t, 1, succeeded)

	view, err := env.groups.Get(ctx, group.ID)
	require.NoError(t, err)
	require.Equal(t, int64(10_000), view.Group.TotalBalance)
	for _, m := range view.Members {
		if m.UserID == 2 {
			require.Equal(t, int64(10_000), m.TotalContributed)
		}
	}

	w := env.getWallet(t, 2)
	require.Equal(t, int64(10_000), w.Locked)
	require.Equal(t, int64(40_000), w.AvailableBalance)
	requireConserved(t, w)
}
