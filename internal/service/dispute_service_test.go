package service

import (
	"context"
	"testing"
	"time"

	"savecircle/internal/model"
	"savecircle/internal/repository"

	"github.com/stretchr/testify/require"
)

func TestFileDispute(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	txn, err := env.wallet.Deposit(ctx, 1, 10_000, "pm_test")
	require.NoError(t, err)

	dispute, err := env.disputes.File(ctx, 1, txn.TxnNo, "unauthorized", "I did not make this deposit")
	require.NoError(t, err)
	require.Equal(t, model.DisputeStatusOpen, dispute.Status)
	require.Equal(t, model.DisputeOriginUser, dispute.Origin)

	// The response window is 45 days.
	days := time.Until(dispute.Deadline).Hours() / 24
	require.InDelta(t, 45, days, 1)

	// Filing moved no money.
	w := env.getWallet(t, 1)
	require.Equal(t, int64(9_680), w.Balance)
	require.Zero(t, w.Locked)

	// Only the transaction's owner can dispute it.
	_, err = env.disputes.File(ctx, 2, txn.TxnNo, "unauthorized", "")
	require.ErrorIs(t, err, repository.ErrTxnNotFound)
}

func TestChargebackHoldsDisputedAmount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	txn, err := env.wallet.Deposit(ctx, 1, 10_000, "pm_test")
	require.NoError(t, err)
	env.credit(t, 1, 1_000) // cover the fee gap so the full gross can hold

	dispute, err := env.disputes.FileChargeback(ctx, 1, txn.TxnNo, "fraud claim")
	require.NoError(t, err)
	require.Equal(t, model.DisputeOriginNetwork, dispute.Origin)
	require.NotEmpty(t, dispute.HoldTxnNo)

	days := time.Until(dispute.Deadline).Hours() / 24
	require.InDelta(t, 10, days, 1)

	w := env.getWallet(t, 1)
	require.Equal(t, int64(10_000), w.Locked)
	require.Equal(t, int64(680), w.AvailableBalance)
	requireConserved(t, w)
}

func TestChargebackResolvedForUserReleasesHold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	txn, err := env.wallet.Deposit(ctx, 1, 10_000, "pm_test")
	require.NoError(t, err)
	env.credit(t, 1, 1_000)

	dispute, err := env.disputes.FileChargeback(ctx, 1, txn.TxnNo, "fraud claim")
	require.NoError(t, err)

	require.NoError(t, env.disputes.Resolve(ctx, dispute.DisputeNo, true))

	got, err := env.disputes.Get(ctx, dispute.DisputeNo)
	require.NoError(t, err)
	require.Equal(t, model.DisputeStatusResolved, got.Status)
	require.NotNil(t, got.ResolvedAt)

	w := env.getWallet(t, 1)
	require.Zero(t, w.Locked)
	require.Equal(t, int64(10_680), w.AvailableBalance)
	requireConserved(t, w)
}

func TestChargebackRejectedCapturesHold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	txn, err := env.wallet.Deposit(ctx, 1, 10_000, "pm_test")
	require.NoError(t, err)
	env.credit(t, 1, 1_000)

	dispute, err := env.disputes.FileChargeback(ctx, 1, txn.TxnNo, "fraud claim")
	require.NoError(t, err)

	require.NoError(t, env.disputes.Resolve(ctx, dispute.DisputeNo, false))

	got, err := env.disputes.Get(ctx, dispute.DisputeNo)
	require.NoError(t, err)
	require.Equal(t, model.DisputeStatusRejected, got.Status)

	// The network kept the disputed amount.
	w := env.getWallet(t, 1)
	require.Zero(t, w.Locked)
	require.Equal(t, int64(680), w.Balance)
	require.Equal(t, int64(680), w.AvailableBalance)
	requireConserved(t, w)
}

func TestUserDisputeResolvedRefunds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.credit(t, 1, 50_000)

	// Dispute a settled withdrawal: resolution credits the amount back.
	txn, err := env.wallet.Withdraw(ctx, 1, 20_000, "bank_1")
	require.NoError(t, err)
	require.NoError(t, env.wallet.SettleWithdrawal(ctx, txn.TxnNo))

	dispute, err := env.disputes.File(ctx, 1, txn.TxnNo, "never arrived", "")
	require.NoError(t, err)

	require.NoError(t, env.disputes.Resolve(ctx, dispute.DisputeNo, true))

	w := env.getWallet(t, 1)
	require.Equal(t, int64(50_000), w.Balance)
	require.Equal(t, int64(50_000), w.AvailableBalance)
	requireConserved(t, w)
}

func TestDisputeEvidenceAndLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	txn, err := env.wallet.Deposit(ctx, 1, 10_000, "pm_test")
	require.NoError(t, err)

	dispute, err := env.disputes.File(ctx, 1, txn.TxnNo, "unauthorized", "")
	require.NoError(t, err)

	require.NoError(t, env.disputes.AttachEvidence(ctx, dispute.DisputeNo, "statement.pdf"))

	got, err := env.disputes.Get(ctx, dispute.DisputeNo)
	require.NoError(t, err)
	require.Equal(t, model.DisputeStatusUnderReview, got.Status)
	require.Equal(t, "statement.pdf", got.Evidence)

	// More evidence while under review is fine.
	require.NoError(t, env.disputes.AttachEvidence(ctx, dispute.DisputeNo, "receipt.pdf"))

	require.NoError(t, env.disputes.Resolve(ctx, dispute.DisputeNo, false))

	// Closed disputes accept neither evidence nor another resolution.
	require.ErrorIs(t, env.disputes.AttachEvidence(ctx, dispute.DisputeNo, "late.pdf"), ErrDisputeClosed)
	require.ErrorIs(t, env.disputes.Resolve(ctx, dispute.DisputeNo, true), ErrDisputeClosed)

	disputes, err := env.disputes.ListForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, disputes, 1)
}
