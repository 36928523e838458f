package service

import (
	"context"
	"errors"

	"savecircle/internal/repository"

	"gorm.io/gorm"
)

// Business-rule errors surfaced to callers. Validation and rule failures
// happen before any ledger mutation; storage contention is retried
// internally and only surfaces as ErrConcurrencyConflict once retries are
// exhausted.
var (
	ErrInvalidAmount           = errors.New("amount outside allowed bounds")
	ErrInsufficientBalance     = errors.New("insufficient available balance")
	ErrWalletFrozen            = errors.New("wallet is frozen")
	ErrAuthorizationDeclined   = errors.New("payment authorization declined")
	ErrLimitExceeded           = errors.New("transaction limit exceeded")
	ErrKYCRequired             = errors.New("verified KYC status required for this amount")
	ErrInvalidVerificationCode = errors.New("invalid verification code")
	ErrAmountExceedsOriginal   = errors.New("refund exceeds remaining original amount")
	ErrNotRefundable           = errors.New("transaction type is not refundable")
	ErrConcurrencyConflict     = errors.New("too much contention on wallet, try again")

	ErrAlreadyContributedToday = errors.New("already contributed today")
	ErrPlanNotActive           = errors.New("plan is not active")
	ErrPlanNotOwned            = errors.New("plan does not belong to user")
	ErrTargetNotReached        = errors.New("plan target not reached")
	ErrPlanNotCompleted        = errors.New("only completed plans can be restarted")

	ErrGroupFull         = errors.New("group is full")
	ErrAlreadyMember     = errors.New("already a member of this group")
	ErrInvalidJoinCode   = errors.New("invalid join code")
	ErrGroupClosed       = errors.New("group no longer accepts this operation")
	ErrNotGroupMember    = errors.New("not an active member of this group")
	ErrCycleIncomplete   = errors.New("not every member has completed the cycle")
	ErrWrongContribution = errors.New("contribution exceeds remaining cycle target")

	ErrDisputeClosed = errors.New("dispute already resolved")
)

// runInTxWithRetry executes fn inside a database transaction, retrying the
// whole transaction when a concurrent writer won the wallet's optimistic
// lock. Bounded: exhaustion surfaces as ErrConcurrencyConflict.
func runInTxWithRetry(ctx context.Context, db *gorm.DB, maxRetries int, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = db.WithContext(ctx).Transaction(fn)
		if !errors.Is(err, repository.ErrOptimisticLock) {
			return err
		}
	}
	return ErrConcurrencyConflict
}
