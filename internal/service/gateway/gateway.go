package gateway

import (
	"context"
	"fmt"
	"time"

	"savecircle/pkg/idgen"
)

// External collaborators the engine depends on. The engine treats them as
// binary gates and records their answers in transaction metadata; no
// processor protocol details leak in here.

// AuthResult is the payment authorizer's answer to a charge attempt.
type AuthResult struct {
	Approved      bool
	AuthCode      string
	DeclineReason string
}

// PayoutResult describes an accepted outbound transfer.
type PayoutResult struct {
	TransferID       string
	EstimatedArrival time.Time
}

// Authorizer is the card/bank processor boundary.
type Authorizer interface {
	Authorize(ctx context.Context, amount int64, paymentMethodID string) (*AuthResult, error)
	Payout(ctx context.Context, amount int64, destination string) (*PayoutResult, error)
}

// Limits are the KYC-derived caps consulted before deposits and
// withdrawals. Zero means uncapped.
type Limits struct {
	DailyDepositCap    int64
	DailyWithdrawalCap int64
	KYCVerified        bool
}

// LimitsProvider is the KYC/limits collaborator boundary.
type LimitsProvider interface {
	Limits(ctx context.Context, userID int64) (*Limits, error)
}

// ---------------------------------------------------------------------------
// Static implementations for development and tests
// ---------------------------------------------------------------------------

// StaticAuthorizer approves everything. Stand-in until a real processor
// adapter is configured.
type StaticAuthorizer struct{}

func (StaticAuthorizer) Authorize(ctx context.Context, amount int64, paymentMethodID string) (*AuthResult, error) {
	return &AuthResult{
		Approved: true,
		AuthCode: fmt.Sprintf("AUTH%d", idgen.NextID()),
	}, nil
}

func (StaticAuthorizer) Payout(ctx context.Context, amount int64, destination string) (*PayoutResult, error) {
	return &PayoutResult{
		TransferID:       fmt.Sprintf("TRF%d", idgen.NextID()),
		EstimatedArrival: time.Now().Add(48 * time.Hour),
	}, nil
}

// StaticLimits treats every user as verified and uncapped.
type StaticLimits struct{}

func (StaticLimits) Limits(ctx context.Context, userID int64) (*Limits, error) {
	return &Limits{KYCVerified: true}, nil
}
