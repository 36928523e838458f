package handler

import (
	"errors"
	"strconv"
	"time"

	"savecircle/internal/config"
	"savecircle/internal/infrastructure/lock"
	"savecircle/internal/repository"
	"savecircle/internal/service"
	"savecircle/internal/service/gateway"
	"savecircle/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler bundles all service dependencies behind the HTTP surface.
// Handlers stay thin: bind, call the service, map the error.
type Handler struct {
	walletService  *service.WalletService
	planService    *service.PlanService
	groupService   *service.GroupService
	disputeService *service.DisputeService
}

func NewHandler(db *gorm.DB, locks lock.Manager, cfg *config.Config, authorizer gateway.Authorizer, limits gateway.LimitsProvider) *Handler {
	walletSvc := service.NewWalletService(db, cfg, locks, authorizer, limits)
	return &Handler{
		walletService:  walletSvc,
		planService:    service.NewPlanService(db, cfg, walletSvc),
		groupService:   service.NewGroupService(db, cfg, locks, walletSvc),
		disputeService: service.NewDisputeService(db, cfg, walletSvc),
	}
}

// writeError maps service and repository sentinels onto the stable business
// codes clients key off. Unknown errors surface as a generic server error.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrWalletNotFound):
		response.BusinessError(c, response.CodeWalletNotFound, err.Error())
	case errors.Is(err, repository.ErrInsufficientFunds), errors.Is(err, service.ErrInsufficientBalance):
		response.BusinessError(c, response.CodeInsufficientBalance, err.Error())
	case errors.Is(err, service.ErrInvalidAmount):
		response.BusinessError(c, response.CodeInvalidAmount, err.Error())
	case errors.Is(err, service.ErrWalletFrozen):
		response.BusinessError(c, response.CodeWalletFrozen, err.Error())
	case errors.Is(err, service.ErrAuthorizationDeclined):
		response.BusinessError(c, response.CodeAuthorizationDeclined, err.Error())
	case errors.Is(err, service.ErrLimitExceeded):
		response.BusinessError(c, response.CodeLimitExceeded, err.Error())
	case errors.Is(err, service.ErrKYCRequired):
		response.BusinessError(c, response.CodeLimitExceeded, err.Error())
	case errors.Is(err, service.ErrInvalidVerificationCode):
		response.BusinessError(c, response.CodeInvalidCode, err.Error())
	case errors.Is(err, service.ErrAmountExceedsOriginal):
		response.BusinessError(c, response.CodeAmountExceedsOriginal, err.Error())
	case errors.Is(err, service.ErrNotRefundable):
		response.BusinessError(c, response.CodeTxnNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyContributedToday):
		response.BusinessError(c, response.CodeAlreadyContributed, err.Error())
	case errors.Is(err, repository.ErrPlanNotFound):
		response.BusinessError(c, response.CodePlanNotFound, err.Error())
	case errors.Is(err, service.ErrPlanNotOwned):
		response.BusinessError(c, response.CodePlanNotFound, err.Error())
	case errors.Is(err, service.ErrPlanNotActive), errors.Is(err, service.ErrTargetNotReached), errors.Is(err, service.ErrPlanNotCompleted):
		response.BusinessError(c, response.CodePlanNotActive, err.Error())
	case errors.Is(err, repository.ErrGroupNotFound):
		response.BusinessError(c, response.CodeGroupNotFound, err.Error())
	case errors.Is(err, service.ErrGroupFull):
		response.BusinessError(c, response.CodeGroupFull, err.Error())
	case errors.Is(err, service.ErrAlreadyMember):
		response.BusinessError(c, response.CodeAlreadyMember, err.Error())
	case errors.Is(err, service.ErrInvalidJoinCode):
		response.BusinessError(c, response.CodeInvalidJoinCode, err.Error())
	case errors.Is(err, service.ErrGroupClosed), errors.Is(err, service.ErrWrongContribution):
		response.BusinessError(c, response.CodeGroupStateInvalid, err.Error())
	case errors.Is(err, service.ErrNotGroupMember):
		response.BusinessError(c, response.CodeNotGroupMember, err.Error())
	case errors.Is(err, service.ErrCycleIncomplete):
		response.BusinessError(c, response.CodeCycleIncomplete, err.Error())
	case errors.Is(err, repository.ErrDisputeNotFound):
		response.BusinessError(c, response.CodeDisputeNotFound, err.Error())
	case errors.Is(err, service.ErrDisputeClosed), errors.Is(err, repository.ErrDisputeStatusInvalid):
		response.BusinessError(c, response.CodeDisputeNotFound, err.Error())
	case errors.Is(err, repository.ErrTxnNotFound):
		response.BusinessError(c, response.CodeTxnNotFound, err.Error())
	case errors.Is(err, service.ErrConcurrencyConflict):
		response.BusinessError(c, response.CodeConcurrencyConflict, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

func queryUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		response.ParamError(c, "invalid user_id")
		return 0, false
	}
	return userID, true
}

// ============================================================
// Wallet
// ============================================================

// GetWallet returns the wallet with its sub-balances.
// GET /api/v1/wallet?user_id=xxx
func (h *Handler) GetWallet(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	wallet, err := h.walletService.GetWallet(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, wallet)
}

type DepositRequest struct {
	UserID          int64  `json:"user_id" binding:"required"`
	Amount          int64  `json:"amount" binding:"required,gt=0"`
	PaymentMethodID string `json:"payment_method_id" binding:"required"`
}

// Deposit funds the wallet from an external payment method.
// POST /api/v1/wallet/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	txn, err := h.walletService.Deposit(c.Request.Context(), req.UserID, req.Amount, req.PaymentMethodID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"txn_no":     txn.TxnNo,
		"status":     txn.Status,
		"amount":     txn.Amount,
		"fee":        txn.Fee,
		"net_amount": txn.NetAmount,
	})
}

type WithdrawRequest struct {
	UserID      int64  `json:"user_id" binding:"required"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Destination string `json:"destination" binding:"required"`
}

// Withdraw debits available balance; settlement happens asynchronously.
// POST /api/v1/wallet/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	txn, err := h.walletService.Withdraw(c.Request.Context(), req.UserID, req.Amount, req.Destination)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"txn_no": txn.TxnNo,
		"status": txn.Status,
		"amount": txn.Amount,
	})
}

// CancelWithdrawal cancels a still-pending withdrawal and re-credits it.
// POST /api/v1/wallet/withdraw/cancel
func (h *Handler) CancelWithdrawal(c *gin.Context) {
	var req struct {
		UserID int64  `json:"user_id" binding:"required"`
		TxnNo  string `json:"txn_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	if err := h.walletService.CancelWithdrawal(c.Request.Context(), req.UserID, req.TxnNo); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"txn_no": req.TxnNo, "status": "CANCELLED"})
}

// ListTransactions pages through the ledger, newest first.
// GET /api/v1/wallet/transactions?user_id=xxx&type=&status=&page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	filter := repository.TxnFilter{
		Type:   c.Query("type"),
		Status: c.Query("status"),
	}

	txns, total, err := h.walletService.ListTransactions(c.Request.Context(), userID, filter, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      txns,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

type FreezeRequest struct {
	UserID        int64  `json:"user_id" binding:"required"`
	Reason        string `json:"reason" binding:"required"`
	DurationHours int    `json:"duration_hours"`
}

// Freeze blocks outgoing movement and returns the unfreeze verification code.
// POST /api/v1/wallet/freeze
func (h *Handler) Freeze(c *gin.Context) {
	var req FreezeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	code, err := h.walletService.Freeze(c.Request.Context(), req.UserID, req.Reason, req.DurationHours)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"verification_code": code})
}

// Unfreeze lifts a freeze given the verification code.
// POST /api/v1/wallet/unfreeze
func (h *Handler) Unfreeze(c *gin.Context) {
	var req struct {
		UserID           int64  `json:"user_id" binding:"required"`
		VerificationCode string `json:"verification_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	if err := h.walletService.Unfreeze(c.Request.Context(), req.UserID, req.VerificationCode); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "wallet unfrozen"})
}

// ClaimReferral moves accumulated referral earnings into available balance.
// POST /api/v1/wallet/referral/claim
func (h *Handler) ClaimReferral(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	txn, err := h.walletService.ClaimReferral(c.Request.Context(), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"txn_no": txn.TxnNo, "amount": txn.Amount})
}

type PocketRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
	Name   string `json:"name" binding:"required"`
}

// LockPocket sets money aside in a named pocket.
// POST /api/v1/wallet/pocket/lock
func (h *Handler) LockPocket(c *gin.Context) {
	var req PocketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	txn, err := h.walletService.LockForPocket(c.Request.Context(), req.UserID, req.Amount, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"txn_no": txn.TxnNo, "amount": txn.Amount})
}

// ReleasePocket returns pocket money to available balance.
// POST /api/v1/wallet/pocket/release
func (h *Handler) ReleasePocket(c *gin.Context) {
	var req PocketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	txn, err := h.walletService.UnlockFromPocket(c.Request.Context(), req.UserID, req.Amount, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"txn_no": txn.TxnNo, "amount": txn.Amount})
}

// ============================================================
// Savings plans
// ============================================================

type CreatePlanRequest struct {
	UserID               int64  `json:"user_id" binding:"required"`
	Name                 string `json:"name" binding:"required"`
	SavingsMode          string `json:"savings_mode"`
	DailyAmount          int64  `json:"daily_amount"`
	WeeklyAmount         int64  `json:"weekly_amount"`
	TotalTargetAmount    int64  `json:"total_target_amount" binding:"required,gt=0"`
	TargetCompletionDate string `json:"target_completion_date"`
}

// CreatePlan starts a savings challenge.
// POST /api/v1/plan/create
func (h *Handler) CreatePlan(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	serviceReq := &service.CreatePlanRequest{
		UserID:            req.UserID,
		Name:              req.Name,
		SavingsMode:       req.SavingsMode,
		DailyAmount:       req.DailyAmount,
		WeeklyAmount:      req.WeeklyAmount,
		TotalTargetAmount: req.TotalTargetAmount,
	}
	if req.TargetCompletionDate != "" {
		t, err := time.Parse("2006-01-02", req.TargetCompletionDate)
		if err != nil {
			response.ParamError(c, "invalid target_completion_date, want YYYY-MM-DD")
			return
		}
		serviceReq.TargetCompletionDate = &t
	}

	plan, err := h.planService.Create(c.Request.Context(), serviceReq)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, plan)
}

// ListPlans returns the user's plans, newest first.
// GET /api/v1/plan/list?user_id=xxx
func (h *Handler) ListPlans(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	plans, err := h.planService.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"list": plans})
}

// GetPlan returns one plan, ownership enforced.
// GET /api/v1/plan/detail?user_id=xxx&plan_id=xxx
func (h *Handler) GetPlan(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	planID, err := strconv.ParseInt(c.Query("plan_id"), 10, 64)
	if err != nil || planID <= 0 {
		response.ParamError(c, "invalid plan_id")
		return
	}

	plan, err := h.planService.Get(c.Request.Context(), userID, planID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, plan)
}

type planActionRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
	PlanID int64 `json:"plan_id" binding:"required"`
}

// ContributePlan records today's contribution for a plan.
// POST /api/v1/plan/contribute
func (h *Handler) ContributePlan(c *gin.Context) {
	var req planActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	txn, err := h.planService.ContributeDaily(c.Request.Context(), req.UserID, req.PlanID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"txn_no": txn.TxnNo,
		"amount": txn.Amount,
	})
}

// PausePlan pauses an active plan. Pausing resets the streak.
// POST /api/v1/plan/pause
func (h *Handler) PausePlan(c *gin.Context) {
	var req struct {
		UserID int64  `json:"user_id" binding:"required"`
		PlanID int64  `json:"plan_id" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	if err := h.planService.Pause(c.Request.Context(), req.UserID, req.PlanID, req.Reason); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "plan paused"})
}

// ResumePlan reactivates a paused plan.
// POST /api/v1/plan/resume
func (h *Handler) ResumePlan(c *gin.Context) {
	var req planActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	if err := h.planService.Resume(c.Request.Context(), req.UserID, req.PlanID); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "plan resumed"})
}

// CancelPlan cancels a plan, optionally releasing the saved balance.
// POST /api/v1/plan/cancel
func (h *Handler) CancelPlan(c *gin.Context) {
	var req struct {
		UserID          int64 `json:"user_id" binding:"required"`
		PlanID          int64 `json:"plan_id" binding:"required"`
		WithdrawBalance bool  `json:"withdraw_balance"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	if err := h.planService.Cancel(c.Request.Context(), req.UserID, req.PlanID, req.WithdrawBalance); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "plan cancelled"})
}

// CompletePlan closes a plan that reached its target and releases the funds.
// POST /api/v1/plan/complete
func (h *Handler) CompletePlan(c *gin.Context) {
	var req planActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	if err := h.planService.Complete(c.Request.Context(), req.UserID, req.PlanID); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "plan completed"})
}

// RestartPlan spawns a fresh instance of a finished plan.
// POST /api/v1/plan/restart
func (h *Handler) RestartPlan(c *gin.Context) {
	var req planActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	plan, err := h.planService.Restart(c.Request.Context(), req.UserID, req.PlanID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, plan)
}

// ============================================================
// Rotating groups
// ============================================================

type CreateGroupRequest struct {
	CreatorID          int64  `json:"creator_id" binding:"required"`
	Name               string `json:"name" binding:"required"`
	Purpose            string `json:"purpose"`
	ContributionAmount int64  `json:"contribution_amount" binding:"required,gt=0"`
	Frequency          string `json:"frequency"`
	CycleRounds        int    `json:"cycle_rounds" binding:"required,gt=0"`
	MaxMembers         int    `json:"max_members" binding:"required"`
}

// CreateGroup opens a rotating savings group.
// POST /api/v1/group/create
func (h *Handler) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	group, err := h.groupService.Create(c.Request.Context(), &service.CreateGroupRequest{
		CreatorID:          req.CreatorID,
		Name:               req.Name,
		Purpose:            req.Purpose,
		ContributionAmount: req.ContributionAmount,
		Frequency:          req.Frequency,
		CycleRounds:        req.CycleRounds,
		MaxMembers:         req.MaxMembers,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"group_id":  group.ID,
		"join_code": group.JoinCode,
		"status":    group.Status,
	})
}

// GetGroup returns the group with its member roster.
// GET /api/v1/group/detail?group_id=xxx
func (h *Handler) GetGroup(c *gin.Context) {
	groupID, err := strconv.ParseInt(c.Query("group_id"), 10, 64)
	if err != nil || groupID <= 0 {
		response.ParamError(c, "invalid group_id")
		return
	}

	view, err := h.groupService.Get(c.Request.Context(), groupID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, view)
}

// ListGroups returns the groups the user belongs to.
// GET /api/v1/group/list?user_id=xxx
func (h *Handler) ListGroups(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	groups, err := h.groupService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"list": groups})
}

// JoinGroup adds the user to an open group by join code.
// POST /api/v1/group/join
func (h *Handler) JoinGroup(c *gin.Context) {
	var req struct {
		UserID   int64  `json:"user_id" binding:"required"`
		JoinCode string `json:"join_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	group, err := h.groupService.Join(c.Request.Context(), req.UserID, req.JoinCode)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"group_id":        group.ID,
		"status":          group.Status,
		"current_members": group.CurrentMembers,
	})
}

type groupActionRequest struct {
	UserID  int64 `json:"user_id" binding:"required"`
	GroupID int64 `json:"group_id" binding:"required"`
}

// ContributeGroup locks a member's contribution into the group pool.
// POST /api/v1/group/contribute
func (h *Handler) ContributeGroup(c *gin.Context) {
	var req struct {
		UserID  int64 `json:"user_id" binding:"required"`
		GroupID int64 `json:"group_id" binding:"required"`
		Amount  int64 `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	txn, err := h.groupService.Contribute(c.Request.Context(), req.GroupID, req.UserID, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"txn_no": txn.TxnNo, "amount": txn.Amount})
}

// CompleteGroupCycle verifies everyone paid in full and distributes the pool.
// POST /api/v1/group/complete-cycle
func (h *Handler) CompleteGroupCycle(c *gin.Context) {
	var req struct {
		GroupID int64 `json:"group_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	if err := h.groupService.CompleteCycle(c.Request.Context(), req.GroupID); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "cycle completed"})
}

// LeaveGroup marks the member as departed; contributed funds stay locked.
// POST /api/v1/group/leave
func (h *Handler) LeaveGroup(c *gin.Context) {
	var req groupActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	if err := h.groupService.Leave(c.Request.Context(), req.GroupID, req.UserID); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "left group"})
}

// VoteDissolve records a dissolve vote; a unanimous vote refunds and closes.
// POST /api/v1/group/dissolve-vote
func (h *Handler) VoteDissolve(c *gin.Context) {
	var req groupActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	dissolved, err := h.groupService.VoteDissolve(c.Request.Context(), req.GroupID, req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"dissolved": dissolved})
}

// ============================================================
// Disputes
// ============================================================

type FileDisputeRequest struct {
	UserID      int64  `json:"user_id" binding:"required"`
	TxnNo       string `json:"txn_no" binding:"required"`
	Reason      string `json:"reason" binding:"required"`
	Description string `json:"description"`
}

// FileDispute opens a user dispute against a ledger entry.
// POST /api/v1/dispute/file
func (h *Handler) FileDispute(c *gin.Context) {
	var req FileDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	dispute, err := h.disputeService.File(c.Request.Context(), req.UserID, req.TxnNo, req.Reason, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"dispute_no": dispute.DisputeNo,
		"status":     dispute.Status,
		"deadline":   dispute.Deadline,
	})
}

// FileChargeback records a network chargeback and holds the disputed amount.
// POST /api/v1/dispute/chargeback
func (h *Handler) FileChargeback(c *gin.Context) {
	var req struct {
		UserID int64  `json:"user_id" binding:"required"`
		TxnNo  string `json:"txn_no" binding:"required"`
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	dispute, err := h.disputeService.FileChargeback(c.Request.Context(), req.UserID, req.TxnNo, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"dispute_no":  dispute.DisputeNo,
		"status":      dispute.Status,
		"hold_txn_no": dispute.HoldTxnNo,
		"deadline":    dispute.Deadline,
	})
}

// GetDispute returns one dispute by number.
// GET /api/v1/dispute/detail?dispute_no=xxx
func (h *Handler) GetDispute(c *gin.Context) {
	disputeNo := c.Query("dispute_no")
	if disputeNo == "" {
		response.ParamError(c, "dispute_no is required")
		return
	}

	dispute, err := h.disputeService.Get(c.Request.Context(), disputeNo)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, dispute)
}

// ListDisputes returns the user's disputes.
// GET /api/v1/dispute/list?user_id=xxx
func (h *Handler) ListDisputes(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	disputes, err := h.disputeService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"list": disputes})
}

// AttachEvidence adds evidence to an open dispute.
// POST /api/v1/dispute/evidence
func (h *Handler) AttachEvidence(c *gin.Context) {
	var req struct {
		DisputeNo string `json:"dispute_no" binding:"required"`
		Evidence  string `json:"evidence" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	if err := h.disputeService.AttachEvidence(c.Request.Context(), req.DisputeNo, req.Evidence); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "evidence attached"})
}

// ResolveDispute closes a dispute for or against the user.
// POST /api/v1/dispute/resolve
func (h *Handler) ResolveDispute(c *gin.Context) {
	var req struct {
		DisputeNo     string `json:"dispute_no" binding:"required"`
		InFavorOfUser *bool  `json:"in_favor_of_user" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	if err := h.disputeService.Resolve(c.Request.Context(), req.DisputeNo, *req.InFavorOfUser); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "dispute resolved"})
}
