package handler

import (
	"savecircle/internal/config"
	"savecircle/internal/infrastructure/lock"
	"savecircle/internal/service/gateway"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter wires middleware and all API routes.
func SetupRouter(db *gorm.DB, locks lock.Manager, cfg *config.Config, authorizer gateway.Authorizer, limits gateway.LimitsProvider) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, locks, cfg, authorizer, limits)

	api := r.Group("/api/v1")
	{
		wallet := api.Group("/wallet")
		{
			wallet.GET("", h.GetWallet)
			wallet.POST("/deposit", h.Deposit)
			wallet.POST("/withdraw", h.Withdraw)
			wallet.POST("/withdraw/cancel", h.CancelWithdrawal)
			wallet.GET("/transactions", h.ListTransactions)
			wallet.POST("/freeze", h.Freeze)
			wallet.POST("/unfreeze", h.Unfreeze)
			wallet.POST("/referral/claim", h.ClaimReferral)
			wallet.POST("/pocket/lock", h.LockPocket)
			wallet.POST("/pocket/release", h.ReleasePocket)
		}

		plan := api.Group("/plan")
		{
			plan.POST("/create", h.CreatePlan)
			plan.GET("/list", h.ListPlans)
			plan.GET("/detail", h.GetPlan)
			plan.POST("/contribute", h.ContributePlan)
			plan.POST("/pause", h.PausePlan)
			plan.POST("/resume", h.ResumePlan)
			plan.POST("/cancel", h.CancelPlan)
			plan.POST("/complete", h.CompletePlan)
			plan.POST("/restart", h.RestartPlan)
		}

		group := api.Group("/group")
		{
			group.POST("/create", h.CreateGroup)
			group.GET("/detail", h.GetGroup)
			group.GET("/list", h.ListGroups)
			group.POST("/join", h.JoinGroup)
			group.POST("/contribute", h.ContributeGroup)
			group.POST("/complete-cycle", h.CompleteGroupCycle)
			group.POST("/leave", h.LeaveGroup)
			group.POST("/dissolve-vote", h.VoteDissolve)
		}

		dispute := api.Group("/dispute")
		{
			dispute.POST("/file", h.FileDispute)
			dispute.POST("/chargeback", h.FileChargeback)
			dispute.GET("/detail", h.GetDispute)
			dispute.GET("/list", h.ListDisputes)
			dispute.POST("/evidence", h.AttachEvidence)
			dispute.POST("/resolve", h.ResolveDispute)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
