package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tiammomo/mamoji-sub001/internal/config"
	"github.com/tiammomo/mamoji-sub001/internal/handler"
	"github.com/tiammomo/mamoji-sub001/internal/middleware"
	"github.com/tiammomo/mamoji-sub001/internal/service"
	"github.com/tiammomo/mamoji-sub001/internal/session"
	"github.com/tiammomo/mamoji-sub001/internal/store"
)

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Auth         *service.AuthService
	Ledgers      *service.LedgerService
	Invitations  *service.InvitationService
	Accounts     *service.AccountService
	Categories   *service.CategoryService
	Transactions *service.TransactionService
	Budgets      *service.BudgetService
	Reports      *service.ReportService
	Audit        *service.AuditService
}

// NewServices wires the engine on top of st.
func NewServices(cfg *config.Config, st *store.Store, guard *session.Guard, opts service.Options) *Services {
	authz := service.NewAuthority(st)
	invites := service.NewInvitationService(st, authz, cfg.App.Domain, opts)
	return &Services{
		Auth:         service.NewAuthService(st, guard, cfg.Security.BcryptCost, cfg.App.DefaultCurrency, opts),
		Ledgers:      service.NewLedgerService(st, authz, invites, cfg.App.DefaultCurrency, opts),
		Invitations:  invites,
		Accounts:     service.NewAccountService(st, authz, cfg.App.DefaultCurrency, opts),
		Categories:   service.NewCategoryService(st, authz),
		Transactions: service.NewTransactionService(st, authz, opts),
		Budgets:      service.NewBudgetService(st, authz, opts),
		Reports:      service.NewReportService(st, authz),
		Audit:        service.NewAuditService(st, opts),
	}
}

// SetupRouter configures the Gin engine and the JSON API.
func SetupRouter(cfg *config.Config, st *store.Store, svc *Services, log *zap.Logger) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.Metrics())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ====== API ======
	api := r.Group("/api")

	// 登录/注册接口（不需要鉴权）
	authHandler := handler.NewAuthHandler(svc.Auth)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	// 需要登录才能访问的接口
	protected := api.Group("")
	protected.Use(
		middleware.AuthMiddleware(svc.Auth),
		middleware.LedgerMiddleware(svc.Ledgers),
		middleware.AuditMiddleware(st, log),
	)

	protected.POST("/auth/logout", authHandler.Logout)

	profileHandler := handler.NewProfileHandler(svc.Auth)
	protected.GET("/me", profileHandler.GetMe)
	protected.POST("/profile", profileHandler.UpdateProfile)
	protected.POST("/profile/password", profileHandler.ChangePassword)

	ledgerHandler := handler.NewLedgerHandler(svc.Ledgers, svc.Invitations)
	protected.POST("/ledgers", ledgerHandler.Create)
	protected.GET("/ledgers", ledgerHandler.List)
	protected.GET("/ledgers/:id", ledgerHandler.Get)
	protected.PUT("/ledgers/:id", ledgerHandler.Update)
	protected.DELETE("/ledgers/:id", ledgerHandler.Delete)
	protected.POST("/ledgers/:id/default", ledgerHandler.SetDefault)
	protected.GET("/ledgers/:id/members", ledgerHandler.Members)
	protected.PUT("/ledgers/:id/members/:userId", ledgerHandler.UpdateMemberRole)
	protected.DELETE("/ledgers/:id/members/:userId", ledgerHandler.RemoveMember)
	protected.POST("/ledgers/:id/quit", ledgerHandler.Quit)
	protected.POST("/ledgers/:id/invitations", ledgerHandler.CreateInvitation)
	protected.GET("/ledgers/:id/invitations", ledgerHandler.ListInvitations)
	protected.DELETE("/ledgers/:id/invitations/:code", ledgerHandler.RevokeInvitation)
	protected.POST("/join/:code", ledgerHandler.Join)

	accountHandler := handler.NewAccountHandler(svc.Accounts)
	protected.POST("/accounts", accountHandler.Create)
	protected.GET("/accounts", accountHandler.List)
	protected.GET("/accounts/summary", accountHandler.Summary)
	protected.GET("/accounts/:id", accountHandler.Get)
	protected.PUT("/accounts/:id", accountHandler.Update)
	protected.DELETE("/accounts/:id", accountHandler.Deactivate)

	categoryHandler := handler.NewCategoryHandler(svc.Categories)
	protected.POST("/categories", categoryHandler.Create)
	protected.GET("/categories", categoryHandler.List)
	protected.DELETE("/categories/:id", categoryHandler.Delete)

	txHandler := handler.NewTransactionHandler(svc.Transactions)
	protected.POST("/transactions", txHandler.Create)
	protected.GET("/transactions", txHandler.List)
	protected.GET("/transactions/summary", txHandler.Summary)
	protected.GET("/transactions/:id", txHandler.Get)
	protected.DELETE("/transactions/:id", txHandler.Rollback)
	protected.POST("/transactions/:id/refunds", txHandler.CreateRefund)
	protected.GET("/transactions/:id/refunds", txHandler.ListRefunds)
	protected.DELETE("/refunds/:id", txHandler.CancelRefund)

	budgetHandler := handler.NewBudgetHandler(svc.Budgets)
	protected.POST("/budgets", budgetHandler.Create)
	protected.GET("/budgets", budgetHandler.List)
	protected.GET("/budgets/:id", budgetHandler.Get)
	protected.PUT("/budgets/:id", budgetHandler.Update)
	protected.POST("/budgets/:id/cancel", budgetHandler.Cancel)
	protected.POST("/budgets/:id/recalculate", budgetHandler.Recalculate)
	protected.DELETE("/budgets/:id", budgetHandler.Delete)

	reportHandler := handler.NewReportHandler(svc.Reports)
	protected.GET("/reports/summary", reportHandler.Summary)
	protected.GET("/reports/categories", reportHandler.ByCategory)
	protected.GET("/reports/balance-sheet", reportHandler.BalanceSheet)
	protected.GET("/reports/trend", reportHandler.Trend)
	protected.GET("/stats/monthly", reportHandler.Monthly)

	logHandler := handler.NewLogHandler(svc.Audit)
	protected.GET("/logs", logHandler.ListLogs)

	exportHandler := handler.NewExportHandler(svc.Transactions)
	protected.GET("/export/csv", exportHandler.ExportCSV)
	protected.GET("/export/xlsx", exportHandler.ExportXLSX)

	return r
}
