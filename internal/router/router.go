// Package router assembles the HTTP surface over the services.
package router

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"tallybook/internal/handlers"
	"tallybook/internal/middleware"
	"tallybook/internal/services"
)

// Services is every service the HTTP layer talks to.
type Services struct {
	Users        services.UserServicer
	Accounts     services.AccountServicer
	Categories   services.CategoryServicer
	Ledger       services.LedgerServicer
	Rollups      services.RollupServicer
	Audit        services.AuditServicer
	Transactions services.TransactionServicer
	Consistency  services.ConsistencyServicer
}

// NewServices wires the service graph over db. txOptions is applied to every
// mutation transaction; workers bounds concurrent drift scans.
func NewServices(db *gorm.DB, txOptions *sql.TxOptions, workers int) *Services {
	accounts := services.NewAccountService(db)
	s := &Services{
		Users:      services.NewUserService(db),
		Accounts:   accounts,
		Categories: services.NewCategoryService(db),
		Ledger:     services.NewLedgerService(db, accounts),
		Rollups:    services.NewRollupService(db),
		Audit:      services.NewAuditService(db),
	}
	s.Transactions = services.NewTransactionService(db, s.Accounts, s.Categories, s.Ledger, s.Rollups, s.Audit, txOptions)
	s.Consistency = services.NewConsistencyService(db, s.Accounts, workers)
	return s
}

// New builds the Gin engine with middleware and every /api/v1 route.
func New(svc *Services) *gin.Engine {
	userHandler := handlers.NewUserHandler(svc.Users)
	accountHandler := handlers.NewAccountHandler(svc.Accounts, svc.Ledger)
	categoryHandler := handlers.NewCategoryHandler(svc.Categories)
	transactionHandler := handlers.NewTransactionHandler(svc.Transactions, svc.Ledger)
	summaryHandler := handlers.NewSummaryHandler(svc.Rollups)
	auditHandler := handlers.NewAuditHandler(svc.Audit)
	consistencyHandler := handlers.NewConsistencyHandler(svc.Consistency)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+middleware.ActorHeader+", "+middleware.RequestIDHeader)
		c.Writer.Header().Set("Access-Control-Expose-Headers", middleware.RequestIDHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// User projections are registered by the upstream identity service.
	v1.POST("/users", userHandler.CreateUser)
	v1.GET("/users/:id", userHandler.GetUserByID)

	// Everything else names an actor
	protected := v1.Group("/")
	protected.Use(middleware.RequireActor())

	accounts := protected.Group("/accounts")
	accounts.POST("", accountHandler.CreateAccount)
	accounts.GET("/:id", accountHandler.GetAccountByID)
	accounts.GET("/:id/ledger", accountHandler.GetAccountLedger)
	accounts.GET("/:id/ledger/replay", accountHandler.ReplayLedger)
	accounts.GET("/:id/summaries", summaryHandler.GetAccountSummaries)
	accounts.GET("/:id/drift", consistencyHandler.GetDrift)
	accounts.POST("/:id/repair", consistencyHandler.Repair)

	categories := protected.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("/:id", categoryHandler.GetCategoryByID)

	transactions := protected.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.GetTransactions)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.GET("/:id/ledger", transactionHandler.GetTransactionLedger)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	protected.GET("/audit", auditHandler.GetAuditTrail)

	return router
}
