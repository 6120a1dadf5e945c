package main

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "reconcore/docs"
	"reconcore/internal/apstate"
	"reconcore/internal/audit"
	"reconcore/internal/coa"
	"reconcore/internal/config"
	"reconcore/internal/domain"
	"reconcore/internal/erp"
	"reconcore/internal/exception"
	"reconcore/internal/handler"
	"reconcore/internal/journal"
	"reconcore/internal/learning"
	"reconcore/internal/llm"
	"reconcore/internal/middleware"
	"reconcore/internal/notify"
	"reconcore/internal/orchestrator"
	"reconcore/internal/patternstore"
	"reconcore/internal/repository"
	"reconcore/internal/service"
	"reconcore/pkg/logger"
)

// @title Reconciliation & Accounts Payable Engine API
// @version 1.0
// @description API for multi-source transaction reconciliation and AP invoice lifecycle management
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@reconcore.example

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger.Init(cfg.App.LogLevel)
	logger.GetLogger().Info("starting reconciliation and accounts payable engine")

	db, err := connectDB(cfg.Database)
	if err != nil {
		logger.GetLogger().WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	logger.GetLogger().Info("database connection established")

	reconCfg := domain.ReconciliationConfig{
		AmountTolerancePct:      cfg.Reconciliation.AmountTolerancePct,
		DateWindowDays:          cfg.Reconciliation.DateWindowDays,
		MatchThreshold:          cfg.Reconciliation.MatchThreshold,
		ReviewRequiredThreshold: cfg.Reconciliation.ReviewRequiredThreshold,
		AutoMatchThreshold:      cfg.Reconciliation.AutoMatchThreshold,
		AutoJEThreshold:         cfg.Reconciliation.AutoJEThreshold,
		SplitMatchPenalty:       cfg.Reconciliation.SplitMatchPenalty,
		MaxMatrixCells:          cfg.Reconciliation.MaxMatrixCells,
		ScoreWorkers:            cfg.Reconciliation.ScoreWorkers,
		LLMEnabled:              cfg.Reconciliation.LLMEnabled,
	}
	bands := domain.PriorityBands{
		CriticalAmount: cfg.PriorityBands.CriticalAmount,
		HighAmount:     cfg.PriorityBands.HighAmount,
		MediumAmount:   cfg.PriorityBands.MediumAmount,
	}

	// Repositories
	txRepo := repository.NewTransactionRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	draftRepo := repository.NewDraftRepository(db)
	apItemRepo := repository.NewAPItemRepository(db)
	learningRepo := repository.NewLearningRepository(db)
	exceptionRepo := repository.NewExceptionRepository(db)
	recurringRepo := repository.NewRecurringRepository(db)
	patterns := patternstore.New(db)

	// Collaborators. Kafka-backed audit/notify sinks are available in
	// internal/audit and internal/notify for deployments that configure
	// Kafka brokers; a single-process deployment runs on the log-backed
	// collaborators wired below.
	auditSink := audit.NewLogSink()
	notifySink := notify.NewLogSink()
	exceptionRouter := exception.New(exceptionRepo, bands, notifySink)
	erpAdapter := erp.NewNullAdapter()
	coaProvider := coa.NewInMemory(nil)
	learn := learning.New(learningRepo)
	apMachine := apstate.New(apItemRepo)
	apTransitionService := service.NewAPTransitionService(apMachine, apItemRepo, erpAdapter, true)
	recurringService := service.NewRecurringService(recurringRepo, service.NewID)

	var llmProviders []llm.Provider // no concrete provider configured by default; extraction falls back to the baseline parser
	invoiceService := service.NewInvoiceService(apItemRepo, coaProvider, learn, llmProviders, cfg.Reconciliation.VisionConfidenceFloor, service.NewID, bands, recurringService)

	orch := orchestrator.New(txRepo, matchRepo, draftRepo, patterns, exceptionRouter, auditSink, service.NewID, journal.DefaultAccountMapping())
	reconService := service.NewReconciliationService(orch)

	// Handlers
	reconHandler := handler.NewReconciliationHandler(reconService, txRepo, reconCfg)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	apItemHandler := handler.NewAPItemHandler(apTransitionService)
	correctionHandler := handler.NewCorrectionHandler(learn)
	recurringHandler := handler.NewRecurringHandler(recurringService)
	exceptionHandler := handler.NewExceptionHandler(exceptionRouter)

	router := setupRouter(reconHandler, invoiceHandler, apItemHandler, correctionHandler, recurringHandler, exceptionHandler)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.GetLogger().WithField("address", addr).Info("server starting")
	if err := router.Run(addr); err != nil {
		logger.GetLogger().WithError(err).Fatal("failed to start server")
	}
}

func connectDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return db, nil
}

func setupRouter(
	reconHandler *handler.ReconciliationHandler,
	invoiceHandler *handler.InvoiceHandler,
	apItemHandler *handler.APItemHandler,
	correctionHandler *handler.CorrectionHandler,
	recurringHandler *handler.RecurringHandler,
	exceptionHandler *handler.ExceptionHandler,
) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/reconcile", reconHandler.Reconcile)

		v1.POST("/invoices/extract", invoiceHandler.Extract)

		apItems := v1.Group("/ap-items")
		{
			apItems.POST("/transition", apItemHandler.Transition)
			apItems.POST("/merge", apItemHandler.Merge)
			apItems.POST("/split", apItemHandler.Split)
		}

		v1.POST("/corrections", correctionHandler.Record)

		recurringRules := v1.Group("/recurring-rules")
		{
			recurringRules.POST("", recurringHandler.Create)
			recurringRules.PUT("/:id", recurringHandler.Update)
			recurringRules.DELETE("/:id", recurringHandler.Delete)
			recurringRules.GET("", recurringHandler.List)
		}

		exceptions := v1.Group("/exceptions")
		{
			exceptions.GET("", exceptionHandler.List)
			exceptions.POST("/:id/resolve", exceptionHandler.Resolve)
		}
	}

	return router
}
