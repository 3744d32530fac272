package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tillpoint/tillpoint/internal/app"
	"github.com/tillpoint/tillpoint/internal/auth"
	"github.com/tillpoint/tillpoint/internal/catalog"
	"github.com/tillpoint/tillpoint/internal/checkout"
	"github.com/tillpoint/tillpoint/internal/inventory"
	"github.com/tillpoint/tillpoint/internal/invoices"
	jobmetrics "github.com/tillpoint/tillpoint/internal/jobs"
	"github.com/tillpoint/tillpoint/internal/masterdata/categories"
	"github.com/tillpoint/tillpoint/internal/masterdata/suppliers"
	"github.com/tillpoint/tillpoint/internal/observability"
	"github.com/tillpoint/tillpoint/internal/platform/cache"
	"github.com/tillpoint/tillpoint/internal/platform/db"
	"github.com/tillpoint/tillpoint/internal/printing"
	"github.com/tillpoint/tillpoint/internal/procurement"
	"github.com/tillpoint/tillpoint/internal/promotions"
	"github.com/tillpoint/tillpoint/internal/rbac"
	"github.com/tillpoint/tillpoint/internal/reports"
	"github.com/tillpoint/tillpoint/internal/shared"
	"github.com/tillpoint/tillpoint/internal/users"
	"github.com/tillpoint/tillpoint/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	loc, _ := cfg.Location()

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()
	if cfg.RunMigrations {
		if err := db.Migrate(dbpool); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "tillpoint_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.SessionSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	rbacService := rbac.NewService(rbac.NewRepository(dbpool))
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	authService := auth.NewService(auth.NewRepository(dbpool), rbacService)
	usersService := users.NewService(users.NewRepository(dbpool), auditLogger)

	money, err := printing.NewMoney(cfg.Currency, cfg.Language())
	if err != nil {
		logger.Error("init money format", slog.Any("error", err))
		os.Exit(1)
	}
	pages, err := printing.NewPages(money, loc)
	if err != nil {
		logger.Error("parse print templates", slog.Any("error", err))
		os.Exit(1)
	}
	renderer := printing.NewRenderer(
		printing.Store{Name: cfg.StoreName, Address: cfg.StoreAddress, Footer: cfg.ReceiptFooter},
		money, pages, printing.NewGotenberg(cfg.GotenbergURL), logger)

	notifier := catalog.NewRedisNotifier(redisClient, catalog.ChangeChannel)
	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, notifier, auditLogger, logger)

	invoiceRepo := invoices.NewRepository(dbpool)
	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportService := reports.NewService(invoiceRepo, reportCache, loc, cfg.StoreName, logger)
	invoiceService := invoices.NewService(invoiceRepo, auditLogger, reportCache, logger)

	inventoryService := inventory.NewService(inventory.NewRepository(dbpool, catalogRepo), notifier, auditLogger, idempotencyStore, logger)
	procurementService := procurement.NewService(procurement.NewRepository(dbpool), inventoryService, auditLogger, logger)
	promotionService := promotions.NewService(promotions.NewRepository(dbpool), auditLogger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts, jobmetrics.NewMetrics(metrics.Registerer()), logger)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	registry := checkout.NewRegistry(checkout.Deps{
		Store:      checkout.NewPGStore(dbpool, invoiceRepo, catalogRepo, notifier, cfg.CheckoutStrict, logger),
		Products:   catalogService,
		Promotions: promotionService,
		Observers:  []checkout.Observer{reportService, jobClient},
		Metrics:    metrics,
		Location:   loc,
		Logger:     logger,
	}, cfg.POSTerminals...)
	feed := catalog.NewFeed(catalogService, redisClient, catalog.FeedOptions{Resync: cfg.CatalogResync, Logger: logger})
	go registry.Run(ctx, feed, 2*time.Second)
	go registry.SweepIdle(ctx, time.Minute, cfg.TerminalIdle)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		Metrics:            metrics,
		AuthHandler:        auth.NewHandler(logger, authService, sessionManager, csrfManager),
		CheckoutHandler:    checkout.NewHandler(logger, registry, renderer, rbacMiddleware),
		CatalogHandler:     catalog.NewHandler(logger, catalogService, renderer, rbacMiddleware),
		InvoicesHandler:    invoices.NewHandler(logger, invoiceService, renderer, rbacMiddleware),
		InventoryHandler:   inventory.NewHandler(logger, inventoryService, rbacMiddleware),
		ProcurementHandler: procurement.NewHandler(logger, procurementService, rbacMiddleware),
		CategoriesHandler:  categories.NewHandler(logger, categories.NewService(categories.NewRepository(dbpool)), rbacMiddleware),
		SuppliersHandler:   suppliers.NewHandler(logger, suppliers.NewService(suppliers.NewRepository(dbpool)), rbacMiddleware),
		PromotionsHandler:  promotions.NewHandler(logger, promotionService, rbacMiddleware),
		ReportsHandler:     reports.NewHandler(logger, reportService, renderer, rbacMiddleware),
		UsersHandler:       users.NewHandler(logger, usersService, rbacMiddleware),
		RBACHandler:        rbac.NewHandler(logger, rbacService, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.Bool("strict_checkout", cfg.CheckoutStrict))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
