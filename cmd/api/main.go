package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/dispute-service/internal/api/http"
	"github.com/spec-kit/dispute-service/internal/api/http/handlers"
	"github.com/spec-kit/dispute-service/internal/auth"
	"github.com/spec-kit/dispute-service/internal/config"
	"github.com/spec-kit/dispute-service/internal/events"
	"github.com/spec-kit/dispute-service/internal/gateway"
	"github.com/spec-kit/dispute-service/internal/observability"
	"github.com/spec-kit/dispute-service/internal/persistence"
	"github.com/spec-kit/dispute-service/internal/ratelimit"
	"github.com/spec-kit/dispute-service/internal/repository"
	"github.com/spec-kit/dispute-service/internal/service"
	"github.com/spec-kit/dispute-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	arbiterRepo := repository.NewArbiterRepository(pool)
	disputeRepo := repository.NewDisputeRepository(pool)
	referenceRepo := repository.NewReferenceRepository(pool)
	historyRepo := repository.NewHistoryRepository(pool)
	settlementRepo := repository.NewSettlementRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	conversationClient := gateway.NewConversationClient(cfg.Gateway, logger)
	ledgerClient := gateway.NewLedgerClient(cfg.Gateway, logger)

	filingLimiter := ratelimit.NewLimiter(redis.Client, "dispute:filing",
		cfg.Dispute.FilingRateLimitPerHour, time.Hour)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:    userRepo,
		ArbiterRepo: arbiterRepo,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo, arbiterRepo)

	disputeService := service.NewDisputeService(service.DisputeDependencies{
		DisputeRepo:   disputeRepo,
		ReferenceRepo: referenceRepo,
		UserRepo:      userRepo,
		HistoryRepo:   historyRepo,
		Eligibility:   service.NewEligibilityChecker(referenceRepo, disputeRepo, cfg.Dispute),
		Evidence:      service.NewEvidenceAttacher(cfg.Dispute.MaxEvidenceImages),
		Negotiator:    service.NewPartialRefundNegotiator(),
		Settlement:    service.NewResolutionSettlement(settlementRepo, ledgerClient, metrics, logger),
		Conversations: conversationClient,
		Dispatcher:    dispatcher,
		FilingLimiter: filingLimiter,
		Metrics:       metrics,
		Logger:        logger,
		Config:        cfg.Dispute,
	})

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Disputes:       handlers.NewDisputesHandler(disputeService),
		AdminDisputes:  handlers.NewAdminDisputesHandler(disputeService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	escalationWorker := worker.NewEscalationWorker(disputeService, cfg.Dispute.SweepInterval(), logger)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return app.Listen(cfg.App.Addr())
	})
	group.Go(func() error {
		return escalationWorker.Run(groupCtx)
	})
	group.Go(func() error {
		waitForShutdown(groupCtx, logger)
		cancel()
		return app.Shutdown()
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		logger.Error("service stopped", zap.Error(err))
	}
}

func waitForShutdown(ctx context.Context, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}
}
