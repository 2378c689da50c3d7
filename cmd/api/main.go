package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "resource-tracker/api/swagger" // swagger docs
	"resource-tracker/internal/approval"
	"resource-tracker/internal/auth"
	"resource-tracker/internal/broker"
	"resource-tracker/internal/config"
	"resource-tracker/internal/database"
	"resource-tracker/internal/events"
	"resource-tracker/internal/handler"
	"resource-tracker/internal/imagesearch"
	"resource-tracker/internal/logger"
	"resource-tracker/internal/middleware"
	"resource-tracker/internal/redisx"
	"resource-tracker/internal/repository"
	"resource-tracker/internal/service"
	"resource-tracker/internal/tracing"
	"resource-tracker/internal/websocket"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// @title           Wayne Industries Resource Tracker API
// @version         1.0
// @description     Inventory of resources with a two-tier approval workflow for stock write-offs.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not up yet
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if cfg.Observ.JaegerEndpoint != "" {
		tp, err := tracing.Init("resource-tracker", cfg.Observ.JaegerEndpoint)
		if err != nil {
			log.Warn("tracing disabled", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()
		}
	}

	db, err := database.NewConnection(cfg.Database, logger.Gorm(log, cfg.Server.Env))
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()
	log.Info("connected to database", zap.String("driver", cfg.Database.Driver))

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("database pool unavailable", zap.Error(err))
	}

	// Repository -> Service -> Handler
	resourceRepo := repository.NewResourceRepository(db)
	typeRepo := repository.NewResourceTypeRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	movementRepo := repository.NewStockMovementRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	txManager := repository.NewTransactionManager(db)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	hub := websocket.NewHub(tokens, cfg.Server.AllowedOrigins, log)
	go hub.Run(ctx)

	publisher := events.NewFanout(log).Add("websocket", hub)
	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = producer.Close() }()
		publisher.Add("kafka", producer)
		log.Info("publishing events to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	var guard service.SubmissionGuard
	if cfg.Redis.Addr != "" {
		rdb, err := redisx.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("redis unavailable, double-submit guard disabled", zap.Error(err))
		} else {
			defer func() { _ = rdb.Close() }()
			guard = redisx.NewIdempotencyGuard(rdb, cfg.Redis.IdempotencyTTL)
		}
	}

	roleService := service.NewRoleService(roleRepo, txManager)
	auditService := service.NewAuditService(auditRepo)
	userService := service.NewUserService(userRepo, roleRepo, auditRepo, txManager, tokens, log)
	resourceService := service.NewResourceService(resourceRepo, typeRepo, requestRepo, movementRepo,
		auditRepo, txManager, publisher, log)
	requestService := service.NewRequestService(resourceRepo, requestRepo, movementRepo, auditRepo,
		txManager, approval.NewMachine(cfg.Approval.Threshold), publisher, guard, log)
	dashboardService := service.NewDashboardService(resourceRepo, userRepo, auditService, requestService)

	if err := roleService.SeedDefaultRolesAndPermissions(ctx); err != nil {
		log.Fatal("failed to seed roles", zap.Error(err))
	}
	if err := resourceService.SeedDefaultTypes(ctx); err != nil {
		log.Fatal("failed to seed resource types", zap.Error(err))
	}
	if cfg.Bootstrap.AdminPassword != "" {
		created, err := userService.EnsureAdmin(ctx, cfg.Bootstrap.AdminName, cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword)
		if err != nil {
			log.Fatal("failed to create admin", zap.Error(err))
		}
		if created {
			log.Info("admin user created", zap.String("username", cfg.Bootstrap.AdminUsername))
		}
	}

	sessions := middleware.NewSessionResolver(userService.SessionActor, cfg.Auth.SessionCacheTTL)
	hub.RequireActiveUser(func(ctx context.Context, userID uuid.UUID) error {
		_, err := sessions.Actor(ctx, userID)
		return err
	})

	router, err := handler.NewRouter(handler.Dependencies{
		Log:            log,
		DB:             sqlDB,
		Tokens:         tokens,
		Permissions:    middleware.NewPermissionResolver(roleService.GetPermissionsByRoleName, 5*time.Minute),
		Sessions:       sessions,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SecureCookie:   cfg.Auth.CookieSecure,
		Users:          userService,
		Roles:          roleService,
		Resources:      resourceService,
		Requests:       requestService,
		Dashboard:      dashboardService,
		Audit:          auditService,
		Images:         imagesearch.NewClient(cfg.Unsplash, log),
		Hub:            hub,
	})
	if err != nil {
		log.Fatal("failed to build router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	stop()
}
