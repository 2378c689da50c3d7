package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"resource-tracker/internal/auth"
	"resource-tracker/internal/config"
	"resource-tracker/internal/database"
	"resource-tracker/internal/logger"
	"resource-tracker/internal/repository"
	"resource-tracker/internal/service"

	"go.uber.org/zap"
)

// create-admin bootstraps the first administrator so that managers and
// employees can be approved from the web interface.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	name := flag.String("name", cfg.Bootstrap.AdminName, "display name")
	username := flag.String("username", cfg.Bootstrap.AdminUsername, "login name")
	password := flag.String("password", cfg.Bootstrap.AdminPassword, "password (defaults to ADMIN_PASSWORD)")
	flag.Parse()

	if *password == "" {
		fmt.Fprintln(os.Stderr, "a password is required: pass -password or set ADMIN_PASSWORD")
		os.Exit(2)
	}

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	db, err := database.NewConnection(cfg.Database, logger.Gorm(log, cfg.Server.Env))
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	ctx := context.Background()
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	txManager := repository.NewTransactionManager(db)

	roleService := service.NewRoleService(roleRepo, txManager)
	if err := roleService.SeedDefaultRolesAndPermissions(ctx); err != nil {
		log.Fatal("failed to seed roles", zap.Error(err))
	}

	userService := service.NewUserService(userRepo, roleRepo, repository.NewAuditRepository(db), txManager,
		auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), log)
	created, err := userService.EnsureAdmin(ctx, *name, *username, *password)
	if err != nil {
		log.Fatal("failed to create admin", zap.Error(err))
	}
	if !created {
		log.Info("user already exists, nothing to do", zap.String("username", *username))
		return
	}
	log.Info("admin user created", zap.String("username", *username))
}
