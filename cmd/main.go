package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"wendao-market/internal/auth"
	"wendao-market/internal/config"
	"wendao-market/internal/database"
	"wendao-market/internal/generator"
	"wendao-market/internal/handlers"
	"wendao-market/internal/jobs"
	"wendao-market/internal/lock"
	"wendao-market/internal/logger"
	"wendao-market/internal/oracle"
	"wendao-market/internal/repository"
	"wendao-market/internal/services"
)

var (
	_ services.ResolutionStore = (*repository.Repository)(nil)
	_ services.PayoutStore     = (*repository.Repository)(nil)
	_ services.MarketStore     = (*repository.Repository)(nil)
	_ services.UserStore       = (*repository.Repository)(nil)
)

func main() {
	log := logrus.WithField("component", "main")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File}); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	repo := repository.NewRepository(db)

	// Payout locks: Redis when configured so several instances share them
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisLocker, err := lock.NewRedisLocker(ctx, lock.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisLocker.Close()
		locker = redisLocker
		log.Printf("Using Redis payout locks at %s", cfg.Redis.Addr)
	}

	// Initialize services
	verifier := oracle.NewVerifier(
		oracle.NewCoinGeckoSource(cfg.Oracle.BaseURL, cfg.Oracle.Timeout, cfg.Oracle.VsCurrency),
		cfg.Oracle.Timeout,
	)

	var gen generator.Generator
	if cfg.Generator.URL != "" {
		gen = generator.NewHTTPGenerator(cfg.Generator.URL, cfg.Generator.APIKey, cfg.Generator.Timeout)
	}

	payoutService := services.NewPayoutService(repo, locker)
	resolutionService := services.NewMarketResolutionService(repo, verifier, payoutService, cfg.App.SweepConcurrency)
	marketService := services.NewMarketService(repo, gen)
	userService := services.NewUserService(repo, cfg.App.InitialBalance)
	tokens := auth.NewTokenManager(cfg.App.JWTSecret, 24*time.Hour)

	// In-process schedules; an external scheduler can call /api/cron/* instead
	var running []*jobs.Periodic
	if cfg.Jobs.SweepInterval > 0 {
		running = append(running, jobs.NewResolutionJob(resolutionService, cfg.Jobs.SweepInterval))
	}
	if cfg.Jobs.ReconcileInterval > 0 {
		running = append(running, jobs.NewReconcileJob(payoutService, cfg.Jobs.ReconcileInterval))
	}
	if cfg.Jobs.GenerateInterval > 0 && gen != nil {
		running = append(running, jobs.NewMarketGeneratorJob(marketService, cfg.Jobs.GenerateInterval))
	}
	for _, job := range running {
		job.Start(context.Background())
	}

	// Set up Gin router
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	allowedOrigins := []string{
		"http://localhost:3000",
		"http://127.0.0.1:3000",
	}
	if cfg.Server.FrontendURL != "" {
		allowedOrigins = append(allowedOrigins, cfg.Server.FrontendURL)
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers.RegisterRoutes(router, handlers.Handlers{
		Cron:   handlers.NewCronHandler(resolutionService, payoutService, marketService),
		Oracle: handlers.NewOracleHandler(verifier),
		Market: handlers.NewMarketHandler(marketService, userService),
		User:   handlers.NewUserHandler(userService),
	}, cfg.App.CronSecret, tokens)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	for _, job := range running {
		job.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
