package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vendhub-bot/internal/bot"
	"vendhub-bot/internal/cart"
	"vendhub-bot/internal/config"
	"vendhub-bot/internal/flow"
	"vendhub-bot/internal/handler"
	"vendhub-bot/internal/middleware"
	"vendhub-bot/internal/platform"
	"vendhub-bot/internal/repository"
	"vendhub-bot/internal/router"
	"vendhub-bot/internal/service"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting VendHub bot...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize the persistent store based on config
	var store repository.Store
	switch cfg.Store.Type {
	case "memory":
		store = repository.NewMemoryStore()
		log.Println("Memory store initialized")
	case "mongodb", "mongo":
		mongoStore, err := repository.NewMongoDBStore(cfg.Store.MongoURI, cfg.Store.MongoDatabase)
		if err != nil {
			log.Fatalf("Failed to initialize MongoDB: %v", err)
		}
		store = mongoStore
		log.Println("MongoDB store initialized")
	case "mysql":
		mysqlDB, err := sql.Open("mysql", cfg.Store.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to open MySQL: %v", err)
		}
		mysqlDB.SetMaxOpenConns(10)
		mysqlDB.SetMaxIdleConns(5)
		mysqlDB.SetConnMaxLifetime(5 * time.Minute)
		if err := mysqlDB.Ping(); err != nil {
			log.Fatalf("MySQL ping failed: %v", err)
		}
		mysqlStore, err := repository.NewMySQLStore(mysqlDB)
		if err != nil {
			log.Fatalf("Failed to initialize MySQL store: %v", err)
		}
		store = mysqlStore
		log.Println("MySQL store initialized")
	default: // sqlite
		sqliteStore, err := repository.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		store = sqliteStore
		log.Println("SQLite store initialized")
	}
	defer store.Close()

	// Initialize Redis client (optional)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddress(),
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed: %v", err)
		redisClient = nil
	} else {
		log.Println("Redis client initialized")
	}
	cancel()

	// Initialize the cart store
	var carts cart.Store
	if cfg.Cache.Type == "redis" && redisClient != nil {
		carts = cart.NewRedisStore(redisClient, cfg.Cache.CartTTL)
		log.Println("Redis cart store initialized")
	} else {
		carts = cart.NewMemoryStore(cfg.Cache.CartTTL)
		log.Println("Memory cart store initialized")
	}
	defer carts.Close()

	// Initialize the purchase engine
	chat := platform.NewWebhookClient(cfg.Bot.GatewayURL, cfg.Bot.GatewayToken)
	fulfiller := service.NewFulfiller(store, chat)
	processor := service.NewProcessor(store, fulfiller)
	statsService := service.NewStatsService(store)
	tokenService := service.NewTokenService(redisClient)
	flows := flow.NewManager()

	engine := bot.New(store, carts, chat, processor, flows, bot.Config{
		StartingBalance: cfg.Bot.StartingBalance,
		ConfirmTimeout:  cfg.Bot.ConfirmTimeout,
		BrowseTimeout:   cfg.Bot.BrowseTimeout,
	})

	// Background sweeps for abandoned carts and finished flows
	scheduler := service.NewCleanupScheduler(service.CleanupConfig{})
	if purger, ok := carts.(service.Purger); ok {
		scheduler.Register("carts", purger)
	}
	scheduler.Register("flows", flows)
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize handlers
	healthHandler := handler.New()
	itemHandler := handler.NewItemHandler(store)
	accountHandler := handler.NewAccountHandler(store)
	transactionHandler := handler.NewTransactionHandler(store, statsService)
	settingsHandler := handler.NewSettingsHandler(store)
	authHandler := handler.NewAuthHandler(tokenService, cfg.App.LoginKey)

	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
		TokenService: tokenService,
		LoginKey:     cfg.App.LoginKey,
	})

	// Create router. The gateway posts parsed interactions to /intents.
	r := router.New(router.Config{
		Handler:            healthHandler,
		ItemHandler:        itemHandler,
		AccountHandler:     accountHandler,
		TransactionHandler: transactionHandler,
		SettingsHandler:    settingsHandler,
		AuthHandler:        authHandler,
		AuthMiddleware:     authMiddleware,
	})
	r.Post("/intents", bot.IntentEndpoint(engine, cfg.Bot.GatewayToken))

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}
