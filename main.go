package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"tradepulse_backend/config"
	"tradepulse_backend/models"
	"tradepulse_backend/routes"
	"tradepulse_backend/scheduler"
	"tradepulse_backend/services/alerts"
	"tradepulse_backend/services/audit"
	"tradepulse_backend/services/autotrade"
	"tradepulse_backend/services/broker"
	"tradepulse_backend/services/candlewatch"
	"tradepulse_backend/services/marketdata"
	"tradepulse_backend/services/poller"
	"tradepulse_backend/services/realtime"
	"tradepulse_backend/services/session"
	"tradepulse_backend/services/subscriptions"
)

// dbInitialized tracks whether database has been successfully initialized
// This global variable is used for thread-safe access across goroutines to allow
// the /ready health endpoint to dynamically check database status
var dbInitialized bool
var dbInitMutex sync.RWMutex

// Set by the background init goroutine; read only after the shutdown signal,
// by which point init has long finished.
var jobScheduler *scheduler.Scheduler
var hub *realtime.Hub

func main() {
	log.Println("==============================================")
	log.Println("  TradePulse Backend API - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Add middlewares
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Setup health check endpoints FIRST so Cloud Run can detect the service is up
	// Database will be initialized in background
	setupHealthEndpoints(router)

	// Create HTTP server with timeouts optimized for Cloud Run
	// Bind to 0.0.0.0 explicitly for container networking
	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	// Start server IMMEDIATELY so Cloud Run knows we're listening
	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Initialize database, realtime hub and poll loops in background
	go func() {
		// Initialize database connection
		db, err := config.InitDB()
		if err != nil {
			log.Printf("ERROR: Database connection failed: %v", err)
			log.Println("Service will continue in limited mode (health check only)")
			return
		}

		// Run database migrations
		log.Println("Running database migrations...")
		if err := runMigrations(); err != nil {
			log.Printf("ERROR: Migration failed: %v", err)
		} else {
			log.Println("Database migrations completed successfully")
		}

		// Seed the scheduler's execution identity
		if err := models.SeedSystemUser(db); err != nil {
			log.Printf("Warning: Could not seed system user: %v", err)
		}

		// Audit trail, degrades to log-only when Mongo is not configured
		auditor := audit.FromEnv(context.Background())

		// Realtime hub
		hub = realtime.NewHub()
		go hub.Run()

		// Live subscription registries
		regs := routes.Registries{
			Candles: subscriptions.NewRegistry[*subscriptions.CandleSubscription](),
			Alerts:  subscriptions.NewRegistry[*subscriptions.AlertSubscription](),
			Trades:  subscriptions.NewRegistry[*subscriptions.AutoTradeSubscription](),
		}

		// A closed connection takes all of its subscriptions with it
		hub.OnConnectionClosed(func(connectionID string) {
			n := regs.Candles.RemoveAllForConnection(connectionID)
			n += regs.Alerts.RemoveAllForConnection(connectionID)
			n += regs.Trades.RemoveAllForConnection(connectionID)
			if n > 0 {
				log.Printf("Connection %s closed, removed %d subscriptions", connectionID, n)
			}
		})

		// Evaluation pipeline
		store := marketdata.NewGormCandleStore(db)
		sessions := session.NewGormChecker(db)
		executor := autotrade.NewExecutor(db, broker.NewPaperBroker(store))

		candlePoller := poller.NewCandlePoller(regs.Candles, candlewatch.NewDetector(store), hub, sessions, auditor)
		alertPoller := poller.NewAlertPoller(db, regs.Alerts, alerts.NewEvaluator(store), hub, sessions, auditor)
		tradePoller := poller.NewTradePoller(db, regs.Trades, autotrade.NewEvaluator(store), executor, hub, sessions, auditor)

		// Mark database as ready
		dbInitMutex.Lock()
		dbInitialized = true
		dbInitMutex.Unlock()

		// Setup all API routes
		routes.SetupRoutes(router, db, hub, regs, cfg.JWTSecret)

		// Start background scheduler
		jobScheduler = scheduler.NewScheduler(candlePoller, alertPoller, tradePoller)
		jobScheduler.Start()

		log.Println("Application fully initialized with database")
	}()

	// Graceful shutdown
	gracefulShutdown(server)
}

// runMigrations runs all database migrations
func runMigrations() error {
	db := config.DB

	// Migrate user models
	if err := models.MigrateUserModels(db); err != nil {
		return err
	}

	// Migrate candle models
	if err := models.MigrateCandleModels(db); err != nil {
		return err
	}

	// Migrate alert models
	if err := models.MigrateAlertModels(db); err != nil {
		return err
	}

	// Migrate trading models
	if err := models.MigrateTradingModels(db); err != nil {
		return err
	}

	return nil
}

// setupHealthEndpoints sets up health check endpoints for Cloud Run
func setupHealthEndpoints(router *gin.Engine) {
	// Root endpoint
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "TradePulse Backend API",
			"version": "1.0.0",
		})
	})

	// Liveness probe - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness probe - checks if service is ready to receive traffic
	router.GET("/ready", func(c *gin.Context) {
		dbInitMutex.RLock()
		isDBReady := dbInitialized
		dbInitMutex.RUnlock()

		if !isDBReady {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database not connected",
			})
			return
		}

		// Check database connection
		sqlDB, err := config.DB.DB()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database connection error",
			})
			return
		}

		if err := sqlDB.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database ping failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})

	// Startup probe - can be used for initial health check
	router.GET("/startup", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "started",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" || path == "/startup" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Only log errors or slow requests in production
		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	// Stop scheduler first so no tick publishes into a closing hub
	if jobScheduler != nil {
		jobScheduler.Stop()
	}

	// Disconnect websocket clients
	if hub != nil {
		hub.Shutdown()
	}

	// Create context with timeout for shutdown
	// Cloud Run gives 10 seconds for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Close database connection
	if config.DB != nil {
		sqlDB, err := config.DB.DB()
		if err == nil {
			sqlDB.Close()
			log.Println("Database connection closed")
		}
	}

	log.Println("Server shutdown completed")
}
