package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DeoTime/localys/cache"
	"github.com/DeoTime/localys/config"
	"github.com/DeoTime/localys/database"
	"github.com/DeoTime/localys/handlers"
	"github.com/DeoTime/localys/kafka"
	"github.com/DeoTime/localys/middleware"
	"github.com/DeoTime/localys/verification"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()

	// Initialize database
	db, err := database.InitDB(logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis cache
	redisClient, err := cache.InitRedis(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisClient.Close()
	cacheSvc := cache.NewService(redisClient)

	// Initialize Kafka
	producer, err := kafka.InitProducer(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	consumer, err := kafka.InitConsumer(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	if err := kafka.StartNotificationConsumer(consumer, cfg.KafkaTopic, db, logger); err != nil {
		logger.Fatal("Failed to start notification consumer", zap.Error(err))
	}

	// Initialize OpenTelemetry
	shutdownTracing, err := middleware.InitTracing("localys")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	signer := verification.NewSigner(cfg.OrderTokenSecret)

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware("localys"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	authHandler := handlers.NewAuthHandler(db, []byte(cfg.JWTSecret), logger)
	businessHandler := handlers.NewBusinessHandler(db, cacheSvc, logger)
	videoHandler := handlers.NewVideoHandler(db, cacheSvc, producer, cfg.KafkaTopic, logger)
	searchHandler := handlers.NewSearchHandler(db, cacheSvc, logger)
	messageHandler := handlers.NewMessageHandler(db, logger)
	cartHandler := handlers.NewCartHandler(db, logger)
	checkoutHandler := handlers.NewCheckoutHandler(db, producer, cfg.KafkaTopic, logger)
	orderHandler := handlers.NewOrderHandler(db, signer, cfg.PublicBaseURL, producer, cfg.KafkaTopic, logger)
	webhookHandler := handlers.NewWebhookHandler(db, cfg.StripeWebhookSecret, producer, cfg.KafkaTopic, logger)
	botCheckHandler := handlers.NewBotCheckHandler(nil, cfg.BotCheckURL, cfg.BotCheckSecret, logger)
	notificationHandler := handlers.NewNotificationHandler(db, logger)

	// Public endpoints
	router.POST("/register", authHandler.Register)
	router.POST("/login", authHandler.Login)
	router.GET("/feed", videoHandler.Feed)
	router.GET("/search", searchHandler.Search)
	router.GET("/businesses/:id", businessHandler.GetBusiness)
	router.GET("/businesses/:id/videos", businessHandler.GetBusinessVideos)
	router.GET("/businesses/:id/items", businessHandler.ListItems)
	router.GET("/videos/:id/comments", videoHandler.ListComments)
	router.POST("/videos/:id/view", videoHandler.RecordView)
	router.POST("/orders/verify", orderHandler.VerifyAndComplete)
	router.POST("/botcheck", botCheckHandler.Verify)
	router.POST("/webhooks/stripe", webhookHandler.HandleStripe)

	// Authenticated endpoints
	authed := router.Group("/", middleware.AuthRequired([]byte(cfg.JWTSecret)))
	authed.POST("/businesses/:id/videos", videoHandler.CreateVideo)
	authed.POST("/businesses/:id/reviews", businessHandler.CreateReview)
	authed.POST("/videos/:id/like", videoHandler.ToggleLike)
	authed.POST("/videos/:id/bookmark", videoHandler.ToggleBookmark)
	authed.POST("/videos/:id/comments", videoHandler.CreateComment)
	authed.POST("/videos/:id/boost", videoHandler.Boost)
	authed.POST("/messages", messageHandler.Send)
	authed.GET("/messages/:userID", messageHandler.ListConversation)
	authed.GET("/cart", cartHandler.GetCart)
	authed.POST("/cart/items", cartHandler.AddItem)
	authed.DELETE("/cart/items/:itemID", cartHandler.RemoveItem)
	authed.POST("/checkout", checkoutHandler.Checkout)
	authed.POST("/checkout/coins", checkoutHandler.CheckoutCoins)
	authed.POST("/orders/:id/confirm", checkoutHandler.Confirm)
	authed.GET("/orders", orderHandler.ListOrders)
	authed.GET("/orders/:id", orderHandler.GetOrder)
	authed.GET("/orders/:id/qr", orderHandler.QRCode)
	authed.GET("/notifications", notificationHandler.List)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Localys API started", zap.String("addr", cfg.Addr))

	gracefulShutdown(srv, db, redisClient, producer, consumer, shutdownTracing, logger)
}

// gracefulShutdown handles SIGINT/SIGTERM and shuts down all services gracefully
func gracefulShutdown(
	srv *http.Server,
	db *sql.DB,
	redisClient *redis.Client,
	producer sarama.SyncProducer,
	consumer sarama.Consumer,
	shutdownTracing func(),
	logger *zap.Logger,
) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown signal received. Exiting...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server forced to shutdown", zap.Error(err))
	} else {
		logger.Info("HTTP server stopped gracefully")
	}

	if err := consumer.Close(); err != nil {
		logger.Error("Failed to close Kafka consumer", zap.Error(err))
	}
	if err := producer.Close(); err != nil {
		logger.Error("Failed to close Kafka producer", zap.Error(err))
	}

	if err := db.Close(); err != nil {
		logger.Error("Failed to close database", zap.Error(err))
	} else {
		logger.Info("Database connection closed gracefully")
	}

	if err := redisClient.Close(); err != nil {
		logger.Error("Failed to close Redis cache", zap.Error(err))
	} else {
		logger.Info("Redis cache closed gracefully")
	}

	shutdownTracing()
	logger.Info("Localys exited gracefully")
}
