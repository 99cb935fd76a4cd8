package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"booking-svc/config"
	"booking-svc/database"
	"booking-svc/gateway"
	"booking-svc/handlers"
	"booking-svc/kafka"
	"booking-svc/middleware"
	"booking-svc/models"

	"github.com/gin-gonic/gin"
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

	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.InitDB(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Kafka producer
	producer, err := kafka.InitProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	// Initialize OpenTelemetry
	shutdown, err := middleware.InitTracing("booking-service", cfg.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	// Payment gateway client
	gw := gateway.NewClient(cfg, logger)

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware("booking-service"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	// Health check endpoint
	router.GET("/health", handlers.HealthCheck(db))

	// Metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler())

	authHandler := handlers.NewAuthHandler(db, []byte(cfg.JWTSecret), logger)
	userHandler := handlers.NewUserHandler(db, logger)
	tourTypeHandler := handlers.NewTourTypeHandler(db, logger)
	listingHandler := handlers.NewListingHandler(db, logger)
	bookingHandler := handlers.NewBookingHandler(db, gw, producer, cfg.KafkaTopic, cfg.GatewayTimeout, logger)
	paymentHandler := handlers.NewPaymentHandler(db, gw, cfg.GatewayTimeout, logger)
	reviewHandler := handlers.NewReviewHandler(db, logger)
	statsHandler := handlers.NewStatsHandler(db, logger)

	// Public routes
	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)
	router.GET("/tour-types", tourTypeHandler.ListTourTypes)
	router.GET("/tour-types/:id", tourTypeHandler.GetTourType)
	router.GET("/listings", listingHandler.ListListings)
	router.GET("/listings/:id", listingHandler.GetListing)
	router.GET("/reviews", reviewHandler.ListReviews)
	router.GET("/reviews/guide/:id", reviewHandler.ListReviewsByGuide)
	router.GET("/reviews/tourist/:id", reviewHandler.ListReviewsByTourist)

	// Gateway callbacks carry only the transaction id, no user session
	router.POST("/payments/success", paymentHandler.SuccessPayment)
	router.POST("/payments/fail", paymentHandler.FailPayment)
	router.POST("/payments/cancel", paymentHandler.CancelPayment)

	// Authenticated routes
	auth := router.Group("/", middleware.Auth([]byte(cfg.JWTSecret)))

	auth.GET("/users/me", userHandler.GetProfile)
	auth.PATCH("/users/me", userHandler.UpdateProfile)

	auth.POST("/bookings", middleware.RequireRole(models.RoleTourist), bookingHandler.CreateBooking)
	auth.GET("/bookings", bookingHandler.ListBookings)
	auth.GET("/bookings/:id", bookingHandler.GetBooking)
	auth.PATCH("/bookings/:id", bookingHandler.UpdateBooking)
	auth.DELETE("/bookings/:id", bookingHandler.CancelBooking)

	auth.POST("/payments/init/:bookingId", middleware.RequireRole(models.RoleTourist), paymentHandler.InitPayment)

	auth.POST("/listings", middleware.RequireRole(models.RoleGuide, models.RoleAdmin), listingHandler.CreateListing)
	auth.PATCH("/listings/:id", middleware.RequireRole(models.RoleGuide, models.RoleAdmin), listingHandler.UpdateListing)
	auth.DELETE("/listings/:id", middleware.RequireRole(models.RoleGuide, models.RoleAdmin), listingHandler.DeleteListing)

	auth.POST("/reviews", middleware.RequireRole(models.RoleTourist), reviewHandler.CreateReview)

	// Admin routes
	admin := auth.Group("/", middleware.RequireRole(models.RoleAdmin))
	admin.GET("/users", userHandler.ListUsers)
	admin.GET("/payments", paymentHandler.ListPayments)
	admin.GET("/stats", statsHandler.GetStats)
	admin.POST("/tour-types", tourTypeHandler.CreateTourType)
	admin.PATCH("/tour-types/:id", tourTypeHandler.UpdateTourType)
	admin.DELETE("/tour-types/:id", tourTypeHandler.DeleteTourType)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Booking service started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
