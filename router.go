package main

import (
	"context"
	"log"

	"roomreserve/booking"
	"roomreserve/cache/redis"
	"roomreserve/config"
	"roomreserve/eventbus"
	"roomreserve/queue"
	"roomreserve/repository/postgres"

	"github.com/gin-gonic/gin"
)

func SetupRouter(ctx context.Context, cfg *config.Config) *gin.Engine {
	// Initialize repository
	repo, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize repository:", err)
	}

	// Initialize cache
	cacheRepo, err := redis.NewRedisCacheRepository(cfg.Redis.GetRedisURL(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("Failed to initialize cache:", err)
	}

	// Live-update hub, fed locally and by the worker over the Redis bridge
	hub := eventbus.NewHub()
	bridge, err := eventbus.NewRedisBridge(cfg.Redis.GetRedisURL(), cfg.Redis.Password, cfg.Redis.DB, hub)
	if err != nil {
		log.Fatal("Failed to initialize event bridge:", err)
	}
	go bridge.Run(ctx)

	// Initialize Kafka publisher for the notification worker handoff
	publisher := queue.NewKafkaPublisher(&cfg.Kafka)

	// Initialize admission service
	service := booking.NewService(repo, repo, repo, repo, cacheRepo, bridge, publisher)

	// Initialize handlers
	bookingHandler := NewBookingHandler(service, cacheRepo, hub)

	// Setup Gin router
	r := gin.Default()

	// Add middleware
	r.Use(CORSMiddleware())
	r.Use(LoggingMiddleware())

	// Health check endpoint
	r.GET("/health", bookingHandler.HealthCheck)

	// API routes
	api := r.Group("/api")

	api.POST("/bookings", bookingHandler.SubmitBooking)
	api.POST("/bookings/:bookingId/cancel", bookingHandler.CancelBooking)
	api.GET("/bookings/:bookingId", bookingHandler.GetBooking)
	api.GET("/bookings/:bookingId/status", bookingHandler.GetBookingStatus)
	api.GET("/bookings", bookingHandler.ListUserBookings)
	api.GET("/rooms", bookingHandler.ListRooms)
	api.GET("/events/stream", bookingHandler.StreamEvents)

	return r
}
