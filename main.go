package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"realtime-service/internal/auth"
	"realtime-service/internal/db"
	"realtime-service/internal/handlers"
	"realtime-service/internal/middleware"
	"realtime-service/internal/observability"
	"realtime-service/internal/rabbitmq"
	"realtime-service/internal/repositories"
	"realtime-service/internal/telemetry"
	"realtime-service/internal/ws"
)

func main() {
	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.SetupTracing(ctx, "realtime-service", os.Getenv("OTLP_ENDPOINT"))
	if err != nil {
		log.Fatalf("failed to setup tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	amqpURL := os.Getenv("AMQP_URL")
	exchange := getEnv("AMQP_EXCHANGE", "platform.events")

	if eventsPublisher, err := observability.NewAMQPPublisher(amqpURL, exchange); err != nil {
		log.Printf("event publishing disabled: %v", err)
	} else {
		observability.SetPublisher(eventsPublisher)
		defer eventsPublisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(amqpURL, exchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(auditPublisher))

	auditEmitter := telemetry.NewAuditEmitter(
		auditPublisher,
		getEnv("AUDIT_ROUTING_KEY", "audit.realtime"),
		"realtime-service",
		getEnv("ENVIRONMENT", "dev"),
	)

	gate := auth.NewJWTGate(mustEnv("JWT_SECRET"), os.Getenv("JWT_ISSUER"))

	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	registry := ws.NewRegistry()
	hub := ws.NewHub(registry, roomRepo, getEnvBool("WS_CLOSE_SUPERSEDED", true))
	presence := ws.NewPresence(hub, getEnvDuration("PRESENCE_GRACE", ws.DefaultPresenceGrace))
	defer presence.Stop()

	relay := ws.NewRelay(hub, roomRepo, messageRepo)
	typing := ws.NewTyping(hub)
	signaling := ws.NewSignaling(hub)
	wsHandler := ws.NewHandler(hub, relay, typing, signaling, presence, gate, messageRepo)

	roomHandler := handlers.NewRoomHandler(roomRepo, messageRepo, hub)
	notifyHandler := handlers.NewNotifyHandler(hub)
	presenceHandler := handlers.NewPresenceHandler(hub)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("realtime-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(gate)

	router.POST("/rooms", authMiddleware, roomHandler.CreateRoom)
	router.GET("/rooms", authMiddleware, roomHandler.ListRooms)
	router.GET("/rooms/:room_id", authMiddleware, roomHandler.GetRoom)
	router.POST("/rooms/:room_id/participants", authMiddleware, roomHandler.AddParticipant)
	router.GET("/rooms/:room_id/messages", authMiddleware, roomHandler.GetRoomMessages)

	router.GET("/presence/:user_id", authMiddleware, presenceHandler.GetPresence)

	// side channel for other backend services; /internal is not routed
	// from the public ingress
	router.POST("/internal/notify/users/:user_id", notifyHandler.NotifyUser)
	router.POST("/internal/notify/rooms/:room_id", notifyHandler.NotifyRoom)

	router.GET("/ws", wsHandler.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	handlers.RegisterDebugRoutes(router, auditEmitter, getEnvBool("DEBUG_ROUTES", false))

	port := getEnv("PORT", "8083")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustEnv(key string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		log.Fatalf("missing required env %s", key)
	}
	return val
}

func getEnvBool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		log.Printf("invalid bool for %s, using default: %v", key, err)
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		log.Printf("invalid duration for %s, using default: %v", key, err)
		return fallback
	}
	return parsed
}
