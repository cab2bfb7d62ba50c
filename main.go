package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"team-chat/internal/channels"
	"team-chat/internal/directory"
	"team-chat/internal/handlers"
	"team-chat/internal/messages"
	"team-chat/internal/middleware"
	"team-chat/internal/notify"
	"team-chat/internal/observability"
	"team-chat/internal/presence"
	"team-chat/internal/rabbitmq"
	"team-chat/internal/store"
	"team-chat/internal/store/memstore"
	"team-chat/internal/store/redisstore"
	"team-chat/internal/telemetry"
	"team-chat/internal/typing"
	"team-chat/internal/ws"
)

func main() {
	ctx := context.Background()

	serviceEnv := getEnv("SERVICE_ENV", "dev")
	jwtSecret := []byte(getEnv("JWT_SECRET", "dev-secret"))

	shutdownTracing, err := telemetry.SetupTracing(ctx, getEnv("OTLP_ENDPOINT", ""), "team-chat")
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("tracing shutdown failed: %v", err)
		}
	}()

	var backend store.Store
	if getEnv("DEV_MODE", "") == "1" {
		backend = memstore.New()
		log.Printf("store: in-memory (DEV_MODE=1)")
	} else {
		redisURL := getEnv("REDIS_URL", "redis://localhost:6379/0")
		client, err := redisstore.New(ctx, redisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		backend = client
		log.Printf("store: redis")
	}
	defer backend.Close()

	publisher := rabbitmq.NewPublisher(getEnv("AMQP_URL", ""), getEnv("AMQP_EXCHANGE", "chat.events"))
	defer publisher.Close()
	log.Printf("amqp publisher mode=%s reason=%q", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))
	observability.SetPublisher(publisher)

	dispatcher := notify.NewDispatcher(publisher, "team-chat", serviceEnv)
	auditEmitter := telemetry.NewAuditEmitter(publisher, "audit.team-chat", "team-chat", serviceEnv)

	tracker := presence.NewTracker(backend)
	channelDirectory := directory.New(backend)
	typingBus := typing.NewBus(backend)
	stream := messages.NewStream(backend, dispatcher)
	lifecycle := channels.NewLifecycle(backend)

	hub := ws.NewHub()

	channelHandler := handlers.NewChannelHandler(lifecycle, channelDirectory)
	messageHandler := handlers.NewMessageHandler(stream, channelDirectory)
	typingHandler := handlers.NewTypingHandler(typingBus, channelDirectory)
	presenceHandler := handlers.NewPresenceHandler(tracker)

	presenceWS := ws.NewPresenceWSHandler(hub, tracker, jwtSecret)
	directoryWS := ws.NewDirectoryWSHandler(hub, channelDirectory, jwtSecret)
	channelWS := ws.NewChannelWSHandler(hub, channelDirectory, stream, typingBus, jwtSecret)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("team-chat"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(jwtSecret)

	router.GET("/channels", authMiddleware, channelHandler.ListChannels)
	router.POST("/channels", authMiddleware, channelHandler.CreateChannel)
	router.DELETE("/channels/:channel_id", authMiddleware, channelHandler.DeleteChannel)
	router.GET("/channels/:channel_id/messages", authMiddleware, messageHandler.GetChannelMessages)
	router.POST("/channels/:channel_id/messages", authMiddleware, messageHandler.PostChannelMessage)
	router.DELETE("/channels/:channel_id/messages/:message_id", authMiddleware, messageHandler.DeleteMessage)
	router.PUT("/channels/:channel_id/typing", authMiddleware, typingHandler.SetTyping)
	router.GET("/presence/online", authMiddleware, presenceHandler.ListOnline)

	router.GET("/ws/presence", presenceWS.Handle)
	router.GET("/ws/channels", directoryWS.Handle)
	router.GET("/ws/channels/:channel_id", channelWS.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, auditEmitter, getEnv("DEBUG_ROUTES", "") == "1")

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
