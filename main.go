package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"housing-chat-service/internal/auth"
	"housing-chat-service/internal/config"
	"housing-chat-service/internal/db"
	"housing-chat-service/internal/directory"
	"housing-chat-service/internal/handlers"
	"housing-chat-service/internal/logger"
	"housing-chat-service/internal/middleware"
	"housing-chat-service/internal/observability"
	"housing-chat-service/internal/presence"
	"housing-chat-service/internal/realtime"
	"housing-chat-service/internal/repositories"
	"housing-chat-service/internal/storage"
	"housing-chat-service/internal/telemetry"
	"housing-chat-service/internal/unread"
	"housing-chat-service/internal/ws"
)

const serviceName = "housing-chat-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	shutdownTracing, err := observability.SetupTracing(context.Background(), serviceName, cfg.OTLPEndpoint)
	if err != nil {
		zlog.Fatal("failed to set up tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	database, err := db.Connect(cfg.DBDSN, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to db", zap.Error(err))
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	hub := ws.NewHub(zlog)
	broker := realtime.NewAMQPBroker(cfg.AMQPURL, cfg.AMQPExchange, zlog)
	fanout := realtime.NewFanout(zlog, hub, broker)

	convRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	reactionRepo := repositories.NewReactionRepo(database)

	presenceStore := presence.NewRedisStore(redisClient)
	aggregator := unread.NewAggregator(convRepo, messageRepo, hub, fanout, zlog)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.ChannelTokenTTL)
	users := directory.NewClient(cfg.UserServiceURL)
	audit := telemetry.NewAuditEmitter(broker, cfg.AuditRoutingKey, serviceName, cfg.Environment, zlog)

	var uploader storage.Uploader
	if cfg.S3Bucket != "" {
		s3Uploader, err := storage.NewS3Uploader(context.Background(), cfg.S3Region, cfg.S3Bucket)
		if err != nil {
			zlog.Fatal("failed to set up s3 uploader", zap.Error(err))
		}
		uploader = s3Uploader
	}

	conversationHandler := handlers.NewConversationHandler(convRepo, users, aggregator, audit, zlog)
	messageHandler := handlers.NewMessageHandler(convRepo, messageRepo, reactionRepo, uploader, fanout, aggregator, zlog)
	tokenHandler := handlers.NewTokenHandler(convRepo, tokens)
	wsHandler := ws.NewHandler(hub, convRepo, tokens, presenceStore, fanout, zlog)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(tokens)

	router.GET("/conversations", authMiddleware, conversationHandler.ListConversations)
	router.GET("/conversations/:conversation_id", authMiddleware, conversationHandler.GetConversation)
	router.POST("/conversations/direct", authMiddleware, conversationHandler.StartDirect)
	router.POST("/conversations/group", authMiddleware, conversationHandler.CreateGroup)
	router.POST("/conversations/:conversation_id/archive", authMiddleware, conversationHandler.Archive)
	router.POST("/conversations/:conversation_id/unarchive", authMiddleware, conversationHandler.Unarchive)
	router.DELETE("/conversations/:conversation_id/me", authMiddleware, conversationHandler.DeleteForMe)
	router.POST("/conversations/:conversation_id/read", authMiddleware, conversationHandler.MarkRead)

	router.GET("/conversations/:conversation_id/messages", authMiddleware, messageHandler.ListMessages)
	router.POST("/conversations/:conversation_id/messages", authMiddleware, messageHandler.PostMessage)
	router.PATCH("/conversations/:conversation_id/messages/:message_id", authMiddleware, messageHandler.EditMessage)
	router.DELETE("/conversations/:conversation_id/messages/:message_id/me", authMiddleware, messageHandler.DeleteMessageForMe)
	router.POST("/conversations/:conversation_id/messages/:message_id/reactions", authMiddleware, messageHandler.ToggleReaction)
	router.POST("/conversations/:conversation_id/messages/:message_id/read", authMiddleware, messageHandler.MarkMessageRead)
	if uploader != nil {
		router.POST("/conversations/:conversation_id/attachments", authMiddleware, messageHandler.PostAttachment)
	}

	router.POST("/realtime/token", authMiddleware, tokenHandler.IssueChannelToken)
	router.GET("/ws/conversations/:conversation_id", wsHandler.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	zlog.Info("chat service listening", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
	if err := router.Run(":" + cfg.Port); err != nil {
		zlog.Fatal("server error", zap.Error(err))
	}
}
