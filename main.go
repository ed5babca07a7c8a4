package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-sync/internal/config"
	"chat-sync/internal/connections"
	"chat-sync/internal/db"
	"chat-sync/internal/dedup"
	"chat-sync/internal/delivery"
	"chat-sync/internal/handlers"
	"chat-sync/internal/logx"
	"chat-sync/internal/middleware"
	"chat-sync/internal/observability"
	"chat-sync/internal/presence"
	"chat-sync/internal/rabbitmq"
	"chat-sync/internal/repositories"
	"chat-sync/internal/telemetry"
	"chat-sync/internal/ws"
)

const serviceName = "chat-sync"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.Init(cfg.Development())
	logx.Info("configuration loaded",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"db_driver", cfg.DBDriver,
		"dedup_window", cfg.DedupWindow.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		logx.Fatal(err, "failed to init tracing")
	}

	database, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logx.Fatal(err, "failed to connect to db")
	}
	defer database.Close()

	window, closeWindow := dedupWindow(ctx, cfg)
	defer closeWindow()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	logx.Info("event publisher ready",
		"mode", rabbitmq.PublisherMode(publisher),
		"reason", rabbitmq.PublisherNoopReason(publisher))
	events := telemetry.NewEmitter(publisher, serviceName, cfg.Environment)

	userRepo := repositories.NewUserRepo(database)
	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	requestRepo := repositories.NewConnectionRequestRepo(database)

	registry := presence.NewRegistry()
	router := delivery.NewRouter(messageRepo, chatRepo, registry, window, events)
	connectionService := connections.NewService(requestRepo, chatRepo, userRepo, router, events)

	auth := middleware.NewJWTAuth(cfg.JWTSecret)
	chatHandler := handlers.NewChatHandler(chatRepo, messageRepo, router)
	connectionHandler := handlers.NewConnectionHandler(connectionService)
	wsHandler := ws.NewHandler(auth, ws.Deps{
		Registry: registry,
		Router:   router,
		Users:    userRepo,
		Events:   events,
	}, ws.Options{
		AllowedOrigins: allowedOrigins(cfg),
		FrameRate:      cfg.WSFrameRate,
		FrameBurst:     cfg.WSFrameBurst,
	})

	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	// middlewares
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware(serviceName))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.AccessLog())
	engine.Use(observability.HTTPMetricsMiddleware())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": registry.Count()})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/ws", wsHandler.Handle)
	handlers.RegisterDebugRoutes(engine, registry, cfg.Development())

	api := engine.Group("/", middleware.AuthMiddleware(auth))
	api.GET("/chats", chatHandler.ListChats)
	api.PATCH("/chats/:chat_id/pin", chatHandler.SetPinned)
	api.GET("/chats/:chat_id/messages", chatHandler.GetChatMessages)
	api.POST("/chats/:chat_id/messages", chatHandler.PostChatMessage)
	api.POST("/messages/:message_id/read", chatHandler.MarkRead)

	api.GET("/connections", connectionHandler.ListRequests)
	api.POST("/connections", connectionHandler.CreateRequest)
	api.POST("/connections/:request_id/accept", connectionHandler.Accept)
	api.POST("/connections/:request_id/reject", connectionHandler.Reject)

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", observability.RequestIDHeader},
		ExposedHeaders:   []string{observability.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     c.Handler(engine),
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logx.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("received shutdown signal, starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "server forced to shutdown")
	}
	registry.Shutdown()
	if err := wsHandler.Wait(shutdownCtx); err != nil {
		logx.Error(err, "live sessions did not drain")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logx.Error(err, "tracer shutdown failed")
	}

	logx.Info("server stopped")
}

// dedupWindow picks the shared redis window when configured, falling back to
// the in-process window.
func dedupWindow(ctx context.Context, cfg *config.Config) (dedup.Window, func()) {
	if cfg.RedisAddr == "" {
		return dedup.NewMemoryWindow(cfg.DedupWindow), func() {}
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logx.Warn("redis unreachable, using in-process dedup window", "addr", cfg.RedisAddr, "error", err.Error())
		rdb.Close()
		return dedup.NewMemoryWindow(cfg.DedupWindow), func() {}
	}
	logx.Info("dedup window backed by redis", "addr", cfg.RedisAddr)
	return dedup.NewRedisWindow(rdb, cfg.DedupWindow), func() { rdb.Close() }
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.Development() || len(cfg.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.AllowedOrigins
}
