// Package main runs the live-session coordination HTTP server with WebSocket
// event delivery and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	webrtc "github.com/pion/webrtc/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/classlive/backend/config"
	"github.com/classlive/backend/internal/auth"
	"github.com/classlive/backend/internal/chat"
	"github.com/classlive/backend/internal/floor"
	"github.com/classlive/backend/internal/middleware"
	"github.com/classlive/backend/internal/permissions"
	"github.com/classlive/backend/internal/presence"
	"github.com/classlive/backend/internal/realtime"
	"github.com/classlive/backend/internal/recordings"
	"github.com/classlive/backend/internal/sessions"
	"github.com/classlive/backend/internal/signaling"
	"github.com/classlive/backend/pkg/database"
	"github.com/classlive/backend/pkg/queue"
	"github.com/classlive/backend/pkg/redis"
	"github.com/classlive/backend/pkg/response"
	"github.com/classlive/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			RecordingsBucket:     cfg.AWS.RecordingsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	iceServers := make([]webrtc.ICEServer, 0, len(cfg.WebRTC.ICEUrls))
	for _, u := range cfg.WebRTC.ICEUrls {
		if u != "" {
			iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{u}})
		}
	}

	// Sessions
	sessionRepo := sessions.NewRepository(pool)
	sessionService := sessions.NewService(sessionRepo, logger)
	sessionHandler := sessions.NewHandler(sessionService, sessionRepo, hub)

	// Presence
	presenceRepo := presence.NewRepository(pool)
	presenceService := presence.NewService(presenceRepo, sessionService, sessionService, sessionRepo, nil, logger)
	presenceHandler := presence.NewHandler(presenceService, presenceRepo, hub)

	// Signaling
	relay := signaling.NewRedisRelay(rdb.Client, logger)
	signalService := signaling.NewService(relay, sessionService,
		time.Duration(cfg.Signaling.OfferTTLSec)*time.Second,
		cfg.Signaling.MaxPayloadKB*1024, logger)
	signalHandler := signaling.NewHandler(signalService, iceServers)

	// Floor control
	floorRepo := floor.NewRepository(pool)
	floorService := floor.NewService(floorRepo, sessionService, sessionRepo, sessionRepo, logger)
	floorHandler := floor.NewHandler(floorService, hub)

	// Chat
	chatRepo := chat.NewRepository(pool)
	chatService := chat.NewService(chatRepo, sessionService, sessionRepo, sessionRepo, sessionRepo, chat.NewFilter(), logger)
	chatHandler := chat.NewHandler(chatService, hub)

	// Permissions
	permissionHandler := permissions.NewHandler(sessionRepo)

	// Recordings
	recordingRepo := recordings.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	var presigner recordings.Presigner
	if s3Client != nil {
		presigner = s3Client
	}
	recordingService := recordings.NewService(recordingRepo, sessionRepo, jobQueue, presigner, nil, logger)
	recordingHandler := recordings.NewHandler(recordingService)

	// Peak concurrent viewers tracked off the socket audience as well; the
	// roster update in presence.Join covers instances without sockets.
	hub.SetAudienceChangeHandler(func(sessionID uuid.UUID, count int) {
		_ = sessionRepo.UpdatePeakViewers(context.Background(), sessionID, count)
	})

	wsValidate := func(token string) (uuid.UUID, string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, "", err
		}
		return claims.UserID, claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Session lifecycle
		api.POST("/sessions", middleware.RequireRole("teacher", "admin"), sessionHandler.Create)
		api.GET("/sessions", sessionHandler.List)
		api.GET("/sessions/:id", sessionHandler.GetByID)
		api.POST("/sessions/:id/schedule", sessionHandler.Schedule)
		api.POST("/sessions/:id/start", sessionHandler.Start)
		api.POST("/sessions/:id/end", sessionHandler.End)
		api.POST("/sessions/:id/moderators", sessionHandler.AddModerator)
		api.DELETE("/sessions/:id/moderators/:userID", sessionHandler.RemoveModerator)

		// Presence
		api.POST("/sessions/:id/join", presenceHandler.Join)
		api.POST("/sessions/:id/heartbeat", presenceHandler.Heartbeat)
		api.POST("/sessions/:id/leave", presenceHandler.Leave)
		api.GET("/sessions/:id/participants", presenceHandler.Roster)

		// WebRTC signaling
		api.POST("/sessions/:id/signal", signalHandler.Signal)
		api.GET("/sessions/:id/ice-servers", signalHandler.ICEServers)

		// Floor control
		api.POST("/sessions/:id/hand", floorHandler.Raise)
		api.POST("/sessions/:id/hand/resolve", floorHandler.Resolve)
		api.GET("/sessions/:id/hands", floorHandler.List)

		// Chat
		api.POST("/sessions/:id/chat", chatHandler.Post)
		api.GET("/sessions/:id/chat", chatHandler.List)
		api.POST("/sessions/:id/chat/:messageID/moderate", chatHandler.Moderate)
		api.POST("/sessions/:id/chat/:messageID/react", chatHandler.React)
		api.PATCH("/sessions/:id/chat-settings", chatHandler.PatchSettings)
		api.DELETE("/sessions/:id/chat-settings", chatHandler.ResetSettings)

		// Permissions
		api.GET("/sessions/:id/permissions", permissionHandler.Get)

		// Recordings
		api.POST("/sessions/:id/recordings", recordingHandler.Attach)
		api.GET("/sessions/:id/recordings", recordingHandler.ListBySession)
		api.GET("/recordings/:id/access", recordingHandler.Access)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, wsValidate, relay))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
