package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"medshift-chat/internal/config"
	"medshift-chat/internal/events"
	"medshift-chat/internal/feed"
	"medshift-chat/internal/handler"
	"medshift-chat/internal/readpos"
	medredis "medshift-chat/internal/redis"
	"medshift-chat/internal/repository"
	"medshift-chat/internal/server"
	"medshift-chat/internal/services"
	"medshift-chat/internal/storage"
	"medshift-chat/internal/uploads"
	"medshift-chat/pkg/database"
	"medshift-chat/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Server.Environment)
	defer func() { _ = appLogger.Sync() }()

	ctx := context.Background()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	redisClient, err := medredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}

	s3Client, err := storage.NewClient(ctx, storage.S3Config{
		Region:     cfg.Storage.Region,
		Bucket:     cfg.Storage.Bucket,
		AccessKey:  cfg.Storage.AccessKey,
		SecretKey:  cfg.Storage.SecretKey,
		Endpoint:   cfg.Storage.Endpoint,
		PresignTTL: cfg.Storage.PresignTTL,
	})
	if err != nil {
		log.Fatalf("s3: %v", err)
	}

	messageRepo := repository.NewMessageRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	readPositionRepo := repository.NewReadPositionRepository(db)
	conversationRepo := repository.NewConversationRepository(db)

	publisher := events.NewPublisher(redisClient)
	subscriber := feed.NewSubscriber(redisClient, appLogger)
	quota := medredis.NewUploadQuota(redisClient, medredis.QuotaConfig{
		Limit:  cfg.Chat.UploadQuota,
		Window: cfg.Chat.UploadQuotaWin,
	})

	chatService := services.NewChatService(messageRepo, conversationRepo, publisher, appLogger)
	attachmentService := services.NewAttachmentService(attachmentRepo, s3Client, publisher, appLogger)
	tracker := readpos.NewTracker(readPositionRepo, appLogger)
	pipeline := uploads.NewPipeline(s3Client, attachmentService, quota, appLogger, cfg.Chat.MaxFileSizeBytes)

	srv := server.New(cfg.Server, cfg.JWT.Secret, server.Handlers{
		Conversations: handler.NewConversationHandler(chatService, tracker),
		Messages:      handler.NewMessageHandler(chatService, pipeline),
		Attachments:   handler.NewAttachmentHandler(attachmentService),
	}, subscriber, appLogger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server: %v", err)
		}
	case <-quit:
		appLogger.Infof("shutting down")
		if err := srv.Shutdown(ctx); err != nil {
			appLogger.Errorf("shutdown: %v", err)
		}
	}
}
