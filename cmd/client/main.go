package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"medshift-chat/internal/chatsync"
	"medshift-chat/internal/config"
	"medshift-chat/internal/domain/chat"
	"medshift-chat/internal/events"
	"medshift-chat/internal/feed"
	"medshift-chat/internal/notify"
	"medshift-chat/internal/presentation"
	"medshift-chat/internal/readpos"
	medredis "medshift-chat/internal/redis"
	"medshift-chat/internal/repository"
	"medshift-chat/internal/services"
	"medshift-chat/internal/session"
	"medshift-chat/internal/storage"
	"medshift-chat/internal/uploads"
	"medshift-chat/pkg/database"
	medshift_errors "medshift-chat/pkg/errors"
	"medshift-chat/pkg/logger"

	"github.com/google/uuid"
)

// Terminal chat client: one open conversation view driven by the
// synchronization engine, rendered with the same date grouping the mobile
// apps use. Commands: plain text sends, "/attach <path>" uploads a file,
// an empty line re-renders, "/quit" exits.
func main() {
	var (
		conversation = flag.String("conversation", "", "conversation id to open")
		token        = flag.String("token", os.Getenv("CHAT_TOKEN"), "bearer access token")
		notification = flag.String("notification", "", "push payload JSON: print the tap route and exit")
	)
	flag.Parse()

	if *notification != "" {
		if err := printRoute(os.Stdout, []byte(*notification)); err != nil {
			log.Fatalf("notification: %v", err)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Server.Environment)
	defer func() { _ = appLogger.Sync() }()

	ctx := context.Background()

	sess, err := session.FromToken(cfg.JWT.Secret, *token)
	if err != nil {
		log.Fatalf("token: %v", err)
	}
	conversationID, err := uuid.Parse(*conversation)
	if err != nil {
		log.Fatalf("invalid conversation id %q", *conversation)
	}

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

	engine := chatsync.NewEngine(sess, chatService, tracker, pipeline, subscriber, appLogger, chatsync.Options{
		GraceWindow:   cfg.Chat.GraceWindow,
		SettleTimeout: cfg.Chat.SettleTimeout,
	})
	defer engine.Close()

	if err := engine.Open(ctx, conversationID); err != nil {
		log.Fatalf("open conversation: %v", err)
	}

	conv, err := chatService.GetConversation(ctx, conversationID)
	if err == nil && conv.Name.Valid {
		fmt.Printf("— %s —\n", conv.Name.String)
	}
	render(os.Stdout, engine)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "/quit":
			return
		case line == "":
		case strings.HasPrefix(line, "/attach "):
			path := strings.TrimPrefix(line, "/attach ")
			file, err := readLocalFile(path)
			if err != nil {
				fmt.Printf("cannot read %s: %v\n", path, err)
				continue
			}
			res, err := engine.Send(ctx, "", []uploads.File{file})
			reportSend(os.Stdout, res, err)
		default:
			res, err := engine.Send(ctx, line, nil)
			reportSend(os.Stdout, res, err)
		}
		// Give the echo a moment before re-rendering.
		time.Sleep(200 * time.Millisecond)
		render(os.Stdout, engine)
	}
}

func printRoute(w io.Writer, payload []byte) error {
	p, err := notify.ParsePayload(payload)
	if err != nil {
		return err
	}
	r := p.Route()
	switch r.Target {
	case notify.TargetConversation:
		fmt.Fprintf(w, "open conversation %s\n", r.ConversationID)
	default:
		fmt.Fprintln(w, "open conversation list")
	}
	return nil
}

func readLocalFile(path string) (uploads.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return uploads.File{}, err
	}
	return uploads.File{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Data:        data,
	}, nil
}

func reportSend(w io.Writer, res chatsync.SendResult, err error) {
	if errors.Is(err, medshift_errors.ErrSendRejected) {
		fmt.Fprintf(w, "not sent, draft restored: %q\n", res.RestoredText)
		return
	}
	if err != nil {
		fmt.Fprintf(w, "send failed: %v\n", err)
		return
	}
	for _, fr := range res.Files {
		if fr.Err != nil {
			fmt.Fprintf(w, "  %s: %v\n", fr.Name, fr.Err)
		}
	}
}

func render(w io.Writer, engine *chatsync.Engine) {
	renderSections(w, presentation.GroupByDate(engine.Snapshot(), time.Local))
}

// renderSections prints the date-grouped view: one header per day, one
// line per message with a delivery marker.
func renderSections(w io.Writer, sections []presentation.DaySection) {
	for _, section := range sections {
		fmt.Fprintf(w, "== %s ==\n", section.Date)
		for _, item := range section.Items {
			marker := ""
			switch item.State {
			case chat.DeliveryOptimistic:
				marker = " (sending)"
			case chat.DeliveryFailed:
				marker = " (failed)"
			}
			fmt.Fprintf(w, "[%s] %s%s\n", item.SentAt.Format("15:04"), item.Content, marker)
			for _, a := range item.Attachments {
				status := a.Status
				if a.RejectedReason != "" {
					status += ": " + a.RejectedReason
				}
				fmt.Fprintf(w, "    📎 %s (%s)\n", a.FileName, status)
			}
		}
	}
}
