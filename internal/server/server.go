package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"medshift-chat/internal/config"
	"medshift-chat/internal/feed"
	"medshift-chat/internal/handler"
	"medshift-chat/internal/middleware"
	"medshift-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg  config.ServerConfig
	log  *logger.Logger
	http *http.Server
}

type Handlers struct {
	Conversations *handler.ConversationHandler
	Messages      *handler.MessageHandler
	Attachments   *handler.AttachmentHandler
}

func New(cfg config.ServerConfig, jwtSecret string, h Handlers, subscriber *feed.Subscriber, log *logger.Logger) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logging(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1", middleware.Auth(jwtSecret))
	{
		api.GET("/conversations", h.Conversations.List)
		api.GET("/conversations/:id", h.Conversations.Get)
		api.GET("/conversations/:id/messages", h.Conversations.History)
		api.POST("/conversations/:id/messages", h.Messages.Send)
		api.POST("/conversations/:id/read", h.Conversations.MarkRead)
		api.GET("/attachments/:id/url", h.Attachments.ViewURL)
		api.POST("/attachments/:id/review", h.Attachments.Review)
		api.GET("/conversations/:id/feed", FeedSocket(subscriber, log))
	}

	return &Server{
		cfg: cfg,
		log: log,
		http: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.Port),
			Handler: r,
		},
	}
}

func (s *Server) Run() error {
	s.log.Infof("listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
