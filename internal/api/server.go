package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/errandsync/internal/conversation"
	"github.com/errandsync/internal/jobqueue"
	syncengine "github.com/errandsync/internal/sync"
)

// syncRunner is the slice of the sync engine the API needs
type syncRunner interface {
	SyncConversation(ctx context.Context, conversationID string) (*syncengine.Result, error)
}

// syncEnqueuer queues asynchronous sync jobs
type syncEnqueuer interface {
	EnqueueConversationSync(ctx context.Context, args jobqueue.ConversationSyncArgs) error
}

// Server represents the API server
type Server struct {
	echo          *echo.Echo
	port          int
	engine        syncRunner
	queue         syncEnqueuer
	conversations conversation.Store
	authSecret    string
}

// NewServer creates a new API server
func NewServer(port int, engine syncRunner, queue syncEnqueuer, conversations conversation.Store, authSecret string) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(RequestLogger())

	server := &Server{
		echo:          e,
		port:          port,
		engine:        engine,
		queue:         queue,
		conversations: conversations,
		authSecret:    authSecret,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	authed := s.echo.Group("", RequireAuth(s.authSecret))

	authed.GET("/:municipalityId/:namespace/errands/:errandId/conversations/:id", s.getConversation)
	authed.POST("/:municipalityId/:namespace/errands/:errandId/conversations/:id/sync", s.syncConversation)
	authed.POST("/:municipalityId/:namespace/messaging/events", s.handleMessagingEvent)
}

// Start begins the API server
func (s *Server) Start() error {
	// Start server in a goroutine
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			s.echo.Logger.Fatal("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
