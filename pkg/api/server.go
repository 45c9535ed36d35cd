package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/gradewire/gradewire/pkg/artifact"
	"github.com/gradewire/gradewire/pkg/database"
	"github.com/gradewire/gradewire/pkg/store"
	"github.com/gradewire/gradewire/pkg/worker"
)

// MaxUploadSize caps submission payloads accepted over HTTP.
const MaxUploadSize = 1 << 20 // 1 MiB

// Server is the HTTP front of the pipeline: intake, status, feedback,
// exports, health. It owns no workers; worker runners are attached only so
// /ready can report their counters.
type Server struct {
	dbClient  *database.Client
	store     *store.Store
	artifacts *artifact.Repository
	logger    *slog.Logger

	runners map[string]*worker.Runner

	echo *echo.Echo
	http *http.Server
}

// NewServer wires routes and middleware. Start must be called separately.
func NewServer(dbClient *database.Client, st *store.Store, artifacts *artifact.Repository, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		dbClient:  dbClient,
		store:     st,
		artifacts: artifacts,
		logger:    logger.With("component", "api"),
		runners:   make(map[string]*worker.Runner),
		echo:      echo.New(),
	}
	s.routes()
	return s
}

// AttachRunner registers a worker runner so /ready can surface its counters.
// Call before Start.
func (s *Server) AttachRunner(name string, r *worker.Runner) {
	s.runners[name] = r
}

func (s *Server) routes() {
	e := s.echo
	e.Use(securityHeaders())

	e.GET("/health", s.healthHandler)
	e.GET("/ready", s.readyHandler)

	e.POST("/webhooks/telegram", s.telegramWebhookHandler)

	api := e.Group("/api/v1")
	api.POST("/candidates", s.createCandidateHandler)
	api.GET("/candidates/:id", s.getCandidateHandler)
	api.POST("/assignments", s.createAssignmentHandler)
	api.GET("/assignments", s.listAssignmentsHandler)
	api.GET("/assignments/:id", s.getAssignmentHandler)
	api.POST("/submissions", s.createSubmissionHandler)
	api.POST("/submissions/file", s.uploadSubmissionFileHandler)
	api.GET("/submissions", s.listSubmissionsHandler)
	api.GET("/submissions/:id", s.getSubmissionHandler)
	api.POST("/submissions/:id/requeue", s.requeueSubmissionHandler)
	api.GET("/feedback", s.listFeedbackHandler)
	api.POST("/exports", s.createExportHandler)
	api.GET("/exports/:id/download", s.downloadExportHandler)
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
