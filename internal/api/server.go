// Package api exposes the HTTP surface: triggering scans, uploading statements
// and reading bills and matches.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/billsync/internal/config"
	"github.com/dharsanguruparan/billsync/internal/ingest"
	"github.com/dharsanguruparan/billsync/internal/queue"
	"github.com/dharsanguruparan/billsync/internal/signing"
)

// StatementStore receives uploaded statements. *s3storage.Storage satisfies it.
type StatementStore interface {
	PutStatement(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
}

// MailboxAuthorizer runs the OAuth consent flow. *mailbox.GmailConnector
// satisfies it.
type MailboxAuthorizer interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, userID, code string) error
}

// Server exposes HTTP endpoints for scans, statements, bills and matches.
type Server struct {
	cfg    *config.Config
	svc    *ingest.Service
	store  StatementStore
	queue  queue.Enqueuer
	auth   MailboxAuthorizer
	signer *signing.Signer
	server *http.Server
}

// New constructs a Server. auth may be nil when no mailbox provider is
// configured; the connect endpoints then answer 503.
func New(cfg *config.Config, svc *ingest.Service, store StatementStore, queueClient queue.Enqueuer, auth MailboxAuthorizer) *Server {
	return &Server{
		cfg:    cfg,
		svc:    svc,
		store:  store,
		queue:  queueClient,
		auth:   auth,
		signer: signing.NewSigner(cfg.SigningSecret),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware(), loggingMiddleware())
	r.MaxMultipartMemory = 8 << 20

	r.GET("/healthz", s.handleHealth)
	r.GET("/oauth/callback", s.handleOAuthCallback)
	users := r.Group("/users/:user")
	{
		users.GET("/connect", s.handleConnect)
		users.POST("/scan", s.handleScan)
		users.POST("/statements", s.handleStatements)
		users.GET("/bills", s.handleBills)
		users.PATCH("/bills/:id", s.handleBillStatus)
		users.GET("/matches", s.handleMatches)
	}
	return r
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	slog.Info("API listening.", "address", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	success(c, http.StatusOK, gin.H{"status": "ok"})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("Request handled.", "method", c.Request.Method, "path", c.FullPath(),
			"status", c.Writer.Status(), "duration", time.Since(start))
	}
}
