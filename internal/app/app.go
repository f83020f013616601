// Package app assembles the long-running processes from configuration. The
// binaries under cmd/ are thin wrappers around RunAPI and RunWorker.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/billsync/internal/api"
	"github.com/dharsanguruparan/billsync/internal/config"
	"github.com/dharsanguruparan/billsync/internal/database"
	"github.com/dharsanguruparan/billsync/internal/ingest"
	"github.com/dharsanguruparan/billsync/internal/job"
	"github.com/dharsanguruparan/billsync/internal/mailbox"
	"github.com/dharsanguruparan/billsync/internal/match"
	"github.com/dharsanguruparan/billsync/internal/normalize"
	"github.com/dharsanguruparan/billsync/internal/oracle"
	pdfutil "github.com/dharsanguruparan/billsync/internal/pdf"
	"github.com/dharsanguruparan/billsync/internal/repository"
	"github.com/dharsanguruparan/billsync/internal/s3storage"
	"github.com/dharsanguruparan/billsync/internal/worker"
)

// NewModel builds the completion model named by ORACLE_PROVIDER. The returned
// func releases any client resources.
func NewModel(ctx context.Context, cfg *config.Config) (oracle.Model, func(), error) {
	switch cfg.OracleProvider {
	case config.ProviderVertex:
		if cfg.VertexProjectID == "" {
			return nil, nil, errors.New("VERTEX_PROJECT_ID is required for the vertex provider")
		}
		m, err := oracle.NewVertexModel(ctx, cfg.VertexProjectID, cfg.VertexRegion, cfg.VertexModel)
		if err != nil {
			return nil, nil, err
		}
		return m, func() { _ = m.Close() }, nil
	case config.ProviderOllama:
		m, err := oracle.NewOllamaModel(ctx, cfg.OllamaURL, cfg.OllamaModel)
		if err != nil {
			return nil, nil, err
		}
		return m, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown oracle provider %q", cfg.OracleProvider)
}

// NewService builds the ingest service over store. extractor may be nil for
// processes that only read bills and matches.
func NewService(cfg *config.Config, store ingest.Store, extractor ingest.Extractor) (*ingest.Service, error) {
	return ingest.New(
		store,
		extractor,
		normalize.New(pdfutil.Extractor{}, cfg.AttachmentPageLimit),
		pdfutil.Extractor{},
		ingest.Options{
			Concurrency: cfg.ExtractConcurrency,
			Match:       match.Options{ExclusiveBills: cfg.MatchExclusiveBills},
		},
	)
}

func openDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func openStorage(ctx context.Context, cfg *config.Config) (*s3storage.Storage, error) {
	store, err := s3storage.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// openConnector returns nil when Gmail credentials are not configured.
func openConnector(cfg *config.Config) (*mailbox.GmailConnector, error) {
	if cfg.GmailCredentialsFile == "" {
		return nil, nil
	}
	return mailbox.NewGmailConnector(cfg.GmailCredentialsFile, cfg.GmailTokenDir)
}

// RunAPI serves HTTP and, when SCAN_USERS is set, the scan scheduler until ctx
// is cancelled.
func RunAPI(ctx context.Context, cfg *config.Config) error {
	pool, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	objects, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}

	client := asynq.NewClient(redisOpt(cfg))
	defer client.Close()

	// The API never extracts; it enqueues work for the worker.
	svc, err := NewService(cfg, repository.NewPostgresStore(pool), nil)
	if err != nil {
		return err
	}

	connector, err := openConnector(cfg)
	if err != nil {
		return err
	}
	var auth api.MailboxAuthorizer
	if connector != nil {
		auth = connector
	}

	if len(cfg.ScanUsers) > 0 {
		sched, err := job.NewScheduler(cfg.ScanSchedule, cfg.ScanUsers, client, cfg.ScanQuery, cfg.ScanMaxMessages, time.Hour)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	return api.New(cfg, svc, objects, client, auth).Run(ctx)
}

// RunWorker processes queued scans and statements until ctx is cancelled.
func RunWorker(ctx context.Context, cfg *config.Config) error {
	pool, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	objects, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}

	m, closeModel, err := NewModel(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init oracle: %w", err)
	}
	defer closeModel()

	svc, err := NewService(cfg, repository.NewPostgresStore(pool), oracle.NewClient(m, cfg.OracleTimeout))
	if err != nil {
		return err
	}

	connector, err := openConnector(cfg)
	if err != nil {
		return err
	}
	var opener worker.MailboxOpener = noMailbox{}
	if connector != nil {
		opener = connector
	}

	server := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: 2,
		Logger:      slogAdapter{},
	})
	processor := worker.NewProcessor(svc, opener, objects, worker.Settings{
		ScanQuery:       cfg.ScanQuery,
		ScanMaxMessages: cfg.ScanMaxMessages,
		BatchTimeout:    cfg.BatchTimeout,
	})

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()
	slog.Info("Worker started.", "provider", cfg.OracleProvider, "concurrency", cfg.ExtractConcurrency)
	return server.Run(processor.Handler())
}

type noMailbox struct{}

func (noMailbox) Open(_ context.Context, userID string) (mailbox.Store, error) {
	return nil, fmt.Errorf("%w: %s (GMAIL_CREDENTIALS_FILE not set)", mailbox.ErrNoToken, userID)
}
