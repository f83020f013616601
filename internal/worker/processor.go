package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/billsync/internal/ingest"
	"github.com/dharsanguruparan/billsync/internal/mailbox"
	"github.com/dharsanguruparan/billsync/internal/queue"
)

// MailboxOpener opens a user's mailbox. *mailbox.GmailConnector satisfies it.
type MailboxOpener interface {
	Open(ctx context.Context, userID string) (mailbox.Store, error)
}

// StatementSource loads uploaded statement bytes. *s3storage.Storage satisfies it.
type StatementSource interface {
	GetStatement(ctx context.Context, objectKey string) ([]byte, error)
}

// Settings carry scan defaults and the per-task time budget.
type Settings struct {
	ScanQuery       string
	ScanMaxMessages int
	BatchTimeout    time.Duration
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	svc        *ingest.Service
	mailboxes  MailboxOpener
	statements StatementSource
	settings   Settings
}

// NewProcessor constructs a worker processor.
func NewProcessor(svc *ingest.Service, mailboxes MailboxOpener, statements StatementSource, settings Settings) *Processor {
	return &Processor{svc: svc, mailboxes: mailboxes, statements: statements, settings: settings}
}

// Handler registers the task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ScanBillsTask, p.handleScan)
	mux.HandleFunc(queue.ProcessStatementsTask, p.handleStatements)
	return mux
}

func (p *Processor) withBudget(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.settings.BatchTimeout > 0 {
		return context.WithTimeout(ctx, p.settings.BatchTimeout)
	}
	return context.WithCancel(ctx)
}

func (p *Processor) handleScan(ctx context.Context, task *asynq.Task) error {
	var payload queue.ScanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	logCtx := slog.With("task", task.Type(), "userId", payload.UserID)
	query := payload.Query
	if query == "" {
		query = p.settings.ScanQuery
	}
	max := payload.MaxMessages
	if max <= 0 {
		max = p.settings.ScanMaxMessages
	}

	ctx, cancel := p.withBudget(ctx)
	defer cancel()

	mb, err := p.mailboxes.Open(ctx, payload.UserID)
	if errors.Is(err, mailbox.ErrNoToken) {
		logCtx.Warn("User has not connected a mailbox.", "error", err)
		return fmt.Errorf("open mailbox: %v: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		logCtx.Error("Could not open mailbox.", "error", err)
		return fmt.Errorf("open mailbox: %w", err)
	}

	report, err := p.svc.ScanMailbox(ctx, payload.UserID, mb, query, max)
	if errors.Is(err, context.DeadlineExceeded) {
		// Finished chunks were saved; the remainder is picked up by the next scan.
		logCtx.Warn("Scan ran out of time.", "parsed", report.Parsed, "bills", len(report.Bills))
		return nil
	}
	if err != nil {
		logCtx.Error("Scan failed.", "error", err)
		return err
	}
	logCtx.Info("Scan complete.", "bills", len(report.Bills), "skipped", report.Skipped)
	return nil
}

func (p *Processor) handleStatements(ctx context.Context, task *asynq.Task) error {
	var payload queue.StatementsPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	logCtx := slog.With("task", task.Type(), "userId", payload.UserID)

	ctx, cancel := p.withBudget(ctx)
	defer cancel()

	files := make([]ingest.StatementFile, 0, len(payload.Statements))
	for _, ref := range payload.Statements {
		data, err := p.statements.GetStatement(ctx, ref.ObjectKey)
		if err != nil {
			logCtx.Error("Could not load statement.", "statementId", ref.ID, "error", err)
			return fmt.Errorf("load statement %s: %w", ref.ID, err)
		}
		files = append(files, ingest.StatementFile{
			ID:          ref.ID,
			FileName:    ref.FileName,
			ContentType: ref.ContentType,
			Data:        data,
		})
	}

	report, err := p.svc.ProcessStatements(ctx, payload.UserID, files)
	if err != nil {
		logCtx.Error("Statement processing failed.", "error", err)
		return err
	}
	logCtx.Info("Statements complete.", "transactions", len(report.Transactions), "matches", len(report.Matches))
	return nil
}
