package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// ScanBillsTask scans one user's mailbox for new bills.
	ScanBillsTask = "bills:scan"
	// ProcessStatementsTask extracts transactions from uploaded statements and
	// matches them against the user's bills.
	ProcessStatementsTask = "statements:process"
)

// ScanPayload tells the worker whose mailbox to scan and how.
type ScanPayload struct {
	UserID      string `json:"user_id"`
	Query       string `json:"query,omitempty"`
	MaxMessages int    `json:"max_messages,omitempty"`
}

// StatementRef points at one uploaded statement in object storage.
type StatementRef struct {
	ID          string `json:"id"`
	ObjectKey   string `json:"object_key"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
}

// StatementsPayload lists the statements uploaded together by one user.
type StatementsPayload struct {
	UserID     string         `json:"user_id"`
	Statements []StatementRef `json:"statements"`
}

// Enqueuer is the part of *asynq.Client used here.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

var _ Enqueuer = (*asynq.Client)(nil)

// EnqueueScan enqueues a mailbox scan. Scans for the same user are deduplicated
// for the given window so a cron tick and a manual trigger do not overlap.
func EnqueueScan(ctx context.Context, client Enqueuer, payload ScanPayload, unique time.Duration) (*asynq.TaskInfo, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	opts := []asynq.Option{asynq.MaxRetry(3)}
	if unique > 0 {
		opts = append(opts, asynq.Unique(unique))
	}
	info, err := client.EnqueueContext(ctx, asynq.NewTask(ScanBillsTask, data), opts...)
	if err != nil {
		return nil, fmt.Errorf("enqueue scan task: %w", err)
	}
	return info, nil
}

// EnqueueStatements enqueues statement processing.
func EnqueueStatements(ctx context.Context, client Enqueuer, payload StatementsPayload) (*asynq.TaskInfo, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	info, err := client.EnqueueContext(ctx, asynq.NewTask(ProcessStatementsTask, data), asynq.MaxRetry(5))
	if err != nil {
		return nil, fmt.Errorf("enqueue statements task: %w", err)
	}
	return info, nil
}
