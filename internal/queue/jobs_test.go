package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
)

type recordingClient struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (r *recordingClient) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	r.opts = append(r.opts, opts)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type()}, nil
}

func TestEnqueueScan(t *testing.T) {
	client := &recordingClient{}
	info, err := EnqueueScan(context.Background(), client, ScanPayload{UserID: "u1", Query: "bill", MaxMessages: 20}, time.Hour)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if info.Type != ScanBillsTask || client.tasks[0].Type() != ScanBillsTask {
		t.Fatalf("unexpected task type %q", info.Type)
	}
	var got ScanPayload
	if err := json.Unmarshal(client.tasks[0].Payload(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.UserID != "u1" || got.Query != "bill" || got.MaxMessages != 20 {
		t.Fatalf("unexpected payload %+v", got)
	}
	if len(client.opts[0]) != 2 {
		t.Fatalf("expected retry and unique options, got %d", len(client.opts[0]))
	}

	if _, err := EnqueueScan(context.Background(), client, ScanPayload{UserID: "u1"}, 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if len(client.opts[1]) != 1 {
		t.Fatalf("expected no unique option without a window")
	}
}

func TestEnqueueStatements(t *testing.T) {
	client := &recordingClient{}
	payload := StatementsPayload{UserID: "u1", Statements: []StatementRef{{ID: "s1", ObjectKey: "statements/u1/s1/july.pdf", FileName: "july.pdf", ContentType: "application/pdf"}}}
	if _, err := EnqueueStatements(context.Background(), client, payload); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	var got StatementsPayload
	if err := json.Unmarshal(client.tasks[0].Payload(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Statements) != 1 || got.Statements[0].ObjectKey != payload.Statements[0].ObjectKey {
		t.Fatalf("unexpected payload %+v", got)
	}

	failing := &recordingClient{err: errors.New("redis down")}
	if _, err := EnqueueStatements(context.Background(), failing, payload); err == nil {
		t.Fatalf("expected enqueue error")
	}
}
