package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/billsync/internal/queue"
)

type fakeClient struct {
	payloads []queue.ScanPayload
	failFor  string
}

func (f *fakeClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	var p queue.ScanPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return nil, err
	}
	if p.UserID == f.failFor {
		return nil, errors.New("task already exists")
	}
	f.payloads = append(f.payloads, p)
	return &asynq.TaskInfo{}, nil
}

func TestEnqueueAll(t *testing.T) {
	client := &fakeClient{failFor: "bob"}
	s, err := NewScheduler("0 0 6 * * *", []string{"alice", "bob", "carol"}, client, "bill", 25, time.Hour)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if n := s.EnqueueAll(context.Background()); n != 2 {
		t.Fatalf("expected 2 queued, got %d", n)
	}
	if client.payloads[0].UserID != "alice" || client.payloads[1].UserID != "carol" || client.payloads[1].MaxMessages != 25 {
		t.Fatalf("unexpected payloads %+v", client.payloads)
	}
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	if _, err := NewScheduler("every day", nil, &fakeClient{}, "", 0, 0); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s, err := NewScheduler("*/1 * * * * *", []string{"alice"}, &fakeClient{}, "", 1, 0)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	s.Start()
	s.Stop()
}
