// Package job schedules periodic mailbox scans.
package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dharsanguruparan/billsync/internal/queue"
)

// Scheduler enqueues a bills:scan task for every configured user on a cron
// schedule with seconds precision.
type Scheduler struct {
	cron   *cron.Cron
	client queue.Enqueuer
	users  []string
	query  string
	max    int
	unique time.Duration
}

// NewScheduler parses spec and registers the scan job. Scans for a user are
// deduplicated for unique, so a slow worker never builds a backlog.
func NewScheduler(spec string, users []string, client queue.Enqueuer, query string, max int, unique time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		client: client,
		users:  users,
		query:  query,
		max:    max,
		unique: unique,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.EnqueueAll(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule scans %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("Scan scheduler started.", "users", len(s.users))
}

// Stop halts the schedule and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// EnqueueAll enqueues one scan per user and returns how many were accepted.
func (s *Scheduler) EnqueueAll(ctx context.Context) int {
	queued := 0
	for _, user := range s.users {
		_, err := queue.EnqueueScan(ctx, s.client, queue.ScanPayload{UserID: user, Query: s.query, MaxMessages: s.max}, s.unique)
		if err != nil {
			slog.Warn("Could not enqueue scheduled scan.", "userId", user, "error", err)
			continue
		}
		queued++
	}
	return queued
}
