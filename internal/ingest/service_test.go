package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dharsanguruparan/billsync/internal/batch"
	"github.com/dharsanguruparan/billsync/internal/model"
	"github.com/dharsanguruparan/billsync/internal/normalize"
	"github.com/dharsanguruparan/billsync/internal/oracle"
	"github.com/dharsanguruparan/billsync/internal/repository"
)

type fakeMailbox struct {
	mu       sync.Mutex
	messages map[string]*model.RawMessage
	order    []string
	fetched  []string
}

func (f *fakeMailbox) List(_ context.Context, _ string, max int) ([]string, error) {
	return f.order[:min(max, len(f.order))], nil
}

func (f *fakeMailbox) Message(_ context.Context, id string) (*model.RawMessage, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, id)
	f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return nil, errors.New("gone")
	}
	return msg, nil
}

func (f *fakeMailbox) Attachment(context.Context, string, string) ([]byte, error) {
	return nil, errors.New("no attachments")
}

func email(id, subject, body string) *model.RawMessage {
	return &model.RawMessage{
		ID:      id,
		Headers: []model.Header{{Name: "Subject", Value: subject}, {Name: "From", Value: "billing@example.com"}},
		Body:    body,
	}
}

// scriptedModel answers based on markers in the prompt text.
func scriptedModel() oracle.Model {
	return oracle.ModelFunc(func(_ context.Context, _, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "ELECTRICITY"):
			return `{"isBill":true,"company":"AGL Energy","amount":80.5,"dueDate":"2024-07-15","billType":"electricity","status":"unpaid","confidence":95}`, nil
		case strings.Contains(prompt, "NEWSLETTER"):
			return `{"isBill":false,"confidence":90}`, nil
		case strings.Contains(prompt, "UNSURE"):
			return `{"isBill":true,"company":"Maybe","amount":10,"status":"unpaid","confidence":50}`, nil
		case strings.Contains(prompt, "GARBLED"):
			return "I am not sure what this is.", nil
		case strings.Contains(prompt, "TIMEOUT"):
			return "", context.DeadlineExceeded
		case strings.Contains(prompt, "STATEMENT-A"):
			return `[{"date":"2024-07-16","description":"AGL ENERGY BPAY","amount":80.5,"type":"debit"},
				{"date":"2024-07-17","description":"SALARY","amount":3000,"type":"credit"},
				{"date":"2024-07-18","description":"BROKEN","amount":-1,"type":"debit"}]`, nil
		case strings.Contains(prompt, "STATEMENT-EMPTY"):
			return `[]`, nil
		}
		return "", errors.New("unexpected prompt")
	})
}

func newService(t *testing.T, store Store) *Service {
	t.Helper()
	svc, err := New(store, oracle.NewClient(scriptedModel(), 0), normalize.New(nil, 0), nil, Options{Concurrency: 2})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNewRejectsInvalidConcurrency(t *testing.T) {
	_, err := New(repository.NewMemoryStore(), nil, nil, nil, Options{})
	if !errors.Is(err, batch.ErrInvalidConcurrency) {
		t.Fatalf("expected ErrInvalidConcurrency, got %v", err)
	}
}

func TestScanMailbox(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := newService(t, store)
	mb := &fakeMailbox{
		messages: map[string]*model.RawMessage{
			"m1": email("m1", "Your bill", "ELECTRICITY amount due"),
			"m2": email("m2", "Weekly news", "NEWSLETTER"),
			"m3": email("m3", "Invoice?", "UNSURE"),
			"m4": email("m4", "???", "GARBLED"),
			"m5": email("m5", "slow", "TIMEOUT"),
			"m7": {ID: "m7"},
		},
		order: []string{"m1", "m2", "m3", "m4", "m5", "m6", "m7"},
	}

	report, err := svc.ScanMailbox(ctx, "u1", mb, "bill", 10)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if report.Listed != 7 || report.FetchFailed != 2 || report.Parsed != 3 || report.Unparseable != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(report.Bills) != 1 || report.Bills[0].SourceDocumentID != "m1" || *report.Bills[0].Company != "AGL Energy" {
		t.Fatalf("expected only the confident bill to be stored, got %+v", report.Bills)
	}

	// Parsed messages are not fetched again; failures are retried.
	mb.fetched = nil
	again, err := svc.ScanMailbox(ctx, "u1", mb, "bill", 10)
	if err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if again.Skipped != 3 || len(again.Bills) != 0 {
		t.Fatalf("unexpected rescan report %+v", again)
	}
	for _, id := range mb.fetched {
		if id == "m1" || id == "m2" || id == "m3" {
			t.Fatalf("parsed message %s was fetched again", id)
		}
	}

	bills, _ := svc.Bills(ctx, "u1")
	if len(bills) != 1 {
		t.Fatalf("expected one stored bill, got %d", len(bills))
	}
}

func TestScanMailboxCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := newService(t, repository.NewMemoryStore())
	mb := &fakeMailbox{messages: map[string]*model.RawMessage{"m1": email("m1", "s", "ELECTRICITY")}, order: []string{"m1"}}

	report, err := svc.ScanMailbox(ctx, "u1", mb, "", 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.Parsed != 0 || len(report.Bills) != 0 {
		t.Fatalf("expected nothing processed, got %+v", report)
	}
}

func TestProcessStatementsMatchesBills(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := newService(t, store)
	mb := &fakeMailbox{messages: map[string]*model.RawMessage{"m1": email("m1", "Your bill", "ELECTRICITY")}, order: []string{"m1"}}
	if _, err := svc.ScanMailbox(ctx, "u1", mb, "", 5); err != nil {
		t.Fatalf("scan: %v", err)
	}

	report, err := svc.ProcessStatements(ctx, "u1", []StatementFile{
		{ID: "s1", FileName: "july.csv", ContentType: "text/csv", Data: []byte("STATEMENT-A")},
		{ID: "s2", FileName: "empty.txt", ContentType: "text/plain", Data: []byte("STATEMENT-EMPTY")},
		{ID: "s3", FileName: "scan.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 broken")},
		{ID: "s4", FileName: "blob.bin", ContentType: "application/octet-stream", Data: []byte{0xff, 0xfe, 0x00}},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	got := report.Statements
	if got[0].Outcome != "parsed" || got[0].Transactions != 2 {
		t.Fatalf("unexpected first statement %+v", got[0])
	}
	if got[1].Outcome != "parsed" || got[1].Transactions != 0 {
		t.Fatalf("unexpected second statement %+v", got[1])
	}
	if got[2].Outcome != "failed" || got[2].Error == "" {
		t.Fatalf("expected pdf without extractor to fail, got %+v", got[2])
	}
	if got[3].Outcome != "failed" || !strings.Contains(got[3].Error, "unsupported") {
		t.Fatalf("expected binary upload rejected, got %+v", got[3])
	}
	if len(report.Matches) != 1 || report.Matches[0].Transaction.Description != "AGL ENERGY BPAY" || report.Matches[0].Confidence != 100 {
		t.Fatalf("unexpected matches %+v", report.Matches)
	}

	recomputed, err := svc.Matches(ctx, "u1")
	if err != nil {
		t.Fatalf("matches: %v", err)
	}
	if len(recomputed) != 1 || recomputed[0].BillID != report.Matches[0].BillID {
		t.Fatalf("expected recomputed matches to agree, got %+v", recomputed)
	}

	if err := svc.SetBillStatus(ctx, "u1", recomputed[0].BillID, model.BillStatusPaid); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if after, _ := svc.Matches(ctx, "u1"); len(after) != 0 {
		t.Fatalf("paid bills must not match, got %+v", after)
	}
	if err := svc.SetBillStatus(ctx, "u1", recomputed[0].BillID, "settled"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
