package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dharsanguruparan/billsync/internal/batch"
	"github.com/dharsanguruparan/billsync/internal/mailbox"
	"github.com/dharsanguruparan/billsync/internal/model"
	"github.com/dharsanguruparan/billsync/internal/oracle"
)

// ScanReport summarizes one mailbox scan.
type ScanReport struct {
	Listed      int                `json:"listed"`
	Skipped     int                `json:"skipped"`
	FetchFailed int                `json:"fetchFailed"`
	Parsed      int                `json:"parsed"`
	Unparseable int                `json:"unparseable"`
	Failed      int                `json:"failed"`
	Bills       []model.StoredBill `json:"bills"`
}

type fetched struct {
	doc model.Document
	err error
}

// ScanMailbox lists messages matching query, skips ones already extracted,
// normalizes the rest and asks the oracle for a bill per message. Accepted bills
// are saved. On cancellation the completed part of the scan is still saved and
// ctx.Err() is returned with the report.
func (s *Service) ScanMailbox(ctx context.Context, userID string, mb mailbox.Store, query string, max int) (ScanReport, error) {
	logCtx := slog.With("userId", userID)
	var report ScanReport

	ids, err := mb.List(ctx, query, max)
	if err != nil {
		return report, fmt.Errorf("list mailbox: %w", err)
	}
	report.Listed = len(ids)

	seen, err := s.store.SeenMessages(ctx, userID, ids)
	if err != nil {
		return report, fmt.Errorf("load scanned messages: %w", err)
	}
	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			fresh = append(fresh, id)
		}
	}
	report.Skipped = len(ids) - len(fresh)
	logCtx.Info("Scanning mailbox.", "listed", report.Listed, "new", len(fresh))

	loaded, batchErr := batch.Run(ctx, fresh, s.opts.Concurrency, func(ctx context.Context, id string) fetched {
		msg, err := mb.Message(ctx, id)
		if err != nil {
			return fetched{err: err}
		}
		doc, err := s.normalizer.Normalize(ctx, msg, mb)
		return fetched{doc: doc, err: err}
	})
	docs := make([]model.Document, 0, len(loaded))
	for i, f := range loaded {
		if f.err != nil {
			report.FetchFailed++
			logCtx.Warn("Skipping message.", "messageId", fresh[i], "error", f.err)
			continue
		}
		docs = append(docs, f.doc)
	}

	var outcomes []oracle.Outcome[*model.BillRecord]
	if batchErr == nil {
		outcomes, batchErr = batch.Run(ctx, docs, s.opts.Concurrency, s.extractor.ExtractBill)
	}

	var (
		accepted []model.BillRecord
		done     []string
	)
	for i, out := range outcomes {
		switch out.Kind {
		case oracle.Parsed:
			report.Parsed++
			done = append(done, docs[i].ID)
			if rec := out.Value(); rec.Accepted() {
				accepted = append(accepted, *rec)
			}
		case oracle.Unparseable:
			report.Unparseable++
		case oracle.Failed:
			report.Failed++
		}
	}

	// Persist with a context that survives the batch deadline so finished work
	// is kept.
	saveCtx := context.WithoutCancel(ctx)
	if len(accepted) > 0 {
		report.Bills, err = s.store.SaveBills(saveCtx, userID, accepted)
		if err != nil {
			return report, fmt.Errorf("save bills: %w", err)
		}
	}
	if err := s.store.MarkScanned(saveCtx, userID, done); err != nil {
		return report, fmt.Errorf("mark scanned: %w", err)
	}
	logCtx.Info("Mailbox scan finished.", "parsed", report.Parsed, "bills", len(report.Bills),
		"unparseable", report.Unparseable, "failed", report.Failed, "fetchFailed", report.FetchFailed)
	return report, batchErr
}
