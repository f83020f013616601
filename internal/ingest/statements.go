package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/dharsanguruparan/billsync/internal/batch"
	"github.com/dharsanguruparan/billsync/internal/model"
	"github.com/dharsanguruparan/billsync/internal/oracle"
)

// ErrUnsupportedStatement is recorded for uploads that are neither PDF nor
// UTF-8 text.
var ErrUnsupportedStatement = errors.New("unsupported statement format")

var pdfMagic = []byte("%PDF-")

// StatementFile is one uploaded bank statement.
type StatementFile struct {
	ID          string
	FileName    string
	ContentType string
	Data        []byte
}

// StatementResult reports what happened to one statement.
type StatementResult struct {
	ID           string `json:"id"`
	FileName     string `json:"fileName"`
	Outcome      string `json:"outcome"`
	Transactions int    `json:"transactions"`
	Error        string `json:"error,omitempty"`
}

// StatementReport is the result of ProcessStatements.
type StatementReport struct {
	Statements   []StatementResult   `json:"statements"`
	Transactions []model.Transaction `json:"transactions"`
	Matches      []model.Match       `json:"matches"`
}

// ProcessStatements extracts transactions from each statement, stores them and
// matches the new transactions against the user's current bills. A statement
// whose text cannot be read is reported and skipped.
func (s *Service) ProcessStatements(ctx context.Context, userID string, files []StatementFile) (StatementReport, error) {
	logCtx := slog.With("userId", userID)
	report := StatementReport{Statements: make([]StatementResult, len(files))}

	var (
		docs  []model.Document
		index []int
	)
	for i, f := range files {
		report.Statements[i] = StatementResult{ID: f.ID, FileName: f.FileName}
		text, err := s.statementText(f)
		if err != nil {
			logCtx.Warn("Statement text unavailable.", "statementId", f.ID, "fileName", f.FileName, "error", err)
			report.Statements[i].Outcome = oracle.Failed.String()
			report.Statements[i].Error = err.Error()
			continue
		}
		docs = append(docs, model.NewDocument(f.ID, f.FileName, "", "", text, ""))
		index = append(index, i)
	}

	outcomes, batchErr := batch.Run(ctx, docs, s.opts.Concurrency, s.extractor.ExtractTransactions)

	saveCtx := context.WithoutCancel(ctx)
	for j, out := range outcomes {
		res := &report.Statements[index[j]]
		res.Outcome = out.Kind.String()
		if out.Err != nil {
			res.Error = out.Err.Error()
		}
		txs := out.Value()
		res.Transactions = len(txs)
		if !out.Ok() {
			continue
		}
		if err := s.store.SaveTransactions(saveCtx, userID, docs[j].ID, txs); err != nil {
			return report, fmt.Errorf("save transactions for %s: %w", docs[j].ID, err)
		}
		report.Transactions = append(report.Transactions, txs...)
	}
	if batchErr != nil {
		return report, batchErr
	}

	bills, err := s.store.CurrentBills(ctx, userID)
	if err != nil {
		return report, fmt.Errorf("load bills: %w", err)
	}
	report.Matches = s.matcher.Match(report.Transactions, bills)
	logCtx.Info("Statements processed.", "statements", len(files), "transactions", len(report.Transactions), "matches", len(report.Matches))
	return report, nil
}

// statementText reads all pages of a PDF statement, or takes a text upload as is.
func (s *Service) statementText(f StatementFile) (string, error) {
	if f.ContentType == "application/pdf" || bytes.HasPrefix(f.Data, pdfMagic) {
		if s.text == nil {
			return "", fmt.Errorf("%w: no pdf extractor configured", ErrUnsupportedStatement)
		}
		text, err := s.text.Extract(f.Data, 0)
		if err != nil {
			return "", fmt.Errorf("extract pdf: %w", err)
		}
		return text, nil
	}
	if strings.HasPrefix(f.ContentType, "text/") || utf8.Valid(f.Data) {
		return string(f.Data), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedStatement, f.ContentType)
}
