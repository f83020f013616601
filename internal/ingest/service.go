// Package ingest wires the normalizer, the batch pipeline, the extraction oracle
// and the matcher into the two user-facing flows: scanning a mailbox for bills
// and processing uploaded bank statements.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/dharsanguruparan/billsync/internal/batch"
	"github.com/dharsanguruparan/billsync/internal/match"
	"github.com/dharsanguruparan/billsync/internal/model"
	"github.com/dharsanguruparan/billsync/internal/normalize"
	"github.com/dharsanguruparan/billsync/internal/oracle"
)

// ErrInvalidStatus is returned when a bill status update names an unknown
// status.
var ErrInvalidStatus = errors.New("invalid bill status")

// Store persists bills, transactions and scan bookkeeping.
type Store interface {
	SaveBills(ctx context.Context, userID string, recs []model.BillRecord) ([]model.StoredBill, error)
	ListBills(ctx context.Context, userID string) ([]model.StoredBill, error)
	CurrentBills(ctx context.Context, userID string) ([]model.Bill, error)
	UpdateBillStatus(ctx context.Context, userID, billID string, status model.BillStatus) error
	SaveTransactions(ctx context.Context, userID, statementID string, txs []model.Transaction) error
	Transactions(ctx context.Context, userID string) ([]model.Transaction, error)
	SeenMessages(ctx context.Context, userID string, ids []string) (map[string]bool, error)
	MarkScanned(ctx context.Context, userID string, ids []string) error
}

// Extractor is the oracle surface the service needs. *oracle.Client satisfies it.
type Extractor interface {
	ExtractBill(ctx context.Context, doc model.Document) oracle.Outcome[*model.BillRecord]
	ExtractTransactions(ctx context.Context, doc model.Document) oracle.Outcome[[]model.Transaction]
}

// Options configure a Service.
type Options struct {
	// Concurrency is the batch chunk size for oracle calls and message fetches.
	Concurrency int
	// Match controls bill exclusivity during matching.
	Match match.Options
}

// Service runs ingestion flows for any user. It holds no per-user state.
type Service struct {
	store      Store
	extractor  Extractor
	normalizer *normalize.Normalizer
	text       normalize.TextExtractor
	matcher    *match.Engine
	opts       Options
}

// New constructs a Service. text reads statement PDFs; normalizer reads email
// attachments with its own page limit.
func New(store Store, extractor Extractor, normalizer *normalize.Normalizer, text normalize.TextExtractor, opts Options) (*Service, error) {
	if opts.Concurrency < 1 {
		return nil, batch.ErrInvalidConcurrency
	}
	return &Service{
		store:      store,
		extractor:  extractor,
		normalizer: normalizer,
		text:       text,
		matcher:    match.NewEngine(opts.Match),
		opts:       opts,
	}, nil
}

// Bills lists every stored bill for the user.
func (s *Service) Bills(ctx context.Context, userID string) ([]model.StoredBill, error) {
	return s.store.ListBills(ctx, userID)
}

// SetBillStatus records a manual status change, typically marking a bill paid.
func (s *Service) SetBillStatus(ctx context.Context, userID, billID string, status model.BillStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.store.UpdateBillStatus(ctx, userID, billID, status)
}

// Matches recomputes matches between all stored transactions and the user's
// current bills. Matches are never stored.
func (s *Service) Matches(ctx context.Context, userID string) ([]model.Match, error) {
	txs, err := s.store.Transactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	bills, err := s.store.CurrentBills(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load bills: %w", err)
	}
	return s.matcher.Match(txs, bills), nil
}
