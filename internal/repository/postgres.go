package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/billsync/internal/model"
)

// ErrNotFound is returned when a bill does not exist for the given user.
var ErrNotFound = errors.New("bill not found")

// PostgresStore wraps all SQL used by the ingest service, API and worker.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a store on top of an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const billColumns = `id, user_id, source_document_id, company, amount, currency, due_date, bill_type, status, confidence`

// SaveBills upserts accepted bill records keyed by their source document, so a
// rescanned email updates its bill in place.
func (s *PostgresStore) SaveBills(ctx context.Context, userID string, recs []model.BillRecord) ([]model.StoredBill, error) {
	stored := make([]model.StoredBill, 0, len(recs))
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		for _, rec := range recs {
			var id string
			err := tx.QueryRow(ctx, `
				INSERT INTO bills (`+billColumns+`, created_at, updated_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
				ON CONFLICT (user_id, source_document_id) DO UPDATE
				SET company=EXCLUDED.company,
					amount=EXCLUDED.amount,
					currency=EXCLUDED.currency,
					due_date=EXCLUDED.due_date,
					bill_type=EXCLUDED.bill_type,
					status=EXCLUDED.status,
					confidence=EXCLUDED.confidence,
					updated_at=EXCLUDED.updated_at
				RETURNING id
			`, uuid.NewString(), userID, rec.SourceDocumentID, rec.Company, rec.Amount, rec.Currency,
				rec.DueDate, billTypeText(rec.BillType), string(rec.Status), rec.Confidence, now).Scan(&id)
			if err != nil {
				return fmt.Errorf("upsert bill %s: %w", rec.SourceDocumentID, err)
			}
			stored = append(stored, model.StoredBill{ID: id, UserID: userID, BillRecord: rec})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// ListBills returns every bill stored for the user, newest first.
func (s *PostgresStore) ListBills(ctx context.Context, userID string) ([]model.StoredBill, error) {
	return s.queryBills(ctx, `SELECT `+billColumns+` FROM bills WHERE user_id=$1 ORDER BY created_at DESC, id`, userID)
}

// CurrentBills returns the bills a payment could still settle. Order is stable
// so matching stays deterministic between calls.
func (s *PostgresStore) CurrentBills(ctx context.Context, userID string) ([]model.Bill, error) {
	rows, err := s.queryBills(ctx, `SELECT `+billColumns+` FROM bills WHERE user_id=$1 AND status <> 'paid' ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	bills := make([]model.Bill, 0, len(rows))
	for _, b := range rows {
		bills = append(bills, b.AsBill())
	}
	return bills, nil
}

func (s *PostgresStore) queryBills(ctx context.Context, query string, args ...any) ([]model.StoredBill, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select bills: %w", err)
	}
	defer rows.Close()
	var out []model.StoredBill
	for rows.Next() {
		var (
			b        model.StoredBill
			billType *string
			status   string
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.SourceDocumentID, &b.Company, &b.Amount, &b.Currency,
			&b.DueDate, &billType, &status, &b.Confidence); err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		b.IsBill = true
		b.Status = model.BillStatus(status)
		if billType != nil {
			t := model.BillType(*billType)
			b.BillType = &t
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bills: %w", err)
	}
	return out, nil
}

// UpdateBillStatus changes the payment status of one bill.
func (s *PostgresStore) UpdateBillStatus(ctx context.Context, userID, billID string, status model.BillStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE bills SET status=$1, updated_at=$2 WHERE id=$3 AND user_id=$4
	`, string(status), time.Now().UTC(), billID, userID)
	if err != nil {
		return fmt.Errorf("update bill: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveTransactions stores a statement's transactions. Re-processing the same
// statement is a no-op.
func (s *PostgresStore) SaveTransactions(ctx context.Context, userID, statementID string, txs []model.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for i, t := range txs {
		batch.Queue(`
			INSERT INTO transactions (id, user_id, statement_id, position, date, description, amount, type, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (user_id, statement_id, position) DO NOTHING
		`, uuid.NewString(), userID, statementID, i, t.Date, t.Description, t.Amount, string(t.Type), now)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert transactions: %w", err)
	}
	return nil
}

// Transactions returns all stored transactions for the user in upload order.
func (s *PostgresStore) Transactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date, description, amount, type
		FROM transactions WHERE user_id=$1
		ORDER BY created_at, statement_id, position
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	txs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Transaction, error) {
		var (
			t   model.Transaction
			typ string
		)
		err := row.Scan(&t.Date, &t.Description, &t.Amount, &typ)
		t.Type = model.TransactionType(typ)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan transactions: %w", err)
	}
	return txs, nil
}

// SeenMessages reports which of ids were already extracted for the user.
func (s *PostgresStore) SeenMessages(ctx context.Context, userID string, ids []string) (map[string]bool, error) {
	seen := make(map[string]bool)
	if len(ids) == 0 {
		return seen, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT message_id FROM scanned_messages WHERE user_id=$1 AND message_id = ANY($2)
	`, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("select scanned messages: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan scanned messages: %w", err)
	}
	for _, id := range found {
		seen[id] = true
	}
	return seen, nil
}

// MarkScanned records that the messages were extracted and need no rescans.
func (s *PostgresStore) MarkScanned(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, id := range ids {
		batch.Queue(`
			INSERT INTO scanned_messages (user_id, message_id, scanned_at)
			VALUES ($1,$2,$3)
			ON CONFLICT (user_id, message_id) DO UPDATE SET scanned_at=EXCLUDED.scanned_at
		`, userID, id, now)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert scanned messages: %w", err)
	}
	return nil
}

func billTypeText(t *model.BillType) *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}
