package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/billsync/internal/model"
)

// MemoryStore keeps bills and transactions in process memory. The CLI uses it
// for one-shot runs and tests use it in place of Postgres. RWMutex lets readers
// proceed concurrently while writes stay exclusive.
type MemoryStore struct {
	mu      sync.RWMutex
	bills   map[string][]*model.StoredBill
	txs     map[string][]model.Transaction
	stmts   map[string]map[string]bool
	scanned map[string]map[string]bool
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bills:   make(map[string][]*model.StoredBill),
		txs:     make(map[string][]model.Transaction),
		stmts:   make(map[string]map[string]bool),
		scanned: make(map[string]map[string]bool),
	}
}

// SaveBills inserts or replaces bills keyed by source document.
func (m *MemoryStore) SaveBills(_ context.Context, userID string, recs []model.BillRecord) ([]model.StoredBill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]model.StoredBill, 0, len(recs))
	for _, rec := range recs {
		var existing *model.StoredBill
		for _, b := range m.bills[userID] {
			if b.SourceDocumentID == rec.SourceDocumentID {
				existing = b
				break
			}
		}
		if existing == nil {
			existing = &model.StoredBill{ID: uuid.NewString(), UserID: userID}
			m.bills[userID] = append(m.bills[userID], existing)
		}
		existing.BillRecord = rec
		stored = append(stored, *existing)
	}
	return stored, nil
}

// ListBills returns copies of the user's bills, newest first.
func (m *MemoryStore) ListBills(_ context.Context, userID string) ([]model.StoredBill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.bills[userID]
	out := make([]model.StoredBill, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		out = append(out, *src[i])
	}
	return out, nil
}

// CurrentBills returns the user's bills that are not paid, oldest first.
func (m *MemoryStore) CurrentBills(_ context.Context, userID string) ([]model.Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Bill
	for _, b := range m.bills[userID] {
		if b.Status == model.BillStatusPaid {
			continue
		}
		out = append(out, b.AsBill())
	}
	return out, nil
}

// UpdateBillStatus changes one bill's status.
func (m *MemoryStore) UpdateBillStatus(_ context.Context, userID, billID string, status model.BillStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bills[userID] {
		if b.ID == billID {
			b.Status = status
			return nil
		}
	}
	return ErrNotFound
}

// SaveTransactions appends a statement's transactions once per statement id.
func (m *MemoryStore) SaveTransactions(_ context.Context, userID, statementID string, txs []model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stmts[userID] == nil {
		m.stmts[userID] = make(map[string]bool)
	}
	if m.stmts[userID][statementID] {
		return nil
	}
	m.stmts[userID][statementID] = true
	m.txs[userID] = append(m.txs[userID], txs...)
	return nil
}

// Transactions returns a copy of the user's transactions in insertion order.
func (m *MemoryStore) Transactions(_ context.Context, userID string) ([]model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Transaction(nil), m.txs[userID]...), nil
}

// SeenMessages reports which ids were marked scanned for the user.
func (m *MemoryStore) SeenMessages(_ context.Context, userID string, ids []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	for _, id := range ids {
		if m.scanned[userID][id] {
			seen[id] = true
		}
	}
	return seen, nil
}

// MarkScanned records message ids as extracted.
func (m *MemoryStore) MarkScanned(_ context.Context, userID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scanned[userID] == nil {
		m.scanned[userID] = make(map[string]bool)
	}
	for _, id := range ids {
		m.scanned[userID][id] = true
	}
	return nil
}
