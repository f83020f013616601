package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/dharsanguruparan/billsync/internal/model"
)

func record(docID, company string, amount float64, status model.BillStatus) model.BillRecord {
	return model.BillRecord{
		SourceDocumentID: docID,
		IsBill:           true,
		Company:          &company,
		Amount:           &amount,
		Status:           status,
		Confidence:       90,
	}
}

func TestMemoryStoreBills(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	saved, err := store.SaveBills(ctx, "u1", []model.BillRecord{
		record("m1", "AGL", 80, model.BillStatusUnpaid),
		record("m2", "Netflix", 15.99, model.BillStatusPaid),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(saved) != 2 || saved[0].ID == "" || saved[0].ID == saved[1].ID {
		t.Fatalf("expected distinct ids, got %+v", saved)
	}

	// Rescanning the same message updates the bill in place.
	again, _ := store.SaveBills(ctx, "u1", []model.BillRecord{record("m1", "AGL", 82, model.BillStatusUnpaid)})
	if again[0].ID != saved[0].ID {
		t.Fatalf("expected upsert to keep id %s, got %s", saved[0].ID, again[0].ID)
	}

	all, _ := store.ListBills(ctx, "u1")
	if len(all) != 2 || all[0].SourceDocumentID != "m2" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	current, _ := store.CurrentBills(ctx, "u1")
	if len(current) != 1 || *current[0].Amount != 82 {
		t.Fatalf("expected only the unpaid bill, got %+v", current)
	}

	if err := store.UpdateBillStatus(ctx, "u1", saved[0].ID, model.BillStatusPaid); err != nil {
		t.Fatalf("update: %v", err)
	}
	if current, _ := store.CurrentBills(ctx, "u1"); len(current) != 0 {
		t.Fatalf("expected no current bills, got %+v", current)
	}
	if err := store.UpdateBillStatus(ctx, "u2", saved[0].ID, model.BillStatusPaid); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another user, got %v", err)
	}
}

func TestMemoryStoreTransactions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	txs := []model.Transaction{{Date: "2024-07-01", Description: "AGL", Amount: 80, Type: model.TransactionDebit}}

	if err := store.SaveTransactions(ctx, "u1", "s1", txs); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = store.SaveTransactions(ctx, "u1", "s1", txs)
	got, _ := store.Transactions(ctx, "u1")
	if len(got) != 1 {
		t.Fatalf("expected statement to be stored once, got %d", len(got))
	}
	got[0].Description = "mutated"
	if again, _ := store.Transactions(ctx, "u1"); again[0].Description != "AGL" {
		t.Fatalf("expected a copy to be returned")
	}
}

func TestMemoryStoreScannedMessages(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.MarkScanned(ctx, "u1", []string{"a", "b"})

	seen, err := store.SeenMessages(ctx, "u1", []string{"a", "c"})
	if err != nil {
		t.Fatalf("seen: %v", err)
	}
	if !seen["a"] || seen["c"] || len(seen) != 1 {
		t.Fatalf("unexpected seen set %v", seen)
	}
	if other, _ := store.SeenMessages(ctx, "u2", []string{"a"}); len(other) != 0 {
		t.Fatalf("scans must be per user")
	}
}
