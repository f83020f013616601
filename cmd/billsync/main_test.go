package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dharsanguruparan/billsync/internal/model"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestMatchCommand(t *testing.T) {
	dir := t.TempDir()
	txs := writeFile(t, dir, "txs.json", `[
		{"date":"2024-03-15","description":"AGL ENERGY","amount":100,"type":"debit"},
		{"date":"2024-03-15","description":"SALARY","amount":100,"type":"credit"}
	]`)
	bills := writeFile(t, dir, "bills.json", `[
		{"id":"b1","company":"AGL","amount":100,"dueDate":"2024-03-15","status":"unpaid"}
	]`)

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"match", "--transactions", txs, "--bills", bills})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var matches []model.Match
	if err := json.Unmarshal(out.Bytes(), &matches); err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].BillID != "b1" || matches[0].Confidence != 100 {
		t.Fatalf("unexpected match: %+v", matches[0])
	}
}

func TestMatchCommandEmptyPrintsArray(t *testing.T) {
	dir := t.TempDir()
	txs := writeFile(t, dir, "txs.json", `[]`)
	bills := writeFile(t, dir, "bills.json", `[]`)

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"match", "--transactions", txs, "--bills", bills})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "[]" {
		t.Fatalf("expected [], got %q", got)
	}
}

func TestMatchCommandBadJSON(t *testing.T) {
	dir := t.TempDir()
	txs := writeFile(t, dir, "txs.json", `{not json`)
	bills := writeFile(t, dir, "bills.json", `[]`)

	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"match", "--transactions", txs, "--bills", bills})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestNormalizeCommand(t *testing.T) {
	dir := t.TempDir()
	eml := writeFile(t, dir, "msg-1.eml", "From: billing@agl.com.au\r\n"+
		"Subject: Your bill\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: multipart/alternative; boundary=\"b1\"\r\n"+
		"\r\n"+
		"--b1\r\n"+
		"Content-Type: text/html; charset=utf-8\r\n"+
		"\r\n"+
		"<p>Amount   due: <b>$120.50</b></p>\r\n"+
		"--b1--\r\n")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"normalize", "--eml", eml})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var doc model.Document
	if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}
	if doc.ID != "msg-1" {
		t.Fatalf("expected id msg-1, got %q", doc.ID)
	}
	if !strings.Contains(doc.Content, "Amount due: $120.50") {
		t.Fatalf("expected stripped body, got %q", doc.Content)
	}
}

func TestExtractRejectsUnknownKind(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"extract", "--file", "x.txt", "--kind", "receipt"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "unknown kind") {
		t.Fatalf("expected unknown kind error, got %v", err)
	}
}
