package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dharsanguruparan/billsync/internal/model"
)

// ExtractTransactions asks the model for the transactions in a statement-like
// document. Invalid elements are dropped; a response with none left is still
// Parsed.
func (c *Client) ExtractTransactions(ctx context.Context, doc model.Document) Outcome[[]model.Transaction] {
	resp, err := c.complete(ctx, statementSystemPrompt, renderPrompt(statementUserPrompt, doc))
	if err != nil {
		out := failed[[]model.Transaction](fmt.Errorf("complete statement prompt: %w", err))
		logOutcome("statement", doc, out.Kind, out.Err)
		return out
	}
	out := ParseTransactions(resp)
	logOutcome("statement", doc, out.Kind, out.Err)
	return out
}

// ParseTransactions decodes the first balanced JSON array in resp and keeps the
// elements that validate as transactions.
func ParseTransactions(resp string) Outcome[[]model.Transaction] {
	span, ok := firstBalanced(resp, '[', ']')
	if !ok {
		return unparseable[[]model.Transaction](resp, errNoSpan)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(span), &elems); err != nil {
		return unparseable[[]model.Transaction](resp, fmt.Errorf("decode transactions: %w", err))
	}
	txs := make([]model.Transaction, 0, len(elems))
	for _, elem := range elems {
		if tx, ok := validTransaction(elem); ok {
			txs = append(txs, tx)
		}
	}
	return parsed(txs, resp)
}

// validTransaction requires a non-empty string date and description, a numeric
// amount strictly above zero and a type of exactly "debit" or "credit".
func validTransaction(elem json.RawMessage) (model.Transaction, bool) {
	var fields map[string]any
	if err := json.Unmarshal(elem, &fields); err != nil {
		return model.Transaction{}, false
	}
	date, ok := fields["date"].(string)
	if !ok || date == "" {
		return model.Transaction{}, false
	}
	desc, ok := fields["description"].(string)
	if !ok || desc == "" {
		return model.Transaction{}, false
	}
	amount, ok := fields["amount"].(float64)
	if !ok || !(amount > 0) {
		return model.Transaction{}, false
	}
	typ, _ := fields["type"].(string)
	switch model.TransactionType(typ) {
	case model.TransactionDebit, model.TransactionCredit:
	default:
		return model.Transaction{}, false
	}
	return model.Transaction{
		Date:        date,
		Description: desc,
		Amount:      amount,
		Type:        model.TransactionType(typ),
	}, true
}
