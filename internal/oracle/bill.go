package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dharsanguruparan/billsync/internal/model"
)

// rawBill mirrors the JSON the model is asked for. Amount and confidence are
// loosely typed because models sometimes quote numbers or add currency symbols.
type rawBill struct {
	IsBill     bool    `json:"isBill"`
	Company    *string `json:"company"`
	Amount     any     `json:"amount"`
	Currency   *string `json:"currency"`
	DueDate    *string `json:"dueDate"`
	BillType   *string `json:"billType"`
	Status     *string `json:"status"`
	Confidence any     `json:"confidence"`
}

// ExtractBill asks the model whether doc is a bill and decodes its answer.
func (c *Client) ExtractBill(ctx context.Context, doc model.Document) Outcome[*model.BillRecord] {
	resp, err := c.complete(ctx, billSystemPrompt, renderPrompt(billUserPrompt, doc))
	if err != nil {
		out := failed[*model.BillRecord](fmt.Errorf("complete bill prompt: %w", err))
		logOutcome("bill", doc, out.Kind, out.Err)
		return out
	}
	out := ParseBill(resp, doc.ID)
	logOutcome("bill", doc, out.Kind, out.Err)
	return out
}

// ParseBill decodes the first balanced JSON object in resp into a BillRecord.
func ParseBill(resp, sourceDocumentID string) Outcome[*model.BillRecord] {
	span, ok := firstBalanced(resp, '{', '}')
	if !ok {
		return unparseable[*model.BillRecord](resp, errNoSpan)
	}
	var raw rawBill
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return unparseable[*model.BillRecord](resp, fmt.Errorf("decode bill: %w", err))
	}
	return parsed(raw.normalize(sourceDocumentID), resp)
}

func (r rawBill) normalize(sourceDocumentID string) *model.BillRecord {
	rec := &model.BillRecord{
		SourceDocumentID: sourceDocumentID,
		IsBill:           r.IsBill,
		Company:          nonEmpty(r.Company),
		Currency:         nonEmpty(r.Currency),
		Status:           model.BillStatusUnknown,
	}
	if amount, ok := toNumber(r.Amount); ok && amount >= 0 {
		rec.Amount = &amount
	}
	rec.DueDate = dueDay(r.DueDate)
	if r.BillType != nil {
		t := model.BillType(strings.ToLower(strings.TrimSpace(*r.BillType)))
		if t.Valid() {
			rec.BillType = &t
		}
	}
	if r.Status != nil {
		s := model.BillStatus(strings.ToLower(strings.TrimSpace(*r.Status)))
		if s.Valid() {
			rec.Status = s
		}
	}
	if conf, ok := toNumber(r.Confidence); ok {
		rec.Confidence = int(math.Round(math.Max(0, math.Min(100, conf))))
	}
	return rec
}

// dueDay keeps the YYYY-MM-DD prefix of a due date, so a full ISO timestamp
// still yields its day.
func dueDay(s *string) *string {
	due := nonEmpty(s)
	if due == nil || len(*due) < len(time.DateOnly) {
		return nil
	}
	day := (*due)[:len(time.DateOnly)]
	if _, err := time.Parse(time.DateOnly, day); err != nil {
		return nil
	}
	return &day
}

// toNumber accepts a JSON number or a numeric string such as "$1,204.50".
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case string:
		clean := strings.TrimSpace(n)
		clean = strings.TrimLeft(clean, "$€£¥")
		clean = strings.ReplaceAll(clean, ",", "")
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
