// Package match pairs bank transactions with outstanding bills using a weighted
// score over amount, date proximity and payee name.
package match

import (
	"math"
	"time"

	"github.com/dharsanguruparan/billsync/internal/model"
)

// Threshold is the minimum composite score a pair needs to be reported.
const Threshold = 0.5

const (
	amountExactWeight = 0.5
	amountCloseWeight = 0.3
	dateNearWeight    = 0.3
	dateFarWeight     = 0.15
	nameWeight        = 0.2

	amountExactTolerance = 0.02
	amountCloseTolerance = 0.05
)

// Options tune the matcher.
type Options struct {
	// ExclusiveBills retires a bill once it has been matched, so later
	// transactions cannot match it again. Off by default: one bill may be the
	// best match for several transactions.
	ExclusiveBills bool
}

// Engine carries Options for callers that match repeatedly.
type Engine struct {
	opts Options
}

// NewEngine returns an Engine using opts.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Match runs Match with the engine's options.
func (e *Engine) Match(txs []model.Transaction, bills []model.Bill) []model.Match {
	return Match(txs, bills, e.opts)
}

// Match returns, for each debit transaction in order, the best-scoring unpaid
// bill whose score reaches Threshold. Ties go to the earlier bill. The result is
// a pure function of the inputs.
func Match(txs []model.Transaction, bills []model.Bill, opts Options) []model.Match {
	candidates := make([]model.Bill, 0, len(bills))
	for _, b := range bills {
		if b.Status == string(model.BillStatusPaid) {
			continue
		}
		if b.Amount == nil || *b.Amount <= 0 {
			continue
		}
		candidates = append(candidates, b)
	}

	retired := make(map[int]bool)
	var matches []model.Match
	for _, tx := range txs {
		if tx.Type != model.TransactionDebit {
			continue
		}
		best, bestScore := -1, 0.0
		for i, b := range candidates {
			if retired[i] {
				continue
			}
			s := Score(tx, b)
			if s >= Threshold && s > bestScore {
				best, bestScore = i, s
			}
		}
		if best < 0 {
			continue
		}
		if opts.ExclusiveBills {
			retired[best] = true
		}
		b := candidates[best]
		matches = append(matches, model.Match{
			Transaction: model.MatchedTransaction{
				Date:        tx.Date,
				Description: tx.Description,
				Amount:      tx.Amount,
			},
			BillID:      b.ID,
			BillCompany: b.Company,
			BillAmount:  b.Amount,
			BillDueDate: b.DueDate,
			Confidence:  int(math.Round(bestScore * 100)),
		})
	}
	return matches
}

// Score is the composite score of tx against b, or 0 when the amounts differ by
// more than five percent. b.Amount must be set and positive.
func Score(tx model.Transaction, b model.Bill) float64 {
	amount, ok := amountScore(tx.Amount, *b.Amount)
	if !ok {
		return 0
	}
	score := amount
	if b.DueDate != nil {
		score += dateScore(tx.Date, *b.DueDate)
	}
	if b.Company != nil {
		score += nameSimilarity(tx.Description, *b.Company) * nameWeight
	}
	// Keep sums like 0.3+0.15+0.05 from landing a hair under a boundary.
	return math.Round(score*1e6) / 1e6
}

func amountScore(txAmount, billAmount float64) (float64, bool) {
	diff := math.Abs(txAmount-billAmount) / billAmount
	switch {
	case diff <= amountExactTolerance:
		return amountExactWeight, true
	case diff <= amountCloseTolerance:
		return amountCloseWeight, true
	}
	return 0, false
}

// dateScore grades how long after (or before) the due date the payment landed.
// Unparseable dates contribute nothing.
func dateScore(txDate, dueDate string) float64 {
	paid, err := parseDay(txDate)
	if err != nil {
		return 0
	}
	due, err := parseDay(dueDate)
	if err != nil {
		return 0
	}
	days := int(math.Round(paid.Sub(due).Hours() / 24))
	switch {
	case days >= -7 && days <= 14:
		return dateNearWeight
	case days >= -14 && days <= 30:
		return dateFarWeight
	}
	return 0
}

// parseDay accepts YYYY-MM-DD, optionally followed by a time part.
func parseDay(s string) (time.Time, error) {
	if len(s) > len(time.DateOnly) {
		s = s[:len(time.DateOnly)]
	}
	return time.Parse(time.DateOnly, s)
}
