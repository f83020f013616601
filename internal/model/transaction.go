package model

// TransactionType is the direction of money movement on a statement line.
type TransactionType string

const (
	TransactionDebit  TransactionType = "debit"
	TransactionCredit TransactionType = "credit"
)

// Transaction is one validated statement line. Amount is always > 0; the
// direction lives in Type.
type Transaction struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Type        TransactionType `json:"type"`
}

// MatchedTransaction is the subset of a transaction echoed back on a Match.
type MatchedTransaction struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// Match pairs a debit transaction with the bill it most likely paid. Matches are
// always recomputed from their inputs and never stored.
type Match struct {
	Transaction MatchedTransaction `json:"transaction"`
	BillID      string             `json:"billId"`
	BillCompany *string            `json:"billCompany"`
	BillAmount  *float64           `json:"billAmount"`
	BillDueDate *string            `json:"billDueDate"`
	Confidence  int                `json:"confidence"`
}
