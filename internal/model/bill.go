package model

// BillType classifies a bill. A type declared as "type X string" keeps JSON
// encoding trivial while giving the compiler something to check.
type BillType string

const (
	BillTypeElectricity  BillType = "electricity"
	BillTypeInternet     BillType = "internet"
	BillTypePhone        BillType = "phone"
	BillTypeInsurance    BillType = "insurance"
	BillTypeSubscription BillType = "subscription"
	BillTypeOther        BillType = "other"
)

// Valid reports whether t is one of the known bill types.
func (t BillType) Valid() bool {
	switch t {
	case BillTypeElectricity, BillTypeInternet, BillTypePhone, BillTypeInsurance, BillTypeSubscription, BillTypeOther:
		return true
	}
	return false
}

// BillStatus is the payment state reported for a bill.
type BillStatus string

const (
	BillStatusPaid    BillStatus = "paid"
	BillStatusUnpaid  BillStatus = "unpaid"
	BillStatusUnknown BillStatus = "unknown"
)

// Valid reports whether s is one of the known statuses.
func (s BillStatus) Valid() bool {
	return s == BillStatusPaid || s == BillStatusUnpaid || s == BillStatusUnknown
}

// MinAcceptedConfidence is the exclusive lower bound on oracle confidence for a
// bill record to be kept.
const MinAcceptedConfidence = 50

// BillRecord is the structured result the oracle produces for one document.
// Optional fields are pointers so "absent" and "zero" stay distinguishable.
type BillRecord struct {
	SourceDocumentID string     `json:"sourceDocumentId"`
	IsBill           bool       `json:"isBill"`
	Company          *string    `json:"company"`
	Amount           *float64   `json:"amount"`
	Currency         *string    `json:"currency"`
	DueDate          *string    `json:"dueDate"` // YYYY-MM-DD
	BillType         *BillType  `json:"billType"`
	Status           BillStatus `json:"status"`
	Confidence       int        `json:"confidence"`
}

// Accepted reports whether the record should flow into downstream processing.
func (r *BillRecord) Accepted() bool {
	return r != nil && r.IsBill && r.Confidence > MinAcceptedConfidence
}

// Bill is the narrow view of a stored bill that the matcher works with.
type Bill struct {
	ID      string   `json:"id"`
	Company *string  `json:"company,omitempty"`
	Amount  *float64 `json:"amount,omitempty"`
	DueDate *string  `json:"dueDate,omitempty"`
	Status  string   `json:"status"`
}

// StoredBill is a persisted bill as returned to API callers.
type StoredBill struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	BillRecord
}

// AsBill narrows a stored bill to the matcher view.
func (b StoredBill) AsBill() Bill {
	return Bill{
		ID:      b.ID,
		Company: b.Company,
		Amount:  b.Amount,
		DueDate: b.DueDate,
		Status:  string(b.Status),
	}
}
