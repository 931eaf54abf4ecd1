package models

import "time"

// TransactionType is Income or Expense.
type TransactionType string

const (
	TransactionIncome  TransactionType = "Income"
	TransactionExpense TransactionType = "Expense"
)

// Valid reports whether t is a known type.
func (t TransactionType) Valid() bool { return t == TransactionIncome || t == TransactionExpense }

// ReferenceKind names the entity a transaction originated from.
type ReferenceKind string

const (
	ReferenceManual    ReferenceKind = "Manual"
	ReferenceSale      ReferenceKind = "Sale"
	ReferenceMortality ReferenceKind = "Mortality"
	ReferenceMedical   ReferenceKind = "Medical"
	ReferencePurchase  ReferenceKind = "Purchase"
)

// Well-known transaction categories.
const (
	CategorySale     = "Sale"
	CategoryMedical  = "Medical"
	CategoryPurchase = "Purchase"
)

// Transaction is a financial ledger entry.
type Transaction struct {
	ID            string          `bson:"_id" json:"id"`
	FarmID        string          `bson:"farm_id" json:"farm_id"`
	Type          TransactionType `bson:"type" json:"type"`
	Category      string          `bson:"category" json:"category"`
	Amount        float64         `bson:"amount" json:"amount"`
	Date          time.Time       `bson:"date" json:"date"`
	Note          string          `bson:"note,omitempty" json:"note,omitempty"`
	Counterparty  string          `bson:"counterparty,omitempty" json:"counterparty,omitempty"`
	ReferenceKind ReferenceKind   `bson:"reference_kind" json:"reference_kind"`
	ReferenceIDs  []string        `bson:"reference_ids,omitempty" json:"reference_ids,omitempty"`
	ReferenceTags []string        `bson:"reference_tags,omitempty" json:"reference_tags,omitempty"`
	CreatedAt     time.Time       `bson:"created_at" json:"created_at"`
}

// FinanceSummary aggregates transactions for a period.
type FinanceSummary struct {
	From       *time.Time         `json:"from,omitempty"`
	To         *time.Time         `json:"to,omitempty"`
	Currency   string             `json:"currency"`
	Income     float64            `json:"income"`
	Expense    float64            `json:"expense"`
	Net        float64            `json:"net"`
	ByCategory map[string]float64 `json:"by_category"`
	Count      int                `json:"count"`
}
