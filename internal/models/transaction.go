package models

import (
	"time"

	"tallybook/internal/money"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Valid reports whether t is a supported transaction type.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// Signed returns amount with the sign it has on the account balance:
// income adds, expense subtracts.
func (t TransactionType) Signed(amount money.Amount) money.Amount {
	if t == TransactionTypeExpense {
		return amount.Neg()
	}
	return amount
}

// TransactionStatus is the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusCleared TransactionStatus = "cleared"
	TransactionStatusVoid    TransactionStatus = "void"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCleared, TransactionStatusVoid, TransactionStatusFailed:
		return true
	}
	return false
}

// Posted reports whether a transaction in this status contributes to the
// account balance and the rollups.
func (s TransactionStatus) Posted() bool {
	return s == TransactionStatusPending || s == TransactionStatusCleared
}

// Terminal reports whether no further transition is allowed out of s.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusVoid || s == TransactionStatusFailed
}

// RecurrenceRule is how often a recurring transaction repeats.
type RecurrenceRule string

const (
	RecurrenceNone    RecurrenceRule = ""
	RecurrenceDaily   RecurrenceRule = "daily"
	RecurrenceWeekly  RecurrenceRule = "weekly"
	RecurrenceMonthly RecurrenceRule = "monthly"
	RecurrenceYearly  RecurrenceRule = "yearly"
)

// Valid reports whether r is a known rule (the empty rule included).
func (r RecurrenceRule) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return true
	}
	return false
}

// Transaction is the authoritative record every derived structure follows.
// It is written only by the transaction service.
type Transaction struct {
	Base
	AccountID       string            `gorm:"type:uuid;not null;index:idx_transactions_account_date,priority:1" json:"account_id"`
	CreatorID       string            `gorm:"type:uuid;not null" json:"creator_id"`
	CategoryID      *string           `gorm:"type:uuid" json:"category_id,omitempty"`
	Type            TransactionType   `gorm:"not null" json:"type"`
	Amount          money.Amount      `gorm:"type:numeric(20,2);not null" json:"amount"`
	Currency        string            `gorm:"size:3;not null" json:"currency"`
	Description     string            `json:"description"`
	TransactionDate time.Time         `gorm:"type:date;not null;index:idx_transactions_account_date,priority:2" json:"transaction_date"`
	Status          TransactionStatus `gorm:"not null;default:'cleared'" json:"status"`
	ExternalRefID   *string           `gorm:"uniqueIndex:uq_transactions_external_ref" json:"external_ref_id,omitempty"`

	IsRecurring       bool           `gorm:"not null;default:false" json:"is_recurring"`
	RecurrenceRule    RecurrenceRule `json:"recurrence_rule,omitempty"`
	RecurringParentID *string        `gorm:"type:uuid" json:"recurring_parent_id,omitempty"`

	// LedgerEntryID points at the ledger entry currently carrying this
	// transaction's effect on the balance; nil once the effect is reversed.
	LedgerEntryID *string `gorm:"type:uuid" json:"ledger_entry_id,omitempty"`
}

// SignedAmount is the transaction's effect on its account balance.
func (t *Transaction) SignedAmount() money.Amount {
	return t.Type.Signed(t.Amount)
}

// Snapshot captures the transaction by value for ledger and audit payloads.
func (t *Transaction) Snapshot() map[string]any {
	snap := map[string]any{
		"id":               t.ID,
		"account_id":       t.AccountID,
		"creator_id":       t.CreatorID,
		"type":             t.Type,
		"amount":           t.Amount.String(),
		"currency":         t.Currency,
		"description":      t.Description,
		"transaction_date": t.TransactionDate.Format(time.DateOnly),
		"status":           t.Status,
		"is_recurring":     t.IsRecurring,
	}
	if t.CategoryID != nil {
		snap["category_id"] = *t.CategoryID
	}
	if t.ExternalRefID != nil {
		snap["external_ref_id"] = *t.ExternalRefID
	}
	if t.RecurrenceRule != RecurrenceNone {
		snap["recurrence_rule"] = t.RecurrenceRule
	}
	if t.RecurringParentID != nil {
		snap["recurring_parent_id"] = *t.RecurringParentID
	}
	return snap
}
