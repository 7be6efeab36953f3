package models

import (
	"errors"
	"time"

	"tallybook/internal/money"
	"tallybook/internal/uuid"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrLedgerImmutable is returned by the GORM hooks when something tries to
// update or delete a ledger row.
var ErrLedgerImmutable = errors.New("ledger entries are append-only")

// LedgerEntryType classifies a balance-affecting event.
type LedgerEntryType string

const (
	LedgerEntryIncome          LedgerEntryType = "income"
	LedgerEntryExpense         LedgerEntryType = "expense"
	LedgerEntryReversalIncome  LedgerEntryType = "reversal_income"
	LedgerEntryReversalExpense LedgerEntryType = "reversal_expense"
)

// EntryTypeFor maps a transaction type to its original entry type.
func EntryTypeFor(t TransactionType) LedgerEntryType {
	if t == TransactionTypeExpense {
		return LedgerEntryExpense
	}
	return LedgerEntryIncome
}

// IsReversal reports whether the entry undoes an earlier one.
func (e LedgerEntryType) IsReversal() bool {
	return e == LedgerEntryReversalIncome || e == LedgerEntryReversalExpense
}

// Reversed returns the entry type that cancels e.
func (e LedgerEntryType) Reversed() LedgerEntryType {
	switch e {
	case LedgerEntryIncome:
		return LedgerEntryReversalIncome
	case LedgerEntryExpense:
		return LedgerEntryReversalExpense
	case LedgerEntryReversalIncome:
		return LedgerEntryIncome
	default:
		return LedgerEntryExpense
	}
}

// Signed returns the effect of an entry of this type on the balance.
// income +, expense -, and reversals invert the original sign.
func (e LedgerEntryType) Signed(amount money.Amount) money.Amount {
	switch e {
	case LedgerEntryExpense, LedgerEntryReversalIncome:
		return amount.Neg()
	default:
		return amount
	}
}

// LedgerEntry is one append-only balance event. Amount is always positive;
// the direction comes from EntryType.
// No Base embed: entries are never updated or soft-deleted.
type LedgerEntry struct {
	ID              string          `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID       string          `gorm:"type:uuid;not null;uniqueIndex:uq_ledger_entries_account_sequence,priority:1" json:"account_id"`
	Sequence        int64           `gorm:"not null;uniqueIndex:uq_ledger_entries_account_sequence,priority:2" json:"sequence"`
	TransactionID   string          `gorm:"type:uuid;not null;index" json:"transaction_id"`
	EntryType       LedgerEntryType `gorm:"not null" json:"entry_type"`
	Amount          money.Amount    `gorm:"type:numeric(20,2);not null" json:"amount"`
	BalanceAfter    money.Amount    `gorm:"type:numeric(20,2);not null" json:"balance_after"`
	Description     string          `json:"description"`
	ReversesEntryID *string         `gorm:"type:uuid;uniqueIndex:uq_ledger_entries_reverses" json:"reverses_entry_id,omitempty"`

	TransactionSnapshot datatypes.JSON `json:"transaction_snapshot"`
	CreatorSnapshot     datatypes.JSON `json:"creator_snapshot"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// SignedAmount is the entry's effect on the account balance.
func (e *LedgerEntry) SignedAmount() money.Amount {
	return e.EntryType.Signed(e.Amount)
}

// BeforeCreate hook generates a UUIDv7 for new records
func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New()
	}
	return nil
}

// BeforeUpdate rejects in-place edits of ledger history.
func (e *LedgerEntry) BeforeUpdate(tx *gorm.DB) error { return ErrLedgerImmutable }

// BeforeDelete rejects removal of ledger history.
func (e *LedgerEntry) BeforeDelete(tx *gorm.DB) error { return ErrLedgerImmutable }
