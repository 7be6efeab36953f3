package models

import "tallybook/internal/money"

// Account owns a running balance. Balance is only ever written by the
// ledger, under a row lock, in the same transaction as the ledger entry
// that explains the change.
type Account struct {
	Base
	OwnerID        string       `gorm:"type:uuid;not null;index" json:"owner_id"`
	Name           string       `gorm:"not null" json:"name"`
	Currency       string       `gorm:"size:3;not null;default:'USD'" json:"currency"`
	InitialBalance money.Amount `gorm:"type:numeric(20,2);not null" json:"initial_balance"`
	Balance        money.Amount `gorm:"type:numeric(20,2);not null" json:"balance"`
	// LedgerSequence is the sequence number of the last ledger entry
	// appended for this account.
	LedgerSequence int64 `gorm:"not null" json:"ledger_sequence"`
	IsActive       bool  `gorm:"default:true" json:"is_active"`
}
