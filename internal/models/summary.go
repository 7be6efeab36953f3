package models

import (
	"time"

	"tallybook/internal/money"
	"tallybook/internal/uuid"

	"gorm.io/gorm"
)

// RollupBase holds the columns shared by every summary table. Summary rows
// are derived data: created lazily by the first delta for their key, never
// deleted, and rebuildable from transactions.
type RollupBase struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (b *RollupBase) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}

// DailySummary aggregates one account's income and expense for a calendar day.
type DailySummary struct {
	RollupBase
	AccountID    string       `gorm:"type:uuid;not null;uniqueIndex:uq_daily_summaries_key,priority:1" json:"account_id"`
	Date         time.Time    `gorm:"type:date;not null;uniqueIndex:uq_daily_summaries_key,priority:2" json:"date"`
	TotalIncome  money.Amount `gorm:"type:numeric(20,2);not null" json:"total_income"`
	TotalExpense money.Amount `gorm:"type:numeric(20,2);not null" json:"total_expense"`
}

// WeeklySummary aggregates one ISO week, keyed by its Monday.
type WeeklySummary struct {
	RollupBase
	AccountID    string       `gorm:"type:uuid;not null;uniqueIndex:uq_weekly_summaries_key,priority:1" json:"account_id"`
	WeekStart    time.Time    `gorm:"type:date;not null;uniqueIndex:uq_weekly_summaries_key,priority:2" json:"week_start"`
	TotalIncome  money.Amount `gorm:"type:numeric(20,2);not null" json:"total_income"`
	TotalExpense money.Amount `gorm:"type:numeric(20,2);not null" json:"total_expense"`
}

// MonthlySummary aggregates one calendar month.
type MonthlySummary struct {
	RollupBase
	AccountID    string       `gorm:"type:uuid;not null;uniqueIndex:uq_monthly_summaries_key,priority:1" json:"account_id"`
	Year         int          `gorm:"not null;uniqueIndex:uq_monthly_summaries_key,priority:2" json:"year"`
	Month        int          `gorm:"not null;uniqueIndex:uq_monthly_summaries_key,priority:3" json:"month"`
	TotalIncome  money.Amount `gorm:"type:numeric(20,2);not null" json:"total_income"`
	TotalExpense money.Amount `gorm:"type:numeric(20,2);not null" json:"total_expense"`
}

// YearlySummary aggregates one calendar year.
type YearlySummary struct {
	RollupBase
	AccountID    string       `gorm:"type:uuid;not null;uniqueIndex:uq_yearly_summaries_key,priority:1" json:"account_id"`
	Year         int          `gorm:"not null;uniqueIndex:uq_yearly_summaries_key,priority:2" json:"year"`
	TotalIncome  money.Amount `gorm:"type:numeric(20,2);not null" json:"total_income"`
	TotalExpense money.Amount `gorm:"type:numeric(20,2);not null" json:"total_expense"`
}

// CategoryDailySummary aggregates one category and transaction type for a
// day. TotalAmount is signed: income adds, expense subtracts.
type CategoryDailySummary struct {
	RollupBase
	AccountID   string          `gorm:"type:uuid;not null;uniqueIndex:uq_category_daily_summaries_key,priority:1" json:"account_id"`
	Date        time.Time       `gorm:"type:date;not null;uniqueIndex:uq_category_daily_summaries_key,priority:2" json:"date"`
	CategoryID  string          `gorm:"type:uuid;not null;uniqueIndex:uq_category_daily_summaries_key,priority:3" json:"category_id"`
	Type        TransactionType `gorm:"not null;uniqueIndex:uq_category_daily_summaries_key,priority:4" json:"type"`
	TotalAmount money.Amount    `gorm:"type:numeric(20,2);not null" json:"total_amount"`
}

// CategoryMonthlySummary aggregates one category and transaction type for a
// calendar month. TotalAmount is signed like CategoryDailySummary.
type CategoryMonthlySummary struct {
	RollupBase
	AccountID   string          `gorm:"type:uuid;not null;uniqueIndex:uq_category_monthly_summaries_key,priority:1" json:"account_id"`
	Year        int             `gorm:"not null;uniqueIndex:uq_category_monthly_summaries_key,priority:2" json:"year"`
	Month       int             `gorm:"not null;uniqueIndex:uq_category_monthly_summaries_key,priority:3" json:"month"`
	CategoryID  string          `gorm:"type:uuid;not null;uniqueIndex:uq_category_monthly_summaries_key,priority:4" json:"category_id"`
	Type        TransactionType `gorm:"not null;uniqueIndex:uq_category_monthly_summaries_key,priority:5" json:"type"`
	TotalAmount money.Amount    `gorm:"type:numeric(20,2);not null" json:"total_amount"`
}
