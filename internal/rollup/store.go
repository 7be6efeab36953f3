package rollup

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tallybook/internal/models"
	"tallybook/internal/money"
)

// Row is the granularity-independent view of one stored summary row.
type Row struct {
	Granularity  Granularity            `json:"granularity"`
	AccountID    string                 `json:"account_id"`
	Period       string                 `json:"period"`
	PeriodStart  time.Time              `json:"period_start"`
	CategoryID   string                 `json:"category_id,omitempty"`
	Type         models.TransactionType `json:"type,omitempty"`
	TotalIncome  money.Amount           `json:"total_income"`
	TotalExpense money.Amount           `json:"total_expense"`
	TotalAmount  money.Amount           `json:"total_amount"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// NewRow builds a Row from its key and totals.
func NewRow(key PeriodKey, totals Totals, updatedAt time.Time) Row {
	return Row{
		Granularity:  key.Granularity,
		AccountID:    key.AccountID,
		Period:       key.Label(),
		PeriodStart:  key.PeriodStart,
		CategoryID:   key.CategoryID,
		Type:         key.Type,
		TotalIncome:  totals.Income,
		TotalExpense: totals.Expense,
		TotalAmount:  totals.Amount,
		UpdatedAt:    updatedAt,
	}
}

// Key returns the row's natural key.
func (r Row) Key() PeriodKey {
	return PeriodKey{
		Granularity: r.Granularity,
		AccountID:   r.AccountID,
		PeriodStart: r.PeriodStart,
		CategoryID:  r.CategoryID,
		Type:        r.Type,
	}
}

// Totals returns the row's aggregate values.
func (r Row) Totals() Totals {
	return Totals{Income: r.TotalIncome, Expense: r.TotalExpense, Amount: r.TotalAmount}
}

// shape maps one granularity onto its table.
type shape struct {
	table        string
	keyColumns   []string
	totalColumns []string
	record       func(k PeriodKey, t Totals) any
	find         func(q *gorm.DB, accountID string, from, to time.Time) ([]Row, error)
}

var (
	timeTotals     = []string{"total_income", "total_expense"}
	categoryTotals = []string{"total_amount"}
)

var shapes = map[Granularity]shape{
	Daily: {
		table:        "daily_summaries",
		keyColumns:   []string{"account_id", "date"},
		totalColumns: timeTotals,
		record: func(k PeriodKey, t Totals) any {
			return &models.DailySummary{AccountID: k.AccountID, Date: k.PeriodStart, TotalIncome: t.Income, TotalExpense: t.Expense}
		},
		find: func(q *gorm.DB, accountID string, from, to time.Time) ([]Row, error) {
			return findRows(q.Where("account_id = ? AND date BETWEEN ? AND ?", accountID, from, to).Order("date"),
				func(r models.DailySummary) Row {
					return NewRow(KeyFor(Daily, r.AccountID, r.Date, "", ""), Totals{Income: r.TotalIncome, Expense: r.TotalExpense}, r.UpdatedAt)
				})
		},
	},
	Weekly: {
		table:        "weekly_summaries",
		keyColumns:   []string{"account_id", "week_start"},
		totalColumns: timeTotals,
		record: func(k PeriodKey, t Totals) any {
			return &models.WeeklySummary{AccountID: k.AccountID, WeekStart: k.PeriodStart, TotalIncome: t.Income, TotalExpense: t.Expense}
		},
		find: func(q *gorm.DB, accountID string, from, to time.Time) ([]Row, error) {
			return findRows(q.Where("account_id = ? AND week_start BETWEEN ? AND ?", accountID, from, to).Order("week_start"),
				func(r models.WeeklySummary) Row {
					return NewRow(KeyFor(Weekly, r.AccountID, r.WeekStart, "", ""), Totals{Income: r.TotalIncome, Expense: r.TotalExpense}, r.UpdatedAt)
				})
		},
	},
	Monthly: {
		table:        "monthly_summaries",
		keyColumns:   []string{"account_id", "year", "month"},
		totalColumns: timeTotals,
		record: func(k PeriodKey, t Totals) any {
			return &models.MonthlySummary{AccountID: k.AccountID, Year: k.Year(), Month: k.Month(), TotalIncome: t.Income, TotalExpense: t.Expense}
		},
		find: func(q *gorm.DB, accountID string, from, to time.Time) ([]Row, error) {
			return findRows(q.Where("account_id = ? AND (year * 100 + month) BETWEEN ? AND ?", accountID, yearMonth(from), yearMonth(to)).Order("year, month"),
				func(r models.MonthlySummary) Row {
					return NewRow(KeyFor(Monthly, r.AccountID, firstOfMonth(r.Year, r.Month), "", ""), Totals{Income: r.TotalIncome, Expense: r.TotalExpense}, r.UpdatedAt)
				})
		},
	},
	Yearly: {
		table:        "yearly_summaries",
		keyColumns:   []string{"account_id", "year"},
		totalColumns: timeTotals,
		record: func(k PeriodKey, t Totals) any {
			return &models.YearlySummary{AccountID: k.AccountID, Year: k.Year(), TotalIncome: t.Income, TotalExpense: t.Expense}
		},
		find: func(q *gorm.DB, accountID string, from, to time.Time) ([]Row, error) {
			return findRows(q.Where("account_id = ? AND year BETWEEN ? AND ?", accountID, from.Year(), to.Year()).Order("year"),
				func(r models.YearlySummary) Row {
					return NewRow(KeyFor(Yearly, r.AccountID, firstOfMonth(r.Year, 1), "", ""), Totals{Income: r.TotalIncome, Expense: r.TotalExpense}, r.UpdatedAt)
				})
		},
	},
	CategoryDaily: {
		table:        "category_daily_summaries",
		keyColumns:   []string{"account_id", "date", "category_id", "type"},
		totalColumns: categoryTotals,
		record: func(k PeriodKey, t Totals) any {
			return &models.CategoryDailySummary{AccountID: k.AccountID, Date: k.PeriodStart, CategoryID: k.CategoryID, Type: k.Type, TotalAmount: t.Amount}
		},
		find: func(q *gorm.DB, accountID string, from, to time.Time) ([]Row, error) {
			return findRows(q.Where("account_id = ? AND date BETWEEN ? AND ?", accountID, from, to).Order("date, category_id, type"),
				func(r models.CategoryDailySummary) Row {
					return NewRow(KeyFor(CategoryDaily, r.AccountID, r.Date, r.CategoryID, r.Type), Totals{Amount: r.TotalAmount}, r.UpdatedAt)
				})
		},
	},
	CategoryMonthly: {
		table:        "category_monthly_summaries",
		keyColumns:   []string{"account_id", "year", "month", "category_id", "type"},
		totalColumns: categoryTotals,
		record: func(k PeriodKey, t Totals) any {
			return &models.CategoryMonthlySummary{AccountID: k.AccountID, Year: k.Year(), Month: k.Month(), CategoryID: k.CategoryID, Type: k.Type, TotalAmount: t.Amount}
		},
		find: func(q *gorm.DB, accountID string, from, to time.Time) ([]Row, error) {
			return findRows(q.Where("account_id = ? AND (year * 100 + month) BETWEEN ? AND ?", accountID, yearMonth(from), yearMonth(to)).Order("year, month, category_id, type"),
				func(r models.CategoryMonthlySummary) Row {
					return NewRow(KeyFor(CategoryMonthly, r.AccountID, firstOfMonth(r.Year, r.Month), r.CategoryID, r.Type), Totals{Amount: r.TotalAmount}, r.UpdatedAt)
				})
		},
	},
}

// Table returns the table backing granularity g.
func Table(g Granularity) string { return shapes[g].table }

// Increment adds d to its row in a single INSERT ... ON CONFLICT DO UPDATE
// statement. A missing row is created holding exactly d; an existing row is
// incremented by the database, so concurrent writers to the same key never
// lose each other's updates.
func Increment(tx *gorm.DB, d Delta) error {
	s, ok := shapes[d.Key.Granularity]
	if !ok {
		return fmt.Errorf("unknown granularity %q", d.Key.Granularity)
	}

	updates := make([]clause.Assignment, 0, len(s.totalColumns)+1)
	for _, col := range s.totalColumns {
		updates = append(updates, clause.Assignment{
			Column: clause.Column{Name: col},
			Value:  gorm.Expr(fmt.Sprintf("%s.%s + excluded.%s", s.table, col, col)),
		})
	}
	updates = append(updates, clause.Assignment{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")})

	return tx.Clauses(clause.OnConflict{
		Columns:   keyColumns(s),
		DoUpdates: clause.Set(updates),
	}).Create(s.record(d.Key, d.Totals)).Error
}

// Overwrite sets the row for key to exactly totals, creating it if absent.
// Only the repair path uses this.
func Overwrite(tx *gorm.DB, key PeriodKey, totals Totals) error {
	s, ok := shapes[key.Granularity]
	if !ok {
		return fmt.Errorf("unknown granularity %q", key.Granularity)
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   keyColumns(s),
		DoUpdates: clause.AssignmentColumns(append(append([]string{}, s.totalColumns...), "updated_at")),
	}).Create(s.record(key, totals)).Error
}

// Find loads the stored rows of granularity g for accountID whose period
// starts within [from, to].
func Find(q *gorm.DB, g Granularity, accountID string, from, to time.Time) ([]Row, error) {
	s, ok := shapes[g]
	if !ok {
		return nil, fmt.Errorf("unknown granularity %q", g)
	}
	return s.find(q.Table(s.table), accountID, from, to)
}

func keyColumns(s shape) []clause.Column {
	cols := make([]clause.Column, len(s.keyColumns))
	for i, name := range s.keyColumns {
		cols[i] = clause.Column{Name: name}
	}
	return cols
}

func findRows[T any](q *gorm.DB, toRow func(T) Row) ([]Row, error) {
	var records []T
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, toRow(r))
	}
	return rows, nil
}

func yearMonth(t time.Time) int { return t.Year()*100 + int(t.Month()) }

func firstOfMonth(year, month int) time.Time {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}
