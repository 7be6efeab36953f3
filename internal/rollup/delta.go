package rollup

import (
	"sort"
	"time"

	"tallybook/internal/models"
	"tallybook/internal/money"
)

// Totals are the aggregate values held by one summary row. Income/Expense
// are used by the plain time granularities, Amount (signed) by the category
// scoped ones; the unused side stays zero.
type Totals struct {
	Income  money.Amount `json:"total_income"`
	Expense money.Amount `json:"total_expense"`
	Amount  money.Amount `json:"total_amount"`
}

// Add returns t + o field by field.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		Income:  t.Income.Add(o.Income),
		Expense: t.Expense.Add(o.Expense),
		Amount:  t.Amount.Add(o.Amount),
	}
}

// Sub returns t - o field by field.
func (t Totals) Sub(o Totals) Totals {
	return Totals{
		Income:  t.Income.Sub(o.Income),
		Expense: t.Expense.Sub(o.Expense),
		Amount:  t.Amount.Sub(o.Amount),
	}
}

// Equal reports whether all fields match.
func (t Totals) Equal(o Totals) bool {
	return t.Income.Equal(o.Income) && t.Expense.Equal(o.Expense) && t.Amount.Equal(o.Amount)
}

// IsZero reports whether all fields are zero.
func (t Totals) IsZero() bool {
	return t.Income.IsZero() && t.Expense.IsZero() && t.Amount.IsZero()
}

// Delta is one signed change to apply to the row identified by Key.
type Delta struct {
	Key    PeriodKey
	Totals Totals
}

// Change describes the effect of one transaction on the rollups: Amount is
// added (positive) or removed (negative) for the transaction's type.
type Change struct {
	AccountID  string
	Date       time.Time
	Type       models.TransactionType
	CategoryID *string
	Amount     money.Amount
}

// Plan expands a change into one delta per affected summary row: the four
// time granularities always, plus the two category granularities when the
// transaction is categorised.
func Plan(c Change) []Delta {
	deltas := make([]Delta, 0, len(All))
	for _, g := range All {
		if d, ok := deltaFor(g, c); ok {
			deltas = append(deltas, d)
		}
	}
	return deltas
}

// PlanFor is Plan restricted to a single granularity. ok is false when g
// does not apply to c (an uncategorised change on a category granularity).
func PlanFor(g Granularity, c Change) (Delta, bool) {
	return deltaFor(g, c)
}

func deltaFor(g Granularity, c Change) (Delta, bool) {
	categoryID := ""
	if c.CategoryID != nil {
		categoryID = *c.CategoryID
	}
	if g.CategoryScoped() && categoryID == "" {
		return Delta{}, false
	}

	var totals Totals
	if g.CategoryScoped() {
		totals.Amount = c.Type.Signed(c.Amount)
	} else if c.Type == models.TransactionTypeExpense {
		totals.Expense = c.Amount
	} else {
		totals.Income = c.Amount
	}
	return Delta{
		Key:    KeyFor(g, c.AccountID, c.Date, categoryID, c.Type),
		Totals: totals,
	}, true
}

// Net plans every change and folds the deltas that land on the same row,
// so a row touched by both sides of an edit is written once with the
// difference. Rows whose net delta is zero are dropped. The result is
// ordered by account, granularity, then key, giving concurrent writers the
// same row lock order.
func Net(changes ...Change) []Delta {
	merged := make(map[string]Delta)
	for _, c := range changes {
		for _, d := range Plan(c) {
			id := d.Key.AccountID + "|" + d.Key.String()
			if cur, ok := merged[id]; ok {
				cur.Totals = cur.Totals.Add(d.Totals)
				merged[id] = cur
				continue
			}
			merged[id] = d
		}
	}

	out := make([]Delta, 0, len(merged))
	for _, d := range merged {
		if !d.Totals.IsZero() {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.AccountID != b.AccountID {
			return a.AccountID < b.AccountID
		}
		if a.Granularity != b.Granularity {
			return a.Granularity < b.Granularity
		}
		return a.Less(b)
	})
	return out
}
