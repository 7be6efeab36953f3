package services

import (
	"errors"
	"sync"
	"testing"

	"gorm.io/gorm"

	"tallybook/internal/models"
	"tallybook/internal/rollup"
	"tallybook/internal/testutil"
)

func TestCreateTransaction(t *testing.T) {
	t.Run("valid_expense", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccountWithBalance(t, s.db, s.actor.ID, "500.00")

		tr := s.create(t, expenseInput(account.ID, "42.50", "2025-01-15"))

		if tr.ID == "" {
			t.Fatal("expected transaction ID")
		}
		if tr.Status != models.TransactionStatusCleared {
			t.Errorf("expected default status cleared, got %s", tr.Status)
		}
		if tr.Currency != "USD" {
			t.Errorf("expected currency inherited from account, got %s", tr.Currency)
		}
		if tr.LedgerEntryID == nil {
			t.Fatal("expected ledger entry to be linked")
		}
		if got := s.balance(t, account.ID); got != "457.50" {
			t.Errorf("expected balance 457.50, got %s", got)
		}

		entry, err := s.ledger.GetEntryByID(*tr.LedgerEntryID)
		testutil.AssertNoError(t, err)
		if entry.EntryType != models.LedgerEntryExpense {
			t.Errorf("expected expense entry, got %s", entry.EntryType)
		}
		if entry.Sequence != 1 {
			t.Errorf("expected sequence 1, got %d", entry.Sequence)
		}
		testutil.AssertAmount(t, entry.BalanceAfter, "457.50")
		if len(entry.TransactionSnapshot) == 0 || len(entry.CreatorSnapshot) == 0 {
			t.Error("expected ledger entry to carry snapshots")
		}

		if n := s.count(t, &models.AuditLog{}, "transaction_id = ? AND action = ?", tr.ID, models.AuditActionCreate); n != 1 {
			t.Errorf("expected 1 create audit record, got %d", n)
		}
		testutil.AssertAmount(t, s.summary(t, account.ID, rollup.Monthly, "2025-01-15").Expense, "42.50")
		testutil.AssertAmount(t, s.summary(t, account.ID, rollup.Daily, "2025-01-15").Expense, "42.50")
		s.assertClean(t, account.ID, "2025-01-01", "2025-12-31")
	})

	t.Run("categorised_income_touches_category_rollups", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccount(t, s.db, s.actor.ID)
		salary := testutil.CreateTestCategory(t, s.db, s.actor.ID, models.CategoryTypeIncome)

		in := incomeInput(account.ID, "1000.00", "2025-03-31")
		in.CategoryID = &salary.ID
		s.create(t, in)

		rows, err := s.rollups.ListSummaries(account.ID, rollup.CategoryMonthly, day("2025-03-01"), day("2025-03-31"))
		testutil.AssertNoError(t, err)
		if len(rows) != 1 {
			t.Fatalf("expected 1 category row, got %d", len(rows))
		}
		if rows[0].CategoryID != salary.ID || rows[0].Type != models.TransactionTypeIncome {
			t.Errorf("unexpected category row key: %+v", rows[0])
		}
		testutil.AssertAmount(t, rows[0].TotalAmount, "1000.00")
		if n := s.count(t, &models.CategoryDailySummary{}, "account_id = ?", account.ID); n != 1 {
			t.Errorf("expected 1 category daily row, got %d", n)
		}
	})

	t.Run("pending_is_posted", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccount(t, s.db, s.actor.ID)

		in := incomeInput(account.ID, "10.00", "2025-01-15")
		in.Status = models.TransactionStatusPending
		tr := s.create(t, in)

		if tr.Status != models.TransactionStatusPending {
			t.Errorf("expected pending, got %s", tr.Status)
		}
		if got := s.balance(t, account.ID); got != "10.00" {
			t.Errorf("expected balance 10.00, got %s", got)
		}
	})

	t.Run("invalid_amounts", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccount(t, s.db, s.actor.ID)

		for _, amount := range []string{"0", "0.00", "-5.00", "1.234", "abc", "1e3", ""} {
			_, err := s.transactions.CreateTransaction(s.actor.ID, expenseInput(account.ID, amount, "2025-01-15"))
			testutil.AssertAppError(t, err, "INVALID_AMOUNT")
		}
		if n := s.count(t, &models.Transaction{}, "account_id = ?", account.ID); n != 0 {
			t.Errorf("expected no transactions, got %d", n)
		}
	})

	t.Run("invalid_type", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccount(t, s.db, s.actor.ID)

		in := expenseInput(account.ID, "1.00", "2025-01-15")
		in.Type = "transfer"
		_, err := s.transactions.CreateTransaction(s.actor.ID, in)
		testutil.AssertAppError(t, err, "INVALID_TRANSACTION_TYPE")
	})

	t.Run("terminal_status_rejected", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccount(t, s.db, s.actor.ID)

		in := expenseInput(account.ID, "1.00", "2025-01-15")
		in.Status = models.TransactionStatusVoid
		_, err := s.transactions.CreateTransaction(s.actor.ID, in)
		testutil.AssertAppError(t, err, "INVALID_STATUS")
	})

	t.Run("account_not_found", func(t *testing.T) {
		s := newStack(t)

		_, err := s.transactions.CreateTransaction(s.actor.ID, expenseInput("0192d5a0-0000-7000-8000-000000000000", "1.00", "2025-01-15"))
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
	})

	t.Run("category_not_found", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccount(t, s.db, s.actor.ID)

		in := expenseInput(account.ID, "1.00", "2025-01-15")
		in.CategoryID = strPtr("0192d5a0-0000-7000-8000-000000000000")
		_, err := s.transactions.CreateTransaction(s.actor.ID, in)
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})

	t.Run("currency_mismatch", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccount(t, s.db, s.actor.ID)

		in := expenseInput(account.ID, "1.00", "2025-01-15")
		in.Currency = "EUR"
		_, err := s.transactions.CreateTransaction(s.actor.ID, in)
		testutil.AssertAppError(t, err, "INVALID_CURRENCY")

		in.Currency = "XYZ"
		_, err = s.transactions.CreateTransaction(s.actor.ID, in)
		testutil.AssertAppError(t, err, "INVALID_CURRENCY")
	})

	t.Run("recurrence_rules", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccount(t, s.db, s.actor.ID)

		in := expenseInput(account.ID, "9.99", "2025-01-15")
		in.IsRecurring = true
		_, err := s.transactions.CreateTransaction(s.actor.ID, in)
		testutil.AssertAppError(t, err, "INVALID_INPUT")

		in.RecurrenceRule = models.RecurrenceMonthly
		tr := s.create(t, in)
		if !tr.IsRecurring || tr.RecurrenceRule != models.RecurrenceMonthly {
			t.Errorf("expected monthly recurring transaction, got %+v", tr)
		}
	})

	t.Run("duplicate_external_ref", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccount(t, s.db, s.actor.ID)

		in := expenseInput(account.ID, "20.00", "2025-01-15")
		in.ExternalRefID = strPtr("bank-feed-123")
		s.create(t, in)

		_, err := s.transactions.CreateTransaction(s.actor.ID, in)
		testutil.AssertAppError(t, err, "DUPLICATE_EXTERNAL_REF")

		if n := s.count(t, &models.LedgerEntry{}, "account_id = ?", account.ID); n != 1 {
			t.Errorf("expected the duplicate to leave no ledger entry, got %d entries", n)
		}
		if got := s.balance(t, account.ID); got != "-20.00" {
			t.Errorf("expected balance -20.00, got %s", got)
		}
	})

	t.Run("rejects_bad_actor", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccount(t, s.db, s.actor.ID)

		for _, actor := range []string{"", "not-a-uuid", "0192d5a0-0000-7000-8000-00000000beef"} {
			_, err := s.transactions.CreateTransaction(actor, expenseInput(account.ID, "1.00", "2025-01-15"))
			testutil.AssertAppError(t, err, "UNAUTHORIZED")
		}
		if n := s.count(t, &models.Transaction{}, "account_id = ?", account.ID); n != 0 {
			t.Errorf("expected no transaction rows, got %d", n)
		}
		if n := s.count(t, &models.LedgerEntry{}, "account_id = ?", account.ID); n != 0 {
			t.Errorf("expected no ledger entries, got %d", n)
		}
	})
}

func TestUpdateTransaction(t *testing.T) {
	t.Run("amount_change_reverses_and_corrects", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccountWithBalance(t, s.db, s.actor.ID, "100.00")
		tr := s.create(t, expenseInput(account.ID, "30.00", "2025-02-10"))
		originalEntry := *tr.LedgerEntryID

		updated, err := s.transactions.UpdateTransaction(s.actor.ID, tr.ID, UpdateTransactionInput{Amount: strPtr("45.00"), Reason: "receipt corrected"})
		testutil.AssertNoError(t, err)

		testutil.AssertAmount(t, updated.Amount, "45.00")
		if updated.LedgerEntryID == nil || *updated.LedgerEntryID == originalEntry {
			t.Error("expected the transaction to point at the corrected entry")
		}
		if got := s.balance(t, account.ID); got != "55.00" {
			t.Errorf("expected balance 55.00, got %s", got)
		}

		entries, err := s.ledger.GetTransactionEntries(tr.ID)
		testutil.AssertNoError(t, err)
		if len(entries) != 3 {
			t.Fatalf("expected 3 ledger entries, got %d", len(entries))
		}
		if entries[1].EntryType != models.LedgerEntryReversalExpense || entries[1].ReversesEntryID == nil || *entries[1].ReversesEntryID != originalEntry {
			t.Errorf("expected second entry to reverse the original, got %+v", entries[1])
		}

		var record models.AuditLog
		if err := s.db.Where("transaction_id = ? AND action = ?", tr.ID, models.AuditActionUpdate).First(&record).Error; err != nil {
			t.Fatalf("expected update audit record: %v", err)
		}
		if record.Reason != "receipt corrected" || len(record.PayloadBefore) == 0 || len(record.PayloadAfter) == 0 {
			t.Errorf("unexpected audit record: %+v", record)
		}

		testutil.AssertAmount(t, s.summary(t, account.ID, rollup.Monthly, "2025-02-10").Expense, "45.00")
		s.assertClean(t, account.ID, "2025-01-01", "2025-12-31")
	})

	t.Run("date_move_across_months", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccount(t, s.db, s.actor.ID)
		tr := s.create(t, incomeInput(account.ID, "80.00", "2025-01-31"))

		newDate := day("2025-02-01")
		_, err := s.transactions.UpdateTransaction(s.actor.ID, tr.ID, UpdateTransactionInput{TransactionDate: &newDate})
		testutil.AssertNoError(t, err)

		testutil.AssertAmount(t, s.summary(t, account.ID, rollup.Monthly, "2025-01-31").Income, "0.00")
		testutil.AssertAmount(t, s.summary(t, account.ID, rollup.Monthly, "2025-02-01").Income, "80.00")
		testutil.AssertAmount(t, s.summary(t, account.ID, rollup.Yearly, "2025-06-01").Income, "80.00")

		// A date-only move leaves the balance and the ledger alone.
		if n := s.count(t, &models.LedgerEntry{}, "transaction_id = ?", tr.ID); n != 1 {
			t.Errorf("expected 1 ledger entry, got %d", n)
		}
		s.assertClean(t, account.ID, "2025-01-01", "2025-12-31")
	})

	t.Run("category_change_and_clear", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccount(t, s.db, s.actor.ID)
		food := testutil.CreateTestCategory(t, s.db, s.actor.ID, models.CategoryTypeExpense)
		rent := testutil.CreateTestCategory(t, s.db, s.actor.ID, models.CategoryTypeExpense)

		in := expenseInput(account.ID, "12.00", "2025-04-04")
		in.CategoryID = &food.ID
		tr := s.create(t, in)

		_, err := s.transactions.UpdateTransaction(s.actor.ID, tr.ID, UpdateTransactionInput{CategoryID: &rent.ID})
		testutil.AssertNoError(t, err)
		s.assertClean(t, account.ID, "2025-01-01", "2025-12-31")

		_, err = s.transactions.UpdateTransaction(s.actor.ID, tr.ID, UpdateTransactionInput{ClearCategory: true})
		testutil.AssertNoError(t, err)
		s.assertClean(t, account.ID, "2025-01-01", "2025-12-31")

		rows, err := s.rollups.ListSummaries(account.ID, rollup.CategoryMonthly, day("2025-04-01"), day("2025-04-30"))
		testutil.AssertNoError(t, err)
		for _, r := range rows {
			if !r.TotalAmount.IsZero() {
				t.Errorf("expected category rows to net to zero, got %s for %s", r.TotalAmount, r.CategoryID)
			}
		}
	})

	t.Run("account_move", func(t *testing.T) {
		s := newStack(t)
		from := testutil.CreateTestAccount(t, s.db, s.actor.ID)
		to := testutil.CreateTestAccount(t, s.db, s.actor.ID)
		tr := s.create(t, incomeInput(from.ID, "25.00", "2025-05-05"))

		_, err := s.transactions.UpdateTransaction(s.actor.ID, tr.ID, UpdateTransactionInput{AccountID: &to.ID})
		testutil.AssertNoError(t, err)

		if got := s.balance(t, from.ID); got != "0.00" {
			t.Errorf("expected source balance 0.00, got %s", got)
		}
		if got := s.balance(t, to.ID); got != "25.00" {
			t.Errorf("expected target balance 25.00, got %s", got)
		}
		s.assertClean(t, from.ID, "2025-01-01", "2025-12-31")
		s.assertClean(t, to.ID, "2025-01-01", "2025-12-31")
	})

	t.Run("pending_to_cleared_is_a_status_change", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccount(t, s.db, s.actor.ID)
		in := expenseInput(account.ID, "5.00", "2025-01-15")
		in.Status = models.TransactionStatusPending
		tr := s.create(t, in)

		cleared := models.TransactionStatusCleared
		updated, err := s.transactions.UpdateTransaction(s.actor.ID, tr.ID, UpdateTransactionInput{Status: &cleared})
		testutil.AssertNoError(t, err)

		if updated.Status != models.TransactionStatusCleared {
			t.Errorf("expected cleared, got %s", updated.Status)
		}
		if n := s.count(t, &models.LedgerEntry{}, "transaction_id = ?", tr.ID); n != 1 {
			t.Errorf("expected no new ledger entries, got %d", n)
		}
		if n := s.count(t, &models.AuditLog{}, "transaction_id = ? AND action = ?", tr.ID, models.AuditActionStatusChange); n != 1 {
			t.Errorf("expected 1 status_change audit record, got %d", n)
		}
	})

	t.Run("cleared_to_pending_rejected", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccount(t, s.db, s.actor.ID)
		tr := s.create(t, expenseInput(account.ID, "5.00", "2025-01-15"))

		pending := models.TransactionStatusPending
		_, err := s.transactions.UpdateTransaction(s.actor.ID, tr.ID, UpdateTransactionInput{Status: &pending})
		testutil.AssertAppError(t, err, "INVALID_STATUS")
	})

	t.Run("void_via_update", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccountWithBalance(t, s.db, s.actor.ID, "10.00")
		tr := s.create(t, expenseInput(account.ID, "4.00", "2025-01-15"))

		void := models.TransactionStatusVoid
		updated, err := s.transactions.UpdateTransaction(s.actor.ID, tr.ID, UpdateTransactionInput{Status: &void, Reason: "duplicate"})
		testutil.AssertNoError(t, err)

		if updated.LedgerEntryID != nil {
			t.Error("expected voided transaction to have no effective ledger entry")
		}
		if got := s.balance(t, account.ID); got != "10.00" {
			t.Errorf("expected balance restored to 10.00, got %s", got)
		}
		if n := s.count(t, &models.AuditLog{}, "transaction_id = ? AND action = ?", tr.ID, models.AuditActionVoid); n != 1 {
			t.Errorf("expected 1 void audit record, got %d", n)
		}
		s.assertClean(t, account.ID, "2025-01-01", "2025-12-31")

		_, err = s.transactions.UpdateTransaction(s.actor.ID, tr.ID, UpdateTransactionInput{Description: strPtr("again")})
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})

	t.Run("failed_is_terminal", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccount(t, s.db, s.actor.ID)
		tr := s.create(t, incomeInput(account.ID, "4.00", "2025-01-15"))

		failed := models.TransactionStatusFailed
		_, err := s.transactions.UpdateTransaction(s.actor.ID, tr.ID, UpdateTransactionInput{Status: &failed})
		testutil.AssertNoError(t, err)
		if got := s.balance(t, account.ID); got != "0.00" {
			t.Errorf("expected balance 0.00, got %s", got)
		}

		_, err = s.transactions.UpdateTransaction(s.actor.ID, tr.ID, UpdateTransactionInput{Amount: strPtr("5.00")})
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_EDITABLE")
	})

	t.Run("void_with_amount_change_rejected", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccount(t, s.db, s.actor.ID)
		tr := s.create(t, incomeInput(account.ID, "4.00", "2025-01-15"))

		void := models.TransactionStatusVoid
		_, err := s.transactions.UpdateTransaction(s.actor.ID, tr.ID, UpdateTransactionInput{Status: &void, Amount: strPtr("6.00")})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
		if got := s.balance(t, account.ID); got != "4.00" {
			t.Errorf("expected rejected update to change nothing, got balance %s", got)
		}
	})

	t.Run("noop_writes_nothing", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccount(t, s.db, s.actor.ID)
		tr := s.create(t, incomeInput(account.ID, "4.00", "2025-01-15"))

		_, err := s.transactions.UpdateTransaction(s.actor.ID, tr.ID, UpdateTransactionInput{Amount: strPtr("4.00")})
		testutil.AssertNoError(t, err)
		if n := s.count(t, &models.AuditLog{}, "transaction_id = ?", tr.ID); n != 1 {
			t.Errorf("expected only the create audit record, got %d", n)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		s := newStack(t)
		_, err := s.transactions.UpdateTransaction(s.actor.ID, "0192d5a0-0000-7000-8000-000000000000", UpdateTransactionInput{Amount: strPtr("1.00")})
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})

	t.Run("rejects_bad_actor", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccount(t, s.db, s.actor.ID)
		tr := s.create(t, incomeInput(account.ID, "5.00", "2025-01-15"))

		_, err := s.transactions.UpdateTransaction("not-a-uuid", tr.ID, UpdateTransactionInput{Amount: strPtr("6.00")})
		testutil.AssertAppError(t, err, "UNAUTHORIZED")
		err = s.transactions.DeleteTransaction("0192d5a0-0000-7000-8000-00000000beef", tr.ID, "")
		testutil.AssertAppError(t, err, "UNAUTHORIZED")

		if got := s.balance(t, account.ID); got != "5.00" {
			t.Errorf("expected balance untouched, got %s", got)
		}
		if n := s.count(t, &models.AuditLog{}, "transaction_id = ?", tr.ID); n != 1 {
			t.Errorf("expected only the create audit record, got %d", n)
		}
	})
}

func TestIncomeCorrectionHistory(t *testing.T) {
	s := newStack(t)
	account := testutil.CreateTestAccount(t, s.db, s.actor.ID)
	const date = "2025-03-14"

	assertIncome := func(step, balance, income string) {
		t.Helper()
		if got := s.balance(t, account.ID); got != balance {
			t.Errorf("%s: expected balance %s, got %s", step, balance, got)
		}
		testutil.AssertAmount(t, s.summary(t, account.ID, rollup.Daily, date).Income, income)
		testutil.AssertAmount(t, s.summary(t, account.ID, rollup.Monthly, date).Income, income)
		s.assertClean(t, account.ID, "2025-01-01", "2025-12-31")
	}

	tr := s.create(t, incomeInput(account.ID, "100.00", date))
	assertIncome("create", "100.00", "100.00")

	// The same correction applied twice lands in the same state.
	for i := 0; i < 2; i++ {
		_, err := s.transactions.UpdateTransaction(s.actor.ID, tr.ID, UpdateTransactionInput{Amount: strPtr("60.00")})
		testutil.AssertNoError(t, err)
		assertIncome("update", "60.00", "60.00")
	}
	if n := s.count(t, &models.LedgerEntry{}, "transaction_id = ?", tr.ID); n != 3 {
		t.Errorf("expected 3 ledger entries after the correction, got %d", n)
	}

	testutil.AssertNoError(t, s.transactions.DeleteTransaction(s.actor.ID, tr.ID, "duplicate"))
	assertIncome("delete", "0.00", "0.00")

	if n := s.count(t, &models.LedgerEntry{}, "transaction_id = ?", tr.ID); n != 4 {
		t.Errorf("expected 4 ledger entries, got %d", n)
	}
	if n := s.count(t, &models.AuditLog{}, "transaction_id = ?", tr.ID); n != 3 {
		t.Errorf("expected 3 audit records, got %d", n)
	}
}

func TestDeleteTransaction(t *testing.T) {
	t.Run("create_update_delete_history", func(t *testing.T) {
		s := newStack(t)
		account := testutil.CreateTestAccount(t, s.db, s.actor.ID)

		tr := s.create(t, expenseInput(account.ID, "100.00", "2025-01-15"))
		_, err := s.transactions.UpdateTransaction(s.actor.ID, tr.ID, UpdateTransactionInput{Amount: strPtr("60.00")})
		testutil.AssertNoError(t, err)
		testutil.AssertNoError(t, s.transactions.DeleteTransaction(s.actor.ID, tr.ID, "entered twice"))

		entries, err := s.ledger.GetTransactionEntries(tr.ID)
		testutil.AssertNoError(t, err)
		wantTypes := []models.LedgerEntryType{
			models.LedgerEntryExpense,
			models.LedgerEntryReversalExpense,
			models.LedgerEntryExpense,
			models.LedgerEntryReversalExpense,
		}
		if len(entries) != len(wantTypes) {
			t.Fatalf("expected %d ledger entries, got %d", len(wantTypes), len(entries))
		}
		for i, want := range wantTypes {
			if entries[i].EntryType != want {
				t.Errorf("entry %d: expected %s, got %s", i, want, entries[i].EntryType)
			}
		}

		var actions []models.AuditAction
		if err := s.db.Model(&models.AuditLog{}).Where("transaction_id = ?", tr.ID).
			Order("created_at, id").Pluck("action", &actions).Error; err != nil {
			t.Fatalf("load audit actions: %v", err)
		}
		want := []models.AuditAction{models.AuditActionCreate, models.AuditActionUpdate, models.AuditActionDelete}
		if len(actions) != len(want) {
			t.Fatalf("expected audit actions %v, got %v", want, actions)
		}
		for i := range want {
			if actions[i] != want[i] {
				t.Errorf("audit %d: expected %s, got %s", i, want[i], actions[i])
			}
		}

		if got := s.balance(t, account.ID); got != "0.00" {
			t.Errorf("expected balance back to 0.00, got %s", got)
		}
		totals := s.summary(t, account.ID, rollup.Monthly, "2025-01-15")
		if !totals.IsZero() {
			t.Errorf("expected monthly totals to be zero, got %+v", totals)
		}
		s.assertClean(t, account.ID, "2025-01-01", "2025-12-31")

		_, err = s.transactions.GetTransactionByID(tr.ID)
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
		err = s.transactions.DeleteTransaction(s.actor.ID, tr.ID, "")
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")

		var row models.Transaction
		if err := s.db.First(&row, "id = ?", tr.ID).Error; err != nil {
			t.Fatalf("expected the voided row to be kept: %v", err)
		}
		if row.Status != models.TransactionStatusVoid {
			t.Errorf("expected status void, got %s", row.Status)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		s := newStack(t)
		err := s.transactions.DeleteTransaction(s.actor.ID, "0192d5a0-0000-7000-8000-000000000000", "")
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})
}

// failingRollups fails every write, standing in for a rollup store that
// goes away mid-mutation.
type failingRollups struct {
	RollupServicer
}

func (failingRollups) Apply(*gorm.DB, rollup.Change) error {
	return errors.New("rollup store unavailable")
}

func (failingRollups) ApplyDeltas(*gorm.DB, []rollup.Delta) error {
	return errors.New("rollup store unavailable")
}

func TestMutationIsAllOrNothing(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		s := newStackWithRollups(t, db, failingRollups{NewRollupService(db)})
		account := testutil.CreateTestAccountWithBalance(t, db, s.actor.ID, "100.00")

		_, err := s.transactions.CreateTransaction(s.actor.ID, expenseInput(account.ID, "40.00", "2025-01-15"))
		testutil.AssertAppError(t, err, "INTERNAL_ERROR")

		if n := s.count(t, &models.Transaction{}, "account_id = ?", account.ID); n != 0 {
			t.Errorf("expected no transaction row, got %d", n)
		}
		if n := s.count(t, &models.LedgerEntry{}, "account_id = ?", account.ID); n != 0 {
			t.Errorf("expected no ledger entries, got %d", n)
		}
		if n := s.count(t, &models.AuditLog{}, "actor_id = ?", s.actor.ID); n != 0 {
			t.Errorf("expected no audit records, got %d", n)
		}
		if got := s.balance(t, account.ID); got != "100.00" {
			t.Errorf("expected balance untouched, got %s", got)
		}
	})

	t.Run("update", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		healthy := newStackWithRollups(t, db, NewRollupService(db))
		account := testutil.CreateTestAccount(t, db, healthy.actor.ID)
		tr := healthy.create(t, incomeInput(account.ID, "40.00", "2025-01-15"))

		broken := newStackWithRollups(t, db, failingRollups{NewRollupService(db)})
		_, err := broken.transactions.UpdateTransaction(broken.actor.ID, tr.ID, UpdateTransactionInput{Amount: strPtr("50.00")})
		testutil.AssertAppError(t, err, "INTERNAL_ERROR")

		if n := healthy.count(t, &models.LedgerEntry{}, "transaction_id = ?", tr.ID); n != 1 {
			t.Errorf("expected the original entry only, got %d", n)
		}
		if got := healthy.balance(t, account.ID); got != "40.00" {
			t.Errorf("expected balance untouched, got %s", got)
		}
		healthy.assertClean(t, account.ID, "2025-01-01", "2025-12-31")
	})
}

func TestConcurrentCreatesKeepBalanceExact(t *testing.T) {
	s := newStack(t)
	account := testutil.CreateTestAccount(t, s.db, s.actor.ID)

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.transactions.CreateTransaction(s.actor.ID, incomeInput(account.ID, "5.00", "2025-01-15"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		testutil.AssertNoError(t, err)
	}

	if got := s.balance(t, account.ID); got != "100.00" {
		t.Errorf("expected balance 100.00, got %s", got)
	}
	var sequences []int64
	if err := s.db.Model(&models.LedgerEntry{}).Where("account_id = ?", account.ID).
		Order("sequence").Pluck("sequence", &sequences).Error; err != nil {
		t.Fatalf("load sequences: %v", err)
	}
	for i, seq := range sequences {
		if seq != int64(i+1) {
			t.Fatalf("expected gapless sequences, got %v", sequences)
		}
	}
	testutil.AssertAmount(t, s.summary(t, account.ID, rollup.Daily, "2025-01-15").Income, "100.00")
	s.assertClean(t, account.ID, "2025-01-01", "2025-12-31")
}

func TestGetTransactions(t *testing.T) {
	s := newStack(t)
	account := testutil.CreateTestAccount(t, s.db, s.actor.ID)
	s.create(t, incomeInput(account.ID, "1.00", "2025-01-01"))
	s.create(t, expenseInput(account.ID, "2.00", "2025-01-02"))
	gone := s.create(t, expenseInput(account.ID, "3.00", "2025-01-03"))
	testutil.AssertNoError(t, s.transactions.DeleteTransaction(s.actor.ID, gone.ID, ""))

	result, err := s.transactions.GetTransactions(TransactionFilter{AccountID: account.ID}, defaultPage())
	testutil.AssertNoError(t, err)
	if result.TotalItems != 2 {
		t.Errorf("expected 2 live transactions, got %d", result.TotalItems)
	}

	expense := models.TransactionTypeExpense
	result, err = s.transactions.GetTransactions(TransactionFilter{AccountID: account.ID, Type: &expense}, defaultPage())
	testutil.AssertNoError(t, err)
	if result.TotalItems != 1 {
		t.Errorf("expected 1 live expense, got %d", result.TotalItems)
	}

	void := models.TransactionStatusVoid
	result, err = s.transactions.GetTransactions(TransactionFilter{AccountID: account.ID, Status: &void}, defaultPage())
	testutil.AssertNoError(t, err)
	if result.TotalItems != 1 || result.Data[0].ID != gone.ID {
		t.Errorf("expected the voided transaction, got %+v", result.Data)
	}
}
