package services

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "tallybook/internal/errors"
	"tallybook/internal/logger"
	"tallybook/internal/models"
	"tallybook/internal/money"
	"tallybook/internal/pagination"
	"tallybook/internal/rollup"
	"tallybook/internal/validator"
)

// transactionService is the single entry point for transaction mutations.
// Each mutation writes the transaction row, its ledger entries, the rollup
// deltas and the audit record in one database transaction.
type transactionService struct {
	db              *gorm.DB
	accountService  AccountServicer
	categoryService CategoryServicer
	ledgerService   LedgerServicer
	rollupService   RollupServicer
	auditService    AuditServicer
	txOptions       *sql.TxOptions
}

// NewTransactionService creates a new TransactionServicer. txOptions sets
// the isolation level of every mutation; nil uses the driver default.
func NewTransactionService(
	db *gorm.DB,
	accountService AccountServicer,
	categoryService CategoryServicer,
	ledgerService LedgerServicer,
	rollupService RollupServicer,
	auditService AuditServicer,
	txOptions *sql.TxOptions,
) TransactionServicer {
	return &transactionService{
		db:              db,
		accountService:  accountService,
		categoryService: categoryService,
		ledgerService:   ledgerService,
		rollupService:   rollupService,
		auditService:    auditService,
		txOptions:       txOptions,
	}
}

// CreateTransaction records a new transaction and its effects.
func (s *transactionService) CreateTransaction(actorID string, input CreateTransactionInput) (*models.Transaction, error) {
	actorID, actor, err := resolveActor(s.db, actorID)
	if err != nil {
		return nil, err
	}
	if input.AccountID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account ID is required")
	}

	amount, err := money.ParsePositive(input.Amount)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidAmount, err.Error())
	}
	if !input.Type.Valid() {
		return nil, apperrors.ErrInvalidTransactionType
	}

	status := input.Status
	if status == "" {
		status = models.TransactionStatusCleared
	}
	if !status.Posted() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidStatus, "a new transaction must be pending or cleared")
	}

	if err := validateRecurrence(input.IsRecurring, input.RecurrenceRule); err != nil {
		return nil, err
	}

	date := input.TransactionDate
	if date.IsZero() {
		date = time.Now()
	}
	date = models.DateOf(date)

	account, err := s.accountService.GetAccountByID(input.AccountID)
	if err != nil {
		return nil, err
	}
	currency, err := resolveCurrency(input.Currency, account)
	if err != nil {
		return nil, err
	}

	categoryID := normalizeID(input.CategoryID)
	if categoryID != nil {
		if _, err := s.categoryService.GetCategoryByID(*categoryID); err != nil {
			return nil, err
		}
	}
	externalRef := normalizeID(input.ExternalRefID)

	transaction := &models.Transaction{
		AccountID:         account.ID,
		CreatorID:         actorID,
		CategoryID:        categoryID,
		Type:              input.Type,
		Amount:            amount,
		Currency:          currency,
		Description:       input.Description,
		TransactionDate:   date,
		Status:            status,
		ExternalRefID:     externalRef,
		IsRecurring:       input.IsRecurring,
		RecurrenceRule:    input.RecurrenceRule,
		RecurringParentID: normalizeID(input.RecurringParentID),
	}

	err = inTx(s.db, s.txOptions, func(tx *gorm.DB) error {
		if externalRef != nil {
			var count int64
			if err := tx.Model(&models.Transaction{}).Unscoped().
				Where("external_ref_id = ?", *externalRef).
				Count(&count).Error; err != nil {
				return persistenceError(err)
			}
			if count > 0 {
				return apperrors.ErrDuplicateExternalRef
			}
		}

		if err := tx.Create(transaction).Error; err != nil {
			if externalRef != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.Wrap(apperrors.ErrDuplicateExternalRef, err)
			}
			return persistenceError(err)
		}

		entry, err := s.ledgerService.Append(tx, LedgerEntryParams{
			AccountID:           transaction.AccountID,
			TransactionID:       transaction.ID,
			EntryType:           models.EntryTypeFor(transaction.Type),
			Amount:              transaction.Amount,
			Description:         transaction.Description,
			TransactionSnapshot: transaction.Snapshot(),
			CreatorSnapshot:     actor,
		})
		if err != nil {
			return err
		}

		transaction.LedgerEntryID = &entry.ID
		if err := tx.Model(transaction).Update("ledger_entry_id", entry.ID).Error; err != nil {
			return persistenceError(err)
		}

		if err := s.rollupService.Apply(tx, changeOf(transaction, false)); err != nil {
			return err
		}

		_, err = s.auditService.Append(tx, AuditEntry{
			TransactionID: transaction.ID,
			ActorID:       actorID,
			ActorSnapshot: actor,
			Action:        models.AuditActionCreate,
			After:         transaction.Snapshot(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("transaction created",
		"transaction_id", transaction.ID,
		"account_id", transaction.AccountID,
		"actor_id", actorID,
		"type", transaction.Type,
		"amount", transaction.Amount.String(),
	)
	return transaction, nil
}

// UpdateTransaction applies a partial update. A financial change reverses
// the current ledger entry and appends a corrected one; moving into void or
// failed reverses it without replacement.
func (s *transactionService) UpdateTransaction(actorID, transactionID string, input UpdateTransactionInput) (*models.Transaction, error) {
	actorID, actor, err := resolveActor(s.db, actorID)
	if err != nil {
		return nil, err
	}

	var result *models.Transaction
	err = inTx(s.db, s.txOptions, func(tx *gorm.DB) error {
		current, err := lockTransaction(tx, transactionID)
		if err != nil {
			return err
		}

		next := *current
		if err := s.applyPatch(tx, &next, input); err != nil {
			return err
		}

		plan := planUpdate(current, &next)
		if plan.noop {
			result = current
			return nil
		}

		switch {
		case plan.terminate:
			if plan.ledger || plan.rollup {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount, type, date, account and category cannot change together with a void or failure")
			}
			if err := s.reverseEffects(tx, current, "Transaction "+string(next.Status)); err != nil {
				return err
			}
			next.LedgerEntryID = nil

		case plan.ledger:
			if current.LedgerEntryID == nil {
				return apperrors.ErrTransactionNotEditable
			}
			_, corrected, err := s.ledgerService.ReverseAndCorrect(tx, *current.LedgerEntryID, LedgerCorrection{
				AccountID:           next.AccountID,
				EntryType:           models.EntryTypeFor(next.Type),
				Amount:              next.Amount,
				Description:         next.Description,
				TransactionSnapshot: next.Snapshot(),
				CreatorSnapshot:     actor,
			})
			if err != nil {
				return err
			}
			next.LedgerEntryID = &corrected.ID
		}

		if plan.rollup && !plan.terminate {
			deltas := rollup.Net(changeOf(current, true), changeOf(&next, false))
			if err := s.rollupService.ApplyDeltas(tx, deltas); err != nil {
				return err
			}
		}

		if err := tx.Save(&next).Error; err != nil {
			return persistenceError(err)
		}

		if _, err := s.auditService.Append(tx, AuditEntry{
			TransactionID: next.ID,
			ActorID:       actorID,
			ActorSnapshot: actor,
			Action:        plan.action,
			Before:        current.Snapshot(),
			After:         next.Snapshot(),
			Reason:        input.Reason,
		}); err != nil {
			return err
		}

		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("transaction updated",
		"transaction_id", result.ID,
		"actor_id", actorID,
		"status", result.Status,
	)
	return result, nil
}

// DeleteTransaction voids a transaction: the row is kept with status void,
// its ledger effect is reversed and its rollup contribution removed.
func (s *transactionService) DeleteTransaction(actorID, transactionID, reason string) error {
	actorID, actor, err := resolveActor(s.db, actorID)
	if err != nil {
		return err
	}

	err = inTx(s.db, s.txOptions, func(tx *gorm.DB) error {
		current, err := lockTransaction(tx, transactionID)
		if err != nil {
			return err
		}

		description := "Transaction deleted"
		if reason != "" {
			description += ": " + reason
		}
		if err := s.reverseEffects(tx, current, description); err != nil {
			return err
		}

		next := *current
		next.Status = models.TransactionStatusVoid
		next.LedgerEntryID = nil
		if err := tx.Save(&next).Error; err != nil {
			return persistenceError(err)
		}

		_, err = s.auditService.Append(tx, AuditEntry{
			TransactionID: current.ID,
			ActorID:       actorID,
			ActorSnapshot: actor,
			Action:        models.AuditActionDelete,
			Before:        current.Snapshot(),
			After:         next.Snapshot(),
			Reason:        reason,
		})
		return err
	})
	if err != nil {
		return err
	}

	logger.Get().Infow("transaction deleted",
		"transaction_id", transactionID,
		"actor_id", actorID,
		"reason", reason,
	)
	return nil
}

// GetTransactionByID retrieves a live transaction by ID. Voided
// transactions are not found.
func (s *transactionService) GetTransactionByID(transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Where("id = ? AND status <> ?", transactionID, models.TransactionStatusVoid).
		First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// GetTransactions retrieves a paginated, filtered list of transactions.
// Voided transactions are listed only when asked for by status.
func (s *transactionService) GetTransactions(filter TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	if filter.AccountID != "" {
		if _, err := s.accountService.GetAccountByID(filter.AccountID); err != nil {
			return nil, err
		}
	}

	result, err := pagination.Find[models.Transaction](
		applyTransactionFilters(s.db.Model(&models.Transaction{}), filter), page, "transaction_date DESC, created_at DESC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.AccountID != "" {
		q = q.Where("account_id = ?", f.AccountID)
	}
	if f.FromDate != nil {
		q = q.Where("transaction_date >= ?", models.DateOf(*f.FromDate))
	}
	if f.ToDate != nil {
		q = q.Where("transaction_date <= ?", models.DateOf(*f.ToDate))
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	} else {
		q = q.Where("status <> ?", models.TransactionStatusVoid)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	return q
}

// reverseEffects undoes a posted transaction's ledger entry and its rollup
// contribution.
func (s *transactionService) reverseEffects(tx *gorm.DB, t *models.Transaction, description string) error {
	if !t.Status.Posted() || t.LedgerEntryID == nil {
		return apperrors.ErrTransactionNotEditable
	}
	if _, err := s.ledgerService.Reverse(tx, *t.LedgerEntryID, description); err != nil {
		return err
	}
	return s.rollupService.Apply(tx, changeOf(t, true))
}

// applyPatch validates input against t and writes the accepted values into t.
func (s *transactionService) applyPatch(tx *gorm.DB, t *models.Transaction, input UpdateTransactionInput) error {
	if input.Amount != nil {
		amount, err := money.ParsePositive(*input.Amount)
		if err != nil {
			return apperrors.WithMessage(apperrors.ErrInvalidAmount, err.Error())
		}
		t.Amount = amount
	}
	if input.Type != nil {
		if !input.Type.Valid() {
			return apperrors.ErrInvalidTransactionType
		}
		t.Type = *input.Type
	}
	if input.TransactionDate != nil {
		t.TransactionDate = models.DateOf(*input.TransactionDate)
	}
	if input.Description != nil {
		t.Description = *input.Description
	}

	if input.AccountID != nil && *input.AccountID != t.AccountID {
		var account models.Account
		if err := tx.Where("id = ? AND is_active = ?", *input.AccountID, true).First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrAccountNotFound
			}
			return persistenceError(err)
		}
		if account.Currency != t.Currency {
			return apperrors.WithMessage(apperrors.ErrInvalidCurrency, "target account uses a different currency")
		}
		t.AccountID = account.ID
	}

	switch {
	case input.ClearCategory:
		t.CategoryID = nil
	case input.CategoryID != nil:
		categoryID := normalizeID(input.CategoryID)
		if categoryID != nil {
			var count int64
			if err := tx.Model(&models.Category{}).Where("id = ?", *categoryID).Count(&count).Error; err != nil {
				return persistenceError(err)
			}
			if count == 0 {
				return apperrors.ErrCategoryNotFound
			}
		}
		t.CategoryID = categoryID
	}

	if input.IsRecurring != nil {
		t.IsRecurring = *input.IsRecurring
		if !t.IsRecurring && input.RecurrenceRule == nil {
			t.RecurrenceRule = models.RecurrenceNone
		}
	}
	if input.RecurrenceRule != nil {
		t.RecurrenceRule = *input.RecurrenceRule
	}
	if err := validateRecurrence(t.IsRecurring, t.RecurrenceRule); err != nil {
		return err
	}

	if input.Status != nil {
		if !input.Status.Valid() {
			return apperrors.ErrInvalidStatus
		}
		if err := checkTransition(t.Status, *input.Status); err != nil {
			return err
		}
		t.Status = *input.Status
	}
	return nil
}

// updatePlan classifies the difference between two versions of a
// transaction.
type updatePlan struct {
	noop      bool
	ledger    bool
	rollup    bool
	terminate bool
	action    models.AuditAction
}

func planUpdate(before, after *models.Transaction) updatePlan {
	var p updatePlan
	p.ledger = before.AccountID != after.AccountID ||
		before.Type != after.Type ||
		!before.Amount.Equal(after.Amount)
	p.rollup = p.ledger ||
		!before.TransactionDate.Equal(after.TransactionDate) ||
		!sameID(before.CategoryID, after.CategoryID)
	statusChanged := before.Status != after.Status
	p.terminate = statusChanged && after.Status.Terminal()

	descriptive := before.Description != after.Description ||
		before.IsRecurring != after.IsRecurring ||
		before.RecurrenceRule != after.RecurrenceRule

	switch {
	case p.terminate && after.Status == models.TransactionStatusVoid:
		p.action = models.AuditActionVoid
	case statusChanged && !p.rollup && !descriptive:
		p.action = models.AuditActionStatusChange
	case statusChanged || p.rollup || descriptive:
		p.action = models.AuditActionUpdate
	default:
		p.noop = true
	}
	if p.terminate && after.Status == models.TransactionStatusFailed {
		p.action = models.AuditActionStatusChange
	}
	return p
}

// checkTransition allows pending -> cleared and any posted status into void
// or failed. Terminal statuses never reach here.
func checkTransition(from, to models.TransactionStatus) error {
	if from == to {
		return nil
	}
	switch to {
	case models.TransactionStatusCleared:
		if from == models.TransactionStatusPending {
			return nil
		}
	case models.TransactionStatusVoid, models.TransactionStatusFailed:
		return nil
	}
	return apperrors.WithMessage(apperrors.ErrInvalidStatus, "cannot move a transaction from "+string(from)+" to "+string(to))
}

// lockTransaction loads a transaction FOR UPDATE. Void transactions are not
// found; failed ones cannot be edited.
func lockTransaction(tx *gorm.DB, transactionID string) (*models.Transaction, error) {
	var t models.Transaction
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", transactionID).
		First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, persistenceError(err)
	}
	switch t.Status {
	case models.TransactionStatusVoid:
		return nil, apperrors.ErrTransactionNotFound
	case models.TransactionStatusFailed:
		return nil, apperrors.ErrTransactionNotEditable
	}
	return &t, nil
}

// changeOf is the rollup contribution of t, negated when removing it.
func changeOf(t *models.Transaction, remove bool) rollup.Change {
	amount := t.Amount
	if remove {
		amount = amount.Neg()
	}
	return rollup.Change{
		AccountID:  t.AccountID,
		Date:       t.TransactionDate,
		Type:       t.Type,
		CategoryID: t.CategoryID,
		Amount:     amount,
	}
}

func resolveCurrency(requested string, account *models.Account) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(requested))
	if currency == "" {
		return account.Currency, nil
	}
	if !validator.IsValidCurrency(currency) {
		return "", apperrors.ErrInvalidCurrency
	}
	if currency != account.Currency {
		return "", apperrors.WithMessage(apperrors.ErrInvalidCurrency, "transaction currency must match the account currency")
	}
	return currency, nil
}

func validateRecurrence(recurring bool, rule models.RecurrenceRule) error {
	if !rule.Valid() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown recurrence rule")
	}
	if recurring && rule == models.RecurrenceNone {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "recurring transactions need a recurrence rule")
	}
	if !recurring && rule != models.RecurrenceNone {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "recurrence rule set on a non-recurring transaction")
	}
	return nil
}

// normalizeID maps blank IDs to nil.
func normalizeID(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
