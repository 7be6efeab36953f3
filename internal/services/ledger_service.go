package services

import (
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	apperrors "tallybook/internal/errors"
	"tallybook/internal/logger"
	"tallybook/internal/models"
	"tallybook/internal/pagination"
)

const replayBatchSize = 500

// ledgerService keeps the append-only balance ledger. Every balance change
// goes through Append, under the account row lock, in the caller's
// transaction.
type ledgerService struct {
	db             *gorm.DB
	accountService AccountServicer
}

// NewLedgerService creates a new LedgerServicer.
func NewLedgerService(db *gorm.DB, accountService AccountServicer) LedgerServicer {
	return &ledgerService{
		db:             db,
		accountService: accountService,
	}
}

// Append locks the account, writes one entry carrying the resulting
// balance, and stores that balance on the account.
func (s *ledgerService) Append(tx *gorm.DB, params LedgerEntryParams) (*models.LedgerEntry, error) {
	if !params.Amount.IsPositive() {
		return nil, apperrors.ErrInvalidAmount
	}
	switch params.EntryType {
	case models.LedgerEntryIncome, models.LedgerEntryExpense, models.LedgerEntryReversalIncome, models.LedgerEntryReversalExpense:
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("unknown ledger entry type %q", params.EntryType))
	}
	if params.EntryType.IsReversal() != (params.reversesEntryID != nil) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "reversal entries must go through Reverse")
	}

	account, err := s.accountService.LockForUpdate(tx, params.AccountID)
	if err != nil {
		return nil, err
	}

	txSnapshot, err := toJSON(params.TransactionSnapshot)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	creatorSnapshot, err := toJSON(params.CreatorSnapshot)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	entry := &models.LedgerEntry{
		AccountID:           account.ID,
		Sequence:            account.LedgerSequence + 1,
		TransactionID:       params.TransactionID,
		EntryType:           params.EntryType,
		Amount:              params.Amount,
		BalanceAfter:        account.Balance.Add(params.EntryType.Signed(params.Amount)),
		Description:         params.Description,
		ReversesEntryID:     params.reversesEntryID,
		TransactionSnapshot: txSnapshot,
		CreatorSnapshot:     creatorSnapshot,
	}
	if err := tx.Create(entry).Error; err != nil {
		if params.reversesEntryID != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Wrap(apperrors.ErrAlreadyReversed, err)
		}
		return nil, persistenceError(err)
	}

	if err := s.accountService.SetBalance(tx, account.ID, entry.BalanceAfter, entry.Sequence); err != nil {
		return nil, err
	}

	logger.Named("ledger").Debugw("ledger entry appended",
		"account_id", entry.AccountID,
		"sequence", entry.Sequence,
		"entry_type", entry.EntryType,
		"amount", entry.Amount.String(),
		"balance_after", entry.BalanceAfter.String(),
	)
	return entry, nil
}

// Reverse appends the entry that cancels originalEntryID. An entry can be
// reversed once; reversal entries themselves cannot be reversed.
func (s *ledgerService) Reverse(tx *gorm.DB, originalEntryID, description string) (*models.LedgerEntry, error) {
	original, err := s.findEntry(tx, originalEntryID)
	if err != nil {
		return nil, err
	}
	if original.EntryType.IsReversal() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "a reversal entry cannot be reversed")
	}

	var count int64
	if err := tx.Model(&models.LedgerEntry{}).Where("reverses_entry_id = ?", original.ID).Count(&count).Error; err != nil {
		return nil, persistenceError(err)
	}
	if count > 0 {
		return nil, apperrors.ErrAlreadyReversed
	}

	if description == "" {
		description = fmt.Sprintf("Reversal of entry %d", original.Sequence)
	}
	return s.Append(tx, LedgerEntryParams{
		AccountID:           original.AccountID,
		TransactionID:       original.TransactionID,
		EntryType:           original.EntryType.Reversed(),
		Amount:              original.Amount,
		Description:         description,
		TransactionSnapshot: fromJSON(original.TransactionSnapshot),
		CreatorSnapshot:     fromJSON(original.CreatorSnapshot),
		reversesEntryID:     &original.ID,
	})
}

// ReverseAndCorrect reverses originalEntryID and appends its replacement
// in the same database transaction. When the correction moves to another
// account both accounts are locked up front, in ID order.
func (s *ledgerService) ReverseAndCorrect(tx *gorm.DB, originalEntryID string, correction LedgerCorrection) (*models.LedgerEntry, *models.LedgerEntry, error) {
	original, err := s.findEntry(tx, originalEntryID)
	if err != nil {
		return nil, nil, err
	}

	if correction.AccountID == "" {
		correction.AccountID = original.AccountID
	}
	if correction.EntryType == "" {
		correction.EntryType = original.EntryType
	}
	if correction.AccountID != original.AccountID {
		ids := []string{original.AccountID, correction.AccountID}
		sort.Strings(ids)
		for _, id := range ids {
			if _, err := s.accountService.LockForUpdate(tx, id); err != nil {
				return nil, nil, err
			}
		}
	}

	reversal, err := s.Reverse(tx, original.ID, "")
	if err != nil {
		return nil, nil, err
	}

	corrected, err := s.Append(tx, LedgerEntryParams{
		AccountID:           correction.AccountID,
		TransactionID:       original.TransactionID,
		EntryType:           correction.EntryType,
		Amount:              correction.Amount,
		Description:         correction.Description,
		TransactionSnapshot: correction.TransactionSnapshot,
		CreatorSnapshot:     correction.CreatorSnapshot,
	})
	if err != nil {
		return nil, nil, err
	}
	return reversal, corrected, nil
}

// GetEntryByID retrieves a ledger entry by ID
func (s *ledgerService) GetEntryByID(entryID string) (*models.LedgerEntry, error) {
	return s.findEntry(s.db, entryID)
}

// GetAccountEntries retrieves a paginated list of an account's ledger in
// sequence order.
func (s *ledgerService) GetAccountEntries(accountID string, page pagination.PageRequest) (*pagination.PageResponse[models.LedgerEntry], error) {
	if _, err := s.accountService.GetAccountByID(accountID); err != nil {
		return nil, err
	}

	result, err := pagination.Find[models.LedgerEntry](
		s.db.Model(&models.LedgerEntry{}).Where("account_id = ?", accountID), page, "sequence ASC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetTransactionEntries returns every entry written for one transaction,
// oldest first.
func (s *ledgerService) GetTransactionEntries(transactionID string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := s.db.Where("transaction_id = ?", transactionID).
		Order("created_at ASC, sequence ASC").
		Find(&entries).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return entries, nil
}

// Replay recomputes an account balance from its initial balance and its
// ledger, and checks every entry's recorded BalanceAfter on the way.
func (s *ledgerService) Replay(accountID string) (*LedgerReplay, error) {
	account, err := s.accountService.GetAccountByID(accountID)
	if err != nil {
		return nil, err
	}

	replay := &LedgerReplay{
		AccountID:      account.ID,
		InitialBalance: account.InitialBalance,
		Stored:         account.Balance,
	}
	running := account.InitialBalance
	var mismatch *int64

	var batch []models.LedgerEntry
	result := s.db.Where("account_id = ?", accountID).
		Order("sequence ASC").
		FindInBatches(&batch, replayBatchSize, func(_ *gorm.DB, _ int) error {
			for i := range batch {
				running = running.Add(batch[i].SignedAmount())
				if mismatch == nil && !running.Equal(batch[i].BalanceAfter) {
					seq := batch[i].Sequence
					mismatch = &seq
				}
			}
			replay.Entries += len(batch)
			return nil
		})
	if result.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}

	replay.Replayed = running
	replay.FirstMismatch = mismatch
	replay.Consistent = mismatch == nil && running.Equal(account.Balance)
	if !replay.Consistent {
		logger.Named("ledger").Warnw("ledger replay mismatch",
			"account_id", account.ID,
			"replayed", running.String(),
			"stored", account.Balance.String(),
		)
	}
	return replay, nil
}

func (s *ledgerService) findEntry(q *gorm.DB, entryID string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := q.Where("id = ?", entryID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrLedgerEntryNotFound
		}
		return nil, persistenceError(err)
	}
	return &entry, nil
}
