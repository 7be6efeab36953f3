package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "tallybook/internal/errors"
	"tallybook/internal/models"
	"tallybook/internal/money"
	"tallybook/internal/validator"
)

// accountService handles account-related business logic.
type accountService struct {
	db *gorm.DB
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(db *gorm.DB) AccountServicer {
	return &accountService{db: db}
}

// CreateAccount opens an account. The opening balance is recorded as
// InitialBalance rather than as a ledger entry, so replaying the ledger
// starts from it.
func (s *accountService) CreateAccount(ownerID, name, currency string, initialBalance money.Amount) (*models.Account, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}
	ownerID, _, err := resolveActor(s.db, ownerID)
	if err != nil {
		return nil, err
	}

	if currency == "" {
		currency = "USD"
	}
	currency = strings.ToUpper(currency)
	if !validator.IsValidCurrency(currency) {
		return nil, apperrors.ErrInvalidCurrency
	}

	account := &models.Account{
		OwnerID:        ownerID,
		Name:           name,
		Currency:       currency,
		InitialBalance: initialBalance,
		Balance:        initialBalance,
		IsActive:       true,
	}
	if err := s.db.Create(account).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return account, nil
}

// GetAccountByID retrieves an active account by ID
func (s *accountService) GetAccountByID(accountID string) (*models.Account, error) {
	var account models.Account
	if err := s.db.Where("id = ? AND is_active = ?", accountID, true).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// GetAccountIDs lists every active account, oldest first.
func (s *accountService) GetAccountIDs() ([]string, error) {
	var ids []string
	if err := s.db.Model(&models.Account{}).
		Where("is_active = ?", true).
		Order("created_at").
		Pluck("id", &ids).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return ids, nil
}

// GetBalance returns the committed balance of an account.
func (s *accountService) GetBalance(accountID string) (money.Amount, error) {
	account, err := s.GetAccountByID(accountID)
	if err != nil {
		return money.Zero, err
	}
	return account.Balance, nil
}

// LockForUpdate loads an account with SELECT ... FOR UPDATE. The lock is
// held until tx commits or rolls back, serializing every balance change on
// the account.
func (s *accountService) LockForUpdate(tx *gorm.DB, accountID string) (*models.Account, error) {
	var account models.Account
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND is_active = ?", accountID, true).
		First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, persistenceError(err)
	}
	return &account, nil
}

// SetBalance records the balance produced by the ledger entry with the
// given sequence number. Callers must hold the row lock.
func (s *accountService) SetBalance(tx *gorm.DB, accountID string, newBalance money.Amount, sequence int64) error {
	result := tx.Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"balance":         newBalance,
			"ledger_sequence": sequence,
		})
	if result.Error != nil {
		return persistenceError(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrAccountNotFound
	}
	return nil
}
