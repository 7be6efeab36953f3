package services

import (
	"time"

	"gorm.io/gorm"

	"tallybook/internal/models"
	"tallybook/internal/money"
	"tallybook/internal/pagination"
	"tallybook/internal/rollup"
)

// UserServicer defines the contract for user projections used in creator
// and actor snapshots.
type UserServicer interface {
	CreateUser(email, firstName, lastName string) (*models.User, error)
	GetUserByID(userID string) (*models.User, error)
}

// AccountServicer is the account subsystem as seen by the ledger: balance
// reads, the row lock, and the balance write used inside a caller's
// transaction.
type AccountServicer interface {
	CreateAccount(ownerID, name, currency string, initialBalance money.Amount) (*models.Account, error)
	GetAccountByID(accountID string) (*models.Account, error)
	GetAccountIDs() ([]string, error)
	GetBalance(accountID string) (money.Amount, error)
	LockForUpdate(tx *gorm.DB, accountID string) (*models.Account, error)
	SetBalance(tx *gorm.DB, accountID string, newBalance money.Amount, sequence int64) error
}

// CategoryServicer provides the category existence checks used during
// validation.
type CategoryServicer interface {
	CreateCategory(ownerID, name string, categoryType models.CategoryType, description string) (*models.Category, error)
	GetCategoryByID(categoryID string) (*models.Category, error)
}

// LedgerEntryParams describes one entry to append.
type LedgerEntryParams struct {
	AccountID           string
	TransactionID       string
	EntryType           models.LedgerEntryType
	Amount              money.Amount
	Description         string
	TransactionSnapshot map[string]any
	CreatorSnapshot     map[string]any

	reversesEntryID *string
}

// LedgerCorrection is the replacement entry written after a reversal. Zero
// fields fall back to the original entry's account and type.
type LedgerCorrection struct {
	AccountID           string
	EntryType           models.LedgerEntryType
	Amount              money.Amount
	Description         string
	TransactionSnapshot map[string]any
	CreatorSnapshot     map[string]any
}

// LedgerReplay is the result of recomputing an account balance from its
// ledger alone.
type LedgerReplay struct {
	AccountID      string       `json:"account_id"`
	InitialBalance money.Amount `json:"initial_balance"`
	Replayed       money.Amount `json:"replayed_balance"`
	Stored         money.Amount `json:"stored_balance"`
	Entries        int          `json:"entries"`

	// FirstMismatch is the first sequence whose recorded BalanceAfter
	// disagrees with the running total.
	FirstMismatch *int64 `json:"first_mismatch_sequence,omitempty"`
	Consistent    bool   `json:"consistent"`
}

// LedgerServicer defines the contract for the append-only balance ledger.
type LedgerServicer interface {
	Append(tx *gorm.DB, params LedgerEntryParams) (*models.LedgerEntry, error)
	Reverse(tx *gorm.DB, originalEntryID, description string) (*models.LedgerEntry, error)
	ReverseAndCorrect(tx *gorm.DB, originalEntryID string, correction LedgerCorrection) (*models.LedgerEntry, *models.LedgerEntry, error)
	GetEntryByID(entryID string) (*models.LedgerEntry, error)
	GetAccountEntries(accountID string, page pagination.PageRequest) (*pagination.PageResponse[models.LedgerEntry], error)
	GetTransactionEntries(transactionID string) ([]models.LedgerEntry, error)
	Replay(accountID string) (*LedgerReplay, error)
}

// RollupServicer defines the contract for maintaining summary rows.
type RollupServicer interface {
	Apply(tx *gorm.DB, change rollup.Change) error
	ApplyDeltas(tx *gorm.DB, deltas []rollup.Delta) error
	ListSummaries(accountID string, granularity rollup.Granularity, from, to time.Time) ([]rollup.Row, error)
}

// AuditEntry is one record handed to the audit recorder. Snapshots are
// serialized when Append is called.
type AuditEntry struct {
	TransactionID string
	ActorID       string
	ActorSnapshot map[string]any
	Action        models.AuditAction
	Before        map[string]any
	After         map[string]any
	Reason        string
}

// AuditFilter narrows an audit trail query. Zero fields are ignored.
type AuditFilter struct {
	TransactionID string
	ActorID       string
	Action        models.AuditAction
	From          *time.Time
	To            *time.Time
}

// AuditServicer defines the contract for the audit trail.
type AuditServicer interface {
	Append(tx *gorm.DB, entry AuditEntry) (*models.AuditLog, error)
	GetAuditTrail(filter AuditFilter, page pagination.PageRequest) (*pagination.PageResponse[models.AuditLog], error)
}

// CreateTransactionInput carries a new transaction. Amount is the decimal
// string as received; it is parsed and validated by the service.
type CreateTransactionInput struct {
	AccountID         string
	CategoryID        *string
	Type              models.TransactionType
	Amount            string
	Currency          string
	Description       string
	TransactionDate   time.Time
	Status            models.TransactionStatus
	ExternalRefID     *string
	IsRecurring       bool
	RecurrenceRule    models.RecurrenceRule
	RecurringParentID *string
}

// UpdateTransactionInput is a partial update; nil fields are left as they
// are. ClearCategory removes the category.
type UpdateTransactionInput struct {
	AccountID       *string
	CategoryID      *string
	ClearCategory   bool
	Type            *models.TransactionType
	Amount          *string
	Description     *string
	TransactionDate *time.Time
	Status          *models.TransactionStatus
	IsRecurring     *bool
	RecurrenceRule  *models.RecurrenceRule
	Reason          string
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	AccountID  string
	FromDate   *time.Time
	ToDate     *time.Time
	Type       *models.TransactionType
	Status     *models.TransactionStatus
	CategoryID *string
}

// TransactionServicer is the mutation orchestrator: the only way a
// transaction is created, changed or removed.
type TransactionServicer interface {
	CreateTransaction(actorID string, input CreateTransactionInput) (*models.Transaction, error)
	UpdateTransaction(actorID, transactionID string, input UpdateTransactionInput) (*models.Transaction, error)
	DeleteTransaction(actorID, transactionID, reason string) error
	GetTransactionByID(transactionID string) (*models.Transaction, error)
	GetTransactions(filter TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error)
}

// Drift is one summary row whose stored totals disagree with the totals
// recomputed from transactions.
type Drift struct {
	Key        rollup.PeriodKey `json:"-"`
	Label      string           `json:"key"`
	Period     string           `json:"period"`
	Stored     rollup.Totals    `json:"stored"`
	Recomputed rollup.Totals    `json:"recomputed"`
	Delta      rollup.Totals    `json:"delta"`
}

// DriftReport is the outcome of one recompute.
type DriftReport struct {
	AccountID   string             `json:"account_id"`
	Granularity rollup.Granularity `json:"granularity"`
	From        time.Time          `json:"from"`
	To          time.Time          `json:"to"`
	RowsChecked int                `json:"rows_checked"`
	Drifts      []Drift            `json:"drifts"`
	Repaired    bool               `json:"repaired"`
}

// Clean reports whether no drift was found.
func (r *DriftReport) Clean() bool { return len(r.Drifts) == 0 }

// ConsistencyServicer recomputes rollups from raw transactions, reports
// drift and repairs it on request.
type ConsistencyServicer interface {
	Recompute(accountID string, from, to time.Time, granularity rollup.Granularity) (*DriftReport, error)
	Repair(actorID, accountID string, from, to time.Time, granularity rollup.Granularity) (*DriftReport, error)
	ScanAccounts(accountIDs []string, from, to time.Time, granularity rollup.Granularity) ([]*DriftReport, error)
}
