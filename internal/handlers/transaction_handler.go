package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "tallybook/internal/errors"
	"tallybook/internal/models"
	"tallybook/internal/services"
)

// TransactionHandler handles transaction-related requests.
type TransactionHandler struct {
	transactionService services.TransactionServicer
	ledgerService      services.LedgerServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService services.TransactionServicer, ledgerService services.LedgerServicer) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService, ledgerService: ledgerService}
}

// CreateTransactionRequest represents the request payload for creating a transaction.
// Amount is a positive decimal string with at most two fractional digits.
type CreateTransactionRequest struct {
	AccountID         string                   `json:"account_id" binding:"required,uuid"`
	CategoryID        *string                  `json:"category_id" binding:"omitempty,uuid"`
	Type              models.TransactionType   `json:"type" binding:"required,transaction_type"`
	Amount            string                   `json:"amount" binding:"required,money_amount"`
	Currency          string                   `json:"currency" binding:"omitempty,iso4217"`
	Description       string                   `json:"description" binding:"max=500"`
	Date              *string                  `json:"transaction_date"`
	Status            models.TransactionStatus `json:"status" binding:"omitempty,transaction_status"`
	ExternalRefID     *string                  `json:"external_ref_id" binding:"omitempty,min=1,max=255"`
	IsRecurring       bool                     `json:"is_recurring"`
	RecurrenceRule    models.RecurrenceRule    `json:"recurrence_rule" binding:"omitempty,recurrence_rule"`
	RecurringParentID *string                  `json:"recurring_parent_id" binding:"omitempty,uuid"`
}

// CreateTransaction handles the creation of a new transaction
// @Summary     Create a transaction
// @Description Record an income or expense. The ledger entry, the balance, every summary row and the audit record are written in the same database transaction.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Param       X-Actor-ID header string                   true "Acting user ID"
// @Param       request    body   CreateTransactionRequest true "Transaction details"
// @Success     201 {object} models.Transaction "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Missing actor"
// @Failure     404 {object} ErrorResponse "Account or category not found"
// @Failure     409 {object} ErrorResponse "Duplicate external reference or concurrent update"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	actorID, err := getActorID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	transactionDate := time.Now()
	if req.Date != nil && *req.Date != "" {
		parsed, parseErr := parseFlexibleTime(*req.Date)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, parseErr.Error()))
			return
		}
		transactionDate = parsed
	}

	transaction, err := h.transactionService.CreateTransaction(actorID, services.CreateTransactionInput{
		AccountID:         strings.ToLower(req.AccountID),
		CategoryID:        req.CategoryID,
		Type:              req.Type,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Description:       req.Description,
		TransactionDate:   transactionDate,
		Status:            req.Status,
		ExternalRefID:     req.ExternalRefID,
		IsRecurring:       req.IsRecurring,
		RecurrenceRule:    req.RecurrenceRule,
		RecurringParentID: req.RecurringParentID,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// GetTransactions handles listing transactions
// @Summary     List transactions
// @Description Get a paginated list of transactions, newest first. Voided transactions are only listed when filtered for by status.
// @Tags        transactions
// @Produce     json
// @Param       X-Actor-ID  header string true  "Acting user ID"
// @Param       page        query  int    false "Page number (default 1)"
// @Param       page_size   query  int    false "Items per page (default 20, max 100)"
// @Param       account_id  query  string false "Filter by account ID"
// @Param       from_date   query  string false "Filter by start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date     query  string false "Filter by end date (RFC3339 or YYYY-MM-DD)"
// @Param       type        query  string false "Filter by transaction type (income, expense)"
// @Param       status      query  string false "Filter by status (pending, cleared, void, failed)"
// @Param       category_id query  string false "Filter by category ID"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [get]
func (h *TransactionHandler) GetTransactions(c *gin.Context) {
	page, err := bindPage(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.GetTransactions(filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func parseTransactionFilter(c *gin.Context) (services.TransactionFilter, error) {
	var filter services.TransactionFilter
	var err error

	accountID, err := parseOptionalID(c, "account_id")
	if err != nil {
		return filter, err
	}
	if accountID != nil {
		filter.AccountID = *accountID
	}

	if filter.FromDate, err = parseDateQuery(c, "from_date"); err != nil {
		return filter, err
	}
	if filter.ToDate, err = parseDateQuery(c, "to_date"); err != nil {
		return filter, err
	}

	if v := c.Query("type"); v != "" {
		txType := models.TransactionType(v)
		if !txType.Valid() {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid type, must be income or expense")
		}
		filter.Type = &txType
	}

	if v := c.Query("status"); v != "" {
		status := models.TransactionStatus(v)
		if !status.Valid() {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid status, must be pending, cleared, void, or failed")
		}
		filter.Status = &status
	}

	if filter.CategoryID, err = parseOptionalID(c, "category_id"); err != nil {
		return filter, err
	}

	return filter, nil
}

// GetTransactionByID handles the retrieval of a specific transaction
// @Summary     Get transaction by ID
// @Description Get a specific transaction by ID. Voided transactions are not found.
// @Tags        transactions
// @Produce     json
// @Param       X-Actor-ID header string true "Acting user ID"
// @Param       id         path   string true "Transaction ID"
// @Success     200 {object} models.Transaction "Transaction details"
// @Failure     400 {object} ErrorResponse "Invalid transaction ID"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransactionByID(c *gin.Context) {
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.GetTransactionByID(transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// GetTransactionLedger handles the retrieval of the ledger entries a
// transaction produced
// @Summary     Get transaction ledger entries
// @Tags        transactions,ledger
// @Produce     json
// @Param       X-Actor-ID header string true "Acting user ID"
// @Param       id         path   string true "Transaction ID"
// @Success     200 {array}  models.LedgerEntry "Ledger entries in write order"
// @Failure     400 {object} ErrorResponse "Invalid transaction ID"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id}/ledger [get]
func (h *TransactionHandler) GetTransactionLedger(c *gin.Context) {
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	entries, err := h.ledgerService.GetTransactionEntries(transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// UpdateTransactionRequest represents the request payload for updating a transaction.
// Omitted fields are left unchanged; an empty category_id clears the category.
type UpdateTransactionRequest struct {
	AccountID      *string                   `json:"account_id" binding:"omitempty,uuid"`
	CategoryID     *string                   `json:"category_id"`
	Type           *models.TransactionType   `json:"type" binding:"omitempty,transaction_type"`
	Amount         *string                   `json:"amount" binding:"omitempty,money_amount"`
	Description    *string                   `json:"description" binding:"omitempty,max=500"`
	Date           *string                   `json:"transaction_date"`
	Status         *models.TransactionStatus `json:"status" binding:"omitempty,transaction_status"`
	IsRecurring    *bool                     `json:"is_recurring"`
	RecurrenceRule *models.RecurrenceRule    `json:"recurrence_rule" binding:"omitempty,recurrence_rule"`
	Reason         string                    `json:"reason" binding:"max=500"`
}

// UpdateTransaction handles updating an existing transaction
// @Summary     Update transaction
// @Description Apply a partial update. Balance, ledger, summaries and audit trail follow the change atomically. Setting status to void or failed reverses the transaction's effects.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Param       X-Actor-ID header string                   true "Acting user ID"
// @Param       id         path   string                   true "Transaction ID"
// @Param       request    body   UpdateTransactionRequest true "Fields to update"
// @Success     200 {object} models.Transaction "Updated transaction"
// @Failure     400 {object} ErrorResponse "Invalid input, invalid status transition or non-editable transaction"
// @Failure     401 {object} ErrorResponse "Missing actor"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     409 {object} ErrorResponse "Concurrent update"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [put]
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	actorID, err := getActorID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	txID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	input := services.UpdateTransactionInput{
		AccountID:      req.AccountID,
		Type:           req.Type,
		Amount:         req.Amount,
		Description:    req.Description,
		Status:         req.Status,
		IsRecurring:    req.IsRecurring,
		RecurrenceRule: req.RecurrenceRule,
		Reason:         req.Reason,
	}

	// Handle CategoryID: nil in JSON = don't change; empty = clear; otherwise set
	if req.CategoryID != nil {
		if *req.CategoryID == "" {
			input.ClearCategory = true
		} else {
			input.CategoryID = req.CategoryID
		}
	}

	if req.Date != nil && *req.Date != "" {
		parsed, parseErr := parseFlexibleTime(*req.Date)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, parseErr.Error()))
			return
		}
		input.TransactionDate = &parsed
	}

	transaction, err := h.transactionService.UpdateTransaction(actorID, txID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// DeleteTransaction handles the deletion of a transaction
// @Summary     Delete transaction
// @Description Void a transaction: its ledger entry is reversed, its summary contributions are removed and the deletion is audited. The row is kept for the audit trail.
// @Tags        transactions
// @Produce     json
// @Param       X-Actor-ID header string true  "Acting user ID"
// @Param       id         path   string true  "Transaction ID"
// @Param       reason     query  string false "Why the transaction is removed"
// @Success     200 {object} MessageResponse "Transaction deleted"
// @Failure     400 {object} ErrorResponse "Invalid transaction ID"
// @Failure     401 {object} ErrorResponse "Missing actor"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     409 {object} ErrorResponse "Concurrent update"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	actorID, err := getActorID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.transactionService.DeleteTransaction(actorID, transactionID, c.Query("reason")); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted successfully"})
}
