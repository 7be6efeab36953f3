package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "tallybook/internal/errors"
	"tallybook/internal/money"
	"tallybook/internal/services"
)

// AccountHandler handles account and ledger requests.
type AccountHandler struct {
	accountService services.AccountServicer
	ledgerService  services.LedgerServicer
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService services.AccountServicer, ledgerService services.LedgerServicer) *AccountHandler {
	return &AccountHandler{accountService: accountService, ledgerService: ledgerService}
}

// CreateAccountRequest represents the request payload for creating an account
type CreateAccountRequest struct {
	Name           string        `json:"name" binding:"required,min=1,max=100"`
	Currency       string        `json:"currency" binding:"omitempty,iso4217"`
	InitialBalance *money.Amount `json:"initial_balance"`
}

// CreateAccount handles the creation of a new account
// @Summary     Create an account
// @Description Create a new account owned by the acting user. The initial balance is the starting point of ledger replay.
// @Tags        accounts
// @Accept      json
// @Produce     json
// @Param       X-Actor-ID header string               true "Acting user ID"
// @Param       request    body   CreateAccountRequest true "Account details"
// @Success     201 {object} models.Account "Account created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Missing actor"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /accounts [post]
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	actorID, err := getActorID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	initial := money.Zero
	if req.InitialBalance != nil {
		initial = *req.InitialBalance
	}

	account, err := h.accountService.CreateAccount(actorID, req.Name, req.Currency, initial)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"account": account})
}

// GetAccountByID handles the retrieval of a specific account
// @Summary     Get account by ID
// @Description Get an account with its current balance and ledger sequence
// @Tags        accounts
// @Produce     json
// @Param       X-Actor-ID header string true "Acting user ID"
// @Param       id         path   string true "Account ID"
// @Success     200 {object} models.Account "Account details"
// @Failure     400 {object} ErrorResponse "Invalid account ID"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /accounts/{id} [get]
func (h *AccountHandler) GetAccountByID(c *gin.Context) {
	accountID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	account, err := h.accountService.GetAccountByID(accountID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": account})
}

// GetAccountLedger handles the retrieval of an account's ledger
// @Summary     Get account ledger
// @Description Get a paginated list of ledger entries for an account in sequence order
// @Tags        accounts,ledger
// @Produce     json
// @Param       X-Actor-ID header string true  "Acting user ID"
// @Param       id         path   string true  "Account ID"
// @Param       page       query  int    false "Page number (default 1)"
// @Param       page_size  query  int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.LedgerEntry] "Paginated ledger entries"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /accounts/{id}/ledger [get]
func (h *AccountHandler) GetAccountLedger(c *gin.Context) {
	accountID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	page, err := bindPage(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.ledgerService.GetAccountEntries(accountID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ReplayLedger handles recomputing an account balance from its ledger
// @Summary     Replay account ledger
// @Description Recompute the balance from the initial balance and every ledger entry, and compare it with the stored balance
// @Tags        accounts,ledger
// @Produce     json
// @Param       X-Actor-ID header string true "Acting user ID"
// @Param       id         path   string true "Account ID"
// @Success     200 {object} services.LedgerReplay "Replay result"
// @Failure     400 {object} ErrorResponse "Invalid account ID"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /accounts/{id}/ledger/replay [get]
func (h *AccountHandler) ReplayLedger(c *gin.Context) {
	accountID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	replay, err := h.ledgerService.Replay(accountID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"replay": replay})
}
