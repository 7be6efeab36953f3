package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "tallybook/internal/errors"
	"tallybook/internal/models"
	"tallybook/internal/services"
)

// AuditHandler exposes the append-only audit trail.
type AuditHandler struct {
	auditService services.AuditServicer
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(auditService services.AuditServicer) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// GetAuditTrail handles listing audit records
// @Summary     Get audit trail
// @Description Get a paginated list of audit records, newest first
// @Tags        audit
// @Produce     json
// @Param       X-Actor-ID     header string true  "Acting user ID"
// @Param       page           query  int    false "Page number (default 1)"
// @Param       page_size      query  int    false "Items per page (default 20, max 100)"
// @Param       transaction_id query  string false "Filter by transaction ID"
// @Param       actor_id       query  string false "Filter by acting user ID"
// @Param       action         query  string false "Filter by action (create, update, status_change, delete, void)"
// @Param       from           query  string false "Filter by start time (RFC3339 or YYYY-MM-DD)"
// @Param       to             query  string false "Filter by end time (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} pagination.PageResponse[models.AuditLog] "Paginated audit records"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /audit [get]
func (h *AuditHandler) GetAuditTrail(c *gin.Context) {
	page, err := bindPage(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var filter services.AuditFilter
	transactionID, err := parseOptionalID(c, "transaction_id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	if transactionID != nil {
		filter.TransactionID = *transactionID
	}
	filter.ActorID = c.Query("actor_id")

	if v := c.Query("action"); v != "" {
		action := models.AuditAction(v)
		if !action.Valid() {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid action"))
			return
		}
		filter.Action = action
	}

	if filter.From, err = parseDateQuery(c, "from"); err != nil {
		respondWithError(c, err)
		return
	}
	if filter.To, err = parseDateQuery(c, "to"); err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.auditService.GetAuditTrail(filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
