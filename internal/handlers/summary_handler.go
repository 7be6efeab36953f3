package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "tallybook/internal/errors"
	"tallybook/internal/rollup"
	"tallybook/internal/services"
)

// SummaryHandler serves the precomputed summary rows.
type SummaryHandler struct {
	rollupService services.RollupServicer
}

// NewSummaryHandler creates a new SummaryHandler.
func NewSummaryHandler(rollupService services.RollupServicer) *SummaryHandler {
	return &SummaryHandler{rollupService: rollupService}
}

// GetAccountSummaries handles the retrieval of summary rows for an account
// @Summary     Get account summaries
// @Description Get the stored summary rows of one granularity. The range is widened to whole periods.
// @Tags        accounts,summaries
// @Produce     json
// @Param       X-Actor-ID  header string true "Acting user ID"
// @Param       id          path   string true "Account ID"
// @Param       granularity query  string true "daily, weekly, monthly, yearly, category_daily or category_monthly"
// @Param       from        query  string true "Range start (RFC3339 or YYYY-MM-DD)"
// @Param       to          query  string true "Range end (RFC3339 or YYYY-MM-DD)"
// @Success     200 {array}  rollup.Row "Summary rows in period order"
// @Failure     400 {object} ErrorResponse "Invalid granularity or date range"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /accounts/{id}/summaries [get]
func (h *SummaryHandler) GetAccountSummaries(c *gin.Context) {
	accountID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	granularity, err := parseGranularity(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	from, to, err := parseDateRange(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rows, err := h.rollupService.ListSummaries(accountID, granularity, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if rows == nil {
		rows = []rollup.Row{}
	}

	c.JSON(http.StatusOK, gin.H{"summaries": rows})
}

func parseGranularity(c *gin.Context) (rollup.Granularity, error) {
	g, err := rollup.Parse(c.Query("granularity"))
	if err != nil {
		return "", apperrors.WithMessage(apperrors.ErrInvalidGranularity, err.Error())
	}
	return g, nil
}
