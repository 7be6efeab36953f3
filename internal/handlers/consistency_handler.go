package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tallybook/internal/services"
)

// ConsistencyHandler exposes drift detection and repair of the summary rows.
type ConsistencyHandler struct {
	consistencyService services.ConsistencyServicer
}

// NewConsistencyHandler creates a new ConsistencyHandler.
func NewConsistencyHandler(consistencyService services.ConsistencyServicer) *ConsistencyHandler {
	return &ConsistencyHandler{consistencyService: consistencyService}
}

// GetDrift handles recomputing summaries for an account and reporting drift
// @Summary     Report summary drift
// @Description Recompute the summary rows of one granularity from transactions and report every row whose stored totals differ. Nothing is written.
// @Tags        accounts,consistency
// @Produce     json
// @Param       X-Actor-ID  header string true "Acting user ID"
// @Param       id          path   string true "Account ID"
// @Param       granularity query  string true "daily, weekly, monthly, yearly, category_daily or category_monthly"
// @Param       from        query  string true "Range start (RFC3339 or YYYY-MM-DD)"
// @Param       to          query  string true "Range end (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} services.DriftReport "Drift report"
// @Failure     400 {object} ErrorResponse "Invalid granularity or date range"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /accounts/{id}/drift [get]
func (h *ConsistencyHandler) GetDrift(c *gin.Context) {
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

	report, err := h.consistencyService.Recompute(accountID, from, to, granularity)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}

// Repair handles overwriting drifted summary rows with recomputed totals
// @Summary     Repair summary drift
// @Description Recompute the summary rows of one granularity under the account lock and overwrite every drifted row
// @Tags        accounts,consistency
// @Produce     json
// @Param       X-Actor-ID  header string true "Acting user ID"
// @Param       id          path   string true "Account ID"
// @Param       granularity query  string true "daily, weekly, monthly, yearly, category_daily or category_monthly"
// @Param       from        query  string true "Range start (RFC3339 or YYYY-MM-DD)"
// @Param       to          query  string true "Range end (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} services.DriftReport "Repair report"
// @Failure     400 {object} ErrorResponse "Invalid granularity or date range"
// @Failure     401 {object} ErrorResponse "Missing actor"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     409 {object} ErrorResponse "Concurrent update"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /accounts/{id}/repair [post]
func (h *ConsistencyHandler) Repair(c *gin.Context) {
	actorID, err := getActorID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

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

	report, err := h.consistencyService.Repair(actorID, accountID, from, to, granularity)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}
