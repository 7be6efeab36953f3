package services

import (
	"time"

	"gorm.io/gorm"

	apperrors "tallybook/internal/errors"
	"tallybook/internal/models"
	"tallybook/internal/rollup"
)

// rollupService maintains the pre-aggregated summary tables. Writes are
// single-statement upserts inside the caller's transaction.
type rollupService struct {
	db *gorm.DB
}

// NewRollupService creates a new RollupServicer.
func NewRollupService(db *gorm.DB) RollupServicer {
	return &rollupService{db: db}
}

// Apply adds change to every summary row it touches.
func (s *rollupService) Apply(tx *gorm.DB, change rollup.Change) error {
	if change.Amount.IsZero() {
		return nil
	}
	if !change.Type.Valid() {
		return apperrors.ErrInvalidTransactionType
	}
	change.Date = models.DateOf(change.Date)
	return s.ApplyDeltas(tx, rollup.Plan(change))
}

// ApplyDeltas applies precomputed deltas in order.
func (s *rollupService) ApplyDeltas(tx *gorm.DB, deltas []rollup.Delta) error {
	for _, d := range deltas {
		if d.Totals.IsZero() {
			continue
		}
		if err := rollup.Increment(tx, d); err != nil {
			return persistenceError(err)
		}
	}
	return nil
}

// ListSummaries returns the stored rows of one granularity whose periods
// overlap [from, to]. The range is widened to whole periods.
func (s *rollupService) ListSummaries(accountID string, granularity rollup.Granularity, from, to time.Time) ([]rollup.Row, error) {
	if _, err := rollup.Parse(string(granularity)); err != nil {
		return nil, apperrors.ErrInvalidGranularity
	}
	from, to, err := widenRange(granularity, from, to)
	if err != nil {
		return nil, err
	}

	rows, err := rollup.Find(s.db, granularity, accountID, from, to)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rows, nil
}

// widenRange validates [from, to] and expands it to whole periods of g.
func widenRange(g rollup.Granularity, from, to time.Time) (time.Time, time.Time, error) {
	from, to = models.DateOf(from), models.DateOf(to)
	if from.After(to) {
		return time.Time{}, time.Time{}, apperrors.ErrInvalidDateRange
	}
	from, to = g.Widen(from, to)
	return from, to, nil
}
