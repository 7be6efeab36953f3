package services

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"gorm.io/gorm"

	apperrors "tallybook/internal/errors"
	"tallybook/internal/logger"
	"tallybook/internal/models"
	"tallybook/internal/rollup"
)

const recomputeBatchSize = 500

// consistencyService rebuilds rollups from the transactions table and
// compares them with what is stored.
type consistencyService struct {
	db             *gorm.DB
	accountService AccountServicer
	workers        int
}

// NewConsistencyService creates a new ConsistencyServicer. workers bounds
// the concurrency of ScanAccounts.
func NewConsistencyService(db *gorm.DB, accountService AccountServicer, workers int) ConsistencyServicer {
	if workers < 1 {
		workers = 1
	}
	return &consistencyService{
		db:             db,
		accountService: accountService,
		workers:        workers,
	}
}

// Recompute reports every summary row of one granularity in [from, to]
// whose stored totals differ from the totals of the account's posted
// transactions. Nothing is written.
func (s *consistencyService) Recompute(accountID string, from, to time.Time, granularity rollup.Granularity) (*DriftReport, error) {
	if _, err := rollup.Parse(string(granularity)); err != nil {
		return nil, apperrors.ErrInvalidGranularity
	}
	if _, err := s.accountService.GetAccountByID(accountID); err != nil {
		return nil, err
	}
	from, to, err := widenRange(granularity, from, to)
	if err != nil {
		return nil, err
	}

	// Both reads see one snapshot, so a mutation committing between them
	// cannot show up as drift.
	var report *DriftReport
	err = inTx(s.db, snapshotRead, func(tx *gorm.DB) error {
		var err error
		report, err = recompute(tx, accountID, from, to, granularity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Repair recomputes under the account lock and overwrites every drifted
// row with the recomputed totals, in one database transaction.
func (s *consistencyService) Repair(actorID, accountID string, from, to time.Time, granularity rollup.Granularity) (*DriftReport, error) {
	actorID, _, err := resolveActor(s.db, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := rollup.Parse(string(granularity)); err != nil {
		return nil, apperrors.ErrInvalidGranularity
	}
	from, to, err = widenRange(granularity, from, to)
	if err != nil {
		return nil, err
	}

	var report *DriftReport
	err = inTx(s.db, nil, func(tx *gorm.DB) error {
		// Holding the account lock keeps mutations out while rows are
		// rewritten.
		if _, err := s.accountService.LockForUpdate(tx, accountID); err != nil {
			return err
		}

		var err error
		report, err = recompute(tx, accountID, from, to, granularity)
		if err != nil {
			return err
		}

		for _, d := range report.Drifts {
			logger.Named("consistency").Warnw("repairing rollup drift",
				"account_id", accountID,
				"key", d.Label,
				"stored", d.Stored,
				"recomputed", d.Recomputed,
				"actor_id", actorID,
			)
			if err := rollup.Overwrite(tx, d.Key, d.Recomputed); err != nil {
				return persistenceError(err)
			}
		}
		report.Repaired = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Named("consistency").Infow("rollup repair finished",
		"account_id", accountID,
		"granularity", granularity,
		"rows_checked", report.RowsChecked,
		"rows_repaired", len(report.Drifts),
		"actor_id", actorID,
	)
	return report, nil
}

// ScanAccounts runs Recompute for many accounts on a bounded worker pool.
// An empty accountIDs scans every active account. Reports come back in
// input order; accounts that failed are left out and their errors joined.
func (s *consistencyService) ScanAccounts(accountIDs []string, from, to time.Time, granularity rollup.Granularity) ([]*DriftReport, error) {
	if len(accountIDs) == 0 {
		ids, err := s.accountService.GetAccountIDs()
		if err != nil {
			return nil, err
		}
		accountIDs = ids
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	defer pool.Release()

	reports := make([]*DriftReport, len(accountIDs))
	errs := make([]error, len(accountIDs))
	var wg sync.WaitGroup
	for i, id := range accountIDs {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			reports[i], errs[i] = s.Recompute(id, from, to, granularity)
		}); err != nil {
			wg.Done()
			errs[i] = apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	wg.Wait()

	out := make([]*DriftReport, 0, len(reports))
	for i, r := range reports {
		if errs[i] != nil {
			logger.Named("consistency").Errorw("drift scan failed", "account_id", accountIDs[i], "error", errs[i])
			continue
		}
		if !r.Clean() {
			logger.Named("consistency").Warnw("rollup drift detected",
				"account_id", r.AccountID,
				"granularity", granularity,
				"drifted_rows", len(r.Drifts),
			)
		}
		out = append(out, r)
	}
	return out, errors.Join(errs...)
}

// recompute folds the posted transactions of [from, to] into rows of
// granularity g and diffs them against the stored rows. The range must
// already be whole periods.
func recompute(q *gorm.DB, accountID string, from, to time.Time, g rollup.Granularity) (*DriftReport, error) {
	keys := make(map[string]rollup.PeriodKey)
	recomputed := make(map[string]rollup.Totals)

	var batch []models.Transaction
	result := q.Model(&models.Transaction{}).
		Where("account_id = ? AND status IN ? AND transaction_date BETWEEN ? AND ?",
			accountID,
			[]models.TransactionStatus{models.TransactionStatusPending, models.TransactionStatusCleared},
			from, to).
		Order("transaction_date, id").
		FindInBatches(&batch, recomputeBatchSize, func(_ *gorm.DB, _ int) error {
			for i := range batch {
				d, ok := rollup.PlanFor(g, changeOf(&batch[i], false))
				if !ok {
					continue
				}
				id := d.Key.String()
				keys[id] = d.Key
				recomputed[id] = recomputed[id].Add(d.Totals)
			}
			return nil
		})
	if result.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}

	rows, err := rollup.Find(q, g, accountID, from, to)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	stored := make(map[string]rollup.Totals, len(rows))
	for _, row := range rows {
		id := row.Key().String()
		keys[id] = row.Key()
		stored[id] = row.Totals()
	}

	report := &DriftReport{
		AccountID:   accountID,
		Granularity: g,
		From:        from,
		To:          to,
		RowsChecked: len(keys),
		Drifts:      []Drift{},
	}
	for id, key := range keys {
		want, have := recomputed[id], stored[id]
		if want.Equal(have) {
			continue
		}
		report.Drifts = append(report.Drifts, Drift{
			Key:        key,
			Label:      id,
			Period:     key.Label(),
			Stored:     have,
			Recomputed: want,
			Delta:      want.Sub(have),
		})
	}
	sort.Slice(report.Drifts, func(i, j int) bool {
		return report.Drifts[i].Key.Less(report.Drifts[j].Key)
	})
	return report, nil
}
