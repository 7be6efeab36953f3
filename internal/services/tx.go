package services

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "tallybook/internal/errors"
)

// Postgres SQLSTATEs that mean "someone else got there first; retry".
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// snapshotRead is used by readers that compare several tables and need
// them at one point in time.
var snapshotRead = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

// inTx runs fn inside one database transaction. Any error returned by fn,
// or by the commit, rolls everything back; the error is mapped onto the
// AppError taxonomy on the way out.
func inTx(db *gorm.DB, opts *sql.TxOptions, fn func(tx *gorm.DB) error) error {
	var err error
	if opts != nil {
		err = db.Transaction(fn, opts)
	} else {
		err = db.Transaction(fn)
	}
	if err == nil {
		return nil
	}
	return persistenceError(err)
}

// persistenceError classifies a database error. AppErrors pass through
// untouched; duplicate keys and serialization failures become
// ErrConcurrentUpdate; anything else is internal.
func persistenceError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.Wrap(apperrors.ErrConcurrentUpdate, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected:
			return apperrors.Wrap(apperrors.ErrConcurrentUpdate, err)
		}
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}
