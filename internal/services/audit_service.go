package services

import (
	"gorm.io/gorm"

	apperrors "tallybook/internal/errors"
	"tallybook/internal/logger"
	"tallybook/internal/models"
	"tallybook/internal/pagination"
)

// auditService handles audit log recording.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Append records an audit event in tx. A failure here fails the enclosing
// mutation: a change without its audit record must not commit.
func (s *auditService) Append(tx *gorm.DB, entry AuditEntry) (*models.AuditLog, error) {
	if !entry.Action.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown audit action")
	}
	if entry.ActorID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	actor, err := toJSON(entry.ActorSnapshot)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	before, err := toJSON(entry.Before)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	after, err := toJSON(entry.After)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	record := &models.AuditLog{
		TransactionID: entry.TransactionID,
		ActorID:       entry.ActorID,
		ActorSnapshot: actor,
		Action:        entry.Action,
		PayloadBefore: before,
		PayloadAfter:  after,
		Reason:        entry.Reason,
	}
	if err := tx.Create(record).Error; err != nil {
		logger.Get().Errorw("failed to create audit log entry",
			"error", err,
			"actor_id", entry.ActorID,
			"action", entry.Action,
			"transaction_id", entry.TransactionID,
		)
		return nil, persistenceError(err)
	}
	return record, nil
}

// GetAuditTrail retrieves a paginated, filtered slice of the audit trail,
// newest first.
func (s *auditService) GetAuditTrail(filter AuditFilter, page pagination.PageRequest) (*pagination.PageResponse[models.AuditLog], error) {
	if filter.Action != "" && !filter.Action.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown audit action")
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, apperrors.ErrInvalidDateRange
	}

	result, err := pagination.Find[models.AuditLog](
		applyAuditFilters(s.db.Model(&models.AuditLog{}), filter), page, "created_at DESC, id DESC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

func applyAuditFilters(q *gorm.DB, f AuditFilter) *gorm.DB {
	if f.TransactionID != "" {
		q = q.Where("transaction_id = ?", f.TransactionID)
	}
	if f.ActorID != "" {
		q = q.Where("actor_id = ?", f.ActorID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	return q
}
