package models

import (
	"errors"
	"time"

	"tallybook/internal/uuid"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrAuditImmutable is returned by the GORM hooks when something tries to
// update or delete an audit record.
var ErrAuditImmutable = errors.New("audit records are immutable")

// AuditAction names the kind of mutation recorded in the audit trail.
type AuditAction string

const (
	AuditActionCreate       AuditAction = "create"
	AuditActionUpdate       AuditAction = "update"
	AuditActionStatusChange AuditAction = "status_change"
	AuditActionDelete       AuditAction = "delete"
	AuditActionVoid         AuditAction = "void"
)

// Valid reports whether a is a known action.
func (a AuditAction) Valid() bool {
	switch a {
	case AuditActionCreate, AuditActionUpdate, AuditActionStatusChange, AuditActionDelete, AuditActionVoid:
		return true
	}
	return false
}

// AuditLog is an immutable before/after record of one transaction mutation.
// Snapshots are stored by value; later edits to the actor or the transaction
// never change a historical row.
type AuditLog struct {
	ID            string         `gorm:"type:uuid;primaryKey" json:"id"`
	TransactionID string         `gorm:"type:uuid;not null;index" json:"transaction_id"`
	ActorID       string         `gorm:"type:uuid;not null;index" json:"actor_id"`
	ActorSnapshot datatypes.JSON `json:"actor_snapshot"`
	Action        AuditAction    `gorm:"not null;index" json:"action"`
	PayloadBefore datatypes.JSON `json:"payload_before,omitempty"`
	PayloadAfter  datatypes.JSON `json:"payload_after,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;index" json:"created_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New()
	}
	return nil
}

// BeforeUpdate rejects edits of the audit trail.
func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error { return ErrAuditImmutable }

// BeforeDelete rejects removal of audit records.
func (a *AuditLog) BeforeDelete(tx *gorm.DB) error { return ErrAuditImmutable }
