package models

import (
	"time"
)

// ChangeOperation is the kind of write a compensation undoes.
type ChangeOperation string

const (
	ChangeOperationCreate ChangeOperation = "CREATE"
	ChangeOperationUpdate ChangeOperation = "UPDATE"
	ChangeOperationDelete ChangeOperation = "DELETE"
)

// CompensationStatus tracks a journal entry through its lifecycle.
type CompensationStatus string

const (
	CompensationPending  CompensationStatus = "pending"
	CompensationResolved CompensationStatus = "resolved"
)

// Compensation is a saga journal entry written before the secondary half of a
// dual write. It holds enough of the primary's prior state to undo the
// primary write if the secondary never lands.
//
// Entries that are still pending after the write returned belong to calls
// whose rollback failed or whose process died in between; the reconciler
// picks them up from there.
type Compensation struct {
	ID            string             `gorm:"primaryKey" json:"id"`
	CorrelationID string             `gorm:"not null;index" json:"correlation_id"`
	EntityType    string             `gorm:"not null;index:idx_compensation_entity" json:"entity_type"`
	EntityID      string             `gorm:"not null;index:idx_compensation_entity" json:"entity_id"`
	Operation     ChangeOperation    `gorm:"not null" json:"operation"`
	Status        CompensationStatus `gorm:"not null;index" json:"status"`
	// Prior is the primary's state before the write; empty for creates.
	Prior        JSONMap    `gorm:"type:jsonb" json:"prior,omitempty"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	Attempts     int        `gorm:"default:0" json:"attempts"`
}

// TableName returns the table name for the compensation journal
func (Compensation) TableName() string {
	return "pending_compensations"
}

// IsResolved returns true once the entry no longer needs attention
func (c *Compensation) IsResolved() bool {
	return c.Status == CompensationResolved
}

// MarkResolved marks the entry as settled
func (c *Compensation) MarkResolved(at time.Time) {
	c.Status = CompensationResolved
	c.ResolvedAt = &at
	c.ErrorMessage = ""
}

// MarkError records a failed compensation attempt
func (c *Compensation) MarkError(errorMsg string) {
	c.ErrorMessage = errorMsg
	c.Attempts++
}
