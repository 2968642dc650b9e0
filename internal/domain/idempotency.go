package domain

import "time"

// Idempotency records the settlement produced by a request carrying an
// Idempotency-Key, keyed by (caller, scope, key). Scope is the route the key
// was used on, so the same key may be reused across different operations.
// A replay returns the recorded settlement instead of charging again.
type Idempotency struct {
	ID           string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Caller       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_caller_scope_key,priority:1"`
	Scope        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_caller_scope_key,priority:2"`
	Key          string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_caller_scope_key,priority:3"`
	SettlementID string    `gorm:"type:TEXT NOT NULL"`
	Status       int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt    time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
