package model

import "time"

// AuditEntry is one append-only "actor did action at time" record.
// ActorID is nil for system actions or when the user row was removed.
type AuditEntry struct {
	ID        uint64    `json:"id"`                   // audit_entries.id
	ActorID   *uint64   `json:"actor_id"`             // audit_entries.actor_id (nullable)
	ActorName string    `json:"actor_name,omitempty"` // users.name via join
	Action    string    `json:"action"`               // audit_entries.action
	CreatedAt time.Time `json:"created_at"`           // audit_entries.created_at
}
