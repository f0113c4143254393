package model

import "time"

// Snapshot is a full dump of the dataset used by backup and restore.
type Snapshot struct {
	GeneratedAt  time.Time     `json:"generated_at"`
	Users        []User        `json:"users"`
	Clients      []Client      `json:"clients"`
	Trips        []Trip        `json:"trips"`
	Reservations []Reservation `json:"reservations"`
	AuditEntries []AuditEntry  `json:"audit_entries"`
}
