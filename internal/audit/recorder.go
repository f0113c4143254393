// Package audit appends the audit trail from post-commit events.
package audit

import (
	"context"
	"time"

	"github.com/iliyamo/trip-reservation/internal/queue"
)

// Store appends one audit entry.
type Store interface {
	Record(ctx context.Context, actorID uint64, action string, at time.Time) error
}

// Recorder writes an audit entry for every event that carries an action.
type Recorder struct {
	store Store
}

var _ queue.Handler = (*Recorder)(nil)

// NewRecorder returns a Recorder writing to store.
func NewRecorder(store Store) *Recorder { return &Recorder{store: store} }

// Handle stores ev's action. Events without one are ignored.
func (r *Recorder) Handle(ctx context.Context, ev queue.BookingEvent) error {
	if ev.Action == "" {
		return nil
	}
	return r.store.Record(ctx, ev.ActorID, ev.Action, ev.OccurredAt)
}
