package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/trip-reservation/internal/model"
)

// AuditLister reads the audit trail.
type AuditLister interface {
	List(ctx context.Context, limit int) ([]model.AuditEntry, error)
}

// AuditLog serves the audit trail listing.
type AuditLog struct {
	store AuditLister
	log   *zap.Logger
}

// NewAuditLog wraps the audit store for the HTTP layer.
func NewAuditLog(store AuditLister, log *zap.Logger) *AuditLog {
	return &AuditLog{store: store, log: log}
}

// List returns up to limit entries, newest first. limit is clamped to
// [1, 500] with 100 as the default.
func (a *AuditLog) List(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	switch {
	case limit <= 0:
		limit = 100
	case limit > 500:
		limit = 500
	}
	out, err := a.store.List(ctx, limit)
	if err != nil {
		return nil, classify(ctx, a.log, "list audit", err)
	}
	return out, nil
}
