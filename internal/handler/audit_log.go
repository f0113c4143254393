package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-reservation/internal/model"
)

// AuditReader lists audit entries, newest first.
type AuditReader interface {
	List(ctx context.Context, limit int) ([]model.AuditEntry, error)
}

// AuditLogHandler serves GET /v1/logs?limit=N.
type AuditLogHandler struct {
	Logs AuditReader
}

// NewAuditLogHandler creates an AuditLogHandler.
func NewAuditLogHandler(r AuditReader) *AuditLogHandler { return &AuditLogHandler{Logs: r} }

// List returns up to ?limit entries. 0 or no limit uses the service default.
func (h *AuditLogHandler) List(c echo.Context) error {
	limit := 0
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return badRequest(c, "invalid limit")
		}
		limit = n
	}
	out, err := h.Logs.List(c.Request().Context(), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
