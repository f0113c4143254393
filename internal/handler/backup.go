package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-reservation/internal/model"
	"github.com/iliyamo/trip-reservation/internal/service"
)

// Backups exports and restores the whole dataset.
type Backups interface {
	Export(ctx context.Context) (*model.Snapshot, error)
	Restore(ctx context.Context, actorID uint64, snap *model.Snapshot) error
}

var _ Backups = (*service.BackupService)(nil)

// BackupHandler serves the ADMIN-only /v1/system routes.
type BackupHandler struct {
	Backups Backups
}

// NewBackupHandler creates a BackupHandler.
func NewBackupHandler(b Backups) *BackupHandler { return &BackupHandler{Backups: b} }

// Backup returns the snapshot as a downloadable JSON file.
func (h *BackupHandler) Backup(c echo.Context) error {
	snap, err := h.Backups.Export(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="backup-%s.json"`, snap.GeneratedAt.Format("20060102T150405Z")))
	return c.JSONPretty(http.StatusOK, snap, "  ")
}

// Restore replaces the dataset with the snapshot in the request body.
func (h *BackupHandler) Restore(c echo.Context) error {
	actor, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var snap model.Snapshot
	if err := c.Bind(&snap); err != nil {
		return badRequest(c, "invalid snapshot")
	}
	if err := h.Backups.Restore(c.Request().Context(), actor, &snap); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":      "data restored",
		"users":        len(snap.Users),
		"clients":      len(snap.Clients),
		"trips":        len(snap.Trips),
		"reservations": len(snap.Reservations),
	})
}
