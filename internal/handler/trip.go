package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-reservation/internal/model"
	"github.com/iliyamo/trip-reservation/internal/service"
)

// TripStore is the trip directory as seen by the HTTP layer.
type TripStore interface {
	Create(ctx context.Context, in service.TripInput) (*model.Trip, error)
	Get(ctx context.Context, id uint64) (*model.Trip, error)
	List(ctx context.Context) ([]model.Trip, error)
	Update(ctx context.Context, id uint64, in service.TripInput) (*model.Trip, error)
	Delete(ctx context.Context, id uint64) error
}

var _ TripStore = (*service.TripService)(nil)

// TripHandler serves /v1/trips.
type TripHandler struct {
	Trips TripStore
}

// NewTripHandler creates a TripHandler.
func NewTripHandler(t TripStore) *TripHandler { return &TripHandler{Trips: t} }

type tripReq struct {
	Description    string    `json:"description"`
	DepartureAt    Timestamp `json:"departure_at"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Capacity       int       `json:"capacity"`
}

func (r tripReq) input() service.TripInput {
	return service.TripInput{
		Description:    r.Description,
		DepartureAt:    r.DepartureAt.Time,
		UnitPriceCents: r.UnitPriceCents,
		Capacity:       r.Capacity,
	}
}

// List handles GET /v1/trips.
func (h *TripHandler) List(c echo.Context) error {
	out, err := h.Trips.List(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /v1/trips/:id.
func (h *TripHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	t, err := h.Trips.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// Create handles POST /v1/trips. departure_at may be a bare date.
func (h *TripHandler) Create(c echo.Context) error {
	var req tripReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	t, err := h.Trips.Create(c.Request().Context(), req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// Update handles PUT /v1/trips/:id.
func (h *TripHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req tripReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	t, err := h.Trips.Update(c.Request().Context(), id, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// Delete handles DELETE /v1/trips/:id. Trips with reservations are a 409.
func (h *TripHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.Trips.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
