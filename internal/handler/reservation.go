package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-reservation/internal/model"
	"github.com/iliyamo/trip-reservation/internal/service"
)

// Booker is the booking engine as seen by the HTTP layer.
type Booker interface {
	Book(ctx context.Context, actorID uint64, req service.BookingRequest) (*service.BookingResult, error)
	Edit(ctx context.Context, actorID, id uint64, req service.BookingRequest) (*service.BookingResult, error)
	Cancel(ctx context.Context, actorID, id uint64) (*service.BookingResult, error)
	List(ctx context.Context) ([]model.ReservationDetail, error)
	Get(ctx context.Context, id uint64) (*model.Reservation, error)
	SendItinerary(ctx context.Context, actorID, clientID uint64) error
}

var _ Booker = (*service.BookingEngine)(nil)

// ReservationHandler serves /v1/reservations.
type ReservationHandler struct {
	Booking Booker
}

// NewReservationHandler creates a ReservationHandler.
func NewReservationHandler(b Booker) *ReservationHandler {
	return &ReservationHandler{Booking: b}
}

// List handles GET /v1/reservations.
func (h *ReservationHandler) List(c echo.Context) error {
	out, err := h.Booking.List(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	res, err := h.Booking.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Create handles POST /v1/reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	actor, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req service.BookingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	res, err := h.Booking.Book(c.Request().Context(), actor, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Update handles PUT /v1/reservations/:id.
func (h *ReservationHandler) Update(c echo.Context) error {
	actor, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req service.BookingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	res, err := h.Booking.Edit(c.Request().Context(), actor, id, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Delete handles DELETE /v1/reservations/:id and returns the cancelled
// reservation with the trip it released seats to.
func (h *ReservationHandler) Delete(c echo.Context) error {
	actor, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	res, err := h.Booking.Cancel(c.Request().Context(), actor, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// SendItinerary handles POST /v1/reservations/email/:clientId.
func (h *ReservationHandler) SendItinerary(c echo.Context) error {
	actor, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	clientID, err := pathID(c, "clientId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.Booking.SendItinerary(c.Request().Context(), actor, clientID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"message": "itinerary queued"})
}
