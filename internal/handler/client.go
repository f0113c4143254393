package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-reservation/internal/model"
	"github.com/iliyamo/trip-reservation/internal/service"
)

// ClientStore is the client directory as seen by the HTTP layer.
type ClientStore interface {
	Create(ctx context.Context, in service.ClientInput) (*model.Client, error)
	Get(ctx context.Context, id uint64) (*model.Client, error)
	List(ctx context.Context) ([]model.Client, error)
	Update(ctx context.Context, id uint64, in service.ClientInput) (*model.Client, error)
	Delete(ctx context.Context, id uint64) error
}

var _ ClientStore = (*service.ClientService)(nil)

// ClientHandler serves /v1/clients.
type ClientHandler struct {
	Clients ClientStore
}

// NewClientHandler creates a ClientHandler.
func NewClientHandler(s ClientStore) *ClientHandler { return &ClientHandler{Clients: s} }

// List handles GET /v1/clients.
func (h *ClientHandler) List(c echo.Context) error {
	out, err := h.Clients.List(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /v1/clients/:id.
func (h *ClientHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	cl, err := h.Clients.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cl)
}

// Create handles POST /v1/clients.
func (h *ClientHandler) Create(c echo.Context) error {
	var in service.ClientInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	cl, err := h.Clients.Create(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, cl)
}

// Update handles PUT /v1/clients/:id.
func (h *ClientHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	var in service.ClientInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	cl, err := h.Clients.Update(c.Request().Context(), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cl)
}

// Delete handles DELETE /v1/clients/:id. Clients with reservations are a 409.
func (h *ClientHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.Clients.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
