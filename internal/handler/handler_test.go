package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/trip-reservation/internal/handler"
	"github.com/iliyamo/trip-reservation/internal/middleware"
	"github.com/iliyamo/trip-reservation/internal/model"
	"github.com/iliyamo/trip-reservation/internal/service"
)

// mockBooker is a test double for handler.Booker. Set only the method
// fields your test needs.
type mockBooker struct {
	book   func(ctx context.Context, actorID uint64, req service.BookingRequest) (*service.BookingResult, error)
	edit   func(ctx context.Context, actorID, id uint64, req service.BookingRequest) (*service.BookingResult, error)
	cancel func(ctx context.Context, actorID, id uint64) (*service.BookingResult, error)
	list   func(ctx context.Context) ([]model.ReservationDetail, error)
	get    func(ctx context.Context, id uint64) (*model.Reservation, error)
	send   func(ctx context.Context, actorID, clientID uint64) error
}

func (m *mockBooker) Book(ctx context.Context, actorID uint64, req service.BookingRequest) (*service.BookingResult, error) {
	return m.book(ctx, actorID, req)
}
func (m *mockBooker) Edit(ctx context.Context, actorID, id uint64, req service.BookingRequest) (*service.BookingResult, error) {
	return m.edit(ctx, actorID, id, req)
}
func (m *mockBooker) Cancel(ctx context.Context, actorID, id uint64) (*service.BookingResult, error) {
	return m.cancel(ctx, actorID, id)
}
func (m *mockBooker) List(ctx context.Context) ([]model.ReservationDetail, error) {
	return m.list(ctx)
}
func (m *mockBooker) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	return m.get(ctx, id)
}
func (m *mockBooker) SendItinerary(ctx context.Context, actorID, clientID uint64) error {
	return m.send(ctx, actorID, clientID)
}

var _ handler.Booker = (*mockBooker)(nil)

// ---- helpers ---------------------------------------------------------------

// as authenticates every request as user 7 with the given role.
func as(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.CtxUserID, uint64(7))
			c.Set(middleware.CtxRole, role)
			return next(c)
		}
	}
}

func newReservationServer(b handler.Booker) *echo.Echo {
	e := echo.New()
	h := handler.NewReservationHandler(b)
	g := e.Group("/v1/reservations", as(model.RoleOperator))
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("", h.Create)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/email/:clientId", h.SendItinerary)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

// ---- reservations ----------------------------------------------------------

func TestReservationCreate(t *testing.T) {
	var got service.BookingRequest
	var actor uint64
	b := &mockBooker{book: func(_ context.Context, a uint64, req service.BookingRequest) (*service.BookingResult, error) {
		got, actor = req, a
		return &service.BookingResult{
			Reservation: model.Reservation{ID: 12, ClientID: req.ClientID, TripID: req.TripID, PartySize: req.PartySize, TotalPriceCents: 9000},
			Trip:        model.Trip{ID: req.TripID, Capacity: 10, SeatsAvailable: 7},
		}, nil
	}}

	rec := do(t, newReservationServer(b), http.MethodPost, "/v1/reservations", `{"client_id":1,"trip_id":2,"party_size":3}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, service.BookingRequest{ClientID: 1, TripID: 2, PartySize: 3}, got)
	assert.Equal(t, uint64(7), actor)

	body := decode(t, rec)
	assert.EqualValues(t, 12, body["reservation"].(map[string]any)["id"])
	assert.EqualValues(t, 7, body["trip"].(map[string]any)["seats_available"])
}

func TestReservationErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", fmt.Errorf("%w: party_size must be greater than 0", model.ErrValidation), http.StatusBadRequest, "validation_failed"},
		{"invalid reference", fmt.Errorf("%w: client 9", model.ErrInvalidReference), http.StatusUnprocessableEntity, "invalid_reference"},
		{"insufficient", fmt.Errorf("%w: 1 left", model.ErrInsufficientCapacity), http.StatusConflict, "insufficient_capacity"},
		{"not found", fmt.Errorf("reservation 3: %w", model.ErrNotFound), http.StatusNotFound, "not_found"},
		{"transient", fmt.Errorf("%w: deadlock", model.ErrTransientConflict), http.StatusServiceUnavailable, "transient_conflict"},
		{"persistence", fmt.Errorf("%w: book", model.ErrPersistence), http.StatusInternalServerError, "persistence_failure"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "persistence_failure"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := &mockBooker{edit: func(context.Context, uint64, uint64, service.BookingRequest) (*service.BookingResult, error) {
				return nil, tc.err
			}}
			rec := do(t, newReservationServer(b), http.MethodPut, "/v1/reservations/3", `{"client_id":1,"trip_id":2,"party_size":1}`)
			assert.Equal(t, tc.wantStatus, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tc.wantCode, body["error"])
			if tc.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "internal error", body["message"])
			}
			if tc.wantCode == "transient_conflict" {
				assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestReservationBadPath(t *testing.T) {
	b := &mockBooker{}
	rec := do(t, newReservationServer(b), http.MethodDelete, "/v1/reservations/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, newReservationServer(b), http.MethodPost, "/v1/reservations", `{"client_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReservationDelete(t *testing.T) {
	b := &mockBooker{cancel: func(_ context.Context, _ uint64, id uint64) (*service.BookingResult, error) {
		return &service.BookingResult{Reservation: model.Reservation{ID: id, PartySize: 2}, Trip: model.Trip{ID: 4, SeatsAvailable: 10}}, nil
	}}
	rec := do(t, newReservationServer(b), http.MethodDelete, "/v1/reservations/5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 5, decode(t, rec)["reservation"].(map[string]any)["id"])
}

func TestSendItinerary(t *testing.T) {
	var gotClient uint64
	b := &mockBooker{send: func(_ context.Context, _ uint64, clientID uint64) error {
		gotClient = clientID
		return nil
	}}
	rec := do(t, newReservationServer(b), http.MethodPost, "/v1/reservations/email/42", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, uint64(42), gotClient)
}

func TestReservationList(t *testing.T) {
	b := &mockBooker{list: func(context.Context) ([]model.ReservationDetail, error) {
		return []model.ReservationDetail{{Reservation: model.Reservation{ID: 1}}, {Reservation: model.Reservation{ID: 2}}}, nil
	}}
	rec := do(t, newReservationServer(b), http.MethodGet, "/v1/reservations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out []model.ReservationDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out, 2)
}

func TestReservationGet(t *testing.T) {
	b := &mockBooker{get: func(_ context.Context, id uint64) (*model.Reservation, error) {
		if id != 3 {
			return nil, fmt.Errorf("reservation %d: %w", id, model.ErrNotFound)
		}
		return &model.Reservation{ID: 3, TripID: 10, PartySize: 2}, nil
	}}
	e := newReservationServer(b)

	rec := do(t, e, http.MethodGet, "/v1/reservations/3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode(t, rec)["party_size"])

	assert.Equal(t, http.StatusNotFound, do(t, e, http.MethodGet, "/v1/reservations/4", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, e, http.MethodGet, "/v1/reservations/0", "").Code)
}

// ---- trips -----------------------------------------------------------------

type mockTrips struct {
	created service.TripInput
	err     error
}

func (m *mockTrips) Create(_ context.Context, in service.TripInput) (*model.Trip, error) {
	m.created = in
	if m.err != nil {
		return nil, m.err
	}
	return &model.Trip{ID: 1, Description: in.Description, DepartureAt: in.DepartureAt, Capacity: in.Capacity, SeatsAvailable: in.Capacity}, nil
}
func (m *mockTrips) Get(context.Context, uint64) (*model.Trip, error) { return nil, model.ErrNotFound }
func (m *mockTrips) List(context.Context) ([]model.Trip, error)      { return []model.Trip{}, nil }
func (m *mockTrips) Update(context.Context, uint64, service.TripInput) (*model.Trip, error) {
	return nil, m.err
}
func (m *mockTrips) Delete(context.Context, uint64) error { return m.err }

var _ handler.TripStore = (*mockTrips)(nil)

func newTripServer(s handler.TripStore) *echo.Echo {
	e := echo.New()
	h := handler.NewTripHandler(s)
	e.GET("/v1/trips/:id", h.Get)
	e.POST("/v1/trips", h.Create)
	e.DELETE("/v1/trips/:id", h.Delete)
	return e
}

func TestTripCreate_AcceptsBareDate(t *testing.T) {
	m := &mockTrips{}
	rec := do(t, newTripServer(m), http.MethodPost, "/v1/trips",
		`{"description":"Serra da Estrela","departure_at":"2026-12-01","unit_price_cents":8000,"capacity":20}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), m.created.DepartureAt)
	assert.Equal(t, 20, m.created.Capacity)
}

func TestTripCreate_BadTimestamp(t *testing.T) {
	rec := do(t, newTripServer(&mockTrips{}), http.MethodPost, "/v1/trips",
		`{"description":"Serra","departure_at":"next tuesday","capacity":2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTripDelete(t *testing.T) {
	rec := do(t, newTripServer(&mockTrips{}), http.MethodDelete, "/v1/trips/3", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, newTripServer(&mockTrips{err: fmt.Errorf("%w: trip 3", model.ErrConflict)}), http.MethodDelete, "/v1/trips/3", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTripGet_NotFound(t *testing.T) {
	rec := do(t, newTripServer(&mockTrips{}), http.MethodGet, "/v1/trips/3", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
