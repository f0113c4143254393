// Package handler holds the echo HTTP handlers. Handlers bind and parse the
// request, call one service method and translate its error kind into a
// status code.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-reservation/internal/middleware"
	"github.com/iliyamo/trip-reservation/internal/model"
)

var statusByCode = map[string]int{
	"validation_failed":     http.StatusBadRequest,
	"invalid_reference":     http.StatusUnprocessableEntity,
	"insufficient_capacity": http.StatusConflict,
	"conflict":              http.StatusConflict,
	"not_found":             http.StatusNotFound,
	"transient_conflict":    http.StatusServiceUnavailable,
	"unauthorized":          http.StatusUnauthorized,
	"forbidden":             http.StatusForbidden,
	"persistence_failure":   http.StatusInternalServerError,
}

// retryAfterSeconds is advertised on transient conflicts.
const retryAfterSeconds = 1

// respondError writes {"error": code, "message": detail}. Persistence
// failures were already logged by the service and get a generic message.
func respondError(c echo.Context, err error) error {
	code := model.ErrorCode(err)
	status := statusByCode[code]
	msg := err.Error()
	switch code {
	case "persistence_failure":
		msg = "internal error"
	case "transient_conflict":
		c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	return c.JSON(status, echo.Map{"error": code, "message": msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed", "message": msg})
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// getUserID returns the authenticated caller set by JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	if id := middleware.UserID(c); id != 0 {
		return id, nil
	}
	return 0, errors.New("invalid user_id in context")
}

// Timestamp is a time that also accepts a bare date ("2026-03-01") on
// input. It marshals as RFC 3339.
type Timestamp struct{ time.Time }

// UnmarshalJSON accepts RFC 3339, a space or T separated local time, or a
// bare date. All are read as UTC.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("time must be a string")
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v.UTC()
			return nil
		}
	}
	return errors.New("invalid time " + strconv.Quote(s))
}
