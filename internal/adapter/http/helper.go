package http

import (
	"errors"
	"net/http"
	"time"

	"library-backend/internal/domain/loan"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

func utcNow() time.Time { return time.Now().UTC() }

// writeError maps ledger error categories onto status codes. Only unclassified errors are logged.
func writeError(c echo.Context, log *logrus.Logger, err error) error {
	switch {
	case errors.Is(err, loan.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, loan.ErrConflict):
		reason, _ := loan.ReasonOf(err)
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "conflict", Reason: string(reason)})
	case errors.Is(err, loan.ErrInvalidArgument):
		resp := ErrorResponse{Error: "validation failed"}
		var ie *loan.InvalidArgumentError
		if errors.As(err, &ie) {
			resp.Details = []FieldError{{Field: ie.Field, Message: ie.Detail}}
		}
		return c.JSON(http.StatusUnprocessableEntity, resp)
	case errors.Is(err, loan.ErrUnavailable):
		log.WithError(err).WithField("path", c.Path()).Warn("ledger unavailable")
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "temporarily unavailable"})
	default:
		log.WithError(err).WithField("path", c.Path()).Error("unhandled ledger error")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// decode binds and validates req. When it returns false the response has already been written.
func decode(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	return true, nil
}

func badParam(c echo.Context, name string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid path param",
		Details: []FieldError{{Field: name, Message: "must be 32-char lowercase hex"}},
	})
}
