package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// DataResponse writes the envelope; statusCode is both the HTTP status and
// the body status.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, Envelope{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

// PageResponse writes a window of records with 200.
func PageResponse(c echo.Context, items interface{}, total int, window TimeRange) error {
	return DataResponse(c, http.StatusOK, Page{Items: items, Total: total, Window: window})
}

// BadRequestResponse writes 400 listing each rejected field.
func BadRequestResponse(c echo.Context, details ValidationErrors) error {
	return DataResponse(c, http.StatusBadRequest, details)
}

// ErrorResponse writes err as an AppError list. Any other error becomes a
// generic 500 so internals never reach the client.
func ErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = InternalError("something went wrong")
	}
	if appErr.Status == http.StatusTooManyRequests {
		c.Response().Header().Set("Retry-After", "1")
	}
	return DataResponse(c, appErr.Status, []*AppError{appErr})
}
