package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rl1809/shop-order/internal/core/domain"
	"github.com/rl1809/shop-order/internal/core/service"
)

type Response struct {
	Success bool       `json:"success"`
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func success(c echo.Context, data any, message string) error {
	return c.JSON(http.StatusOK, Response{
		Success: true,
		Code:    http.StatusOK,
		Message: message,
		Data:    data,
	})
}

func failure(c echo.Context, status int, code, message string) error {
	return c.JSON(status, Response{
		Success: false,
		Code:    status,
		Message: message,
		Error:   &ErrorInfo{Code: code},
	})
}

func unauthorized(c echo.Context, message string) error {
	return failure(c, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

// errorKind maps a service error to its HTTP status, error code and a message
// safe to show to the caller.
func errorKind(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "not found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict, "INSUFFICIENT_STOCK", "sold out"
	case errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict, "DUPLICATE_REQUEST", "duplicate request"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, "INVALID_QUANTITY", "order quantity must be between 1 and 99"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_ARGUMENT", "invalid argument"
	case errors.Is(err, domain.ErrImageInconsistency):
		return http.StatusInternalServerError, "IMAGE_INCONSISTENCY", "internal error"
	default:
		return http.StatusInternalServerError, "INTERNAL", "internal error"
	}
}

func serviceError(c echo.Context, err error) error {
	status, code, message := errorKind(err)
	if errors.Is(err, domain.ErrInsufficientStock) {
		// the wrapped message carries the available stock
		message = err.Error()
	}
	return failure(c, status, code, message)
}
