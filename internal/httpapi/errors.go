package httpapi

import (
	"errors"
	"net/http"

	"github.com/Andres1439/verify-cod-orders/internal/orders"
	"github.com/Andres1439/verify-cod-orders/internal/reporting"
	"github.com/Andres1439/verify-cod-orders/internal/retry"
	"github.com/Andres1439/verify-cod-orders/internal/telephony"
	"github.com/Andres1439/verify-cod-orders/pkg/logger"

	"github.com/gin-gonic/gin"
)

// writeError maps domain errors to status codes for the internal API.
// Order matters: an invalid number is also a provider error.
func writeError(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.FromGin(c).ErrorContext(c.Request.Context(), "request failed", "err", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": err.Error()})
}

func classify(err error) (int, string) {
	var pe *telephony.ProviderError
	switch {
	case errors.Is(err, orders.ErrInvalidInput), errors.Is(err, reporting.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, retry.ErrUnknownAction):
		return http.StatusBadRequest, "invalid_action"
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound, "order_not_found"
	case errors.Is(err, orders.ErrStaleOrder):
		return http.StatusGone, "order_too_old"
	case errors.Is(err, orders.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, telephony.ErrInvalidNumber):
		return http.StatusUnprocessableEntity, "invalid_number"
	case errors.As(err, &pe):
		return http.StatusBadGateway, "provider_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": msg})
}
