package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/storefront-api/internal/service"
)

// respondError maps service errors to status codes. Unknown errors are reported as a
// generic 500 and attached to the context for the request logger.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"

	switch {
	case errors.Is(err, service.ErrDuplicateSKU):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrCartItemNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidCartData),
		errors.Is(err, service.ErrProductUnavailable),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrInvalidStatusTransition),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrMissingCustomerInfo):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrCheckoutFailed):
		msg = err.Error()
	}

	_ = c.Error(err)
	c.JSON(status, gin.H{"success": false, "error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}
