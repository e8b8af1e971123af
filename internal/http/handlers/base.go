// README: Shared handler plumbing: error-to-status mapping and the
// principal helper. Handlers stay thin; all rules live in the services.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"campusride/internal/http/middleware"
	"campusride/internal/identity"
	"campusride/internal/modules/account"
	"campusride/internal/modules/matching"
	"campusride/internal/modules/payment"
	"campusride/internal/modules/ride"
)

func respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ride.ErrNotFound), errors.Is(err, account.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, matching.ErrActiveRide):
		c.JSON(http.StatusConflict, gin.H{"error": "rider already has an active ride"})
	case errors.Is(err, matching.ErrStaleRequest):
		c.JSON(http.StatusConflict, gin.H{"error": "ride request no longer open"})
	case errors.Is(err, ride.ErrAlreadyRated):
		c.JSON(http.StatusConflict, gin.H{"error": "already rated"})
	case errors.Is(err, ride.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ride.ErrOTPMismatch):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "otp mismatch"})
	case errors.Is(err, payment.ErrSignatureInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "payment signature invalid"})
	case errors.Is(err, ride.ErrForbidden), errors.Is(err, matching.ErrIneligibleCaptain):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ride.ErrBadRequest), errors.Is(err, matching.ErrBadRequest), errors.Is(err, payment.ErrNoOrder):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, matching.ErrDependency):
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream dependency failed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func principal(c *gin.Context) (identity.Principal, bool) {
	p, ok := middleware.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	}
	return p, ok
}
