package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"schoolattend/internal/attendance"
	"schoolattend/internal/auth"
	"schoolattend/internal/validation"
)

// respondError maps a domain error to its status. Anything unrecognised,
// including storage failures, is a 500 with a generic message; the cause is
// attached to the context for the request logger.
func respondError(c *gin.Context, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid input", "fields": verr.Fields})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
	case errors.Is(err, auth.ErrPendingApproval):
		c.JSON(http.StatusForbidden, gin.H{"error": "Your account is pending HOD approval"})
	case errors.Is(err, auth.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
	case errors.Is(err, attendance.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong, please try again"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body: " + err.Error()})
}
