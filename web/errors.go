package web

import (
	"errors"
	"net/http"

	"github.com/deemkeen/nodelink/domain"
	"github.com/gin-gonic/gin"
)

// statusFor maps a domain error onto the HTTP status the API reports.
// Conflicts are reported as 400 because peers treat them as a bad request.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrIntegrity):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
