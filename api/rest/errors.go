package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emberforge/socialcore/social"
)

// statusFromError maps a directory error kind to an HTTP status.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, social.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, social.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, social.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, social.ErrExpired):
		return http.StatusGone
	case errors.Is(err, social.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error as JSON with the mapped status. Unknown error
// kinds are masked as a generic internal error.
func fail(c *gin.Context, err error) {
	status := statusFromError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}
