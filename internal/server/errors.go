// Package server provides the HTTP API surface of the auth gateway.
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/authgw/internal/auth/token"
	"github.com/vyrodovalexey/authgw/internal/store"
)

// Response detail messages. Clients match on these strings, so they are
// part of the API contract.
const (
	detailInvalidCredentials = "Invalid username or password"
	detailTokenExpired       = "Token has expired"
	detailTokenInvalid       = "Invalid token"
	detailUserNotFound       = "User not found"
	detailDuplicateUser      = "Username or email already registered"
	detailInternalError      = "Internal server error"
)

// Auth failure kinds used as metric label values.
const (
	failureInvalidCredentials = "invalid_credentials"
	failureTokenExpired       = "token_expired"
	failureTokenInvalid       = "token_invalid"
	failureUserNotFound       = "user_not_found"
)

// abortWithDetail writes a JSON error body in the {"detail": ...} shape
// shared by every error response.
func abortWithDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

// abortWithError maps a domain error onto its HTTP status and detail.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		abortWithDetail(c, http.StatusNotFound, detailUserNotFound)
	case errors.Is(err, store.ErrDuplicateUser):
		abortWithDetail(c, http.StatusConflict, detailDuplicateUser)
	case errors.Is(err, token.ErrTokenExpired):
		abortWithDetail(c, http.StatusUnauthorized, detailTokenExpired)
	case errors.Is(err, token.ErrTokenInvalid), errors.Is(err, token.ErrMissingSubject):
		abortWithDetail(c, http.StatusUnauthorized, detailTokenInvalid)
	default:
		abortWithDetail(c, http.StatusInternalServerError, detailInternalError)
	}
}
