package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/authgw/internal/auth/password"
	"github.com/vyrodovalexey/authgw/internal/auth/token"
	"github.com/vyrodovalexey/authgw/internal/observability"
	"github.com/vyrodovalexey/authgw/internal/store"
)

// Handlers holds the collaborators behind the API endpoints.
type Handlers struct {
	users     store.UserStore
	issuer    *token.Issuer
	validator *token.Validator
	logger    observability.Logger
	metrics   *observability.Metrics
}

// NewHandlers creates the endpoint handlers.
func NewHandlers(
	users store.UserStore,
	issuer *token.Issuer,
	validator *token.Validator,
	logger observability.Logger,
	metrics *observability.Metrics,
) *Handlers {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Handlers{
		users:     users,
		issuer:    issuer,
		validator: validator,
		logger:    logger,
		metrics:   metrics,
	}
}

// loginResponse is the token grant returned by Login.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// registerRequest is the body accepted by Register.
type registerRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Email     string `json:"email" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Login authenticates Basic credentials and returns a bearer token.
// Repeated logins inside the token validity reuse the cached token, so
// expires_in shrinks toward zero rather than resetting on each call.
func (h *Handlers) Login(c *gin.Context) {
	username, pass, ok := c.Request.BasicAuth()
	if !ok || username == "" {
		c.Header("WWW-Authenticate", `Basic realm="authgw"`)
		h.recordAuthFailure(failureInvalidCredentials)
		abortWithDetail(c, http.StatusUnauthorized, detailInvalidCredentials)
		return
	}

	user, err := h.users.FindByUsername(c.Request.Context(), username)
	if err != nil {
		h.recordAuthFailure(failureUserNotFound)
		abortWithError(c, err)
		return
	}

	if !password.Verify(pass, user.HashedPassword) {
		h.recordAuthFailure(failureInvalidCredentials)
		abortWithDetail(c, http.StatusUnauthorized, detailInvalidCredentials)
		return
	}

	accessToken, expiresIn, err := h.issuer.IssueOrReuse(c.Request.Context(), user.Username)
	if err != nil {
		h.logger.Error("token issuance failed",
			observability.String("username", user.Username),
			observability.Error(err),
		)
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(expiresIn.Seconds()),
	})
}

// Me returns the profile of the user identified by the bearer token.
func (h *Handlers) Me(c *gin.Context) {
	tokenString, ok := bearerToken(c)
	if !ok {
		h.recordAuthFailure(failureTokenInvalid)
		abortWithDetail(c, http.StatusUnauthorized, detailTokenInvalid)
		return
	}

	username, err := h.validator.Validate(tokenString)
	if err != nil {
		h.recordValidationFailure(err)
		abortWithError(c, err)
		return
	}

	user, err := h.users.FindByUsername(c.Request.Context(), username)
	if err != nil {
		h.recordAuthFailure(failureUserNotFound)
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// Register creates a new user account.
func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithDetail(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if _, err := h.users.FindByUsernameOrEmail(c.Request.Context(), req.Username, req.Email); err == nil {
		abortWithDetail(c, http.StatusConflict, detailDuplicateUser)
		return
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		h.logger.Error("password hashing failed", observability.Error(err))
		abortWithDetail(c, http.StatusInternalServerError, detailInternalError)
		return
	}

	user := &store.User{
		Username:       req.Username,
		HashedPassword: hashed,
		Email:          req.Email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
	}

	if err := h.users.Create(c.Request.Context(), user); err != nil {
		abortWithError(c, err)
		return
	}

	h.logger.Info("user registered",
		observability.String("username", user.Username),
	)

	c.JSON(http.StatusCreated, user)
}

// APIStatus reports service liveness.
func (h *Handlers) APIStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

func (h *Handlers) recordAuthFailure(kind string) {
	if h.metrics != nil {
		h.metrics.RecordAuthFailure(kind)
	}
}

func (h *Handlers) recordValidationFailure(err error) {
	if errors.Is(err, token.ErrTokenExpired) {
		h.recordAuthFailure(failureTokenExpired)
		return
	}
	h.recordAuthFailure(failureTokenInvalid)
}
