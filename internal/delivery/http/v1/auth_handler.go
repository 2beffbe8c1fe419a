package v1

import (
	"errors"
	"net/http"
	"strings"

	"go-dishlens-backend/config"
	"go-dishlens-backend/internal/authstate"
	"go-dishlens-backend/internal/delivery/http/response"
	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/apperror"
	"go-dishlens-backend/pkg/security"
	"go-dishlens-backend/pkg/supabase"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authUC   domain.AuthUsecase
	registry *authstate.Registry
	config   *config.Config
}

func NewAuthHandler(public *gin.RouterGroup, protected *gin.RouterGroup, authUC domain.AuthUsecase, registry *authstate.Registry, cfg *config.Config, loginLimiter gin.HandlerFunc) {
	handler := &AuthHandler{
		authUC:   authUC,
		registry: registry,
		config:   cfg,
	}

	publicAuth := public.Group("/auth")
	{
		publicAuth.POST("/login", loginLimiter, handler.Login)
		publicAuth.POST("/forgot-password", loginLimiter, handler.ForgotPassword)
	}

	protectedAuth := protected.Group("/auth")
	{
		protectedAuth.POST("/logout", handler.Logout)
		protectedAuth.GET("/me", handler.Me)
		protectedAuth.GET("/state", handler.State)
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login godoc
// @Summary      User Login
// @Description  Login with email and password via Supabase; starts the server-side session reconciliation for the user.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        login  body      LoginRequest  true  "Login Credentials"
// @Success      200    {object}  response.Response
// @Failure      400    {object}  response.Response
// @Failure      401    {object}  response.Response
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest(err.Error()))
		return
	}

	result, err := h.authUC.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == http.StatusUnauthorized {
			auditLogin(c, security.EventLoginFailed, req.Email)
		}
		c.Error(err)
		return
	}
	auditLogin(c, security.EventLoginSuccess, req.Email)

	// Browser clients authenticate via cookie; SPA clients read the
	// token from the body. HttpOnly keeps it away from page scripts.
	secure := h.config.Environment == "release"
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("auth_token", result.AccessToken, result.ExpiresIn, "/", "", secure, true)

	response.Success(c, http.StatusOK, "Login successful", result)
}

// Logout revokes the session, stops the user's state machine and
// clears the auth cookie. A failed upstream revocation still logs the
// caller out locally.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := c.GetString(string(domain.KeyUserID))

	token := c.GetHeader("Authorization")
	token = strings.TrimPrefix(token, "Bearer ")
	if token == "" {
		token, _ = c.Cookie("auth_token")
	}

	if err := h.authUC.Logout(c.Request.Context(), userID, token); err != nil {
		c.Error(err)
		return
	}

	secure := h.config.Environment == "release"
	c.SetCookie("auth_token", "", -1, "/", "", secure, true)

	response.Success(c, http.StatusOK, "Logged out", nil)
}

// auditLogin records credential outcomes. The email is hashed before
// it reaches the trail; correlation works, recovery does not.
func auditLogin(c *gin.Context, event security.EventType, email string) {
	if audit := security.Default(); audit != nil {
		reqID, _ := c.Get("RequestID")
		reqIDStr, _ := reqID.(string)
		audit.Log(security.Event{
			Event:        event,
			SubjectType:  "email",
			SubjectValue: security.HashSubject(email),
			IP:           c.ClientIP(),
			UserAgent:    c.GetHeader("User-Agent"),
			RequestID:    reqIDStr,
		})
	}
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPassword godoc
// @Summary      Request Password Reset
// @Description  Send password reset email. The response never reveals whether the email exists.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      ForgotPasswordRequest  true  "Email address"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Router       /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest(err.Error()))
		return
	}

	// Errors are swallowed upstream: email enumeration via this
	// endpoint must not be possible.
	_ = h.authUC.ForgotPassword(c.Request.Context(), req.Email)

	response.Success(c, http.StatusOK, "If an account with that email exists, a password reset link has been sent.", nil)
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString(string(domain.KeyUserID))
	user, err := h.authUC.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	response.Success(c, http.StatusOK, "User details", gin.H{
		"user": user,
		"role": c.GetString(string(domain.KeyUserRole)),
	})
}

// State returns the caller's unified auth snapshot. With ?wait=1 the
// request blocks until the snapshot is terminal (resolved or degraded)
// or the request context ends, whichever first.
func (h *AuthHandler) State(c *gin.Context) {
	userID := c.GetString(string(domain.KeyUserID))

	m := h.registry.Get(userID)
	if m == nil {
		// The machine did not survive a process restart. The token is
		// still valid, so answer with a terminal snapshot built from
		// the verified identity instead of an error.
		response.Success(c, http.StatusOK, "Auth state", h.syntheticSnapshot(c, userID))
		return
	}

	var snap authstate.Snapshot
	if c.Query("wait") == "1" {
		snap = m.WaitResolved(c.Request.Context())
	} else {
		snap = m.Snapshot()
	}
	response.Success(c, http.StatusOK, "Auth state", snap)
}

func (h *AuthHandler) syntheticSnapshot(c *gin.Context, userID string) authstate.Snapshot {
	clientID, _ := c.Request.Context().Value(domain.KeyClientID).(string)
	snap := authstate.Snapshot{
		User: &supabase.User{
			ID:    userID,
			Email: c.GetString(string(domain.KeyUserEmail)),
		},
		Initialized:        true,
		IsAuthenticated:    true,
		ClientID:           clientID,
		ClientRecordStatus: authstate.RecordNotFound,
		Role:               domain.Role(c.GetString(string(domain.KeyUserRole))),
		Resolution:         authstate.ResolutionResolved,
	}
	if clientID != "" {
		snap.ClientRecordStatus = authstate.RecordFound
		snap.HasLinkedClientRecord = true
	} else {
		snap.HasNoClientRecord = true
	}
	return snap
}
