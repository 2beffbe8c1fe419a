package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go-dishlens-backend/config"
	"go-dishlens-backend/internal/authstate"
	"go-dishlens-backend/internal/delivery/http/response"
	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/logger"
	"go-dishlens-backend/pkg/supabase"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Identity is the verified caller extracted from a Supabase token.
// Snapshot is non-nil only when a reconciliation machine is running
// for the user, i.e. after a login on this process.
type Identity struct {
	UserID   string
	Email    string
	Role     domain.Role
	ClientID string
	Snapshot *authstate.Snapshot
}

// authenticate validates the access token and resolves the caller's
// role. The token's own role claim is never trusted (Supabase puts
// "authenticated" there): the role is read from the caller's machine
// when one is running, or re-derived from identity metadata after a
// server restart.
func authenticate(c *gin.Context, jwks *supabase.JWKSProvider, cfg *config.Config, registry *authstate.Registry) (*Identity, error) {
	tokenString := extractToken(c)
	if tokenString == "" {
		return nil, fmt.Errorf("no credentials")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); ok {
			if cfg.SupabaseJWTSecret == "" {
				return nil, fmt.Errorf("HS256 token received but SUPABASE_JWT_SECRET is not configured")
			}
			return []byte(cfg.SupabaseJWTSecret), nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return jwks.KeyFunc(token)
		}
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	})
	if err != nil || !token.Valid {
		logger.Log.Debug("token validation failed", "error", err)
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims")
	}
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	if sub == "" {
		return nil, fmt.Errorf("missing subject")
	}

	id := &Identity{UserID: sub, Email: email}
	if m := registry.Get(sub); m != nil {
		snap := m.Snapshot()
		id.Snapshot = &snap
		id.Role = snap.Role
		id.ClientID = snap.ClientID
	} else {
		appMeta, _ := claims["app_metadata"].(map[string]interface{})
		id.Role = authstate.DeriveRole(&supabase.User{
			ID:          sub,
			Email:       email,
			AppMetadata: appMeta,
		}, cfg.AdminEmails)
	}
	return id, nil
}

// install puts the identity where both gin handlers and the usecase
// layer can see it.
func (id *Identity) install(c *gin.Context) {
	c.Set(string(domain.KeyUserID), id.UserID)
	c.Set(string(domain.KeyUserEmail), id.Email)
	c.Set(string(domain.KeyUserRole), string(id.Role))

	ctx := context.WithValue(c.Request.Context(), domain.KeyUserID, id.UserID)
	ctx = context.WithValue(ctx, domain.KeyUserEmail, id.Email)
	ctx = context.WithValue(ctx, domain.KeyUserRole, string(id.Role))
	if id.ClientID != "" {
		ctx = context.WithValue(ctx, domain.KeyClientID, id.ClientID)
	}
	c.Request = c.Request.WithContext(ctx)
}

// AuthMiddleware is the strict API variant: missing or bad credentials
// get a JSON 401 with no redirect.
func AuthMiddleware(jwks *supabase.JWKSProvider, cfg *config.Config, registry *authstate.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := authenticate(c, jwks, cfg, registry)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "Authentication required", nil)
			c.Abort()
			return
		}
		id.install(c)
		c.Next()
	}
}

// extractToken prefers the Authorization header, then the auth_token
// cookie set at login for browser clients.
func extractToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := c.Cookie("auth_token"); err == nil {
		return cookie
	}
	return ""
}
