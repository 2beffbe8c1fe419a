package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"go-dishlens-backend/config"
	"go-dishlens-backend/internal/authstate"
	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/logger"
	"go-dishlens-backend/pkg/security"
	"go-dishlens-backend/pkg/supabase"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "test-signing-secret"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Init()
	os.Exit(m.Run())
}

type noClientFetcher struct{}

func (noClientFetcher) GetByUserID(ctx context.Context, userID string) (*domain.Client, error) {
	return nil, nil
}

// pendingSource never resolves, keeping an attached machine settling.
type pendingSource struct{ events chan supabase.Event }

func (p *pendingSource) Resolve(ctx context.Context) (*supabase.Session, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (p *pendingSource) Probe(ctx context.Context) error { return nil }
func (p *pendingSource) Events() <-chan supabase.Event   { return p.events }

func testConfig() *config.Config {
	return &config.Config{
		Environment:       "debug",
		SupabaseJWTSecret: testSecret,
		FrontendURL:       "https://dishlens.app",
		AdminEmails:       []string{"boss@dishlens.app"},
	}
}

func testRegistry() *authstate.Registry {
	return authstate.NewRegistry(authstate.Config{}, noClientFetcher{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mintToken(t *testing.T, sub, email, metaRole string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"role":  "authenticated", // what Supabase actually puts here
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	if metaRole != "" {
		claims["app_metadata"] = map[string]interface{}{"role": metaRole}
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func guardedRouter(cfg *config.Config, registry *authstate.Registry) *gin.Engine {
	g := NewGuards(nil, cfg, registry, nil)
	r := gin.New()
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/dashboard", g.RequireAuth(), ok)
	r.GET("/admin/users", g.RequireAdmin(), ok)
	r.GET("/queue", g.RequireEditor(), ok)
	r.GET("/login-gate", g.PublicOnly(), ok)
	return r
}

func doGet(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGuardRedirects(t *testing.T) {
	cfg := testConfig()
	r := guardedRouter(cfg, testRegistry())

	t.Run("anonymous admin request goes to admin login", func(t *testing.T) {
		w := doGet(r, "/admin/users?from=email", "")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t,
			"https://dishlens.app/admin-login?redirect=%2Fadmin%2Fusers%3Ffrom%3Demail",
			w.Header().Get("Location"),
			"original destination survives the login roundtrip")
	})

	t.Run("anonymous dashboard request goes to customer login", func(t *testing.T) {
		w := doGet(r, "/dashboard", "")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Contains(t, w.Header().Get("Location"), "https://dishlens.app/login?redirect=")
	})

	t.Run("forged token is anonymous", func(t *testing.T) {
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "u1", "exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte("wrong-secret"))
		require.NoError(t, err)

		w := doGet(r, "/dashboard", forged)
		assert.Equal(t, http.StatusFound, w.Code)
	})

	t.Run("customer on an admin route is unauthorized, not re-prompted", func(t *testing.T) {
		w := doGet(r, "/admin/users", mintToken(t, "u1", "user@example.com", ""))
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://dishlens.app/unauthorized", w.Header().Get("Location"))
	})

	t.Run("editor passes the editor guard but not the admin guard", func(t *testing.T) {
		token := mintToken(t, "e1", "editor@dishlens.app", "editor")
		assert.Equal(t, http.StatusOK, doGet(r, "/queue", token).Code)
		assert.Equal(t, http.StatusFound, doGet(r, "/admin/users", token).Code)
	})

	t.Run("metadata admin passes the admin guard", func(t *testing.T) {
		token := mintToken(t, "a1", "ops@dishlens.app", "admin")
		assert.Equal(t, http.StatusOK, doGet(r, "/admin/users", token).Code)
	})

	t.Run("allow-listed email is admin without metadata", func(t *testing.T) {
		token := mintToken(t, "a2", "Boss@DishLens.app", "")
		assert.Equal(t, http.StatusOK, doGet(r, "/admin/users", token).Code)
	})
}

func TestPublicOnlyGate(t *testing.T) {
	cfg := testConfig()
	r := guardedRouter(cfg, testRegistry())

	t.Run("anonymous visitor sees the login page", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, doGet(r, "/login-gate", "").Code)
	})

	t.Run("authenticated customer is bounced to their dashboard", func(t *testing.T) {
		w := doGet(r, "/login-gate", mintToken(t, "u1", "user@example.com", ""))
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://dishlens.app/customer/dashboard", w.Header().Get("Location"))
	})

	t.Run("admin is bounced to the admin dashboard", func(t *testing.T) {
		w := doGet(r, "/login-gate", mintToken(t, "a1", "ops@dishlens.app", "admin"))
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://dishlens.app/admin/dashboard", w.Header().Get("Location"))
	})
}

func TestGuardSettling(t *testing.T) {
	cfg := testConfig()
	registry := testRegistry()
	r := guardedRouter(cfg, registry)

	// A machine that never settles: the session fetch hangs.
	src := &pendingSource{events: make(chan supabase.Event)}
	m := registry.Attach(context.Background(), "u1", src)
	defer m.Stop()

	w := doGet(r, "/dashboard", mintToken(t, "u1", "user@example.com", ""))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "still being verified")
}

func TestGuardUnauthorizedAudited(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	security.SetDefault(security.NewAuditLogger(zap.New(core), "test", "debug"))
	defer security.SetDefault(nil)

	r := guardedRouter(testConfig(), testRegistry())

	w := doGet(r, "/admin/users", mintToken(t, "u1", "user@example.com", ""))
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "https://dishlens.app/unauthorized", w.Header().Get("Location"))

	entries := logs.FilterField(zap.String("event", string(security.EventUnauthorizedAccess))).All()
	require.Len(t, entries, 1)

	ctx := entries[0].ContextMap()
	assert.Equal(t, security.HashSubject("u1"), ctx["subject_value"], "user id is hashed in the trail")
	details, ok := ctx["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "/admin/users", details["path"])
	assert.Equal(t, "customer", details["role"])

	// Anonymous callers are redirected to login, not audited as
	// unauthorized access.
	logs.TakeAll()
	doGet(r, "/admin/users", "")
	assert.Empty(t, logs.FilterField(zap.String("event", string(security.EventUnauthorizedAccess))).All())
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	registry := testRegistry()

	r := gin.New()
	r.GET("/api/me", AuthMiddleware(nil, cfg, registry), func(c *gin.Context) {
		// The identity must be visible through the request context, which
		// is what the usecase layer reads.
		userID, _ := c.Request.Context().Value(domain.KeyUserID).(string)
		role, _ := c.Request.Context().Value(domain.KeyUserRole).(string)
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "role": role})
	})

	t.Run("missing token is a JSON 401, never a redirect", func(t *testing.T) {
		w := doGet(r, "/api/me", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, w.Header().Get("Location"))
		assert.Contains(t, w.Body.String(), "Authentication required")
	})

	t.Run("bearer token installs the identity", func(t *testing.T) {
		w := doGet(r, "/api/me", mintToken(t, "u42", "user@example.com", ""))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"user_id":"u42"`)
		assert.Contains(t, w.Body.String(), `"role":"customer"`)
	})

	t.Run("cookie fallback works for browser clients", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: mintToken(t, "u7", "u7@example.com", "")})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"user_id":"u7"`)
	})
}
