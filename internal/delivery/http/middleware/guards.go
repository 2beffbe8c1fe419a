package middleware

import (
	"net/http"
	"net/url"
	"strconv"

	"go-dishlens-backend/config"
	"go-dishlens-backend/internal/authstate"
	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/security"
	"go-dishlens-backend/pkg/supabase"

	"github.com/gin-gonic/gin"
)

const settleRetrySeconds = 2

// Guards are the route-protection middlewares backing the dashboard
// routes. Unlike AuthMiddleware they answer browsers: failures redirect
// to the frontend login pages with the original destination preserved,
// and an identity that is still reconciling gets a retryable 503
// instead of a premature verdict.
type Guards struct {
	jwks       *supabase.JWKSProvider
	cfg        *config.Config
	registry   *authstate.Registry
	adminCache *security.AdminSessionCache
}

func NewGuards(jwks *supabase.JWKSProvider, cfg *config.Config, registry *authstate.Registry, adminCache *security.AdminSessionCache) *Guards {
	return &Guards{
		jwks:       jwks,
		cfg:        cfg,
		registry:   registry,
		adminCache: adminCache,
	}
}

// RequireAuth admits any authenticated caller. Anonymous requests are
// redirected to the customer login page.
func (g *Guards) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := authenticate(c, g.jwks, g.cfg, g.registry)
		if err != nil {
			g.redirectToLogin(c, "/login")
			return
		}
		if g.stillSettling(c, id) {
			return
		}
		id.install(c)
		c.Next()
	}
}

// RequireAdmin admits admins only. Anonymous callers go to the admin
// login page; authenticated non-admins get the unauthorized page. When
// the caller's state machine is degraded the recent-admin cache may
// vouch for them; every such grant is audit logged.
func (g *Guards) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := authenticate(c, g.jwks, g.cfg, g.registry)
		if err != nil {
			g.redirectToLogin(c, "/admin-login")
			return
		}
		if g.stillSettling(c, id) {
			return
		}
		if id.Role != domain.RoleAdmin && !g.degradedAdminGrant(c, id) {
			g.redirectUnauthorized(c, id)
			return
		}
		id.install(c)
		c.Next()
	}
}

// RequireEditor admits editors and admins.
func (g *Guards) RequireEditor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := authenticate(c, g.jwks, g.cfg, g.registry)
		if err != nil {
			g.redirectToLogin(c, "/login")
			return
		}
		if g.stillSettling(c, id) {
			return
		}
		if id.Role != domain.RoleEditor && id.Role != domain.RoleAdmin {
			g.redirectUnauthorized(c, id)
			return
		}
		id.install(c)
		c.Next()
	}
}

// PublicOnly protects the login pages themselves: an already
// authenticated caller is bounced to their dashboard instead of seeing
// the form again. Anonymous callers pass through.
func (g *Guards) PublicOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := authenticate(c, g.jwks, g.cfg, g.registry)
		if err != nil {
			c.Next()
			return
		}
		// A settling identity is still an identity; do not flash the
		// login form at someone who is logged in.
		if g.stillSettling(c, id) {
			return
		}
		c.Redirect(http.StatusFound, g.cfg.FrontendURL+dashboardPath(id.Role))
		c.Abort()
	}
}

// stillSettling answers reconciliation-in-progress with a retryable
// 503 so the client polls instead of receiving a wrong redirect. A
// degraded snapshot is settled: timeouts force a terminal verdict.
func (g *Guards) stillSettling(c *gin.Context, id *Identity) bool {
	snap := id.Snapshot
	if snap == nil {
		return false
	}
	if snap.Resolution == authstate.ResolutionPending || !snap.Initialized {
		c.Header("Retry-After", strconv.Itoa(settleRetrySeconds))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "Session is still being verified. Retry shortly.",
		})
		c.Abort()
		return true
	}
	return false
}

// degradedAdminGrant applies the availability-over-consistency
// fallback: when role resolution was forced by a timeout, a user the
// cache has recently seen as admin keeps admin access rather than
// being locked out by an outage.
func (g *Guards) degradedAdminGrant(c *gin.Context, id *Identity) bool {
	if id.Snapshot == nil || id.Snapshot.Resolution != authstate.ResolutionDegraded {
		return false
	}
	if g.adminCache == nil || !g.adminCache.Check(c.Request.Context(), id.UserID) {
		return false
	}
	if audit := security.Default(); audit != nil {
		audit.Log(security.Event{
			Event:        security.EventDegradedAdminGrant,
			SubjectType:  "user_id",
			SubjectValue: security.HashSubject(id.UserID),
			IP:           c.ClientIP(),
			RequestID:    requestIDFrom(c),
			Details:      map[string]interface{}{"path": c.FullPath()},
		})
	}
	id.Role = domain.RoleAdmin
	return true
}

func (g *Guards) redirectToLogin(c *gin.Context, loginPath string) {
	target := g.cfg.FrontendURL + loginPath + "?redirect=" + url.QueryEscape(c.Request.URL.RequestURI())
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

// redirectUnauthorized bounces an authenticated caller whose role does
// not cover the route. An authenticated identity probing routes above
// its role is worth an audit entry.
func (g *Guards) redirectUnauthorized(c *gin.Context, id *Identity) {
	if audit := security.Default(); audit != nil {
		audit.Log(security.Event{
			Event:        security.EventUnauthorizedAccess,
			SubjectType:  "user_id",
			SubjectValue: security.HashSubject(id.UserID),
			IP:           c.ClientIP(),
			UserAgent:    c.GetHeader("User-Agent"),
			RequestID:    requestIDFrom(c),
			Details: map[string]interface{}{
				"path": c.Request.URL.Path,
				"role": string(id.Role),
			},
		})
	}
	c.Redirect(http.StatusFound, g.cfg.FrontendURL+"/unauthorized")
	c.Abort()
}

func dashboardPath(role domain.Role) string {
	switch role {
	case domain.RoleAdmin:
		return "/admin/dashboard"
	case domain.RoleEditor:
		return "/editor/dashboard"
	default:
		return "/customer/dashboard"
	}
}

func requestIDFrom(c *gin.Context) string {
	v, _ := c.Get("RequestID")
	s, _ := v.(string)
	return s
}
