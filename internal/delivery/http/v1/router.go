package v1

import (
	"net/http"
	"strconv"
	"time"

	"go-dishlens-backend/config"
	"go-dishlens-backend/internal/authstate"
	"go-dishlens-backend/internal/delivery/http/middleware"
	"go-dishlens-backend/internal/delivery/http/response"
	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/redis"
	"go-dishlens-backend/pkg/security"
	"go-dishlens-backend/pkg/supabase"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type RouterDeps struct {
	AuthUC    domain.AuthUsecase
	ClientUC  domain.ClientUsecase
	PackageUC domain.PackageUsecase
	DishUC    domain.DishUsecase
	LeadUC    domain.LeadUsecase
	PaymentUC domain.PaymentUsecase

	Registry     *authstate.Registry
	AdminCache   *security.AdminSessionCache
	JWKSProvider *supabase.JWKSProvider
	Supabase     *supabase.Client
	Config       *config.Config
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	cfg := deps.Config
	window := time.Duration(cfg.RateLimitWindowSeconds) * time.Second

	// Global Middlewares
	r.Use(middleware.CORSMiddleware(cfg.FrontendURL)) // CORS must be first!
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.RateLimitMiddleware(middleware.GlobalRateLimitConfig(cfg.RateLimitGlobalThreshold, window)))
	r.Use(middleware.ErrorHandler())

	v1 := r.Group("/v1")

	v1.GET("/health", func(c *gin.Context) {
		status := gin.H{
			"redis":    redis.IsAvailable(),
			"supabase": deps.Supabase.CheckHealth(c.Request.Context()) == nil,
		}
		response.Success(c, http.StatusOK, "System operational", status)
	})

	// Swagger
	v1.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	loginLimiter := middleware.RateLimitMiddleware(middleware.LoginRateLimitConfig(cfg.RateLimitLoginThreshold, window))

	guards := middleware.NewGuards(deps.JWKSProvider, cfg, deps.Registry, deps.AdminCache)

	// API-style protection: JSON 401, no redirects.
	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(deps.JWKSProvider, cfg, deps.Registry))

	// Browser-facing dashboard routes: redirect chains per role. Staff
	// and admin routes carry a prefix so customer paths like
	// /clients/me never collide with parameterized staff paths.
	authed := v1.Group("")
	authed.Use(guards.RequireAuth())

	staff := v1.Group("/staff")
	staff.Use(guards.RequireEditor())

	admin := v1.Group("/admin")
	admin.Use(guards.RequireAdmin())

	// Login page gates: the frontend asks before rendering a login
	// form, and an already-authenticated visitor gets bounced to their
	// dashboard instead.
	gate := func(c *gin.Context) {
		response.Success(c, http.StatusOK, "Render login", nil)
	}
	v1.GET("/auth/login-gate", guards.PublicOnly(), gate)

	NewAuthHandler(v1, protected, deps.AuthUC, deps.Registry, cfg, loginLimiter)
	NewClientHandler(authed, staff, deps.ClientUC)
	NewPackageHandler(v1, admin, deps.PackageUC)
	NewDishHandler(authed, staff, deps.DishUC,
		middleware.RateLimitMiddleware(middleware.UploadRateLimitConfig()))
	NewLeadHandler(v1, staff, deps.LeadUC,
		middleware.RateLimitMiddleware(middleware.LeadRateLimitConfig()))
	NewWebhookHandler(v1, admin, deps.PaymentUC, cfg,
		middleware.RateLimitMiddleware(middleware.WebhookRateLimitConfig()))

	return r
}

func paginationParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}
