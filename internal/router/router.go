// Package router registers the HTTP API on an echo instance.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/labdesk/internal/config"
	"github.com/iliyamo/labdesk/internal/handler"
	"github.com/iliyamo/labdesk/internal/middleware"
)

// Deps is everything the routes need. Redis may be nil, in which case rate
// limiting and response caching are disabled.
type Deps struct {
	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	Admin    *handler.AdminHandler
	Catalog  *handler.CatalogHandler
	Workflow *handler.WorkflowHandler
	Exports  *handler.ExportHandler

	Tokens   middleware.TokenParser
	Identity middleware.Identifier

	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Log       zerolog.Logger

	// CORSOrigins defaults to any origin when empty.
	CORSOrigins []string
	// BodyLimit is an echo size string such as "2M"; empty means no limit.
	BodyLimit string
}

// Register installs the global middleware and every route.
func Register(e *echo.Echo, d Deps) {
	e.Use(middleware.RequestID())
	e.Use(middleware.Recovery(d.Log))
	e.Use(middleware.Logger(d.Log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  d.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.HeaderRequestID},
		ExposeHeaders: []string{middleware.HeaderRequestID, "X-Cache", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
	}))
	if d.BodyLimit != "" {
		e.Use(echomw.BodyLimit(d.BodyLimit))
	}

	registerPublic(e, d)

	// Everything below needs a valid access token for an active user.
	v1 := e.Group("/v1",
		middleware.JWTAuth(d.Tokens),
		middleware.LoadIdentity(d.Identity),
		middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log),
	)
	v1.GET("/me", d.Auth.Me)
	v1.GET("/auth/me", d.Auth.Me)
	v1.GET("/lab", d.Admin.Lab)

	registerCatalog(v1, d)
	registerWorkflow(v1, d)
	registerAdmin(v1, d)
}

func registerPublic(e *echo.Echo, d Deps) {
	e.GET("/healthz", d.Health.Health)
	e.GET("/readyz", d.Health.Ready)

	g := e.Group("/v1")
	g.POST("/auth/login", d.Auth.Login)
	g.POST("/auth/refresh", d.Auth.Refresh)
	g.POST("/auth/logout", d.Auth.Logout)
	g.GET("/setup", d.Admin.SetupStatus)
	g.POST("/setup", d.Admin.Setup)
}
