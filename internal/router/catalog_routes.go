package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/labdesk/internal/middleware"
	"github.com/iliyamo/labdesk/internal/model"
)

// registerCatalog exposes doctors and tests. Reads are open to every
// signed-in user and cached; writes are master only and purge the cache.
func registerCatalog(v1 *echo.Group, d Deps) {
	cached := middleware.NewRedisCache(d.Cache, d.Redis, d.Log)
	v1.GET("/doctors", d.Catalog.ListDoctors, cached)
	v1.GET("/tests", d.Catalog.ListTests, cached)
	v1.GET("/tests/:id/parameters", d.Catalog.Parameters, cached)

	write := []echo.MiddlewareFunc{
		middleware.RequireRole(model.RoleMaster),
		middleware.InvalidateCache(d.Cache, d.Redis, d.Log),
	}
	v1.POST("/doctors", d.Catalog.CreateDoctor, write...)
	v1.POST("/tests", d.Catalog.CreateTest, write...)
	v1.POST("/tests/:id/parameters", d.Catalog.CreateParameter, write...)
}
