package server

import (
	"github.com/OFFIS-RIT/dishgraph/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/dishgraph/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Batch routes
	apiRoutes.POST("/batches", routes.CreateBatchHandler, middleware.Require(middleware.PermBatchCreate))
	apiRoutes.GET("/batches/:id", routes.GetBatchHandler, middleware.Require(middleware.PermBatchView, middleware.PermBatchCreate))

	// Graph routes
	apiRoutes.GET("/entities/resolve", routes.ResolveEntityHandler, middleware.Require(middleware.PermGraphView))
	apiRoutes.GET("/entities/:id", routes.GetEntityHandler, middleware.Require(middleware.PermGraphView))
	apiRoutes.GET("/restaurants/:id/connections", routes.GetRestaurantConnectionsHandler, middleware.Require(middleware.PermGraphView))
	apiRoutes.GET("/connections/:id/mentions", routes.GetConnectionMentionsHandler, middleware.Require(middleware.PermGraphView))
}
