package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/dishgraph/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/logger"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/store"

	"github.com/labstack/echo/v4"
)

type listParams struct {
	ID    int64 `param:"id" validate:"required,min=1"`
	Limit int   `query:"limit" validate:"min=0,max=500"`
}

func bindList(c echo.Context) (*listParams, bool) {
	params := new(listParams)
	if err := c.Bind(params); err != nil {
		return nil, false
	}
	if err := c.Validate(params); err != nil {
		return nil, false
	}
	return params, true
}

// GetRestaurantConnectionsHandler lists the connections of a restaurant,
// most mentioned first.
func GetRestaurantConnectionsHandler(c echo.Context) error {
	params, ok := bindList(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	restaurant, err := app.Storage.EntityByID(ctx, params.ID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && restaurant.Type != common.EntityTypeRestaurant) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Restaurant not found"})
	}
	if err != nil {
		logger.Error("[API] Failed to load restaurant", "id", params.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	conns, err := app.Storage.RestaurantConnections(ctx, params.ID, params.Limit)
	if err != nil {
		logger.Error("[API] Failed to list connections", "restaurant", params.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if conns == nil {
		conns = []common.Connection{}
	}

	return c.JSON(http.StatusOK, conns)
}

// GetConnectionMentionsHandler lists the evidence of a connection, newest
// first.
func GetConnectionMentionsHandler(c echo.Context) error {
	params, ok := bindList(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	mentions, err := c.(*middleware.AppContext).App.Storage.ConnectionMentions(c.Request().Context(), params.ID, params.Limit)
	if err != nil {
		logger.Error("[API] Failed to list mentions", "connection", params.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if mentions == nil {
		mentions = []common.Mention{}
	}

	return c.JSON(http.StatusOK, mentions)
}
