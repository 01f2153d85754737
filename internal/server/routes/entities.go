package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/dishgraph/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/extract"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/logger"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/resolve"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/store"

	"github.com/labstack/echo/v4"
)

func GetEntityHandler(c echo.Context) error {
	type getEntityParams struct {
		EntityID int64 `param:"id" validate:"required,min=1"`
	}

	params := new(getEntityParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	app := c.(*middleware.AppContext).App
	entity, err := app.Storage.EntityByID(c.Request().Context(), params.EntityID)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Entity not found"})
	}
	if err != nil {
		logger.Error("[API] Failed to load entity", "id", params.EntityID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, entity)
}

type resolveEntityResponse struct {
	Entity     common.Entity         `json:"entity"`
	Tier       common.ResolutionTier `json:"tier"`
	Similarity float64               `json:"similarity,omitempty"`
}

// ResolveEntityHandler looks a name up the way the pipeline would, without
// creating entities or recording aliases.
func ResolveEntityHandler(c echo.Context) error {
	type resolveEntityParams struct {
		Name string `query:"name" validate:"required,max=200"`
		Type string `query:"type" validate:"required,oneof=restaurant food dish_attribute restaurant_attribute"`
	}

	params := new(resolveEntityParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	name := extract.NormalizeName(params.Name)
	if name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	var (
		res   resolve.Resolution
		found bool
	)
	err := app.Storage.WithSnapshot(ctx, func(r store.Reader) error {
		var err error
		res, found, err = app.Resolver.Lookup(ctx, r, name, common.EntityType(params.Type))
		return err
	})
	if err != nil {
		logger.Error("[API] Failed to resolve entity", "name", name, "type", params.Type, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if !found {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Entity not found"})
	}

	return c.JSON(http.StatusOK, resolveEntityResponse{
		Entity:     res.Entity,
		Tier:       res.Tier,
		Similarity: res.Similarity,
	})
}
