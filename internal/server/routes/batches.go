package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/dishgraph/backend/internal/queue"
	"github.com/OFFIS-RIT/dishgraph/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/logger"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/store"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// CreateBatchHandler enqueues an archive for processing. A missing batch
// or correlation id is generated.
func CreateBatchHandler(c echo.Context) error {
	data := new(queue.QueueBatchMsg)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if data.BatchID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}
		data.BatchID = id
	}
	if data.CorrelationID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}
		data.CorrelationID = id
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	body, err := json.Marshal(data)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	app := c.(*middleware.AppContext).App
	if err := queue.PublishFIFO(app.Queue, queue.BatchQueue, body); err != nil {
		logger.Error("[API] Failed to enqueue batch", "batch", data.BatchID, "err", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Failed to enqueue batch"})
	}

	logger.Info("[API] Batch enqueued", "batch", data.BatchID, "archive", data.ArchiveKey, "correlation_id", data.CorrelationID)
	return c.JSON(http.StatusAccepted, data)
}

// GetBatchHandler returns the report of the latest run of a batch.
func GetBatchHandler(c echo.Context) error {
	type getBatchParams struct {
		BatchID string `param:"id" validate:"required"`
	}

	params := new(getBatchParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	app := c.(*middleware.AppContext).App
	report, err := app.Storage.LatestBatchRun(c.Request().Context(), params.BatchID)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Batch not found"})
	}
	if err != nil {
		logger.Error("[API] Failed to load batch run", "batch", params.BatchID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, report)
}
