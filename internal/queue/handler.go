package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/extract"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/graph"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/leaselock"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/loader"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/logger"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/store"

	"github.com/go-playground/validator"
)

// ErrMalformedMessage marks messages that can never be processed.
var ErrMalformedMessage = errors.New("malformed queue message")

var validate = validator.New()

// IsPermanent reports whether retrying the message is pointless.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrMalformedMessage)
}

// QueueBatchMsg asks a worker to process one archive of content units.
type QueueBatchMsg struct {
	BatchID          string `json:"batch_id" validate:"required,max=200"`
	ArchiveKey       string `json:"archive_key" validate:"required"`
	CorrelationID    string `json:"correlation_id,omitempty"`
	ExtractFromPosts bool   `json:"extract_from_posts"`
}

// Locker serialises work on one key. leaselock.Client implements it.
type Locker interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

// BatchHandler processes batch messages.
type BatchHandler struct {
	Graph     *graph.GraphClient
	Extractor extract.Extractor
	Storage   store.GraphStorage
	Loader    loader.ArchiveLoader
	Locker    Locker
	// Notify publishes the finished report, it may be nil.
	Notify func(topic string, body []byte) error
	// LeaseTTL bounds how long a crashed worker blocks the batch.
	LeaseTTL time.Duration
}

// ProcessBatchMessage decodes msg, loads the archive and runs the batch
// while holding the lease of its batch id.
func (h *BatchHandler) ProcessBatchMessage(ctx context.Context, msg []byte) error {
	data := new(QueueBatchMsg)
	if err := json.Unmarshal(msg, data); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if err := validate.Struct(data); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	file := loader.ArchiveFile{ID: data.BatchID, FilePath: data.ArchiveKey, Loader: h.Loader}
	if f, ok := h.Loader.(interface{ Forget(loader.ArchiveFile) }); ok {
		defer f.Forget(file)
	}

	ttl := h.LeaseTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	opts := leaselock.Options{
		TTL:         ttl,
		Wait:        true,
		MaxWait:     ttl,
		TokenPrefix: "batch/" + data.BatchID + "/",
	}

	logger.Debug("[Queue] Acquiring batch lease", "batch", data.BatchID, "correlation_id", data.CorrelationID)
	return h.Locker.WithLease(ctx, leaselock.BatchKey(data.BatchID), opts, func(ctx context.Context) error {
		units, err := file.Units(ctx, loader.DecodeOptions{
			ExtractFromPosts: data.ExtractFromPosts,
			LinkParents:      true,
		})
		if err != nil {
			return err
		}

		report, err := h.Graph.ProcessBatch(ctx, graph.Batch{ID: data.BatchID, Units: units}, h.Extractor, h.Storage)
		if err != nil {
			return fmt.Errorf("process batch %s: %w", data.BatchID, err)
		}
		h.notify(report)
		return nil
	})
}

func (h *BatchHandler) notify(report *common.BatchReport) {
	if h.Notify == nil {
		return
	}
	body, err := json.Marshal(report)
	if err != nil {
		logger.Error("[Queue] Failed to marshal batch report", "batch", report.BatchID, "err", err)
		return
	}
	if err := h.Notify(TopicBatchFinished, body); err != nil {
		logger.Warn("[Queue] Failed to publish batch report", "batch", report.BatchID, "err", err)
	}
}
