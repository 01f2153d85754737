// Package graph runs batches of content units through extraction, entity
// resolution and the connection upsert, and reports what happened.
package graph

import (
	"time"

	"github.com/OFFIS-RIT/dishgraph/backend/internal/util"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/extract"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/resolve"
)

// GraphClient processes batches of content units into the dish graph.
// Extraction runs in parallel, persistence runs one unit at a time.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	parallelUnits    int
	extractTimeout   time.Duration
	extractBackoff   util.Backoff
	txBackoff        util.Backoff
	knownRestaurants int
	resolver         *resolve.Resolver
	normalizer       *extract.Normalizer
	now              func() time.Time
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// ParallelUnits controls how many units are extracted concurrently.
// ExtractTimeout bounds a single extractor call, zero disables it.
// MaxRetries bounds extractor calls per unit, TxMaxRetries bounds the
// transaction attempts per unit. RetryDelay is the first backoff delay.
// ResolveThreshold is the minimum trigram similarity of a fuzzy match.
// KnownRestaurants limits how many stored restaurant names are handed to
// the classifier, zero loads all of them.
type NewGraphClientParams struct {
	ParallelUnits    int
	ExtractTimeout   time.Duration
	MaxRetries       int
	TxMaxRetries     int
	RetryDelay       time.Duration
	ResolveThreshold float64
	KnownRestaurants int
	Clock            func() time.Time
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		ParallelUnits: 8,
//		MaxRetries:    3,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	report, err := client.ProcessBatch(ctx, batch, extractor, storage)
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	parallel := params.ParallelUnits
	if parallel <= 0 {
		parallel = 4
	}

	extractBackoff := util.DefaultBackoff
	if params.MaxRetries > 0 {
		extractBackoff.MaxTries = params.MaxRetries
	}
	txBackoff := util.DefaultBackoff
	if params.TxMaxRetries > 0 {
		txBackoff.MaxTries = params.TxMaxRetries
	}
	if params.RetryDelay > 0 {
		extractBackoff.InitialDelay = params.RetryDelay
		txBackoff.InitialDelay = params.RetryDelay
	}

	now := params.Clock
	if now == nil {
		now = time.Now
	}

	g := &GraphClient{
		parallelUnits:    parallel,
		extractTimeout:   params.ExtractTimeout,
		extractBackoff:   extractBackoff,
		txBackoff:        txBackoff,
		knownRestaurants: params.KnownRestaurants,
		resolver:         resolve.NewResolver(params.ResolveThreshold),
		normalizer:       extract.NewNormalizer(),
		now:              now,
	}
	return g, nil
}
