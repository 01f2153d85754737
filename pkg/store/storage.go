package store

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUniqueViolation = errors.New("unique constraint violation")
	ErrAliasConflict   = errors.New("alias belongs to another entity")
)

// Candidate is an entity returned by a similarity lookup together with the
// best trigram similarity of its name or one of its aliases.
type Candidate struct {
	Entity     common.Entity
	Similarity float64
}

// ConnectionDelta is applied to a connection when a new mention arrives.
type ConnectionDelta struct {
	Upvotes     int
	MentionedAt time.Time
	IsMenuItem  bool
	CategoryIDs []int64
}

// Reader holds the lookups used by entity resolution. Names are compared
// case-insensitively within one entity type.
type Reader interface {
	EntityByName(ctx context.Context, t common.EntityType, name string) (common.Entity, error)
	EntityByAlias(ctx context.Context, t common.EntityType, alias string) (common.Entity, error)
	SimilarEntities(ctx context.Context, t common.EntityType, name string, threshold float64) ([]Candidate, error)
}

// Queries are the graph operations available inside one transaction.
type Queries interface {
	Reader

	// CreateEntity returns ErrUniqueViolation when (name, type) exists.
	CreateEntity(ctx context.Context, name string, t common.EntityType) (common.Entity, error)
	// AddAlias is a no-op when the entity already has the alias or is named
	// by it. It returns ErrAliasConflict when another entity of the type
	// owns the alias or carries it as its canonical name.
	AddAlias(ctx context.Context, entityID int64, alias string) error

	ConnectionByKey(ctx context.Context, key common.ConnectionKey) (common.Connection, error)
	// CreateConnection returns ErrUniqueViolation when the key exists.
	CreateConnection(ctx context.Context, c common.Connection) (common.Connection, error)
	// IncrementConnection adds one mention to the aggregates and returns the
	// updated connection.
	IncrementConnection(ctx context.Context, id int64, d ConnectionDelta) (common.Connection, error)
	SetActivityLevel(ctx context.Context, id int64, level common.ActivityLevel) error

	// InsertMention reports false when the connection already holds a
	// mention from the same source.
	InsertMention(ctx context.Context, m common.Mention) (bool, error)
	LinkRestaurantAttribute(ctx context.Context, restaurantID, attributeID int64) error
}

// GraphStorage persists the dish graph. All writes happen through WithTx;
// a failed transaction leaves no partial state behind.
type GraphStorage interface {
	WithTx(ctx context.Context, fn func(q Queries) error) error
	// WithSnapshot runs fn against a consistent read-only view.
	WithSnapshot(ctx context.Context, fn func(r Reader) error) error

	KnownRestaurants(ctx context.Context, limit int) ([]string, error)
	SaveDeadLetter(ctx context.Context, d common.DeadLetter) error
	SaveBatchRun(ctx context.Context, r *common.BatchReport) error
}

// GraphQuerier serves read-only queries of the HTTP API. Lists are bounded
// by limit, a non-positive limit applies DefaultListLimit.
type GraphQuerier interface {
	WithSnapshot(ctx context.Context, fn func(r Reader) error) error

	EntityByID(ctx context.Context, id int64) (common.Entity, error)
	// RestaurantConnections orders by mention count, then id.
	RestaurantConnections(ctx context.Context, restaurantID int64, limit int) ([]common.Connection, error)
	// ConnectionMentions returns the newest mentions first.
	ConnectionMentions(ctx context.Context, connectionID int64, limit int) ([]common.Mention, error)
	// LatestBatchRun returns the most recent report of a batch id.
	LatestBatchRun(ctx context.Context, batchID string) (common.BatchReport, error)
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// ListLimit clamps a requested page size.
func ListLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxListLimit)
}
