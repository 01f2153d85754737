package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/dishgraph/backend/internal/util"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

type pgxIConn interface {
	dbtx
	BeginTx(ctx context.Context, txOptions pgxv5.TxOptions) (pgxv5.Tx, error)
}

// GraphDBStorage implements store.GraphStorage on PostgreSQL. Entity names
// are unique per type through a unique index, fuzzy lookups use pg_trgm.
type GraphDBStorage struct {
	conn    pgxIConn
	isoTx   pgxv5.TxIsoLevel
	maxText int
}

type GraphDBStorageOption func(*GraphDBStorage)

// WithIsolation sets the isolation level of write transactions.
func WithIsolation(level pgxv5.TxIsoLevel) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.isoTx = level
	}
}

// WithExcerptLength bounds the stored mention excerpt in runes.
func WithExcerptLength(n int) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.maxText = n
	}
}

// NewGraphDBStorageWithConnection creates a GraphDBStorage on an existing
// pool or connection.
func NewGraphDBStorageWithConnection(conn pgxIConn, opts ...GraphDBStorageOption) *GraphDBStorage {
	s := &GraphDBStorage{
		conn:    conn,
		isoTx:   pgxv5.ReadCommitted,
		maxText: 500,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

func (s *GraphDBStorage) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	tx, err := s.conn.BeginTx(ctx, pgxv5.TxOptions{IsoLevel: s.isoTx})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&queries{db: tx, maxText: s.maxText}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", mapErr(err))
	}
	return nil
}

func (s *GraphDBStorage) WithSnapshot(ctx context.Context, fn func(r store.Reader) error) error {
	tx, err := s.conn.BeginTx(ctx, pgxv5.TxOptions{
		IsoLevel:   pgxv5.RepeatableRead,
		AccessMode: pgxv5.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	return fn(&queries{db: tx, maxText: s.maxText})
}

func (s *GraphDBStorage) KnownRestaurants(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.conn.Query(ctx, knownRestaurantsSQL, limit)
	if err != nil {
		return nil, err
	}
	return pgxv5.CollectRows(rows, pgxv5.RowTo[string])
}

func (s *GraphDBStorage) SaveDeadLetter(ctx context.Context, d common.DeadLetter) error {
	unit, err := json.Marshal(d.Unit)
	if err != nil {
		return err
	}
	_, err = s.conn.Exec(ctx, saveDeadLetterSQL,
		d.ID,
		d.RunID,
		d.Kind,
		string(d.Source.Type),
		d.Source.ID,
		unit,
		util.SanitizePostgresText(d.Error),
		d.CreatedAt,
	)
	return mapErr(err)
}

func (s *GraphDBStorage) SaveBatchRun(ctx context.Context, r *common.BatchReport) error {
	report, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.conn.Exec(ctx, saveBatchRunSQL, r.RunID, r.BatchID, r.StartedAt, r.FinishedAt, report)
	return mapErr(err)
}

// mapErr translates unique violations into store.ErrUniqueViolation.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgxv5.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", store.ErrUniqueViolation, pgErr.ConstraintName)
	}
	return err
}

const knownRestaurantsSQL = `
SELECT name
FROM entities
WHERE type = 'restaurant'
ORDER BY id
LIMIT NULLIF($1::int, 0);
`

const saveDeadLetterSQL = `
INSERT INTO dead_letters (id, run_id, kind, source_type, source_id, unit, error, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING;
`

const saveBatchRunSQL = `
INSERT INTO batch_runs (run_id, batch_id, started_at, finished_at, report)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (run_id) DO UPDATE
SET finished_at = EXCLUDED.finished_at,
    report      = EXCLUDED.report;
`
