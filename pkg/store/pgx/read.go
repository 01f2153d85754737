package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

func (s *GraphDBStorage) EntityByID(ctx context.Context, id int64) (common.Entity, error) {
	return scanEntity(s.conn.QueryRow(ctx, entityByIDSQL, id))
}

func (s *GraphDBStorage) RestaurantConnections(ctx context.Context, restaurantID int64, limit int) ([]common.Connection, error) {
	rows, err := s.conn.Query(ctx, restaurantConnectionsSQL, restaurantID, store.ListLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *GraphDBStorage) ConnectionMentions(ctx context.Context, connectionID int64, limit int) ([]common.Mention, error) {
	rows, err := s.conn.Query(ctx, connectionMentionsSQL, connectionID, store.ListLimit(limit))
	if err != nil {
		return nil, err
	}
	return pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.Mention, error) {
		var m common.Mention
		var sourceType string
		err := row.Scan(
			&m.ID,
			&m.ConnectionID,
			&sourceType,
			&m.SourceID,
			&m.Excerpt,
			&m.Upvotes,
			&m.SourceURL,
			&m.Sentiment,
			&m.GeneralPraise,
			&m.CreatedAt,
		)
		m.SourceType = common.SourceType(sourceType)
		return m, err
	})
}

func (s *GraphDBStorage) LatestBatchRun(ctx context.Context, batchID string) (common.BatchReport, error) {
	var raw []byte
	if err := s.conn.QueryRow(ctx, latestBatchRunSQL, batchID).Scan(&raw); err != nil {
		return common.BatchReport{}, mapErr(err)
	}
	var report common.BatchReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return common.BatchReport{}, fmt.Errorf("decode batch report %s: %w", batchID, err)
	}
	return report, nil
}

const entityByIDSQL = `
SELECT ` + entityColumns + `
FROM entities e
WHERE e.id = $1;
`

const restaurantConnectionsSQL = `
SELECT ` + connectionColumns + `
FROM connections
WHERE restaurant_id = $1
ORDER BY mention_count DESC, id
LIMIT $2;
`

const connectionMentionsSQL = `
SELECT id, connection_id, source_type, source_id, excerpt, upvotes, source_url, sentiment, general_praise, created_at
FROM mentions
WHERE connection_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2;
`

const latestBatchRunSQL = `
SELECT report
FROM batch_runs
WHERE batch_id = $1
ORDER BY finished_at DESC
LIMIT 1;
`
