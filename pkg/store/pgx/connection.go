package pgx

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/dishgraph/backend/internal/util"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

func scanConnection(row pgxv5.Row) (common.Connection, error) {
	var c common.Connection
	var level string
	var last *time.Time
	err := row.Scan(
		&c.ID,
		&c.RestaurantID,
		&c.FoodID,
		&c.CategoryIDs,
		&c.DishAttributeIDs,
		&c.IsMenuItem,
		&c.MentionCount,
		&c.TotalUpvotes,
		&last,
		&level,
		&c.QualityScore,
	)
	if err != nil {
		return common.Connection{}, mapErr(err)
	}
	if last != nil {
		c.LastMentionedAt = *last
	}
	c.ActivityLevel = common.ActivityLevel(level)
	return c, nil
}

func (q *queries) ConnectionByKey(ctx context.Context, key common.ConnectionKey) (common.Connection, error) {
	return scanConnection(q.db.QueryRow(ctx, connectionByKeySQL, key.RestaurantID, key.FoodID, key.AttributeKey()))
}

func (q *queries) CreateConnection(ctx context.Context, c common.Connection) (common.Connection, error) {
	key := c.Key()
	categories := common.SortedIDSet(c.CategoryIDs)
	if categories == nil {
		categories = []int64{}
	}
	level := c.ActivityLevel
	if level == "" {
		level = common.ActivityNormal
	}
	created, err := scanConnection(q.db.QueryRow(ctx, createConnectionSQL,
		key.RestaurantID,
		key.FoodID,
		categories,
		nonNil(key.DishAttributeIDs),
		key.AttributeKey(),
		c.IsMenuItem,
		string(level),
	))
	if errors.Is(err, store.ErrNotFound) {
		return common.Connection{}, store.ErrUniqueViolation
	}
	return created, err
}

func (q *queries) IncrementConnection(ctx context.Context, id int64, d store.ConnectionDelta) (common.Connection, error) {
	return scanConnection(q.db.QueryRow(ctx, incrementConnectionSQL,
		id,
		d.Upvotes,
		d.MentionedAt,
		d.IsMenuItem,
		nonNil(d.CategoryIDs),
	))
}

func (q *queries) SetActivityLevel(ctx context.Context, id int64, level common.ActivityLevel) error {
	tag, err := q.db.Exec(ctx, setActivityLevelSQL, id, string(level))
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (q *queries) InsertMention(ctx context.Context, m common.Mention) (bool, error) {
	var createdAt *time.Time
	if !m.CreatedAt.IsZero() {
		createdAt = &m.CreatedAt
	}
	var id int64
	err := q.db.QueryRow(ctx, insertMentionSQL,
		m.ConnectionID,
		string(m.SourceType),
		m.SourceID,
		util.Excerpt(m.Excerpt, q.maxText),
		m.Upvotes,
		util.SanitizePostgresText(m.SourceURL),
		m.Sentiment,
		m.GeneralPraise,
		createdAt,
	).Scan(&id)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapErr(err)
	}
	return true, nil
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

const connectionColumns = `id, restaurant_id, COALESCE(food_id, 0), category_ids, dish_attribute_ids, is_menu_item,
       mention_count, total_upvotes, last_mentioned_at, activity_level, quality_score`

const connectionByKeySQL = `
SELECT ` + connectionColumns + `
FROM connections
WHERE restaurant_id = $1 AND COALESCE(food_id, 0) = $2 AND dish_attribute_key = $3;
`

const createConnectionSQL = `
INSERT INTO connections (restaurant_id, food_id, category_ids, dish_attribute_ids, dish_attribute_key, is_menu_item, activity_level)
VALUES ($1, NULLIF($2::bigint, 0), $3, $4, $5, $6, $7)
ON CONFLICT (restaurant_id, (COALESCE(food_id, 0)), dish_attribute_key) DO NOTHING
RETURNING ` + connectionColumns + `;
`

const incrementConnectionSQL = `
UPDATE connections
SET mention_count     = mention_count + 1,
    total_upvotes     = total_upvotes + $2,
    last_mentioned_at = GREATEST(COALESCE(last_mentioned_at, $3), $3),
    is_menu_item      = is_menu_item OR $4,
    category_ids      = ARRAY(SELECT DISTINCT u FROM unnest(category_ids || $5::bigint[]) AS u ORDER BY u)
WHERE id = $1
RETURNING ` + connectionColumns + `;
`

const setActivityLevelSQL = `
UPDATE connections SET activity_level = $2 WHERE id = $1;
`

const insertMentionSQL = `
INSERT INTO mentions (connection_id, source_type, source_id, excerpt, upvotes, source_url, sentiment, general_praise, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()))
ON CONFLICT (connection_id, source_type, source_id) DO NOTHING
RETURNING id;
`
