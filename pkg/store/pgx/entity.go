package pgx

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/logger"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

type queries struct {
	db      dbtx
	maxText int
}

func scanEntity(row pgxv5.Row, extra ...any) (common.Entity, error) {
	var e common.Entity
	var typ string
	dest := append([]any{&e.ID, &e.Name, &typ, &e.QualityScore, &e.CreatedAt, &e.Aliases}, extra...)
	if err := row.Scan(dest...); err != nil {
		return common.Entity{}, mapErr(err)
	}
	e.Type = common.EntityType(typ)
	if e.Aliases == nil {
		e.Aliases = []string{}
	}
	return e, nil
}

func (q *queries) EntityByName(ctx context.Context, t common.EntityType, name string) (common.Entity, error) {
	return scanEntity(q.db.QueryRow(ctx, entityByNameSQL, string(t), strings.TrimSpace(name)))
}

func (q *queries) EntityByAlias(ctx context.Context, t common.EntityType, alias string) (common.Entity, error) {
	return scanEntity(q.db.QueryRow(ctx, entityByAliasSQL, string(t), strings.TrimSpace(alias)))
}

// SimilarEntities matches name against canonical names and aliases of type
// t. The pg_trgm threshold is set for the current transaction so the
// trigram indexes can serve the lookup.
func (q *queries) SimilarEntities(ctx context.Context, t common.EntityType, name string, threshold float64) ([]store.Candidate, error) {
	if _, err := q.db.Exec(ctx, setThresholdSQL, strconv.FormatFloat(threshold, 'f', -1, 64)); err != nil {
		return nil, err
	}

	rows, err := q.db.Query(ctx, similarEntitiesSQL, string(t), strings.TrimSpace(name), threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Candidate
	for rows.Next() {
		var sim float64
		e, err := scanEntity(rows, &sim)
		if err != nil {
			return nil, err
		}
		out = append(out, store.Candidate{Entity: e, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	store.SortCandidates(out)
	return out, nil
}

func (q *queries) CreateEntity(ctx context.Context, name string, t common.EntityType) (common.Entity, error) {
	e, err := scanEntity(q.db.QueryRow(ctx, createEntitySQL, strings.TrimSpace(name), string(t)))
	if errors.Is(err, store.ErrNotFound) {
		// ON CONFLICT DO NOTHING returned no row
		return common.Entity{}, store.ErrUniqueViolation
	}
	return e, err
}

func (q *queries) AddAlias(ctx context.Context, entityID int64, alias string) error {
	alias = strings.TrimSpace(alias)
	var named int64
	err := q.db.QueryRow(ctx, aliasNameOwnerSQL, entityID, alias).Scan(&named)
	switch {
	case err == nil && named != entityID:
		return store.ErrAliasConflict
	case err == nil:
		// the alias is the entity's own name
		return nil
	case !errors.Is(err, pgxv5.ErrNoRows):
		return mapErr(err)
	}

	var id int64
	err = q.db.QueryRow(ctx, addAliasSQL, entityID, alias).Scan(&id)
	if err == nil {
		logger.Debug("[Store] Alias added", "entity_id", entityID, "alias", alias)
		return nil
	}
	if !errors.Is(err, pgxv5.ErrNoRows) {
		return mapErr(err)
	}

	var owner int64
	if err := q.db.QueryRow(ctx, aliasOwnerSQL, entityID, alias).Scan(&owner); err != nil {
		return mapErr(err)
	}
	if owner != entityID {
		return store.ErrAliasConflict
	}
	return nil
}

func (q *queries) LinkRestaurantAttribute(ctx context.Context, restaurantID, attributeID int64) error {
	_, err := q.db.Exec(ctx, linkRestaurantAttributeSQL, restaurantID, attributeID)
	return mapErr(err)
}

const entityColumns = `e.id, e.name, e.type, e.quality_score, e.created_at,
       ARRAY(SELECT x.alias FROM entity_aliases x WHERE x.entity_id = e.id ORDER BY x.id)`

const entityByNameSQL = `
SELECT ` + entityColumns + `
FROM entities e
WHERE e.type = $1 AND lower(e.name) = lower($2);
`

const entityByAliasSQL = `
SELECT ` + entityColumns + `
FROM entity_aliases a
JOIN entities e ON e.id = a.entity_id
WHERE a.type = $1 AND lower(a.alias) = lower($2);
`

const setThresholdSQL = `SELECT set_config('pg_trgm.similarity_threshold', $1, true);`

const similarEntitiesSQL = `
WITH matches AS (
    SELECT id AS entity_id, similarity(name, $2) AS sim
    FROM entities
    WHERE type = $1 AND name % $2
    UNION ALL
    SELECT entity_id, similarity(alias, $2) AS sim
    FROM entity_aliases
    WHERE type = $1 AND alias % $2
), best AS (
    SELECT entity_id, MAX(sim) AS sim
    FROM matches
    GROUP BY entity_id
)
SELECT ` + entityColumns + `, b.sim::float8
FROM best b
JOIN entities e ON e.id = b.entity_id
WHERE b.sim >= $3
ORDER BY b.sim DESC, e.quality_score DESC, e.id ASC
LIMIT 25;
`

const createEntitySQL = `
INSERT INTO entities (name, type)
VALUES ($1, $2)
ON CONFLICT (type, lower(name)) DO NOTHING
RETURNING id, name, type, quality_score, created_at, '{}'::text[];
`

const addAliasSQL = `
INSERT INTO entity_aliases (entity_id, type, alias)
SELECT id, type, $2 FROM entities WHERE id = $1
ON CONFLICT (type, lower(alias)) DO NOTHING
RETURNING entity_id;
`

const aliasNameOwnerSQL = `
SELECT n.id
FROM entities e
JOIN entities n ON n.type = e.type AND lower(n.name) = lower($2)
WHERE e.id = $1;
`

const aliasOwnerSQL = `
SELECT a.entity_id
FROM entity_aliases a
JOIN entities e ON e.type = a.type
WHERE e.id = $1 AND lower(a.alias) = lower($2);
`

const linkRestaurantAttributeSQL = `
INSERT INTO restaurant_attributes (restaurant_id, attribute_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING;
`
