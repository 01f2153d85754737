package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/store"
)

const (
	trendingWindow   = 7 * 24 * time.Hour
	trendingMentions = 3
	activeWindow     = 30 * 24 * time.Hour
)

// UpsertInput carries the resolved ids of one mention record and the
// evidence that is attached to the connection.
type UpsertInput struct {
	RestaurantID int64
	// FoodID is zero for restaurant-only mentions.
	FoodID                 int64
	CategoryIDs            []int64
	DishAttributeIDs       []int64
	RestaurantAttributeIDs []int64
	IsMenuItem             bool
	Mention                common.Mention
	// Now is the reference time for the activity level.
	Now time.Time
}

type UpsertResult struct {
	Connection        common.Connection
	ConnectionCreated bool
	// MentionInserted is false when the source was already recorded on
	// the connection. Aggregates are untouched in that case.
	MentionInserted bool
}

// Upsert finds or creates the connection keyed by restaurant, food and
// dish attribute set, then records the mention at most once per source.
// It must run inside the transaction that resolved the ids.
func Upsert(ctx context.Context, q store.Queries, in UpsertInput) (UpsertResult, error) {
	if in.RestaurantID == 0 {
		return UpsertResult{}, fmt.Errorf("upsert: missing restaurant id")
	}

	for _, id := range common.SortedIDSet(in.RestaurantAttributeIDs) {
		if err := q.LinkRestaurantAttribute(ctx, in.RestaurantID, id); err != nil {
			return UpsertResult{}, fmt.Errorf("link restaurant attribute %d: %w", id, err)
		}
	}

	key := common.ConnectionKey{
		RestaurantID:     in.RestaurantID,
		FoodID:           in.FoodID,
		DishAttributeIDs: common.SortedIDSet(in.DishAttributeIDs),
	}
	conn, created, err := findOrCreateConnection(ctx, q, key, in)
	if err != nil {
		return UpsertResult{}, err
	}
	res := UpsertResult{Connection: conn, ConnectionCreated: created}

	m := in.Mention
	m.ConnectionID = conn.ID
	inserted, err := q.InsertMention(ctx, m)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("insert mention: %w", err)
	}
	if !inserted {
		return res, nil
	}
	res.MentionInserted = true

	mentionedAt := m.CreatedAt
	if mentionedAt.IsZero() {
		mentionedAt = in.Now
	}
	conn, err = q.IncrementConnection(ctx, conn.ID, store.ConnectionDelta{
		Upvotes:     m.Upvotes,
		MentionedAt: mentionedAt,
		IsMenuItem:  in.IsMenuItem,
		CategoryIDs: in.CategoryIDs,
	})
	if err != nil {
		return UpsertResult{}, fmt.Errorf("increment connection %d: %w", res.Connection.ID, err)
	}

	if level := activityLevel(conn, in.Now); level != conn.ActivityLevel {
		if err := q.SetActivityLevel(ctx, conn.ID, level); err != nil {
			return UpsertResult{}, fmt.Errorf("set activity level: %w", err)
		}
		conn.ActivityLevel = level
	}
	res.Connection = conn
	return res, nil
}

func findOrCreateConnection(ctx context.Context, q store.Queries, key common.ConnectionKey, in UpsertInput) (common.Connection, bool, error) {
	conn, err := q.ConnectionByKey(ctx, key)
	if err == nil {
		return conn, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return common.Connection{}, false, fmt.Errorf("lookup connection: %w", err)
	}

	conn, err = q.CreateConnection(ctx, common.Connection{
		RestaurantID:     key.RestaurantID,
		FoodID:           key.FoodID,
		DishAttributeIDs: key.DishAttributeIDs,
		CategoryIDs:      common.SortedIDSet(in.CategoryIDs),
		IsMenuItem:       in.IsMenuItem,
		ActivityLevel:    common.ActivityNormal,
	})
	if errors.Is(err, store.ErrUniqueViolation) {
		conn, err = q.ConnectionByKey(ctx, key)
		if err != nil {
			return common.Connection{}, false, fmt.Errorf("lookup connection after conflict: %w", err)
		}
		return conn, false, nil
	}
	if err != nil {
		return common.Connection{}, false, fmt.Errorf("create connection: %w", err)
	}
	return conn, true, nil
}

// activityLevel derives the recency bucket of a connection at now.
func activityLevel(c common.Connection, now time.Time) common.ActivityLevel {
	if c.LastMentionedAt.IsZero() || now.IsZero() {
		return common.ActivityNormal
	}
	age := now.Sub(c.LastMentionedAt)
	switch {
	case age <= trendingWindow && c.MentionCount >= trendingMentions:
		return common.ActivityTrending
	case age <= activeWindow:
		return common.ActivityActive
	}
	return common.ActivityNormal
}
