package graph

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/store"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/store/memory"

	"pgregory.net/rapid"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func entity(t *testing.T, s *memory.Store, name string, et common.EntityType) int64 {
	t.Helper()
	var id int64
	err := s.WithTx(context.Background(), func(q store.Queries) error {
		e, err := q.CreateEntity(context.Background(), name, et)
		id = e.ID
		return err
	})
	if err != nil {
		t.Fatalf("CreateEntity(%q) error: %v", name, err)
	}
	return id
}

func upsert(t *testing.T, s *memory.Store, in UpsertInput) UpsertResult {
	t.Helper()
	var res UpsertResult
	err := s.WithTx(context.Background(), func(q store.Queries) error {
		var err error
		res, err = Upsert(context.Background(), q, in)
		return err
	})
	if err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	return res
}

func mention(source string, upvotes int, at time.Time) common.Mention {
	return common.Mention{
		SourceType: common.SourceTypeComment,
		SourceID:   source,
		Excerpt:    "their brisket is great",
		Upvotes:    upvotes,
		Sentiment:  sentimentPositive,
		CreatedAt:  at,
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	s := memory.New()
	rid := entity(t, s, "franklin bbq", common.EntityTypeRestaurant)
	fid := entity(t, s, "brisket", common.EntityTypeFood)
	cat := entity(t, s, "barbecue", common.EntityTypeFood)

	in := UpsertInput{
		RestaurantID: rid,
		FoodID:       fid,
		CategoryIDs:  []int64{cat},
		IsMenuItem:   true,
		Mention:      mention("c1", 12, now.Add(-time.Hour)),
		Now:          now,
	}
	first := upsert(t, s, in)
	if !first.ConnectionCreated || !first.MentionInserted {
		t.Fatalf("first upsert: %+v", first)
	}
	second := upsert(t, s, in)
	if second.ConnectionCreated || second.MentionInserted {
		t.Fatalf("second upsert must be a no-op: %+v", second)
	}

	conns := s.Connections()
	if len(conns) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(conns))
	}
	c := conns[0]
	if c.MentionCount != 1 || c.TotalUpvotes != 12 || !c.IsMenuItem {
		t.Fatalf("aggregates double counted: %+v", c)
	}
	if len(s.Mentions()) != 1 {
		t.Fatalf("expected 1 mention, got %d", len(s.Mentions()))
	}
	if c.ActivityLevel != common.ActivityActive {
		t.Fatalf("expected active, got %s", c.ActivityLevel)
	}
}

func TestUpsert_ConnectionIdentity(t *testing.T) {
	s := memory.New()
	rid := entity(t, s, "taco joint", common.EntityTypeRestaurant)
	fid := entity(t, s, "taco", common.EntityTypeFood)
	vegan := entity(t, s, "vegan", common.EntityTypeDishAttribute)
	spicy := entity(t, s, "spicy", common.EntityTypeDishAttribute)

	plain := upsert(t, s, UpsertInput{RestaurantID: rid, FoodID: fid, Mention: mention("c1", 1, now), Now: now})
	a := upsert(t, s, UpsertInput{RestaurantID: rid, FoodID: fid, DishAttributeIDs: []int64{vegan, spicy}, Mention: mention("c2", 1, now), Now: now})
	b := upsert(t, s, UpsertInput{RestaurantID: rid, FoodID: fid, DishAttributeIDs: []int64{spicy, vegan, spicy}, Mention: mention("c3", 1, now), Now: now})
	ro := upsert(t, s, UpsertInput{RestaurantID: rid, Mention: mention("c4", 1, now), Now: now})

	if plain.Connection.ID == a.Connection.ID {
		t.Fatal("attribute set must be part of the connection key")
	}
	if a.Connection.ID != b.Connection.ID || b.ConnectionCreated {
		t.Fatal("attribute order and duplicates must not change the key")
	}
	if ro.Connection.FoodID != 0 || ro.Connection.ID == plain.Connection.ID {
		t.Fatalf("restaurant-only connection: %+v", ro.Connection)
	}
	if len(s.Connections()) != 3 {
		t.Fatalf("expected 3 connections, got %d", len(s.Connections()))
	}
	if b.Connection.MentionCount != 2 {
		t.Fatalf("expected 2 mentions on attribute connection, got %d", b.Connection.MentionCount)
	}
}

func TestUpsert_LinksRestaurantAttributes(t *testing.T) {
	s := memory.New()
	rid := entity(t, s, "yafa deli", common.EntityTypeRestaurant)
	patio := entity(t, s, "patio", common.EntityTypeRestaurantAttribute)

	upsert(t, s, UpsertInput{RestaurantID: rid, RestaurantAttributeIDs: []int64{patio, patio}, Mention: mention("c1", 0, now), Now: now})
	if got := s.RestaurantAttributes(rid); len(got) != 1 || got[0] != patio {
		t.Fatalf("RestaurantAttributes() = %v", got)
	}
}

func TestUpsert_RollsBackWithTransaction(t *testing.T) {
	s := memory.New()
	rid := entity(t, s, "franklin bbq", common.EntityTypeRestaurant)

	err := s.WithTx(context.Background(), func(q store.Queries) error {
		if _, err := Upsert(context.Background(), q, UpsertInput{RestaurantID: rid, Mention: mention("c1", 3, now), Now: now}); err != nil {
			return err
		}
		return fmt.Errorf("resolution failed later")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(s.Connections()) != 0 || len(s.Mentions()) != 0 {
		t.Fatal("failed transaction left partial state")
	}
}

func TestUpsert_MissingRestaurant(t *testing.T) {
	s := memory.New()
	err := s.WithTx(context.Background(), func(q store.Queries) error {
		_, err := Upsert(context.Background(), q, UpsertInput{Mention: mention("c1", 0, now)})
		return err
	})
	if err == nil {
		t.Fatal("expected error without restaurant id")
	}
}

func TestActivityLevel(t *testing.T) {
	tests := []struct {
		name  string
		count int
		age   time.Duration
		want  common.ActivityLevel
	}{
		{name: "recent and frequent", count: 3, age: 2 * 24 * time.Hour, want: common.ActivityTrending},
		{name: "recent but rare", count: 1, age: 2 * 24 * time.Hour, want: common.ActivityActive},
		{name: "this month", count: 10, age: 20 * 24 * time.Hour, want: common.ActivityActive},
		{name: "old", count: 10, age: 90 * 24 * time.Hour, want: common.ActivityNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := common.Connection{MentionCount: tt.count, LastMentionedAt: now.Add(-tt.age)}
			if got := activityLevel(c, now); got != tt.want {
				t.Fatalf("activityLevel() = %s, want %s", got, tt.want)
			}
		})
	}
	if got := activityLevel(common.Connection{}, now); got != common.ActivityNormal {
		t.Fatalf("never mentioned: %s", got)
	}
}

func TestUpsert_ReprocessingNeverDoubleCounts(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := memory.New()
		ctx := context.Background()
		var rid, fid int64
		_ = s.WithTx(ctx, func(q store.Queries) error {
			r, _ := q.CreateEntity(ctx, "franklin bbq", common.EntityTypeRestaurant)
			f, _ := q.CreateEntity(ctx, "brisket", common.EntityTypeFood)
			rid, fid = r.ID, f.ID
			return nil
		})

		n := rapid.IntRange(1, 40).Draw(rt, "n")
		upvotes := map[string]int{}
		for i := range n {
			src := fmt.Sprintf("c%d", rapid.IntRange(0, 7).Draw(rt, fmt.Sprintf("src%d", i)))
			up := rapid.IntRange(0, 100).Draw(rt, fmt.Sprintf("up%d", i))
			if _, seen := upvotes[src]; !seen {
				upvotes[src] = up
			}
			err := s.WithTx(ctx, func(q store.Queries) error {
				_, err := Upsert(ctx, q, UpsertInput{RestaurantID: rid, FoodID: fid, Mention: mention(src, up, now), Now: now})
				return err
			})
			if err != nil {
				rt.Fatalf("Upsert() error: %v", err)
			}
		}

		var total int64
		for _, up := range upvotes {
			total += int64(up)
		}
		c := s.Connections()[0]
		if c.MentionCount != len(upvotes) || len(s.Mentions()) != len(upvotes) {
			rt.Fatalf("mention count %d, mentions %d, distinct sources %d", c.MentionCount, len(s.Mentions()), len(upvotes))
		}
		if c.TotalUpvotes != total {
			rt.Fatalf("upvotes %d, want %d", c.TotalUpvotes, total)
		}
	})
}
