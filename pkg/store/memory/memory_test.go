package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/store"
)

func TestEntities(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.WithTx(ctx, func(q store.Queries) error {
		e, err := q.CreateEntity(ctx, "franklin bbq", common.EntityTypeRestaurant)
		if err != nil {
			return err
		}
		if _, err := q.CreateEntity(ctx, "Franklin BBQ", common.EntityTypeRestaurant); !errors.Is(err, store.ErrUniqueViolation) {
			t.Fatalf("expected unique violation, got %v", err)
		}
		if _, err := q.CreateEntity(ctx, "franklin bbq", common.EntityTypeFood); err != nil {
			t.Fatalf("same name with another type must be allowed: %v", err)
		}
		if err := q.AddAlias(ctx, e.ID, "franklin barbecue"); err != nil {
			return err
		}
		if err := q.AddAlias(ctx, e.ID, "Franklin Barbecue"); err != nil {
			t.Fatalf("repeated alias must be a no-op: %v", err)
		}
		other, err := q.CreateEntity(ctx, "la barbecue", common.EntityTypeRestaurant)
		if err != nil {
			return err
		}
		if err := q.AddAlias(ctx, other.ID, "franklin barbecue"); !errors.Is(err, store.ErrAliasConflict) {
			t.Fatalf("expected alias conflict, got %v", err)
		}
		if err := q.AddAlias(ctx, other.ID, "Franklin BBQ"); !errors.Is(err, store.ErrAliasConflict) {
			t.Fatalf("alias equal to another entity's name: expected conflict, got %v", err)
		}
		if err := q.AddAlias(ctx, e.ID, "FRANKLIN BBQ"); err != nil {
			t.Fatalf("alias equal to the own name must be a no-op: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx() error: %v", err)
	}

	err = s.WithSnapshot(ctx, func(r store.Reader) error {
		e, err := r.EntityByName(ctx, common.EntityTypeRestaurant, "FRANKLIN BBQ")
		if err != nil {
			return err
		}
		if len(e.Aliases) != 1 {
			t.Fatalf("expected one alias, got %v", e.Aliases)
		}
		byAlias, err := r.EntityByAlias(ctx, common.EntityTypeRestaurant, "franklin barbecue")
		if err != nil || byAlias.ID != e.ID {
			t.Fatalf("alias lookup = %+v, %v", byAlias, err)
		}
		if _, err := r.EntityByAlias(ctx, common.EntityTypeFood, "franklin barbecue"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("alias must be scoped by type, got %v", err)
		}
		c, err := r.SimilarEntities(ctx, common.EntityTypeRestaurant, "franklin barbeque", 0.7)
		if err != nil {
			return err
		}
		if len(c) != 1 || c[0].Entity.ID != e.ID {
			t.Fatalf("unexpected candidates %+v", c)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithSnapshot() error: %v", err)
	}
}

func TestWithTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(q store.Queries) error {
		if _, err := q.CreateEntity(ctx, "franklin bbq", common.EntityTypeRestaurant); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if got := s.Entities(common.EntityTypeRestaurant); len(got) != 0 {
		t.Fatalf("rolled back entity is visible: %+v", got)
	}
}

func TestConnectionsAndMentions(t *testing.T) {
	ctx := context.Background()
	s := New()
	day := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := s.WithTx(ctx, func(q store.Queries) error {
		r, _ := q.CreateEntity(ctx, "franklin bbq", common.EntityTypeRestaurant)
		f, _ := q.CreateEntity(ctx, "brisket", common.EntityTypeFood)
		a1, _ := q.CreateEntity(ctx, "smoked", common.EntityTypeDishAttribute)
		a2, _ := q.CreateEntity(ctx, "spicy", common.EntityTypeDishAttribute)

		c, err := q.CreateConnection(ctx, common.Connection{RestaurantID: r.ID, FoodID: f.ID, DishAttributeIDs: []int64{a2.ID, a1.ID}})
		if err != nil {
			return err
		}
		_, err = q.CreateConnection(ctx, common.Connection{RestaurantID: r.ID, FoodID: f.ID, DishAttributeIDs: []int64{a1.ID, a2.ID, a1.ID}})
		if !errors.Is(err, store.ErrUniqueViolation) {
			t.Fatalf("attribute order must not change the key, got %v", err)
		}
		got, err := q.ConnectionByKey(ctx, common.ConnectionKey{RestaurantID: r.ID, FoodID: f.ID, DishAttributeIDs: []int64{a1.ID, a2.ID}})
		if err != nil || got.ID != c.ID {
			t.Fatalf("ConnectionByKey() = %+v, %v", got, err)
		}

		m := common.Mention{ConnectionID: c.ID, SourceType: common.SourceTypeComment, SourceID: "c1"}
		if ok, err := q.InsertMention(ctx, m); err != nil || !ok {
			t.Fatalf("first insert = %v, %v", ok, err)
		}
		if ok, err := q.InsertMention(ctx, m); err != nil || ok {
			t.Fatalf("second insert = %v, %v", ok, err)
		}

		up, err := q.IncrementConnection(ctx, c.ID, store.ConnectionDelta{Upvotes: 7, MentionedAt: day, CategoryIDs: []int64{f.ID}})
		if err != nil {
			return err
		}
		up, err = q.IncrementConnection(ctx, c.ID, store.ConnectionDelta{Upvotes: 3, MentionedAt: day.Add(-time.Hour), IsMenuItem: true, CategoryIDs: []int64{f.ID}})
		if err != nil {
			return err
		}
		if up.MentionCount != 2 || up.TotalUpvotes != 10 || !up.LastMentionedAt.Equal(day) || !up.IsMenuItem || len(up.CategoryIDs) != 1 {
			t.Fatalf("unexpected aggregates %+v", up)
		}
		return q.LinkRestaurantAttribute(ctx, r.ID, a1.ID)
	})
	if err != nil {
		t.Fatalf("WithTx() error: %v", err)
	}
	if len(s.Mentions()) != 1 || len(s.Connections()) != 1 {
		t.Fatalf("expected one mention and one connection, got %d and %d", len(s.Mentions()), len(s.Connections()))
	}
}

func TestKnownRestaurants(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.WithTx(ctx, func(q store.Queries) error {
		for _, n := range []string{"franklin bbq", "la barbecue", "yafa deli"} {
			if _, err := q.CreateEntity(ctx, n, common.EntityTypeRestaurant); err != nil {
				return err
			}
		}
		_, err := q.CreateEntity(ctx, "brisket", common.EntityTypeFood)
		return err
	})
	got, err := s.KnownRestaurants(ctx, 2)
	if err != nil {
		t.Fatalf("KnownRestaurants() error: %v", err)
	}
	if len(got) != 2 || got[0] != "franklin bbq" || got[1] != "la barbecue" {
		t.Fatalf("KnownRestaurants() = %v", got)
	}
}

func TestReadQueries(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return base }))

	var restaurant, brisket, ribs common.Connection
	err := s.WithTx(ctx, func(q store.Queries) error {
		r, err := q.CreateEntity(ctx, "franklin bbq", common.EntityTypeRestaurant)
		if err != nil {
			return err
		}
		f1, err := q.CreateEntity(ctx, "brisket", common.EntityTypeFood)
		if err != nil {
			return err
		}
		f2, err := q.CreateEntity(ctx, "pork ribs", common.EntityTypeFood)
		if err != nil {
			return err
		}
		if restaurant, err = q.CreateConnection(ctx, common.Connection{RestaurantID: r.ID}); err != nil {
			return err
		}
		if brisket, err = q.CreateConnection(ctx, common.Connection{RestaurantID: r.ID, FoodID: f1.ID}); err != nil {
			return err
		}
		if ribs, err = q.CreateConnection(ctx, common.Connection{RestaurantID: r.ID, FoodID: f2.ID}); err != nil {
			return err
		}
		for i, src := range []string{"c1", "c2"} {
			if _, err := q.InsertMention(ctx, common.Mention{
				ConnectionID: brisket.ID,
				SourceType:   common.SourceTypeComment,
				SourceID:     src,
				CreatedAt:    base.Add(time.Duration(i) * time.Hour),
			}); err != nil {
				return err
			}
			if _, err := q.IncrementConnection(ctx, brisket.ID, store.ConnectionDelta{MentionedAt: base}); err != nil {
				return err
			}
		}
		_, err = q.IncrementConnection(ctx, ribs.ID, store.ConnectionDelta{MentionedAt: base})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	conns, err := s.RestaurantConnections(ctx, restaurant.RestaurantID, 0)
	if err != nil {
		t.Fatalf("RestaurantConnections: %v", err)
	}
	if len(conns) != 3 || conns[0].ID != brisket.ID || conns[1].ID != ribs.ID || conns[2].ID != restaurant.ID {
		t.Fatalf("unexpected connection order: %+v", conns)
	}
	if conns, _ := s.RestaurantConnections(ctx, restaurant.RestaurantID, 1); len(conns) != 1 {
		t.Fatalf("limit not applied, got %d", len(conns))
	}

	mentions, err := s.ConnectionMentions(ctx, brisket.ID, 0)
	if err != nil {
		t.Fatalf("ConnectionMentions: %v", err)
	}
	if len(mentions) != 2 || mentions[0].SourceID != "c2" {
		t.Fatalf("expected newest mention first, got %+v", mentions)
	}

	if _, err := s.EntityByID(ctx, 999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if e, err := s.EntityByID(ctx, restaurant.RestaurantID); err != nil || e.Name != "franklin bbq" {
		t.Fatalf("EntityByID = %+v, %v", e, err)
	}

	if _, err := s.LatestBatchRun(ctx, "b1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for _, id := range []string{"r1", "r2"} {
		if err := s.SaveBatchRun(ctx, &common.BatchReport{RunID: id, BatchID: "b1"}); err != nil {
			t.Fatal(err)
		}
	}
	if run, err := s.LatestBatchRun(ctx, "b1"); err != nil || run.RunID != "r2" {
		t.Fatalf("LatestBatchRun = %+v, %v", run, err)
	}
}
