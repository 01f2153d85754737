package resolve

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/store"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/store/memory"

	"pgregory.net/rapid"
)

func plan(t *testing.T, s *memory.Store, r *Resolver, keys []Key) *Arena {
	t.Helper()
	var a *Arena
	err := s.WithSnapshot(context.Background(), func(snap store.Reader) error {
		var err error
		a, err = r.Plan(context.Background(), snap, keys)
		return err
	})
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	return a
}

func TestPlan(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seed(t, s, func(q store.Queries) error {
		_, err := q.CreateEntity(ctx, "la barbecue", common.EntityTypeRestaurant)
		return err
	})
	r := NewResolver(0)

	keys := []Key{
		{Name: "Franklin BBQ", Type: common.EntityTypeRestaurant},
		{Name: "franklin bbq", Type: common.EntityTypeRestaurant},
		{Name: "la barbecue", Type: common.EntityTypeRestaurant},
		{Name: "franklin barbeque", Type: common.EntityTypeRestaurant},
		{Name: "franklin barbecue", Type: common.EntityTypeRestaurant},
		{Name: "brisket", Type: common.EntityTypeFood},
		{Name: "", Type: common.EntityTypeFood},
	}
	a := plan(t, s, r, keys)

	if a.Len() != 5 || a.Existing() != 1 || a.Pending() != 3 {
		t.Fatalf("Len=%d Existing=%d Pending=%d", a.Len(), a.Existing(), a.Pending())
	}
	c, ok := a.Canonical(Key{Name: "Franklin Barbeque", Type: common.EntityTypeRestaurant})
	if !ok || c.Name != "franklin barbecue" {
		t.Fatalf("expected collapse onto franklin barbecue, got %+v", c)
	}
	if len(s.Entities(common.EntityTypeRestaurant)) != 1 {
		t.Fatal("Plan must not write")
	}

	ids := map[string]int64{}
	for _, k := range keys[:6] {
		err := s.WithTx(ctx, func(q store.Queries) error {
			res, err := r.ResolveIn(ctx, q, a, k.Name, k.Type)
			ids[k.Name] = res.Entity.ID
			return err
		})
		if err != nil {
			t.Fatalf("ResolveIn(%q) error: %v", k.Name, err)
		}
	}
	if ids["Franklin BBQ"] != ids["franklin bbq"] {
		t.Fatalf("identical names resolved to different entities: %v", ids)
	}
	if ids["franklin barbeque"] != ids["franklin barbecue"] {
		t.Fatalf("similar new names were not collapsed: %v", ids)
	}
	if got := len(s.Entities(common.EntityTypeRestaurant)); got != 3 {
		t.Fatalf("expected 3 restaurants, got %d", got)
	}
}

func TestResolveIn_StalePlanDoesNotAliasAnotherName(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seed(t, s, func(q store.Queries) error {
		_, err := q.CreateEntity(ctx, "franklin barbecue", common.EntityTypeRestaurant)
		return err
	})
	r := NewResolver(0)
	a := plan(t, s, r, []Key{{Name: "franklin barbeque", Type: common.EntityTypeRestaurant}})
	if a.Existing() != 1 {
		t.Fatalf("expected a fuzzy match in the plan, got Existing=%d", a.Existing())
	}

	// another batch creates the name after the snapshot was taken
	seed(t, s, func(q store.Queries) error {
		_, err := q.CreateEntity(ctx, "franklin barbeque", common.EntityTypeRestaurant)
		return err
	})

	err := s.WithTx(ctx, func(q store.Queries) error {
		_, err := r.ResolveIn(ctx, q, a, "franklin barbeque", common.EntityTypeRestaurant)
		return err
	})
	if err != nil {
		t.Fatalf("ResolveIn() error: %v", err)
	}
	for _, e := range s.Entities(common.EntityTypeRestaurant) {
		if e.Name == "franklin barbecue" && e.HasAlias("franklin barbeque") {
			t.Fatalf("alias shadows the canonical name of another entity: %+v", e)
		}
	}
}

func TestResolveIn_Unplanned(t *testing.T) {
	s := memory.New()
	r := NewResolver(0)
	a := plan(t, s, r, nil)
	err := s.WithTx(context.Background(), func(q store.Queries) error {
		res, err := r.ResolveIn(context.Background(), q, a, "taco", common.EntityTypeFood)
		if err == nil && !res.Created() {
			t.Fatalf("expected creation, got %+v", res)
		}
		return err
	})
	if err != nil {
		t.Fatalf("ResolveIn() error: %v", err)
	}
}

var pool = []string{
	"franklin bbq", "la barbecue", "yafa deli", "crispy burger", "veracruz all natural",
	"taco joint", "joe's pizza", "ramen tatsu-ya", "home slice pizza", "valentina's tex mex bbq",
}

func variant(name string, upper bool, pad bool) string {
	if upper {
		name = strings.ToUpper(name)
	}
	if pad {
		name = " " + name + " "
	}
	return name
}

func TestArena_IdenticalNamesCreateOneEntity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		s := memory.New()
		r := NewResolver(0)

		n := rapid.IntRange(1, 30).Draw(rt, "n")
		var keys []Key
		for i := range n {
			name := rapid.SampledFrom(pool).Draw(rt, fmt.Sprintf("name%d", i))
			upper := rapid.Bool().Draw(rt, fmt.Sprintf("upper%d", i))
			pad := rapid.Bool().Draw(rt, fmt.Sprintf("pad%d", i))
			keys = append(keys, Key{Name: variant(name, upper, pad), Type: common.EntityTypeRestaurant})
		}

		var a *Arena
		_ = s.WithSnapshot(ctx, func(snap store.Reader) error {
			var err error
			a, err = r.Plan(ctx, snap, keys)
			return err
		})

		byName := map[string]int64{}
		for _, k := range keys {
			var id int64
			err := s.WithTx(ctx, func(q store.Queries) error {
				res, err := r.ResolveIn(ctx, q, a, k.Name, k.Type)
				id = res.Entity.ID
				return err
			})
			if err != nil {
				rt.Fatalf("ResolveIn() error: %v", err)
			}
			norm := NewKey(k.Name, k.Type).Name
			if prev, ok := byName[norm]; ok && prev != id {
				rt.Fatalf("%q resolved to %d and %d", norm, prev, id)
			}
			byName[norm] = id
		}

		if got := len(s.Entities(common.EntityTypeRestaurant)); got != a.Pending() {
			rt.Fatalf("created %d entities, plan expected %d", got, a.Pending())
		}
		if len(byName) < a.Pending() {
			rt.Fatalf("more entities than distinct names")
		}
	})
}
