package resolve

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/logger"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/store"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/trgm"
)

// Key identifies a name of one entity type, compared case-insensitively.
type Key struct {
	Name string
	Type common.EntityType
}

func NewKey(name string, t common.EntityType) Key {
	return Key{Name: strings.ToLower(strings.TrimSpace(name)), Type: t}
}

type entry struct {
	canonical Key
	existing  *Resolution
}

// Arena is the batch pre-pass over a snapshot. Every distinct key either
// maps to an entity that already exists or to a tentative canonical key.
// Keys that are equal, or similar to an earlier tentative key of the same
// type, share one canonical key and therefore one created entity.
type Arena struct {
	entries  map[Key]*entry
	existing int
	pending  map[Key]struct{}
}

// Plan resolves keys against the snapshot without writing anything.
// Keys are processed in sorted order so the plan does not depend on the
// order units arrived in.
func (r *Resolver) Plan(ctx context.Context, snap store.Reader, keys []Key) (*Arena, error) {
	sorted := make([]Key, 0, len(keys))
	for _, k := range keys {
		k = NewKey(k.Name, k.Type)
		if k.Name != "" {
			sorted = append(sorted, k)
		}
	}
	slices.SortFunc(sorted, func(a, b Key) int {
		if c := cmp.Compare(a.Type, b.Type); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	sorted = slices.Compact(sorted)

	a := &Arena{entries: map[Key]*entry{}, pending: map[Key]struct{}{}}
	var tentative []Key
	for _, k := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, ok, err := r.lookup(ctx, snap, k.Name, k.Type)
		if err != nil {
			return nil, err
		}
		if ok {
			a.entries[k] = &entry{canonical: NewKey(found.Entity.Name, k.Type), existing: &found}
			a.existing++
			continue
		}

		canonical := k
		best := 0.0
		for _, t := range tentative {
			if t.Type != k.Type {
				continue
			}
			if s := trgm.Similarity(t.Name, k.Name); s >= r.threshold && s > best {
				canonical, best = t, s
			}
		}
		if canonical == k {
			tentative = append(tentative, k)
			a.pending[k] = struct{}{}
		}
		a.entries[k] = &entry{canonical: canonical}
	}

	logger.Debug("[Resolve] Batch plan", "keys", len(sorted), "existing", a.existing, "to_create", len(a.pending))
	return a, nil
}

// Len is the number of distinct keys in the plan.
func (a *Arena) Len() int {
	return len(a.entries)
}

// Existing is the number of keys that matched an entity in the snapshot.
func (a *Arena) Existing() int {
	return a.existing
}

// Pending is the number of entities the batch is expected to create.
func (a *Arena) Pending() int {
	return len(a.pending)
}

// Canonical returns the key the entity for k is stored under.
func (a *Arena) Canonical(k Key) (Key, bool) {
	e, ok := a.entries[NewKey(k.Name, k.Type)]
	if !ok {
		return Key{}, false
	}
	return e.canonical, true
}

// ResolveIn resolves name within a transaction using the plan. Names that
// were not planned fall back to Resolve.
func (r *Resolver) ResolveIn(ctx context.Context, q store.Queries, a *Arena, name string, t common.EntityType) (Resolution, error) {
	if a == nil {
		return r.Resolve(ctx, q, name, t)
	}
	e, ok := a.entries[NewKey(name, t)]
	if !ok {
		return r.Resolve(ctx, q, name, t)
	}
	name = strings.TrimSpace(name)

	if e.existing != nil {
		planned := *e.existing
		return planned, r.recordAlias(ctx, q, planned, name)
	}

	// the first unit to commit creates the entity, later units find it
	out, err := r.Resolve(ctx, q, e.canonical.Name, t)
	if err != nil {
		return Resolution{}, err
	}
	if NewKey(name, t) != e.canonical && !strings.EqualFold(out.Entity.Name, name) {
		if err := q.AddAlias(ctx, out.Entity.ID, name); err != nil && !errors.Is(err, store.ErrAliasConflict) {
			return Resolution{}, err
		}
		if !out.Created() {
			out.Tier = common.TierFuzzy
			out.Similarity = trgm.Similarity(out.Entity.Name, name)
		}
	}
	return out, nil
}
