// Package resolve maps normalized names onto graph entities through exact,
// alias and fuzzy lookups, creating entities only when every tier misses.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/logger"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/store"
)

// DefaultThreshold is the minimum trigram similarity for a fuzzy match.
const DefaultThreshold = 0.7

// ErrInvalidName is returned for empty names and unknown entity types.
var ErrInvalidName = errors.New("invalid entity name")

// Resolution is the outcome of resolving one name.
type Resolution struct {
	Entity     common.Entity
	Tier       common.ResolutionTier
	Similarity float64
}

// Created reports whether the entity did not exist before.
func (r Resolution) Created() bool {
	return r.Tier == common.TierCreate
}

// Resolver resolves names against a store. It holds no state between
// calls and is safe for concurrent use.
type Resolver struct {
	threshold float64
}

func NewResolver(threshold float64) *Resolver {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Resolver{threshold: threshold}
}

func (r *Resolver) Threshold() float64 {
	return r.threshold
}

// Resolve returns the entity of type t named name, trying exact, alias and
// fuzzy lookups before creating it. Alias and fuzzy hits record name as an
// alias of the entity. A unique violation on create means another writer
// created the entity first and is answered with a second lookup.
func (r *Resolver) Resolve(ctx context.Context, q store.Queries, name string, t common.EntityType) (Resolution, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Resolution{}, fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if !t.Valid() {
		return Resolution{}, fmt.Errorf("%w: unknown entity type %q", ErrInvalidName, t)
	}

	res, ok, err := r.lookup(ctx, q, name, t)
	if err != nil {
		return Resolution{}, err
	}
	if ok {
		return res, r.recordAlias(ctx, q, res, name)
	}

	e, err := q.CreateEntity(ctx, name, t)
	if errors.Is(err, store.ErrUniqueViolation) {
		logger.Debug("[Resolve] Concurrent create, retrying as lookup", "name", name, "type", t)
		res, ok, err = r.lookup(ctx, q, name, t)
		if err != nil {
			return Resolution{}, err
		}
		if !ok {
			return Resolution{}, fmt.Errorf("resolve %s %q: entity vanished after unique violation", t, name)
		}
		return res, r.recordAlias(ctx, q, res, name)
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("create %s %q: %w", t, name, err)
	}
	return Resolution{Entity: e, Tier: common.TierCreate, Similarity: 1}, nil
}

// Lookup runs the read-only tiers without side effects.
func (r *Resolver) Lookup(ctx context.Context, q store.Reader, name string, t common.EntityType) (Resolution, bool, error) {
	return r.lookup(ctx, q, strings.TrimSpace(name), t)
}

func (r *Resolver) lookup(ctx context.Context, q store.Reader, name string, t common.EntityType) (Resolution, bool, error) {
	e, err := q.EntityByName(ctx, t, name)
	if err == nil {
		return Resolution{Entity: e, Tier: common.TierExact, Similarity: 1}, true, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return Resolution{}, false, fmt.Errorf("exact lookup %s %q: %w", t, name, err)
	}

	e, err = q.EntityByAlias(ctx, t, name)
	if err == nil {
		return Resolution{Entity: e, Tier: common.TierAlias, Similarity: 1}, true, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return Resolution{}, false, fmt.Errorf("alias lookup %s %q: %w", t, name, err)
	}

	candidates, err := q.SimilarEntities(ctx, t, name, r.threshold)
	if err != nil {
		return Resolution{}, false, fmt.Errorf("fuzzy lookup %s %q: %w", t, name, err)
	}
	best, ok := pick(candidates, r.threshold)
	if !ok {
		return Resolution{}, false, nil
	}
	return Resolution{Entity: best.Entity, Tier: common.TierFuzzy, Similarity: best.Similarity}, true, nil
}

// pick returns the best candidate at or above threshold. Ties fall through
// quality score and alias count to the lowest id.
func pick(candidates []store.Candidate, threshold float64) (store.Candidate, bool) {
	var eligible []store.Candidate
	for _, c := range candidates {
		if c.Similarity >= threshold {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return store.Candidate{}, false
	}
	store.SortCandidates(eligible)
	return eligible[0], true
}

func (r *Resolver) recordAlias(ctx context.Context, q store.Queries, res Resolution, name string) error {
	if res.Tier != common.TierAlias && res.Tier != common.TierFuzzy {
		return nil
	}
	if strings.EqualFold(res.Entity.Name, name) || res.Entity.HasAlias(name) {
		return nil
	}
	err := q.AddAlias(ctx, res.Entity.ID, name)
	if errors.Is(err, store.ErrAliasConflict) {
		logger.Warn("[Resolve] Alias owned by another entity", "alias", name, "entity", res.Entity.Name, "type", res.Entity.Type)
		return nil
	}
	if err != nil {
		return fmt.Errorf("add alias %q to %d: %w", name, res.Entity.ID, err)
	}
	return nil
}
