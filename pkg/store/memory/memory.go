// Package memory is an in-process GraphStorage. Transactions run on a copy
// of the state that replaces the published state only on success, so a
// failed transaction leaves nothing behind. It backs tests and dry runs.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/store"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/trgm"
)

type nameKey struct {
	typ  common.EntityType
	name string
}

func keyOf(t common.EntityType, name string) nameKey {
	return nameKey{typ: t, name: strings.ToLower(strings.TrimSpace(name))}
}

type connKey struct {
	restaurantID int64
	foodID       int64
	attrs        string
}

type mentionKey struct {
	connectionID int64
	sourceType   common.SourceType
	sourceID     string
}

// state is never mutated once published.
type state struct {
	nextID int64

	entities map[int64]common.Entity
	byName   map[nameKey]int64
	byAlias  map[nameKey]int64

	connections map[int64]common.Connection
	byConnKey   map[connKey]int64

	mentions    map[int64]common.Mention
	mentionKeys map[mentionKey]int64

	restaurantAttrs map[[2]int64]struct{}

	deadLetters []common.DeadLetter
	runs        []common.BatchReport
}

func newState() *state {
	return &state{
		entities:        map[int64]common.Entity{},
		byName:          map[nameKey]int64{},
		byAlias:         map[nameKey]int64{},
		connections:     map[int64]common.Connection{},
		byConnKey:       map[connKey]int64{},
		mentions:        map[int64]common.Mention{},
		mentionKeys:     map[mentionKey]int64{},
		restaurantAttrs: map[[2]int64]struct{}{},
	}
}

func (s *state) clone() *state {
	return &state{
		nextID:          s.nextID,
		entities:        maps.Clone(s.entities),
		byName:          maps.Clone(s.byName),
		byAlias:         maps.Clone(s.byAlias),
		connections:     maps.Clone(s.connections),
		byConnKey:       maps.Clone(s.byConnKey),
		mentions:        maps.Clone(s.mentions),
		mentionKeys:     maps.Clone(s.mentionKeys),
		restaurantAttrs: maps.Clone(s.restaurantAttrs),
		deadLetters:     slices.Clone(s.deadLetters),
		runs:            slices.Clone(s.runs),
	}
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// Store implements store.GraphStorage in memory.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

type Option func(*Store)

// WithClock sets the time source used for created_at columns.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(opts ...Option) *Store {
	s := &Store{st: newState(), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) published() *state {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

func (s *Store) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	q := &queries{st: s.st.clone(), now: s.now}
	if err := fn(q); err != nil {
		return err
	}
	s.st = q.st
	return nil
}

func (s *Store) WithSnapshot(ctx context.Context, fn func(r store.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&queries{st: s.published(), now: s.now})
}

func (s *Store) KnownRestaurants(ctx context.Context, limit int) ([]string, error) {
	st := s.published()
	var out []string
	for _, e := range sortedEntities(st) {
		if e.Type != common.EntityTypeRestaurant {
			continue
		}
		out = append(out, e.Name)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) SaveDeadLetter(ctx context.Context, d common.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.st.clone()
	next.deadLetters = append(next.deadLetters, d)
	s.st = next
	return nil
}

func (s *Store) SaveBatchRun(ctx context.Context, r *common.BatchReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.st.clone()
	next.runs = append(next.runs, *r)
	s.st = next
	return nil
}

// Entities returns all entities of type t ordered by id.
func (s *Store) Entities(t common.EntityType) []common.Entity {
	var out []common.Entity
	for _, e := range sortedEntities(s.published()) {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Connections returns all connections ordered by id.
func (s *Store) Connections() []common.Connection {
	st := s.published()
	out := slices.Collect(maps.Values(st.connections))
	slices.SortFunc(out, func(a, b common.Connection) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Mentions returns all mentions ordered by id.
func (s *Store) Mentions() []common.Mention {
	st := s.published()
	out := slices.Collect(maps.Values(st.mentions))
	slices.SortFunc(out, func(a, b common.Mention) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// RestaurantAttributes returns the attribute entity ids linked to a restaurant.
func (s *Store) RestaurantAttributes(restaurantID int64) []int64 {
	var out []int64
	for k := range s.published().restaurantAttrs {
		if k[0] == restaurantID {
			out = append(out, k[1])
		}
	}
	slices.Sort(out)
	return out
}

func (s *Store) DeadLetters() []common.DeadLetter {
	return slices.Clone(s.published().deadLetters)
}

func (s *Store) BatchRuns() []common.BatchReport {
	return slices.Clone(s.published().runs)
}

func sortedEntities(st *state) []common.Entity {
	out := slices.Collect(maps.Values(st.entities))
	slices.SortFunc(out, func(a, b common.Entity) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

type queries struct {
	st  *state
	now func() time.Time
}

func (q *queries) EntityByName(ctx context.Context, t common.EntityType, name string) (common.Entity, error) {
	id, ok := q.st.byName[keyOf(t, name)]
	if !ok {
		return common.Entity{}, store.ErrNotFound
	}
	return q.st.entities[id], nil
}

func (q *queries) EntityByAlias(ctx context.Context, t common.EntityType, alias string) (common.Entity, error) {
	id, ok := q.st.byAlias[keyOf(t, alias)]
	if !ok {
		return common.Entity{}, store.ErrNotFound
	}
	return q.st.entities[id], nil
}

func (q *queries) SimilarEntities(ctx context.Context, t common.EntityType, name string, threshold float64) ([]store.Candidate, error) {
	var out []store.Candidate
	for _, e := range q.st.entities {
		if e.Type != t {
			continue
		}
		best := trgm.Similarity(e.Name, name)
		for _, a := range e.Aliases {
			best = max(best, trgm.Similarity(a, name))
		}
		if best >= threshold {
			out = append(out, store.Candidate{Entity: e, Similarity: best})
		}
	}
	store.SortCandidates(out)
	return out, nil
}

func (q *queries) CreateEntity(ctx context.Context, name string, t common.EntityType) (common.Entity, error) {
	k := keyOf(t, name)
	if _, ok := q.st.byName[k]; ok {
		return common.Entity{}, store.ErrUniqueViolation
	}
	e := common.Entity{
		ID:        q.st.id(),
		Name:      strings.TrimSpace(name),
		Type:      t,
		Aliases:   []string{},
		CreatedAt: q.now(),
	}
	q.st.entities[e.ID] = e
	q.st.byName[k] = e.ID
	return e, nil
}

func (q *queries) AddAlias(ctx context.Context, entityID int64, alias string) error {
	e, ok := q.st.entities[entityID]
	if !ok {
		return store.ErrNotFound
	}
	k := keyOf(e.Type, alias)
	if owner, ok := q.st.byName[k]; ok {
		if owner == entityID {
			return nil
		}
		return store.ErrAliasConflict
	}
	if owner, ok := q.st.byAlias[k]; ok {
		if owner == entityID {
			return nil
		}
		return store.ErrAliasConflict
	}
	e.Aliases = append(slices.Clone(e.Aliases), strings.TrimSpace(alias))
	q.st.entities[entityID] = e
	q.st.byAlias[k] = entityID
	return nil
}

func connKeyOf(k common.ConnectionKey) connKey {
	return connKey{restaurantID: k.RestaurantID, foodID: k.FoodID, attrs: k.AttributeKey()}
}

func (q *queries) ConnectionByKey(ctx context.Context, key common.ConnectionKey) (common.Connection, error) {
	id, ok := q.st.byConnKey[connKeyOf(key)]
	if !ok {
		return common.Connection{}, store.ErrNotFound
	}
	return q.st.connections[id], nil
}

func (q *queries) CreateConnection(ctx context.Context, c common.Connection) (common.Connection, error) {
	k := connKeyOf(c.Key())
	if _, ok := q.st.byConnKey[k]; ok {
		return common.Connection{}, store.ErrUniqueViolation
	}
	c.ID = q.st.id()
	c.DishAttributeIDs = common.SortedIDSet(c.DishAttributeIDs)
	c.CategoryIDs = common.SortedIDSet(c.CategoryIDs)
	c.MentionCount = 0
	c.TotalUpvotes = 0
	if c.ActivityLevel == "" {
		c.ActivityLevel = common.ActivityNormal
	}
	q.st.connections[c.ID] = c
	q.st.byConnKey[k] = c.ID
	return c, nil
}

func (q *queries) IncrementConnection(ctx context.Context, id int64, d store.ConnectionDelta) (common.Connection, error) {
	c, ok := q.st.connections[id]
	if !ok {
		return common.Connection{}, store.ErrNotFound
	}
	c.MentionCount++
	c.TotalUpvotes += int64(d.Upvotes)
	if d.MentionedAt.After(c.LastMentionedAt) {
		c.LastMentionedAt = d.MentionedAt
	}
	c.IsMenuItem = c.IsMenuItem || d.IsMenuItem
	c.CategoryIDs = common.SortedIDSet(append(slices.Clone(c.CategoryIDs), d.CategoryIDs...))
	q.st.connections[id] = c
	return c, nil
}

func (q *queries) SetActivityLevel(ctx context.Context, id int64, level common.ActivityLevel) error {
	c, ok := q.st.connections[id]
	if !ok {
		return store.ErrNotFound
	}
	c.ActivityLevel = level
	q.st.connections[id] = c
	return nil
}

func (q *queries) InsertMention(ctx context.Context, m common.Mention) (bool, error) {
	if _, ok := q.st.connections[m.ConnectionID]; !ok {
		return false, store.ErrNotFound
	}
	k := mentionKey{connectionID: m.ConnectionID, sourceType: m.SourceType, sourceID: m.SourceID}
	if _, ok := q.st.mentionKeys[k]; ok {
		return false, nil
	}
	m.ID = q.st.id()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = q.now()
	}
	q.st.mentions[m.ID] = m
	q.st.mentionKeys[k] = m.ID
	return true, nil
}

func (q *queries) LinkRestaurantAttribute(ctx context.Context, restaurantID, attributeID int64) error {
	if _, ok := q.st.entities[restaurantID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := q.st.entities[attributeID]; !ok {
		return store.ErrNotFound
	}
	q.st.restaurantAttrs[[2]int64{restaurantID, attributeID}] = struct{}{}
	return nil
}

func (s *Store) EntityByID(ctx context.Context, id int64) (common.Entity, error) {
	e, ok := s.published().entities[id]
	if !ok {
		return common.Entity{}, store.ErrNotFound
	}
	return e, nil
}

func (s *Store) RestaurantConnections(ctx context.Context, restaurantID int64, limit int) ([]common.Connection, error) {
	var out []common.Connection
	for _, c := range s.Connections() {
		if c.RestaurantID == restaurantID {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b common.Connection) int {
		return cmp.Or(cmp.Compare(b.MentionCount, a.MentionCount), cmp.Compare(a.ID, b.ID))
	})
	return out[:min(len(out), store.ListLimit(limit))], nil
}

func (s *Store) ConnectionMentions(ctx context.Context, connectionID int64, limit int) ([]common.Mention, error) {
	var out []common.Mention
	for _, m := range s.Mentions() {
		if m.ConnectionID == connectionID {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b common.Mention) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	return out[:min(len(out), store.ListLimit(limit))], nil
}

func (s *Store) LatestBatchRun(ctx context.Context, batchID string) (common.BatchReport, error) {
	runs := s.published().runs
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].BatchID == batchID {
			return runs[i], nil
		}
	}
	return common.BatchReport{}, store.ErrNotFound
}
