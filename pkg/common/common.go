package common

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// EntityType is the closed set of node kinds in the dish graph.
type EntityType string

const (
	EntityTypeRestaurant          EntityType = "restaurant"
	EntityTypeFood                EntityType = "food"
	EntityTypeDishAttribute       EntityType = "dish_attribute"
	EntityTypeRestaurantAttribute EntityType = "restaurant_attribute"
)

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityTypeRestaurant, EntityTypeFood, EntityTypeDishAttribute, EntityTypeRestaurantAttribute:
		return true
	}
	return false
}

// SourceType identifies where a piece of community content came from.
type SourceType string

const (
	SourceTypePost    SourceType = "post"
	SourceTypeComment SourceType = "comment"
)

// ActivityLevel is derived from how recently a connection was mentioned.
type ActivityLevel string

const (
	ActivityTrending ActivityLevel = "trending"
	ActivityActive   ActivityLevel = "active"
	ActivityNormal   ActivityLevel = "normal"
)

// ContentUnit is a single post or comment handed to the pipeline by the
// content retrieval layer.
type ContentUnit struct {
	Text              string     `json:"text"`
	ParentContextText string     `json:"parent_context_text"`
	ParentID          string     `json:"parent_id,omitempty"`
	ExtractFromPost   bool       `json:"extract_from_post"`
	SourceType        SourceType `json:"source_type"`
	SourceID          string     `json:"source_id"`
	SourceURL         string     `json:"source_url,omitempty"`
	Upvotes           int        `json:"upvotes"`
	Subreddit         string     `json:"subreddit"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Ref returns the source reference of the unit.
func (u ContentUnit) Ref() SourceRef {
	return SourceRef{Type: u.SourceType, ID: u.SourceID}
}

// SourceRef identifies external content for idempotence and replay.
type SourceRef struct {
	Type SourceType `json:"source_type"`
	ID   string     `json:"source_id"`
}

func (r SourceRef) String() string {
	return string(r.Type) + ":" + r.ID
}

// Entity is a node of the knowledge graph. (Name, Type) is unique.
type Entity struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Type         EntityType `json:"type"`
	Aliases      []string   `json:"aliases"`
	QualityScore float64    `json:"quality_score"`
	CreatedAt    time.Time  `json:"created_at"`
}

// HasAlias reports whether alias is already recorded, ignoring case.
func (e Entity) HasAlias(alias string) bool {
	alias = strings.ToLower(strings.TrimSpace(alias))
	for _, a := range e.Aliases {
		if strings.ToLower(a) == alias {
			return true
		}
	}
	return false
}

// ConnectionKey is the identity of a connection. FoodID is zero for
// restaurant-level connections that carry general praise only.
type ConnectionKey struct {
	RestaurantID     int64
	FoodID           int64
	DishAttributeIDs []int64
}

// AttributeKey returns a canonical string for the dish attribute set.
func (k ConnectionKey) AttributeKey() string {
	return IDSetKey(k.DishAttributeIDs)
}

// IDSetKey sorts and deduplicates ids and joins them with commas.
func IDSetKey(ids []int64) string {
	sorted := SortedIDSet(ids)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// SortedIDSet returns ids sorted ascending without duplicates.
func SortedIDSet(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// Connection is an edge between a restaurant and a food or category,
// optionally scoped by a set of dish attributes.
type Connection struct {
	ID               int64         `json:"id"`
	RestaurantID     int64         `json:"restaurant_id"`
	FoodID           int64         `json:"food_id"`
	CategoryIDs      []int64       `json:"category_ids"`
	DishAttributeIDs []int64       `json:"dish_attribute_ids"`
	IsMenuItem       bool          `json:"is_menu_item"`
	MentionCount     int           `json:"mention_count"`
	TotalUpvotes     int64         `json:"total_upvotes"`
	LastMentionedAt  time.Time     `json:"last_mentioned_at"`
	ActivityLevel    ActivityLevel `json:"activity_level"`
	QualityScore     float64       `json:"quality_score"`
}

// Key returns the identity of the connection.
func (c Connection) Key() ConnectionKey {
	return ConnectionKey{
		RestaurantID:     c.RestaurantID,
		FoodID:           c.FoodID,
		DishAttributeIDs: SortedIDSet(c.DishAttributeIDs),
	}
}

// Mention is one piece of evidence attached to a connection.
type Mention struct {
	ID            int64      `json:"id"`
	ConnectionID  int64      `json:"connection_id"`
	SourceType    SourceType `json:"source_type"`
	SourceID      string     `json:"source_id"`
	Excerpt       string     `json:"excerpt"`
	Upvotes       int        `json:"upvotes"`
	SourceURL     string     `json:"source_url"`
	Sentiment     string     `json:"sentiment"`
	GeneralPraise bool       `json:"general_praise"`
	CreatedAt     time.Time  `json:"created_at"`
}

// AttributeKind separates filtering attributes from instance descriptions.
type AttributeKind string

const (
	AttributeSelective   AttributeKind = "selective"
	AttributeDescriptive AttributeKind = "descriptive"
)

// Attribute is a normalized attribute term together with its kind.
type Attribute struct {
	Name string        `json:"name"`
	Kind AttributeKind `json:"kind"`
}

// MentionRecord is the normalized output of extraction, ready for
// resolution. FoodName is empty for restaurant-only mentions.
type MentionRecord struct {
	RestaurantName       string      `json:"restaurant_name"`
	FoodName             string      `json:"food_name,omitempty"`
	Categories           []string    `json:"food_categories"`
	DishAttributes       []Attribute `json:"dish_attributes"`
	RestaurantAttributes []string    `json:"restaurant_attributes"`
	IsMenuItem           bool        `json:"is_menu_item"`
	GeneralPraise        bool        `json:"general_praise"`
	Source               SourceRef   `json:"source"`
}

// RestaurantOnly reports whether the record names no food.
func (m MentionRecord) RestaurantOnly() bool {
	return m.FoodName == ""
}

// SelectiveAttributes returns the names of selective dish attributes.
func (m MentionRecord) SelectiveAttributes() []string {
	return m.attributesOfKind(AttributeSelective)
}

// DescriptiveAttributes returns the names of descriptive dish attributes.
func (m MentionRecord) DescriptiveAttributes() []string {
	return m.attributesOfKind(AttributeDescriptive)
}

func (m MentionRecord) attributesOfKind(kind AttributeKind) []string {
	var out []string
	for _, a := range m.DishAttributes {
		if a.Kind == kind {
			out = append(out, a.Name)
		}
	}
	return out
}

// ResolutionTier records which strategy identified an entity.
type ResolutionTier string

const (
	TierExact  ResolutionTier = "exact"
	TierAlias  ResolutionTier = "alias"
	TierFuzzy  ResolutionTier = "fuzzy"
	TierCreate ResolutionTier = "create"
)

// BatchReport summarises one batch run.
type BatchReport struct {
	RunID            string         `json:"run_id"`
	BatchID          string         `json:"batch_id"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       time.Time      `json:"finished_at"`
	Units            int            `json:"units"`
	Admitted         int            `json:"admitted"`
	Skipped          int            `json:"skipped"`
	ResolvedExisting int            `json:"resolved_existing"`
	CreatedNew       int            `json:"created_new"`
	Failed           int            `json:"failed"`
	MentionsInserted int            `json:"mentions_inserted"`
	MentionsIgnored  int            `json:"mentions_ignored"`
	SkipReasons      map[string]int `json:"skip_reasons"`
	FailedSources    []SourceRef    `json:"failed_sources"`
	Cancelled        bool           `json:"cancelled"`
}

// DeadLetter is a unit that could not be processed and needs manual review.
type DeadLetter struct {
	ID        string      `json:"id"`
	RunID     string      `json:"run_id"`
	Kind      string      `json:"kind"`
	Source    SourceRef   `json:"source"`
	Unit      ContentUnit `json:"unit"`
	Error     string      `json:"error"`
	CreatedAt time.Time   `json:"created_at"`
}
