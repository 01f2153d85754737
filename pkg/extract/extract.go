// Package extract turns community text into normalized mention records:
// admission, classification, compound decomposition, menu-item inference and
// normalization. Everything except the LLM extractor is pure.
package extract

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"

	"github.com/go-playground/validator"
)

// ErrSchemaViolation marks extractor output that does not match the mention
// schema. It is retryable.
var ErrSchemaViolation = errors.New("extraction schema violation")

var validate = validator.New()

// Scope is the context a unit is classified in. It is passed explicitly to
// every stage instead of being shared between units.
type Scope struct {
	// ParentRequest is set when the parent asks for recommendations.
	ParentRequest bool
	// RequestDish is the dish named by the request, if any.
	RequestDish string
	// ParentRestaurant is the restaurant the parent talks about, used to
	// resolve pronouns in the unit.
	ParentRestaurant string
	KnownRestaurants []string
	// Inherited holds the parent's records for short affirmations.
	Inherited []common.MentionRecord
}

// NewScope derives the scope of unit from its parent context.
func NewScope(unit common.ContentUnit, known []string) Scope {
	s := Scope{KnownRestaurants: known}
	parent := strings.TrimSpace(unit.ParentContextText)
	if parent == "" {
		return s
	}

	a := Classify(parent, Scope{KnownRestaurants: known})
	s.ParentRequest = isRequestText(normalizeSpace(parent))
	if len(a.Restaurants) > 0 {
		s.ParentRestaurant = a.Restaurants[0]
	}
	if s.ParentRequest {
		if foods := a.Foods(); len(foods) > 0 {
			s.RequestDish = Decompose(foods[0].Term, nil).Primary
		}
	}
	return s
}

var questionSentence = regexp.MustCompile(`[^.!?\n]*\?`)

// isRequestText reports whether low asks for recommendations.
func isRequestText(low string) bool {
	if containsAny(low, requestMarkers) {
		return true
	}
	for _, q := range questionSentence.FindAllString(low, -1) {
		if containsAny(q, requestQuestionCues) {
			return true
		}
	}
	return false
}

// Extractor turns one content unit into raw candidate mentions. The LLM
// extractor and the rule extractor both implement it.
type Extractor interface {
	Extract(ctx context.Context, unit common.ContentUnit, scope Scope) (*RawCandidates, error)
}

// RawMention is the structured output expected from an extractor.
type RawMention struct {
	RestaurantName            string   `json:"restaurant_name" validate:"required,max=200" jsonschema_description:"Restaurant name as written without leading articles"`
	FoodName                  string   `json:"food_name" validate:"max=200" jsonschema_description:"Dish or food category without attribute words or empty for restaurant-only mentions"`
	FoodCategories            []string `json:"food_categories" validate:"dive,max=200" jsonschema_description:"Parent categories of the food"`
	IsMenuItem                bool     `json:"is_menu_item" jsonschema_description:"True for a specific orderable dish"`
	FoodAttributesSelective   []string `json:"food_attributes_selective" validate:"dive,max=100"`
	FoodAttributesDescriptive []string `json:"food_attributes_descriptive" validate:"dive,max=100"`
	RestaurantAttributes      []string `json:"restaurant_attributes" validate:"dive,max=100"`
	GeneralPraise             bool     `json:"general_praise" jsonschema_description:"True when the restaurant as a whole is praised"`
	SourceID                  string   `json:"source_id" validate:"max=200"`
}

// RawCandidates is the extractor response envelope.
type RawCandidates struct {
	Mentions []RawMention `json:"mentions" validate:"dive"`
}

// Validate checks the candidates against the mention schema.
func (c *RawCandidates) Validate() error {
	if c == nil {
		return ErrSchemaViolation
	}
	return validate.Struct(c)
}
