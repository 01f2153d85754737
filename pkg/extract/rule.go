package extract

import (
	"context"
	"slices"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
)

// RuleExtractor implements Extractor with the classification heuristics of
// this package and no model call.
type RuleExtractor struct{}

func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{}
}

func (e *RuleExtractor) Extract(ctx context.Context, unit common.ContentUnit, scope Scope) (*RawCandidates, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := Classify(unit.Text, scope)
	return &RawCandidates{Mentions: ruleMentions(unit, scope, a)}, nil
}

func ruleMentions(unit common.ContentUnit, scope Scope, a Analysis) []RawMention {
	siblings := a.FoodTerms()

	var restaurants []string
	for _, c := range a.Clauses {
		for _, r := range c.Targets {
			if !slices.Contains(restaurants, r) {
				restaurants = append(restaurants, r)
			}
		}
	}

	var out []RawMention
	for _, r := range restaurants {
		praise := a.HolisticPraise(r)
		rattrs := a.RestaurantAttributesOf(r)
		foods := foodsOf(a, r)

		for _, f := range foods {
			m := RawMention{
				RestaurantName:       r,
				FoodName:             f.Term,
				IsMenuItem:           IsMenuItem(f.Term, f.Sentence, siblings),
				GeneralPraise:        praise,
				RestaurantAttributes: rattrs,
				SourceID:             unit.SourceID,
			}
			var names []string
			for _, attr := range f.Attributes {
				names = append(names, attr.Name)
				if attr.Kind == common.AttributeDescriptive {
					m.FoodAttributesDescriptive = append(m.FoodAttributesDescriptive, attr.Name)
				} else {
					m.FoodAttributesSelective = append(m.FoodAttributesSelective, attr.Name)
				}
			}
			m.FoodCategories = Decompose(f.Term, names).Categories
			out = append(out, m)
		}
		// replies to a request keep every named place, the reply rules in
		// Normalize decide what it becomes
		if len(foods) == 0 && (praise || len(rattrs) > 0 || scope.ParentRequest) {
			out = append(out, RawMention{
				RestaurantName:       r,
				GeneralPraise:        praise,
				RestaurantAttributes: rattrs,
				SourceID:             unit.SourceID,
			})
		}
	}
	return out
}

func foodsOf(a Analysis, restaurant string) []FoodPhrase {
	var out []FoodPhrase
	seen := map[string]bool{}
	for _, c := range a.Clauses {
		if !slices.Contains(c.Targets, restaurant) {
			continue
		}
		for _, f := range c.Foods {
			if seen[f.Surface] {
				continue
			}
			seen[f.Surface] = true
			out = append(out, f)
		}
	}
	return out
}
