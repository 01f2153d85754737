package extract

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"

	"pgregory.net/rapid"
)

// runRules pushes unit through gate, rule extraction, normalization and
// validation the way the batch pipeline does.
func runRules(t *testing.T, unit common.ContentUnit) []common.MentionRecord {
	t.Helper()
	scope := NewScope(unit, nil)
	if d := Gate(unit, scope); d.Verdict != VerdictAdmit {
		return nil
	}
	raw, err := NewRuleExtractor().Extract(context.Background(), unit, scope)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	records := NewNormalizer().Normalize(unit, scope, raw)
	out, _ := Validate(unit, scope, records)
	return out
}

func TestRules_PraiseAndDishIsOneMention(t *testing.T) {
	got := runRules(t, comment("Franklin BBQ is amazing and their brisket is great", ""))
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 mention, got %+v", got)
	}
	r := got[0]
	if r.RestaurantName != "franklin bbq" || r.FoodName != "brisket" || !r.GeneralPraise {
		t.Fatalf("unexpected mention %+v", r)
	}
}

func TestRules_RecommendationReplyListsRestaurants(t *testing.T) {
	got := runRules(t, comment("Yafa Deli\nCrispy Burger", "Where should I eat?"))
	if len(got) != 2 {
		t.Fatalf("expected 2 mentions, got %+v", got)
	}
	names := []string{got[0].RestaurantName, got[1].RestaurantName}
	if !slices.Equal(names, []string{"yafa deli", "crispy burger"}) {
		t.Fatalf("unexpected restaurants %v", names)
	}
	for _, r := range got {
		if !r.RestaurantOnly() || !r.GeneralPraise {
			t.Fatalf("expected restaurant-only praise, got %+v", r)
		}
	}
}

func TestRules_DishRequestReplyWithCaveat(t *testing.T) {
	got := runRules(t, comment("Crispy Burger — sides suck", "Best burger in EV?"))
	if len(got) != 1 {
		t.Fatalf("expected 1 mention, got %+v", got)
	}
	r := got[0]
	if r.RestaurantName != "crispy burger" || r.FoodName != "burger" || r.IsMenuItem || r.GeneralPraise {
		t.Fatalf("unexpected mention %+v", r)
	}
	if len(r.DishAttributes) != 0 || len(r.RestaurantAttributes) != 0 {
		t.Fatalf("caveat leaked into attributes: %+v", r)
	}
}

func TestRules_ReplyWithExplicitNegativeIsDropped(t *testing.T) {
	got := runRules(t, comment("Avoid Burger Barn", "Where should I eat?"))
	if len(got) != 0 {
		t.Fatalf("expected no mentions, got %+v", got)
	}
}

func TestRules_PronounResolvesToParentRestaurant(t *testing.T) {
	got := runRules(t, comment("Their brisket is incredible", "Has anyone been to Franklin BBQ lately"))
	if len(got) != 1 {
		t.Fatalf("expected 1 mention, got %+v", got)
	}
	if got[0].RestaurantName != "franklin bbq" || got[0].FoodName != "brisket" {
		t.Fatalf("unexpected mention %+v", got[0])
	}
}

func TestRules_SingleWordNameTakenUpByPronoun(t *testing.T) {
	got := runRules(t, comment("Lucali is great, they have amazing Italian pizza", ""))
	if len(got) != 1 {
		t.Fatalf("expected 1 mention, got %+v", got)
	}
	if got[0].RestaurantName != "lucali" || !strings.Contains(got[0].FoodName, "pizza") {
		t.Fatalf("unexpected mention %+v", got[0])
	}
}

func TestRules_AttributesAndCaveat(t *testing.T) {
	got := runRules(t, comment("Veracruz All Natural has a great fish taco, but the wait is long", ""))
	if len(got) != 1 {
		t.Fatalf("expected 1 mention, got %+v", got)
	}
	r := got[0]
	if r.RestaurantName != "veracruz all natural" || r.FoodName != "fish taco" {
		t.Fatalf("unexpected mention %+v", r)
	}
	for _, a := range r.RestaurantAttributes {
		if strings.Contains(a, "wait") || strings.Contains(a, "long") {
			t.Fatalf("caveat extracted as attribute: %v", r.RestaurantAttributes)
		}
	}
}

func TestRules_SkippedUnitsEmitNothing(t *testing.T) {
	for _, text := range []string{
		"I heard Franklin BBQ has amazing brisket",
		"Franklin BBQ used to have amazing brisket",
		"Where should I get tacos?",
		"Parking downtown is terrible",
	} {
		if got := runRules(t, comment(text, "")); len(got) != 0 {
			t.Fatalf("%q: expected no mentions, got %+v", text, got)
		}
	}
}

func TestRuleExtractor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewRuleExtractor().Extract(ctx, comment("Franklin BBQ is great", ""), Scope{}); err == nil {
		t.Fatal("expected context error")
	}
}

var fragments = []string{
	"Franklin BBQ", "is amazing", "their brisket", "is great", "Yafa Deli", "but the wait is long",
	"I heard", "used to", "+1", "tacos", "Where should I eat?", "\n", "and", "the pad thai", "Crispy Burger",
	"—", "spicy", "cozy", "Italian", ".", "!", "vegan ramen",
}

func TestRules_ContextOnlyPostNeverEmits(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		parts := rapid.SliceOfN(rapid.SampledFrom(fragments), 1, 12).Draw(rt, "parts")
		unit := common.ContentUnit{
			Text:       strings.Join(parts, " "),
			SourceType: common.SourceTypePost,
			SourceID:   "p1",
		}
		scope := NewScope(unit, nil)
		if d := Gate(unit, scope); d.Verdict != VerdictSkip || d.Reason != ReasonContextOnly {
			rt.Fatalf("Gate() = %+v", d)
		}
		raw, err := NewRuleExtractor().Extract(context.Background(), unit, scope)
		if err != nil {
			rt.Fatalf("Extract() error: %v", err)
		}
		if got := NewNormalizer().Normalize(unit, scope, raw); got != nil {
			rt.Fatalf("Normalize() = %+v", got)
		}
	})
}

func TestRules_RecordsNeverCarryAttributeCategories(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		parts := rapid.SliceOfN(rapid.SampledFrom(fragments), 1, 12).Draw(rt, "parts")
		unit := comment(strings.Join(parts, " "), "")
		scope := NewScope(unit, nil)
		raw, err := NewRuleExtractor().Extract(context.Background(), unit, scope)
		if err != nil {
			rt.Fatalf("Extract() error: %v", err)
		}
		for _, r := range NewNormalizer().Normalize(unit, scope, raw) {
			if r.RestaurantName == "" {
				rt.Fatalf("record without restaurant: %+v", r)
			}
			for _, a := range r.DishAttributes {
				for _, c := range r.Categories {
					if slices.Contains(strings.Fields(c), a.Name) {
						rt.Fatalf("attribute %q in category %q", a.Name, c)
					}
				}
			}
		}
	})
}
