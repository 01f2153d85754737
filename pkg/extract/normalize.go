package extract

import (
	"slices"
	"strings"
	"unicode"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/logger"
)

// NormalizeName lowercases s, strips a leading article, normalises
// punctuation and whitespace and fixes unambiguous typos.
func NormalizeName(s string) string {
	s = strings.ToLower(quoteReplacer.Replace(s))
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '\'', r == '-', r == '&':
			return r
		case r == '_' || r == '/' || unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			return ' '
		}
		return -1
	}, s)

	words := strings.Fields(s)
	out := words[:0]
	for _, w := range words {
		w = strings.Trim(w, "'-")
		if w == "" {
			continue
		}
		if fixed, ok := typoTable[w]; ok {
			w = fixed
		}
		out = append(out, w)
	}
	if len(out) > 1 {
		switch out[0] {
		case "the", "a", "an":
			out = out[1:]
		}
	}
	return strings.Join(out, " ")
}

// Normalizer assembles final mention records from extractor output.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize turns raw candidates for unit into mention records. Food names
// are re-decomposed, attribute words are removed from categories, replies to
// recommendation requests are branched on the request and holistic praise is
// folded into the food mentions of the same restaurant.
func (n *Normalizer) Normalize(unit common.ContentUnit, scope Scope, raw *RawCandidates) []common.MentionRecord {
	if raw == nil || (unit.SourceType == common.SourceTypePost && !unit.ExtractFromPost) {
		return nil
	}

	var out []common.MentionRecord
	for _, m := range raw.Mentions {
		if m.SourceID != "" && m.SourceID != unit.SourceID {
			logger.Debug("[Extract] source id mismatch in extractor output", "want", unit.SourceID, "got", m.SourceID)
		}
		rec, ok := n.record(unit, m)
		if ok {
			out = append(out, rec)
		}
	}
	if scope.ParentRequest {
		out = replyRecords(unit, scope, out)
	}
	return mergeRecords(out)
}

// replyRecords applies the recommendation-reply rules to records of a unit
// answering a request. Restaurants the reply speaks against are dropped. A
// bare restaurant answers a dish-less request with general praise; with a
// requested dish it becomes a mention of that dish, which is not taken as a
// menu item unless the reply names the dish itself.
func replyRecords(unit common.ContentUnit, scope Scope, records []common.MentionRecord) []common.MentionRecord {
	a := Classify(unit.Text, scope)
	raw := map[string]string{}
	for _, r := range a.Restaurants {
		raw[NormalizeName(r)] = r
	}
	dish := NormalizeName(scope.RequestDish)
	named := dish != "" && replyNamesDish(a, dish)

	hasFood := map[string]bool{}
	for _, r := range records {
		if !r.RestaurantOnly() {
			hasFood[r.RestaurantName] = true
		}
	}

	out := records[:0]
	for _, r := range records {
		if negativeAbout(a, r.RestaurantName) {
			logger.Debug("[Extract] dropping restaurant the reply advises against", "source", unit.SourceID, "restaurant", r.RestaurantName)
			continue
		}
		switch {
		case dish == "" && r.RestaurantOnly():
			r.GeneralPraise = true
		case dish == "":
		case r.RestaurantOnly() && hasFood[r.RestaurantName]:
		case r.RestaurantOnly():
			d := Decompose(dish, nil)
			r.FoodName = d.Primary
			r.Categories = d.Categories
			r.IsMenuItem = false
			if name, ok := raw[r.RestaurantName]; ok {
				r.GeneralPraise = a.HolisticPraise(name)
			}
		case !named && (r.FoodName == dish || slices.Contains(r.Categories, dish)):
			r.IsMenuItem = false
			if name, ok := raw[r.RestaurantName]; ok {
				r.GeneralPraise = a.HolisticPraise(name)
			}
		}
		out = append(out, r)
	}
	return out
}

// replyNamesDish reports whether the reply mentions dish as food, outside
// any restaurant name.
func replyNamesDish(a Analysis, dish string) bool {
	for _, f := range a.Foods() {
		if f.Term == dish || slices.Contains(Decompose(f.Term, nil).Categories, dish) {
			return true
		}
	}
	return false
}

// negativeAbout matches explicit negative clauses against a normalised
// restaurant name, either as a clause target or inside the clause text.
func negativeAbout(a Analysis, restaurant string) bool {
	for _, c := range a.Clauses {
		if !c.ExplicitNegative {
			continue
		}
		for _, t := range c.Targets {
			if NormalizeName(t) == restaurant {
				return true
			}
		}
		if containsPhrase(NormalizeName(c.Text), restaurant) {
			return true
		}
	}
	return false
}

func (n *Normalizer) record(unit common.ContentUnit, m RawMention) (common.MentionRecord, bool) {
	rec := common.MentionRecord{
		RestaurantName: NormalizeName(m.RestaurantName),
		IsMenuItem:     m.IsMenuItem,
		GeneralPraise:  m.GeneralPraise,
		Source:         unit.Ref(),
	}
	if rec.RestaurantName == "" {
		return rec, false
	}

	for _, a := range m.FoodAttributesSelective {
		rec.DishAttributes = appendAttr(rec.DishAttributes, common.Attribute{Name: NormalizeName(a), Kind: common.AttributeSelective})
	}
	for _, a := range m.FoodAttributesDescriptive {
		rec.DishAttributes = appendAttr(rec.DishAttributes, common.Attribute{Name: NormalizeName(a), Kind: common.AttributeDescriptive})
	}
	rec.DishAttributes = slices.DeleteFunc(rec.DishAttributes, func(a common.Attribute) bool { return a.Name == "" })

	food := NormalizeName(m.FoodName)
	if food != "" {
		food, lead := splitLeadingAttributes(food)
		for _, a := range lead {
			rec.DishAttributes = appendAttr(rec.DishAttributes, a)
		}
		names := attributeNames(rec.DishAttributes)
		d := Decompose(food, names)
		rec.FoodName = d.Primary
		rec.Categories = d.Categories
		for _, c := range m.FoodCategories {
			c = singularPhrase(NormalizeName(c))
			if c == "" || c == rec.RestaurantName || slices.Contains(rec.Categories, c) || mentionsAttribute(c, names) {
				continue
			}
			rec.Categories = append(rec.Categories, c)
		}
	}
	if rec.FoodName == "" {
		rec.IsMenuItem = false
		rec.DishAttributes = nil
		rec.Categories = nil
	}

	for _, a := range m.RestaurantAttributes {
		a = NormalizeName(a)
		if a != "" && !slices.Contains(rec.RestaurantAttributes, a) {
			rec.RestaurantAttributes = append(rec.RestaurantAttributes, a)
		}
	}
	return rec, true
}

// splitLeadingAttributes moves attribute words at the start of a food phrase
// into attributes, unless they belong to a multiword dish like "fried rice".
func splitLeadingAttributes(food string) (string, []common.Attribute) {
	words := strings.Fields(food)
	var attrs []common.Attribute
	for len(words) > 1 && isAttributeWord(words[0]) && !startsCompound(words) {
		if has(cuisines, words[0]) && has(genericHeads, words[len(words)-1]) {
			break
		}
		kind := common.AttributeSelective
		if has(descriptives, words[0]) {
			kind = common.AttributeDescriptive
		}
		if !has(restaurantAttributes, words[0]) {
			attrs = append(attrs, common.Attribute{Name: words[0], Kind: kind})
		}
		words = words[1:]
	}
	return strings.Join(words, " "), attrs
}

func startsCompound(words []string) bool {
	for _, dish := range compoundDishes {
		dw := strings.Fields(dish)
		if len(dw) <= len(words) && slices.Equal(dw, words[:len(dw)]) {
			return true
		}
	}
	return false
}

func attributeNames(attrs []common.Attribute) []string {
	out := make([]string, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, a.Name)
	}
	return out
}

func mentionsAttribute(category string, attrs []string) bool {
	words := strings.Fields(category)
	for _, a := range attrs {
		if slices.Contains(words, a) || category == a {
			return true
		}
	}
	return false
}

func recordKey(r common.MentionRecord) string {
	sel := r.SelectiveAttributes()
	slices.Sort(sel)
	return r.RestaurantName + "\x00" + r.FoodName + "\x00" + strings.Join(sel, ",")
}

// mergeRecords collapses duplicates and folds restaurant-only records into
// the food records of the same restaurant, so holistic praise next to a dish
// yields a single mention.
func mergeRecords(records []common.MentionRecord) []common.MentionRecord {
	var out []common.MentionRecord
	index := map[string]int{}
	for _, r := range records {
		k := recordKey(r)
		if i, ok := index[k]; ok {
			out[i] = mergeInto(out[i], r)
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}

	hasFood := map[string]bool{}
	for _, r := range out {
		if !r.RestaurantOnly() {
			hasFood[r.RestaurantName] = true
		}
	}
	var folded []common.MentionRecord
	for _, r := range out {
		if !r.RestaurantOnly() || !hasFood[r.RestaurantName] {
			folded = append(folded, r)
		}
	}
	for _, ro := range out {
		if !ro.RestaurantOnly() || !hasFood[ro.RestaurantName] {
			continue
		}
		for i := range folded {
			if folded[i].RestaurantName != ro.RestaurantName {
				continue
			}
			folded[i].GeneralPraise = folded[i].GeneralPraise || ro.GeneralPraise
			folded[i].RestaurantAttributes = union(folded[i].RestaurantAttributes, ro.RestaurantAttributes)
		}
	}
	return folded
}

func mergeInto(dst, src common.MentionRecord) common.MentionRecord {
	dst.GeneralPraise = dst.GeneralPraise || src.GeneralPraise
	dst.IsMenuItem = dst.IsMenuItem || src.IsMenuItem
	dst.Categories = union(dst.Categories, src.Categories)
	dst.RestaurantAttributes = union(dst.RestaurantAttributes, src.RestaurantAttributes)
	for _, a := range src.DishAttributes {
		dst.DishAttributes = appendAttr(dst.DishAttributes, a)
	}
	return dst
}

func union(a, b []string) []string {
	out := slices.Clone(a)
	for _, s := range b {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// Inherit copies the parent's records onto an affirmation unit. Only the
// source changes; entities and sentiment are taken over as they are.
func Inherit(unit common.ContentUnit, parent []common.MentionRecord) []common.MentionRecord {
	if unit.SourceType == common.SourceTypePost && !unit.ExtractFromPost {
		return nil
	}
	out := make([]common.MentionRecord, 0, len(parent))
	for _, r := range parent {
		c := r
		c.Categories = slices.Clone(r.Categories)
		c.DishAttributes = slices.Clone(r.DishAttributes)
		c.RestaurantAttributes = slices.Clone(r.RestaurantAttributes)
		c.Source = unit.Ref()
		out = append(out, c)
	}
	return out
}
