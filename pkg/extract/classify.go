package extract

import (
	"slices"
	"strings"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
)

type Sentiment int

const (
	SentimentNeutral Sentiment = iota
	SentimentPositive
	SentimentNegative
)

// AttributeScope says whether an attribute qualifies a dish or a restaurant.
type AttributeScope string

const (
	ScopeDish       AttributeScope = "dish"
	ScopeRestaurant AttributeScope = "restaurant"
)

// FoodPhrase is one food reference found in a clause.
type FoodPhrase struct {
	// Term is the phrase without attribute words, head singularised.
	Term string
	// Surface is the phrase as written, attributes included.
	Surface    string
	Attributes []common.Attribute
	Sentence   string
}

// Clause is a span of text with a single sentiment.
type Clause struct {
	Text                 string
	Caveat               bool
	Sentiment            Sentiment
	ExplicitNegative     bool
	Restaurants          []string
	Refers               bool
	Targets              []string
	Foods                []FoodPhrase
	RestaurantAttributes []string
}

// Analysis is the result of classifying one content unit.
type Analysis struct {
	Clauses     []Clause
	Restaurants []string

	Positive    bool
	FirstHand   bool
	Hearsay     bool
	Promotional bool
	NonCurrent  bool
	Request     bool
}

// Foods returns every food phrase in text order.
func (a Analysis) Foods() []FoodPhrase {
	var out []FoodPhrase
	for _, c := range a.Clauses {
		out = append(out, c.Foods...)
	}
	return out
}

// FoodTerms returns the distinct food terms, used as co-mention siblings.
func (a Analysis) FoodTerms() []string {
	var out []string
	for _, f := range a.Foods() {
		if !slices.Contains(out, f.Term) {
			out = append(out, f.Term)
		}
	}
	return out
}

// HolisticPraise reports whether restaurant is praised as a whole: a
// positive clause about it that names no food.
func (a Analysis) HolisticPraise(restaurant string) bool {
	for _, c := range a.Clauses {
		if c.Sentiment == SentimentPositive && len(c.Foods) == 0 && slices.Contains(c.Targets, restaurant) {
			return true
		}
	}
	return false
}

// NegativeAbout reports explicit negative language about restaurant.
func (a Analysis) NegativeAbout(restaurant string) bool {
	for _, c := range a.Clauses {
		if c.ExplicitNegative && slices.Contains(c.Targets, restaurant) {
			return true
		}
	}
	return false
}

// RestaurantAttributesOf collects restaurant-scoped attributes of restaurant.
func (a Analysis) RestaurantAttributesOf(restaurant string) []string {
	var out []string
	for _, c := range a.Clauses {
		if !slices.Contains(c.Targets, restaurant) {
			continue
		}
		for _, attr := range c.RestaurantAttributes {
			if !slices.Contains(out, attr) {
				out = append(out, attr)
			}
		}
	}
	return out
}

// Classify splits text into clauses and finds restaurants, food phrases and
// attributes in each. Pronouns and unlabelled clauses refer to the most
// recent restaurant, starting from the one named in the parent context.
func Classify(text string, scope Scope) Analysis {
	low := normalizeSpace(text)
	a := Analysis{
		FirstHand:   containsAny(low, firstHandMarkers),
		Hearsay:     containsAny(low, hearsayMarkers),
		Promotional: containsAny(low, promotionalMarkers),
		NonCurrent:  containsAny(low, nonCurrentMarkers),
	}

	known := gazetteer(scope.KnownRestaurants)
	current := scope.ParentRestaurant
	raws := splitClauses(text)
	for i, rc := range raws {
		picked := i+1 < len(raws) && picksUpWithFood(tokenize(raws[i+1].text))
		c := classifyClause(rc, known, picked)
		if len(c.Restaurants) > 0 {
			c.Targets = slices.Clone(c.Restaurants)
			current = c.Restaurants[len(c.Restaurants)-1]
		} else if current != "" && (c.Refers || len(c.Foods) > 0 || c.Sentiment != SentimentNeutral || len(c.RestaurantAttributes) > 0) {
			c.Targets = []string{current}
		}
		for _, r := range c.Restaurants {
			if !slices.Contains(a.Restaurants, r) {
				a.Restaurants = append(a.Restaurants, r)
			}
		}
		if c.Sentiment == SentimentPositive {
			a.Positive = true
		}
		a.Clauses = append(a.Clauses, c)
	}
	a.Request = isRequestText(low) && len(a.Restaurants) == 0
	return a
}

// classifyClause analyses one clause. picked says the next clause refers
// back to this one with a pronoun and names a food.
func classifyClause(rc rawClause, known [][]string, picked bool) Clause {
	tokens := tokenize(rc.text)
	low := normalizeSpace(rc.text)
	c := Clause{Text: rc.text, Caveat: rc.caveat}

	spans := findRestaurants(tokens, known, picked)
	masked := make([]bool, len(tokens))
	for _, s := range spans {
		for i := s.start; i < s.end; i++ {
			masked[i] = true
		}
		c.Restaurants = append(c.Restaurants, s.name)
	}

	c.Sentiment, c.ExplicitNegative = clauseSentiment(tokens, low)
	for _, t := range tokens {
		if has(pronounRefs, t.low) {
			c.Refers = true
		}
	}
	if containsAny(low, placeRefs) {
		c.Refers = true
	}

	foods, loose := findFoods(tokens, masked, low)
	if c.Sentiment != SentimentNegative && (!c.Caveat || c.Sentiment == SentimentPositive) {
		c.Foods = foods
	}
	if !c.Caveat && c.Sentiment != SentimentNegative {
		c.RestaurantAttributes = restaurantAttrs(loose, low)
	}
	return c
}

func clauseSentiment(tokens []token, low string) (Sentiment, bool) {
	score := 0
	explicit := false
	for i, t := range tokens {
		negated := false
		for j := max(0, i-2); j < i; j++ {
			if has(negators, tokens[j].low) || strings.HasSuffix(tokens[j].low, "n't") {
				negated = true
			}
		}
		switch {
		case has(positiveWords, t.low):
			if negated {
				score--
			} else {
				score++
			}
		case has(negativeWords, t.low):
			if negated {
				score++
			} else {
				score--
				if slices.Contains(explicitNegatives, t.low) {
					explicit = true
				}
			}
		}
	}
	for w := range positiveWords {
		if strings.Contains(w, " ") && containsPhrase(low, w) {
			score++
		}
	}
	for w := range negativeWords {
		if strings.Contains(w, " ") && containsPhrase(low, w) {
			score--
			if slices.Contains(explicitNegatives, w) {
				explicit = true
			}
		}
	}
	switch {
	case score > 0:
		return SentimentPositive, explicit
	case score < 0:
		return SentimentNegative, explicit
	}
	return SentimentNeutral, explicit
}

type span struct {
	start, end int
	name       string
}

func gazetteer(names []string) [][]string {
	out := make([][]string, 0, len(names))
	for _, n := range names {
		if f := strings.Fields(NormalizeName(n)); len(f) > 0 {
			out = append(out, f)
		}
	}
	slices.SortFunc(out, func(a, b []string) int { return len(b) - len(a) })
	return out
}

// findRestaurants returns known names first, then capitalised runs that
// survive the stopword and lexicon filters.
func findRestaurants(tokens []token, known [][]string, picked bool) []span {
	taken := make([]bool, len(tokens))
	var spans []span

	for i := 0; i < len(tokens); i++ {
		for _, name := range known {
			if i+len(name) > len(tokens) || slices.ContainsFunc(taken[i:i+len(name)], func(b bool) bool { return b }) {
				continue
			}
			match := true
			for k, w := range name {
				if strings.TrimPrefix(tokens[i+k].low, "the ") != w {
					match = false
					break
				}
			}
			if match {
				spans = append(spans, span{start: i, end: i + len(name), name: joinRaw(tokens[i : i+len(name)])})
				for k := i; k < i+len(name); k++ {
					taken[k] = true
				}
				break
			}
		}
	}

	for i := 0; i < len(tokens); i++ {
		if taken[i] || !tokens[i].capitalized() {
			continue
		}
		end := i + 1
		for end < len(tokens) && !taken[end] && !tokens[end-1].breakAfter {
			if tokens[end].capitalized() {
				end++
				continue
			}
			if isNameConnector(tokens[end].low) && end+1 < len(tokens) && tokens[end+1].capitalized() && !tokens[end].breakAfter {
				end += 2
				continue
			}
			break
		}
		start, stop := i, end
		for start < stop && isNameEdgeWord(tokens[start].low) {
			start++
		}
		for stop > start && isNameEdgeWord(tokens[stop-1].low) {
			stop--
		}
		i = end - 1
		if start == stop || !plausibleName(tokens, start, stop, picked) {
			continue
		}
		spans = append(spans, span{start: start, end: stop, name: joinRaw(tokens[start:stop])})
		for k := start; k < stop; k++ {
			taken[k] = true
		}
	}

	slices.SortFunc(spans, func(a, b span) int { return a.start - b.start })
	return spans
}

func isNameConnector(w string) bool {
	switch w {
	case "&", "of", "de", "la", "el", "and", "n", "'n'", "on", "the", "y", "del", "di":
		return true
	}
	return false
}

func isNameEdgeWord(w string) bool {
	return has(commonWords, w) || has(positiveWords, w) || has(negativeWords, w) || isNameConnector(w)
}

func plausibleName(tokens []token, start, stop int, picked bool) bool {
	if start > 0 && has(locationPrepositions, tokens[start-1].low) {
		return false
	}
	// "Cozy Italian place": capitalised adjectives of a lowercase noun
	if stop < len(tokens) && !tokens[stop].capitalized() && has(restaurantNouns, tokens[stop].low) {
		return false
	}
	if stop-start > 1 {
		return true
	}
	// a lone capitalised word opening a clause is usually just the first
	// word, unless "they" or "their" takes it up again next to a food
	if start == 0 && !picked && !picksUpWithFood(tokens[stop:]) {
		return false
	}
	w := tokens[start].low
	if isLexiconWord(w) {
		return false
	}
	raw := tokens[start].raw
	if len(raw) <= 3 && strings.ToUpper(raw) == raw {
		return false
	}
	return true
}

// picksUpWithFood reports a plural pronoun followed by a food noun.
func picksUpWithFood(tokens []token) bool {
	for i, t := range tokens {
		if !has(pluralRefs, t.low) {
			continue
		}
		for _, f := range tokens[i+1:] {
			if isFoodNoun(f.low) {
				return true
			}
		}
	}
	return false
}

func isLexiconWord(w string) bool {
	return isFoodNoun(w) || has(cuisines, w) || has(dietary, w) || has(preparations, w) ||
		has(descriptives, w) || has(restaurantAttributes, w) || has(regionalModifiers, w) ||
		has(genericHeads, w) || has(restaurantNouns, w) || has(commonWords, w)
}

func joinRaw(tokens []token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.raw
	}
	return strings.Join(parts, " ")
}

type unitKind int

const (
	kindOther unitKind = iota
	kindFood
	kindAttr
	kindRegional
	kindGeneric
)

type wordUnit struct {
	text string
	kind unitKind
	brk  bool
}

// findFoods groups unmasked tokens into food phrases. Attribute units that
// are not part of a food phrase are returned as loose units for scope
// inference.
func findFoods(tokens []token, masked []bool, clauseLow string) ([]FoodPhrase, []wordUnit) {
	var units []wordUnit
	for i := 0; i < len(tokens); i++ {
		if masked[i] {
			units = append(units, wordUnit{kind: kindOther, brk: true})
			continue
		}
		if n, dish := matchCompound(tokens, masked, i); n > 0 {
			units = append(units, wordUnit{text: dish, kind: kindFood, brk: tokens[i+n-1].breakAfter})
			i += n - 1
			continue
		}
		w := strings.TrimSuffix(tokens[i].low, "'s")
		u := wordUnit{text: w, brk: tokens[i].breakAfter}
		switch {
		case isAttributeWord(w):
			u.kind = kindAttr
		case has(regionalModifiers, w):
			u.kind = kindRegional
		case has(genericHeads, w):
			u.kind = kindGeneric
		case isFoodNoun(w):
			u.kind = kindFood
		}
		units = append(units, u)
	}

	var foods []FoodPhrase
	var ends []int
	inPhrase := make([]bool, len(units))
	for i := 0; i < len(units); {
		if units[i].kind == kindOther {
			i++
			continue
		}
		j := i
		for j < len(units) && units[j].kind != kindOther {
			j++
			if units[j-1].brk {
				break
			}
		}
		run := units[i:j]
		last := -1
		for k, u := range run {
			if u.kind == kindFood || (u.kind == kindGeneric && k > 0 && has(cuisines, run[k-1].text)) {
				last = k
			}
		}
		if last >= 0 {
			foods = append(foods, buildPhrase(run[:last+1], clauseLow))
			ends = append(ends, i+last)
			for k := i; k <= i+last; k++ {
				inPhrase[k] = true
			}
		}
		i = j
	}

	// predicative dish attributes describe the nearest preceding food
	for i, u := range units {
		if inPhrase[i] || u.kind != kindAttr || len(foods) == 0 {
			continue
		}
		if !has(preparations, u.text) && !has(descriptives, u.text) {
			continue
		}
		idx := 0
		for k, e := range ends {
			if e < i {
				idx = k
			}
		}
		foods[idx].Attributes = appendAttr(foods[idx].Attributes, common.Attribute{Name: u.text, Kind: common.AttributeDescriptive})
		inPhrase[i] = true
	}

	var loose []wordUnit
	for i, u := range units {
		if !inPhrase[i] {
			loose = append(loose, u)
		}
	}
	return foods, loose
}

func matchCompound(tokens []token, masked []bool, i int) (int, string) {
	for _, dish := range compoundDishes {
		words := strings.Fields(dish)
		if i+len(words) > len(tokens) {
			continue
		}
		match := true
		for k, w := range words {
			if masked[i+k] || singular(tokens[i+k].low) != w && tokens[i+k].low != w {
				match = false
				break
			}
			if k < len(words)-1 && tokens[i+k].breakAfter {
				match = false
				break
			}
		}
		if match {
			return len(words), dish
		}
	}
	return 0, ""
}

func isAttributeWord(w string) bool {
	return has(cuisines, w) || has(dietary, w) || has(preparations, w) || has(descriptives, w) || has(restaurantAttributes, w)
}

func buildPhrase(run []wordUnit, clauseLow string) FoodPhrase {
	var surface, term []string
	var attrs []common.Attribute
	generic := run[len(run)-1].kind == kindGeneric
	for k, u := range run {
		surface = append(surface, u.text)
		switch {
		case generic && k >= len(run)-2:
			// "thai food" names the cuisine as a category
			term = append(term, u.text)
		case u.kind == kindAttr && has(restaurantAttributes, u.text):
		case u.kind == kindAttr && has(descriptives, u.text):
			attrs = appendAttr(attrs, common.Attribute{Name: u.text, Kind: common.AttributeDescriptive})
		case u.kind == kindAttr:
			attrs = appendAttr(attrs, common.Attribute{Name: u.text, Kind: common.AttributeSelective})
		default:
			term = append(term, u.text)
		}
	}
	t := strings.Join(term, " ")
	if !generic {
		t = singularPhrase(t)
	}
	return FoodPhrase{
		Term:       t,
		Surface:    strings.Join(surface, " "),
		Attributes: attrs,
		Sentence:   clauseLow,
	}
}

func appendAttr(attrs []common.Attribute, a common.Attribute) []common.Attribute {
	for _, existing := range attrs {
		if existing.Name == a.Name {
			return attrs
		}
	}
	return append(attrs, a)
}

// restaurantAttrs picks restaurant-scoped attributes from units outside food
// phrases, plus multiword restaurant attributes found in the clause text.
func restaurantAttrs(loose []wordUnit, clauseLow string) []string {
	var out []string
	add := func(a string) {
		if !slices.Contains(out, a) {
			out = append(out, a)
		}
	}
	for i, u := range loose {
		if u.kind != kindAttr {
			continue
		}
		switch {
		case has(restaurantAttributes, u.text):
			add(u.text)
		case has(cuisines, u.text) || has(dietary, u.text):
			var following []string
			for _, f := range loose[i+1:] {
				following = append(following, f.text)
			}
			if InferScope(u.text, following) == ScopeRestaurant {
				add(u.text)
			}
		}
	}
	for a := range restaurantAttributes {
		if strings.Contains(a, " ") && containsPhrase(clauseLow, a) {
			add(strings.ReplaceAll(a, " ", "-"))
		}
	}
	return out
}

// InferScope decides the scope of a context-dependent attribute word from
// the words that follow it: an adjacent food noun makes it dish-scoped, a
// restaurant noun or no food noun makes it restaurant-scoped.
func InferScope(word string, following []string) AttributeScope {
	for _, w := range following {
		w = strings.ToLower(w)
		if w == "" || isAttributeWord(w) {
			continue
		}
		if isFoodNoun(w) {
			return ScopeDish
		}
		if has(genericHeads, w) && (has(cuisines, word) || has(dietary, word)) {
			return ScopeDish
		}
		return ScopeRestaurant
	}
	return ScopeRestaurant
}
