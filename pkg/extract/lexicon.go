package extract

import (
	"cmp"
	"slices"
	"strings"

	"github.com/jinzhu/inflection"
)

// The word lists below seed the heuristics. They are illustrative rather
// than closed: unknown words fall through to context rules.

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func has(m map[string]struct{}, w string) bool {
	_, ok := m[w]
	return ok
}

var foodNouns = set(
	"taco", "burrito", "burger", "cheeseburger", "pizza", "slice", "sandwich", "hoagie", "wrap",
	"brisket", "rib", "steak", "pork", "beef", "chicken", "lamb", "goat", "duck", "turkey", "sausage",
	"bacon", "ham", "pastrami", "meatball", "wing", "tender", "nugget", "carnitas", "barbacoa", "birria",
	"bbq", "barbecue", "ramen", "pho", "udon", "soba", "noodle", "soup", "stew", "chili", "chowder", "bisque",
	"curry", "biryani", "dal", "naan", "samosa", "paneer", "dumpling", "bao", "bun", "wonton", "potsticker",
	"sushi", "nigiri", "sashimi", "roll", "poke", "tempura", "katsu", "bibimbap", "bulgogi", "kimchi",
	"falafel", "shawarma", "gyro", "kebab", "hummus", "pita", "pasta", "lasagna", "spaghetti", "gnocchi",
	"ravioli", "risotto", "carbonara", "quesadilla", "enchilada", "tamale", "nacho", "tostada", "torta",
	"empanada", "arepa", "pupusa", "ceviche", "churro", "elote", "salsa", "guacamole", "guac",
	"rice", "bean", "egg", "omelette", "omelet", "pancake", "waffle", "biscuit", "gravy", "toast",
	"bagel", "croissant", "donut", "doughnut", "pastry", "bread", "cake", "cheesecake", "pie", "cookie",
	"brownie", "gelato", "cannoli", "dessert", "pretzel", "fries", "chip", "salad", "cheese",
	"fish", "salmon", "tuna", "shrimp", "oyster", "lobster", "crab", "clam", "mussel", "octopus", "calamari",
	"seafood", "meat", "cheesesteak", "reuben", "schnitzel", "coffee", "latte", "espresso", "tea", "boba",
	"cocktail", "beer", "wine", "smoothie", "milkshake", "shake", "grits", "tofu", "tortilla", "crepe",
	"beignet", "focaccia", "calzone", "stromboli", "pierogi", "kolache", "mole", "tapas", "al pastor",
	"pad thai", "hot chicken", "mac and cheese", "banh mi", "dim sum", "ice cream", "fried rice",
	"hot dog", "pulled pork", "fried chicken", "corned beef", "tikka masala", "po boy", "egg roll",
	"spring roll", "soup dumpling", "xiao long bao", "chicken parm", "noodle soup", "carne asada",
	"lobster roll", "fish taco", "breakfast taco", "french toast", "hash brown", "chicken and waffles",
)

// Multiword dishes are matched as one unit before attribute detection, so the
// "fried" in "fried rice" is part of the dish rather than an attribute.
var compoundDishes = func() []string {
	var out []string
	for w := range foodNouns {
		if strings.Contains(w, " ") {
			out = append(out, w)
		}
	}
	// longest first
	slices.SortFunc(out, func(a, b string) int {
		if c := cmp.Compare(len(strings.Fields(b)), len(strings.Fields(a))); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return out
}()

// Broad categories are never specific menu items on their own.
var broadCategories = set(
	"food", "cuisine", "dish", "meal", "stuff", "seafood", "meat", "dessert", "pastry", "bbq",
	"barbecue", "noodle soup", "noodle", "soup", "snack", "street food", "comfort food",
)

// Generic heads only name a food when a cuisine modifies them ("thai food").
var genericHeads = set("food", "cuisine", "dish", "dishes", "fare", "stuff")

// Known culinary parents, applied one level deep.
var knownParents = map[string][]string{
	"ramen":          {"noodle soup"},
	"pho":            {"noodle soup"},
	"udon":           {"noodle soup"},
	"pad thai":       {"noodle"},
	"lo mein":        {"noodle"},
	"brisket":        {"barbecue"},
	"burnt end":      {"barbecue"},
	"carnitas":       {"pork"},
	"al pastor":      {"pork"},
	"pulled pork":    {"barbecue", "pork"},
	"barbacoa":       {"beef"},
	"birria":         {"beef", "stew"},
	"carne asada":    {"beef"},
	"cheesesteak":    {"sandwich"},
	"banh mi":        {"sandwich"},
	"reuben":         {"sandwich"},
	"po boy":         {"sandwich"},
	"hoagie":         {"sandwich"},
	"nigiri":         {"sushi"},
	"sashimi":        {"sushi"},
	"croissant":      {"pastry"},
	"donut":          {"pastry"},
	"cannoli":        {"pastry"},
	"gelato":         {"ice cream"},
	"bao":            {"dumpling"},
	"xiao long bao":  {"soup dumpling", "dumpling"},
	"soup dumpling":  {"dumpling"},
	"nacho":          {"tortilla chip"},
	"latte":          {"coffee"},
	"espresso":       {"coffee"},
	"boba":           {"tea"},
	"tikka masala":   {"curry"},
	"bibimbap":       {"rice"},
	"fried rice":     {"rice"},
	"cheeseburger":   {"burger"},
	"fish taco":      {"taco", "fish"},
	"breakfast taco": {"taco"},
	"lobster roll":   {"sandwich", "lobster"},
	"hot dog":        {"sausage"},
	"egg roll":       {"appetizer"},
}

var cuisines = set(
	"italian", "thai", "mexican", "chinese", "japanese", "korean", "indian", "vietnamese", "french",
	"greek", "mediterranean", "ethiopian", "cajun", "creole", "southern", "peruvian", "cuban",
	"lebanese", "turkish", "persian", "spanish", "filipino", "taiwanese", "szechuan", "sichuan",
	"cantonese", "tex-mex", "american", "caribbean", "jamaican", "brazilian", "german", "polish",
	"israeli", "malaysian", "indonesian", "nepalese", "pakistani", "afghan", "salvadoran", "venezuelan",
)

// Dietary words are context dependent like cuisines.
var dietary = set(
	"vegan", "vegetarian", "gluten-free", "halal", "kosher", "dairy-free", "keto", "plant-based",
	"organic", "paleo",
)

var preparations = set(
	"spicy", "fried", "deep-fried", "grilled", "smoked", "house-made", "homemade", "handmade",
	"hand-pulled", "hand-made", "wood-fired", "crispy", "baked", "roasted", "steamed", "braised",
	"charred", "stuffed", "cured", "fresh", "raw", "seared", "pan-fried", "slow-cooked", "wood-smoked",
	"dry-aged", "hand-rolled", "made-to-order", "sourdough", "extra-spicy", "mild",
)

var descriptives = set(
	"huge", "big", "giant", "massive", "enormous", "small", "tiny", "generous", "juicy", "tender",
	"flaky", "creamy", "cheesy", "rich", "thick", "thin", "hearty", "moist", "fluffy", "chewy",
	"perfectly-cooked", "well-seasoned", "authentic",
)

var restaurantAttributes = set(
	"cozy", "casual", "family-owned", "family-run", "dog-friendly", "kid-friendly", "quiet",
	"romantic", "cheap", "affordable", "late-night", "24-hour", "byob", "cash-only", "outdoor",
	"hole-in-the-wall", "no-frills", "upscale", "fancy", "friendly", "fast", "lively", "hidden",
	"cash only", "family owned", "late night", "hole in the wall",
)

var restaurantNouns = set(
	"place", "places", "spot", "spots", "restaurant", "restaurants", "joint", "joints", "eatery",
	"deli", "diner", "cafe", "bakery", "truck", "shop", "bar", "pizzeria", "taqueria", "bistro",
)

var regionalModifiers = set(
	"nashville", "texas", "chicago", "detroit", "philly", "philadelphia", "buffalo", "neapolitan",
	"sicilian", "hawaiian", "california", "memphis", "carolina", "baja", "oaxacan", "yucatan",
	"hainanese", "tonkotsu", "shoyu", "miso", "ny", "nola", "korean-style", "texas-style",
)

var positiveWords = set(
	"amazing", "great", "good", "best", "love", "loved", "loves", "delicious", "excellent",
	"fantastic", "awesome", "incredible", "outstanding", "perfect", "phenomenal", "solid", "tasty",
	"favorite", "favourite", "fire", "bomb", "slaps", "slap", "legit", "underrated", "recommend",
	"recommended", "killer", "superb", "yummy", "worth", "stellar", "unreal", "insane", "wonderful",
	"beautiful", "banging", "bangin", "goated", "elite", "top-notch", "go-to", "must-try", "heavenly",
	"divine", "addictive", "addicting", "spectacular", "impeccable", "nice", "enjoyed", "exceptional",
	"must try", "on point", "top notch", "to die for", "hits the spot", "never disappoints",
)

var negativeWords = set(
	"bad", "worst", "terrible", "awful", "avoid", "suck", "sucks", "sucked", "mediocre", "overrated",
	"disappointing", "disappointed", "bland", "gross", "meh", "overpriced", "stale", "soggy", "rude",
	"horrible", "disgusting", "inedible", "underwhelming", "mid",
	"don't go", "dont go", "do not go", "stay away", "not worth", "skip it",
)

// Explicit negatives veto general praise for recommendation replies.
var explicitNegatives = []string{
	"avoid", "worst", "bad", "don't go", "dont go", "do not go", "stay away", "terrible", "awful",
}

var negators = set("not", "never", "no", "isn't", "wasn't", "aren't", "weren't", "don't", "didn't", "hardly", "nothing")

var pluralRefs = set("they", "their", "they're", "theirs")

var pronounRefs = set("their", "they", "they're", "theirs", "there", "here", "it", "it's", "its")

var placeRefs = []string{"this place", "the place", "that place", "this spot", "the spot", "that spot", "this restaurant", "the restaurant"}

// Capitalised words that never start or end a restaurant name.
var commonWords = set(
	"i", "i'm", "i've", "i'd", "we", "we're", "you", "you're", "my", "our", "your", "the", "a", "an",
	"this", "that", "these", "those", "they", "their", "it", "it's", "if", "and", "or", "but", "so",
	"go", "try", "get", "got", "went", "had", "ordered", "ate", "tried", "check", "also", "just",
	"honestly", "definitely", "absolutely", "seriously", "yes", "no", "yeah", "omg", "lol", "edit",
	"for", "to", "at", "in", "on", "of", "with", "is", "was", "are", "were", "be", "been", "have",
	"has", "do", "did", "can", "should", "would", "will", "what", "where", "when", "how", "why",
	"any", "anyone", "everyone", "everything", "nothing", "some", "there", "here", "then", "too",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday", "reddit",
	"google", "yelp", "instagram", "tiktok", "uber", "doordash", "grubhub", "edit:", "update",
	"really", "very", "super", "pretty", "still", "even", "always", "never", "not", "came", "come",
	"rip", "op", "imo", "imho", "tbh", "btw", "fyi", "thanks", "thank",
)

var locationPrepositions = set("in", "near", "around", "from", "across", "outside")

var menuDeterminers = set("the", "their", "a", "an", "this", "that", "my", "our", "his", "her", "one")

var orderVerbs = set("ordered", "order", "got", "get", "had", "have", "ate", "tried", "try", "grabbed", "grab")

var hearsayMarkers = []string{
	"i heard", "i've heard", "ive heard", "i hear", "heard that", "heard it", "my friend said",
	"friend says", "friend said", "supposedly", "apparently", "people say", "people said",
	"rumor", "rumour", "word is", "i've been told", "ive been told", "i was told",
}

var firstHandMarkers = []string{
	"i had", "i got", "i ordered", "we had", "we got", "we ordered", "i tried", "we tried", "i ate",
	"i went", "we went", "i've been", "ive been", "i love", "i loved", "my go-to", "my favorite",
	"my favourite", "i always get", "i get",
}

var promotionalMarkers = []string{
	"we just opened", "grand opening", "use code", "promo code", "discount code", "coupon code",
	"follow us", "our restaurant", "our menu", "come visit us", "visit us", "check out our",
	"dm us", "% off", "we're offering", "we are offering", "our new location", "link in bio",
	"sponsored", "#ad", "we're hiring", "we are hiring",
}

var nonCurrentMarkers = []string{
	"used to", "closed down", "shut down", "no longer", "back in the day", "went out of business",
	"closed permanently", "permanently closed", "rip", "they closed", "has closed", "had closed",
	"discontinued", "not on the menu anymore", "took it off the menu", "don't make it anymore",
}

var requestMarkers = []string{
	"where should i", "where can i", "where to eat", "where to get", "where do i", "where's the best",
	"wheres the best", "where is the best", "any recommendations", "any recs", "recommendations?",
	"recommend me", "any suggestions", "suggestions?", "looking for", "what's the best",
	"whats the best", "what is the best", "best place for", "best spot for", "anyone know",
	"any good", "need recs", "need recommendations", "help me find", "where would you",
}

var requestQuestionCues = []string{"best", "where", "recommend", "suggest", "recs", "good", "favorite", "favourite", "spot", "place"}

var affirmations = set(
	"+1", "this", "this!", "this.", "this^", "^", "^^", "^this", "agreed", "agree", "same", "same here",
	"seconded", "second this", "i second this", "came here to say this", "so much this",
	"exactly", "100%", "this is the answer", "this is the way", "yep", "yup", "facts",
	"can confirm", "confirmed", "this 100%", "all of this", "also this",
)

// Typo corrections limited to unambiguous misspellings.
var typoTable = map[string]string{
	"resturant":   "restaurant",
	"restuarant":  "restaurant",
	"sandwhich":   "sandwich",
	"sandwitch":   "sandwich",
	"brisquet":    "brisket",
	"expresso":    "espresso",
	"cheesestake": "cheesesteak",
	"burito":      "burrito",
	"buritto":     "burrito",
	"chipolte":    "chipotle",
	"jalepeno":    "jalapeno",
	"parmesean":   "parmesan",
	"mozzerella":  "mozzarella",
	"quesadila":   "quesadilla",
	"expresso's":  "espresso's",
	"bahn":        "banh",
	"tiramsu":     "tiramisu",
	"capuccino":   "cappuccino",
	"croissaint":  "croissant",
	"guacomole":   "guacamole",
}

func init() {
	for _, w := range []string{
		"carnitas", "fries", "pho", "bbq", "hummus", "couscous", "asparagus", "grits", "molasses",
		"swiss", "sushi", "sashimi", "ramen", "udon", "soba", "dim sum", "tapas", "paneer",
		"barbacoa", "birria", "elote", "poke", "tofu", "pasta", "dal", "boba", "kimchi",
		"calamari", "gnocchi", "cannoli", "hibachi", "mochi", "tiramisu", "queso",
	} {
		inflection.AddUncountable(w)
	}
	inflection.AddIrregular("brownie", "brownies")
	inflection.AddIrregular("cookie", "cookies")
	inflection.AddIrregular("pie", "pies")
	inflection.AddIrregular("hoagie", "hoagies")
	inflection.AddIrregular("veggie", "veggies")
	inflection.AddIrregular("smoothie", "smoothies")
	inflection.AddIrregular("pierogi", "pierogies")
	inflection.AddIrregular("kolache", "kolaches")
}

// singular returns the singular form of a single word. Words that do not
// end in "s" are returned unchanged so that "pasta" stays "pasta".
func singular(word string) string {
	if !strings.HasSuffix(word, "s") || len(word) < 3 {
		return word
	}
	return inflection.Singular(word)
}

// singularPhrase singularises the head (last word) of a phrase.
func singularPhrase(phrase string) string {
	words := strings.Fields(phrase)
	if len(words) == 0 {
		return ""
	}
	if has(foodNouns, phrase) {
		return phrase
	}
	words[len(words)-1] = singular(words[len(words)-1])
	return strings.Join(words, " ")
}

// isPlural reports whether a word is a plural form.
func isPlural(word string) bool {
	return singular(word) != word
}

func isFoodNoun(word string) bool {
	if has(foodNouns, word) {
		return true
	}
	return has(foodNouns, singular(word))
}

func isBroadCategory(term string) bool {
	if has(broadCategories, term) {
		return true
	}
	words := strings.Fields(term)
	if len(words) == 0 {
		return false
	}
	return has(genericHeads, words[len(words)-1])
}

// containsPhrase reports whether phrase occurs in text on word boundaries.
// Both are expected in lower case.
func containsPhrase(text, phrase string) bool {
	return phraseIndex(text, phrase) >= 0
}

func phraseIndex(text, phrase string) int {
	from := 0
	for {
		i := strings.Index(text[from:], phrase)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(phrase)
		if (i == 0 || !isWordByte(text[i-1])) && (end == len(text) || !isWordByte(text[end])) {
			return i
		}
		from = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '\'' || b == '-' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if containsPhrase(text, p) {
			return true
		}
	}
	return false
}
