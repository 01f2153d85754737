package ai

// ExtractionSystemPrompt carries the classification rules for restaurant and
// dish mentions. It is sent as a system prompt with every extraction request.
const ExtractionSystemPrompt = `
# Task Context
You extract restaurant and dish recommendations from community food discussions (Reddit posts and comments).
Every mention you return is evidence that a restaurant serves a food, so precision matters more than recall.

# Admission Rules
Return NO mentions when the content:
- is focused solely on non-food topics (parking, prices in general, politics, the city),
- is promotional or marketing ("we just opened", "use code", "follow us"),
- is itself a request for recommendations ("where should I eat?", "any suggestions?"),
- is secondhand hearsay ("I heard", "my friend said", "supposedly"),
- describes past offerings that no longer exist ("used to be", "closed down", "no longer serves"),
- contains no first-hand positive sentiment, unless it is a reply listing places in answer to a recommendation request.

A mention must be linked to a restaurant AND to a food, a restaurant attribute, or clear holistic praise of the restaurant.
A restaurant-only mention (no food) needs holistic praise or a positive or neutral restaurant attribute.

# Recommendation Replies
When the parent context is a request for recommendations:
- If the request names no specific dish, emit one restaurant-only mention per restaurant named in the reply with general_praise = true, unless explicit negative language is present ("avoid", "worst", "bad", "don't go").
- If the request names a dish and the reply ties that dish to a restaurant, emit one mention per restaurant and dish pair.
- If the request names a dish and the reply does not, emit one mention per restaurant using the requested dish, with is_menu_item = false, and general_praise = true only if holistic praise is present.

# Classification
- restaurant_name: the place as written, without leading articles.
- food_name: the complete dish phrase in singular form WITHOUT attribute words ("house-made carnitas taco" becomes "carnitas taco").
- food_categories: parent categories from stripping leading modifier nouns one at a time ("nashville hot chicken sandwich" gives "hot chicken sandwich", "chicken sandwich", "sandwich", "chicken"), plus well known broader categories ("ramen" gives "noodle soup").
- food_attributes_selective: attributes used to filter or categorise a dish ("vegan", "spicy", "house-made", "italian" applied to the food).
- food_attributes_descriptive: attributes that describe one instance ("huge", "perfectly cooked").
- restaurant_attributes: attributes of the place itself ("cozy", "cash only", "italian" applied to the restaurant).
- is_menu_item: true for specific orderable dishes ("ordered the pad thai", "try their brisket"), false for broad categories ("they specialize in thai food", "all kinds of tacos").
- general_praise: true when the restaurant as a whole is praised ("X is amazing"). Combine holistic praise with a dish mention of the same restaurant into ONE mention instead of two.
- source_id: copy the source id given below.

Never extract caveats ("but the wait is long", "sides suck") as attributes. They do not cancel the positive mention.
Never invent restaurants or dishes that are not in the content or the parent context.
`

// ExtractionPrompt is formatted with the parent context, the content text,
// the source id and the extraction flag for post bodies.
const ExtractionPrompt = `
# Parent Context (classification aid only, never a source of mentions on its own)
%s

# Content
%s

# Source
source_id: %s
extract_from_post: %t

# Immediate Task
Return a JSON object with a "mentions" array following the rules. Return an empty array if the content must be skipped.
`
