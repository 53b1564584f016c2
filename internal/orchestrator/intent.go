package orchestrator

import (
	"strings"

	"github.com/shubhsaxena/search-layout/internal/models"
)

// IntentPattern ties an intent to the substrings that select it. Examples are
// documentation only and never consulted during classification.
type IntentPattern struct {
	Intent   models.Intent
	Keywords []string
	Examples []string
}

// Shared descriptive vocabulary. visual and fashion both carry it, and since
// visual is declared first it wins any query that only hits these terms.
var (
	colorKeywords = []string{
		"red", "blue", "green", "yellow", "pink", "purple", "orange", "black",
		"white", "beige", "brown", "grey", "gray", "navy", "olive", "sage",
		"cream", "ivory", "burgundy", "maroon", "lavender", "lilac", "mint",
		"teal", "turquoise", "coral", "peach", "mustard", "emerald", "cobalt",
		"charcoal", "taupe", "khaki", "camel", "blush", "nude", "neutral",
		"pastel", "neon", "metallic", "gold", "silver", "rose gold",
	}

	fabricKeywords = []string{
		"linen", "cotton", "silk", "satin", "velvet", "denim", "leather",
		"suede", "wool", "cashmere", "knit", "lace", "tweed", "corduroy",
		"chiffon", "sheer", "mesh", "fleece", "jersey", "tulle", "organza",
		"crochet", "sequin",
	}

	patternKeywords = []string{
		"floral", "striped", "plaid", "gingham", "polka dot", "leopard print",
		"paisley", "houndstooth", "checkered", "animal print",
	}
)

// intentPatterns is evaluated top to bottom and the first hit wins, so the
// order here is part of the classifier's behavior.
var intentPatterns = []IntentPattern{
	{
		Intent: models.IntentFactual,
		Keywords: []string{
			"who won", "who is", "who was", "who invented", "what is", "what was",
			"what year", "when did", "when was", "when is", "how many", "how much",
			"how old", "how tall", "how far", "capital of", "population",
			"super bowl", "world cup", "election", "president", "definition",
			"define ", "meaning of", "history of", "facts about", "fun fact",
			"statistics", "score", "distance from", "born in", "founded",
			"largest", "tallest", "oldest",
		},
		Examples: []string{
			"Who won the Super Bowl?",
			"What is the capital of Australia",
			"How many calories in an avocado",
		},
	},
	{
		Intent: models.IntentLocal,
		Keywords: []string{
			"near me", "nearby", "food spots", "best food", "restaurant", "cafe",
			"coffee shop", "bar ", "bars in", "brunch", "things to do in",
			"places to", "spots in", "where to eat", "where to go", "open now",
			"hotel", "weekend in", "date night", "happy hour", "downtown",
			"neighborhood",
		},
		Examples: []string{
			"Best food spots in Austin",
			"Coffee shop near me",
			"Things to do in Chicago this weekend",
		},
	},
	{
		Intent: models.IntentVisual,
		Keywords: concatKeywords(
			[]string{
				"aesthetic", "inspo", "inspiration", "ideas", "decor", "bedroom",
				"living room", "kitchen design", "wallpaper", "mood board",
				"moodboard", "tattoo", "nails", "nail art", "hairstyle", "haircut",
				"makeup look", "color palette", "interior", "pinterest", "drawing",
				"art style",
			},
			colorKeywords,
			fabricKeywords,
			patternKeywords,
		),
		Examples: []string{
			"Bedroom aesthetic ideas",
			"Sage green kitchen inspo",
			"Minimalist tattoo designs",
		},
	},
	{
		Intent: models.IntentFashion,
		Keywords: concatKeywords(
			[]string{
				"outfit", "what to wear", "style", "fashion", "dress", "shoes",
				"sneakers", "streetwear", "capsule wardrobe", "wardrobe", "jeans",
				"jacket", "coat", "skirt", "boots", "lookbook", "ootd",
				"old money", "clean girl",
			},
			colorKeywords,
			fabricKeywords,
			patternKeywords,
		),
		Examples: []string{
			"Streetwear brands for summer",
			"What to wear to a wedding",
			"Capsule wardrobe essentials",
		},
	},
	{
		Intent: models.IntentProductResearch,
		Keywords: []string{
			"best ", "vs", "versus", "review", "worth it", "worth buying",
			"should i buy", "budget", "cheapest", "affordable", "recommend",
			"alternative", "dupe", "compare", "comparison", "top 10",
			"pros and cons", "under $",
		},
		Examples: []string{
			"iPhone 15 vs Pixel 8",
			"Is the Dyson Airwrap worth it",
			"Best budget headphones",
		},
	},
	{
		Intent: models.IntentHowTo,
		Keywords: []string{
			"how to", "how do", "how can", "how", "tutorial", "step by step",
			"diy", "guide", "recipe", "tips", "learn", "fix", "make ",
			"beginner", "hack",
		},
		Examples: []string{
			"How to make matcha",
			"DIY bookshelf tutorial",
			"Sourdough recipe for beginners",
		},
	},
	{
		Intent: models.IntentSocial,
		Keywords: []string{
			"lol", "lmao", "passive aggressive", "text back", "texting",
			"left me on read", "what does it mean when", "situationship", "crush",
			"boyfriend", "girlfriend", "friend", "ghosted", "ghosting", "rizz",
			"slang", "emoji", "am i the", "aita", "dating", "breakup",
			"relationship", "awkward", "roommate", "coworker", "etiquette",
			"is it rude", "is it weird", "reply",
		},
		Examples: []string{
			"Is LOL passive aggressive?",
			"He left me on read for two days",
			"Am I the one in the wrong",
		},
	},
	{
		Intent: models.IntentEntertainment,
		Keywords: []string{
			"movie", "tv", "series", "netflix", "anime", "episode", "season",
			"album", "song", "lyrics", "concert", "tour", "celebrity", "trailer",
			"game", "gaming", "book", "podcast", "meme", "watch", "binge",
			"playlist", "spotify",
		},
		Examples: []string{
			"New Netflix series this month",
			"Taylor Swift concert setlist",
			"Anime like Attack on Titan",
		},
	},
	{
		Intent: models.IntentLifestyle,
		Keywords: []string{
			"workout", "fitness", "gym", "skincare", "wellness", "self care",
			"morning routine", "healthy", "diet", "meal prep", "productivity",
			"habits", "sleep", "meditation", "yoga", "travel", "minimalism",
			"journaling", "pilates", "hydration", "vegan",
		},
		Examples: []string{
			"Morning routine for productivity",
			"Pilates at home",
			"Healthy meal prep for the week",
		},
	},
	{
		Intent:   models.IntentGeneral,
		Keywords: nil,
		Examples: []string{
			"Tesla",
			"Random thoughts",
		},
	},
}

func concatKeywords(groups ...[]string) []string {
	var n int
	for _, g := range groups {
		n += len(g)
	}
	out := make([]string, 0, n)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// IntentClassifier maps a raw query to an intent by case-insensitive
// substring match over intentPatterns. It holds no mutable state and is safe
// for concurrent use.
type IntentClassifier struct {
	patterns []IntentPattern
	fallback models.Intent
}

func NewIntentClassifier() *IntentClassifier {
	return &IntentClassifier{
		patterns: intentPatterns,
		fallback: models.IntentGeneral,
	}
}

func (ic *IntentClassifier) Classify(query string) models.Intent {
	intent, _ := ic.Match(query)
	return intent
}

// Match returns the winning intent and the keyword that selected it. The
// keyword is empty when the query fell through to the fallback.
func (ic *IntentClassifier) Match(query string) (models.Intent, string) {
	lowered := strings.ToLower(query)
	if lowered == "" {
		return ic.fallback, ""
	}

	for _, p := range ic.patterns {
		for _, kw := range p.Keywords {
			if strings.Contains(lowered, kw) {
				return p.Intent, kw
			}
		}
	}
	return ic.fallback, ""
}

// Intents lists every known intent in declaration order.
func (ic *IntentClassifier) Intents() []models.Intent {
	out := make([]models.Intent, 0, len(ic.patterns))
	for _, p := range ic.patterns {
		out = append(out, p.Intent)
	}
	return out
}

// Examples returns the documented sample queries for intent, or an empty
// slice when the intent is unknown.
func (ic *IntentClassifier) Examples(intent models.Intent) []string {
	for _, p := range ic.patterns {
		if p.Intent == intent {
			out := make([]string, len(p.Examples))
			copy(out, p.Examples)
			return out
		}
	}
	return []string{}
}

// Keywords returns a copy of the keyword list for intent.
func (ic *IntentClassifier) Keywords(intent models.Intent) []string {
	for _, p := range ic.patterns {
		if p.Intent == intent {
			out := make([]string, len(p.Keywords))
			copy(out, p.Keywords)
			return out
		}
	}
	return nil
}
