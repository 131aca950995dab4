package search

import "strings"

// synonyms maps cuisine and dish keywords to related search terms.
// Hand-authored; expansion is lookup-only, no stemming.
var synonyms = map[string][]string{
	"pho":        {"noodle", "vietnamese", "soup"},
	"ramen":      {"noodle", "japanese", "soup"},
	"udon":       {"noodle", "japanese"},
	"soba":       {"noodle", "japanese"},
	"noodle":     {"pho", "ramen", "udon", "soba", "pasta"},
	"noodles":    {"pho", "ramen", "udon", "soba", "pasta"},
	"pasta":      {"italian", "noodle", "spaghetti"},
	"spaghetti":  {"pasta", "italian"},
	"pizza":      {"italian", "flatbread"},
	"italian":    {"pasta", "pizza"},
	"sushi":      {"japanese", "sashimi", "rolls"},
	"sashimi":    {"sushi", "japanese"},
	"japanese":   {"sushi", "ramen", "udon"},
	"vietnamese": {"pho", "banh mi", "spring rolls"},
	"thai":       {"pad thai", "curry", "tom yum"},
	"curry":      {"thai", "indian", "masala"},
	"indian":     {"curry", "naan", "tandoori", "masala"},
	"masala":     {"indian", "curry"},
	"chinese":    {"dumplings", "dim sum", "wok"},
	"dumplings":  {"chinese", "dim sum", "gyoza"},
	"dimsum":     {"chinese", "dumplings"},
	"taco":       {"mexican", "burrito"},
	"tacos":      {"mexican", "burrito"},
	"burrito":    {"mexican", "taco"},
	"mexican":    {"taco", "burrito", "quesadilla"},
	"burger":     {"fries", "american", "sandwich"},
	"burgers":    {"fries", "american", "sandwich"},
	"sandwich":   {"sub", "deli", "panini"},
	"bbq":        {"barbecue", "grill", "ribs", "brisket"},
	"barbecue":   {"bbq", "grill", "ribs"},
	"grill":      {"bbq", "barbecue", "steak"},
	"steak":      {"grill", "steakhouse", "beef"},
	"seafood":    {"fish", "shrimp", "oysters", "lobster"},
	"fish":       {"seafood", "sushi"},
	"coffee":     {"espresso", "latte", "cafe"},
	"cafe":       {"coffee", "bakery", "brunch"},
	"bakery":     {"bread", "pastry", "cake", "cafe"},
	"dessert":    {"cake", "ice cream", "pastry", "sweet"},
	"cake":       {"dessert", "bakery", "pastry"},
	"breakfast":  {"brunch", "eggs", "pancakes", "cafe"},
	"brunch":     {"breakfast", "cafe"},
	"vegan":      {"vegetarian", "plant based", "salad"},
	"vegetarian": {"vegan", "salad"},
	"salad":      {"healthy", "bowl", "vegetarian"},
	"halal":      {"kebab", "shawarma"},
	"kebab":      {"halal", "shawarma", "grill"},
	"shawarma":   {"kebab", "halal", "wrap"},
	"chicken":    {"fried chicken", "wings", "grill"},
	"wings":      {"chicken", "bbq"},
	"soup":       {"pho", "ramen", "broth"},
	"beer":       {"brewery", "pub", "bar"},
	"bar":        {"pub", "cocktails", "beer"},
}

// Expand lowercases the query, splits it on whitespace, and returns the
// tokens plus every synonym of each token. The original tokens always come
// first; duplicates are dropped.
func Expand(query string) []string {
	tokens := strings.Fields(strings.ToLower(query))

	seen := make(map[string]bool, len(tokens)*4)
	terms := make([]string, 0, len(tokens)*4)

	add := func(term string) {
		if term != "" && !seen[term] {
			seen[term] = true
			terms = append(terms, term)
		}
	}

	for _, tok := range tokens {
		add(tok)
	}
	for _, tok := range tokens {
		for _, syn := range synonyms[tok] {
			add(syn)
		}
	}

	return terms
}
