package routing

import "strings"

// Category buckets a user query into one of the routing classes.
type Category string

const (
	CategoryResearch  Category = "research"
	CategoryCreative  Category = "creative"
	CategoryTechnical Category = "technical"
	CategoryStrategic Category = "strategic"
)

// classificationRule pairs a category with the keywords that select it.
type classificationRule struct {
	category Category
	keywords []string
}

// classificationRules are evaluated in order; the first rule with a matching
// keyword wins, which makes ties deterministic. Queries matching nothing
// fall through to the strategic default.
var classificationRules = []classificationRule{
	{CategoryResearch, []string{"research", "analyze", "competitive", "comprehensive", "market"}},
	{CategoryCreative, []string{"create", "write", "headline", "campaign", "caption"}},
	{CategoryTechnical, []string{"calculate", "metric", "optimize", "data", "roi"}},
}

// Classify maps a query to its category via case-insensitive substring
// matching against the rule table.
func Classify(query string) Category {
	q := strings.ToLower(query)
	for _, rule := range classificationRules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return rule.category
			}
		}
	}
	return CategoryStrategic
}
