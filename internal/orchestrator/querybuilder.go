package orchestrator

import (
	"github.com/shubhsaxena/search-layout/internal/models"
)

type QueryBuilder struct{}

func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

// BuildCurationQuery searches the unmatched-query index. An empty search
// text lists the most recently seen queries instead.
func (qb *QueryBuilder) BuildCurationQuery(parsed *models.ParsedQuery, req *models.CurationRequest) map[string]any {
	query := make(map[string]any)

	boolQuery := map[string]any{}
	if parsed.Normalized == "" {
		boolQuery["must"] = []map[string]any{
			{"match_all": map[string]any{}},
		}
	} else {
		boolQuery["must"] = []map[string]any{
			{
				"multi_match": map[string]any{
					"query":       parsed.Normalized,
					"type":        "best_fields",
					"fields":      []string{"query^3", "tokens"},
					"fuzziness":   "AUTO",
					"tie_breaker": 0.3,
				},
			},
		}
	}

	if req.Region != "" {
		boolQuery["filter"] = []map[string]any{
			{
				"term": map[string]any{
					"region": req.Region,
				},
			},
		}
	}

	query["query"] = map[string]any{
		"bool": boolQuery,
	}
	query["size"] = req.Size

	if parsed.Normalized == "" {
		query["sort"] = []map[string]any{
			{"last_seen": map[string]any{"order": "desc"}},
		}
	} else {
		query["sort"] = []map[string]any{
			{"_score": map[string]any{"order": "desc"}},
			{"last_seen": map[string]any{"order": "desc"}},
		}
	}

	return query
}
