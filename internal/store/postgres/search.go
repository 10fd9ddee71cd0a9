package postgres

import (
	"context"
	"fmt"
	"strings"

	"storygraph/internal/store"
)

func (c *Client) Search(ctx context.Context, plot, query, kind string) ([]store.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	sql := `
SELECT p.name, e.name, e.kind, e.tags,
    ts_rank(e.search_vector, websearch_to_tsquery('english', $1)) AS score,
    CASE WHEN e.description <> '' THEN
        ts_headline('english', e.description, websearch_to_tsquery('english', $1),
            'MaxFragments=2, MaxWords=40, MinWords=20, StartSel=**, StopSel=**')
    ELSE '' END AS snippet
FROM entities e
JOIN plots p ON p.id = e.plot_id
WHERE e.search_vector @@ websearch_to_tsquery('english', $1)
  AND ($2 = '' OR p.name_normalized = $2)
  AND ($3 = '' OR e.kind = $3)
ORDER BY score DESC, e.name ASC
LIMIT 50
`

	rows, err := c.pool.Query(ctx, sql, query, store.NormalizeName(plot), strings.ToLower(strings.TrimSpace(kind)))
	if err != nil {
		return nil, fmt.Errorf("searching entities: %w", err)
	}
	defer rows.Close()

	var results []store.SearchResult
	for rows.Next() {
		var r store.SearchResult
		err := rows.Scan(&r.Plot, &r.Name, &r.Kind, &r.Tags, &r.Score, &r.Snippet)
		if err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		if r.Tags == nil {
			r.Tags = []string{}
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	if results == nil {
		results = []store.SearchResult{}
	}

	return results, nil
}
