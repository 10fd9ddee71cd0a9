package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"storygraph/internal/store"
)

func (c *Client) ListEntities(ctx context.Context, plot, kind, tag string) ([]store.EntitySummary, error) {
	query := `
	SELECT p.name, e.position, e.kind, e.name, e.description, e.sequence, e.tags, e.partners
	FROM entities e
	JOIN plots p ON p.id = e.plot_id
	WHERE (? = '' OR p.name_normalized = ?)
	  AND (? = '' OR e.kind = ?)
	  AND (? = '' OR EXISTS (SELECT 1 FROM json_each(e.tags) WHERE lower(json_each.value) = ?))
	ORDER BY p.name_normalized ASC, e.position ASC
	`
	plotKey := store.NormalizeName(plot)
	kindKey := strings.ToLower(strings.TrimSpace(kind))
	tagKey := strings.ToLower(strings.TrimSpace(tag))

	rows, err := c.db.QueryContext(ctx, query, plotKey, plotKey, kindKey, kindKey, tagKey, tagKey)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	defer rows.Close()

	var results []store.EntitySummary
	for rows.Next() {
		var e store.EntitySummary
		var tagsText string
		err := rows.Scan(&e.Plot, &e.Position, &e.Kind, &e.Name, &e.Description, &e.Sequence, &tagsText, &e.Partners)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		if tagsText != "" {
			if err := json.Unmarshal([]byte(tagsText), &e.Tags); err != nil {
				return nil, fmt.Errorf("unmarshaling tags: %w", err)
			}
		}
		if e.Tags == nil {
			e.Tags = []string{}
		}
		results = append(results, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}

	if results == nil {
		results = []store.EntitySummary{}
	}

	return results, nil
}
