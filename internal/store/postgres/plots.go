package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"storygraph/internal/store"
)

func (c *Client) SavePlot(ctx context.Context, p store.PlotInput) (*store.PlotSummary, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("plot name is required")
	}
	normalized := store.NormalizeName(p.Name)

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	candidate, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generating plot id: %w", err)
	}

	query := `
INSERT INTO plots (id, name, name_normalized, document, clock, entity_count, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (name_normalized) DO UPDATE SET
    name = EXCLUDED.name,
    document = EXCLUDED.document,
    clock = EXCLUDED.clock,
    entity_count = EXCLUDED.entity_count,
    updated_at = now()
RETURNING id, updated_at
`
	summary := store.PlotSummary{Name: p.Name, Clock: p.Clock, EntityCount: len(p.Entities)}
	err = tx.QueryRow(ctx, query, candidate, p.Name, normalized, string(p.Document), p.Clock, len(p.Entities)).
		Scan(&summary.ID, &summary.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upserting plot: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM entities WHERE plot_id = $1`, summary.ID); err != nil {
		return nil, fmt.Errorf("clearing entity rows: %w", err)
	}

	insert := `
INSERT INTO entities (plot_id, position, kind, name, name_normalized, description, sequence, tags, partners, search_vector)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, '{}'::text[]), $9,
    setweight(to_tsvector('simple', coalesce($4, '')), 'A') ||
    setweight(to_tsvector('english', coalesce(array_to_string(COALESCE($8, '{}'::text[]), ' '), '')), 'B') ||
    setweight(to_tsvector('english', coalesce($6, '')), 'C')
)
`
	batch := &pgx.Batch{}
	for _, e := range p.Entities {
		tags := e.Tags
		if len(tags) == 0 {
			tags = nil
		}
		batch.Queue(insert, summary.ID, e.Position, e.Kind, e.Name, store.NormalizeName(e.Name), e.Description, e.Sequence, tags, e.Partners)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("inserting entity rows: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing plot: %w", err)
	}
	return &summary, nil
}

func (c *Client) LoadPlot(ctx context.Context, name string) (*store.PlotRecord, error) {
	query := `
SELECT id, name, clock, entity_count, updated_at, document
FROM plots
WHERE name_normalized = $1
`
	var rec store.PlotRecord
	var doc string
	err := c.pool.QueryRow(ctx, query, store.NormalizeName(name)).Scan(
		&rec.ID, &rec.Name, &rec.Clock, &rec.EntityCount, &rec.UpdatedAt, &doc,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", name, store.ErrPlotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading plot: %w", err)
	}
	rec.Document = []byte(doc)
	return &rec, nil
}

func (c *Client) ListPlots(ctx context.Context) ([]store.PlotSummary, error) {
	rows, err := c.pool.Query(ctx, `
SELECT id, name, clock, entity_count, updated_at
FROM plots
ORDER BY name_normalized ASC
`)
	if err != nil {
		return nil, fmt.Errorf("listing plots: %w", err)
	}
	defer rows.Close()

	results := []store.PlotSummary{}
	for rows.Next() {
		var s store.PlotSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Clock, &s.EntityCount, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning plot: %w", err)
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating plots: %w", err)
	}
	return results, nil
}

func (c *Client) DeletePlot(ctx context.Context, name string) error {
	tag, err := c.pool.Exec(ctx, `DELETE FROM plots WHERE name_normalized = $1`, store.NormalizeName(name))
	if err != nil {
		return fmt.Errorf("deleting plot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", name, store.ErrPlotNotFound)
	}
	return nil
}

func (c *Client) ListEntities(ctx context.Context, plot, kind, tag string) ([]store.EntitySummary, error) {
	query := `
SELECT p.name, e.position, e.kind, e.name, e.description, e.sequence, e.tags, e.partners
FROM entities e
JOIN plots p ON p.id = e.plot_id
WHERE ($1 = '' OR p.name_normalized = $1)
  AND ($2 = '' OR e.kind = $2)
  AND ($3 = '' OR EXISTS (SELECT 1 FROM unnest(e.tags) t WHERE lower(t) = $3))
ORDER BY p.name_normalized ASC, e.position ASC
`
	rows, err := c.pool.Query(ctx, query,
		store.NormalizeName(plot),
		strings.ToLower(strings.TrimSpace(kind)),
		strings.ToLower(strings.TrimSpace(tag)),
	)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	defer rows.Close()

	var results []store.EntitySummary
	for rows.Next() {
		var e store.EntitySummary
		err := rows.Scan(&e.Plot, &e.Position, &e.Kind, &e.Name, &e.Description, &e.Sequence, &e.Tags, &e.Partners)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
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
