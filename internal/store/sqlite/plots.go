package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"storygraph/internal/store"
)

func (c *Client) SavePlot(ctx context.Context, p store.PlotInput) (*store.PlotSummary, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("plot name is required")
	}
	normalized := store.NormalizeName(p.Name)
	now := time.Now().UTC()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, `SELECT id FROM plots WHERE name_normalized = ?`, normalized).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id, err = gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("generating plot id: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("looking up plot: %w", err)
	}

	query := `
	INSERT INTO plots (id, name, name_normalized, document, clock, entity_count, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		document = excluded.document,
		clock = excluded.clock,
		entity_count = excluded.entity_count,
		updated_at = excluded.updated_at
	`
	_, err = tx.ExecContext(ctx, query, id, p.Name, normalized, string(p.Document), p.Clock, len(p.Entities), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("upserting plot: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE plot_id = ?`, id); err != nil {
		return nil, fmt.Errorf("clearing entity rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO entities (plot_id, position, kind, name, name_normalized, description, sequence, tags, partners)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing entity insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range p.Entities {
		tagsJSON, err := json.Marshal(nonNil(e.Tags))
		if err != nil {
			return nil, fmt.Errorf("marshaling tags: %w", err)
		}
		_, err = stmt.ExecContext(ctx, id, e.Position, e.Kind, e.Name, store.NormalizeName(e.Name), e.Description, e.Sequence, string(tagsJSON), e.Partners)
		if err != nil {
			return nil, fmt.Errorf("inserting entity %s: %w", e.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing plot: %w", err)
	}

	return &store.PlotSummary{
		ID:          id,
		Name:        p.Name,
		Clock:       p.Clock,
		EntityCount: len(p.Entities),
		UpdatedAt:   now,
	}, nil
}

func (c *Client) LoadPlot(ctx context.Context, name string) (*store.PlotRecord, error) {
	query := `
	SELECT id, name, clock, entity_count, updated_at, document
	FROM plots
	WHERE name_normalized = ?
	`
	var rec store.PlotRecord
	var updated, doc string
	err := c.db.QueryRowContext(ctx, query, store.NormalizeName(name)).Scan(
		&rec.ID, &rec.Name, &rec.Clock, &rec.EntityCount, &updated, &doc,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", name, store.ErrPlotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading plot: %w", err)
	}
	rec.UpdatedAt = parseTime(updated)
	rec.Document = []byte(doc)
	return &rec, nil
}

func (c *Client) ListPlots(ctx context.Context) ([]store.PlotSummary, error) {
	rows, err := c.db.QueryContext(ctx, `
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
		var updated string
		if err := rows.Scan(&s.ID, &s.Name, &s.Clock, &s.EntityCount, &updated); err != nil {
			return nil, fmt.Errorf("scanning plot: %w", err)
		}
		s.UpdatedAt = parseTime(updated)
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating plots: %w", err)
	}
	return results, nil
}

func (c *Client) DeletePlot(ctx context.Context, name string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	normalized := store.NormalizeName(name)
	if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE plot_id IN (SELECT id FROM plots WHERE name_normalized = ?)`, normalized); err != nil {
		return fmt.Errorf("deleting entity rows: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM plots WHERE name_normalized = ?`, normalized)
	if err != nil {
		return fmt.Errorf("deleting plot: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", name, store.ErrPlotNotFound)
	}
	return tx.Commit()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
