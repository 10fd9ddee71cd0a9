package postgres

import (
	"context"
	"fmt"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS plots (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    name_normalized TEXT NOT NULL,
    document        TEXT NOT NULL,
    clock           INTEGER NOT NULL DEFAULT 0,
    entity_count    INTEGER NOT NULL DEFAULT 0,
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT uq_plot_name UNIQUE (name_normalized)
);

CREATE TABLE IF NOT EXISTS entities (
    id              BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    plot_id         TEXT NOT NULL REFERENCES plots(id) ON DELETE CASCADE,
    position        INTEGER NOT NULL,
    kind            TEXT NOT NULL,
    name            TEXT NOT NULL,
    name_normalized TEXT NOT NULL,
    description     TEXT DEFAULT '',
    sequence        INTEGER NOT NULL DEFAULT -1,
    tags            TEXT[] DEFAULT '{}',
    partners        INTEGER NOT NULL DEFAULT 0,
    search_vector   TSVECTOR,
    CONSTRAINT uq_entity_position UNIQUE (plot_id, position)
);

CREATE INDEX IF NOT EXISTS idx_entities_search ON entities USING GIN (search_vector);
CREATE INDEX IF NOT EXISTS idx_entities_plot ON entities (plot_id);
CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities (kind);
CREATE INDEX IF NOT EXISTS idx_entities_plot_kind ON entities (plot_id, kind);
CREATE INDEX IF NOT EXISTS idx_entities_name_norm ON entities (name_normalized);
CREATE INDEX IF NOT EXISTS idx_entities_tags ON entities USING GIN (tags);
`
	_, err := c.pool.Exec(ctx, ddl)
	if err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
