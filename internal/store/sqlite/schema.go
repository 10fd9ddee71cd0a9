package sqlite

import (
	"context"
	"fmt"
	"strings"
)

const ddl = `
CREATE TABLE IF NOT EXISTS plots (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	name_normalized TEXT NOT NULL,
	document        TEXT NOT NULL,
	clock           INTEGER NOT NULL DEFAULT 0,
	entity_count    INTEGER NOT NULL DEFAULT 0,
	updated_at      TEXT NOT NULL,
	CONSTRAINT uq_plot_name UNIQUE (name_normalized)
);

CREATE TABLE IF NOT EXISTS entities (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	plot_id         TEXT NOT NULL REFERENCES plots(id) ON DELETE CASCADE,
	position        INTEGER NOT NULL,
	kind            TEXT NOT NULL,
	name            TEXT NOT NULL,
	name_normalized TEXT NOT NULL,
	description     TEXT DEFAULT '',
	sequence        INTEGER NOT NULL DEFAULT -1,
	tags            TEXT DEFAULT '[]',
	partners        INTEGER NOT NULL DEFAULT 0,
	CONSTRAINT uq_entity_position UNIQUE (plot_id, position)
);

CREATE INDEX IF NOT EXISTS idx_entities_plot ON entities (plot_id);
CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities (kind);
CREATE INDEX IF NOT EXISTS idx_entities_plot_kind ON entities (plot_id, kind);
CREATE INDEX IF NOT EXISTS idx_entities_name_norm ON entities (name_normalized);

CREATE VIRTUAL TABLE IF NOT EXISTS entities_fts USING fts5(
	name,
	tags,
	description,
	content=entities,
	content_rowid=id
);

CREATE TRIGGER IF NOT EXISTS entities_ai AFTER INSERT ON entities BEGIN
	INSERT INTO entities_fts(rowid, name, tags, description)
	VALUES (new.id, new.name, new.tags, new.description);
END;

CREATE TRIGGER IF NOT EXISTS entities_ad AFTER DELETE ON entities BEGIN
	INSERT INTO entities_fts(entities_fts, rowid, name, tags, description)
	VALUES ('delete', old.id, old.name, old.tags, old.description);
END;

CREATE TRIGGER IF NOT EXISTS entities_au AFTER UPDATE ON entities BEGIN
	INSERT INTO entities_fts(entities_fts, rowid, name, tags, description)
	VALUES ('delete', old.id, old.name, old.tags, old.description);
	INSERT INTO entities_fts(rowid, name, tags, description)
	VALUES (new.id, new.name, new.tags, new.description);
END;
`

func (c *Client) EnsureSchema(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(ddl) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}

	return nil
}

// splitStatements cuts a script at top-level semicolons. Trigger bodies
// between BEGIN and END stay in one statement.
func splitStatements(script string) []string {
	var statements []string
	var current strings.Builder
	inBody := false

	for _, line := range strings.Split(script, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		upper := strings.ToUpper(stripped)
		if strings.HasSuffix(upper, " BEGIN") || upper == "BEGIN" {
			inBody = true
			continue
		}
		if inBody {
			if upper == "END;" {
				inBody = false
				statements = append(statements, current.String())
				current.Reset()
			}
			continue
		}
		if strings.HasSuffix(stripped, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}

	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}

	return statements
}
