package store

import (
	"context"
	"fmt"
)

// schema holds the DDL applied on startup. Documents live whole in jsonb;
// filter columns are extracted so indexes stay cheap.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS integrity_records (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		subject_type TEXT NOT NULL,
		status       TEXT NOT NULL,
		doc          JSONB NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_integrity_records_user ON integrity_records (user_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS diagnoses (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		doc        JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_diagnoses_user ON diagnoses (user_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS medicines (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		popularity_score INT NOT NULL DEFAULT 0,
		doc              JSONB NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_medicines_name ON medicines (name)`,
	`CREATE INDEX IF NOT EXISTS idx_medicines_conditions ON medicines USING GIN ((doc->'conditions'))`,
}

// Migrate applies the schema. Statements are idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	p.logger.Info("Database schema applied")
	return nil
}
