package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
)

const (
	runsTable       = "runs"
	fieldCacheTable = "field_cache"
)

func schema(d string) []string {
	ts := "TIMESTAMP"
	if d == dialect.Postgres {
		ts = "TIMESTAMPTZ"
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS runs (
	id            VARCHAR(36) PRIMARY KEY,
	package_path  TEXT NOT NULL,
	candidate_dir TEXT NOT NULL,
	output_path   TEXT NOT NULL,
	status        VARCHAR(16) NOT NULL,
	started_at    %[1]s NOT NULL,
	finished_at   %[1]s NULL,
	summary       TEXT NULL,
	error_message TEXT NULL
)`, ts),
		`CREATE INDEX IF NOT EXISTS runs_started_at_idx ON runs (started_at)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS field_cache (
	file_hash  VARCHAR(64) NOT NULL,
	page_index INTEGER NOT NULL,
	field      TEXT NOT NULL,
	region     TEXT NOT NULL,
	crop       TEXT NOT NULL,
	engine     TEXT NOT NULL,
	settings   TEXT NOT NULL,
	raw_text   TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	updated_at %s NOT NULL,
	PRIMARY KEY (file_hash, page_index, field, region, crop, engine, settings)
)`, ts),
	}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.logger.Error("migration failed", "error", err)
			return common.NewAppError("DB_MIGRATE", "migrate schema", fmt.Errorf("%w: %w", common.ErrDatabase, err))
		}
	}
	s.logger.Debug("schema up to date", "dialect", s.dialect)
	return nil
}
