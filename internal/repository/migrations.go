package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
)

// migrations are applied in key order; never edit an applied entry, add a new one.
var migrations = map[int]string{
	1: `
		CREATE TABLE tenants (
			id TEXT PRIMARY KEY,
			subject TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL DEFAULT '',
			tier VARCHAR(16) NOT NULL DEFAULT 'free' CHECK (tier IN ('free', 'premium')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE workflows (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			name TEXT NOT NULL CHECK (name <> ''),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX idx_workflows_owner_updated ON workflows(owner_id, updated_at DESC, id DESC);

		CREATE TABLE nodes (
			workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
			id TEXT NOT NULL,
			type TEXT NOT NULL,
			name TEXT NOT NULL CHECK (name <> ''),
			position JSONB NOT NULL DEFAULT '{"x": 0, "y": 0}',
			data JSONB NOT NULL DEFAULT '{}',
			ordinal INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (workflow_id, id)
		);

		CREATE TABLE connections (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
			from_node_id TEXT NOT NULL,
			to_node_id TEXT NOT NULL,
			from_output TEXT NOT NULL DEFAULT 'main',
			to_input TEXT NOT NULL DEFAULT 'main',
			ordinal INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			FOREIGN KEY (workflow_id, from_node_id) REFERENCES nodes(workflow_id, id) ON DELETE CASCADE,
			FOREIGN KEY (workflow_id, to_node_id) REFERENCES nodes(workflow_id, id) ON DELETE CASCADE,
			UNIQUE (workflow_id, from_node_id, to_node_id, from_output, to_input)
		);

		CREATE INDEX idx_connections_workflow_id ON connections(workflow_id);
	`,
}

// Migrate brings the schema up to date. Each migration runs in its own
// transaction together with its bookkeeping row.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	versions := make([]int, 0, len(migrations))
	for v := range migrations {
		versions = append(versions, v)
	}
	sort.Ints(versions)

	for _, version := range versions {
		err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
			// serialize concurrent migrators
			if _, err := tx.Exec(ctx, `LOCK TABLE schema_migrations IN EXCLUSIVE MODE`); err != nil {
				return err
			}
			var applied bool
			err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&applied)
			if err != nil || applied {
				return err
			}
			if _, err := tx.Exec(ctx, migrations[version]); err != nil {
				return err
			}
			_, err = tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %d: %w", version, err)
		}
		s.logger.Debug("migration checked", "version", version)
	}
	return nil
}
