package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"nodebase/backend/internal/apperror"
	"nodebase/backend/pkg/models"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// PostgresStore is a PostgreSQL implementation of Repository.
type PostgresStore struct {
	db     *pgxpool.Pool
	logger Logger
}

// NewPostgresStore creates a new PostgresStore. logger may be nil.
func NewPostgresStore(db *pgxpool.Pool, logger Logger) *PostgresStore {
	if logger == nil {
		logger = nopLogger{}
	}
	return &PostgresStore{db: db, logger: logger}
}

const workflowColumns = `id, owner_id, name, created_at, updated_at`

var (
	nodeColumns       = []string{"workflow_id", "id", "type", "name", "position", "data", "ordinal"}
	connectionColumns = []string{"id", "workflow_id", "from_node_id", "to_node_id", "from_output", "to_input", "ordinal"}
)

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// CreateWorkflow inserts the workflow row and its seed node in one transaction.
func (s *PostgresStore) CreateWorkflow(ctx context.Context, wf *models.Workflow, seed models.Node) error {
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	if seed.Data == nil {
		seed.Data = models.NodeData{}
	}

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO workflows (id, owner_id, name) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
			wf.ID, wf.OwnerID, wf.Name,
		).Scan(&wf.CreatedAt, &wf.UpdatedAt)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO nodes (workflow_id, id, type, name, position, data, ordinal) VALUES ($1, $2, $3, $4, $5, $6, 0)`,
			wf.ID, seed.ID, string(seed.Type), seed.Name, seed.Position, seed.Data,
		)
		return err
	})
	if err != nil {
		return mapError(err)
	}

	s.logger.Debug("workflow created", "workflow_id", wf.ID, "owner_id", wf.OwnerID)
	return nil
}

// GetWorkflow retrieves workflow metadata scoped by owner.
func (s *PostgresStore) GetWorkflow(ctx context.Context, id, ownerID string) (*models.Workflow, error) {
	wf, err := scanWorkflow(s.db.QueryRow(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if err != nil {
		return nil, mapError(err)
	}
	return wf, nil
}

// GetGraph reads the workflow, its nodes and its connections from a single
// snapshot so a concurrent replace is seen either entirely or not at all.
func (s *PostgresStore) GetGraph(ctx context.Context, id, ownerID string) (*models.Graph, error) {
	var graph *models.Graph
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := pgx.BeginTxFunc(ctx, s.db, opts, func(tx pgx.Tx) error {
		wf, err := scanWorkflow(tx.QueryRow(ctx,
			`SELECT `+workflowColumns+` FROM workflows WHERE id = $1 AND owner_id = $2`, id, ownerID))
		if err != nil {
			return err
		}
		nodes, err := queryNodes(ctx, tx, id)
		if err != nil {
			return err
		}
		conns, err := queryConnections(ctx, tx, id)
		if err != nil {
			return err
		}
		graph = models.NewGraph(*wf, nodes, conns)
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	return graph, nil
}

func queryNodes(ctx context.Context, tx pgx.Tx, workflowID string) ([]models.Node, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, workflow_id, type, name, position, data, created_at, updated_at
		 FROM nodes WHERE workflow_id = $1 ORDER BY ordinal, id`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []models.Node
	for rows.Next() {
		var n models.Node
		var typ string
		if err := rows.Scan(&n.ID, &n.WorkflowID, &typ, &n.Name, &n.Position, &n.Data, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		n.Type = models.NodeType(typ)
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func queryConnections(ctx context.Context, tx pgx.Tx, workflowID string) ([]models.Connection, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, workflow_id, from_node_id, to_node_id, from_output, to_input, created_at, updated_at
		 FROM connections WHERE workflow_id = $1 ORDER BY ordinal, id`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []models.Connection
	for rows.Next() {
		var c models.Connection
		if err := rows.Scan(&c.ID, &c.WorkflowID, &c.FromNodeID, &c.ToNodeID, &c.FromOutput, &c.ToInput, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

// filterClause renders the WHERE clause shared by list and count.
func filterClause(filter WorkflowFilter) (string, []any) {
	return `WHERE owner_id = $1 AND ($2::text = '' OR strpos(lower(name), lower($2::text)) > 0)`,
		[]any{filter.OwnerID, filter.Search}
}

// ListWorkflows returns one page of the owner's workflows, most recently updated first.
func (s *PostgresStore) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*models.Workflow, error) {
	where, args := filterClause(filter)
	query := `SELECT ` + workflowColumns + ` FROM workflows ` + where +
		` ORDER BY updated_at DESC, id DESC LIMIT $3 OFFSET $4`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	workflows := make([]*models.Workflow, 0, filter.Limit)
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, mapError(err)
		}
		workflows = append(workflows, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return workflows, nil
}

// CountWorkflows counts the owner's workflows matching filter.
func (s *PostgresStore) CountWorkflows(ctx context.Context, filter WorkflowFilter) (int, error) {
	where, args := filterClause(filter)
	var n int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM workflows `+where, args...).Scan(&n); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// RenameWorkflow updates the name; the UPDATE row lock serializes it with ReplaceGraph.
func (s *PostgresStore) RenameWorkflow(ctx context.Context, id, ownerID, name string) (*models.Workflow, error) {
	wf, err := scanWorkflow(s.db.QueryRow(ctx,
		`UPDATE workflows SET name = $3, updated_at = now()
		 WHERE id = $1 AND owner_id = $2 RETURNING `+workflowColumns, id, ownerID, name))
	if err != nil {
		return nil, mapError(err)
	}
	return wf, nil
}

// DeleteWorkflow removes the workflow; nodes and connections cascade.
func (s *PostgresStore) DeleteWorkflow(ctx context.Context, id, ownerID string) (*models.Workflow, error) {
	wf, err := scanWorkflow(s.db.QueryRow(ctx,
		`DELETE FROM workflows WHERE id = $1 AND owner_id = $2 RETURNING `+workflowColumns, id, ownerID))
	if err != nil {
		return nil, mapError(err)
	}
	s.logger.Debug("workflow deleted", "workflow_id", id)
	return wf, nil
}

// ReplaceGraph deletes the stored graph and bulk-inserts the new one. The
// workflow row is locked first, so concurrent replaces and renames of the
// same workflow run one after the other. The returned workflow is the row
// as read under the lock, before updated_at is touched.
func (s *PostgresStore) ReplaceGraph(ctx context.Context, id, ownerID string, nodes []models.Node, conns []models.Connection) (*models.Workflow, error) {
	var before *models.Workflow
	err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		wf, err := scanWorkflow(tx.QueryRow(ctx,
			`SELECT `+workflowColumns+` FROM workflows WHERE id = $1 AND owner_id = $2 FOR UPDATE`, id, ownerID))
		if err != nil {
			return err
		}
		before = wf

		if _, err := tx.Exec(ctx, `DELETE FROM connections WHERE workflow_id = $1`, id); err != nil {
			return fmt.Errorf("delete connections: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM nodes WHERE workflow_id = $1`, id); err != nil {
			return fmt.Errorf("delete nodes: %w", err)
		}

		if len(nodes) > 0 {
			rows := make([][]any, len(nodes))
			for i, n := range nodes {
				data := n.Data
				if data == nil {
					data = models.NodeData{}
				}
				rows[i] = []any{id, n.ID, string(n.Type), n.Name, n.Position, data, i}
			}
			if _, err := tx.CopyFrom(ctx, pgx.Identifier{"nodes"}, nodeColumns, pgx.CopyFromRows(rows)); err != nil {
				return fmt.Errorf("insert nodes: %w", err)
			}
		}

		if len(conns) > 0 {
			rows := make([][]any, len(conns))
			for i, c := range conns {
				cid := c.ID
				if cid == "" {
					cid = uuid.NewString()
				}
				rows[i] = []any{cid, id, c.FromNodeID, c.ToNodeID, c.FromOutput, c.ToInput, i}
			}
			if _, err := tx.CopyFrom(ctx, pgx.Identifier{"connections"}, connectionColumns, pgx.CopyFromRows(rows)); err != nil {
				return fmt.Errorf("insert connections: %w", err)
			}
		}

		_, err = tx.Exec(ctx, `UPDATE workflows SET updated_at = now() WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return nil, mapError(err)
	}

	s.logger.Debug("graph replaced", "workflow_id", id, "nodes", len(nodes), "connections", len(conns))
	return before, nil
}

func scanWorkflow(row pgx.Row) (*models.Workflow, error) {
	var wf models.Workflow
	if err := row.Scan(&wf.ID, &wf.OwnerID, &wf.Name, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
		return nil, err
	}
	return &wf, nil
}

// mapError classifies driver errors. Foreign key failures on connections
// mean an edge named a node outside the graph; unique violations mean a
// repeated identifier in the payload.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.ErrNotFound.WithInternal(err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503": // foreign_key_violation
			if pgErr.TableName == "connections" {
				return apperror.Conflict("connection references a node that is not part of the graph").WithInternal(err)
			}
		case "23505": // unique_violation
			if pgErr.TableName == "nodes" || pgErr.TableName == "connections" {
				return apperror.Validation("graph contains a duplicate %s", singular(pgErr.TableName)).WithInternal(err)
			}
		case "23514", "22P02": // check_violation, invalid_text_representation
			return apperror.Validation("value rejected by store").WithInternal(err)
		}
	}
	return apperror.Store(err)
}

func singular(table string) string {
	if table == "nodes" {
		return "node"
	}
	return "connection"
}
