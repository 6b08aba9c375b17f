// Package postgres provides a PostgreSQL implementation of storage.TurnStore.
// It uses pgx/v5 for connection pooling.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jkoenig/werkbank/pkg/api"
	"github.com/jkoenig/werkbank/pkg/storage"
)

// Store is a PostgreSQL-backed TurnStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.TurnStore at compile time.
var _ storage.TurnStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// SaveTurn persists a completed turn record.
func (s *Store) SaveTurn(ctx context.Context, rec *api.TurnRecord) error {
	tenantID := storage.GetTenant(ctx)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO turns (
			id, tenant_id, session_id, input, task_category,
			code, origin, template_name,
			succeeded, output, error_text, image_count, message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		rec.ID, tenantID, rec.SessionID, rec.Input, rec.TaskCategory,
		rec.Code, string(rec.Origin), nullString(rec.TemplateName),
		rec.Succeeded, rec.Output, nullString(rec.ErrorText), rec.ImageCount, rec.Message, rec.CreatedAt,
	)

	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting turn: %w", err)
	}

	return nil
}

// GetTurn retrieves a turn record by ID.
func (s *Store) GetTurn(ctx context.Context, id string) (*api.TurnRecord, error) {
	tenantID := storage.GetTenant(ctx)

	query := `
		SELECT id, session_id, input, task_category,
		       code, origin, template_name,
		       succeeded, output, error_text, image_count, message, created_at
		FROM turns
		WHERE id = $1
	`
	args := []any{id}

	if tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}

	var rec api.TurnRecord
	var origin string
	var templateName, errorText *string

	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&rec.ID, &rec.SessionID, &rec.Input, &rec.TaskCategory,
		&rec.Code, &origin, &templateName,
		&rec.Succeeded, &rec.Output, &errorText, &rec.ImageCount, &rec.Message, &rec.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying turn: %w", err)
	}

	rec.Origin = api.Origin(origin)
	if templateName != nil {
		rec.TemplateName = *templateName
	}
	if errorText != nil {
		rec.ErrorText = *errorText
	}

	return &rec, nil
}

// ListTurns returns a page of turn records filtered by tenant and
// optionally by session, with cursor-based pagination.
func (s *Store) ListTurns(ctx context.Context, opts storage.ListOptions) (*storage.TurnList, error) {
	tenantID := storage.GetTenant(ctx)

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	asc := opts.Order == "asc"
	direction := "DESC"
	cursorOp := "<"
	if asc {
		direction = "ASC"
		cursorOp = ">"
	}

	query := `
		SELECT id, session_id, input, task_category,
		       code, origin, template_name,
		       succeeded, output, error_text, image_count, message, created_at
		FROM turns
		WHERE 1=1
	`
	var args []any
	argIdx := 1

	if tenantID != "" {
		query += fmt.Sprintf(" AND tenant_id = $%d", argIdx)
		args = append(args, tenantID)
		argIdx++
	}
	if opts.SessionID != "" {
		query += fmt.Sprintf(" AND session_id = $%d", argIdx)
		args = append(args, opts.SessionID)
		argIdx++
	}
	if opts.After != "" {
		// Cursor on (created_at, id) of the referenced row.
		query += fmt.Sprintf(` AND (created_at, id) %s (
			SELECT created_at, id FROM turns WHERE id = $%d
		)`, cursorOp, argIdx)
		args = append(args, opts.After)
		argIdx++
	}

	// Fetch one extra row to determine has_more.
	query += fmt.Sprintf(" ORDER BY created_at %s, id %s LIMIT $%d", direction, direction, argIdx)
	args = append(args, limit+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer rows.Close()

	var turns []*api.TurnRecord
	for rows.Next() {
		var rec api.TurnRecord
		var origin string
		var templateName, errorText *string

		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.Input, &rec.TaskCategory,
			&rec.Code, &origin, &templateName,
			&rec.Succeeded, &rec.Output, &errorText, &rec.ImageCount, &rec.Message, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}

		rec.Origin = api.Origin(origin)
		if templateName != nil {
			rec.TemplateName = *templateName
		}
		if errorText != nil {
			rec.ErrorText = *errorText
		}
		turns = append(turns, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading turns: %w", err)
	}

	hasMore := len(turns) > limit
	if hasMore {
		turns = turns[:limit]
	}

	result := &storage.TurnList{
		Turns:   turns,
		HasMore: hasMore,
	}
	if len(turns) > 0 {
		result.FirstID = turns[0].ID
		result.LastID = turns[len(turns)-1].ID
	}
	if result.Turns == nil {
		result.Turns = []*api.TurnRecord{}
	}

	return result, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// nullString converts an empty string to nil for nullable TEXT columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
