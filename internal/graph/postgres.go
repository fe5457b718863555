package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/arxos/graphrules/internal/grerr"
)

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx, letting every query
// method below run unchanged whether or not it is inside RunInTransaction.
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// PostgresStore is the relational implementation of Store, grounded on
// the teacher's arx-backend/repository package: sqlx.DB, Queryx/GetContext,
// and StructScan-based row mapping, with lib/pq registered as the driver.
type PostgresStore struct {
	db  *sqlx.DB // non-nil only on the root store returned by Open/NewPostgresStore
	ext queryer  // the handle actually used for queries: db, or the active tx
}

// Open connects to Postgres using the given DSN, grounded on the
// teacher's cmd/db.connection.go sqlx.Connect pattern.
func Open(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, grerr.Storef("connect to postgres: %v", err)
	}
	return &PostgresStore{db: db, ext: db}, nil
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore { return &PostgresStore{db: db, ext: db} }

func (s *PostgresStore) Close() error { return s.db.Close() }

type entityRow struct {
	ID         int64           `db:"id"`
	Name       string          `db:"name"`
	EntityType string          `db:"entity_type"`
	IsInstance bool            `db:"is_instance"`
	Properties json.RawMessage `db:"properties"`
	URI        sql.NullString  `db:"uri"`
	CreatedAt  sql.NullTime    `db:"created_at"`
	UpdatedAt  sql.NullTime    `db:"updated_at"`
}

func (r entityRow) toEntity() (Entity, error) {
	props := map[string]any{}
	if len(r.Properties) > 0 {
		if err := json.Unmarshal(r.Properties, &props); err != nil {
			return Entity{}, fmt.Errorf("decode properties: %w", err)
		}
	}
	e := Entity{
		ID:         r.ID,
		Name:       r.Name,
		EntityType: r.EntityType,
		IsInstance: r.IsInstance,
		Properties: props,
		CreatedAt:  r.CreatedAt.Time,
		UpdatedAt:  r.UpdatedAt.Time,
	}
	if r.URI.Valid {
		uri := r.URI.String
		e.URI = &uri
	}
	return e, nil
}

func (s *PostgresStore) GetEntity(ctx context.Context, id int64) (*Entity, error) {
	var row entityRow
	err := s.ext.GetContext(ctx, &row, `SELECT id, name, entity_type, is_instance, properties, uri, created_at, updated_at
		FROM graph_entities WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, grerr.Storef("get entity %d: %v", id, err)
	}
	e, err := row.toEntity()
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) GetEntityByName(ctx context.Context, name, entityType string) (*Entity, error) {
	query := `SELECT id, name, entity_type, is_instance, properties, uri, created_at, updated_at
		FROM graph_entities WHERE name = $1`
	args := []any{name}
	if entityType != "" {
		query += ` AND entity_type = $2`
		args = append(args, entityType)
	}
	var row entityRow
	err := s.ext.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, grerr.Storef("get entity by name %q: %v", name, err)
	}
	e, err := row.toEntity()
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) SearchEntities(ctx context.Context, term, entityType string, limit int) ([]Entity, error) {
	query := `SELECT id, name, entity_type, is_instance, properties, uri, created_at, updated_at
		FROM graph_entities WHERE name ILIKE $1`
	args := []any{"%" + term + "%"}
	idx := 2
	if entityType != "" {
		query += fmt.Sprintf(" AND entity_type = $%d", idx)
		args = append(args, entityType)
		idx++
	}
	query += fmt.Sprintf(" ORDER BY name LIMIT $%d", idx)
	args = append(args, limit)

	var rows []entityRow
	if err := s.ext.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, grerr.Storef("search entities: %v", err)
	}
	out := make([]Entity, 0, len(rows))
	for _, r := range rows {
		e, err := r.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Neighbors expands one hop at a time using a recursive CTE with a
// visited-ids array for cycle detection, per spec.md §4.5.
func (s *PostgresStore) Neighbors(ctx context.Context, entityName string, hops int, direction Direction, relType string, propertyFilter map[string]any) ([]Neighbor, error) {
	dirPredicate := "r.source_id = walk.id"
	switch direction {
	case DirIn:
		dirPredicate = "r.target_id = walk.id"
	case DirBoth:
		dirPredicate = "(r.source_id = walk.id OR r.target_id = walk.id)"
	}
	nextIDExpr := "r.target_id"
	if direction == DirIn {
		nextIDExpr = "r.source_id"
	}

	query := fmt.Sprintf(`
		WITH RECURSIVE walk(id, depth, visited, rel_path) AS (
			SELECT e.id, 0, ARRAY[e.id], ARRAY[]::bigint[]
			FROM graph_entities e WHERE e.name = $1
			UNION ALL
			SELECT %s, walk.depth + 1, walk.visited || %s, walk.rel_path || r.id
			FROM walk
			JOIN graph_relationships r ON %s
			WHERE walk.depth < $2
			  AND NOT (%s = ANY(walk.visited))
			  AND ($3 = '' OR r.relationship_type = $3)
		)
		SELECT DISTINCT ON (walk.id) walk.id AS neighbor_id, walk.depth, walk.rel_path
		FROM walk WHERE walk.depth > 0
		ORDER BY walk.id, walk.depth ASC
	`, nextIDExpr, nextIDExpr, dirPredicate, nextIDExpr)

	type walkRow struct {
		NeighborID int64         `db:"neighbor_id"`
		Depth      int           `db:"depth"`
		RelPath    pq.Int64Array `db:"rel_path"`
	}
	var rows []walkRow
	if err := s.ext.SelectContext(ctx, &rows, query, entityName, hops, relType); err != nil {
		return nil, grerr.Storef("neighbors query: %v", err)
	}

	out := make([]Neighbor, 0, len(rows))
	for _, wr := range rows {
		ent, err := s.GetEntity(ctx, wr.NeighborID)
		if err != nil || ent == nil {
			continue
		}
		if !matchesPropertyFilter(ent.Properties, propertyFilter) {
			continue
		}
		out = append(out, Neighbor{Entity: *ent, Distance: wr.Depth})
	}
	return out, nil
}

func matchesPropertyFilter(props, filter map[string]any) bool {
	for k, v := range filter {
		if props[k] != v {
			return false
		}
	}
	return true
}

// ShortestPath uses a bounded BFS CTE, returning the first terminating row
// ordered by path length, per spec.md §4.5.
func (s *PostgresStore) ShortestPath(ctx context.Context, fromName, toName string, maxDepth int) (*PathResult, error) {
	query := `
		WITH RECURSIVE bfs(id, depth, path, rel_path, visited) AS (
			SELECT e.id, 0, ARRAY[e.id], ARRAY[]::bigint[], ARRAY[e.id]
			FROM graph_entities e WHERE e.name = $1
			UNION ALL
			SELECT r.target_id, bfs.depth + 1, bfs.path || r.target_id, bfs.rel_path || r.id, bfs.visited || r.target_id
			FROM bfs
			JOIN graph_relationships r ON r.source_id = bfs.id
			WHERE bfs.depth < $3 AND NOT (r.target_id = ANY(bfs.visited))
		)
		SELECT path, rel_path FROM bfs
		JOIN graph_entities target ON target.id = bfs.id AND target.name = $2
		ORDER BY depth ASC LIMIT 1
	`
	type bfsRow struct {
		Path    pq.Int64Array `db:"path"`
		RelPath pq.Int64Array `db:"rel_path"`
	}
	var row bfsRow
	err := s.ext.GetContext(ctx, &row, query, fromName, toName, maxDepth)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, grerr.Storef("shortest path: %v", err)
	}

	res := &PathResult{}
	for _, id := range row.Path {
		e, err := s.GetEntity(ctx, id)
		if err != nil || e == nil {
			continue
		}
		res.Nodes = append(res.Nodes, *e)
	}
	return res, nil
}

func (s *PostgresStore) UpdateEntityProperties(ctx context.Context, id int64, mergePatch map[string]any) error {
	patch, err := json.Marshal(mergePatch)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}
	res, err := s.ext.ExecContext(ctx, `
		UPDATE graph_entities
		SET properties = COALESCE(properties, '{}'::jsonb) || $2::jsonb, updated_at = now()
		WHERE id = $1`, id, string(patch))
	if err != nil {
		return grerr.Storef("update entity %d: %v", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return grerr.NotFoundf("entity %d", id)
	}
	return nil
}

func (s *PostgresStore) ExecuteParameterizedSQL(ctx context.Context, sql string, params []any) ([]Row, error) {
	rows, err := s.ext.QueryxContext(ctx, sql, params...)
	if err != nil {
		return nil, grerr.Storef("execute sql: %v", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		m := map[string]any{}
		if err := rows.MapScan(m); err != nil {
			return nil, grerr.Storef("scan row: %v", err)
		}
		out = append(out, Row(m))
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetSchemaClass(ctx context.Context, entityType string) (*SchemaClass, error) {
	var row struct {
		ID             int64           `db:"id"`
		Name           string          `db:"name"`
		Label          string          `db:"label"`
		DataProperties json.RawMessage `db:"data_properties"`
	}
	err := s.ext.GetContext(ctx, &row, `SELECT id, name, label, data_properties FROM schema_classes WHERE name = $1`, entityType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, grerr.Storef("get schema class %q: %v", entityType, err)
	}
	props := map[string]any{}
	if len(row.DataProperties) > 0 {
		_ = json.Unmarshal(row.DataProperties, &props)
	}
	return &SchemaClass{ID: row.ID, Name: row.Name, Label: row.Label, DataProperties: props}, nil
}

// RunInTransaction begins a transaction and hands the caller a Store bound
// to it; any error rolls back, per spec.md §4.2 (used by the action
// executor and the rule engine to persist a property merge; preconditions
// are evaluated before the transaction begins).
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return grerr.Storef("begin transaction: %v", err)
	}
	txStore := &PostgresStore{db: s.db, ext: tx}

	if err := fn(ctx, txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return grerr.Storef("commit transaction: %v", err)
	}
	return nil
}
