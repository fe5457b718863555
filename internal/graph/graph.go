// Package graph defines the typed store interface (spec.md §4.2, C3) the
// rest of the rule engine uses to reach the relational graph, plus the two
// concrete implementations: a Postgres-backed store grounded on the
// teacher's arx-backend/repository package (sqlx + lib/pq), and an
// in-memory store used by evaluator/translator/executor tests so they do
// not require a live database.
package graph

import (
	"context"
	"time"
)

// Entity is a node in the knowledge graph (spec.md §3 GraphEntity).
type Entity struct {
	ID         int64          `db:"id"`
	Name       string         `db:"name"`
	EntityType string         `db:"entity_type"`
	IsInstance bool           `db:"is_instance"`
	Properties map[string]any `db:"properties"`
	URI        *string        `db:"uri"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

// Relationship is a directed, typed edge between two entities.
type Relationship struct {
	ID               int64          `db:"id"`
	SourceID         int64          `db:"source_id"`
	TargetID         int64          `db:"target_id"`
	RelationshipType string         `db:"relationship_type"`
	Properties       map[string]any `db:"properties"`
	CreatedAt        time.Time      `db:"created_at"`
}

// SchemaClass describes an admissible entity type and its declared
// properties. Stores expose them through GetSchemaClass; the evaluator,
// executor and rule engine do not read them and never reject an action
// based on them.
type SchemaClass struct {
	ID             int64          `db:"id"`
	Name           string         `db:"name"`
	Label          string         `db:"label"`
	DataProperties map[string]any `db:"data_properties"`
}

// Direction of a relationship traversal, shared with ast.Direction but
// kept separate so this package has no dependency on the parser's AST.
type Direction string

const (
	DirOut  Direction = "->"
	DirIn   Direction = "<-"
	DirBoth Direction = "-"
)

// Neighbor is one result row of a Neighbors query: an entity reached
// within the requested hop count and its distance from the origin.
// Neither MemoryStore nor PostgresStore fills Relationships; it is nil in
// every returned row.
type Neighbor struct {
	Entity        Entity
	Relationships []Relationship
	Distance      int
}

// PathResult is the result of a ShortestPath query.
type PathResult struct {
	Nodes []Entity
	Edges []Relationship
}

// Row is one result row from ExecuteParameterizedSQL: column name to value.
type Row map[string]any

// Store is the only way the rest of the core touches the relational
// store (spec.md §4.2). Direct SQL appears only inside the translate
// package and the concrete implementations of this interface.
type Store interface {
	GetEntity(ctx context.Context, id int64) (*Entity, error)
	GetEntityByName(ctx context.Context, name, entityType string) (*Entity, error)
	SearchEntities(ctx context.Context, term, entityType string, limit int) ([]Entity, error)
	Neighbors(ctx context.Context, entityName string, hops int, direction Direction, relType string, propertyFilter map[string]any) ([]Neighbor, error)
	ShortestPath(ctx context.Context, fromName, toName string, maxDepth int) (*PathResult, error)
	UpdateEntityProperties(ctx context.Context, id int64, mergePatch map[string]any) error
	ExecuteParameterizedSQL(ctx context.Context, sql string, params []any) ([]Row, error)
	GetSchemaClass(ctx context.Context, entityType string) (*SchemaClass, error)
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
