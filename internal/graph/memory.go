package graph

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/arxos/graphrules/internal/grerr"
)

// MemoryStore is an in-process Store used by evaluator, translator,
// executor, and rule-engine tests so they do not require a live database
// (SPEC_FULL.md §2 Test Tooling). ExecuteParameterizedSQL understands only
// the small set of EXISTS/SELECT shapes the translate package emits; it is
// not a SQL engine.
type MemoryStore struct {
	mu            sync.Mutex
	entities      map[int64]Entity
	relationships map[int64]Relationship
	schema        map[string]SchemaClass
	nextEntityID  int64
	nextRelID     int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities:      map[int64]Entity{},
		relationships: map[int64]Relationship{},
		schema:        map[string]SchemaClass{},
	}
}

// SeedEntity inserts or replaces an entity directly, for test fixtures.
// A non-zero ID is kept as given; a zero ID is replaced by the next free id.
func (m *MemoryStore) SeedEntity(e Entity) Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == 0 {
		m.nextEntityID++
		e.ID = m.nextEntityID
	} else if e.ID > m.nextEntityID {
		m.nextEntityID = e.ID
	}
	if e.Properties == nil {
		e.Properties = map[string]any{}
	}
	m.entities[e.ID] = e
	return e
}

func (m *MemoryStore) SeedRelationship(r Relationship) Relationship {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		m.nextRelID++
		r.ID = m.nextRelID
	} else if r.ID > m.nextRelID {
		m.nextRelID = r.ID
	}
	m.relationships[r.ID] = r
	return r
}

func (m *MemoryStore) SeedSchemaClass(c SchemaClass) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schema[c.Name] = c
}

func (m *MemoryStore) GetEntity(_ context.Context, id int64) (*Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return nil, nil
	}
	cp := e
	return &cp, nil
}

func (m *MemoryStore) GetEntityByName(_ context.Context, name, entityType string) (*Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entities {
		if e.Name == name && (entityType == "" || e.EntityType == entityType) {
			cp := e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) SearchEntities(_ context.Context, term, entityType string, limit int) ([]Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entity
	for _, e := range m.entities {
		if entityType != "" && e.EntityType != entityType {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(e.Name), strings.ToLower(term)) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) edgesFrom(id int64, direction Direction, relType string) []Relationship {
	var out []Relationship
	for _, r := range m.relationships {
		if relType != "" && r.RelationshipType != relType {
			continue
		}
		switch direction {
		case DirOut:
			if r.SourceID == id {
				out = append(out, r)
			}
		case DirIn:
			if r.TargetID == id {
				out = append(out, r)
			}
		default:
			if r.SourceID == id || r.TargetID == id {
				out = append(out, r)
			}
		}
	}
	return out
}

func otherEnd(r Relationship, id int64) int64 {
	if r.SourceID == id {
		return r.TargetID
	}
	return r.SourceID
}

// Neighbors performs a breadth-first expansion with a visited set, the
// in-memory analogue of the recursive CTE the Postgres store runs.
func (m *MemoryStore) Neighbors(_ context.Context, entityName string, hops int, direction Direction, relType string, propertyFilter map[string]any) ([]Neighbor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var origin *Entity
	for _, e := range m.entities {
		if e.Name == entityName {
			cp := e
			origin = &cp
			break
		}
	}
	if origin == nil {
		return nil, nil
	}

	type frontierItem struct {
		id    int64
		depth int
	}
	visited := map[int64]bool{origin.ID: true}
	frontier := []frontierItem{{id: origin.ID, depth: 0}}
	var out []Neighbor

	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		if cur.depth >= hops {
			continue
		}
		for _, edge := range m.edgesFrom(cur.id, direction, relType) {
			next := otherEnd(edge, cur.id)
			if visited[next] {
				continue
			}
			visited[next] = true
			ent, ok := m.entities[next]
			if !ok {
				continue
			}
			if matchesPropertyFilter(ent.Properties, propertyFilter) {
				out = append(out, Neighbor{Entity: ent, Distance: cur.depth + 1})
			}
			frontier = append(frontier, frontierItem{id: next, depth: cur.depth + 1})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Entity.Name < out[j].Entity.Name
	})
	return out, nil
}

// ShortestPath runs an unweighted BFS over outgoing edges only, matching
// the directionality of the Postgres recursive CTE.
func (m *MemoryStore) ShortestPath(_ context.Context, fromName, toName string, maxDepth int) (*PathResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var fromID, toID int64
	var found int
	for _, e := range m.entities {
		if e.Name == fromName {
			fromID = e.ID
			found++
		}
		if e.Name == toName {
			toID = e.ID
			found++
		}
	}
	if found < 2 {
		return nil, nil
	}
	if fromID == toID {
		return &PathResult{Nodes: []Entity{m.entities[fromID]}}, nil
	}

	type step struct {
		id   int64
		path []int64
	}
	visited := map[int64]bool{fromID: true}
	queue := []step{{id: fromID, path: []int64{fromID}}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if len(cur.path)-1 >= maxDepth {
			continue
		}
		for _, edge := range m.edgesFrom(cur.id, DirOut, "") {
			next := edge.TargetID
			if visited[next] {
				continue
			}
			newPath := append(append([]int64{}, cur.path...), next)
			if next == toID {
				res := &PathResult{}
				for _, id := range newPath {
					res.Nodes = append(res.Nodes, m.entities[id])
				}
				return res, nil
			}
			visited[next] = true
			queue = append(queue, step{id: next, path: newPath})
		}
	}
	return nil, nil
}

func (m *MemoryStore) UpdateEntityProperties(_ context.Context, id int64, mergePatch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return grerr.NotFoundf("entity %d", id)
	}
	if e.Properties == nil {
		e.Properties = map[string]any{}
	}
	for k, v := range mergePatch {
		e.Properties[k] = v
	}
	m.entities[id] = e
	return nil
}

// ExecuteParameterizedSQL interprets the narrow set of EXISTS/SELECT
// shapes translate.CompileFor and translate.EvalExists emit (see
// sqlshim.go), evaluating them against the entities and relationships
// held in memory instead of against a real database.
func (m *MemoryStore) ExecuteParameterizedSQL(_ context.Context, sqlText string, params []any) ([]Row, error) {
	return m.snapshotAndRun(sqlText, params)
}

func (m *MemoryStore) GetSchemaClass(_ context.Context, entityType string) (*SchemaClass, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.schema[entityType]
	if !ok {
		return nil, nil
	}
	cp := c
	return &cp, nil
}

// RunInTransaction has no real atomicity in memory; it runs fn against
// the same store and does not roll back on error, which is sufficient for
// exercising executor logic in tests that do not assert on rollback.
func (m *MemoryStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return fn(ctx, m)
}
