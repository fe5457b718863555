package translate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/eval"
	"github.com/arxos/graphrules/internal/graph"
)

func TestCompileForRunsAgainstMemoryStore(t *testing.T) {
	store := graph.NewMemoryStore()
	store.SeedEntity(graph.Entity{Name: "po-1", EntityType: "PurchaseOrder", Properties: map[string]any{"amount": 150.0}})
	store.SeedEntity(graph.Entity{Name: "po-2", EntityType: "PurchaseOrder", Properties: map[string]any{"amount": 50.0}})
	store.SeedEntity(graph.Entity{Name: "supplier-1", EntityType: "Supplier", Properties: map[string]any{}})

	tr := New()
	fc := &ast.ForClause{
		Variable:   "po",
		EntityType: "PurchaseOrder",
		Condition: ast.Binary{
			Op:    ast.OpGt,
			Left:  ast.Path{Segments: []string{"po", "amount"}},
			Right: ast.Literal{Value: int64(100)},
		},
	}

	var matched []string
	parent := eval.NewContext(store)
	err := tr.RunFor(context.Background(), store, parent, fc, func(child *eval.EvaluationContext) error {
		matched = append(matched, child.Vars["po"].Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"po-1"}, matched)
}

func TestEvalExistsRunsAgainstMemoryStore(t *testing.T) {
	store := graph.NewMemoryStore()
	po := store.SeedEntity(graph.Entity{Name: "po-1", EntityType: "PurchaseOrder", Properties: map[string]any{}})
	supplier := store.SeedEntity(graph.Entity{Name: "supplier-1", EntityType: "Supplier", Properties: map[string]any{}})
	store.SeedRelationship(graph.Relationship{SourceID: po.ID, TargetID: supplier.ID, RelationshipType: "orderedFrom"})

	tr := New()
	pattern := ast.Pattern{
		Nodes: []ast.PatternNode{{Variable: "po"}, {Variable: "s"}},
		Edges: []ast.PatternEdge{{
			RelationshipType: "orderedFrom",
			Direction:        ast.DirOut,
			From:             ast.PatternNode{Variable: "po"},
			To:               ast.PatternNode{Variable: "s"},
		}},
	}

	evalCtx := eval.NewContext(store)
	evalCtx.Bind("po", &po)
	found, err := tr.EvalExists(context.Background(), store, evalCtx, pattern)
	require.NoError(t, err)
	assert.True(t, found)

	other := store.SeedEntity(graph.Entity{Name: "po-2", EntityType: "PurchaseOrder", Properties: map[string]any{}})
	evalCtx2 := eval.NewContext(store)
	evalCtx2.Bind("po", &other)
	found2, err := tr.EvalExists(context.Background(), store, evalCtx2, pattern)
	require.NoError(t, err)
	assert.False(t, found2)
}
