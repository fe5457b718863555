package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/eval"
	"github.com/arxos/graphrules/internal/graph"
)

type recordingPublisher struct {
	events []ast.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev ast.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func newApproveAction() ast.ActionDef {
	return ast.ActionDef{
		EntityType: "PurchaseOrder",
		ActionName: "approve",
		Parameters: []ast.Parameter{{Name: "approver", ParamType: "string"}},
		Preconditions: []ast.Precondition{{
			Name:      "belowLimit",
			Condition: ast.Binary{Op: ast.OpLt, Left: ast.Path{Segments: []string{"this", "amount"}}, Right: ast.Literal{Value: 10000.0}},
			OnFailure: "amount too large",
		}},
		Effect: &ast.EffectBlock{Statements: []ast.SetStatement{
			{Target: "status", Value: ast.Literal{Value: "approved"}},
			{Target: "approvedBy", Value: ast.Path{Segments: []string{"params", "approver"}}},
		}},
	}
}

func newTestExecutor(pub EventPublisher) (*Executor, graph.Store) {
	reg := NewRegistry()
	reg.Register(newApproveAction())
	store := graph.NewMemoryStore()
	evaluator := eval.New(nil)
	return NewExecutor(reg, evaluator, pub), store
}

func TestExecutorSuccessAppliesEffectAndEmitsEvents(t *testing.T) {
	pub := &recordingPublisher{}
	x, store := newTestExecutor(pub)
	entity := store.(*graph.MemoryStore).SeedEntity(graph.Entity{
		Name: "po-1", EntityType: "PurchaseOrder", Properties: map[string]any{"amount": 150.0, "status": "pending"},
	})

	res, err := x.Execute(context.Background(), store, "PurchaseOrder", "approve", &entity, map[string]any{"approver": "alice"})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.NotEmpty(t, res.ExecutionID)
	assert.Len(t, res.Changes, 2)
	assert.Equal(t, "approved", res.Changes["status"].New)
	assert.Len(t, pub.events, 2)

	updated, err := store.GetEntity(context.Background(), entity.ID)
	require.NoError(t, err)
	assert.Equal(t, "approved", updated.Properties["status"])
	assert.Equal(t, "alice", updated.Properties["approvedBy"])
}

func TestExecutorPreconditionFailureStopsExecution(t *testing.T) {
	pub := &recordingPublisher{}
	x, store := newTestExecutor(pub)
	entity := store.(*graph.MemoryStore).SeedEntity(graph.Entity{
		Name: "po-1", EntityType: "PurchaseOrder", Properties: map[string]any{"amount": 99999.0},
	})

	res, err := x.Execute(context.Background(), store, "PurchaseOrder", "approve", &entity, map[string]any{"approver": "alice"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "belowLimit", res.FailedPrecondition)
	assert.Equal(t, "amount too large", res.FailureMessage)
	assert.Empty(t, pub.events)

	unchanged, err := store.GetEntity(context.Background(), entity.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "approved", unchanged.Properties["status"])
}

func TestExecutorNoopWhenValuesUnchanged(t *testing.T) {
	pub := &recordingPublisher{}
	x, store := newTestExecutor(pub)
	entity := store.(*graph.MemoryStore).SeedEntity(graph.Entity{
		Name: "po-1", EntityType: "PurchaseOrder",
		Properties: map[string]any{"amount": 1.0, "status": "approved", "approvedBy": "bob"},
	})

	res, err := x.Execute(context.Background(), store, "PurchaseOrder", "approve", &entity, map[string]any{"approver": "bob"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Changes)
	assert.Empty(t, pub.events)
}

func TestExecutorUnknownActionReturnsNotFound(t *testing.T) {
	x, store := newTestExecutor(&recordingPublisher{})
	entity := &graph.Entity{ID: 1, EntityType: "PurchaseOrder"}
	_, err := x.Execute(context.Background(), store, "PurchaseOrder", "nonexistent", entity, nil)
	assert.Error(t, err)
}

func TestRegistryLastWriteWins(t *testing.T) {
	reg := NewRegistry()
	reg.Register(ast.ActionDef{EntityType: "X", ActionName: "y", Parameters: []ast.Parameter{{Name: "a"}}})
	reg.Register(ast.ActionDef{EntityType: "X", ActionName: "y", Parameters: []ast.Parameter{{Name: "b"}}})
	def, ok := reg.Lookup("X", "y")
	require.True(t, ok)
	assert.Equal(t, "b", def.Parameters[0].Name)
}

func TestRegistryAll(t *testing.T) {
	reg := NewRegistry()
	reg.Register(ast.ActionDef{EntityType: "X", ActionName: "a"})
	reg.Register(ast.ActionDef{EntityType: "X", ActionName: "b"})
	assert.Len(t, reg.All(), 2)
}
