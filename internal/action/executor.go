package action

import (
	"context"

	"github.com/google/uuid"

	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/eval"
	"github.com/arxos/graphrules/internal/graph"
	"github.com/arxos/graphrules/internal/grerr"
	"github.com/arxos/graphrules/internal/grmetrics"
)

// EventPublisher is the narrow slice of event.Emitter the executor needs,
// kept as an interface so this package never imports internal/event
// (which in turn may need to invoke the rule engine on UpdateEvent,
// avoiding a cycle).
type EventPublisher interface {
	Publish(ctx context.Context, ev ast.Event) error
}

// ChangeRecord is one property's before/after value, emitted as part of
// ExecutionResult and as the basis of each UpdateEvent.
type ChangeRecord struct {
	Old any
	New any
}

// ExecutionResult mirrors the original ExecutionResult dataclass:
// success flag, the failed precondition's name and message when
// applicable, and the net set of property changes applied. ExecutionID is
// a fresh correlation id minted per call to Execute, logged at call sites
// but never persisted alongside the entity (spec's "never stored by the
// core" rule for events).
type ExecutionResult struct {
	ExecutionID         string
	Success             bool
	Error               error
	FailedPrecondition  string
	FailureMessage      string
	EntityID            int64
	Changes             map[string]ChangeRecord
}

// Executor runs a registered ActionDef against a bound entity: evaluate
// preconditions in declaration order, stopping at the first failure;
// apply the EFFECT block's SET statements to produce a property patch;
// persist the patch transactionally; and emit one UpdateEvent per changed
// property whose old and new values differ (action_executor.py's
// _emit_update_events skip-if-unchanged rule).
type Executor struct {
	Registry  *Registry
	Evaluator *eval.Evaluator
	Events    EventPublisher
	Metrics   *grmetrics.Metrics // optional; nil disables instrumentation
}

func NewExecutor(reg *Registry, evaluator *eval.Evaluator, events EventPublisher) *Executor {
	return &Executor{Registry: reg, Evaluator: evaluator, Events: events}
}

// WithMetrics attaches a Metrics bundle, returning the same Executor for
// chaining at construction time.
func (x *Executor) WithMetrics(m *grmetrics.Metrics) *Executor {
	x.Metrics = m
	return x
}

// Execute looks up (entityType, actionName), binds entity as "this" and
// params under the "params" namespace, and runs the algorithm above.
func (x *Executor) Execute(ctx context.Context, store graph.Store, entityType, actionName string, entity *graph.Entity, params map[string]any) (*ExecutionResult, error) {
	def, ok := x.Registry.Lookup(entityType, actionName)
	if !ok {
		return nil, grerr.NotFoundf("action %s.%s", entityType, actionName)
	}

	evalCtx := eval.NewContext(store)
	evalCtx.Bind("this", entity)
	evalCtx.Params = params

	for _, pre := range def.Preconditions {
		ok, err := x.Evaluator.EvalBool(ctx, evalCtx, pre.Condition)
		if err != nil {
			return nil, err
		}
		if !ok {
			if x.Metrics != nil {
				x.Metrics.PreconditionFailures.WithLabelValues(entityType, actionName, pre.Name).Inc()
				x.Metrics.ActionsExecuted.WithLabelValues(entityType, actionName, "precondition_failed").Inc()
			}
			return &ExecutionResult{
				ExecutionID:        uuid.NewString(),
				Success:            false,
				FailedPrecondition: pre.Name,
				FailureMessage:     pre.OnFailure,
				EntityID:           entity.ID,
			}, nil
		}
	}

	changes := map[string]ChangeRecord{}
	if def.Effect != nil {
		for _, set := range def.Effect.Statements {
			newVal, err := x.Evaluator.Eval(ctx, evalCtx, set.Value)
			if err != nil {
				return nil, err
			}
			prop, target, err := resolveSetTarget(set.Target, entity)
			if err != nil {
				return nil, err
			}
			oldVal := target.Properties[prop]
			if looseEqualAny(oldVal, newVal) {
				continue
			}
			changes[prop] = ChangeRecord{Old: oldVal, New: newVal}
			target.Properties[prop] = newVal
		}
	}

	if len(changes) == 0 {
		if x.Metrics != nil {
			x.Metrics.ActionsExecuted.WithLabelValues(entityType, actionName, "noop").Inc()
		}
		return &ExecutionResult{ExecutionID: uuid.NewString(), Success: true, EntityID: entity.ID, Changes: changes}, nil
	}

	patch := make(map[string]any, len(changes))
	for prop, c := range changes {
		patch[prop] = c.New
	}

	err := store.RunInTransaction(ctx, func(ctx context.Context, tx graph.Store) error {
		return tx.UpdateEntityProperties(ctx, entity.ID, patch)
	})
	if err != nil {
		return nil, err
	}

	for prop, c := range changes {
		if x.Events == nil {
			continue
		}
		if err := x.Events.Publish(ctx, ast.UpdateEvent{
			EntityType: entity.EntityType,
			EntityID:   entity.ID,
			Property:   prop,
			OldValue:   c.Old,
			NewValue:   c.New,
		}); err != nil {
			return nil, err
		}
	}

	if x.Metrics != nil {
		x.Metrics.ActionsExecuted.WithLabelValues(entityType, actionName, "success").Inc()
	}
	return &ExecutionResult{ExecutionID: uuid.NewString(), Success: true, EntityID: entity.ID, Changes: changes}, nil
}

// resolveSetTarget resolves a SET target path ("this.status" or a
// relative "status") against the bound entity. Only "this"-rooted targets
// are supported: an action's EFFECT block may only mutate the entity it
// was invoked on, per spec.md §4.2's action scoping rule.
func resolveSetTarget(target string, entity *graph.Entity) (prop string, e *graph.Entity, err error) {
	segs := splitDotted(target)
	if len(segs) == 1 {
		return segs[0], entity, nil
	}
	if segs[0] != "this" {
		return "", nil, grerr.Invalidf("SET target %q must be relative or rooted at \"this\"", target)
	}
	return segs[len(segs)-1], entity, nil
}

func splitDotted(s string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			segs = append(segs, s[start:i])
			start = i + 1
		}
	}
	segs = append(segs, s[start:])
	return segs
}

func looseEqualAny(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}
