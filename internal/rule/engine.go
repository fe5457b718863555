package rule

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/arxos/graphrules/internal/action"
	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/eval"
	"github.com/arxos/graphrules/internal/graph"
	"github.com/arxos/graphrules/internal/grerr"
	"github.com/arxos/graphrules/internal/grlog"
	"github.com/arxos/graphrules/internal/grmetrics"
	"github.com/arxos/graphrules/internal/translate"
)

// Engine reacts to UpdateEvents: match against Registry, then run each
// matched rule's FOR body, recursing into nested statements and further
// cascaded UpdateEvents up to MaxCascadeDepth, grounded on
// rule_engine.py's on_event/_execute_rule_async/_execute_for_clause_async
// chain.
//
// Only TriggerUpdate rules fire here; DELETE/LINK/SCAN triggers are
// accepted by the parser and indexed by Registry but the engine does not
// yet dispatch events for them (spec.md §9's declared reserved-but-
// unimplemented resolution).
type Engine struct {
	Registry        *Registry
	Executor        *action.Executor
	Store           graph.Store
	Translator      *translate.Translator
	Evaluator       *eval.Evaluator
	Log             *grlog.Logger
	MaxCascadeDepth int
	Metrics         *grmetrics.Metrics // optional; nil disables instrumentation
}

// WithMetrics attaches a Metrics bundle, returning the same Engine for
// chaining at construction time.
func (e *Engine) WithMetrics(m *grmetrics.Metrics) *Engine {
	e.Metrics = m
	return e
}

// NewEngine wires a RuleEngine around an already-constructed action
// Executor (itself built around the same Evaluator and an event.Emitter
// whose UpdateEvent listener is this Engine's OnEvent, closing the
// reactive loop spec.md §4.4 describes).
func NewEngine(reg *Registry, executor *action.Executor, store graph.Store, t *translate.Translator, evaluator *eval.Evaluator, log *grlog.Logger, maxCascadeDepth int) *Engine {
	return &Engine{
		Registry:        reg,
		Executor:        executor,
		Store:           store,
		Translator:      t,
		Evaluator:       evaluator,
		Log:             log,
		MaxCascadeDepth: maxCascadeDepth,
	}
}

// cascadeDepthKey is an unexported context key so nested rule executions
// triggered from inside a TriggerStatement share one depth counter.
type cascadeDepthKey struct{}

func depthFrom(ctx context.Context) int {
	if d, ok := ctx.Value(cascadeDepthKey{}).(int); ok {
		return d
	}
	return 0
}

// cascadeTraceKey carries one correlation id through an entire cascade: it
// is minted once on the top-level OnEvent call and threaded unchanged
// through every nested executeRule/execStatement/execTrigger call, so log
// lines from one triggering event can be grepped together. It is logged
// only, never persisted alongside the entity or event it describes.
type cascadeTraceKey struct{}

func traceFrom(ctx context.Context) string {
	if id, ok := ctx.Value(cascadeTraceKey{}).(string); ok {
		return id
	}
	return ""
}

// OnEvent is the Listener the event.Emitter invokes for every published
// UpdateEvent. A cascade-depth overflow is logged and swallowed: the
// action that produced ev has already committed, so the overflow must not
// fail it retroactively (spec.md §4.4's cascade-limit invariant).
func (e *Engine) OnEvent(ctx context.Context, ev ast.Event) error {
	update, ok := ev.(ast.UpdateEvent)
	if !ok {
		return nil
	}
	depth := depthFrom(ctx)
	traceID := traceFrom(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
	}
	if e.Metrics != nil {
		e.Metrics.CascadeDepthReached.Observe(float64(depth))
	}
	if depth >= e.MaxCascadeDepth {
		e.Log.Warn("cascade depth limit reached, dropping further cascades",
			"trace_id", traceID, "entity_type", update.EntityType, "entity_id", update.EntityID, "property", update.Property, "depth", depth)
		return nil
	}

	rules := e.Registry.Match(update.ToTrigger())
	childCtx := context.WithValue(ctx, cascadeDepthKey{}, depth+1)
	childCtx = context.WithValue(childCtx, cascadeTraceKey{}, traceID)

	for _, r := range rules {
		if e.Metrics != nil {
			e.Metrics.RuleMatchesFired.WithLabelValues(r.Name).Inc()
		}
		if err := e.executeRule(childCtx, r, update); err != nil {
			if errors.Is(err, grerr.ErrCascadeOverflow) {
				e.Log.Warn("rule cascade overflowed", "trace_id", traceID, "rule", r.Name)
				continue
			}
			return err
		}
	}
	return nil
}

func (e *Engine) executeRule(ctx context.Context, r ast.RuleDef, update ast.UpdateEvent) error {
	e.Log.Debug("matched rule", "trace_id", traceFrom(ctx), "rule", r.Name, "entity_type", update.EntityType, "property", update.Property)

	evalCtx := eval.NewContext(e.Store)
	evalCtx.OldValues = map[string]any{update.Property: update.OldValue}
	evalCtx.NewValues = map[string]any{update.Property: update.NewValue}

	return e.runFor(ctx, evalCtx, &r.Body)
}

// runFor executes one ForClause: compile and run it through the
// translator, binding each matching row and executing the nested
// statements in order, exactly as rule_engine.py's
// _execute_for_clause_async does for the top-level clause and any nested
// FOR inside it.
func (e *Engine) runFor(ctx context.Context, parent *eval.EvaluationContext, fc *ast.ForClause) error {
	return e.Translator.RunFor(ctx, e.Store, parent, fc, func(child *eval.EvaluationContext) error {
		for _, stmt := range fc.Statements {
			if err := e.execStatement(ctx, child, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Engine) execStatement(ctx context.Context, evalCtx *eval.EvaluationContext, stmt ast.Statement) error {
	switch s := stmt.(type) {
	case ast.SetStatement:
		return e.execSet(ctx, evalCtx, s)
	case ast.TriggerStatement:
		return e.execTrigger(ctx, evalCtx, s)
	case *ast.ForClause:
		return e.runFor(ctx, evalCtx, s)
	default:
		return grerr.Invalidf("unsupported statement node %T", stmt)
	}
}

func (e *Engine) execSet(ctx context.Context, evalCtx *eval.EvaluationContext, s ast.SetStatement) error {
	segs, entityVar, prop := splitTarget(s.Target)
	if segs < 2 {
		return grerr.Invalidf("SET target %q inside a rule must be of the form <var>.<property>", s.Target)
	}
	entity, ok := evalCtx.Vars[entityVar]
	if !ok || entity == nil {
		return grerr.Invalidf("SET target references unbound variable %q", entityVar)
	}

	newVal, err := e.Evaluator.Eval(ctx, evalCtx, s.Value)
	if err != nil {
		return err
	}
	oldVal := entity.Properties[prop]
	if looseEqual(oldVal, newVal) {
		return nil
	}

	if err := e.Store.RunInTransaction(ctx, func(ctx context.Context, tx graph.Store) error {
		return tx.UpdateEntityProperties(ctx, entity.ID, map[string]any{prop: newVal})
	}); err != nil {
		return err
	}
	entity.Properties[prop] = newVal
	return nil
}

func splitTarget(target string) (segCount int, entityVar, prop string) {
	var segs []string
	start := 0
	for i := 0; i < len(target); i++ {
		if target[i] == '.' {
			segs = append(segs, target[start:i])
			start = i + 1
		}
	}
	segs = append(segs, target[start:])
	if len(segs) < 2 {
		return len(segs), "", ""
	}
	return len(segs), segs[0], segs[len(segs)-1]
}

func looseEqual(a, b any) bool {
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

// execTrigger resolves the TriggerStatement's Target variable to a bound
// entity, evaluates its Params expressions, and runs the corresponding
// registered action. Per the resolved Open Question (SPEC_FULL.md §5),
// ActionName names the action and Target names the bound variable the
// action runs against — never conflated, unlike the original's
// stmt.action bug.
func (e *Engine) execTrigger(ctx context.Context, evalCtx *eval.EvaluationContext, s ast.TriggerStatement) error {
	entity, ok := evalCtx.Vars[s.Target]
	if !ok || entity == nil {
		return grerr.Invalidf("trigger statement references unbound variable %q", s.Target)
	}

	params := make(map[string]any, len(s.Params))
	for name, expr := range s.Params {
		v, err := e.Evaluator.Eval(ctx, evalCtx, expr)
		if err != nil {
			return err
		}
		params[name] = v
	}

	result, err := e.Executor.Execute(ctx, e.Store, entity.EntityType, s.ActionName, entity, params)
	if err != nil {
		return err
	}
	if !result.Success {
		e.Log.Debug("triggered action failed precondition",
			"trace_id", traceFrom(ctx), "execution_id", result.ExecutionID, "action", s.ActionName, "entity_id", entity.ID, "precondition", result.FailedPrecondition)
	}
	return nil
}
