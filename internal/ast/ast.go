// Package ast defines the tagged-variant data model produced by the DSL
// parser: action and rule definitions, their statement bodies, and the
// expression tree preconditions and SET values are built from.
package ast

// TriggerType enumerates the event shapes a RuleDef can bind to. Only
// UPDATE carries full execution semantics; the others are accepted by the
// grammar and indexed by the rule registry but are not yet fired by the
// engine (see rule.Engine.OnEvent).
type TriggerType string

const (
	TriggerUpdate TriggerType = "UPDATE"
	TriggerCreate TriggerType = "CREATE"
	TriggerDelete TriggerType = "DELETE"
	TriggerLink   TriggerType = "LINK"
	TriggerScan   TriggerType = "SCAN"
)

// Trigger is the event shape a rule binds to.
type Trigger struct {
	Type       TriggerType
	EntityType string
	Property   string // empty means "any property"
}

// Key returns the trigger-index key used by the rule registry:
// "type:entity_type" or "type:entity_type:property".
func (t Trigger) Key() string {
	if t.Property == "" {
		return string(t.Type) + ":" + t.EntityType
	}
	return string(t.Type) + ":" + t.EntityType + ":" + t.Property
}

// Parameter describes one formal parameter of an ACTION.
type Parameter struct {
	Name      string
	ParamType string
	Optional  bool
}

// Precondition is a boolean expression gating an action's effect.
type Precondition struct {
	Name       string // optional
	Condition  Expr
	OnFailure  string
}

// SetStatement assigns the result of an expression to a property path.
type SetStatement struct {
	Target string // e.g. "this.status" or "po.status"
	Value  Expr
}

// TriggerStatement invokes a registered action on a bound entity.
//
// Canonical shape per the resolved Open Question in DESIGN.md: the
// field naming the action is ActionName, and Target names the bound
// variable (not the action itself).
type TriggerStatement struct {
	EntityType string
	ActionName string
	Target     string // bound variable name
	Params     map[string]Expr
}

// ForClause iterates entities of EntityType matching Condition, binding
// each to Variable for the duration of Statements.
type ForClause struct {
	Variable   string
	EntityType string
	Condition  Expr // optional, nil means "no filter"
	Statements []Statement
}

// Statement is implemented by SetStatement, TriggerStatement, and
// *ForClause (nested iteration).
type Statement interface{ statementNode() }

func (SetStatement) statementNode()     {}
func (TriggerStatement) statementNode() {}
func (*ForClause) statementNode()       {}

// EffectBlock is the body of an ACTION's EFFECT clause.
type EffectBlock struct {
	Statements []SetStatement
}

// ActionDef is a parameterized, named operation on an entity type.
type ActionDef struct {
	EntityType    string
	ActionName    string
	Parameters    []Parameter
	Preconditions []Precondition
	Effect        *EffectBlock // nil if the action has no EFFECT block
	Description   string
}

// Key identifies an ActionDef within an ActionRegistry.
func (a ActionDef) Key() (entityType, actionName string) {
	return a.EntityType, a.ActionName
}

// RuleDef fires its Body whenever an event matches Trigger.
type RuleDef struct {
	Name     string
	Priority int
	Trigger  Trigger
	Body     ForClause
}

// Def is implemented by ActionDef and RuleDef, the two top-level
// declarations a DSL file may contain.
type Def interface{ defNode() }

func (ActionDef) defNode() {}
func (RuleDef) defNode()   {}
