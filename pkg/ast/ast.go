// Package ast defines the typed syntax tree the parser produces: a Document
// per source file, its top-level Definitions, and the Expression/Statement
// trees inside function and method bodies.
package ast

import "github.com/cloverlang/clover/pkg/token"

// Node is implemented by every tree node and carries its source position for
// diagnostics and instruction-level debug info.
type Node interface {
	Pos() token.Position
}

// Expression is a tree node that produces a value.
type Expression interface {
	Node
	expressionNode()
}

// Statement is a tree node executed for effect.
type Statement interface {
	Node
	statementNode()
}

// Definition is a top-level declaration inside a Document.
type Definition interface {
	Node
	definitionNode()
}

// Document is one compiled source file: its logical (normalized) path and
// its ordered top-level definitions.
type Document struct {
	Path        string
	Definitions []Definition
}

// ---- Expressions ----

type Identifier struct {
	Position token.Position
	Name     string
}

func (e *Identifier) Pos() token.Position { return e.Position }
func (*Identifier) expressionNode()       {}

type This struct {
	Position token.Position
}

func (e *This) Pos() token.Position { return e.Position }
func (*This) expressionNode()       {}

type NullLiteral struct {
	Position token.Position
}

func (e *NullLiteral) Pos() token.Position { return e.Position }
func (*NullLiteral) expressionNode()       {}

type IntegerLiteral struct {
	Position token.Position
	Value    int64
}

func (e *IntegerLiteral) Pos() token.Position { return e.Position }
func (*IntegerLiteral) expressionNode()       {}

type FloatLiteral struct {
	Position token.Position
	Value    float64
}

func (e *FloatLiteral) Pos() token.Position { return e.Position }
func (*FloatLiteral) expressionNode()       {}

type StringLiteral struct {
	Position token.Position
	Value    string
}

func (e *StringLiteral) Pos() token.Position { return e.Position }
func (*StringLiteral) expressionNode()       {}

type BooleanLiteral struct {
	Position token.Position
	Value    bool
}

func (e *BooleanLiteral) Pos() token.Position { return e.Position }
func (*BooleanLiteral) expressionNode()       {}

type ArrayLiteral struct {
	Position token.Position
	Elements []Expression
}

func (e *ArrayLiteral) Pos() token.Position { return e.Position }
func (*ArrayLiteral) expressionNode()       {}

// PrefixExpression is a unary operator applied to Right: "-" or "not".
type PrefixExpression struct {
	Position token.Position
	Operator string
	Right    Expression
}

func (e *PrefixExpression) Pos() token.Position { return e.Position }
func (*PrefixExpression) expressionNode()       {}

// InfixExpression is a binary operator applied to Left and Right, including
// the assignment forms ("=", "+=", "-=", "*=", "/=", "%=") and the boolean
// short-circuit forms ("and", "or").
type InfixExpression struct {
	Position token.Position
	Left     Expression
	Operator string
	Right    Expression
}

func (e *InfixExpression) Pos() token.Position { return e.Position }
func (*InfixExpression) expressionNode()       {}

// IfExpression desugars "if/elseif/else/end" into a nested tree: FalsePart
// is either the else-body or a single-statement body wrapping the next If.
type IfExpression struct {
	Position  token.Position
	Condition Expression
	TruePart  []Statement
	FalsePart []Statement
}

func (e *IfExpression) Pos() token.Position { return e.Position }
func (*IfExpression) expressionNode()       {}

type CallExpression struct {
	Position token.Position
	Callee   Expression
	Args     []Expression
}

func (e *CallExpression) Pos() token.Position { return e.Position }
func (*CallExpression) expressionNode()       {}

// InstanceGetExpression is "x.y" — a property/method reference.
type InstanceGetExpression struct {
	Position token.Position
	Object   Expression
	Name     string
}

func (e *InstanceGetExpression) Pos() token.Position { return e.Position }
func (*InstanceGetExpression) expressionNode()       {}

// IndexGetExpression is "x[y]".
type IndexGetExpression struct {
	Position token.Position
	Object   Expression
	Index    Expression
}

func (e *IndexGetExpression) Pos() token.Position { return e.Position }
func (*IndexGetExpression) expressionNode()       {}

// ---- Statements ----

// LocalStatement is "local x [= e], y [= e], ...". At top level only
// literal-constant initializers are legal; inside a function body any
// expression is. The parser enforces that restriction, not this node.
type LocalStatement struct {
	Position token.Position
	Names    []string
	Values   []Expression // nil entry means "no initializer" (defaults to null)
}

func (s *LocalStatement) Pos() token.Position { return s.Position }
func (*LocalStatement) statementNode()        {}

type ReturnStatement struct {
	Position token.Position
	Value    Expression // nil means "return null"
}

func (s *ReturnStatement) Pos() token.Position { return s.Position }
func (*ReturnStatement) statementNode()        {}

// ForStatement is "for Identifier in Enumerable ... end".
type ForStatement struct {
	Position   token.Position
	Identifier string
	Enumerable Expression
	Body       []Statement
}

func (s *ForStatement) Pos() token.Position { return s.Position }
func (*ForStatement) statementNode()        {}

type BreakStatement struct {
	Position token.Position
}

func (s *BreakStatement) Pos() token.Position { return s.Position }
func (*BreakStatement) statementNode()        {}

// RescueStatement marks the split between a function's normal body and its
// single rescue handler. At most one may appear, and only at the function's
// top nesting depth (spec.md §4.5).
type RescueStatement struct {
	Position token.Position
}

func (s *RescueStatement) Pos() token.Position { return s.Position }
func (*RescueStatement) statementNode()        {}

// ExpressionStatement is a bare expression used for its side effect (or, as
// the last statement of a block, its value).
type ExpressionStatement struct {
	Position   token.Position
	Expression Expression
}

func (s *ExpressionStatement) Pos() token.Position { return s.Position }
func (*ExpressionStatement) statementNode()        {}

// ---- Definitions ----

// LocalDefinition is a top-level "local x [= K], ...": the parser restricts
// K to literal constants (spec.md §4.2).
type LocalDefinition struct {
	Position token.Position
	Names    []string
	Values   []Expression
}

func (d *LocalDefinition) Pos() token.Position { return d.Position }
func (*LocalDefinition) definitionNode()       {}

// IncludeDefinition is "include A [as X], B [as Y], ... from "path"". Path
// is the canonical (post-normalization) form once the parser's
// normalization pass has run; RawPath preserves what was written.
type IncludeDefinition struct {
	Position token.Position
	Names    []token.Token
	Aliases  []string // parallel to Names; "" means no alias
	RawPath  string
	Path     string
}

func (d *IncludeDefinition) Pos() token.Position { return d.Position }
func (*IncludeDefinition) definitionNode()       {}

// ModelDefinition is "[public] model Name prop1 prop2 ... end".
type ModelDefinition struct {
	Position   token.Position
	Name       string
	Public     bool
	Properties []string
}

func (d *ModelDefinition) Pos() token.Position { return d.Position }
func (*ModelDefinition) definitionNode()       {}

// FunctionDefinition is "[public] function Name(params) ... end". IsInstance
// is set when the first parameter is the keyword "this".
type FunctionDefinition struct {
	Position   token.Position
	Name       string
	Public     bool
	IsInstance bool
	Parameters []string
	Body       []Statement
}

func (d *FunctionDefinition) Pos() token.Position { return d.Position }
func (*FunctionDefinition) definitionNode()       {}

// ImplementDefinition is "implement Model ... end" attaching functions to an
// existing model.
type ImplementDefinition struct {
	Position  token.Position
	ModelName string
	Functions []*FunctionDefinition
}

func (d *ImplementDefinition) Pos() token.Position { return d.Position }
func (*ImplementDefinition) definitionNode()       {}

// ApplyDefinition is "apply Source to Target", copying Source's method
// bindings onto Target.
type ApplyDefinition struct {
	Position token.Position
	Source   string
	Target   string
}

func (d *ApplyDefinition) Pos() token.Position { return d.Position }
func (*ApplyDefinition) definitionNode()       {}
