// Package parser implements Clover's Pratt-style expression parser plus the
// statement and top-level definition parsers built on top of it.
//
// The parser keeps a three-token window (last, current, peek) so that
// productions that need to know where the previous token ended — the
// line-first heuristic for '-', '(' and '[' (spec.md §4.2) — can consult it
// without re-lexing. Errors are accumulated in a diag.List bound to the
// parsed file's name rather than raised immediately, and recovery
// resynchronizes on a small token set so one pass can surface many errors
// instead of stopping at the first (spec.md §4.2, §7).
package parser

import (
	"strconv"

	"github.com/cloverlang/clover/pkg/ast"
	"github.com/cloverlang/clover/pkg/diag"
	"github.com/cloverlang/clover/pkg/lexer"
	"github.com/cloverlang/clover/pkg/token"
)

// Precedence is a level in the 10-level ladder described in spec.md §4.2.
type Precedence int

const (
	Lowest Precedence = iota
	PAssign
	PBoolean
	PEquals
	PLessGreater
	PSum
	PProduct
	PPrefix
	PCall
	PInstanceGet
)

var precedences = map[token.Kind]Precedence{
	token.Assign: PAssign, token.PlusEq: PAssign, token.MinusEq: PAssign,
	token.StarEq: PAssign, token.SlashEq: PAssign, token.PercentEq: PAssign,
	token.And: PBoolean, token.Or: PBoolean,
	token.Eq: PEquals, token.NotEq: PEquals,
	token.Lt: PLessGreater, token.Gt: PLessGreater, token.LtEq: PLessGreater, token.GtEq: PLessGreater,
	token.Plus: PSum, token.Minus: PSum,
	token.Star: PProduct, token.Slash: PProduct, token.Percent: PProduct,
	token.Ampersand: PProduct, token.Pipe: PProduct,
	token.LParen:   PCall,
	token.Dot:      PInstanceGet,
	token.LBracket: PInstanceGet,
}

// assignOperators is the set of tokens that produce an assignment-shaped
// InfixExpression, whose Left must be an Identifier, InstanceGet, or
// IndexGet (spec.md §4.2).
var assignOperators = map[token.Kind]bool{
	token.Assign: true, token.PlusEq: true, token.MinusEq: true,
	token.StarEq: true, token.SlashEq: true, token.PercentEq: true,
}

// statementSync is the token set parseStatement resynchronizes on after a
// recoverable error: any of these, Eof, or Invalid ends the skip.
var statementSync = map[token.Kind]bool{
	token.End: true, token.Local: true, token.Return: true, token.For: true,
	token.Break: true, token.Rescue: true, token.If: true, token.Else: true,
	token.Elseif: true, token.Dot: true,
}

// Parser turns a token stream into a Document. Single-use: create a fresh
// Parser per file.
type Parser struct {
	l        *lexer.Lexer
	filename string
	errors   *diag.List

	last    token.Token
	current token.Token
	peek    token.Token

	sawNonInclude bool
}

// New creates a Parser over source, attributing diagnostics to filename.
func New(filename, source string) *Parser {
	p := &Parser{
		l:        lexer.New(source),
		filename: filename,
		errors:   diag.NewList(filename),
	}
	p.advance()
	p.advance()
	return p
}

// Errors returns the diagnostics accumulated so far.
func (p *Parser) Errors() *diag.List { return p.errors }

func (p *Parser) advance() {
	p.last = p.current
	p.current = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) curIs(k token.Kind) bool  { return p.current.Kind == k }
func (p *Parser) peekIs(k token.Kind) bool { return p.peek.Kind == k }

func (p *Parser) addError(format string, args ...interface{}) {
	p.errors.Add(p.current.Position, p.current.Text, format, args...)
}

// expect consumes current if it matches k; otherwise records an error and
// resynchronizes by skipping forward until it sees k, Eof, or Invalid.
func (p *Parser) expect(k token.Kind) bool {
	if p.curIs(k) {
		p.advance()
		return true
	}
	p.addError("expected %s, found %s", k, p.current.Kind)
	for !p.curIs(k) && !p.curIs(token.Eof) && !p.curIs(token.Invalid) {
		p.advance()
	}
	if p.curIs(k) {
		p.advance()
		return true
	}
	return false
}

// synchronize skips tokens until one in the statement-level synchronizing
// set, Eof, or Invalid is reached, without consuming it.
func (p *Parser) synchronize() {
	for !p.curIs(token.Eof) && !p.curIs(token.Invalid) && !statementSync[p.current.Kind] {
		p.advance()
	}
}

// Parse parses a whole file into a Document, then normalizes its include
// paths against dir (the including file's directory) and cwd (the process
// working directory) per spec.md §3.
func Parse(filename, source, dir, cwd string) (*ast.Document, *diag.List) {
	p := New(filename, source)
	doc := p.parseDocument()
	normalizeIncludes(doc, dir, cwd)
	return doc, p.errors
}

func (p *Parser) parseDocument() *ast.Document {
	doc := &ast.Document{Path: p.filename}
	for !p.curIs(token.Eof) {
		def := p.parseDefinition()
		if def == nil {
			if !p.curIs(token.Eof) {
				p.advance()
			}
			continue
		}
		if _, ok := def.(*ast.IncludeDefinition); ok {
			if p.sawNonInclude {
				p.errors.Add(def.Pos(), "", "include declarations must precede all other top-level definitions")
			}
		} else {
			p.sawNonInclude = true
		}
		doc.Definitions = append(doc.Definitions, def)
	}
	return doc
}

func (p *Parser) parseDefinition() ast.Definition {
	switch p.current.Kind {
	case token.Include:
		return p.parseIncludeDefinition()
	case token.Local:
		return p.parseLocalDefinition()
	case token.Public:
		return p.parsePublicDefinition()
	case token.Model:
		return p.parseModelDefinition(false)
	case token.Function:
		return p.parseFunctionDefinition(false)
	case token.Implement:
		return p.parseImplementDefinition()
	case token.Apply:
		return p.parseApplyDefinition()
	default:
		p.addError("expected a definition, found %s", p.current.Kind)
		p.synchronize()
		return nil
	}
}

func (p *Parser) parsePublicDefinition() ast.Definition {
	p.advance() // consume 'public'
	switch p.current.Kind {
	case token.Model:
		return p.parseModelDefinition(true)
	case token.Function:
		return p.parseFunctionDefinition(true)
	default:
		p.addError("expected 'model' or 'function' after 'public', found %s", p.current.Kind)
		p.synchronize()
		return nil
	}
}

func (p *Parser) parseIncludeDefinition() ast.Definition {
	pos := p.current.Position
	p.advance() // 'include'

	def := &ast.IncludeDefinition{Position: pos}
	for {
		if !p.curIs(token.Identifier) {
			p.addError("expected identifier in include list, found %s", p.current.Kind)
			break
		}
		nameTok := p.current
		p.advance()
		alias := ""
		if p.curIs(token.As) {
			p.advance()
			if p.curIs(token.Identifier) {
				alias = p.current.Text
				p.advance()
			} else {
				p.addError("expected identifier after 'as', found %s", p.current.Kind)
			}
		}
		def.Names = append(def.Names, nameTok)
		def.Aliases = append(def.Aliases, alias)

		if p.curIs(token.Comma) {
			p.advance()
			continue
		}
		break
	}

	if !p.expect(token.From) {
		return def
	}
	if p.curIs(token.String) {
		def.RawPath = p.current.Text
		p.advance()
	} else {
		p.addError("expected a string path after 'from', found %s", p.current.Kind)
	}
	return def
}

// parseLiteralConstant parses the restricted RHS a top-level "local"
// accepts: null, true, false, an integer, a float, or a string (spec.md
// §4.2).
func (p *Parser) parseLiteralConstant() ast.Expression {
	switch p.current.Kind {
	case token.Null:
		e := &ast.NullLiteral{Position: p.current.Position}
		p.advance()
		return e
	case token.True, token.False:
		e := &ast.BooleanLiteral{Position: p.current.Position, Value: p.curIs(token.True)}
		p.advance()
		return e
	case token.Integer:
		return p.parseIntegerLiteral()
	case token.Float:
		return p.parseFloatLiteral()
	case token.String:
		e := &ast.StringLiteral{Position: p.current.Position, Value: p.current.Text}
		p.advance()
		return e
	case token.Minus:
		pos := p.current.Position
		p.advance()
		lit := p.parseLiteralConstant()
		switch v := lit.(type) {
		case *ast.IntegerLiteral:
			v.Value = -v.Value
			v.Position = pos
			return v
		case *ast.FloatLiteral:
			v.Value = -v.Value
			v.Position = pos
			return v
		}
		p.errors.Add(pos, "-", "expected a numeric literal after '-'")
		return lit
	default:
		p.addError("expected a literal constant, found %s", p.current.Kind)
		return &ast.NullLiteral{Position: p.current.Position}
	}
}

func (p *Parser) parseLocalDefinition() ast.Definition {
	pos := p.current.Position
	p.advance() // 'local'
	def := &ast.LocalDefinition{Position: pos}
	for {
		if !p.curIs(token.Identifier) {
			p.addError("expected identifier in local declaration, found %s", p.current.Kind)
			break
		}
		def.Names = append(def.Names, p.current.Text)
		p.advance()
		if p.curIs(token.Assign) {
			p.advance()
			def.Values = append(def.Values, p.parseLiteralConstant())
		} else {
			def.Values = append(def.Values, nil)
		}
		if p.curIs(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	return def
}

func (p *Parser) parseModelDefinition(public bool) ast.Definition {
	pos := p.current.Position
	p.advance() // 'model'
	def := &ast.ModelDefinition{Position: pos, Public: public}
	if p.curIs(token.Identifier) {
		def.Name = p.current.Text
		p.advance()
	} else {
		p.addError("expected model name, found %s", p.current.Kind)
	}
	for p.curIs(token.Identifier) {
		def.Properties = append(def.Properties, p.current.Text)
		p.advance()
	}
	p.expect(token.End)
	return def
}

func (p *Parser) parseFunctionDefinition(public bool) *ast.FunctionDefinition {
	pos := p.current.Position
	p.advance() // 'function'
	def := &ast.FunctionDefinition{Position: pos, Public: public}
	if p.curIs(token.Identifier) {
		def.Name = p.current.Text
		p.advance()
	} else {
		p.addError("expected function name, found %s", p.current.Kind)
	}

	p.expect(token.LParen)
	first := true
	for !p.curIs(token.RParen) && !p.curIs(token.Eof) {
		if !first {
			if !p.expect(token.Comma) {
				break
			}
			if p.curIs(token.RParen) {
				p.addError("trailing comma in parameter list")
				break
			}
		}
		first = false
		if p.curIs(token.This) {
			if len(def.Parameters) != 0 {
				p.addError("'this' must be the first parameter")
			}
			def.IsInstance = true
			def.Parameters = append(def.Parameters, "this")
			p.advance()
		} else if p.curIs(token.Identifier) {
			def.Parameters = append(def.Parameters, p.current.Text)
			p.advance()
		} else {
			p.addError("expected parameter name, found %s", p.current.Kind)
			break
		}
	}
	p.expect(token.RParen)

	def.Body = p.parseStatements(token.End)
	p.expect(token.End)
	return def
}

func (p *Parser) parseImplementDefinition() ast.Definition {
	pos := p.current.Position
	p.advance() // 'implement'
	def := &ast.ImplementDefinition{Position: pos}
	if p.curIs(token.Identifier) {
		def.ModelName = p.current.Text
		p.advance()
	} else {
		p.addError("expected model name after 'implement', found %s", p.current.Kind)
	}
	for p.curIs(token.Function) {
		def.Functions = append(def.Functions, p.parseFunctionDefinition(false))
	}
	p.expect(token.End)
	return def
}

func (p *Parser) parseApplyDefinition() ast.Definition {
	pos := p.current.Position
	p.advance() // 'apply'
	def := &ast.ApplyDefinition{Position: pos}
	if p.curIs(token.Identifier) {
		def.Source = p.current.Text
		p.advance()
	} else {
		p.addError("expected model name after 'apply', found %s", p.current.Kind)
	}
	p.expect(token.To)
	if p.curIs(token.Identifier) {
		def.Target = p.current.Text
		p.advance()
	} else {
		p.addError("expected model name after 'to', found %s", p.current.Kind)
	}
	return def
}

// ---- Statements ----

// parseStatements parses statements until it sees stop, Eof, or (when stop
// is End) one of else/elseif — the boundaries shared by if-bodies and
// function bodies.
func (p *Parser) parseStatements(stop token.Kind) []ast.Statement {
	var stmts []ast.Statement
	for !p.curIs(stop) && !p.curIs(token.Eof) &&
		!(stop == token.End && (p.curIs(token.Else) || p.curIs(token.Elseif))) {
		stmt := p.parseStatement()
		if stmt == nil {
			p.synchronize()
			if p.curIs(token.Dot) {
				p.advance()
			}
			continue
		}
		stmts = append(stmts, stmt)
		if p.curIs(token.Dot) {
			p.advance()
		}
	}
	return stmts
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.current.Kind {
	case token.Local:
		return p.parseLocalStatement()
	case token.Return:
		return p.parseReturnStatement()
	case token.For:
		return p.parseForStatement()
	case token.Break:
		s := &ast.BreakStatement{Position: p.current.Position}
		p.advance()
		return s
	case token.Rescue:
		s := &ast.RescueStatement{Position: p.current.Position}
		p.advance()
		return s
	default:
		pos := p.current.Position
		expr := p.parseExpression(Lowest)
		if expr == nil {
			return nil
		}
		return &ast.ExpressionStatement{Position: pos, Expression: expr}
	}
}

func (p *Parser) parseLocalStatement() ast.Statement {
	pos := p.current.Position
	p.advance() // 'local'
	stmt := &ast.LocalStatement{Position: pos}
	for {
		if !p.curIs(token.Identifier) {
			p.addError("expected identifier in local statement, found %s", p.current.Kind)
			break
		}
		stmt.Names = append(stmt.Names, p.current.Text)
		p.advance()
		if p.curIs(token.Assign) {
			p.advance()
			stmt.Values = append(stmt.Values, p.parseExpression(Lowest))
		} else {
			stmt.Values = append(stmt.Values, nil)
		}
		if p.curIs(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	return stmt
}

func (p *Parser) parseReturnStatement() ast.Statement {
	pos := p.current.Position
	p.advance() // 'return'
	stmt := &ast.ReturnStatement{Position: pos}
	if !p.curIs(token.Dot) && !p.curIs(token.End) && !p.curIs(token.Eof) &&
		!p.curIs(token.Else) && !p.curIs(token.Elseif) && !p.curIs(token.Rescue) {
		stmt.Value = p.parseExpression(Lowest)
	}
	return stmt
}

func (p *Parser) parseForStatement() ast.Statement {
	pos := p.current.Position
	p.advance() // 'for'
	stmt := &ast.ForStatement{Position: pos}
	if p.curIs(token.Identifier) {
		stmt.Identifier = p.current.Text
		p.advance()
	} else {
		p.addError("expected identifier after 'for', found %s", p.current.Kind)
	}
	p.expect(token.In)
	stmt.Enumerable = p.parseExpression(Lowest)
	stmt.Body = p.parseStatements(token.End)
	p.expect(token.End)
	return stmt
}

// ---- Expressions (Pratt) ----

// lineFirst reports whether current starts a new source line relative to
// the last consumed token — the heuristic spec.md §4.2 uses to decide that a
// leading '-', '(' or '[' begins a new expression rather than continuing the
// previous one as an infix/call/index operator.
func (p *Parser) lineFirst() bool {
	return p.last.Position.Line != 0 && p.current.Position.Line > p.last.Position.Line
}

func (p *Parser) parseExpression(prec Precedence) ast.Expression {
	left := p.parsePrefix()
	if left == nil {
		return nil
	}

	for !p.curIs(token.Eof) && prec < p.precedenceOfCurrentInfix() {
		left = p.parseInfix(left)
		if left == nil {
			return nil
		}
	}
	return left
}

// precedenceOfCurrentInfix looks at the *current* token (not peek) because
// after parsePrefix (or a preceding parseInfix) returns, current is already
// positioned on the would-be operator.
func (p *Parser) precedenceOfCurrentInfix() Precedence {
	if p.lineFirst() && (p.curIs(token.Minus) || p.curIs(token.LParen) || p.curIs(token.LBracket)) {
		return Lowest
	}
	if prec, ok := precedences[p.current.Kind]; ok {
		return prec
	}
	return Lowest
}

func (p *Parser) parsePrefix() ast.Expression {
	switch p.current.Kind {
	case token.Identifier:
		e := &ast.Identifier{Position: p.current.Position, Name: p.current.Text}
		p.advance()
		return e
	case token.This:
		e := &ast.This{Position: p.current.Position}
		p.advance()
		return e
	case token.Null:
		e := &ast.NullLiteral{Position: p.current.Position}
		p.advance()
		return e
	case token.True, token.False:
		e := &ast.BooleanLiteral{Position: p.current.Position, Value: p.curIs(token.True)}
		p.advance()
		return e
	case token.Integer:
		return p.parseIntegerLiteral()
	case token.Float:
		return p.parseFloatLiteral()
	case token.String:
		e := &ast.StringLiteral{Position: p.current.Position, Value: p.current.Text}
		p.advance()
		return e
	case token.Minus:
		pos := p.current.Position
		p.advance()
		right := p.parseExpression(PPrefix)
		return &ast.PrefixExpression{Position: pos, Operator: "-", Right: right}
	case token.Not:
		pos := p.current.Position
		p.advance()
		right := p.parseExpression(PPrefix)
		return &ast.PrefixExpression{Position: pos, Operator: "not", Right: right}
	case token.LParen:
		p.advance()
		e := p.parseExpression(Lowest)
		p.expect(token.RParen)
		return e
	case token.LBracket:
		return p.parseArrayLiteral()
	case token.If:
		return p.parseIfExpression()
	default:
		p.addError("unexpected token %s in expression", p.current.Kind)
		return nil
	}
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	pos := p.current.Position
	v, err := strconv.ParseInt(p.current.Text, 10, 64)
	if err != nil {
		p.errors.Add(pos, p.current.Text, "invalid integer literal: %s", err)
	}
	p.advance()
	return &ast.IntegerLiteral{Position: pos, Value: v}
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	pos := p.current.Position
	v, err := strconv.ParseFloat(p.current.Text, 64)
	if err != nil {
		p.errors.Add(pos, p.current.Text, "invalid float literal: %s", err)
	}
	p.advance()
	return &ast.FloatLiteral{Position: pos, Value: v}
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	pos := p.current.Position
	p.advance() // '['
	arr := &ast.ArrayLiteral{Position: pos}
	for !p.curIs(token.RBracket) && !p.curIs(token.Eof) {
		arr.Elements = append(arr.Elements, p.parseExpression(Lowest))
		if p.curIs(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(token.RBracket)
	return arr
}

func (p *Parser) parseIfExpression() ast.Expression {
	pos := p.current.Position
	p.advance() // 'if'
	expr := &ast.IfExpression{Position: pos}
	expr.Condition = p.parseExpression(Lowest)
	expr.TruePart = p.parseStatements(token.End)

	switch p.current.Kind {
	case token.Elseif:
		elseifPos := p.current.Position
		nested := p.parseIfExpression()
		expr.FalsePart = []ast.Statement{&ast.ExpressionStatement{Position: elseifPos, Expression: nested}}
		return expr
	case token.Else:
		p.advance()
		expr.FalsePart = p.parseStatements(token.End)
		p.expect(token.End)
	default:
		p.expect(token.End)
	}
	return expr
}

// operatorText renders an operator token back to its source spelling for
// the AST's string-tagged InfixExpression.Operator field.
func operatorText(k token.Kind) string {
	switch k {
	case token.Assign:
		return "="
	case token.PlusEq:
		return "+="
	case token.MinusEq:
		return "-="
	case token.StarEq:
		return "*="
	case token.SlashEq:
		return "/="
	case token.PercentEq:
		return "%="
	case token.And:
		return "and"
	case token.Or:
		return "or"
	case token.Eq:
		return "=="
	case token.NotEq:
		return "!="
	case token.Lt:
		return "<"
	case token.Gt:
		return ">"
	case token.LtEq:
		return "<="
	case token.GtEq:
		return ">="
	case token.Plus:
		return "+"
	case token.Minus:
		return "-"
	case token.Star:
		return "*"
	case token.Slash:
		return "/"
	case token.Percent:
		return "%"
	case token.Ampersand:
		return "&"
	case token.Pipe:
		return "|"
	default:
		return k.String()
	}
}

func isAssignableTarget(e ast.Expression) bool {
	switch e.(type) {
	case *ast.Identifier, *ast.InstanceGetExpression, *ast.IndexGetExpression:
		return true
	default:
		return false
	}
}

func (p *Parser) parseInfix(left ast.Expression) ast.Expression {
	switch p.current.Kind {
	case token.LParen:
		return p.parseCallExpression(left)
	case token.LBracket:
		return p.parseIndexGetExpression(left)
	case token.Dot:
		return p.parseInstanceGetExpression(left)
	default:
		return p.parseBinaryOrAssignExpression(left)
	}
}

func (p *Parser) parseBinaryOrAssignExpression(left ast.Expression) ast.Expression {
	pos := p.current.Position
	kind := p.current.Kind
	isAssign := assignOperators[kind]

	if isAssign && !isAssignableTarget(left) {
		p.errors.Add(pos, operatorText(kind), "can not assign")
	}

	prec := precedences[kind]
	if isAssign {
		// Assignment is right-associative: "x = y = e" is "x = (y = e)".
		prec--
	}
	p.advance()
	right := p.parseExpression(prec)
	return &ast.InfixExpression{Position: pos, Left: left, Operator: operatorText(kind), Right: right}
}

func (p *Parser) parseCallExpression(callee ast.Expression) ast.Expression {
	pos := p.current.Position
	p.advance() // '('
	call := &ast.CallExpression{Position: pos, Callee: callee}
	for !p.curIs(token.RParen) && !p.curIs(token.Eof) {
		call.Args = append(call.Args, p.parseExpression(Lowest))
		if p.curIs(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(token.RParen)
	return call
}

func (p *Parser) parseIndexGetExpression(object ast.Expression) ast.Expression {
	pos := p.current.Position
	p.advance() // '['
	index := p.parseExpression(Lowest)
	p.expect(token.RBracket)
	return &ast.IndexGetExpression{Position: pos, Object: object, Index: index}
}

func (p *Parser) parseInstanceGetExpression(object ast.Expression) ast.Expression {
	pos := p.current.Position
	p.advance() // '.'
	name := ""
	if p.curIs(token.Identifier) {
		name = p.current.Text
		p.advance()
	} else {
		p.addError("expected property or method name after '.', found %s", p.current.Kind)
	}
	return &ast.InstanceGetExpression{Position: pos, Object: object, Name: name}
}
