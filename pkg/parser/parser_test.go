package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloverlang/clover/pkg/ast"
)

func parseExpr(t *testing.T, src string) ast.Expression {
	t.Helper()
	p := New("test.cl", src)
	expr := p.parseExpression(Lowest)
	require.False(t, p.Errors().HasErrors(), "unexpected errors: %s", p.Errors().Error())
	return expr
}

func TestParseExpression_ArithmeticPrecedence(t *testing.T) {
	// 1 + 2 * 3 should bind as 1 + (2 * 3)
	expr := parseExpr(t, "1 + 2 * 3")
	infix, ok := expr.(*ast.InfixExpression)
	require.True(t, ok)
	require.Equal(t, "+", infix.Operator)

	right, ok := infix.Right.(*ast.InfixExpression)
	require.True(t, ok)
	require.Equal(t, "*", right.Operator)
}

func TestParseExpression_ComparisonLowerThanSum(t *testing.T) {
	expr := parseExpr(t, "1 + 2 < 3 * 4")
	infix, ok := expr.(*ast.InfixExpression)
	require.True(t, ok)
	require.Equal(t, "<", infix.Operator)
}

func TestParseExpression_AssignmentIsRightAssociativeAndLowest(t *testing.T) {
	expr := parseExpr(t, "x = y = 1 + 2")
	outer, ok := expr.(*ast.InfixExpression)
	require.True(t, ok)
	require.Equal(t, "=", outer.Operator)
	_, ok = outer.Left.(*ast.Identifier)
	require.True(t, ok)

	inner, ok := outer.Right.(*ast.InfixExpression)
	require.True(t, ok)
	require.Equal(t, "=", inner.Operator)
}

func TestParseExpression_CallAndIndexAndDotChain(t *testing.T) {
	expr := parseExpr(t, "a.b(1, 2)[0]")
	index, ok := expr.(*ast.IndexGetExpression)
	require.True(t, ok)

	call, ok := index.Object.(*ast.CallExpression)
	require.True(t, ok)
	require.Len(t, call.Args, 2)

	get, ok := call.Callee.(*ast.InstanceGetExpression)
	require.True(t, ok)
	require.Equal(t, "b", get.Name)
}

func TestParseExpression_AssignToNonTargetIsError(t *testing.T) {
	p := New("test.cl", "1 = 2")
	p.parseExpression(Lowest)
	require.True(t, p.Errors().HasErrors())
}

func TestParseExpression_LineFirstMinusStartsNewExpression(t *testing.T) {
	// Within one parseStatements call, a leading '-' on a new line begins a
	// fresh expression rather than continuing the previous one as subtraction.
	p := New("test.cl", "a\n-b")
	stmts := p.parseStatements(0)
	require.Len(t, stmts, 2)

	first, ok := stmts[0].(*ast.ExpressionStatement)
	require.True(t, ok)
	_, ok = first.Expression.(*ast.Identifier)
	require.True(t, ok)

	second, ok := stmts[1].(*ast.ExpressionStatement)
	require.True(t, ok)
	prefix, ok := second.Expression.(*ast.PrefixExpression)
	require.True(t, ok)
	require.Equal(t, "-", prefix.Operator)
}

func TestParseExpression_SameLineMinusIsSubtraction(t *testing.T) {
	expr := parseExpr(t, "a - b")
	infix, ok := expr.(*ast.InfixExpression)
	require.True(t, ok)
	require.Equal(t, "-", infix.Operator)
}

func TestParseIfExpression_ElseifDesugarsToNestedIf(t *testing.T) {
	p := New("test.cl", `if a
		1
	elseif b
		2
	else
		3
	end`)
	expr := p.parseExpression(Lowest)
	require.False(t, p.Errors().HasErrors(), p.Errors().Error())

	outer, ok := expr.(*ast.IfExpression)
	require.True(t, ok)
	require.Len(t, outer.TruePart, 1)
	require.Len(t, outer.FalsePart, 1)

	nestedStmt, ok := outer.FalsePart[0].(*ast.ExpressionStatement)
	require.True(t, ok)
	nested, ok := nestedStmt.Expression.(*ast.IfExpression)
	require.True(t, ok)
	require.Len(t, nested.TruePart, 1)
	require.Len(t, nested.FalsePart, 1)
}

func TestParseFunctionDefinition_ThisMarksInstanceMethod(t *testing.T) {
	p := New("test.cl", `function speak(this, word)
		return word
	end`)
	def := p.parseFunctionDefinition(false)
	require.False(t, p.Errors().HasErrors(), p.Errors().Error())
	require.True(t, def.IsInstance)
	require.Equal(t, []string{"this", "word"}, def.Parameters)
	require.Len(t, def.Body, 1)
}

func TestParseModelDefinition_CollectsProperties(t *testing.T) {
	p := New("test.cl", "model Dog name age end")
	def := p.parseDefinition()
	require.False(t, p.Errors().HasErrors(), p.Errors().Error())
	model, ok := def.(*ast.ModelDefinition)
	require.True(t, ok)
	require.Equal(t, "Dog", model.Name)
	require.Equal(t, []string{"name", "age"}, model.Properties)
	require.False(t, model.Public)
}

func TestParseDefinition_PublicModel(t *testing.T) {
	p := New("test.cl", "public model Dog name end")
	def := p.parseDefinition()
	require.False(t, p.Errors().HasErrors(), p.Errors().Error())
	model, ok := def.(*ast.ModelDefinition)
	require.True(t, ok)
	require.True(t, model.Public)
}

func TestParseIncludeDefinition_NamesAndAliasesAndPath(t *testing.T) {
	p := New("test.cl", `include Dog as Animal, Cat from "animals.cl"`)
	def := p.parseDefinition()
	require.False(t, p.Errors().HasErrors(), p.Errors().Error())
	inc, ok := def.(*ast.IncludeDefinition)
	require.True(t, ok)
	require.Len(t, inc.Names, 2)
	require.Equal(t, "Dog", inc.Names[0].Text)
	require.Equal(t, "Animal", inc.Aliases[0])
	require.Equal(t, "Cat", inc.Names[1].Text)
	require.Equal(t, "", inc.Aliases[1])
	require.Equal(t, "animals.cl", inc.RawPath)
}

func TestParseDocument_IncludeAfterOtherDefinitionIsError(t *testing.T) {
	p := New("test.cl", `
	function f()
	end
	include X from "x.cl"
	`)
	p.parseDocument()
	require.True(t, p.Errors().HasErrors())
}

func TestParseImplementDefinition_CollectsFunctions(t *testing.T) {
	p := New("test.cl", `implement Dog
		function bark(this)
		end
		function sit(this)
		end
	end`)
	def := p.parseDefinition()
	require.False(t, p.Errors().HasErrors(), p.Errors().Error())
	impl, ok := def.(*ast.ImplementDefinition)
	require.True(t, ok)
	require.Equal(t, "Dog", impl.ModelName)
	require.Len(t, impl.Functions, 2)
}

func TestParseApplyDefinition(t *testing.T) {
	p := New("test.cl", "apply Animal to Dog")
	def := p.parseDefinition()
	require.False(t, p.Errors().HasErrors(), p.Errors().Error())
	apply, ok := def.(*ast.ApplyDefinition)
	require.True(t, ok)
	require.Equal(t, "Animal", apply.Source)
	require.Equal(t, "Dog", apply.Target)
}

func TestParseLocalDefinition_RestrictsToLiteralConstants(t *testing.T) {
	p := New("test.cl", "local x = 1, y = -2.5, z = \"s\", w")
	def := p.parseDefinition()
	require.False(t, p.Errors().HasErrors(), p.Errors().Error())
	local, ok := def.(*ast.LocalDefinition)
	require.True(t, ok)
	require.Equal(t, []string{"x", "y", "z", "w"}, local.Names)

	xi, ok := local.Values[0].(*ast.IntegerLiteral)
	require.True(t, ok)
	require.Equal(t, int64(1), xi.Value)

	yf, ok := local.Values[1].(*ast.FloatLiteral)
	require.True(t, ok)
	require.Equal(t, -2.5, yf.Value)

	require.Nil(t, local.Values[3])
}

func TestParseForStatement(t *testing.T) {
	p := New("test.cl", `for item in items
		item
	end`)
	stmt := p.parseStatement()
	require.False(t, p.Errors().HasErrors(), p.Errors().Error())
	forStmt, ok := stmt.(*ast.ForStatement)
	require.True(t, ok)
	require.Equal(t, "item", forStmt.Identifier)
	require.Len(t, forStmt.Body, 1)
}

func TestParseStatement_ReturnWithNoValue(t *testing.T) {
	p := New("test.cl", "return\nend")
	stmt := p.parseStatement()
	require.False(t, p.Errors().HasErrors(), p.Errors().Error())
	ret, ok := stmt.(*ast.ReturnStatement)
	require.True(t, ok)
	require.Nil(t, ret.Value)
}

func TestParse_RecoversAndReportsMultipleErrors(t *testing.T) {
	doc, errs := Parse("test.cl", `
	???
	function ok()
	end
	`, "/src", "/cwd")
	require.True(t, errs.HasErrors())
	// the well-formed function after the garbage token should still parse
	found := false
	for _, d := range doc.Definitions {
		if fn, ok := d.(*ast.FunctionDefinition); ok && fn.Name == "ok" {
			found = true
		}
	}
	require.True(t, found, "expected recovery to still find the 'ok' function")
}

func TestParse_NormalizesRelativeIncludePath(t *testing.T) {
	doc, errs := Parse("main.cl", `include X from "lib/x.cl"`, "/proj", "/cwd")
	require.False(t, errs.HasErrors(), errs.Error())
	inc, ok := doc.Definitions[0].(*ast.IncludeDefinition)
	require.True(t, ok)
	require.Equal(t, "/proj/lib/x.cl", inc.Path)
}
