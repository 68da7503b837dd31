package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloverlang/clover/pkg/token"
)

func TestNextToken_BasicSymbols(t *testing.T) {
	input := `. , : ( ) { } [ ]`

	tests := []struct {
		kind token.Kind
		text string
	}{
		{token.Dot, "."},
		{token.Comma, ","},
		{token.Colon, ":"},
		{token.LParen, "("},
		{token.RParen, ")"},
		{token.LBrace, "{"},
		{token.RBrace, "}"},
		{token.LBracket, "["},
		{token.RBracket, "]"},
		{token.Eof, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		require.Equalf(t, tt.kind, tok.Kind, "token %d", i)
		require.Equalf(t, tt.text, tok.Text, "token %d", i)
	}
}

func TestNextToken_TwoCharOperatorsWinOverOneChar(t *testing.T) {
	input := `== != && || >= <= += -= *= /= %= = < > + - * / %`

	tests := []token.Kind{
		token.Eq, token.NotEq, token.And, token.Or, token.GtEq, token.LtEq,
		token.PlusEq, token.MinusEq, token.StarEq, token.SlashEq, token.PercentEq,
		token.Assign, token.Lt, token.Gt, token.Plus, token.Minus, token.Star, token.Slash, token.Percent,
	}

	l := New(input)
	for i, want := range tests {
		tok := l.NextToken()
		require.Equalf(t, want, tok.Kind, "token %d (%s)", i, tok.Text)
	}
}

func TestNextToken_Keywords(t *testing.T) {
	input := "include from as public model function end implement apply to local return this if else elseif while for in break rescue true false null and or not"

	tests := []token.Kind{
		token.Include, token.From, token.As, token.Public, token.Model, token.Function,
		token.End, token.Implement, token.Apply, token.To, token.Local, token.Return,
		token.This, token.If, token.Else, token.Elseif, token.While, token.For, token.In,
		token.Break, token.Rescue, token.True, token.False, token.Null, token.And, token.Or, token.Not,
	}

	l := New(input)
	for i, want := range tests {
		tok := l.NextToken()
		require.Equalf(t, want, tok.Kind, "token %d (%s)", i, tok.Text)
	}
}

func TestNextToken_Identifier(t *testing.T) {
	l := New("foo_bar2 Baz")
	tok := l.NextToken()
	require.Equal(t, token.Identifier, tok.Kind)
	require.Equal(t, "foo_bar2", tok.Text)

	tok = l.NextToken()
	require.Equal(t, token.Identifier, tok.Kind)
	require.Equal(t, "Baz", tok.Text)
}

func TestNextToken_IntegerAndFloat(t *testing.T) {
	tests := []struct {
		input string
		kind  token.Kind
		text  string
	}{
		{"42", token.Integer, "42"},
		{"3.14", token.Float, "3.14"},
		{"0", token.Integer, "0"},
	}

	for _, tt := range tests {
		l := New(tt.input)
		tok := l.NextToken()
		require.Equal(t, tt.kind, tok.Kind)
		require.Equal(t, tt.text, tok.Text)
	}
}

func TestNextToken_TrailingDotIsNotAFloat(t *testing.T) {
	// spec.md §9 open question: "1." deliberately is not a Float — the
	// lexer requires a digit after the dot.
	l := New("1.foo")
	tok := l.NextToken()
	require.Equal(t, token.Integer, tok.Kind)
	require.Equal(t, "1", tok.Text)

	tok = l.NextToken()
	require.Equal(t, token.Dot, tok.Kind)

	tok = l.NextToken()
	require.Equal(t, token.Identifier, tok.Kind)
	require.Equal(t, "foo", tok.Text)
}

func TestNextToken_String(t *testing.T) {
	l := New(`"hello\nworld" "a\"b"`)
	tok := l.NextToken()
	require.Equal(t, token.String, tok.Kind)
	require.Equal(t, "hello\nworld", tok.Text)

	tok = l.NextToken()
	require.Equal(t, token.String, tok.Kind)
	require.Equal(t, `a"b`, tok.Text)
}

func TestNextToken_UnterminatedString(t *testing.T) {
	l := New(`"hello`)
	tok := l.NextToken()
	require.Equal(t, token.Invalid, tok.Kind)
	require.Equal(t, "end of file while parsing string", tok.Reason)
}

func TestNextToken_CommentIsSkipped(t *testing.T) {
	l := New("# a comment\n42")
	tok := l.NextToken()
	require.Equal(t, token.Integer, tok.Kind)
	require.Equal(t, "42", tok.Text)
}

func TestNextToken_IllegalCharacterContinuesLexing(t *testing.T) {
	l := New("1 @ 2")
	tok := l.NextToken()
	require.Equal(t, token.Integer, tok.Kind)

	tok = l.NextToken()
	require.Equal(t, token.Invalid, tok.Kind)
	require.Equal(t, "@", tok.Text)

	tok = l.NextToken()
	require.Equal(t, token.Integer, tok.Kind)
	require.Equal(t, "2", tok.Text)
}

func TestNextToken_PositionsTrackLineAndColumn(t *testing.T) {
	l := New("a\nbc")
	tok := l.NextToken()
	require.Equal(t, uint16(1), tok.Position.Line)

	tok = l.NextToken()
	require.Equal(t, uint16(2), tok.Position.Line)
}

func TestTokenize_EndsWithEof(t *testing.T) {
	tokens := New("x = 1").Tokenize()
	require.Equal(t, token.Eof, tokens[len(tokens)-1].Kind)
}
