// Package diag provides the compile-time diagnostics shared by the lexer,
// parser, dependency solver, and compiler: a single error type carrying a
// source position and owning filename, and an accumulating list of them so
// one compilation pass can surface many errors instead of stopping at the
// first (spec.md §7).
package diag

import (
	"fmt"
	"strings"

	"github.com/cloverlang/clover/pkg/token"
)

// CompileError is one diagnostic: the offending token's text and position,
// a message, and the file it was found in.
type CompileError struct {
	Filename string
	Position token.Position
	Token    string
	Message  string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("%s:%s: %s (near %q)", e.Filename, e.Position, e.Message, e.Token)
	}
	return fmt.Sprintf("%s:%s: %s", e.Filename, e.Position, e.Message)
}

// List accumulates CompileErrors across a pass, tagging each with the
// filename active at the time it was recorded.
type List struct {
	Filename string
	Errors   []*CompileError
}

// NewList creates an empty diagnostic list for filename.
func NewList(filename string) *List {
	return &List{Filename: filename}
}

// Add records a new error at pos, referencing tok's text (may be empty).
func (l *List) Add(pos token.Position, tok string, format string, args ...interface{}) {
	l.Errors = append(l.Errors, &CompileError{
		Filename: l.Filename,
		Position: pos,
		Token:    tok,
		Message:  fmt.Sprintf(format, args...),
	})
}

// HasErrors reports whether any diagnostic has been recorded.
func (l *List) HasErrors() bool {
	return len(l.Errors) > 0
}

// Error implements the error interface, joining every recorded diagnostic
// onto its own line.
func (l *List) Error() string {
	lines := make([]string, len(l.Errors))
	for i, e := range l.Errors {
		lines[i] = e.Error()
	}
	return strings.Join(lines, "\n")
}

// Extend appends other's errors onto l, preserving their original filenames.
func (l *List) Extend(other *List) {
	if other == nil {
		return
	}
	l.Errors = append(l.Errors, other.Errors...)
}
