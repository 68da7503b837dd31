package depsolver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloverlang/clover/pkg/ast"
)

func docWithIncludes(path string, deps ...string) *ast.Document {
	doc := &ast.Document{Path: path}
	for _, d := range deps {
		doc.Definitions = append(doc.Definitions, &ast.IncludeDefinition{Path: d})
	}
	return doc
}

func TestSolve_LeafFileHasZeroInDegree(t *testing.T) {
	s := New()
	discovered := s.Solve(docWithIncludes("a.luck"))
	require.Empty(t, discovered)

	f, ok := s.NextZeroDegree()
	require.True(t, ok)
	require.Equal(t, "a.luck", f)
}

func TestSolve_DiscoversNewDependencyFilenames(t *testing.T) {
	s := New()
	discovered := s.Solve(docWithIncludes("b.luck", "a.luck"))
	require.Equal(t, []string{"a.luck"}, discovered)

	_, ok := s.NextZeroDegree()
	require.False(t, ok, "b.luck depends on unsolved a.luck")
}

func TestSolveAndSetLoaded_UnblocksDependent(t *testing.T) {
	s := New()
	s.Solve(docWithIncludes("b.luck", "a.luck"))
	s.Solve(docWithIncludes("a.luck"))

	f, ok := s.NextZeroDegree()
	require.True(t, ok)
	require.Equal(t, "a.luck", f)

	s.SetLoaded("a.luck")

	f, ok = s.NextZeroDegree()
	require.True(t, ok)
	require.Equal(t, "b.luck", f)

	require.True(t, s.Pending(), "b.luck still pending until loaded")
	s.SetLoaded("b.luck")
	require.False(t, s.Pending())
}

func TestSolve_AlreadyCompiledDependencyAddsNoEdge(t *testing.T) {
	s := New()
	s.Solve(docWithIncludes("a.luck"))
	s.SetLoaded("a.luck")

	discovered := s.Solve(docWithIncludes("b.luck", "a.luck"))
	require.Empty(t, discovered)

	f, ok := s.NextZeroDegree()
	require.True(t, ok)
	require.Equal(t, "b.luck", f)
}

func TestCycle_DetectedWhenNoZeroDegreeFileRemains(t *testing.T) {
	s := New()
	s.Solve(docWithIncludes("a.luck", "b.luck"))
	s.Solve(docWithIncludes("b.luck", "a.luck"))

	_, ok := s.NextZeroDegree()
	require.False(t, ok)
	require.True(t, s.Pending())

	err := NewCycleError(s)
	require.Error(t, err)
	require.Contains(t, err.Error(), "a.luck")
	require.Contains(t, err.Error(), "b.luck")
}

func TestNewCycleError_NilWhenNothingPending(t *testing.T) {
	s := New()
	s.Solve(docWithIncludes("a.luck"))
	s.SetLoaded("a.luck")
	require.Nil(t, NewCycleError(s))
}
