// Package depsolver orders a multi-file Clover program for compilation.
//
// It tracks, for every file discovered so far, an in-degree (the number of
// not-yet-compiled files it depends on via "include ... from") and a
// reverse-edge list (which files depend on it). The compiler's outer loop
// (pkg/compiler) drives Solve/NextZeroDegree/SetLoaded to compile files in
// an order where every dependency is compiled before its dependents, or to
// detect a cycle when no such order exists (spec.md §4.3).
package depsolver

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/cloverlang/clover/pkg/ast"
)

// Solver holds the dependency graph built up across Solve calls.
type Solver struct {
	inDegree map[string]int
	reverse  map[string][]string
	compiled map[string]bool
}

// New creates an empty Solver.
func New() *Solver {
	return &Solver{
		inDegree: map[string]int{},
		reverse:  map[string][]string{},
		compiled: map[string]bool{},
	}
}

// Solve registers doc (by its normalized Path) and, for each of its
// "include ... from" dependencies not already compiled, increments doc's
// in-degree and records a reverse edge from the dependency back to doc. It
// returns the dependency filenames the caller has not seen before — those
// still need to be read (via Storage) and parsed before they themselves can
// be solved.
func (s *Solver) Solve(doc *ast.Document) []string {
	filename := doc.Path
	if _, ok := s.inDegree[filename]; !ok && !s.compiled[filename] {
		s.inDegree[filename] = 0
	}

	var discovered []string
	for _, def := range doc.Definitions {
		inc, ok := def.(*ast.IncludeDefinition)
		if !ok || inc.Path == "" {
			continue
		}
		dep := inc.Path
		if s.compiled[dep] {
			continue
		}
		s.inDegree[filename]++
		s.reverse[dep] = append(s.reverse[dep], filename)
		if _, known := s.inDegree[dep]; !known {
			discovered = append(discovered, dep)
		}
	}
	return discovered
}

// NextZeroDegree returns a filename whose in-degree is currently zero, and
// whether one exists. Among ties it returns the lexicographically smallest
// path, so compile order is deterministic across runs.
func (s *Solver) NextZeroDegree() (string, bool) {
	var candidates []string
	for f, deg := range s.inDegree {
		if deg == 0 {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Strings(candidates)
	return candidates[0], true
}

// SetLoaded marks f as fully compiled: removes it from the pending table
// and decrements the in-degree of every file that depended on it.
func (s *Solver) SetLoaded(f string) {
	delete(s.inDegree, f)
	s.compiled[f] = true
	for _, dependent := range s.reverse[f] {
		if _, ok := s.inDegree[dependent]; ok {
			s.inDegree[dependent]--
		}
	}
	delete(s.reverse, f)
}

// Pending reports whether any file is still waiting to be compiled.
func (s *Solver) Pending() bool {
	return len(s.inDegree) > 0
}

// Cycle returns the filenames left in the pending table once no
// zero-in-degree file remains — these form (or participate in) an include
// cycle.
func (s *Solver) Cycle() []string {
	names := make([]string, 0, len(s.inDegree))
	for f := range s.inDegree {
		names = append(names, f)
	}
	sort.Strings(names)
	return names
}

// CycleError reports an unresolvable include cycle.
type CycleError struct {
	Files []string
}

func (e *CycleError) Error() string {
	return "include cycle among: " + strings.Join(e.Files, ", ")
}

// NewCycleError wraps s's remaining pending files into a CycleError. It is
// exported as a free function (rather than a Solver method returning a
// bare error) so pkg/compiler can decide how to wrap it further with
// errors.Wrap before attaching it to a diagnostics list.
func NewCycleError(s *Solver) error {
	cycle := s.Cycle()
	if len(cycle) == 0 {
		return nil
	}
	return errors.WithStack(&CycleError{Files: cycle})
}
