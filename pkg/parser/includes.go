package parser

import (
	"path/filepath"
	"strings"

	"github.com/cloverlang/clover/pkg/ast"
)

// normalizeIncludes rewrites every IncludeDefinition's RawPath into a
// canonical Path: joined onto dir (the including file's own directory) when
// the raw path is itself relative, then expressed relative to cwd when it
// lies inside cwd, and cleaned, so that two files that include the same
// module via different relative spellings resolve to the same
// dependency-solver key (spec.md §3, §4.3). A path outside cwd stays
// absolute.
func normalizeIncludes(doc *ast.Document, dir, cwd string) {
	for _, def := range doc.Definitions {
		inc, ok := def.(*ast.IncludeDefinition)
		if !ok || inc.RawPath == "" {
			continue
		}
		p := inc.RawPath
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		if filepath.IsAbs(p) && cwd != "" {
			if rel, err := filepath.Rel(cwd, p); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				p = rel
			}
		}
		inc.Path = filepath.Clean(p)
	}
}
