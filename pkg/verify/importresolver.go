// Copyright 2025 Chainframe
//
// Multi-file import resolution. Before compiling, the engine walks each
// source's import statements and calls Resolve for every import path that
// is not already a key of the sources map; we apply a fixed sequence of
// normalization rules and detect cycles with a per-compile visited set.

package verify

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrCircularImport is returned when the resolver detects an import cycle.
var ErrCircularImport = errors.New("verify: circular import detected")

// ImportResolver resolves import paths against a fixed set of sources,
// applying an ordered sequence of normalization rules.
type ImportResolver struct {
	sources map[string]string
	visited map[string]bool
}

// NewImportResolver constructs a resolver over the given source map.
func NewImportResolver(sources map[string]string) *ImportResolver {
	return &ImportResolver{
		sources: sources,
		visited: make(map[string]bool),
	}
}

// Resolve returns the source content for importPath, applying rules in
// order until one matches: (1) exact match, (2) leading ./ or ../
// stripped, (3) .sol suffix added/removed, (4) separator swap \\↔/,
// (5) lowercased, (6) basename lookup.
func (r *ImportResolver) Resolve(importPath string) (string, string, error) {
	if r.visited[importPath] {
		return "", "", fmt.Errorf("%w: %s", ErrCircularImport, importPath)
	}
	r.visited[importPath] = true

	if content, ok := r.sources[importPath]; ok {
		return importPath, content, nil
	}

	stripped := strings.TrimPrefix(strings.TrimPrefix(importPath, "./"), "../")
	if content, ok := r.sources[stripped]; ok {
		return stripped, content, nil
	}

	var suffixSwapped string
	if strings.HasSuffix(importPath, ".sol") {
		suffixSwapped = strings.TrimSuffix(importPath, ".sol")
	} else {
		suffixSwapped = importPath + ".sol"
	}
	if content, ok := r.sources[suffixSwapped]; ok {
		return suffixSwapped, content, nil
	}

	swapped := strings.ReplaceAll(importPath, "\\", "/")
	if swapped == importPath {
		swapped = strings.ReplaceAll(importPath, "/", "\\")
	}
	if content, ok := r.sources[swapped]; ok {
		return swapped, content, nil
	}

	lowered := strings.ToLower(importPath)
	for name, content := range r.sources {
		if strings.ToLower(name) == lowered {
			return name, content, nil
		}
	}

	base := path.Base(strings.ReplaceAll(importPath, "\\", "/"))
	for name, content := range r.sources {
		if path.Base(strings.ReplaceAll(name, "\\", "/")) == base {
			return name, content, nil
		}
	}

	return "", "", fmt.Errorf("verify: import %q could not be resolved", importPath)
}

// Release marks importPath as no longer in the active resolution chain,
// allowing diamond (non-circular) re-imports of the same file.
func (r *ImportResolver) Release(importPath string) {
	delete(r.visited, importPath)
}
