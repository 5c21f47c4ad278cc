package store

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestOnlyCLIImportsBackends ensures pipeline code depends on the Store
// interface; the concrete sqlite and postgres backends are wired only by the
// command that selects a driver.
func TestOnlyCLIImportsBackends(t *testing.T) {
	backendPrefix := "seiscat/internal/store/"
	allowed := map[string]bool{
		"seiscat/cmd/seiscat": true,
	}

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "seiscat/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		base := strings.TrimSuffix(strings.TrimSuffix(pkg.PkgPath, ".test"), "_test")
		if allowed[base] || strings.HasPrefix(base, backendPrefix) {
			continue
		}
		for importPath := range pkg.Imports {
			if strings.HasPrefix(importPath, backendPrefix) {
				seen[base+": "+importPath] = struct{}{}
			}
		}
	}

	violations := make([]string, 0, len(seen))
	for v := range seen {
		violations = append(violations, v)
	}
	sort.Strings(violations)
	for _, v := range violations {
		t.Errorf("forbidden import of a store backend: %s", v)
	}
}
