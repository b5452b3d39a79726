//go:build integration

package discardedquery

import (
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/packages"
)

// TestNoDiscardedQueriesInProductionCode runs the analyzer against the whole
// module and fails on any report in non-test files.
//
// Run with: go test -tags=integration ./analysis/discardedquery/...
func TestNoDiscardedQueriesInProductionCode(t *testing.T) {
	projectRoot, err := filepath.Abs("../..")
	if err != nil {
		t.Fatalf("Failed to get project root: %v", err)
	}

	cfg := &packages.Config{
		Mode: packages.NeedName |
			packages.NeedFiles |
			packages.NeedSyntax |
			packages.NeedTypes |
			packages.NeedTypesInfo |
			packages.NeedImports,
		Dir:   projectRoot,
		Tests: false,
	}

	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		t.Fatalf("Failed to load packages: %v", err)
	}

	for _, pkg := range pkgs {
		for _, err := range pkg.Errors {
			t.Errorf("Package %s error: %v", pkg.PkgPath, err)
		}
	}

	var findings []string
	for _, pkg := range pkgs {
		for _, d := range runAnalyzerOnPackage(t, pkg) {
			pos := pkg.Fset.Position(d.Pos)
			if strings.HasSuffix(pos.Filename, "_test.go") {
				continue
			}
			findings = append(findings, pos.String()+": "+d.Message)
		}
	}

	if len(findings) > 0 {
		t.Errorf("Found %d discarded query result(s) in production code:", len(findings))
		for _, f := range findings {
			t.Errorf("  %s", f)
		}
	}
}

// runAnalyzerOnPackage runs the inspect analyzer and then ours on one package.
func runAnalyzerOnPackage(t *testing.T, pkg *packages.Package) []analysis.Diagnostic {
	if len(pkg.Syntax) == 0 {
		return nil
	}

	var diagnostics []analysis.Diagnostic
	pass := &analysis.Pass{
		Fset:      pkg.Fset,
		Files:     pkg.Syntax,
		Pkg:       pkg.Types,
		TypesInfo: pkg.TypesInfo,
		ResultOf:  make(map[*analysis.Analyzer]interface{}),
		Report: func(d analysis.Diagnostic) {
			diagnostics = append(diagnostics, d)
		},
	}

	inspectResult, err := inspect.Analyzer.Run(pass)
	if err != nil {
		t.Fatalf("inspect failed on %s: %v", pkg.PkgPath, err)
	}
	pass.ResultOf[inspect.Analyzer] = inspectResult

	if _, err := Analyzer.Run(pass); err != nil {
		t.Fatalf("analyzer failed on %s: %v", pkg.PkgPath, err)
	}
	return diagnostics
}
