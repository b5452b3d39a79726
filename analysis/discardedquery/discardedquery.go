// Package discardedquery provides a static analyzer that reports calls into
// the query package whose results are thrown away.
//
// Query values are immutable apart from the Expression builder methods, so a
// call such as
//
//	query.Parse(raw)
//	e.Copy().RemoveFilter("level")
//	e.Apply(edits...)
//
// on its own line either does nothing or loses an error. Builder methods that
// mutate their receiver and return it for chaining are not reported.
//
// Usage:
//
//	go run ./cmd/querylint ./...
package discardedquery

import (
	"fmt"
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/astutil"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"
)

// DefaultPackage is the import path checked unless -pkg says otherwise.
const DefaultPackage = "telemetry_search/query"

// Analyzer is the discardedquery analyzer.
var Analyzer = &analysis.Analyzer{
	Name:     "discardedquery",
	Doc:      "reports query package calls whose result is discarded",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

var queryPackage string

func init() {
	Analyzer.Flags.StringVar(&queryPackage, "pkg", DefaultPackage, "import path of the query package")
}

// copyMethods return a new value instead of mutating the receiver, even
// though their result type matches the builder methods.
var copyMethods = map[string]bool{
	"Copy": true,
}

func run(pass *analysis.Pass) (interface{}, error) {
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{
		(*ast.ExprStmt)(nil),
	}

	inspect.Preorder(nodeFilter, func(n ast.Node) {
		stmt := n.(*ast.ExprStmt)
		call, ok := astutil.Unparen(stmt.X).(*ast.CallExpr)
		if !ok {
			return
		}

		fn, ok := typeutil.Callee(pass.TypesInfo, call).(*types.Func)
		if !ok || fn.Pkg() == nil || fn.Pkg().Path() != queryPackage {
			return
		}

		sig := fn.Type().(*types.Signature)
		results := sig.Results()
		switch {
		case results.Len() == 0:
			return
		case isBuilder(sig, fn):
			if !chainsFromValue(pass, call) {
				return
			}
			pass.Reportf(call.Pos(), "result of %s is discarded", calleeName(fn))
		case results.Len() == 1 && isError(results.At(0).Type()):
			pass.Reportf(call.Pos(), "error from %s is discarded", calleeName(fn))
		default:
			pass.Reportf(call.Pos(), "result of %s is discarded", calleeName(fn))
		}
	})

	return nil, nil
}

// isBuilder reports whether fn mutates its pointer receiver and returns it.
func isBuilder(sig *types.Signature, fn *types.Func) bool {
	recv := sig.Recv()
	if recv == nil || copyMethods[fn.Name()] {
		return false
	}
	if _, ok := recv.Type().(*types.Pointer); !ok {
		return false
	}
	results := sig.Results()
	return results.Len() == 1 && types.Identical(results.At(0).Type(), recv.Type())
}

// chainsFromValue reports whether a builder chain starts from a fresh query
// value, as in query.Parse(raw).RemoveFilter(key), so nothing keeps the result.
func chainsFromValue(pass *analysis.Pass, call *ast.CallExpr) bool {
	for {
		sel, ok := astutil.Unparen(call.Fun).(*ast.SelectorExpr)
		if !ok {
			return false
		}
		inner, ok := astutil.Unparen(sel.X).(*ast.CallExpr)
		if !ok {
			return false
		}
		fn, ok := typeutil.Callee(pass.TypesInfo, inner).(*types.Func)
		if !ok || fn.Pkg() == nil || fn.Pkg().Path() != queryPackage {
			return false
		}
		if !isBuilder(fn.Type().(*types.Signature), fn) {
			return true
		}
		call = inner
	}
}

func isError(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}

// calleeName renders fn as query.Parse or (*query.Expression).Copy.
func calleeName(fn *types.Func) string {
	sig := fn.Type().(*types.Signature)
	recv := sig.Recv()
	if recv == nil {
		return fn.Pkg().Name() + "." + fn.Name()
	}

	t := recv.Type()
	star := ""
	if p, ok := t.(*types.Pointer); ok {
		star = "*"
		t = p.Elem()
	}
	if named, ok := t.(*types.Named); ok {
		return fmt.Sprintf("(%s%s.%s).%s", star, fn.Pkg().Name(), named.Obj().Name(), fn.Name())
	}
	return fn.Pkg().Name() + "." + fn.Name()
}
