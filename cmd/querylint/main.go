// Command querylint runs the discardedquery analyzer.
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"telemetry_search/analysis/discardedquery"
)

func main() {
	singlechecker.Main(discardedquery.Analyzer)
}
