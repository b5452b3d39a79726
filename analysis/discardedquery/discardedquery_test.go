package discardedquery

import (
	"testing"

	"golang.org/x/tools/go/analysis/analysistest"
)

func TestDiscardedQuery(t *testing.T) {
	testdata := analysistest.TestData()
	analysistest.Run(t, testdata, Analyzer, "usage")
}

func TestAnalyzerConfiguration(t *testing.T) {
	if Analyzer.Name != "discardedquery" {
		t.Errorf("Expected analyzer name 'discardedquery', got '%s'", Analyzer.Name)
	}
	if len(Analyzer.Requires) == 0 {
		t.Error("Analyzer should require the inspect analyzer")
	}
	if f := Analyzer.Flags.Lookup("pkg"); f == nil || f.DefValue != DefaultPackage {
		t.Errorf("Expected -pkg flag defaulting to %q", DefaultPackage)
	}
}
