// Package usage exercises the discardedquery analyzer.
package usage

import "telemetry_search/query"

func Discarded(raw string) {
	query.Parse(raw)   // want `result of query.Parse is discarded`
	(query.Compile(raw)) // want `result of query.Compile is discarded`

	e := query.New()
	e.Copy()                         // want `result of \(\*query.Expression\).Copy is discarded`
	e.Copy().RemoveFilter("level")   // want `result of \(\*query.Expression\).RemoveFilter is discarded`
	query.New().AddFilterValue("a", "1").RemoveFilter("b") // want `result of \(\*query.Expression\).RemoveFilter is discarded`
	e.FormatString()                 // want `result of \(\*query.Expression\).FormatString is discarded`
	e.Apply(query.Edit{Op: "noop"})  // want `error from \(\*query.Expression\).Apply is discarded`
	e.AddFilterValue("a", "1").Len() // want `result of \(query.Expression\).Len is discarded`
}

func Used(raw string) (string, error) {
	e := query.Parse(raw)
	e.AddFilterValue("browser", "Chrome").RemoveFilter("level")
	e.Reset()
	_ = query.Compile(raw)

	if err := e.Apply(); err != nil {
		return "", err
	}
	defer e.Reset()
	return e.FormatString(), nil
}

func local() int { return 1 }

func NotQuery() {
	local()
}
