package handlers

import (
	"errors"
	"net/http"

	"telemetry_search/metrics"
	"telemetry_search/query"
)

// FormatRequest is the body of POST /api/query/format.
type FormatRequest struct {
	Query string `json:"query"`
}

// FormatResponse is returned by POST /api/query/format.
type FormatResponse struct {
	Query string `json:"query"`
}

// EditRequest is the body of POST /api/query/edit.
type EditRequest struct {
	Query string       `json:"query"`
	Edits []query.Edit `json:"edits"`
}

// LintResponse is returned by GET /api/query/lint.
type LintResponse struct {
	Valid  bool          `json:"valid"`
	Issues []query.Issue `json:"issues"`
}

// QueryParseHandler handles GET /api/query/parse?q= requests.
// It returns the canonical text, tokens, filter keys and lint issues.
func QueryParseHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("q")
	if !checkQueryLength(w, raw) {
		return
	}

	result := query.Compile(raw)
	metrics.ObserveResult("http", "parse", result)
	writeJSON(w, http.StatusOK, result)
}

// QueryFormatHandler handles POST /api/query/format requests.
func QueryFormatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req FormatRequest
	if !decodeBody(w, r, &req) || !checkQueryLength(w, req.Query) {
		return
	}

	result := query.Compile(req.Query)
	metrics.ObserveResult("http", "format", result)
	writeJSON(w, http.StatusOK, FormatResponse{Query: result.Query})
}

// QueryEditHandler handles POST /api/query/edit requests. Edits are applied
// in order to the parsed query and the edited query is returned.
func QueryEditHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req EditRequest
	if !decodeBody(w, r, &req) || !checkQueryLength(w, req.Query) {
		return
	}

	expr := query.Parse(req.Query)
	if err := expr.Apply(req.Edits...); err != nil {
		metrics.ObserveEditError()
		status := http.StatusInternalServerError
		if errors.Is(err, query.ErrUnknownEdit) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	result := query.Summarize(expr)
	metrics.ObserveResult("http", "edit", result)
	writeJSON(w, http.StatusOK, result)
}

// QueryLintHandler handles GET /api/query/lint?q= requests.
func QueryLintHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("q")
	if !checkQueryLength(w, raw) {
		return
	}

	result := query.Compile(raw)
	metrics.ObserveResult("http", "lint", result)

	issues := result.Issues
	if issues == nil {
		issues = []query.Issue{}
	}
	writeJSON(w, http.StatusOK, LintResponse{Valid: result.Valid, Issues: issues})
}
