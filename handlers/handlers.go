// Package handlers provides HTTP handlers for the search API.
package handlers

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"telemetry_search/config"
)

// QueryDocsFile is the markdown file describing the query language.
const QueryDocsFile = "search-query-language.md"

var (
	docsFS   fs.FS
	docsFSMu sync.RWMutex
)

// SetEmbeddedFS sets the filesystem documentation is served from. With a nil
// filesystem the docs directory on disk is used, which is handy during development.
func SetEmbeddedFS(docs fs.FS) {
	docsFSMu.Lock()
	defer docsFSMu.Unlock()
	docsFS = docs
}

func readDocsFile(name string) ([]byte, error) {
	docsFSMu.RLock()
	fsys := docsFS
	docsFSMu.RUnlock()

	if fsys == nil {
		return os.ReadFile("docs/" + name)
	}
	return fs.ReadFile(fsys, name)
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeError writes a JSON error body, matching the auth middleware's API errors.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// maxQueryLength returns the configured query length limit.
func maxQueryLength() int {
	if cfg := config.Get(); cfg != nil {
		return cfg.Search.GetMaxQueryLength()
	}
	return config.DefaultMaxQueryLength
}

// checkQueryLength rejects overlong query text. It returns false if a
// response has been written.
func checkQueryLength(w http.ResponseWriter, raw string) bool {
	if limit := maxQueryLength(); len(raw) > limit {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("query exceeds %d bytes", limit))
		return false
	}
	return true
}

// decodeBody decodes a JSON request body into v. It returns false if a
// response has been written.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	// Leave room for the JSON envelope around the query text
	r.Body = http.MaxBytesReader(w, r.Body, int64(4*maxQueryLength()))
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// IndexHandler serves the query language documentation at the root.
func IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		QueryDocsHandler(w, r)
		return
	}
	http.NotFound(w, r)
}

// QueryDocsHandler handles GET /api/docs/query requests.
// It renders the query language documentation as HTML.
func QueryDocsHandler(w http.ResponseWriter, r *http.Request) {
	mdContent, err := readDocsFile(QueryDocsFile)
	if err != nil {
		http.Error(w, "Documentation not found", http.StatusNotFound)
		return
	}

	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse(mdContent)

	htmlFlags := html.CommonFlags | html.HrefTargetBlank
	opts := html.RendererOptions{Flags: htmlFlags}
	renderer := html.NewRenderer(opts)

	htmlContent := markdown.Render(doc, renderer)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(htmlContent)
}
