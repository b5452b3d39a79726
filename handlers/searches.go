package handlers

import (
	"errors"
	"log"
	"net/http"

	"telemetry_search/auth"
	"telemetry_search/savedsearch"
)

// maxImportSize bounds the body of POST /api/searches/import.
const maxImportSize = 4 << 20

// SearchRequest is the body of POST /api/searches and PUT /api/searches/{id}.
type SearchRequest struct {
	Name  string `json:"name"`
	Query string `json:"query"`
}

// ImportResponse is returned by POST /api/searches/import.
type ImportResponse struct {
	Imported int `json:"imported"`
}

// SearchesHandler serves the saved search API on top of a store.
type SearchesHandler struct {
	store *savedsearch.Store
}

// NewSearchesHandler creates handlers for store.
func NewSearchesHandler(store *savedsearch.Store) *SearchesHandler {
	return &SearchesHandler{store: store}
}

// actor returns the name recorded for changes made by the request's user.
func actor(r *http.Request) string {
	return auth.GetUserFromContext(r.Context()).DisplayName()
}

// writeStoreError maps store errors to HTTP status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, savedsearch.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, savedsearch.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("SavedSearch: %v", err)
		writeError(w, http.StatusInternalServerError, "saved search store error")
	}
}

// List handles GET /api/searches.
func (h *SearchesHandler) List(w http.ResponseWriter, r *http.Request) {
	searches, err := h.store.List()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searches)
}

// Create handles POST /api/searches.
func (h *SearchesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) || !checkQueryLength(w, req.Query) {
		return
	}

	search, err := h.store.Create(req.Name, req.Query, actor(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, search)
}

// Get handles GET /api/searches/{id}.
func (h *SearchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	search, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, search)
}

// Update handles PUT /api/searches/{id}. An empty name keeps the current one.
func (h *SearchesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) || !checkQueryLength(w, req.Query) {
		return
	}

	search, err := h.store.Update(r.PathValue("id"), req.Name, req.Query, actor(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, search)
}

// Delete handles DELETE /api/searches/{id}.
func (h *SearchesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.PathValue("id"), actor(r)); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /api/searches/export. The response is a YAML document
// accepted by Import.
func (h *SearchesHandler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="searches.yaml"`)
	if err := h.store.Export(w); err != nil {
		log.Printf("SavedSearch: export failed: %v", err)
	}
}

// Import handles POST /api/searches/import with a YAML document body.
func (h *SearchesHandler) Import(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Import(http.MaxBytesReader(w, r.Body, maxImportSize), actor(r))
	if errors.Is(err, savedsearch.ErrInvalidDocument) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{Imported: n})
}
