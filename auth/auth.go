// Package auth authenticates callers of the search service. Readers may run
// queries and browse saved searches; creating, changing, deleting or
// importing saved searches needs RoleEditor.
package auth

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
)

// Role decides what a user may do with saved searches.
type Role string

const (
	RoleReader Role = "reader"
	RoleEditor Role = "editor"
)

// User represents an authenticated user.
type User struct {
	ID     string   `json:"id"`
	Email  string   `json:"email,omitempty"`
	Name   string   `json:"name,omitempty"`
	Groups []string `json:"groups,omitempty"`
	Role   Role     `json:"role"`
	Local  bool     `json:"local,omitempty"` // Signed in with a local account
}

// CanEditSearches reports whether u may change saved searches.
func (u *User) CanEditSearches() bool {
	return u != nil && u.Role == RoleEditor
}

// DisplayName returns the name recorded as the actor of saved search changes.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Email != "" {
		return u.Email
	}
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

type contextKey struct{}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// GetUserFromContext retrieves the authenticated user from the request context.
func GetUserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(contextKey{}).(*User)
	return user
}

// Status is the body of GET /auth/status.
type Status struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user,omitempty"`
	OIDCEnabled   bool  `json:"oidc_enabled"`
	LocalAccess   bool  `json:"local_access"`
	CanEdit       bool  `json:"can_edit"` // Saved search writes are allowed
}

// RequireEditor rejects requests whose user cannot edit saved searches. It
// must run inside Provider.Middleware so the user is already in the context.
func RequireEditor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if !user.CanEditSearches() {
			name := user.DisplayName()
			if name == "" {
				name = "anonymous"
			}
			log.Printf("Auth: %s denied %s %s", name, r.Method, r.URL.Path)
			writeJSONError(w, http.StatusForbidden, "editor role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NoAuthStatusHandler answers /auth/status when OIDC is not configured.
// Without authentication every caller can edit.
func NoAuthStatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Status{Authenticated: true, CanEdit: true})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
