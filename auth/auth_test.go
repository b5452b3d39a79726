package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestUserRole(t *testing.T) {
	var nilUser *User
	if nilUser.CanEditSearches() {
		t.Error("nil user can edit")
	}
	if (&User{ID: "r", Role: RoleReader}).CanEditSearches() {
		t.Error("reader can edit")
	}
	if !(&User{ID: "e", Role: RoleEditor}).CanEditSearches() {
		t.Error("editor cannot edit")
	}
}

func TestUserDisplayName(t *testing.T) {
	tests := []struct {
		user *User
		want string
	}{
		{nil, ""},
		{&User{ID: "sub1"}, "sub1"},
		{&User{ID: "sub1", Name: "Ann"}, "Ann"},
		{&User{ID: "sub1", Name: "Ann", Email: "ann@example.com"}, "ann@example.com"},
	}
	for _, tt := range tests {
		if got := tt.user.DisplayName(); got != tt.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tt.user, got, tt.want)
		}
	}
}

func TestUserContext(t *testing.T) {
	if GetUserFromContext(context.Background()) != nil {
		t.Error("empty context has a user")
	}
	u := &User{ID: "u1"}
	if got := GetUserFromContext(WithUser(context.Background(), u)); got != u {
		t.Errorf("GetUserFromContext = %v, want %v", got, u)
	}
}

func TestRequireEditor(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := RequireEditor(ok)

	tests := []struct {
		name string
		user *User
		want int
	}{
		{"anonymous", nil, http.StatusForbidden},
		{"reader", &User{ID: "r", Role: RoleReader}, http.StatusForbidden},
		{"editor", &User{ID: "e", Role: RoleEditor}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/searches", nil)
			if tt.user != nil {
				req = req.WithContext(WithUser(req.Context(), tt.user))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusForbidden {
				var body map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if body["error"] != "editor role required" {
					t.Errorf("error = %q", body["error"])
				}
			}
		})
	}
}

func TestNoAuthStatusHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NoAuthStatusHandler(rec, httptest.NewRequest(http.MethodGet, "/auth/status", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var status Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Authenticated || !status.CanEdit {
		t.Errorf("status = %+v, want authenticated editor", status)
	}
}
