package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func localRequest(user, password string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/searches", nil)
	req.Host = "192.168.1.20:8080"
	if user != "" {
		req.SetBasicAuth(user, password)
	}
	return req
}

func TestLocalAccessNotConfigured(t *testing.T) {
	p := newTestProvider(t, passwords{"alice": "pw"})
	h := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without local editors")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, localRequest("alice", "pw"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestLocalAccessChallenge(t *testing.T) {
	p := newTestProvider(t, passwords{"alice": "pw", "bob": "pw"}, "alice")
	h := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without valid credentials")
	}))

	tests := []struct {
		name, user, password string
	}{
		{"no credentials", "", ""},
		{"wrong password", "alice", "nope"},
		{"not an editor", "bob", "pw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, localRequest(tt.user, tt.password))
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if got := rec.Header().Get("WWW-Authenticate"); got != localRealm {
				t.Errorf("WWW-Authenticate = %q", got)
			}
			if len(rec.Result().Cookies()) != 0 {
				t.Error("session cookie set for rejected credentials")
			}
		})
	}
}

func TestLocalAccessSignIn(t *testing.T) {
	p := newTestProvider(t, passwords{"alice": "pw"}, "alice")

	var seen *User
	h := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserFromContext(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, localRequest("alice", "pw"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if seen == nil || seen.ID != "local:alice" || !seen.Local || !seen.CanEditSearches() {
		t.Fatalf("user = %+v, want local editor alice", seen)
	}

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			session = c
		}
	}
	if session == nil {
		t.Fatal("no session cookie after local sign-in")
	}
	if session.Secure {
		t.Error("local session cookie marked Secure")
	}

	// The cookie alone is enough afterwards.
	seen = nil
	req := localRequest("", "")
	req.AddCookie(session)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated || seen == nil || seen.Name != "alice" {
		t.Errorf("status = %d, user = %+v", rec.Code, seen)
	}
}
