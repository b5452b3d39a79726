package auth

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"telemetry_search/config"
)

const (
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "tqs_session"

	// DefaultSessionDuration is the default session lifetime.
	DefaultSessionDuration = 24 * time.Hour

	// LoginExpiry is how long a started OIDC login may take to come back.
	LoginExpiry = 10 * time.Minute

	// DefaultGroupsClaim is the claim read for group membership.
	DefaultGroupsClaim = "groups"

	// DefaultEditorGroup is the group whose members may change saved searches.
	DefaultEditorGroup = "editor"

	discoverySuffix = "/.well-known/openid-configuration"
	sweepInterval   = time.Minute
)

// Provider authenticates requests. Requests for the service URL's host sign
// in with OIDC; requests on any other host (a LAN address, localhost) use
// local accounts.
type Provider struct {
	oauth2   *oauth2.Config
	verifier *oidc.IDTokenVerifier

	serviceHost string
	secure      bool // Service URL is https, so cookies are Secure
	groupsClaim string
	editorGroup string
	local       *localAccess

	sessions *tokenStore[*User]
	logins   *tokenStore[string] // state -> path to return to

	stop      chan struct{}
	closeOnce sync.Once
}

// NewProvider discovers the OIDC issuer behind cfg.ConfigURL and returns a
// provider. Close releases its background sweeper.
func NewProvider(ctx context.Context, cfg *config.OIDCConfig, localCfg *config.LocalConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("OIDC config is nil")
	}

	issuer, err := issuerURL(cfg.ConfigURL)
	if err != nil {
		return nil, err
	}
	op, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC issuer %s: %w", issuer, err)
	}

	p, err := newProvider(cfg, localCfg, pamChecker{service: pamService})
	if err != nil {
		return nil, err
	}
	p.oauth2 = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  strings.TrimSuffix(cfg.ServiceURL, "/") + cfg.Callback,
		Endpoint:     op.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email", "groups"},
	}
	p.verifier = op.Verifier(&oidc.Config{ClientID: cfg.ClientID})

	go p.sweepLoop(sweepInterval)
	return p, nil
}

// newProvider builds everything except the OIDC client.
func newProvider(cfg *config.OIDCConfig, localCfg *config.LocalConfig, checker PasswordChecker) (*Provider, error) {
	service, err := url.Parse(cfg.ServiceURL)
	if err != nil || service.Hostname() == "" {
		return nil, fmt.Errorf("invalid service_url %q", cfg.ServiceURL)
	}

	p := &Provider{
		serviceHost: strings.ToLower(service.Hostname()),
		secure:      service.Scheme == "https",
		groupsClaim: cfg.GroupsClaim,
		editorGroup: cfg.EditorGroup,
		local:       newLocalAccess(localCfg.EditorNames(), checker),
		sessions:    newTokenStore[*User](DefaultSessionDuration),
		logins:      newTokenStore[string](LoginExpiry),
		stop:        make(chan struct{}),
	}
	if p.groupsClaim == "" {
		p.groupsClaim = DefaultGroupsClaim
	}
	if p.editorGroup == "" {
		p.editorGroup = DefaultEditorGroup
	}
	return p, nil
}

// issuerURL strips the discovery path from a config_url. go-oidc fetches
// exactly issuer + discoverySuffix, so the document read is the configured one.
func issuerURL(configURL string) (string, error) {
	issuer, ok := strings.CutSuffix(strings.TrimSuffix(configURL, "/"), discoverySuffix)
	if !ok || issuer == "" {
		return "", fmt.Errorf("config_url %q does not end in %s", configURL, discoverySuffix)
	}
	return issuer, nil
}

// Close stops the background sweeper.
func (p *Provider) Close() error {
	p.closeOnce.Do(func() { close(p.stop) })
	return nil
}

func (p *Provider) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.sessions.sweep()
			p.logins.sweep()
		}
	}
}

// isLocalAccess reports whether r arrived on a host other than the service URL's.
func (p *Provider) isLocalAccess(r *http.Request) bool {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.Trim(host, "[]")) != p.serviceHost
}

// sessionUser returns the user of r's session cookie, if it is live.
func (p *Provider) sessionUser(r *http.Request) *User {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil
	}
	user, _ := p.sessions.lookup(cookie.Value)
	return user
}

// startSession stores user and sets the session cookie.
func (p *Provider) startSession(w http.ResponseWriter, user *User, secure bool) error {
	id, err := p.sessions.issue(user)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(DefaultSessionDuration.Seconds()),
	})
	return nil
}

// LoginHandler starts the OIDC flow. The redirect query parameter names the
// page to return to; anything but a same-origin path is replaced by "/".
func (p *Provider) LoginHandler(w http.ResponseWriter, r *http.Request) {
	state, err := p.logins.issue(safeRedirect(r.URL.Query().Get("redirect")))
	if err != nil {
		log.Printf("Auth: failed to start login: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, p.oauth2.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// CallbackHandler completes the OIDC flow and starts a session.
func (p *Provider) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	returnTo, ok := p.logins.redeem(q.Get("state"))
	if !ok {
		log.Printf("Auth: callback with unknown or expired state")
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}
	if errParam := q.Get("error"); errParam != "" {
		log.Printf("Auth: OIDC error: %s - %s", errParam, q.Get("error_description"))
		http.Error(w, "Authentication error: "+q.Get("error_description"), http.StatusUnauthorized)
		return
	}

	claims, err := p.exchange(r.Context(), q.Get("code"))
	if err != nil {
		log.Printf("Auth: %v", err)
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	user := p.userFromClaims(claims)
	if err := p.startSession(w, user, p.secure); err != nil {
		log.Printf("Auth: failed to create session: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	log.Printf("Auth: %s signed in as %s", user.DisplayName(), user.Role)
	http.Redirect(w, r, returnTo, http.StatusTemporaryRedirect)
}

// exchange trades an authorization code for verified ID token claims.
func (p *Provider) exchange(ctx context.Context, code string) (map[string]interface{}, error) {
	token, err := p.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("no id_token in token response")
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}
	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode claims: %w", err)
	}
	return claims, nil
}

// userFromClaims builds a user from ID token claims. The user is an editor
// when the editor claim is true or the groups claim names the editor group.
func (p *Provider) userFromClaims(claims map[string]interface{}) *User {
	user := &User{Role: RoleReader}
	user.ID, _ = claims["sub"].(string)
	user.Email, _ = claims["email"].(string)
	if name, ok := claims["name"].(string); ok {
		user.Name = name
	} else {
		user.Name, _ = claims["preferred_username"].(string)
	}

	editor, _ := claims["editor"].(bool)
	switch v := claims[p.groupsClaim].(type) {
	case bool:
		editor = editor || v
	case string:
		for _, g := range strings.Split(v, ",") {
			if g = strings.TrimSpace(g); g != "" {
				user.Groups = append(user.Groups, g)
			}
		}
	case []interface{}:
		for _, item := range v {
			if g, ok := item.(string); ok {
				user.Groups = append(user.Groups, g)
			}
		}
	}
	for _, g := range user.Groups {
		if strings.EqualFold(g, p.editorGroup) {
			editor = true
		}
	}

	if editor {
		user.Role = RoleEditor
	}
	return user
}

// LogoutHandler ends the session.
func (p *Provider) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		p.sessions.revoke(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	next := "/login"
	if p.isLocalAccess(r) {
		next = "/"
	}
	http.Redirect(w, r, next, http.StatusTemporaryRedirect)
}

// StatusHandler reports who is signed in and whether they can edit.
func (p *Provider) StatusHandler(w http.ResponseWriter, r *http.Request) {
	local := p.isLocalAccess(r)
	user := p.sessionUser(r)
	writeJSON(w, http.StatusOK, Status{
		Authenticated: user != nil,
		User:          user,
		OIDCEnabled:   !local,
		LocalAccess:   local,
		CanEdit:       user.CanEditSearches(),
	})
}

// Middleware requires a session. Without one, local access falls back to
// basic auth against local accounts, API calls get 401 and pages are sent
// to /login.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := p.sessionUser(r); user != nil {
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
			return
		}
		if p.isLocalAccess(r) {
			p.authenticateLocal(w, r, next)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
			writeJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		http.Redirect(w, r, "/login?redirect="+url.QueryEscape(r.URL.RequestURI()), http.StatusTemporaryRedirect)
	})
}

// safeRedirect returns target if it is a path on this server, otherwise "/".
func safeRedirect(target string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return "/"
	}
	return target
}
