package auth

import (
	"fmt"
	"log"
	"net/http"

	"github.com/msteinert/pam/v2"
)

const (
	pamService = "login"
	localRealm = `Basic realm="Telemetry Search (Local)"`
)

// PasswordChecker verifies a local account's password.
type PasswordChecker interface {
	CheckPassword(username, password string) error
}

// pamChecker checks passwords through a PAM service.
type pamChecker struct {
	service string
}

func (c pamChecker) CheckPassword(username, password string) error {
	t, err := pam.StartFunc(c.service, username, func(s pam.Style, msg string) (string, error) {
		switch s {
		case pam.PromptEchoOff:
			return password, nil
		case pam.PromptEchoOn:
			return username, nil
		case pam.ErrorMsg, pam.TextInfo:
			return "", nil
		default:
			return "", fmt.Errorf("unrecognized PAM message style: %v", s)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start PAM transaction: %w", err)
	}
	defer t.End()

	if err := t.Authenticate(0); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	if err := t.AcctMgmt(0); err != nil {
		return fmt.Errorf("account validation failed: %w", err)
	}
	return nil
}

// localAccess lets the listed local accounts sign in with basic auth. Only
// editors are listed, so a local sign-in always grants RoleEditor.
type localAccess struct {
	editors map[string]bool
	checker PasswordChecker
}

func newLocalAccess(editors []string, checker PasswordChecker) *localAccess {
	if len(editors) == 0 {
		return nil
	}
	l := &localAccess{editors: make(map[string]bool, len(editors)), checker: checker}
	for _, name := range editors {
		l.editors[name] = true
	}
	return l
}

// authenticate returns the user for valid credentials of a listed account.
func (l *localAccess) authenticate(username, password string) (*User, error) {
	if !l.editors[username] {
		return nil, fmt.Errorf("%s is not a local editor", username)
	}
	if err := l.checker.CheckPassword(username, password); err != nil {
		return nil, err
	}
	return &User{
		ID:     "local:" + username,
		Name:   username,
		Groups: []string{"local"},
		Role:   RoleEditor,
		Local:  true,
	}, nil
}

// authenticateLocal handles a local request without a session.
func (p *Provider) authenticateLocal(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if p.local == nil {
		log.Printf("Auth: local access from %s refused, no local editors configured", r.Host)
		writeJSONError(w, http.StatusForbidden, "local access not configured")
		return
	}

	username, password, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", localRealm)
		writeJSONError(w, http.StatusUnauthorized, "local authentication required")
		return
	}

	user, err := p.local.authenticate(username, password)
	if err != nil {
		log.Printf("Auth: local sign-in failed: %v", err)
		w.Header().Set("WWW-Authenticate", localRealm)
		writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	// Local hosts are usually plain http
	if err := p.startSession(w, user, false); err != nil {
		log.Printf("Auth: failed to create session: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	log.Printf("Auth: local editor %s signed in from %s", username, r.Host)
	next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
}
