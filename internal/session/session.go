// Package session implements the cookie-backed login gate and the per-session
// state handed to page handlers through the request context.
package session

import (
	"context"
	"crypto/subtle"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"

	"github.com/mohammed-shakir/gapminder-dash/internal/core/config"
)

const (
	cookieName    = "gapminder_session"
	keyLoggedIn   = "logged_in"
	keySessionID  = "sid"
	keySubmission = "submission"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Submission is the last Input page form the user sent. Lat and Lon are NaN
// when the form value did not parse; LatText and LonText keep what was typed.
type Submission struct {
	ID          string
	Lat         float64
	Lon         float64
	LatText     string
	LonText     string
	Dataset     string
	Country     string
	SubmittedAt time.Time
}

// State is the per-session view loaded for every request.
type State struct {
	LoggedIn   bool
	ID         string
	Submission *Submission
}

func init() {
	gob.Register(Submission{})
}

type ctxKey struct{}

// WithState stores s in ctx; Load does this for real requests.
func WithState(ctx context.Context, s State) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the state loaded for this request, or the zero (logged out) state.
func FromContext(ctx context.Context) State {
	s, _ := ctx.Value(ctxKey{}).(State)
	return s
}

type Option func(*Manager)

// WithBcryptCost lowers the hashing cost, for tests.
func WithBcryptCost(cost int) Option {
	return func(m *Manager) { m.cost = cost }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// Manager owns the cookie store and the single configured credential pair.
type Manager struct {
	store    *sessions.CookieStore
	username string
	hash     []byte
	cost     int
	log      *slog.Logger
}

func NewManager(cfg config.AuthCfg, opts ...Option) (*Manager, error) {
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret is required")
	}
	if cfg.Username == "" {
		return nil, errors.New("auth username is required")
	}
	m := &Manager{username: cfg.Username, cost: bcrypt.DefaultCost, log: slog.Default()}
	for _, o := range opts {
		o(m)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), m.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	m.hash = hash

	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	maxAge := int(cfg.SessionMaxAge / time.Second)
	if maxAge <= 0 {
		maxAge = 12 * 60 * 60
	}
	store.MaxAge(maxAge)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.SameSite = http.SameSiteLaxMode
	store.Options.Secure = cfg.SecureCookie
	m.store = store
	return m, nil
}

// Load reads the session cookie and puts the resulting State in the request context.
// A missing or tampered cookie yields the logged-out state.
func (m *Manager) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.store.Get(r, cookieName)
		if err != nil {
			m.log.DebugContext(r.Context(), "discarding unreadable session cookie", "err", err)
		}
		next.ServeHTTP(w, r.WithContext(WithState(r.Context(), stateOf(s))))
	})
}

func stateOf(s *sessions.Session) State {
	if s == nil {
		return State{}
	}
	var st State
	st.LoggedIn, _ = s.Values[keyLoggedIn].(bool)
	st.ID, _ = s.Values[keySessionID].(string)
	if sub, ok := s.Values[keySubmission].(Submission); ok {
		st.Submission = &sub
	}
	return st
}

// Exempt reports whether a path is served without logging in.
func Exempt(path string) bool {
	switch path {
	case "/login", "/logout", "/healthz", "/readyz", "/metrics", "/favicon.ico":
		return true
	}
	return strings.HasPrefix(path, "/static/")
}

// Gate redirects every non-exempt request to /login unless the session is logged in. It must run after Load.
func (m *Manager) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Exempt(r.URL.Path) || FromContext(r.Context()).LoggedIn {
			next.ServeHTTP(w, r)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})
}

// CheckCredentials compares against the configured pair without leaking which part was wrong.
func (m *Manager) CheckCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(m.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(m.hash, []byte(password))
	return userOK && passErr == nil
}

// Login marks the session authenticated and returns its new id.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, username, password string) (string, error) {
	if !m.CheckCredentials(username, password) {
		return "", ErrInvalidCredentials
	}
	s, _ := m.store.Get(r, cookieName)
	// fresh values on every login so a previous user's submission is never carried over
	s.Values = map[any]any{
		keyLoggedIn:  true,
		keySessionID: uuid.NewString(),
	}
	if err := s.Save(r, w); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return s.Values[keySessionID].(string), nil
}

// Logout clears the flag and the submission and expires the cookie.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	s, _ := m.store.Get(r, cookieName)
	s.Values = map[any]any{}
	s.Options.MaxAge = -1
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SetSubmission stores the latest Input page values, assigning an id if sub has none.
func (m *Manager) SetSubmission(w http.ResponseWriter, r *http.Request, sub Submission) (Submission, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	s, _ := m.store.Get(r, cookieName)
	s.Values[keySubmission] = sub
	if err := s.Save(r, w); err != nil {
		return Submission{}, fmt.Errorf("save session: %w", err)
	}
	return sub, nil
}
