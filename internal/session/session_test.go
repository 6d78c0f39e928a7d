package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mohammed-shakir/gapminder-dash/internal/core/config"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthCfg{
		Username:      "admin",
		Password:      "password",
		SessionSecret: "your_secret_key_here",
		SessionMaxAge: time.Hour,
	}, WithBcryptCost(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

// stateEcho reports what the gated handler saw.
func stateEcho(got *State) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func cookiesFrom(rr *httptest.ResponseRecorder) []*http.Cookie {
	return rr.Result().Cookies()
}

func login(t *testing.T, m *Manager, user, pass string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	var err error
	m.Load(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err = m.Login(w, r, user, pass)
	})).ServeHTTP(rr, req)
	return rr, err
}

func TestGate_RedirectsWhenLoggedOut(t *testing.T) {
	m := newManager(t)
	var seen State
	h := m.Load(m.Gate(stateEcho(&seen)))

	for _, path := range []string{"/", "/output", "/input", "/download/filtered_gapminder.csv", "/api/update"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/login" {
			t.Fatalf("%s: status=%d location=%q", path, rr.Code, rr.Header().Get("Location"))
		}
	}
	for _, path := range []string{"/login", "/logout", "/static/app.js", "/healthz", "/metrics"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s should be exempt, status=%d", path, rr.Code)
		}
	}
}

func TestLogin_WrongCredentials(t *testing.T) {
	m := newManager(t)
	for _, c := range [][2]string{{"admin", "wrong"}, {"root", "password"}, {"", ""}} {
		rr, err := login(t, m, c[0], c[1])
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%v: want ErrInvalidCredentials, got %v", c, err)
		}
		if len(cookiesFrom(rr)) != 0 {
			t.Fatalf("%v: failed login must not set a cookie", c)
		}
	}
}

func TestLogin_ThenGatePasses(t *testing.T) {
	m := newManager(t)
	rr, err := login(t, m, "admin", "password")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	cookies := cookiesFrom(rr)
	if len(cookies) != 1 || !cookies[0].HttpOnly {
		t.Fatalf("cookies=%+v", cookies)
	}

	var seen State
	h := m.Load(m.Gate(stateEcho(&seen)))
	req := httptest.NewRequest(http.MethodGet, "/output", nil)
	req.AddCookie(cookies[0])
	out := httptest.NewRecorder()
	h.ServeHTTP(out, req)
	if out.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", out.Code)
	}
	if !seen.LoggedIn || seen.ID == "" || seen.Submission != nil {
		t.Fatalf("state=%+v", seen)
	}
}

func TestSubmission_PersistsAcrossRequests(t *testing.T) {
	m := newManager(t)
	rr, err := login(t, m, "admin", "password")
	if err != nil {
		t.Fatal(err)
	}
	cookie := cookiesFrom(rr)[0]

	var stored Submission
	submit := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/input", nil)
	req.AddCookie(cookie)
	m.Load(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stored, err = m.SetSubmission(w, r, Submission{Lat: 39, Lon: -79, Dataset: "gapminder", Country: "United States"})
	})).ServeHTTP(submit, req)
	if err != nil {
		t.Fatalf("SetSubmission: %v", err)
	}
	if stored.ID == "" || stored.SubmittedAt.IsZero() {
		t.Fatalf("stored=%+v", stored)
	}

	var seen State
	next := httptest.NewRequest(http.MethodGet, "/output", nil)
	next.AddCookie(cookiesFrom(submit)[0])
	m.Load(m.Gate(stateEcho(&seen))).ServeHTTP(httptest.NewRecorder(), next)
	if !seen.LoggedIn || seen.Submission == nil {
		t.Fatalf("state=%+v", seen)
	}
	if seen.Submission.Country != "United States" || seen.Submission.ID != stored.ID || seen.Submission.Lat != 39 {
		t.Fatalf("submission=%+v", seen.Submission)
	}
}

func TestLogout_ExpiresSession(t *testing.T) {
	m := newManager(t)
	rr, err := login(t, m, "admin", "password")
	if err != nil {
		t.Fatal(err)
	}

	out := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(cookiesFrom(rr)[0])
	m.Load(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := m.Logout(w, r); err != nil {
			t.Errorf("Logout: %v", err)
		}
	})).ServeHTTP(out, req)

	cookies := cookiesFrom(out)
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("logout should expire the cookie, got %+v", cookies)
	}
}

func TestLoad_TamperedCookieIsLoggedOut(t *testing.T) {
	m := newManager(t)
	var seen State
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "forged"})
	rr := httptest.NewRecorder()
	m.Load(m.Gate(stateEcho(&seen))).ServeHTTP(rr, req)
	if rr.Code != http.StatusFound {
		t.Fatalf("status=%d want redirect", rr.Code)
	}

	other, err := NewManager(config.AuthCfg{Username: "admin", Password: "password", SessionSecret: "another"}, WithBcryptCost(bcrypt.MinCost))
	if err != nil {
		t.Fatal(err)
	}
	lrr, err := login(t, other, "admin", "password")
	if err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookiesFrom(lrr)[0])
	rr = httptest.NewRecorder()
	m.Load(m.Gate(stateEcho(&seen))).ServeHTTP(rr, req)
	if rr.Code != http.StatusFound {
		t.Fatalf("cookie signed with another secret accepted, status=%d", rr.Code)
	}
}

func TestNewManager_Validation(t *testing.T) {
	if _, err := NewManager(config.AuthCfg{Username: "admin"}); err == nil {
		t.Fatal("expected error without secret")
	}
	if _, err := NewManager(config.AuthCfg{SessionSecret: "s"}); err == nil {
		t.Fatal("expected error without username")
	}
}
