package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/debemdeboas/pages-admin/internal/api"
	"github.com/debemdeboas/pages-admin/internal/config"
	"github.com/debemdeboas/pages-admin/internal/model"
	"github.com/debemdeboas/pages-admin/internal/session"
)

type fakeProvider struct {
	store    *session.MemoryStore
	password string
	logins   []model.Credentials
}

func (f *fakeProvider) Login(_ context.Context, creds model.Credentials) (session.Credential, error) {
	f.logins = append(f.logins, creds)
	if creds.Password != f.password {
		return "", &api.Error{Status: http.StatusUnauthorized, Message: "Invalid credentials"}
	}
	f.store.Set("tok")
	return "tok", nil
}

func (f *fakeProvider) Register(context.Context, model.Credentials) error { return nil }
func (f *fakeProvider) Logout() error                                     { return f.store.Clear() }
func (f *fakeProvider) Session() session.Store                            { return f.store }

var testTemplates = fstest.MapFS{
	config.TemplatesLocalDir + "/" + config.TemplateLayout: {Data: []byte(`{{template "content" .}}`)},
	config.TemplatesLocalDir + "/" + config.TemplateLogin: {Data: []byte(
		`{{define "content"}}error={{.Error}};email={{.Email}};redirect={{.RedirectURL}}{{end}}`)},
}

func newMux(t *testing.T) (*http.ServeMux, *fakeProvider) {
	t.Helper()
	p := &fakeProvider{store: session.NewMemoryStore(), password: "secret"}
	mux := http.NewServeMux()
	if err := RegisterAuthRoutes(mux, p, testTemplates); err != nil {
		t.Fatalf("RegisterAuthRoutes: %v", err)
	}
	return mux, p
}

func postLogin(mux http.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestLoginRedirectsBack(t *testing.T) {
	mux, p := newMux(t)

	rec := postLogin(mux, url.Values{"email": {" admin@example.com "}, "password": {"secret"}, "redirect": {"/pages/p1"}})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/pages/p1" {
		t.Fatalf("Expected redirect to /pages/p1, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if p.logins[0].Email != "admin@example.com" {
		t.Errorf("Expected trimmed email, got %q", p.logins[0].Email)
	}
	if _, ok := p.store.Get(); !ok {
		t.Error("Expected a stored credential")
	}
}

func TestLoginFailureShowsBackendMessage(t *testing.T) {
	mux, p := newMux(t)

	rec := postLogin(mux, url.Values{"email": {"admin@example.com"}, "password": {"wrong"}, "redirect": {"//evil.example"}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "error=Invalid credentials;") || !strings.Contains(body, "email=admin@example.com;") {
		t.Errorf("Expected message and kept email, got %q", body)
	}
	if !strings.Contains(body, "redirect=/") || strings.Contains(body, "evil") {
		t.Errorf("Expected an off-site redirect to be dropped, got %q", body)
	}
	if _, ok := p.store.Get(); ok {
		t.Error("Expected no credential after a failed login")
	}
}

func TestLoginPageSkipsWhenSignedIn(t *testing.T) {
	mux, p := newMux(t)
	p.store.Set("tok")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login?redirect=/pages/p2", nil))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/pages/p2" {
		t.Errorf("Expected redirect past the login page, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestLogoutClearsSession(t *testing.T) {
	mux, p := newMux(t)
	p.store.Set("tok")

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set(config.HHxRequest, "true")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Header().Get(config.HHxRedirect) != "/auth/login" {
		t.Errorf("Expected HX-Redirect to login, got %q", rec.Header().Get(config.HHxRedirect))
	}
	if _, ok := p.store.Get(); ok {
		t.Error("Expected the credential to be cleared")
	}
}

func TestRequireSession(t *testing.T) {
	store := session.NewMemoryStore()
	var loggedIn bool
	h := RequireSession(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loggedIn = LoggedInFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pages/p1?tab=ar", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/auth/login?redirect=%2Fpages%2Fp1%3Ftab%3Dar" {
		t.Fatalf("Expected login redirect, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	req := httptest.NewRequest(http.MethodPost, "/sections/s1/delete", nil)
	req.Header.Set(config.HHxRequest, "true")
	req.Header.Set("Referer", "http://localhost/pages/p1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get(config.HHxRedirect) != "/auth/login?redirect=%2Fpages%2Fp1" {
		t.Errorf("Expected htmx redirect back to the referring page, got %q", rec.Header().Get(config.HHxRedirect))
	}

	store.Set("tok")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !loggedIn {
		t.Errorf("Expected the request through with the login flag, got %d %v", rec.Code, loggedIn)
	}
}

func TestSafeRedirect(t *testing.T) {
	tests := map[string]string{
		"":                     "/",
		"/pages/p1":            "/pages/p1",
		"https://evil.example": "/",
		"//evil.example":       "/",
		"/\\evil.example":      "/",
		"/auth/login?x=1":      "/",
	}
	for in, want := range tests {
		if got := SafeRedirect(in); got != want {
			t.Errorf("SafeRedirect(%q) = %q, want %q", in, got, want)
		}
	}
}
