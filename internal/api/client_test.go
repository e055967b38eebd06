package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/debemdeboas/pages-admin/internal/model"
	"github.com/debemdeboas/pages-admin/internal/session"
)

const testToken = "tok-123"

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *session.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := session.NewMemoryStore()
	opts = append([]Option{WithHTTPClient(srv.Client())}, opts...)
	c, err := New(srv.URL+"/api", store, opts...)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c, store
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestNew(t *testing.T) {
	if _, err := New("not a url", session.NewMemoryStore()); err == nil {
		t.Error("Expected error for invalid base URL")
	}
	if _, err := New("https://cms.example/api", nil); err == nil {
		t.Error("Expected error for nil store")
	}
}

func TestAuthorizationHeader(t *testing.T) {
	var got atomic.Value
	c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
	})

	t.Run("Omitted without credential", func(t *testing.T) {
		if _, err := c.ListPages(context.Background()); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if h := got.Load().(string); h != "" {
			t.Errorf("Expected no Authorization header, got %q", h)
		}
	})

	t.Run("Bearer with credential", func(t *testing.T) {
		store.Set(testToken)
		if _, err := c.ListPages(context.Background()); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if h := got.Load().(string); h != "Bearer "+testToken {
			t.Errorf("Expected bearer header, got %q", h)
		}
	})
}

func TestSessionInvalidation(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        map[string]any
		wantCleared bool
	}{
		{"re-login message", http.StatusUnauthorized, map[string]any{"error": "Unauthorized: Please re-login to continue."}, true},
		{"no token message", http.StatusUnauthorized, map[string]any{"error": "Not authorized, no token"}, true},
		{"user not found", http.StatusUnauthorized, map[string]any{"error": "User not found"}, true},
		{"other 401 message", http.StatusUnauthorized, map[string]any{"error": "Wrong password"}, false},
		{"recognised message on 403", http.StatusForbidden, map[string]any{"error": "User not found"}, false},
		{"server error", http.StatusInternalServerError, map[string]any{"message": "boom"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var redirects int32
			c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}, OnSessionInvalid(func() { atomic.AddInt32(&redirects, 1) }))
			store.Set(testToken)

			_, err := c.ListPages(context.Background())
			if err == nil {
				t.Fatal("Expected error to reach the caller")
			}

			var apiErr *Error
			if !errors.As(err, &apiErr) || apiErr.Status != tt.status {
				t.Fatalf("Expected *Error with status %d, got %v", tt.status, err)
			}

			_, stillLoggedIn := store.Get()
			if tt.wantCleared {
				if stillLoggedIn {
					t.Error("Expected credential to be cleared")
				}
				if !errors.Is(err, ErrSessionInvalid) {
					t.Errorf("Expected ErrSessionInvalid, got %v", err)
				}
				if redirects != 1 {
					t.Errorf("Expected one redirect, got %d", redirects)
				}
			} else {
				if !stillLoggedIn {
					t.Error("Expected credential to survive")
				}
				if errors.Is(err, ErrSessionInvalid) {
					t.Error("Did not expect ErrSessionInvalid")
				}
				if redirects != 0 {
					t.Errorf("Expected no redirect, got %d", redirects)
				}
			}
		})
	}
}

func TestSessionInvalidationExactlyOnceUnderConcurrency(t *testing.T) {
	var redirects int32
	release := make(chan struct{})
	c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "User not found"})
	}, OnSessionInvalid(func() { atomic.AddInt32(&redirects, 1) }))
	store.Set(testToken)

	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ListPages(context.Background())
			errs <- err
		}()
	}
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, ErrSessionInvalid) {
			t.Errorf("Expected every caller to see ErrSessionInvalid, got %v", err)
		}
	}
	if redirects != 1 {
		t.Errorf("Expected exactly one redirect, got %d", redirects)
	}
	if _, ok := store.Get(); ok {
		t.Error("Expected credential to be cleared")
	}
}

func TestStaleInvalidationKeepsNewCredential(t *testing.T) {
	var redirects int32
	c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "User not found"})
	}, OnSessionInvalid(func() { atomic.AddInt32(&redirects, 1) }))
	store.Set("stale")

	// The operator logs in again while the old request is in flight.
	c.httpClient.Transport = reloginTransport{base: c.httpClient.Transport, store: store}

	if _, err := c.ListPages(context.Background()); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("Expected ErrSessionInvalid, got %v", err)
	}
	if cred, _ := store.Get(); cred != "fresh" {
		t.Errorf("Expected fresh credential to survive, got %q", cred)
	}
	if redirects != 0 {
		t.Errorf("Expected no redirect for a stale credential, got %d", redirects)
	}
}

type reloginTransport struct {
	base  http.RoundTripper
	store session.Store
}

func (t reloginTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	t.store.Set("fresh")
	return t.base.RoundTrip(r)
}

func TestLogin(t *testing.T) {
	t.Run("Stores data.token", func(t *testing.T) {
		c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/auth/login" || r.Method != http.MethodPost {
				t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
			}
			var creds model.Credentials
			json.NewDecoder(r.Body).Decode(&creds)
			if creds.Email != "a@b.c" || creds.Password != "pw" {
				t.Errorf("Unexpected credentials %+v", creds)
			}
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"token": testToken}, "token": "wrong-field"})
		})

		cred, err := c.Login(context.Background(), model.Credentials{Email: "a@b.c", Password: "pw"})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if cred != testToken {
			t.Errorf("Expected %q, got %q", testToken, cred)
		}
		if stored, _ := store.Get(); stored != testToken {
			t.Errorf("Expected stored token %q, got %q", testToken, stored)
		}
	})

	t.Run("Missing token", func(t *testing.T) {
		c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{}})
		})
		if _, err := c.Login(context.Background(), model.Credentials{}); err == nil {
			t.Error("Expected error for missing token")
		}
		if _, ok := store.Get(); ok {
			t.Error("Expected nothing stored")
		}
	})

	t.Run("Backend message surfaces", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid email or password"})
		})
		_, err := c.Login(context.Background(), model.Credentials{})
		if got := MessageOr(err, "fallback"); got != "Invalid email or password" {
			t.Errorf("Expected backend message, got %q", got)
		}
		if errors.Is(err, ErrSessionInvalid) {
			t.Error("A failed login must not be treated as an invalid session")
		}
	})

	t.Run("Logout clears", func(t *testing.T) {
		c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
		store.Set(testToken)
		if err := c.Logout(); err != nil {
			t.Fatal(err)
		}
		if _, ok := store.Get(); ok {
			t.Error("Expected credential cleared")
		}
	})
}

func TestPagesEndpoints(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
		body []byte
	)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.Path)
		body, _ = io.ReadAll(r.Body)
		mu.Unlock()

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/pages":
			writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{
				{"_id": "a", "name": "Home", "isActive": true},
				{"_id": "b", "name": "About"},
			}})
		case r.Method == http.MethodPost && r.URL.Path == "/api/pages":
			writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"_id": "c", "name": "New"}})
		default:
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
		}
	})
	ctx := context.Background()
	lastBody := func() []byte {
		mu.Lock()
		defer mu.Unlock()
		return body
	}

	pages, err := c.ListPages(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 || pages[0].ID != "a" || !pages[0].IsActive || pages[1].Name != "About" {
		t.Errorf("Unexpected pages %+v", pages)
	}

	created, err := c.CreatePage(ctx, model.Page{ID: "ignored", Name: "New"})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID != "c" {
		t.Errorf("Expected created id c, got %q", created.ID)
	}
	if b := lastBody(); bytes.Contains(b, []byte(`"_id"`)) {
		t.Errorf("Create must not send an id, body %s", b)
	}

	if err := c.UpdatePage(ctx, "a", model.Page{Name: "Home"}); err != nil {
		t.Fatal(err)
	}
	if err := c.ReorderPage(ctx, "a", 2); err != nil {
		t.Fatal(err)
	}
	if b := lastBody(); string(bytes.TrimSpace(b)) != `{"newPosition":2}` {
		t.Errorf("Unexpected reorder body %s", b)
	}
	if err := c.DeletePage(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"GET /api/pages",
		"POST /api/pages",
		"PUT /api/pages/a",
		"PUT /api/pages/a/reorder",
		"DELETE /api/pages/a",
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(seen, "|") != strings.Join(want, "|") {
		t.Errorf("Expected %v, got %v", want, seen)
	}
}

func TestListPagesNullData(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": nil})
	})
	pages, err := c.ListPages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if pages == nil || len(pages) != 0 {
		t.Errorf("Expected empty list, got %#v", pages)
	}
}

func TestSectionsEndpoints(t *testing.T) {
	var (
		mu        sync.Mutex
		lastQuery string
		lastBody  []byte
	)
	recorded := func() (string, []byte) {
		mu.Lock()
		defer mu.Unlock()
		return lastQuery, lastBody
	}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		lastQuery = r.URL.RawQuery
		lastBody, _ = io.ReadAll(r.Body)
		mu.Unlock()
		if r.Method == http.MethodGet && r.URL.Path == "/api/sections" {
			writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{{"_id": "s1", "isArabic": true}}})
			return
		}
		if r.Method == http.MethodGet && r.URL.Path == "/api/sections/s1" {
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"_id": "s1", "name": "Hero"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	ctx := context.Background()

	sections, err := c.ListSections(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if q, _ := recorded(); q != "pageId=p1" {
		t.Errorf("Expected pageId query, got %q", q)
	}
	if len(sections) != 1 || !sections[0].IsArabic {
		t.Errorf("Unexpected sections %+v", sections)
	}

	s, err := c.GetSection(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if s.Images == nil {
		t.Error("Expected images to default to an empty list")
	}

	err = c.ReorderSections(ctx, []model.Section{{ID: "x", Order: 7}, {ID: "y", Order: 3}})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"sections":[{"_id":"x","order":0},{"_id":"y","order":1}]}`
	if _, b := recorded(); string(bytes.TrimSpace(b)) != want {
		t.Errorf("Expected %s, got %s", want, b)
	}
}

func TestMessageOr(t *testing.T) {
	if got := MessageOr(errors.New("plain"), "fallback"); got != "fallback" {
		t.Errorf("Expected fallback, got %q", got)
	}
	err := &Error{Status: 404, Message: "Page not found"}
	if MessageOr(err, "x") != "Page not found" {
		t.Errorf("Unexpected helpers output for %v", err)
	}
}
