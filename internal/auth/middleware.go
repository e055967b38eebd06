package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/debemdeboas/pages-admin/internal/config"
	"github.com/debemdeboas/pages-admin/internal/routes"
	"github.com/debemdeboas/pages-admin/internal/session"
)

// LoginURL is the login page that returns to target afterwards.
func LoginURL(target string) string {
	if target == "" || target == routes.RootPath {
		return routes.AuthLogin
	}
	return routes.AuthLogin + "?redirect=" + url.QueryEscape(target)
}

// RedirectToLogin sends the browser to the login page, through HX-Redirect for htmx requests.
func RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	back := r.URL.RequestURI()
	if r.Method != http.MethodGet {
		// Return to the page the form was on, not to the form's action.
		back = routes.RootPath
		if ref, err := url.Parse(r.Header.Get("Referer")); err == nil && ref.Path != "" {
			back = ref.RequestURI()
		}
	}
	target := LoginURL(back)

	if r.Header.Get(config.HHxRequest) != "" {
		w.Header().Set(config.HHxRedirect, target)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// RequireSession lets a request through only when a credential is stored.
func RequireSession(store session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := store.Get(); !ok {
				authLogger.Debug().Str("path", r.URL.Path).Msg("No session, redirecting to login")
				RedirectToLogin(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithLoggedIn(r.Context())))
		})
	}
}

// SafeRedirect keeps post-login redirects on this site.
func SafeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return routes.RootPath
	}
	if strings.HasPrefix(target, routes.AuthLogin) {
		return routes.RootPath
	}
	return target
}
