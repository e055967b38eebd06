package auth

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/pages-admin/internal/api"
	"github.com/debemdeboas/pages-admin/internal/config"
	"github.com/debemdeboas/pages-admin/internal/model"
	"github.com/debemdeboas/pages-admin/internal/routes"
)

type loginData struct {
	*model.PageData
	Email       string
	RedirectURL string
}

func renderLogin(w http.ResponseWriter, r *http.Request, tmpl *template.Template, status int, data loginData) {
	l := zerolog.Ctx(r.Context())
	w.Header().Set(config.HCType, config.CTypeHTML)
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, config.TemplateLayout, data); err != nil {
		l.Error().Err(err).Msg("Failed to render login template")
	}
}

// LoginPageHandler serves the login form. An operator who already has a session goes straight on.
func LoginPageHandler(provider AuthProvider, tmpl *template.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		redirectURL := SafeRedirect(r.URL.Query().Get("redirect"))
		if _, ok := provider.Session().Get(); ok {
			http.Redirect(w, r, redirectURL, http.StatusFound)
			return
		}
		renderLogin(w, r, tmpl, http.StatusOK, loginData{
			PageData:    PageData(r),
			RedirectURL: redirectURL,
		})
	}
}

// LoginHandler exchanges the submitted email and password for a backend token.
func LoginHandler(provider AuthProvider, tmpl *template.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := zerolog.Ctx(r.Context())
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		creds := model.Credentials{
			Email:    strings.TrimSpace(r.PostFormValue("email")),
			Password: r.PostFormValue("password"),
		}
		redirectURL := SafeRedirect(r.PostFormValue("redirect"))

		if _, err := provider.Login(r.Context(), creds); err != nil {
			l.Warn().Err(err).Str("email", creds.Email).Msg("Login failed")
			pd := PageData(r)
			pd.Error = api.MessageOr(err, config.ErrLoginFailed)
			renderLogin(w, r, tmpl, http.StatusUnauthorized, loginData{
				PageData:    pd,
				Email:       creds.Email,
				RedirectURL: redirectURL,
			})
			return
		}

		if r.Header.Get(config.HHxRequest) != "" {
			w.Header().Set(config.HHxRedirect, redirectURL)
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, redirectURL, http.StatusSeeOther)
	}
}

func LogoutHandler(provider AuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := provider.Logout(); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to clear session")
			http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
			return
		}
		if r.Header.Get(config.HHxRequest) != "" {
			w.Header().Set(config.HHxRedirect, routes.AuthLogin)
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, routes.AuthLogin, http.StatusSeeOther)
	}
}
