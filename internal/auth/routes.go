package auth

import (
	"html/template"
	"io/fs"
	"net/http"

	"github.com/debemdeboas/pages-admin/internal/config"
	"github.com/debemdeboas/pages-admin/internal/routes"
)

// RegisterAuthRoutes wires the login and logout endpoints. They sit outside RequireSession.
func RegisterAuthRoutes(mux *http.ServeMux, provider AuthProvider, files fs.FS) error {
	tmpl, err := template.ParseFS(
		files,
		config.TemplatesLocalDir+"/"+config.TemplateLayout,
		config.TemplatesLocalDir+"/"+config.TemplateLogin,
	)
	if err != nil {
		return err
	}

	mux.HandleFunc("GET "+routes.AuthLogin, LoginPageHandler(provider, tmpl))
	mux.HandleFunc("POST "+routes.AuthLogin, LoginHandler(provider, tmpl))
	mux.HandleFunc("POST "+routes.AuthLogout, LogoutHandler(provider))
	return nil
}
