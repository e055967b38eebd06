// Package auth puts the backend login behind the console's own pages and guards
// every other route with the stored credential.
package auth

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/pages-admin/internal/model"
	"github.com/debemdeboas/pages-admin/internal/session"
)

var authLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	authLogger = l
}

// AuthProvider is the backend's identity surface. *api.Client implements it.
type AuthProvider interface {
	Login(ctx context.Context, creds model.Credentials) (session.Credential, error)
	Register(ctx context.Context, creds model.Credentials) error
	Logout() error
	Session() session.Store
}
