package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/debemdeboas/pages-admin/internal/model"
	"github.com/debemdeboas/pages-admin/internal/session"
)

const (
	pathLogin    = "/auth/login"
	pathRegister = "/auth/register"
)

var errMissingToken = errors.New("login response did not contain a token")

// Login exchanges credentials for a token and stores it. The token is read
// from data.token and nothing else.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (session.Credential, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, pathLogin, nil, creds, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errMissingToken
	}

	cred := session.Credential(out.Token)
	if err := c.store.Set(cred); err != nil {
		return "", err
	}
	c.logger.Info().Str("email", creds.Email).Msg("Logged in")
	return cred, nil
}

// Logout forgets the stored credential. The backend keeps no server-side session to end.
func (c *Client) Logout() error {
	return c.store.Clear()
}

func (c *Client) Register(ctx context.Context, creds model.Credentials) error {
	return c.doJSON(ctx, http.MethodPost, pathRegister, nil, creds, nil)
}
