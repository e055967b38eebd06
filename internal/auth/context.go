package auth

import (
	"context"
	"net/http"

	"github.com/debemdeboas/pages-admin/internal/model"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const ContextKeyLoggedIn ContextKey = "loggedIn"

func ContextWithLoggedIn(ctx context.Context) context.Context {
	return context.WithValue(ctx, ContextKeyLoggedIn, true)
}

func LoggedInFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(ContextKeyLoggedIn).(bool)
	return v
}

// PageData is model.NewPageData with the login state filled in.
func PageData(r *http.Request) *model.PageData {
	pd := model.NewPageData(r)
	pd.LoggedIn = LoggedInFromContext(r.Context())
	return pd
}
