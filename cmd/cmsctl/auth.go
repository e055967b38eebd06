package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/debemdeboas/pages-admin/internal/api"
	"github.com/debemdeboas/pages-admin/internal/config"
	"github.com/debemdeboas/pages-admin/internal/model"
)

const envPassword = "CMS_PASSWORD"

func (a *App) credentials(email, name string, withName bool) model.Credentials {
	if email == "" {
		email = a.ask("Email: ")
	}
	if withName && name == "" {
		name = a.ask("Name: ")
	}
	password := os.Getenv(envPassword)
	if password == "" {
		password = a.ask("Password: ")
	}
	return model.Credentials{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email), Password: password}
}

func newLoginCmd(app *App) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the token in the session database",
		Long:  "Sign in with email and password. The password is read from " + envPassword + " or prompted for.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds := app.credentials(email, "", false)
			if _, err := app.client.Login(app.ctx(cmd), creds); err != nil {
				return fmt.Errorf("%s", api.MessageOr(err, config.ErrLoginFailed))
			}
			app.success("Logged in as %s", creds.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.client.Logout(); err != nil {
				return err
			}
			app.success("Logged out")
			return nil
		},
	}
}

func newRegisterCmd(app *App) *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a backend account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds := app.credentials(email, name, true)
			if err := app.client.Register(app.ctx(cmd), creds); err != nil {
				return fmt.Errorf("%s", api.MessageOr(err, config.ErrRegisterFailed))
			}
			app.success("Registered %s. You can now run `cmsctl login`.", creds.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	return cmd
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the backend and whether a session is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(app.out, "API:     %s\n", config.AppConfig.API.BaseURL)
			if _, ok := app.client.Session().Get(); ok {
				fmt.Fprintf(app.out, "Session: %s\n", okStyle.Render("signed in"))
			} else {
				fmt.Fprintf(app.out, "Session: %s\n", warnStyle.Render("signed out"))
			}
			return nil
		},
	}
}
