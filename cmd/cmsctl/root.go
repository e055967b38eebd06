package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/debemdeboas/pages-admin/internal/api"
	"github.com/debemdeboas/pages-admin/internal/auth"
	"github.com/debemdeboas/pages-admin/internal/config"
	"github.com/debemdeboas/pages-admin/internal/db"
	"github.com/debemdeboas/pages-admin/internal/logger"
	"github.com/debemdeboas/pages-admin/internal/session"
)

// App carries the flags and the backend connection shared by every command.
type App struct {
	ConfigPath string
	SessionDB  string
	LogLevel   string
	Yes        bool

	in  *bufio.Reader
	out io.Writer
	log zerolog.Logger

	database *db.SQLite
	client   *api.Client
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func NewRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	app := &App{in: bufio.NewReader(in), out: out}

	cmd := &cobra.Command{
		Use:          "cmsctl",
		Short:        "Manage the website's pages and sections from the terminal",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Sign in once; the token is kept in the session database
  cmsctl login --email admin@example.com

  # Move the "about" page to the top
  cmsctl pages list
  cmsctl pages reorder <page-id> 0

  # Push a section written in markdown with a TOML header
  cmsctl sections push --page <page-id> hero.md
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.connect()
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return app.close()
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr(config.EnvConfigPath, "config.yaml"), "Path to the YAML config file")
	cmd.PersistentFlags().StringVar(&app.SessionDB, "session-db", "", "Session database (default: session.path from the config)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "warn", "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVarP(&app.Yes, "yes", "y", false, "Answer yes to confirmation prompts")

	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newRegisterCmd(app))
	cmd.AddCommand(newStatusCmd(app))
	cmd.AddCommand(newPagesCmd(app))
	cmd.AddCommand(newSectionsCmd(app))
	cmd.AddCommand(newExportCmd(app))

	return cmd
}

func (a *App) connect() error {
	godotenv.Load()

	if err := config.LoadConfig(a.ConfigPath); err != nil {
		return err
	}

	a.log = logger.New(a.LogLevel)
	config.SetLogger(a.log)
	db.SetLogger(a.log)
	session.SetLogger(a.log)
	auth.SetLogger(a.log)

	path := a.SessionDB
	if path == "" {
		path = config.AppConfig.Session.Path
	}
	a.database = db.NewSQLite(path)
	store, err := session.NewSQLiteStore(a.database)
	if err != nil {
		return fmt.Errorf(config.ErrInitializeDatabaseFmt, err)
	}

	a.client, err = api.New(config.AppConfig.API.BaseURL, store,
		api.WithTimeout(config.AppConfig.API.RequestTimeout()),
		api.WithLogger(a.log),
		api.OnSessionInvalid(func() {
			fmt.Fprintln(a.out, warnStyle.Render("Session expired. Run `cmsctl login` to sign in again."))
		}),
	)
	return err
}

func (a *App) close() error {
	if a.database == nil {
		return nil
	}
	return a.database.Close()
}

// requireSession fails early instead of sending an unauthenticated request.
func (a *App) requireSession() error {
	if _, ok := a.client.Session().Get(); !ok {
		// Post-run hooks are skipped when a pre-run fails.
		a.close()
		return fmt.Errorf("%s Run `cmsctl login` first", config.ErrSessionRequired)
	}
	return nil
}

func (a *App) ctx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
