package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/debemdeboas/pages-admin/internal/api"
	"github.com/debemdeboas/pages-admin/internal/auth"
	"github.com/debemdeboas/pages-admin/internal/cache"
	"github.com/debemdeboas/pages-admin/internal/config"
	"github.com/debemdeboas/pages-admin/internal/db"
	"github.com/debemdeboas/pages-admin/internal/listsync"
	"github.com/debemdeboas/pages-admin/internal/logger"
	"github.com/debemdeboas/pages-admin/internal/model"
	"github.com/debemdeboas/pages-admin/internal/render"
	"github.com/debemdeboas/pages-admin/internal/repository/editor"
	"github.com/debemdeboas/pages-admin/internal/routes"
	"github.com/debemdeboas/pages-admin/internal/session"
	"github.com/debemdeboas/pages-admin/internal/sse"
	"github.com/debemdeboas/pages-admin/internal/theme"
	"github.com/debemdeboas/pages-admin/internal/upload"
	"github.com/debemdeboas/pages-admin/internal/util"
)

//go:embed static/* templates/*
var content embed.FS

const (
	draftMaxAge   = 12 * time.Hour
	sweepInterval = 10 * time.Minute
)

// app is the web console: the pages dashboard, the editors and the session guard.
type app struct {
	log     zerolog.Logger
	files   fs.FS
	client  *api.Client
	clients *sse.SSEClients
	pages   *listsync.Controller[model.Page]
	editor  *editor.Handler

	dashboardTmpl *template.Template
}

func newApp(l zerolog.Logger, files fs.FS, store session.Store, uploaderFor func(*api.Client) (upload.Uploader, error)) (*app, error) {
	a := &app{log: l, files: files, clients: sse.NewSSEClients()}

	client, err := api.New(config.AppConfig.API.BaseURL, store,
		api.WithTimeout(config.AppConfig.API.RequestTimeout()),
		api.WithLogger(l),
		api.OnSessionInvalid(func() {
			a.clients.Broadcast(sse.TopicSession, sse.Event{Name: "expired", Data: routes.AuthLogin})
		}),
	)
	if err != nil {
		return nil, err
	}
	a.client = client

	uploader, err := uploaderFor(client)
	if err != nil {
		return nil, err
	}

	a.pages = listsync.NewPages(client, listsync.WithLogger[model.Page](l))
	a.pages.OnChange(func(listsync.Snapshot[model.Page]) {
		a.clients.Broadcast(sse.TopicPages, sse.Event{Name: "reload", Data: "pages"})
	})

	a.editor, err = editor.NewHandler(
		editor.NewMemoryRepository(),
		client,
		upload.New(uploader, upload.WithLogger(l)),
		a.clients,
		files,
	)
	if err != nil {
		return nil, err
	}

	a.dashboardTmpl, err = template.ParseFS(files,
		config.TemplatesLocalDir+"/"+config.TemplateLayout,
		config.TemplatesLocalDir+"/"+config.TemplateDashboard,
		config.TemplatesLocalDir+"/"+config.TemplatePagesPartial,
	)
	if err != nil {
		return nil, fmt.Errorf("parsing dashboard templates: %w", err)
	}
	return a, nil
}

func (a *app) handler() (http.Handler, error) {
	static, err := fs.Sub(a.files, config.StaticLocalDir)
	if err != nil {
		return nil, err
	}
	n, err := cache.HashStatic(static, config.StaticUrlPath)
	if err != nil {
		return nil, fmt.Errorf("hashing static files: %w", err)
	}
	a.log.Debug().Int("files", n).Msg("Static assets hashed")

	protected := http.NewServeMux()
	protected.HandleFunc("GET "+routes.RootPath+"{$}", a.serveDashboard)
	protected.HandleFunc("GET "+routes.PagesPartial, a.servePagesPartial)
	protected.HandleFunc("POST "+routes.PagesReorder, a.reorderPages)
	protected.HandleFunc("DELETE "+routes.PageDelete, a.deletePage)
	protected.HandleFunc("GET "+routes.SSEPath, a.clients.Handler)
	a.editor.RegisterRoutes(protected)

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+routes.RobotsPath, serveRobots)
	mux.Handle("GET "+config.StaticUrlPath, http.StripPrefix(config.StaticUrlPath, http.FileServer(http.FS(static))))
	mux.HandleFunc("POST "+routes.ThemeToggle, serveThemePostToggle)
	mux.HandleFunc("POST "+routes.SyntaxThemeSet, serveSyntaxThemePostSet)
	mux.HandleFunc("GET "+routes.SyntaxThemeGet, serveSyntaxThemeGetTheme)
	mux.Handle("GET "+routes.MetricsPath, promhttp.Handler())
	if err := auth.RegisterAuthRoutes(mux, a.client, a.files); err != nil {
		return nil, fmt.Errorf("registering auth routes: %w", err)
	}
	mux.Handle(routes.RootPath, auth.RequireSession(a.client.Session())(protected))

	secured := secureHeaders(mux.ServeHTTP)
	gzipped := gzhttp.GzipHandler(secured)
	compressed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Event streams must not sit in the gzip buffer.
		if r.URL.Path == routes.SSEPath {
			secured(w, r)
			return
		}
		gzipped.ServeHTTP(w, r)
	})

	withLog := hlog.NewHandler(a.log)(
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("Request")
		})(cacheIt(compressed)),
	)
	return withLog, nil
}

type pagesData struct {
	Loaded bool
	Error  string
	Pages  []model.Page
}

func (a *app) pagesView() pagesData {
	snap := a.pages.Snapshot()
	return pagesData{Loaded: snap.Loaded, Error: snap.Message, Pages: snap.Items}
}

func (a *app) renderPages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(config.HCType, config.CTypeHTML)
	if err := a.dashboardTmpl.ExecuteTemplate(w, config.TemplatePagesPartial, a.pagesView()); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to render pages list")
	}
}

func (a *app) serveDashboard(w http.ResponseWriter, r *http.Request) {
	if err := a.pages.Load(r.Context()); errors.Is(err, api.ErrSessionInvalid) {
		auth.RedirectToLogin(w, r)
		return
	}

	data := struct {
		*model.PageData
		List pagesData
	}{
		PageData: auth.PageData(r),
		List:     a.pagesView(),
	}

	w.Header().Set(config.HCType, config.CTypeHTML)
	if err := a.dashboardTmpl.ExecuteTemplate(w, config.TemplateLayout, data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to render dashboard")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
	}
}

// servePagesPartial renders the current list. It only refetches on request,
// since every reload already triggers an SSE round that lands here.
func (a *app) servePagesPartial(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") != "" {
		if err := a.pages.Load(r.Context()); errors.Is(err, api.ErrSessionInvalid) {
			auth.RedirectToLogin(w, r)
			return
		}
	}
	a.renderPages(w, r)
}

func (a *app) reorderPages(w http.ResponseWriter, r *http.Request) {
	drop, err := editor.ParseDrop(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	done := a.pages.Reorder(r.Context(), drop)
	select {
	case err := <-done:
		if errors.Is(err, listsync.ErrInvalidDrop) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			a.log.Warn().Err(err).Msg(config.ErrReorderRefetch)
		}
	default:
		go func() {
			if err := <-done; err != nil {
				a.log.Warn().Err(err).Msg(config.ErrReorderRefetch)
			}
		}()
	}
	a.renderPages(w, r)
}

func (a *app) deletePage(w http.ResponseWriter, r *http.Request) {
	confirmed := editor.Confirmed(r)
	_, err := a.pages.Delete(r.Context(), r.PathValue("id"), func(model.Page) bool { return confirmed })
	switch {
	case errors.Is(err, api.ErrSessionInvalid):
		auth.RedirectToLogin(w, r)
		return
	case errors.Is(err, listsync.ErrUnknownItem):
		http.NotFound(w, r)
		return
	}
	a.renderPages(w, r)
}

// sweepDrafts forgets abandoned edit sessions until ctx ends.
func (a *app) sweepDrafts(ctx context.Context) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if n := a.editor.Sweep(draftMaxAge); n > 0 {
				a.log.Info().Int("drafts", n).Msg("Swept abandoned drafts")
			}
		case <-ctx.Done():
			return
		}
	}
}

func openSessionStore(l zerolog.Logger) (session.Store, func(), error) {
	if config.AppConfig.Session.Backend != "sqlite" {
		l.Warn().Str("backend", config.AppConfig.Session.Backend).Msg("Session kept in memory, it will not survive a restart")
		return session.NewMemoryStore(), func() {}, nil
	}

	database := db.NewSQLite(config.AppConfig.Session.Path)
	if err := database.InitDB(); err != nil {
		return nil, nil, fmt.Errorf(config.ErrInitializeDatabaseFmt, err)
	}
	store, err := session.NewSQLiteStore(database)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return store, func() { database.Close() }, nil
}

func uploaderFromConfig(ctx context.Context) func(*api.Client) (upload.Uploader, error) {
	return func(c *api.Client) (upload.Uploader, error) {
		if config.AppConfig.Upload.Target != "s3" {
			return c, nil
		}
		return upload.NewS3UploaderFromConfig(ctx, config.AppConfig.Upload.S3,
			os.Getenv(config.EnvS3AccessKey),
			os.Getenv(config.EnvS3SecretKey),
		)
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file loaded")
	}

	configPath := os.Getenv(config.EnvConfigPath)
	if configPath == "" {
		configPath = "config.yaml"
	}
	if err := config.LoadConfig(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := logger.New(config.AppConfig.Logging.Level)
	config.SetLogger(l)
	db.SetLogger(l)
	session.SetLogger(l)
	auth.SetLogger(l)
	render.SetLogger(l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openSessionStore(l)
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer closeStore()

	a, err := newApp(l, content, store, uploaderFromConfig(ctx))
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to initialize console")
	}
	defer a.pages.Close()

	h, err := a.handler()
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to build routes")
	}

	go a.sweepDrafts(ctx)

	srv := &http.Server{
		Addr:              config.AppConfig.Server.Host + ":" + config.AppConfig.Server.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	l.Info().Str("addr", srv.Addr).Str("api", config.AppConfig.API.BaseURL).Msg("Console listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Fatal().Err(err).Msg("Server failed")
	}
}

func serveRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(config.HCType, "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("User-agent: *\nDisallow: /"))
}

func cacheIt(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCacheControl, "no-cache")
		w.Header().Set("Vary", "Cookie")

		if hash, ok := cache.StaticETag(r.URL.Path); ok {
			w.Header().Set(config.HCacheControl, "public, max-age=3600")
			w.Header().Set(config.HETag, hash)
		}

		h.ServeHTTP(w, r)
	})
}

func secureHeaders(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "same-origin")

		h(w, r)
	}
}

func serveThemePostToggle(w http.ResponseWriter, r *http.Request) {
	newTheme := theme.Opposite(theme.GetThemeFromRequest(r))

	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieTheme,
		Value:    newTheme,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})

	syntaxTheme := theme.GetDefaultSyntaxTheme(newTheme)
	if cookie, err := r.Cookie(config.CookieSyntaxTheme); err == nil && theme.IsSyntaxTheme(cookie.Value) {
		syntaxTheme = cookie.Value
	}

	w.Header().Set(config.HHxTrigger, fmt.Sprintf(`{"themeChanged":{"value":%q,"syntaxTheme":%q}}`, newTheme, syntaxTheme))
	w.Header().Set(config.HCType, config.CTypeHTML)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(theme.GetThemeIcon(newTheme)))
}

func serveSyntaxThemePostSet(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("syntax-theme-select")
	if !theme.IsSyntaxTheme(name) {
		http.Error(w, "unknown syntax theme", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieSyntaxTheme,
		Value:    name,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeSyntaxCSS(w, name)
}

func serveSyntaxThemeGetTheme(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("theme")
	if !theme.IsSyntaxTheme(name) {
		http.NotFound(w, r)
		return
	}
	writeSyntaxCSS(w, name)
}

func writeSyntaxCSS(w http.ResponseWriter, name string) {
	css := []byte(theme.GenerateSyntaxCSS(name))
	w.Header().Set(config.HCType, config.CTypeCSS)
	w.Header().Set(config.HETag, util.ContentHash(css))
	w.WriteHeader(http.StatusOK)
	w.Write(css)
}
