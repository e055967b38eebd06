package editor

import (
	"context"
	"errors"
	"fmt"
	"html"
	"html/template"
	"io/fs"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/pages-admin/internal/api"
	"github.com/debemdeboas/pages-admin/internal/auth"
	"github.com/debemdeboas/pages-admin/internal/cache"
	"github.com/debemdeboas/pages-admin/internal/config"
	"github.com/debemdeboas/pages-admin/internal/form"
	"github.com/debemdeboas/pages-admin/internal/listsync"
	"github.com/debemdeboas/pages-admin/internal/model"
	"github.com/debemdeboas/pages-admin/internal/render"
	"github.com/debemdeboas/pages-admin/internal/routes"
	"github.com/debemdeboas/pages-admin/internal/sse"
	"github.com/debemdeboas/pages-admin/internal/theme"
	"github.com/debemdeboas/pages-admin/internal/upload"
)

// Backend is the slice of the API client the editors use.
type Backend interface {
	form.PagesAPI
	form.SectionsAPI
	listsync.SectionsAPI
}

type Handler struct {
	repo     Repository
	api      Backend
	uploads  *upload.Controller
	clients  *sse.SSEClients
	sections *cache.Cache[model.PageID, *listsync.Controller[model.Section]]

	pageTmpl    *template.Template
	sectionTmpl *template.Template
}

func NewHandler(repo Repository, backend Backend, uploads *upload.Controller, clients *sse.SSEClients, files fs.FS) (*Handler, error) {
	parse := func(names ...string) (*template.Template, error) {
		paths := make([]string, len(names))
		for i, n := range names {
			paths[i] = config.TemplatesLocalDir + "/" + n
		}
		return template.New(names[0]).Funcs(templateFuncs).ParseFS(files, paths...)
	}

	pageTmpl, err := parse(config.TemplateLayout, config.TemplatePageEditor, config.TemplateSectionsPartial)
	if err != nil {
		return nil, fmt.Errorf("parsing page editor templates: %w", err)
	}
	sectionTmpl, err := parse(config.TemplateLayout, config.TemplateSectionEditor, config.TemplateImagesPartial)
	if err != nil {
		return nil, fmt.Errorf("parsing section editor templates: %w", err)
	}

	return &Handler{
		repo:        repo,
		api:         backend,
		uploads:     uploads,
		clients:     clients,
		sections:    cache.NewCache[model.PageID, *listsync.Controller[model.Section]](),
		pageTmpl:    pageTmpl,
		sectionTmpl: sectionTmpl,
	}, nil
}

var templateFuncs = template.FuncMap{
	"sectionEditorURL": routes.SectionEditorURL,
	"draftImagesURL":   routes.DraftImagesURL,
	"add":              func(a, b int) int { return a + b },
}

// RegisterRoutes mounts the editor endpoints. Callers wrap mux in auth.RequireSession.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+routes.PageEditor, h.ServePageEditor)
	mux.HandleFunc("POST "+routes.PageEditor, h.SubmitPage)

	mux.HandleFunc("GET "+routes.SectionsPartial, h.ServeSectionsPartial)
	mux.HandleFunc("POST "+routes.SectionsReorder, h.ReorderSections)
	mux.HandleFunc("DELETE "+routes.SectionDelete, h.DeleteSection)

	mux.HandleFunc("GET "+routes.SectionEditor, h.ServeSectionEditor)
	mux.HandleFunc("POST "+routes.SectionEditor, h.SubmitSection)
	mux.HandleFunc("POST "+routes.SectionPreview, h.ServeSectionPreview)

	mux.HandleFunc("POST "+routes.DraftImages, h.UploadImages)
	mux.HandleFunc("POST "+routes.DraftImageDelete, h.RemoveImage)
}

// sessionLost redirects to login when err came from a dead credential.
func sessionLost(w http.ResponseWriter, r *http.Request, err error) bool {
	if errors.Is(err, api.ErrSessionInvalid) {
		auth.RedirectToLogin(w, r)
		return true
	}
	return false
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request, tmpl *template.Template, name string, status int, data any) {
	w.Header().Set(config.HCType, config.CTypeHTML)
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("Failed to render template")
	}
}

func (h *Handler) draftFromRequest(r *http.Request, kind Kind) (*Draft, error) {
	id := r.PathValue("draft")
	if id == "" {
		id = r.FormValue("draft")
	}
	d, err := h.repo.GetDraft(DraftID(id))
	if err != nil {
		return nil, err
	}
	if d.Kind != kind {
		return nil, fmt.Errorf("%w: %s is a %s draft", ErrDraftNotFound, id, d.Kind)
	}
	return d, nil
}

// Sections returns the list controller of a page's sections, creating it on first use.
// Every change is announced on the page's SSE topic so open editors reload their list.
func (h *Handler) Sections(pageID model.PageID) *listsync.Controller[model.Section] {
	return h.sections.GetOrCreate(pageID, func() *listsync.Controller[model.Section] {
		c := listsync.NewSections(h.api, pageID)
		c.OnChange(func(listsync.Snapshot[model.Section]) {
			h.clients.Broadcast(sse.SectionsTopic(string(pageID)), sse.Event{Name: "reload", Data: string(pageID)})
		})
		return c
	})
}

// Sweep drops edit sessions older than maxAge.
func (h *Handler) Sweep(maxAge time.Duration) int {
	return h.repo.Sweep(time.Now().Add(-maxAge))
}

type sectionsData struct {
	PageID   string
	Arabic   bool
	Loaded   bool
	Error    string
	Sections []model.Section
}

func (h *Handler) sectionsView(pageID model.PageID, arabic bool) sectionsData {
	snap := h.Sections(pageID).Snapshot()
	return sectionsData{
		PageID:   string(pageID),
		Arabic:   arabic,
		Loaded:   snap.Loaded,
		Error:    snap.Message,
		Sections: model.FilterSectionsByLanguage(snap.Items, arabic),
	}
}

func isArabic(r *http.Request) bool {
	v := r.FormValue("lang")
	return v == "ar" || r.FormValue("isArabic") == "true"
}

type pageEditorData struct {
	*model.PageData
	DraftID  string
	Create   bool
	Page     model.Page
	Sections sectionsData
}

func (h *Handler) pageEditorData(r *http.Request, d *Draft, arabic bool) pageEditorData {
	snap := d.Page.Snapshot()
	pd := auth.PageData(r)
	pd.Error = snap.Message

	data := pageEditorData{
		PageData: pd,
		DraftID:  string(d.ID),
		Create:   snap.Create,
		Page:     snap.Draft,
	}
	if !snap.Create {
		data.Sections = h.sectionsView(d.PageID, arabic)
	}
	return data
}

func (h *Handler) ServePageEditor(w http.ResponseWriter, r *http.Request) {
	l := zerolog.Ctx(r.Context())
	id := r.PathValue("id")

	ctrl := form.OpenPage(r.Context(), h.api, id, form.WithLogger[model.Page](*l))
	if sessionLost(w, r, ctrl.Snapshot().Err) {
		return
	}

	d, err := h.repo.CreateDraft(&Draft{Kind: KindPage, PageID: model.PageID(ctrl.ID()), Page: ctrl})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !form.IsNew(id) {
		if err := h.Sections(d.PageID).Load(r.Context()); sessionLost(w, r, err) {
			return
		}
	}

	h.execute(w, r, h.pageTmpl, config.TemplateLayout, http.StatusOK, h.pageEditorData(r, d, isArabic(r)))
}

func pageFromForm(r *http.Request) func(*model.Page) {
	return func(p *model.Page) {
		p.Name = strings.TrimSpace(r.PostFormValue("name"))
		p.Title = strings.TrimSpace(r.PostFormValue("title"))
		p.Description = r.PostFormValue("description")
		p.MetaTitle = r.PostFormValue("metaTitle")
		p.MetaDescription = r.PostFormValue("metaDescription")
		p.IsActive = r.PostFormValue("isActive") != ""
	}
}

func (h *Handler) SubmitPage(w http.ResponseWriter, r *http.Request) {
	l := zerolog.Ctx(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	d, err := h.draftFromRequest(r, KindPage)
	if err != nil {
		l.Warn().Err(err).Msg("Page draft not found")
		http.Error(w, config.ErrDraftNotFound, http.StatusGone)
		return
	}

	if err := d.Page.Update(pageFromForm(r)); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	out, err := d.Page.Submit(r.Context())
	switch {
	case errors.Is(err, form.ErrSubmitInFlight):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case sessionLost(w, r, err):
		return
	case err != nil:
		h.execute(w, r, h.pageTmpl, config.TemplateLayout, http.StatusUnprocessableEntity, h.pageEditorData(r, d, isArabic(r)))
		return
	}

	h.repo.DeleteDraft(d.ID)
	l.Info().Str("page", out.ID).Bool("created", out.Created).Msg("Page saved")
	navigate(w, r, routes.RootPath)
}

func navigate(w http.ResponseWriter, r *http.Request, to string) {
	if r.Header.Get(config.HHxRequest) != "" {
		w.Header().Set(config.HHxRedirect, to)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func (h *Handler) ServeSectionsPartial(w http.ResponseWriter, r *http.Request) {
	pageID := model.PageID(r.PathValue("pageId"))
	if r.URL.Query().Get("refresh") != "" {
		if err := h.Sections(pageID).Load(r.Context()); sessionLost(w, r, err) {
			return
		}
	}
	h.execute(w, r, h.pageTmpl, config.TemplateSectionsPartial, http.StatusOK, h.sectionsView(pageID, isArabic(r)))
}

// fullIndex maps a position in the language-filtered view back to the full list.
func fullIndex(all, shown []model.Section, i int) (int, bool) {
	if i < 0 || i >= len(shown) {
		return 0, false
	}
	for j, s := range all {
		if s.ID == shown[i].ID {
			return j, true
		}
	}
	return 0, false
}

func (h *Handler) ReorderSections(w http.ResponseWriter, r *http.Request) {
	l := zerolog.Ctx(r.Context())
	pageID := model.PageID(r.PathValue("pageId"))
	arabic := isArabic(r)
	ctrl := h.Sections(pageID)

	drop, err := parseDrop(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if drop.Destination != nil {
		all := ctrl.Items()
		shown := model.FilterSectionsByLanguage(all, arabic)
		from, okFrom := fullIndex(all, shown, drop.Source)
		to, okTo := fullIndex(all, shown, *drop.Destination)
		if !okFrom || !okTo {
			http.Error(w, listsync.ErrInvalidDrop.Error(), http.StatusBadRequest)
			return
		}
		drop = listsync.To(from, to)
	}

	done := ctrl.Reorder(r.Context(), drop)
	go func() {
		if err := <-done; err != nil {
			l.Warn().Err(err).Str("page", string(pageID)).Msg(config.ErrReorderRefetch)
		}
	}()

	h.execute(w, r, h.pageTmpl, config.TemplateSectionsPartial, http.StatusOK, h.sectionsView(pageID, arabic))
}

// parseDrop reads "from" and an optional "to". A missing "to" is a drop outside the list.
func parseDrop(r *http.Request) (listsync.Drop, error) {
	from, err := strconv.Atoi(r.FormValue("from"))
	if err != nil {
		return listsync.Drop{}, fmt.Errorf("invalid from: %w", err)
	}
	to := r.FormValue("to")
	if to == "" {
		return listsync.Drop{Source: from}, nil
	}
	dest, err := strconv.Atoi(to)
	if err != nil {
		return listsync.Drop{}, fmt.Errorf("invalid to: %w", err)
	}
	return listsync.To(from, dest), nil
}

// ParseDrop is exported for the pages list, which takes the same form.
func ParseDrop(r *http.Request) (listsync.Drop, error) {
	return parseDrop(r)
}

// Confirmed reports whether the operator approved an irreversible action.
// The console's delete buttons carry hx-confirm and send confirm=yes.
func Confirmed(r *http.Request) bool {
	return r.URL.Query().Get("confirm") == "yes" || r.FormValue("confirm") == "yes"
}

func (h *Handler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	pageID := model.PageID(r.PathValue("pageId"))
	sectionID := r.PathValue("sectionId")
	ctrl := h.Sections(pageID)

	confirmed := Confirmed(r)
	_, err := ctrl.Delete(r.Context(), sectionID, func(model.Section) bool { return confirmed })
	if sessionLost(w, r, err) {
		return
	}
	if errors.Is(err, listsync.ErrUnknownItem) {
		http.NotFound(w, r)
		return
	}
	h.execute(w, r, h.pageTmpl, config.TemplateSectionsPartial, http.StatusOK, h.sectionsView(pageID, isArabic(r)))
}

type imagesData struct {
	DraftID string
	Images  []model.ImageReference
	Errors  []string
}

type sectionEditorData struct {
	*model.PageData
	DraftID string
	PageID  string
	Create  bool
	Section model.Section
	Types   []struct {
		Value model.SectionType
		Label string
	}
	MaxBytes int
	Preview  template.HTML
	Images   imagesData
}

func (h *Handler) sectionEditorData(r *http.Request, d *Draft) sectionEditorData {
	snap := d.Section.Snapshot()
	pd := auth.PageData(r)
	pd.Error = snap.Message

	return sectionEditorData{
		PageData: pd,
		DraftID:  string(d.ID),
		PageID:   string(d.PageID),
		Create:   snap.Create,
		Section:  snap.Draft,
		Types:    model.SectionTypes,
		MaxBytes: config.AppConfig.Upload.MaxBytes,
		Preview:  template.HTML(render.PreviewCached([]byte(snap.Draft.Content), theme.GetSyntaxThemeFromRequest(r), snap.Draft.IsArabic)),
		Images:   imagesData{DraftID: string(d.ID), Images: snap.Draft.Images},
	}
}

func (h *Handler) ServeSectionEditor(w http.ResponseWriter, r *http.Request) {
	l := zerolog.Ctx(r.Context())
	pageID := model.PageID(r.PathValue("pageId"))
	id := r.PathValue("sectionId")

	ctrl := form.OpenSection(r.Context(), h.api, pageID, id, form.WithLogger[model.Section](*l))
	if sessionLost(w, r, ctrl.Snapshot().Err) {
		return
	}
	if form.IsNew(id) && isArabic(r) {
		ctrl.Update(func(s *model.Section) { s.IsArabic = true })
	}

	d, err := h.repo.CreateDraft(&Draft{Kind: KindSection, PageID: pageID, Section: ctrl})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.execute(w, r, h.sectionTmpl, config.TemplateLayout, http.StatusOK, h.sectionEditorData(r, d))
}

func sectionFromForm(r *http.Request) func(*model.Section) {
	return func(s *model.Section) {
		s.Name = strings.TrimSpace(r.PostFormValue("name"))
		s.Title = strings.TrimSpace(r.PostFormValue("title"))
		s.Content = r.PostFormValue("content")
		if t, ok := model.ParseSectionType(r.PostFormValue("type")); ok {
			s.Type = t
		}
		s.IsArabic = r.PostFormValue("isArabic") != ""
	}
}

func (h *Handler) SubmitSection(w http.ResponseWriter, r *http.Request) {
	l := zerolog.Ctx(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	d, err := h.draftFromRequest(r, KindSection)
	if err != nil {
		l.Warn().Err(err).Msg("Section draft not found")
		http.Error(w, config.ErrDraftNotFound, http.StatusGone)
		return
	}

	if err := d.Section.Update(sectionFromForm(r)); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	out, err := d.Section.Submit(r.Context())
	switch {
	case errors.Is(err, form.ErrSubmitInFlight):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case sessionLost(w, r, err):
		return
	case err != nil:
		h.execute(w, r, h.sectionTmpl, config.TemplateLayout, http.StatusUnprocessableEntity, h.sectionEditorData(r, d))
		return
	}

	h.repo.DeleteDraft(d.ID)
	l.Info().Str("section", out.ID).Bool("created", out.Created).Msg("Section saved")

	// The page's list is stale now; reload it in the background.
	go h.Sections(d.PageID).Load(context.WithoutCancel(r.Context()))
	navigate(w, r, routes.PageEditorURL(string(d.PageID)))
}

func (h *Handler) ServeSectionPreview(w http.ResponseWriter, r *http.Request) {
	content := r.FormValue("content")
	if content == "" {
		content = "Start typing in the editor to see a preview here."
	}
	arabic := r.FormValue("isArabic") != ""

	out := render.PreviewCached([]byte(content), theme.GetSyntaxThemeFromRequest(r), arabic)
	w.Header().Set(config.HCType, config.CTypeHTML)
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

func progressFragment(ev upload.Event) string {
	return fmt.Sprintf(`<progress value="%d" max="100"></progress> <span>Uploading %s: %d%%</span>`,
		ev.Percent, html.EscapeString(ev.File), ev.Percent)
}

func (h *Handler) UploadImages(w http.ResponseWriter, r *http.Request) {
	l := zerolog.Ctx(r.Context())

	d, err := h.draftFromRequest(r, KindSection)
	if err != nil {
		http.Error(w, config.ErrDraftNotFound, http.StatusGone)
		return
	}

	maxMemory := int64(config.AppConfig.Upload.MaxBytes)
	if maxMemory <= 0 {
		maxMemory = 32 << 20
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File["images"]
	}

	files := make([]upload.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			l.Error().Err(err).Str("file", fh.Filename).Msg("Failed to open uploaded file")
			continue
		}
		defer f.Close()
		files = append(files, upload.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get(config.HCType),
			Size:        fh.Size,
			Body:        f,
		})
	}

	topic := sse.UploadTopic(string(d.ID))
	var errs []string
	for ev := range h.uploads.Upload(r.Context(), d.Section, files) {
		if !ev.Done {
			h.clients.Broadcast(topic, sse.Event{Name: "progress", Data: progressFragment(ev)})
			continue
		}
		if ev.Err != nil {
			msg := ev.Message
			if ev.File != "" {
				msg = ev.File + ": " + msg
			}
			errs = append(errs, msg)
			if errors.Is(ev.Err, api.ErrSessionInvalid) {
				auth.RedirectToLogin(w, r)
				return
			}
		}
	}
	// Progress resets once the batch is over.
	h.clients.Broadcast(topic, sse.Event{Name: "progress", Data: ""})

	h.execute(w, r, h.sectionTmpl, config.TemplateImagesPartial, http.StatusOK, imagesData{
		DraftID: string(d.ID),
		Images:  d.Section.Draft().Images,
		Errors:  errs,
	})
}

func (h *Handler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	d, err := h.draftFromRequest(r, KindSection)
	if err != nil {
		http.Error(w, config.ErrDraftNotFound, http.StatusGone)
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "invalid image index", http.StatusBadRequest)
		return
	}

	if err := d.Section.Update(func(s *model.Section) { s.RemoveImage(index) }); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	h.execute(w, r, h.sectionTmpl, config.TemplateImagesPartial, http.StatusOK, imagesData{
		DraftID: string(d.ID),
		Images:  d.Section.Draft().Images,
	})
}
