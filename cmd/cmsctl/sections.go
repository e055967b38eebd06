package main

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/debemdeboas/pages-admin/internal/api"
	"github.com/debemdeboas/pages-admin/internal/config"
	"github.com/debemdeboas/pages-admin/internal/form"
	"github.com/debemdeboas/pages-admin/internal/listsync"
	"github.com/debemdeboas/pages-admin/internal/model"
	"github.com/debemdeboas/pages-admin/internal/upload"
	"github.com/debemdeboas/pages-admin/internal/util"
)

func newSectionsCmd(app *App) *cobra.Command {
	var pageID string
	cmd := &cobra.Command{
		Use:   "sections",
		Short: "Manage the sections of a page",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if pageID == "" && cmd.Name() != "show" {
				return errors.New("--page is required")
			}
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			return app.requireSession()
		},
	}
	cmd.PersistentFlags().StringVarP(&pageID, "page", "p", "", "Parent page id")

	page := func() model.PageID { return model.PageID(pageID) }
	cmd.AddCommand(newSectionsListCmd(app, page))
	cmd.AddCommand(newSectionsShowCmd(app))
	cmd.AddCommand(newSectionsReorderCmd(app, page))
	cmd.AddCommand(newSectionsDeleteCmd(app, page))
	cmd.AddCommand(newSectionsPushCmd(app, page))
	cmd.AddCommand(newSectionsUploadCmd(app, page))
	return cmd
}

// langFilter narrows sections to one language; "" keeps all of them.
func langFilter(sections []model.Section, lang string) ([]model.Section, error) {
	switch strings.ToLower(lang) {
	case "":
		return sections, nil
	case "ar":
		return model.FilterSectionsByLanguage(sections, true), nil
	case "en":
		return model.FilterSectionsByLanguage(sections, false), nil
	}
	return nil, fmt.Errorf("unknown language %q, expected ar or en", lang)
}

func (a *App) printSections(sections []model.Section) {
	rows := make([][]string, len(sections))
	for i, s := range sections {
		lang := "en"
		if s.IsArabic {
			lang = "ar"
		}
		rows[i] = []string{strconv.Itoa(i), string(s.ID), s.Name, string(s.Type), lang, strconv.Itoa(len(s.Images))}
	}
	a.table([]string{"#", "ID", "Name", "Type", "Lang", "Images"}, rows)
}

func (a *App) loadSections(cmd *cobra.Command, pageID model.PageID) (*listsync.Controller[model.Section], error) {
	sections := listsync.NewSections(a.client, pageID, listsync.WithLogger[model.Section](a.log))
	if err := sections.Load(a.ctx(cmd)); err != nil {
		sections.Close()
		return nil, fmt.Errorf("%s", api.MessageOr(err, config.ErrFetchSections))
	}
	return sections, nil
}

func newSectionsListCmd(app *App, page func() model.PageID) *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a page's sections in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sections, err := app.loadSections(cmd, page())
			if err != nil {
				return err
			}
			defer sections.Close()

			shown, err := langFilter(sections.Items(), lang)
			if err != nil {
				return err
			}
			app.printSections(shown)
			return nil
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "Only show one language (ar|en)")
	return cmd
}

func newSectionsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <section-id>",
		Short: "Print one section as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			section, err := app.client.GetSection(app.ctx(cmd), model.SectionID(args[0]))
			if err != nil {
				return fmt.Errorf("%s", api.MessageOr(err, config.ErrFetchSection))
			}
			return app.printJSON(section)
		},
	}
}

func newSectionsReorderCmd(app *App, page func() model.PageID) *cobra.Command {
	var (
		lang   string
		single bool
	)
	cmd := &cobra.Command{
		Use:   "reorder <section-id> <position>",
		Short: "Move a section to a zero-based position",
		Long: "Move a section to a zero-based position. With --lang the position counts only " +
			"sections of that language, as in the editor's language tabs.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.ctx(cmd)
			position, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid position %q", args[1])
			}

			sections, err := app.loadSections(cmd, page())
			if err != nil {
				return err
			}
			defer sections.Close()

			all := sections.Items()
			shown, err := langFilter(all, lang)
			if err != nil {
				return err
			}
			if position < 0 || position >= len(shown) {
				return fmt.Errorf("%w: position %d of %d", listsync.ErrInvalidDrop, position, len(shown))
			}
			byID := func(id model.SectionID) func(model.Section) bool {
				return func(s model.Section) bool { return s.ID == id }
			}
			from := slices.IndexFunc(all, byID(model.SectionID(args[0])))
			if from < 0 {
				return fmt.Errorf("%w: %s", listsync.ErrUnknownItem, args[0])
			}
			to := slices.IndexFunc(all, byID(shown[position].ID))

			if single {
				if err := app.client.ReorderSection(ctx, model.SectionID(args[0]), to); err != nil {
					return fmt.Errorf("%s", api.MessageOr(err, config.ErrReorderRefetch))
				}
				if err := sections.Load(ctx); err != nil {
					return fmt.Errorf("%s", api.MessageOr(err, config.ErrFetchSections))
				}
			} else if err := <-sections.Reorder(ctx, listsync.To(from, to)); err != nil {
				app.warn(config.ErrReorderRefetch)
				app.printSections(sections.Items())
				return err
			}

			shown, _ = langFilter(sections.Items(), lang)
			app.printSections(shown)
			return nil
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "Count positions within one language (ar|en)")
	cmd.Flags().BoolVar(&single, "single", false, "Use the per-section reorder endpoint instead of saving the whole order")
	return cmd
}

func newSectionsDeleteCmd(app *App, page func() model.PageID) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <section-id>",
		Short: "Delete a section after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sections, err := app.loadSections(cmd, page())
			if err != nil {
				return err
			}
			defer sections.Close()

			deleted, err := sections.Delete(app.ctx(cmd), args[0], func(s model.Section) bool {
				return app.confirm(fmt.Sprintf("Are you sure you want to delete the section %q?", s.Name))
			})
			if err != nil {
				if msg := sections.Snapshot().Message; msg != "" {
					return fmt.Errorf("%s", msg)
				}
				return err
			}
			if !deleted {
				app.warn("Nothing deleted")
				return nil
			}
			app.success("Deleted section %s", args[0])
			return nil
		},
	}
}

// sectionFromFile reads a markdown file. A %%% TOML header, when present,
// names the section and may carry its id; otherwise the file name is the name.
func sectionFromFile(path string) (id string, apply func(*model.Section), err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}

	fm, body, err := util.GetFrontMatter(raw)
	switch {
	case errors.Is(err, util.ErrNoFrontMatter):
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return "", func(s *model.Section) {
			s.Name = name
			s.Content = string(raw)
		}, nil
	case err != nil:
		return "", nil, fmt.Errorf("%s: %w", path, err)
	}

	sectionType, ok := model.ParseSectionType(fm.Type)
	if fm.Type != "" && !ok {
		return "", nil, fmt.Errorf("%s: unknown section type %q", path, fm.Type)
	}
	name := fm.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return fm.ID, func(s *model.Section) {
		s.Name = name
		s.Title = fm.Title
		s.Content = string(body)
		s.IsArabic = fm.IsArabic
		if ok {
			s.Type = sectionType
		}
	}, nil
}

func newSectionsPushCmd(app *App, page func() model.PageID) *cobra.Command {
	return &cobra.Command{
		Use:   "push <file.md>...",
		Short: "Create or update sections from markdown files",
		Long: "Each file becomes one section. A header between %%% lines sets id, name, title, type " +
			"and isArabic (or language = \"ar\"); files with an id update that section.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.ctx(cmd)
			var failed int
			for _, path := range args {
				id, apply, err := sectionFromFile(path)
				if err != nil {
					app.warn("%v", err)
					failed++
					continue
				}

				section := form.OpenSection(ctx, app.client, page(), id, form.WithLogger[model.Section](app.log))
				if snap := section.Snapshot(); snap.Err != nil {
					app.warn("%s: %s", path, api.MessageOr(snap.Err, snap.Message))
					failed++
					continue
				}
				if err := section.Update(apply); err != nil {
					app.warn("%s: %v", path, err)
					failed++
					continue
				}

				out, err := section.Submit(ctx)
				if err != nil {
					app.warn("%s: %s", path, api.MessageOr(err, config.ErrSaveSection))
					failed++
					continue
				}
				verb := "Updated"
				if out.Created {
					verb = "Created"
				}
				app.success("%s section %s from %s", verb, out.ID, path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}

func (a *App) uploader(cmd *cobra.Command) (upload.Uploader, error) {
	if config.AppConfig.Upload.Target != "s3" {
		return a.client, nil
	}
	return upload.NewS3UploaderFromConfig(a.ctx(cmd), config.AppConfig.Upload.S3,
		os.Getenv(config.EnvS3AccessKey),
		os.Getenv(config.EnvS3SecretKey),
	)
}

func openImages(paths []string) ([]upload.File, func(), error) {
	var files []upload.File
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, f.Close)
		info, err := f.Stat()
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		files = append(files, upload.File{
			Name:        filepath.Base(p),
			ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(p))),
			Size:        info.Size(),
			Body:        f,
		})
	}
	return files, closeAll, nil
}

func newSectionsUploadCmd(app *App, page func() model.PageID) *cobra.Command {
	var sectionID string
	cmd := &cobra.Command{
		Use:   "upload --section <section-id> <image>...",
		Short: "Upload images and attach them to a section",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if form.IsNew(sectionID) {
				return errors.New("--section must name an existing section")
			}
			ctx := app.ctx(cmd)

			uploader, err := app.uploader(cmd)
			if err != nil {
				return err
			}
			files, closeFiles, err := openImages(args)
			if err != nil {
				return err
			}
			defer closeFiles()

			section := form.OpenSection(ctx, app.client, page(), sectionID, form.WithLogger[model.Section](app.log))
			if snap := section.Snapshot(); snap.Err != nil {
				return fmt.Errorf("%s", api.MessageOr(snap.Err, snap.Message))
			}

			var uploaded int
			for ev := range upload.New(uploader, upload.WithLogger(app.log)).Upload(ctx, section, files) {
				switch {
				case !ev.Done:
					fmt.Fprintf(app.out, "\r%s %3d%%", ev.File, ev.Percent)
				case ev.Err != nil:
					fmt.Fprintln(app.out)
					app.warn("%s: %s", ev.File, ev.Message)
				default:
					fmt.Fprintln(app.out)
					app.success("%s -> %s", ev.File, ev.URL)
					uploaded++
				}
			}
			if uploaded == 0 {
				return errors.New("no image was uploaded")
			}

			if _, err := section.Submit(ctx); err != nil {
				return fmt.Errorf("%s", api.MessageOr(err, config.ErrSaveSection))
			}
			app.success("Attached %d image(s) to section %s", uploaded, sectionID)
			return nil
		},
	}
	cmd.Flags().StringVar(&sectionID, "section", "", "Section to attach the images to")
	return cmd
}
