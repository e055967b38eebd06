package main

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/debemdeboas/pages-admin/internal/api"
	"github.com/debemdeboas/pages-admin/internal/config"
	"github.com/debemdeboas/pages-admin/internal/form"
	"github.com/debemdeboas/pages-admin/internal/listsync"
	"github.com/debemdeboas/pages-admin/internal/model"
)

func newPagesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "List, edit, reorder and delete pages",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			return app.requireSession()
		},
	}
	cmd.AddCommand(newPagesListCmd(app))
	cmd.AddCommand(newPagesShowCmd(app))
	cmd.AddCommand(newPagesSaveCmd(app, "create"))
	cmd.AddCommand(newPagesSaveCmd(app, "update"))
	cmd.AddCommand(newPagesReorderCmd(app))
	cmd.AddCommand(newPagesDeleteCmd(app))
	return cmd
}

func (a *App) printPages(pages []model.Page) {
	rows := make([][]string, len(pages))
	for i, p := range pages {
		active := "yes"
		if !p.IsActive {
			active = "no"
		}
		rows[i] = []string{strconv.Itoa(i), string(p.ID), p.Name, p.Title, active}
	}
	a.table([]string{"#", "ID", "Name", "Title", "Active"}, rows)
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// loadPages opens a list controller over the backend's pages, already loaded.
func (a *App) loadPages(cmd *cobra.Command) (*listsync.Controller[model.Page], error) {
	pages := listsync.NewPages(a.client, listsync.WithLogger[model.Page](a.log))
	if err := pages.Load(a.ctx(cmd)); err != nil {
		pages.Close()
		return nil, fmt.Errorf("%s", api.MessageOr(err, config.ErrFetchPages))
	}
	return pages, nil
}

func newPagesListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pages in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pages, err := app.loadPages(cmd)
			if err != nil {
				return err
			}
			defer pages.Close()
			app.printPages(pages.Items())
			return nil
		},
	}
}

func newPagesShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <page-id>",
		Short: "Print one page as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := app.client.GetPage(app.ctx(cmd), model.PageID(args[0]))
			if err != nil {
				return fmt.Errorf("%s", api.MessageOr(err, config.ErrFetchPage))
			}
			return app.printJSON(page)
		},
	}
}

type pageFlags struct {
	name, title, description, metaTitle, metaDescription string
	active                                               bool
}

func (f *pageFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Page name")
	cmd.Flags().StringVar(&f.title, "title", "", "Page title")
	cmd.Flags().StringVar(&f.description, "description", "", "Description")
	cmd.Flags().StringVar(&f.metaTitle, "meta-title", "", "SEO title")
	cmd.Flags().StringVar(&f.metaDescription, "meta-description", "", "SEO description")
	cmd.Flags().BoolVar(&f.active, "active", true, "Whether the page is published")
}

// apply copies only the flags that were set, so an update leaves the rest alone.
func (f *pageFlags) apply(cmd *cobra.Command) func(*model.Page) {
	changed := cmd.Flags().Changed
	return func(p *model.Page) {
		if changed("name") {
			p.Name = f.name
		}
		if changed("title") {
			p.Title = f.title
		}
		if changed("description") {
			p.Description = f.description
		}
		if changed("meta-title") {
			p.MetaTitle = f.metaTitle
		}
		if changed("meta-description") {
			p.MetaDescription = f.metaDescription
		}
		if changed("active") {
			p.IsActive = f.active
		}
	}
}

func newPagesSaveCmd(app *App, verb string) *cobra.Command {
	flags := &pageFlags{}
	cmd := &cobra.Command{
		Use:   verb,
		Short: "Create a page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := config.NewRecordID
			if verb == "update" {
				id = args[0]
			} else if !cmd.Flags().Changed("name") {
				return fmt.Errorf("--name is required")
			}

			ctx := app.ctx(cmd)
			page := form.OpenPage(ctx, app.client, id, form.WithLogger[model.Page](app.log))
			// Saving over a template after a failed fetch would blank the page.
			if snap := page.Snapshot(); snap.Err != nil {
				return fmt.Errorf("%s", api.MessageOr(snap.Err, snap.Message))
			}
			if err := page.Update(flags.apply(cmd)); err != nil {
				return err
			}

			out, err := page.Submit(ctx)
			if err != nil {
				return fmt.Errorf("%s", api.MessageOr(err, config.ErrSavePage))
			}
			if out.Created {
				app.success("Created page %s", out.ID)
			} else {
				app.success("Updated page %s", out.ID)
			}
			return nil
		},
	}
	if verb == "update" {
		cmd.Use = "update <page-id>"
		cmd.Short = "Change fields of a page"
		cmd.Args = cobra.ExactArgs(1)
	}
	flags.bind(cmd)
	return cmd
}

func newPagesReorderCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <page-id> <position>",
		Short: "Move a page to a zero-based position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid position %q", args[1])
			}

			pages, err := app.loadPages(cmd)
			if err != nil {
				return err
			}
			defer pages.Close()

			from := slices.IndexFunc(pages.Items(), func(p model.Page) bool { return string(p.ID) == args[0] })
			if from < 0 {
				return fmt.Errorf("%w: %s", listsync.ErrUnknownItem, args[0])
			}

			if err := <-pages.Reorder(app.ctx(cmd), listsync.To(from, position)); err != nil {
				app.warn(config.ErrReorderRefetch)
				app.printPages(pages.Items())
				return err
			}
			app.printPages(pages.Items())
			return nil
		},
	}
}

func newPagesDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <page-id>",
		Short: "Delete a page after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pages, err := app.loadPages(cmd)
			if err != nil {
				return err
			}
			defer pages.Close()

			deleted, err := pages.Delete(app.ctx(cmd), args[0], func(p model.Page) bool {
				return app.confirm(fmt.Sprintf("Are you sure you want to delete the page %q?", p.Name))
			})
			if err != nil {
				if msg := pages.Snapshot().Message; msg != "" {
					return fmt.Errorf("%s", msg)
				}
				return err
			}
			if !deleted {
				app.warn("Nothing deleted")
				return nil
			}
			app.success("Deleted page %s", args[0])
			return nil
		},
	}
}
