package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/debemdeboas/pages-admin/internal/api"
	"github.com/debemdeboas/pages-admin/internal/config"
	"github.com/debemdeboas/pages-admin/internal/model"
	"github.com/debemdeboas/pages-admin/internal/util/compression"
)

type exportedPage struct {
	model.Page
	Sections []model.Section `json:"sections"`
}

type export struct {
	ExportedAt time.Time      `json:"exportedAt"`
	API        string         `json:"api"`
	Pages      []exportedPage `json:"pages"`
}

func newExportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write every page and its sections to a JSON backup",
		Long:  "Write every page and its sections, in display order, to a JSON file. A .zst or .gz suffix compresses it.",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return app.requireSession()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.ctx(cmd)
			pages, err := app.client.ListPages(ctx)
			if err != nil {
				return fmt.Errorf("%s", api.MessageOr(err, config.ErrFetchPages))
			}

			out := export{ExportedAt: time.Now().UTC(), API: config.AppConfig.API.BaseURL}
			for _, p := range pages {
				sections, err := app.client.ListSections(ctx, p.ID)
				if err != nil {
					return fmt.Errorf("%s: %s", p.Name, api.MessageOr(err, config.ErrFetchSections))
				}
				out.Pages = append(out.Pages, exportedPage{Page: p, Sections: sections})
			}

			raw, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			packed, err := compression.ForPath(args[0]).Compress(raw)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], packed, 0o600); err != nil {
				return err
			}
			app.success("Exported %d page(s) to %s", len(out.Pages), args[0])
			return nil
		},
	}
}
