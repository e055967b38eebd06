package listsync

import (
	"context"

	"github.com/debemdeboas/pages-admin/internal/config"
	"github.com/debemdeboas/pages-admin/internal/model"
)

// PagesAPI is the part of the API client the pages list needs.
type PagesAPI interface {
	ListPages(ctx context.Context) ([]model.Page, error)
	ReorderPage(ctx context.Context, id model.PageID, newPosition int) error
	DeletePage(ctx context.Context, id model.PageID) error
}

// SectionsAPI is the part of the API client a page's sections list needs.
type SectionsAPI interface {
	ListSections(ctx context.Context, pageID model.PageID) ([]model.Section, error)
	ReorderSections(ctx context.Context, sections []model.Section) error
	DeleteSection(ctx context.Context, id model.SectionID) error
}

// PageSource moves one page at a time; the backend renumbers the rest.
type PageSource struct {
	API PagesAPI
}

func (s PageSource) Fetch(ctx context.Context) ([]model.Page, error) {
	return s.API.ListPages(ctx)
}

func (s PageSource) Move(ctx context.Context, m Move[model.Page]) error {
	return s.API.ReorderPage(ctx, m.Item.ID, m.To)
}

func (s PageSource) Delete(ctx context.Context, id string) error {
	return s.API.DeletePage(ctx, model.PageID(id))
}

// SectionSource persists the whole order of one page's sections at once.
type SectionSource struct {
	API    SectionsAPI
	PageID model.PageID
}

func (s SectionSource) Fetch(ctx context.Context) ([]model.Section, error) {
	return s.API.ListSections(ctx, s.PageID)
}

func (s SectionSource) Move(ctx context.Context, m Move[model.Section]) error {
	return s.API.ReorderSections(ctx, m.Order)
}

func (s SectionSource) Delete(ctx context.Context, id string) error {
	return s.API.DeleteSection(ctx, model.SectionID(id))
}

func NewPages(api PagesAPI, opts ...Option[model.Page]) *Controller[model.Page] {
	opts = append([]Option[model.Page]{WithMessages[model.Page](config.ErrFetchPages, config.ErrDeletePage)}, opts...)
	return New[model.Page](PageSource{API: api}, opts...)
}

func NewSections(api SectionsAPI, pageID model.PageID, opts ...Option[model.Section]) *Controller[model.Section] {
	opts = append([]Option[model.Section]{WithMessages[model.Section](config.ErrFetchSections, config.ErrDeleteSection)}, opts...)
	return New[model.Section](SectionSource{API: api, PageID: pageID}, opts...)
}
