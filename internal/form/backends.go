package form

import (
	"context"

	"github.com/debemdeboas/pages-admin/internal/config"
	"github.com/debemdeboas/pages-admin/internal/model"
)

type PagesAPI interface {
	GetPage(ctx context.Context, id model.PageID) (model.Page, error)
	CreatePage(ctx context.Context, page model.Page) (model.Page, error)
	UpdatePage(ctx context.Context, id model.PageID, page model.Page) error
}

type SectionsAPI interface {
	GetSection(ctx context.Context, id model.SectionID) (model.Section, error)
	CreateSection(ctx context.Context, s model.Section) (model.Section, error)
	UpdateSection(ctx context.Context, id model.SectionID, s model.Section) error
}

type PageBackend struct {
	API PagesAPI
}

func (b PageBackend) Fetch(ctx context.Context, id string) (model.Page, error) {
	return b.API.GetPage(ctx, model.PageID(id))
}

func (b PageBackend) Create(ctx context.Context, draft model.Page) (model.Page, error) {
	return b.API.CreatePage(ctx, draft)
}

func (b PageBackend) Update(ctx context.Context, id string, draft model.Page) error {
	return b.API.UpdatePage(ctx, model.PageID(id), draft)
}

// SectionBackend saves sections under PageID, whatever the draft says.
type SectionBackend struct {
	API    SectionsAPI
	PageID model.PageID
}

func (b SectionBackend) Fetch(ctx context.Context, id string) (model.Section, error) {
	return b.API.GetSection(ctx, model.SectionID(id))
}

func (b SectionBackend) Create(ctx context.Context, draft model.Section) (model.Section, error) {
	draft.Page = b.PageID
	return b.API.CreateSection(ctx, draft)
}

func (b SectionBackend) Update(ctx context.Context, id string, draft model.Section) error {
	draft.Page = b.PageID
	return b.API.UpdateSection(ctx, model.SectionID(id), draft)
}

func OpenPage(ctx context.Context, api PagesAPI, id string, opts ...Option[model.Page]) *Controller[model.Page] {
	opts = append([]Option[model.Page]{WithMessages[model.Page](config.ErrFetchPage, config.ErrSavePage)}, opts...)
	return Open[model.Page](ctx, PageBackend{API: api}, id, model.EmptyPage, opts...)
}

func OpenSection(ctx context.Context, api SectionsAPI, pageID model.PageID, id string, opts ...Option[model.Section]) *Controller[model.Section] {
	opts = append([]Option[model.Section]{WithMessages[model.Section](config.ErrFetchSection, config.ErrSaveSection)}, opts...)
	return Open[model.Section](ctx, SectionBackend{API: api, PageID: pageID}, id, model.EmptySection, opts...)
}
