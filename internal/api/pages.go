package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/debemdeboas/pages-admin/internal/model"
)

const pathPages = "/pages"

func pagePath(id model.PageID, suffix ...string) string {
	p := pathPages + "/" + url.PathEscape(string(id))
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

func (c *Client) ListPages(ctx context.Context) ([]model.Page, error) {
	pages := []model.Page{}
	if err := c.doJSON(ctx, http.MethodGet, pathPages, nil, nil, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

func (c *Client) GetPage(ctx context.Context, id model.PageID) (model.Page, error) {
	var page model.Page
	err := c.doJSON(ctx, http.MethodGet, pagePath(id), nil, nil, &page)
	return page, err
}

func (c *Client) CreatePage(ctx context.Context, page model.Page) (model.Page, error) {
	page.ID = ""
	var created model.Page
	err := c.doJSON(ctx, http.MethodPost, pathPages, nil, page, &created)
	return created, err
}

func (c *Client) UpdatePage(ctx context.Context, id model.PageID, page model.Page) error {
	return c.doJSON(ctx, http.MethodPut, pagePath(id), nil, page, nil)
}

func (c *Client) DeletePage(ctx context.Context, id model.PageID) error {
	return c.doJSON(ctx, http.MethodDelete, pagePath(id), nil, nil, nil)
}

type reorderRequest struct {
	NewPosition int `json:"newPosition"`
}

// ReorderPage moves one page to newPosition; the backend shifts the rest.
func (c *Client) ReorderPage(ctx context.Context, id model.PageID, newPosition int) error {
	return c.doJSON(ctx, http.MethodPut, pagePath(id, "reorder"), nil, reorderRequest{NewPosition: newPosition}, nil)
}
