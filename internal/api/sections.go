package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/debemdeboas/pages-admin/internal/model"
)

const (
	pathSections     = "/sections"
	pathSectionOrder = "/sections/order"
)

func sectionPath(id model.SectionID, suffix ...string) string {
	p := pathSections + "/" + url.PathEscape(string(id))
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

func (c *Client) ListSections(ctx context.Context, pageID model.PageID) ([]model.Section, error) {
	sections := []model.Section{}
	q := url.Values{"pageId": {string(pageID)}}
	if err := c.doJSON(ctx, http.MethodGet, pathSections, q, nil, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

func (c *Client) GetSection(ctx context.Context, id model.SectionID) (model.Section, error) {
	var s model.Section
	err := c.doJSON(ctx, http.MethodGet, sectionPath(id), nil, nil, &s)
	if s.Images == nil {
		s.Images = []model.ImageReference{}
	}
	return s, err
}

func (c *Client) CreateSection(ctx context.Context, s model.Section) (model.Section, error) {
	s.ID = ""
	var created model.Section
	err := c.doJSON(ctx, http.MethodPost, pathSections, nil, s, &created)
	return created, err
}

func (c *Client) UpdateSection(ctx context.Context, id model.SectionID, s model.Section) error {
	return c.doJSON(ctx, http.MethodPut, sectionPath(id), nil, s, nil)
}

func (c *Client) DeleteSection(ctx context.Context, id model.SectionID) error {
	return c.doJSON(ctx, http.MethodDelete, sectionPath(id), nil, nil, nil)
}

type sectionOrder struct {
	ID    model.SectionID `json:"_id"`
	Order int             `json:"order"`
}

type sectionOrderRequest struct {
	Sections []sectionOrder `json:"sections"`
}

// ReorderSections persists the full order of a page's sections: each section's
// order becomes its index in sections.
func (c *Client) ReorderSections(ctx context.Context, sections []model.Section) error {
	req := sectionOrderRequest{Sections: make([]sectionOrder, len(sections))}
	for i, s := range sections {
		req.Sections[i] = sectionOrder{ID: s.ID, Order: i}
	}
	return c.doJSON(ctx, http.MethodPut, pathSectionOrder, nil, req, nil)
}

// ReorderSection moves a single section, mirroring ReorderPage.
func (c *Client) ReorderSection(ctx context.Context, id model.SectionID, newPosition int) error {
	return c.doJSON(ctx, http.MethodPut, sectionPath(id, "reorder"), nil, reorderRequest{NewPosition: newPosition}, nil)
}
