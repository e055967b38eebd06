// Package editor keeps the open edit sessions of the web console and serves the editors.
package editor

import (
	"time"

	"github.com/debemdeboas/pages-admin/internal/form"
	"github.com/debemdeboas/pages-admin/internal/model"
)

type DraftID string

type Kind string

const (
	KindPage    Kind = "page"
	KindSection Kind = "section"
)

// Draft is one browser tab's edit session. Exactly one of Page and Section is set.
type Draft struct {
	ID   DraftID
	Kind Kind

	// PageID is the page being edited, or the parent page of a section.
	PageID model.PageID

	Page    *form.Controller[model.Page]
	Section *form.Controller[model.Section]

	Opened time.Time
}

// Close ends the draft's form session; late backend replies are dropped.
func (d *Draft) Close() {
	switch {
	case d.Page != nil:
		d.Page.Close()
	case d.Section != nil:
		d.Section.Close()
	}
}

type Repository interface {
	CreateDraft(d *Draft) (*Draft, error)
	GetDraft(id DraftID) (*Draft, error)
	DeleteDraft(id DraftID) error
	// Sweep closes and forgets drafts opened before cutoff.
	Sweep(cutoff time.Time) int
}
