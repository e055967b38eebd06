// Package model defines the records the console edits: pages, their sections and section images.
package model

import "strings"

type PageID string

type SectionID string

// Page is a top-level website page. Its position in the pages list is owned by the backend.
type Page struct {
	ID              PageID `json:"_id,omitempty"`
	Name            string `json:"name"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	MetaTitle       string `json:"metaTitle"`
	MetaDescription string `json:"metaDescription"`
	IsActive        bool   `json:"isActive"`
	Order           int    `json:"order,omitempty"`
}

func (p Page) ItemID() string { return string(p.ID) }

// EmptyPage is the template for a page that does not exist yet.
func EmptyPage() Page {
	return Page{IsActive: true}
}

// ImageReference is an uploaded image attached to a section.
type ImageReference struct {
	URL     string `json:"url"`
	Caption string `json:"caption"`
}

type SectionType string

const (
	SectionHero     SectionType = "hero"
	SectionAbout    SectionType = "about"
	SectionServices SectionType = "services"
	SectionContact  SectionType = "contact"
	SectionCustom   SectionType = "custom"
)

// SectionTypes lists the selectable section types with their labels, in display order.
var SectionTypes = []struct {
	Value SectionType
	Label string
}{
	{SectionHero, "Hero Section"},
	{SectionAbout, "About Section"},
	{SectionServices, "Services Section"},
	{SectionContact, "Contact Section"},
	{SectionCustom, "Custom Section"},
}

func ParseSectionType(s string) (SectionType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range SectionTypes {
		if string(t.Value) == s {
			return t.Value, true
		}
	}
	return "", false
}

// Section belongs to exactly one page and carries its own language flag.
type Section struct {
	ID       SectionID        `json:"_id,omitempty"`
	Page     PageID           `json:"page,omitempty"`
	Name     string           `json:"name"`
	Title    string           `json:"title"`
	Content  string           `json:"content"`
	Type     SectionType      `json:"type"`
	Images   []ImageReference `json:"images"`
	IsArabic bool             `json:"isArabic"`
	Order    int              `json:"order,omitempty"`
}

func (s Section) ItemID() string { return string(s.ID) }

func EmptySection() Section {
	return Section{
		Type:   SectionCustom,
		Images: []ImageReference{},
	}
}

// AddImage appends an image reference. It returns the section for chaining in update closures.
func (s *Section) AddImage(img ImageReference) *Section {
	images := make([]ImageReference, 0, len(s.Images)+1)
	images = append(images, s.Images...)
	s.Images = append(images, img)
	return s
}

// RemoveImage drops the image at index. Out-of-range indexes are ignored.
func (s *Section) RemoveImage(index int) {
	if index < 0 || index >= len(s.Images) {
		return
	}
	images := make([]ImageReference, 0, len(s.Images)-1)
	images = append(images, s.Images[:index]...)
	images = append(images, s.Images[index+1:]...)
	s.Images = images
}

// FilterSectionsByLanguage keeps the sections whose language flag matches arabic.
func FilterSectionsByLanguage(sections []Section, arabic bool) []Section {
	out := make([]Section, 0, len(sections))
	for _, s := range sections {
		if s.IsArabic == arabic {
			out = append(out, s)
		}
	}
	return out
}
