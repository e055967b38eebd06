package form

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/debemdeboas/pages-admin/internal/model"
)

type fakePages struct {
	mu       sync.Mutex
	pages    map[model.PageID]model.Page
	getErr   error
	saveErr  error
	creates  []model.Page
	updates  []model.Page
	inUpdate chan struct{}
	release  chan struct{}
}

func newFakePages() *fakePages {
	return &fakePages{pages: map[model.PageID]model.Page{
		"p1": {ID: "p1", Name: "home", Title: "Home", IsActive: false},
	}}
}

func (f *fakePages) GetPage(ctx context.Context, id model.PageID) (model.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return model.Page{}, f.getErr
	}
	p, ok := f.pages[id]
	if !ok {
		return model.Page{}, errors.New("not found")
	}
	return p, nil
}

func (f *fakePages) CreatePage(ctx context.Context, page model.Page) (model.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, page)
	if f.saveErr != nil {
		return model.Page{}, f.saveErr
	}
	page.ID = "created-1"
	return page, nil
}

func (f *fakePages) UpdatePage(ctx context.Context, id model.PageID, page model.Page) error {
	if f.inUpdate != nil {
		f.inUpdate <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, page)
	return f.saveErr
}

func TestIsNew(t *testing.T) {
	tests := map[string]bool{"": true, "new": true, " new ": true, "p1": false, "New": false}
	for id, want := range tests {
		if got := IsNew(id); got != want {
			t.Errorf("IsNew(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestCreateMode(t *testing.T) {
	api := newFakePages()
	c := OpenPage(context.Background(), api, "new")

	snap := c.Snapshot()
	if snap.State != Editing || !snap.Create {
		t.Fatalf("Expected create mode in Editing, got %+v", snap)
	}
	if snap.Draft != model.EmptyPage() || !snap.Draft.IsActive {
		t.Errorf("Expected empty template with isActive, got %+v", snap.Draft)
	}

	c.Update(func(p *model.Page) { p.Name = "about" })
	out, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !out.Navigate || !out.Created || out.ID != "created-1" {
		t.Errorf("Unexpected outcome %+v", out)
	}
	if len(api.creates) != 1 || len(api.updates) != 0 {
		t.Errorf("Expected exactly one create, got %d creates and %d updates", len(api.creates), len(api.updates))
	}
	if api.creates[0].Name != "about" {
		t.Errorf("Expected draft to be sent, got %+v", api.creates[0])
	}
	if !c.Closed() {
		t.Error("Expected session to end after a successful save")
	}
	if err := c.Update(func(*model.Page) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after save, got %v", err)
	}
}

func TestEditMode(t *testing.T) {
	api := newFakePages()
	c := New[model.Page](PageBackend{API: api}, "p1", model.EmptyPage)
	if c.State() != Loading {
		t.Fatalf("Expected Loading before fetch, got %s", c.State())
	}
	if err := c.Update(func(*model.Page) {}); !errors.Is(err, ErrNotEditing) {
		t.Errorf("Expected ErrNotEditing while loading, got %v", err)
	}
	if _, err := c.Submit(context.Background()); !errors.Is(err, ErrNotEditing) {
		t.Errorf("Expected submit to be refused while loading, got %v", err)
	}

	if err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.State() != Editing || c.Draft().Title != "Home" {
		t.Fatalf("Expected loaded draft, got %s %+v", c.State(), c.Draft())
	}

	c.Update(func(p *model.Page) { p.Title = "Start" })
	out, err := c.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if out.Created || out.ID != "p1" {
		t.Errorf("Unexpected outcome %+v", out)
	}
	if len(api.updates) != 1 || len(api.creates) != 0 || api.updates[0].Title != "Start" {
		t.Errorf("Expected a single update with the edited title, got %+v / %+v", api.updates, api.creates)
	}
}

func TestFetchFailureFallsBackToTemplate(t *testing.T) {
	api := newFakePages()
	api.getErr = errors.New("timeout")
	c := OpenPage(context.Background(), api, "p1")

	snap := c.Snapshot()
	if snap.State != Editing {
		t.Fatalf("Expected Editing after failed fetch, got %s", snap.State)
	}
	if !errors.Is(snap.Err, ErrFetchFailed) || snap.Message != "Failed to fetch page data. Please try again." {
		t.Errorf("Unexpected error state %v %q", snap.Err, snap.Message)
	}
	if snap.Draft != model.EmptyPage() {
		t.Errorf("Expected empty template, got %+v", snap.Draft)
	}

	if err := c.Update(func(p *model.Page) { p.Name = "rescued" }); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Expected save to work after a failed fetch, got %v", err)
	}
	if len(api.updates) != 1 || api.updates[0].Name != "rescued" {
		t.Errorf("Expected update of p1 with the rescued draft, got %+v", api.updates)
	}
}

func TestSubmitFailurePreservesDraft(t *testing.T) {
	api := newFakePages()
	api.saveErr = errors.New("validation failed")
	c := OpenPage(context.Background(), api, "p1")
	c.Update(func(p *model.Page) { p.Description = "typed by hand" })

	_, err := c.Submit(context.Background())
	if !errors.Is(err, ErrSaveFailed) {
		t.Fatalf("Expected ErrSaveFailed, got %v", err)
	}
	snap := c.Snapshot()
	if snap.State != Editing || snap.Draft.Description != "typed by hand" {
		t.Errorf("Expected draft preserved in Editing, got %+v", snap)
	}
	if snap.Message != "Failed to save the page. Please try again." {
		t.Errorf("Unexpected message %q", snap.Message)
	}
	if len(api.updates) != 1 {
		t.Errorf("Expected no automatic retry, got %d updates", len(api.updates))
	}

	api.mu.Lock()
	api.saveErr = nil
	api.mu.Unlock()
	if _, err := c.Submit(context.Background()); err != nil {
		t.Errorf("Expected manual resubmit to succeed, got %v", err)
	}
}

func TestDuplicateSubmit(t *testing.T) {
	api := newFakePages()
	api.inUpdate = make(chan struct{})
	api.release = make(chan struct{})
	c := OpenPage(context.Background(), api, "p1")

	first := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		first <- err
	}()
	<-api.inUpdate

	if c.State() != Submitting {
		t.Errorf("Expected Submitting, got %s", c.State())
	}
	if _, err := c.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("Expected ErrSubmitInFlight, got %v", err)
	}
	if err := c.Update(func(p *model.Page) { p.Name = "late" }); !errors.Is(err, ErrNotEditing) {
		t.Errorf("Expected frozen draft while submitting, got %v", err)
	}

	close(api.release)
	if err := <-first; err != nil {
		t.Fatal(err)
	}
	if len(api.updates) != 1 || api.updates[0].Name != "home" {
		t.Errorf("Expected exactly one update of the frozen draft, got %+v", api.updates)
	}
}

func TestCloseIgnoresLateSave(t *testing.T) {
	api := newFakePages()
	api.inUpdate = make(chan struct{})
	api.release = make(chan struct{})
	c := OpenPage(context.Background(), api, "p1")

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()
	<-api.inUpdate
	c.Close()
	close(api.release)

	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Errorf("Expected late result to be dropped, got %v", err)
	}
}

type fakeSections struct {
	saved []model.Section
}

func (f *fakeSections) GetSection(ctx context.Context, id model.SectionID) (model.Section, error) {
	return model.Section{ID: id, Page: "other", Images: []model.ImageReference{}}, nil
}

func (f *fakeSections) CreateSection(ctx context.Context, s model.Section) (model.Section, error) {
	f.saved = append(f.saved, s)
	s.ID = "s-new"
	return s, nil
}

func (f *fakeSections) UpdateSection(ctx context.Context, id model.SectionID, s model.Section) error {
	f.saved = append(f.saved, s)
	return nil
}

func TestSectionCarriesParentPage(t *testing.T) {
	api := &fakeSections{}

	c := OpenSection(context.Background(), api, "p9", "")
	if d := c.Draft(); d.Type != model.SectionCustom || d.Images == nil || d.IsArabic {
		t.Errorf("Unexpected section template %+v", d)
	}
	out, err := c.Submit(context.Background())
	if err != nil || out.ID != "s-new" {
		t.Fatalf("Unexpected create result %+v %v", out, err)
	}

	c = OpenSection(context.Background(), api, "p9", "s1")
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, s := range api.saved {
		if s.Page != "p9" {
			t.Errorf("Expected section saved under p9, got %q", s.Page)
		}
	}
}
