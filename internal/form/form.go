// Package form drives the edit session of a single page or section.
//
// A Controller owns its draft. In edit mode it first loads the record; a
// failed load still leaves an editable empty template. Submit freezes the
// draft until the backend answers: success ends the session, failure hands
// the untouched draft back for another try.
package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/pages-admin/internal/config"
)

type State int

const (
	Loading State = iota
	Editing
	Submitting
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Editing:
		return "editing"
	case Submitting:
		return "submitting"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrSubmitInFlight = errors.New("a save is already in progress")
	ErrNotEditing     = errors.New("draft is not editable right now")
	ErrClosed         = errors.New("edit session is over")
	ErrSaveFailed     = errors.New("failed to save record")
	ErrFetchFailed    = errors.New("failed to fetch record")
)

// IsNew reports whether id names a record that has not been created yet.
func IsNew(id string) bool {
	id = strings.TrimSpace(id)
	return id == "" || id == config.NewRecordID
}

// Backend is where drafts come from and go to.
type Backend[T any] interface {
	Fetch(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, draft T) (T, error)
	Update(ctx context.Context, id string, draft T) error
}

// Outcome tells the view what to do after a successful submit.
type Outcome struct {
	Navigate bool
	Created  bool
	// ID of the saved record; for creates this is the id the backend assigned.
	ID string
}

type Snapshot[T any] struct {
	State   State
	Draft   T
	Create  bool
	Message string
	Err     error
}

type Controller[T any] struct {
	backend  Backend[T]
	template func() T
	id       string
	logger   zerolog.Logger

	fetchMessage string
	saveMessage  string

	mu      sync.Mutex
	state   State
	draft   T
	message string
	err     error
	closed  bool
}

type Option[T any] func(*Controller[T])

func WithLogger[T any](l zerolog.Logger) Option[T] {
	return func(c *Controller[T]) { c.logger = l }
}

func WithMessages[T any](fetch, save string) Option[T] {
	return func(c *Controller[T]) {
		c.fetchMessage = fetch
		c.saveMessage = save
	}
}

// New starts an edit session for id. Create mode is ready for editing at once;
// edit mode stays Loading until Load is called.
func New[T any](backend Backend[T], id string, template func() T, opts ...Option[T]) *Controller[T] {
	c := &Controller[T]{
		backend:      backend,
		template:     template,
		id:           strings.TrimSpace(id),
		logger:       zerolog.Nop(),
		fetchMessage: "Failed to fetch data. Please try again.",
		saveMessage:  "Failed to save. Please try again.",
		draft:        template(),
		state:        Loading,
	}
	for _, opt := range opts {
		opt(c)
	}
	if IsNew(c.id) {
		c.id = ""
		c.state = Editing
	}
	return c
}

// Open is New followed by Load.
func Open[T any](ctx context.Context, backend Backend[T], id string, template func() T, opts ...Option[T]) *Controller[T] {
	c := New(backend, id, template, opts...)
	c.Load(ctx)
	return c
}

// Load fetches the record being edited. It is a no-op in create mode or once
// the draft is editable.
func (c *Controller[T]) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Loading || c.closed {
		c.mu.Unlock()
		return nil
	}
	id := c.id
	c.mu.Unlock()

	record, err := c.backend.Fetch(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.state = Editing
	if err != nil {
		c.logger.Error().Err(err).Str("id", id).Msg("Failed to fetch record, editing empty template")
		c.draft = c.template()
		c.message = c.fetchMessage
		c.err = fmt.Errorf("%w: %w", ErrFetchFailed, err)
		return c.err
	}
	c.draft = record
	return nil
}

func (c *Controller[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot[T]{
		State:   c.state,
		Draft:   c.draft,
		Create:  c.id == "",
		Message: c.message,
		Err:     c.err,
	}
}

func (c *Controller[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller[T]) Draft() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// ID is the record id, empty while creating.
func (c *Controller[T]) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Update applies fn to the draft. Fields are not validated here.
func (c *Controller[T]) Update(fn func(*T)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.state != Editing {
		return fmt.Errorf("%w: %s", ErrNotEditing, c.state)
	}
	fn(&c.draft)
	return nil
}

// Submit saves the draft, creating or updating depending on the record id.
// A second Submit while the first is in flight fails with ErrSubmitInFlight.
func (c *Controller[T]) Submit(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return Outcome{}, ErrClosed
	case c.state == Submitting:
		c.mu.Unlock()
		return Outcome{}, ErrSubmitInFlight
	case c.state != Editing:
		c.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: %s", ErrNotEditing, c.state)
	}
	c.state = Submitting
	draft, id := c.draft, c.id
	c.mu.Unlock()

	var (
		out Outcome
		err error
	)
	if id == "" {
		var created T
		created, err = c.backend.Create(ctx, draft)
		out = Outcome{Navigate: true, Created: true, ID: idOf(created)}
	} else {
		err = c.backend.Update(ctx, id, draft)
		out = Outcome{Navigate: true, ID: id}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Outcome{}, ErrClosed
	}
	if err != nil {
		c.logger.Error().Err(err).Str("id", id).Msg("Failed to save record")
		c.state = Editing
		c.message = c.saveMessage
		c.err = fmt.Errorf("%w: %w", ErrSaveFailed, err)
		return Outcome{}, c.err
	}

	c.logger.Info().Str("id", out.ID).Bool("created", out.Created).Msg("Record saved")
	c.closed = true
	c.draft = c.template()
	c.message, c.err = "", nil
	return out, nil
}

// Close discards the draft. Results arriving afterwards are ignored.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Controller[T]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type identified interface {
	ItemID() string
}

func idOf(v any) string {
	if it, ok := v.(identified); ok {
		return it.ItemID()
	}
	return ""
}
