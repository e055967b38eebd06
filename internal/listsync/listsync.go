// Package listsync keeps an ordered collection in step with a backend list endpoint.
//
// Mutations are optimistic: a reorder changes the local order at once and is
// confirmed in the background. When the backend refuses, the controller
// reloads the whole collection instead of undoing the move, so the displayed
// order always converges on what the backend persisted.
package listsync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrLoadFailed   = errors.New("failed to load collection")
	ErrDeleteFailed = errors.New("failed to delete item")
	ErrInvalidDrop  = errors.New("drop position out of range")
	ErrUnknownItem  = errors.New("item is not in the collection")
)

// Item is anything with a stable backend identifier.
type Item interface {
	ItemID() string
}

// Move describes one reorder: the item that moved, where it came from and went
// to, and the complete optimistic order that resulted.
type Move[T Item] struct {
	Item  T
	From  int
	To    int
	Order []T
}

// Source is the backend side of a collection.
type Source[T Item] interface {
	Fetch(ctx context.Context) ([]T, error)
	Move(ctx context.Context, m Move[T]) error
	Delete(ctx context.Context, id string) error
}

// Drop is the outcome of a drag gesture. A nil Destination means the item was
// dropped outside any valid target.
type Drop struct {
	Source      int
	Destination *int
}

// To builds a Drop from one index to another.
func To(from, to int) Drop {
	return Drop{Source: from, Destination: &to}
}

// Confirmer asks the operator before an irreversible delete.
type Confirmer[T Item] func(item T) bool

// Snapshot is an immutable view of the collection.
type Snapshot[T Item] struct {
	Items  []T
	Loaded bool
	// Message is the operator-facing error of the last failed operation.
	Message string
	Err     error
}

type Controller[T Item] struct {
	src    Source[T]
	logger zerolog.Logger

	loadMessage   string
	deleteMessage string

	mu      sync.Mutex
	items   []T
	loaded  bool
	message string
	err     error
	closed  bool

	// loadSeq numbers every Load; a result is applied only when its number is
	// above applied, so a slow fetch never overwrites newer state.
	loadSeq uint64
	applied uint64

	subscribers map[int]func(Snapshot[T])
	nextSub     int

	wg sync.WaitGroup
}

type Option[T Item] func(*Controller[T])

func WithLogger[T Item](l zerolog.Logger) Option[T] {
	return func(c *Controller[T]) { c.logger = l }
}

// WithMessages sets the operator-facing text for failed loads and deletes.
func WithMessages[T Item](load, delete string) Option[T] {
	return func(c *Controller[T]) {
		c.loadMessage = load
		c.deleteMessage = delete
	}
}

func New[T Item](src Source[T], opts ...Option[T]) *Controller[T] {
	c := &Controller[T]{
		src:           src,
		logger:        zerolog.Nop(),
		loadMessage:   "Failed to fetch items. Please try again later.",
		deleteMessage: "Failed to delete item. Please try again later.",
		items:         []T{},
		subscribers:   make(map[int]func(Snapshot[T])),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		Items:   slices.Clone(c.items),
		Loaded:  c.loaded,
		Message: c.message,
		Err:     c.err,
	}
}

// Items returns a copy of the current order.
func (c *Controller[T]) Items() []T {
	return c.Snapshot().Items
}

// OnChange registers fn to receive every new snapshot. The returned func unsubscribes.
func (c *Controller[T]) OnChange(fn func(Snapshot[T])) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

// commit runs mutate under the lock and then notifies subscribers outside it.
// Nothing happens once the controller is closed.
func (c *Controller[T]) commit(mutate func() bool) bool {
	c.mu.Lock()
	if c.closed || !mutate() {
		c.mu.Unlock()
		return false
	}
	snap := c.snapshotLocked()
	subs := make([]func(Snapshot[T]), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return true
}

// Load replaces the whole collection with the backend's. On failure the
// previous items stay in place and the error is kept for display.
func (c *Controller[T]) Load(ctx context.Context) error {
	return c.load(ctx, false)
}

// load fetches and applies the collection. A forced load is applied even when
// a newer local move has superseded it, and then fetches once more so the
// view ends on a backend order that includes that move.
func (c *Controller[T]) load(ctx context.Context, force bool) error {
	c.mu.Lock()
	c.loadSeq++
	seq := c.loadSeq
	c.mu.Unlock()

	items, err := c.src.Fetch(ctx)
	if err != nil {
		c.logger.Error().Err(err).Uint64("seq", seq).Msg("Failed to load collection")
		err = fmt.Errorf("%w: %w", ErrLoadFailed, err)
		c.commit(func() bool {
			if seq <= c.applied && !force {
				return false
			}
			c.message, c.err = c.loadMessage, err
			return true
		})
		return err
	}

	if items == nil {
		items = []T{}
	}
	var superseded bool
	applied := c.commit(func() bool {
		superseded = seq <= c.applied
		if superseded && !force {
			return false
		}
		c.applied = max(c.applied, seq)
		c.items = items
		c.loaded = true
		c.message, c.err = "", nil
		return true
	})
	if !applied {
		c.logger.Debug().Uint64("seq", seq).Msg("Discarded stale or late load")
		return nil
	}
	if force && superseded {
		c.logger.Debug().Uint64("seq", seq).Msg("Moves happened during reconciliation, fetching again")
		return c.load(ctx, false)
	}
	return nil
}

// ApplyLocal performs the optimistic half of a reorder. It reports false when
// the drop has no destination, in which case nothing changed.
func (c *Controller[T]) ApplyLocal(d Drop) (Move[T], bool, error) {
	if d.Destination == nil {
		return Move[T]{}, false, nil
	}
	from, to := d.Source, *d.Destination

	var (
		m        Move[T]
		rangeErr error
	)
	c.commit(func() bool {
		n := len(c.items)
		if from < 0 || from >= n || to < 0 || to >= n {
			rangeErr = fmt.Errorf("%w: %d -> %d with %d items", ErrInvalidDrop, from, to, n)
			return false
		}
		item := c.items[from]
		next := slices.Delete(slices.Clone(c.items), from, from+1)
		next = slices.Insert(next, to, item)

		c.items = next
		// Loads already in flight predate this order.
		c.applied = c.loadSeq
		m = Move[T]{Item: item, From: from, To: to, Order: slices.Clone(next)}
		return true
	})
	if rangeErr != nil {
		return Move[T]{}, false, rangeErr
	}
	if m.Order == nil {
		// Closed controller.
		return Move[T]{}, false, nil
	}
	return m, true, nil
}

// Confirm tells the backend about a move that was applied locally.
func (c *Controller[T]) Confirm(ctx context.Context, m Move[T]) error {
	if err := c.src.Move(ctx, m); err != nil {
		return fmt.Errorf("confirming move of %s: %w", m.Item.ItemID(), err)
	}
	c.logger.Debug().Str("id", m.Item.ItemID()).Int("from", m.From).Int("to", m.To).Msg("Move confirmed")
	return nil
}

// ReconcileOnFailure discards the optimistic order by reloading from the backend.
func (c *Controller[T]) ReconcileOnFailure(ctx context.Context, cause error) error {
	c.logger.Warn().Err(cause).Msg("Move rejected, reloading collection")
	return c.load(ctx, true)
}

// Reorder applies d locally and confirms it in the background. The returned
// channel yields the confirmation error, or nil, and is then closed. A failed
// confirmation has already triggered a reload by the time it is reported.
func (c *Controller[T]) Reorder(ctx context.Context, d Drop) <-chan error {
	done := make(chan error, 1)

	m, ok, err := c.ApplyLocal(d)
	if err != nil || !ok {
		done <- err
		close(done)
		return done
	}

	// The move outlives the request that started it.
	ctx = context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(done)

		err := c.Confirm(ctx, m)
		if err != nil {
			c.ReconcileOnFailure(ctx, err)
		}
		done <- err
	}()
	return done
}

// Delete removes the item with id after confirm approves it. Success reloads
// the collection; failure leaves it untouched. deleted is false when the
// operator declined.
func (c *Controller[T]) Delete(ctx context.Context, id string, confirm Confirmer[T]) (deleted bool, err error) {
	c.mu.Lock()
	idx := slices.IndexFunc(c.items, func(it T) bool { return it.ItemID() == id })
	var item T
	if idx >= 0 {
		item = c.items[idx]
	}
	c.mu.Unlock()

	if idx < 0 {
		return false, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	if confirm == nil || !confirm(item) {
		return false, nil
	}

	if err := c.src.Delete(ctx, id); err != nil {
		c.logger.Error().Err(err).Str("id", id).Msg("Failed to delete item")
		err = fmt.Errorf("%w: %w", ErrDeleteFailed, err)
		c.commit(func() bool {
			c.message, c.err = c.deleteMessage, err
			return true
		})
		return false, err
	}

	c.logger.Info().Str("id", id).Msg("Item deleted")
	return true, c.Load(ctx)
}

// Wait blocks until every background confirmation has finished.
func (c *Controller[T]) Wait() {
	c.wg.Wait()
}

// Close detaches the controller from its view. Results that arrive afterwards are dropped.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	clear(c.subscribers)
}
