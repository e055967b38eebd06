package editor

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/debemdeboas/pages-admin/internal/cache"
)

var ErrDraftNotFound = errors.New("draft not found")

type MemoryRepository struct {
	drafts *cache.Cache[DraftID, *Draft]
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		drafts: cache.NewCache[DraftID, *Draft](),
		now:    time.Now,
	}
}

// CreateDraft stores d under a fresh id.
func (m *MemoryRepository) CreateDraft(d *Draft) (*Draft, error) {
	if d.Page == nil && d.Section == nil {
		return nil, errors.New("draft has no form")
	}
	d.ID = DraftID(uuid.New().String())
	d.Opened = m.now()
	m.drafts.Set(d.ID, d)
	return d, nil
}

func (m *MemoryRepository) GetDraft(id DraftID) (*Draft, error) {
	if d, ok := m.drafts.Get(id); ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
}

func (m *MemoryRepository) DeleteDraft(id DraftID) error {
	if d, ok := m.drafts.Get(id); ok {
		d.Close()
		m.drafts.Delete(id)
	}
	return nil
}

func (m *MemoryRepository) Sweep(cutoff time.Time) int {
	return m.drafts.DeleteFunc(func(_ DraftID, d *Draft) bool {
		if d.Opened.Before(cutoff) {
			d.Close()
			return true
		}
		return false
	})
}

func (m *MemoryRepository) Len() int {
	return m.drafts.Len()
}
