package memory

import (
	"context"
	"sync"

	reconcile "cashdesk/internal/reconcile/domain"
)

// DraftRepository is an in-memory repository for per-day drafts.
type DraftRepository struct {
	mu   sync.RWMutex
	data map[reconcile.DayKey]*reconcile.Draft
}

// NewDraftRepository constructs a repository.
func NewDraftRepository() *DraftRepository {
	return &DraftRepository{data: make(map[reconcile.DayKey]*reconcile.Draft)}
}

// FindByDay loads one day's draft, nil when the day has never been touched.
func (r *DraftRepository) FindByDay(ctx context.Context, day reconcile.DayKey) (*reconcile.Draft, error) {
	_ = ctx
	r.mu.RLock()
	d := r.data[day]
	r.mu.RUnlock()
	if d == nil {
		return nil, nil
	}
	return d.Clone(), nil
}

// Save persists a draft (overwrites existing).
func (r *DraftRepository) Save(ctx context.Context, d *reconcile.Draft) error {
	_ = ctx
	if d == nil {
		return reconcile.ErrNilDraft
	}
	copy := d.Clone()
	r.mu.Lock()
	r.data[d.Day()] = copy
	r.mu.Unlock()
	return nil
}

// Delete removes one day's draft.
func (r *DraftRepository) Delete(ctx context.Context, day reconcile.DayKey) error {
	_ = ctx
	r.mu.Lock()
	delete(r.data, day)
	r.mu.Unlock()
	return nil
}

// ListAll returns every stored draft, for assertion convenience.
func (r *DraftRepository) ListAll(ctx context.Context) ([]*reconcile.Draft, error) {
	_ = ctx
	r.mu.RLock()
	out := make([]*reconcile.Draft, 0, len(r.data))
	for _, d := range r.data {
		out = append(out, d.Clone())
	}
	r.mu.RUnlock()
	return out, nil
}
