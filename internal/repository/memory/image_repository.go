package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/terekhovme/imagehub/internal/domain"
)

// imageRepository keeps records in process memory behind the same Scan
// contract as the postgres backend. Used as the dev-mode record store
// and as the test substrate.
type imageRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.ImageRecord
}

func NewImageRepository() domain.ImageRepository {
	return &imageRepository{
		records: make(map[string]*domain.ImageRecord),
	}
}

func clone(rec *domain.ImageRecord) *domain.ImageRecord {
	cp := *rec
	cp.Tags = append([]string(nil), rec.Tags...)
	return &cp
}

func (r *imageRepository) Create(ctx context.Context, rec *domain.ImageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = clone(rec)
	return nil
}

func (r *imageRepository) FindByID(ctx context.Context, id string) (*domain.ImageRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, domain.ErrImageNotFound
	}
	return clone(rec), nil
}

func (r *imageRepository) Update(ctx context.Context, rec *domain.ImageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.records[rec.ID]
	if !ok {
		return domain.ErrImageNotFound
	}
	if current.Version != rec.Version {
		return domain.ErrConflict
	}
	updated := clone(rec)
	updated.Version++
	r.records[rec.ID] = updated
	rec.Version = updated.Version
	return nil
}

func (r *imageRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return domain.ErrImageNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *imageRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.ImageRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.ImageRecord
	for _, rec := range r.records {
		if rec.OwnerID == ownerID {
			out = append(out, clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return domain.Less(out[i], out[j], domain.SortCreatedAt, domain.OrderDesc)
	})
	return out, nil
}

func (r *imageRepository) Scan(ctx context.Context, query domain.ListQuery) ([]*domain.ImageRecord, *domain.Cursor, error) {
	r.mu.RLock()
	matched := make([]*domain.ImageRecord, 0)
	for _, rec := range r.records {
		if query.Filter.Matches(rec) && domain.After(rec, query.Cursor, query.Sort, query.Order) {
			matched = append(matched, clone(rec))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return domain.Less(matched[i], matched[j], query.Sort, query.Order)
	})

	if len(matched) <= query.Limit {
		return matched, nil, nil
	}

	page := matched[:query.Limit]
	next := domain.CursorFor(page[len(page)-1], query.Sort)
	return page, next, nil
}
