package store

import (
	"context"
	"sync"

	"loan-api/internal/models"
)

// MemoryRepository keeps records in process memory. State is lost on restart.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]*models.Application
	order []string // insertion order for listing
	seq   int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items: make(map[string]*models.Application),
		order: make([]string, 0),
	}
}

func (r *MemoryRepository) NextSequence(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq, nil
}

func (r *MemoryRepository) AdvanceSequence(_ context.Context, atLeast int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seq < atLeast {
		r.seq = atLeast
	}
	return nil
}

func (r *MemoryRepository) Insert(_ context.Context, app *models.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[app.ID]; exists {
		return ErrDuplicateID
	}
	r.items[app.ID] = app.Clone()
	r.order = append(r.order, app.ID)
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*models.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.items[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return app.Clone(), nil
}

func (r *MemoryRepository) List(_ context.Context) ([]*models.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Application, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id].Clone())
	}
	return out, nil
}

func (r *MemoryRepository) Save(_ context.Context, app *models.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[app.ID]; !exists {
		return ErrRecordNotFound
	}
	r.items[app.ID] = app.Clone()
	return nil
}

func (r *MemoryRepository) Ping(_ context.Context) error {
	return nil
}
