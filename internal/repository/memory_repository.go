package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/complaint-service/internal/domain"
)

type memoryRepository struct {
	mu    sync.RWMutex
	items map[string]*domain.Complaint
	now   func() time.Time
}

// NewMemoryRepository builds an in-process store. Documents are copied on the
// way in and out so callers never share memory with the store.
func NewMemoryRepository() ComplaintRepository {
	return &memoryRepository{items: make(map[string]*domain.Complaint), now: time.Now}
}

func (r *memoryRepository) Create(_ context.Context, complaint *domain.Complaint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if complaint.ID == "" {
		complaint.ID = uuid.NewString()
	}
	complaint.Version = 1
	complaint.UpdatedAt = r.now().UTC()
	r.items[complaint.ID] = complaint.Clone()
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (*domain.Complaint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	current, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return current.Clone(), nil
}

func (r *memoryRepository) CASUpdate(ctx context.Context, id string, expectedStage int, mutate Mutator) (*domain.Complaint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if current.CurrentStage != expectedStage {
		return nil, ErrConflict
	}
	next, err := mutate(current.Clone())
	if err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.Version = current.Version + 1
	next.UpdatedAt = r.now().UTC()
	r.items[current.ID] = next.Clone()
	return next, nil
}

func (r *memoryRepository) SetOnHold(_ context.Context, id string, onHold bool) (*domain.Complaint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	current.OnHold = onHold
	current.Version++
	current.UpdatedAt = r.now().UTC()
	return current.Clone(), nil
}

func (r *memoryRepository) List(_ context.Context) ([]domain.Complaint, error) {
	r.mu.RLock()
	result := make([]domain.Complaint, 0, len(r.items))
	for _, c := range r.items {
		result = append(result, *c.Clone())
	}
	r.mu.RUnlock()
	sortByRecent(result)
	return result, nil
}

func (r *memoryRepository) Ping(context.Context) error {
	return nil
}
