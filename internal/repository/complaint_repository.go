package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/spec-kit/complaint-service/internal/domain"
)

var (
	// ErrNotFound is returned when no complaint has the requested id.
	ErrNotFound = errors.New("complaint not found")
	// ErrConflict is returned when a compare-and-swap lost: the stored
	// currentStage no longer matched the expected value.
	ErrConflict = errors.New("complaint changed concurrently")
)

// Mutator computes the next document from the current one. It must not
// modify its argument; returning an error aborts the update without writing.
type Mutator func(current *domain.Complaint) (*domain.Complaint, error)

// ComplaintRepository is the document-per-complaint store.
type ComplaintRepository interface {
	Create(ctx context.Context, complaint *domain.Complaint) error
	Get(ctx context.Context, id string) (*domain.Complaint, error)
	// CASUpdate commits mutate's result only if currentStage still equals
	// expectedStage at commit time.
	CASUpdate(ctx context.Context, id string, expectedStage int, mutate Mutator) (*domain.Complaint, error)
	SetOnHold(ctx context.Context, id string, onHold bool) (*domain.Complaint, error)
	List(ctx context.Context) ([]domain.Complaint, error)
	Ping(ctx context.Context) error
}

// sortByRecent orders a snapshot newest update first, ties by id.
func sortByRecent(items []domain.Complaint) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
}
