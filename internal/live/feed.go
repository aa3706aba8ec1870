package live

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// Lister reads the full complaint collection.
type Lister interface {
	List(ctx context.Context) ([]domain.Complaint, error)
}

// Filter selects complaints for a subscriber. Nil keeps everything.
type Filter func(domain.Complaint) bool

// Snapshot is one full read of the collection.
type Snapshot struct {
	Complaints []domain.Complaint `json:"complaints"`
	Taken      time.Time          `json:"taken"`
}

// Feed turns change signals into fresh snapshots.
type Feed struct {
	store  Lister
	bus    ChangeBus
	logger *zap.Logger
	now    func() time.Time
}

// NewFeed wires a feed over a store and a bus.
func NewFeed(store Lister, bus ChangeBus, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{store: store, bus: bus, logger: logger, now: time.Now}
}

// Subscribe returns a channel that receives the current snapshot first and a
// new one after every change, until ctx is cancelled. Signals that arrive
// while a snapshot is being read or delivered collapse into one re-read.
func (f *Feed) Subscribe(ctx context.Context, filter Filter) (<-chan Snapshot, error) {
	ctx, cancel := context.WithCancel(ctx)

	changes, err := f.bus.Changes(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe to changes: %w", err)
	}

	first, err := f.snapshot(ctx, filter)
	if err != nil {
		cancel()
		return nil, err
	}

	dirty := make(chan struct{}, 1)
	go func() {
		for range changes {
			select {
			case dirty <- struct{}{}:
			default:
			}
		}
	}()

	out := make(chan Snapshot, 1)
	out <- first
	go func() {
		defer cancel()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-dirty:
			}
			snap, err := f.snapshot(ctx, filter)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				f.logger.Warn("live snapshot failed", zap.Error(err))
				continue
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *Feed) snapshot(ctx context.Context, filter Filter) (Snapshot, error) {
	items, err := f.store.List(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list complaints: %w", err)
	}
	if filter != nil {
		kept := items[:0]
		for _, c := range items {
			if filter(c) {
				kept = append(kept, c)
			}
		}
		items = kept
	}
	return Snapshot{Complaints: items, Taken: f.now().UTC()}, nil
}
