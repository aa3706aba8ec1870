// Package live streams complaint snapshots to subscribers as the store changes.
package live

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ChangeBus carries "complaint changed" signals between writers and feeds.
type ChangeBus interface {
	// Publish announces that the complaint with id was written.
	Publish(ctx context.Context, id string) error
	// Changes delivers published ids until ctx is cancelled, then closes.
	Changes(ctx context.Context) (<-chan string, error)
}

const localBuffer = 16

// LocalBus fans signals out to subscribers in the same process.
type LocalBus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan string
}

// NewLocalBus returns an empty bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[int]chan string)}
}

// Publish never blocks. A subscriber whose buffer is full already has a
// re-read pending, so the signal is dropped for it.
func (b *LocalBus) Publish(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- id:
		default:
		}
	}
	return nil
}

// Changes registers a subscriber for the lifetime of ctx.
func (b *LocalBus) Changes(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, localBuffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// RedisBus relays signals over a Redis pub/sub channel so every replica
// sees every write.
type RedisBus struct {
	client  *redis.Client
	channel string
}

// NewRedisBus builds a bus on an existing client.
func NewRedisBus(client *redis.Client, channel string) *RedisBus {
	return &RedisBus{client: client, channel: channel}
}

// Publish sends id on the configured channel.
func (b *RedisBus) Publish(ctx context.Context, id string) error {
	return b.client.Publish(ctx, b.channel, id).Err()
}

// Changes subscribes to the channel. The subscription is confirmed before
// returning so no signal published afterwards is missed.
func (b *RedisBus) Changes(ctx context.Context) (<-chan string, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan string, localBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
				}
			}
		}
	}()
	return out, nil
}
