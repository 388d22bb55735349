package store

import (
	"context"
	"sync"
	"time"
)

// Collection names a group of documents that can be watched
type Collection string

const (
	CollectionProblems Collection = "problems"
	CollectionUsers    Collection = "users"
	CollectionVotes    Collection = "votes"
)

// Change announces that a document was written
type Change struct {
	Collection Collection
	DocumentId string
	At         time.Time
}

// Watcher delivers change notifications for live queries.
type Watcher interface {
	// Watch returns a channel of changes to the given collections (all when
	// none are given). The channel is closed when ctx is done.
	Watch(ctx context.Context, collections ...Collection) <-chan Change
}

const subscriptionBuffer = 32

type subscription struct {
	collections map[Collection]bool
	ch          chan Change
}

func (s *subscription) wants(c Collection) bool {
	return len(s.collections) == 0 || s.collections[c]
}

// Broker fans out committed changes to subscribers. Slow subscribers miss
// changes rather than block writers; every change means "re-read".
type Broker struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

var _ Watcher = (*Broker)(nil)

func NewBroker() *Broker {
	return &Broker{subs: make(map[*subscription]struct{})}
}

func (b *Broker) Watch(ctx context.Context, collections ...Collection) <-chan Change {
	sub := &subscription{
		collections: make(map[Collection]bool, len(collections)),
		ch:          make(chan Change, subscriptionBuffer),
	}
	for _, c := range collections {
		sub.collections[c] = true
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, sub)
		close(sub.ch)
		b.mu.Unlock()
	}()

	return sub.ch
}

// Publish delivers changes without blocking.
func (b *Broker) Publish(changes ...Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, change := range changes {
		for sub := range b.subs {
			if !sub.wants(change.Collection) {
				continue
			}
			select {
			case sub.ch <- change:
			default:
			}
		}
	}
}

// Subscribers returns the number of active subscriptions
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
