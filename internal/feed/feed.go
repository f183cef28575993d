// Package feed carries "something changed in this family" notifications from
// writers to live subscribers.
package feed

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

type Topic string

const (
	TopicInventory Topic = "inventory"
	TopicAlerts    Topic = "alerts"
	TopicShopping  Topic = "shopping"
	TopicFamily    Topic = "family"
)

// AllTopics is every topic a family snapshot is built from.
var AllTopics = []Topic{TopicInventory, TopicAlerts, TopicShopping, TopicFamily}

// Change names the topics of a family whose documents changed. An empty
// FamilyID means the family is unknown and every family must refresh.
type Change struct {
	FamilyID string  `json:"family_id"`
	Topics   []Topic `json:"topics"`
}

func (c Change) Has(t Topic) bool {
	return slices.Contains(c.Topics, t)
}

type Publisher interface {
	Publish(ctx context.Context, c Change)
}

// Bus fans changes out to in-process subscribers. Publish never blocks and
// never drops: changes a subscriber has not picked up yet are merged per
// family, so a slow reader sees fewer, wider changes instead of losing any.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]*subscription),
		logger: logger,
	}
}

// Subscribe returns a channel of changes and a cancel func that closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Change, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := newSubscription(buffer)
	b.subs[id] = sub
	go sub.run()

	var once sync.Once
	return sub.out, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.done)
		})
	}
}

func (b *Bus) Publish(_ context.Context, c Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subs {
		if sub.push(c) {
			b.logger.Debug("change merged into pending", "subscriber", id, "family_id", c.FamilyID)
		}
	}
}

type subscription struct {
	mu      sync.Mutex
	order   []string // families with a pending change, oldest first
	pending map[string][]Topic

	wake chan struct{}
	done chan struct{}
	out  chan Change
}

func newSubscription(buffer int) *subscription {
	return &subscription{
		pending: make(map[string][]Topic),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		out:     make(chan Change, buffer),
	}
}

// push queues c and reports whether it was merged into a change already
// waiting for the same family.
func (s *subscription) push(c Change) bool {
	s.mu.Lock()
	topics, merged := s.pending[c.FamilyID]
	if !merged {
		s.order = append(s.order, c.FamilyID)
	}
	for _, t := range c.Topics {
		if !slices.Contains(topics, t) {
			topics = append(topics, t)
		}
	}
	s.pending[c.FamilyID] = topics
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return merged
}

func (s *subscription) pop() (Change, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return Change{}, false
	}
	id := s.order[0]
	s.order = s.order[1:]
	topics := s.pending[id]
	delete(s.pending, id)
	return Change{FamilyID: id, Topics: topics}, true
}

func (s *subscription) run() {
	defer close(s.out)
	for {
		c, ok := s.pop()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		select {
		case s.out <- c:
		case <-s.done:
			return
		}
	}
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Discard drops every change. Writers use it when another source, such as a
// change stream, already reports their writes.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Change) {}
