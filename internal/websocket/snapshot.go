package websocket

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/family"
	"github.com/dukerupert/larder/internal/feed"
	"github.com/dukerupert/larder/internal/inventory"
	"github.com/dukerupert/larder/internal/model"
)

type InventorySource interface {
	Snapshot(ctx context.Context, sess auth.Session, prefix string) ([]inventory.Section, error)
	Alerts(ctx context.Context, sess auth.Session, pendingOnly bool) ([]model.Alert, error)
}

type ShoppingSource interface {
	List(ctx context.Context, sess auth.Session) ([]model.ShoppingEntry, error)
}

type FamilySource interface {
	Current(ctx context.Context, sess auth.Session) (*family.View, error)
}

// Snapshotter turns feed changes into full topic snapshots pushed to the
// affected family rooms. Joins and changes are handled by one loop, so a
// client never receives an older snapshot after a newer one.
type Snapshotter struct {
	hub      *Hub
	inv      InventorySource
	shopping ShoppingSource
	families FamilySource
	logger   *slog.Logger
	joins    chan *Client
}

func NewSnapshotter(hub *Hub, inv InventorySource, shopping ShoppingSource, families FamilySource, logger *slog.Logger) *Snapshotter {
	return &Snapshotter{
		hub:      hub,
		inv:      inv,
		shopping: shopping,
		families: families,
		logger:   logger,
		joins:    make(chan *Client),
	}
}

// Join queues a full snapshot for a newly registered client.
func (s *Snapshotter) Join(ctx context.Context, c *Client) {
	select {
	case s.joins <- c:
	case <-ctx.Done():
	}
}

// Run pushes snapshots until ctx is done or changes is closed.
func (s *Snapshotter) Run(ctx context.Context, changes <-chan feed.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-s.joins:
			msgs, err := s.Build(ctx, c.familyID, feed.AllTopics)
			if err != nil {
				s.logger.Error("initial snapshot failed", "family_id", c.familyID, "error", err)
				continue
			}
			for _, m := range msgs {
				s.hub.Send(c, m)
			}
		case ch, ok := <-changes:
			if !ok {
				return
			}
			s.apply(ctx, ch)
		}
	}
}

func (s *Snapshotter) apply(ctx context.Context, ch feed.Change) {
	families := []string{ch.FamilyID}
	if ch.FamilyID == "" {
		families = s.hub.Families()
	}
	topics := ch.Topics
	if len(topics) == 0 {
		topics = feed.AllTopics
	}

	for _, id := range families {
		if !s.hub.HasClients(id) {
			continue
		}
		msgs, err := s.Build(ctx, id, topics)
		if err != nil {
			s.logger.Error("snapshot failed", "family_id", id, "error", err)
			continue
		}
		for _, m := range msgs {
			s.hub.Broadcast(id, m)
		}
	}
}

// Build loads the given topics of a family in parallel and returns one
// message per topic, in the order asked.
func (s *Snapshotter) Build(ctx context.Context, familyID string, topics []feed.Topic) ([]Message, error) {
	sess := auth.Session{FamilyID: familyID}
	msgs := make([]Message, len(topics))

	g, ctx := errgroup.WithContext(ctx)
	for i, topic := range topics {
		g.Go(func() error {
			data, err := s.load(ctx, sess, topic)
			if err != nil {
				return fmt.Errorf("load %s: %w", topic, err)
			}
			msgs[i] = NewMessage(topic, familyID, data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *Snapshotter) load(ctx context.Context, sess auth.Session, topic feed.Topic) (any, error) {
	switch topic {
	case feed.TopicInventory:
		return s.inv.Snapshot(ctx, sess, "")
	case feed.TopicAlerts:
		return s.inv.Alerts(ctx, sess, false)
	case feed.TopicShopping:
		return s.shopping.List(ctx, sess)
	case feed.TopicFamily:
		return s.families.Current(ctx, sess)
	default:
		return nil, fmt.Errorf("unknown topic %q", topic)
	}
}
