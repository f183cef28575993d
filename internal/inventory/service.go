// Package inventory holds the stock logic: display aggregation, FIFO
// consumption, low-stock alert reconciliation and batch editing.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/feed"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/port"
)

var (
	// ErrPermissionDenied reports an actor touching stock owned by another member.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNoStock reports that no consumable batch matched.
	ErrNoStock = errors.New("no stock")
)

type Service struct {
	store  port.Store
	pub    feed.Publisher
	logger *slog.Logger
	now    func() time.Time
	agg    Aggregator
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithUrgentWindow(d time.Duration) Option {
	return func(s *Service) { s.agg.UrgentWindow = d }
}

func NewService(store port.Store, pub feed.Publisher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		pub:    pub,
		logger: logger,
		now:    time.Now,
		agg:    Aggregator{UrgentWindow: DefaultUrgentWindow},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CanManage reports whether the actor may change stock held by ownerID.
func CanManage(sess auth.Session, ownerID string) bool {
	return model.IsPublic(ownerID) || (ownerID != "" && ownerID == sess.UserID)
}

// groupKey is the aggregation key of one item. A blank name is refused:
// the store reads an empty name key as "every item".
func groupKey(familyID, name, ownerID string) (model.GroupKey, error) {
	key := model.NewGroupKey(familyID, name, ownerID)
	if key.Name == "" {
		return key, fmt.Errorf("%w: name is required", model.ErrInvalid)
	}
	return key, nil
}

// AfterWrite reconciles the given keys and notifies subscribers. Reconcile
// failures are logged, not returned: a stale alert heals on the next write.
func (s *Service) AfterWrite(ctx context.Context, familyID string, keys ...model.GroupKey) {
	s.afterWrite(ctx, familyID, keys...)
}

func (s *Service) afterWrite(ctx context.Context, familyID string, keys ...model.GroupKey) {
	seen := make(map[model.GroupKey]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		if err := s.Reconcile(ctx, k); err != nil {
			s.logger.Warn("alert reconcile failed", "family_id", familyID, "alert_id", k.AlertID(), "error", err)
		}
	}
	s.pub.Publish(ctx, feed.Change{FamilyID: familyID, Topics: []feed.Topic{feed.TopicInventory, feed.TopicAlerts}})
}
