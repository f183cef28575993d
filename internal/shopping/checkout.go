package shopping

import (
	"cmp"
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/feed"
	"github.com/dukerupert/larder/internal/grocery"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/port"
)

// Checkout moves shopping entries into inventory. With no ids every checked
// entry is moved. Each entry is its own transaction: a failed entry is
// reported in the returned error and does not undo the others.
func (s *Service) Checkout(ctx context.Context, sess auth.Session, ids []string) ([]model.Batch, error) {
	if err := sess.RequireFamily(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		checked := true
		entries, err := s.store.FindShopping(ctx, port.ShoppingQuery{FamilyID: sess.FamilyID, Checked: &checked})
		if err != nil {
			return nil, fmt.Errorf("load checked entries: %w", err)
		}
		for _, e := range entries {
			ids = append(ids, e.ID)
		}
	}

	var (
		created []model.Batch
		keys    []model.GroupKey
		errs    error
	)
	for _, id := range ids {
		b, err := s.checkoutOne(ctx, sess, id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("checkout %s: %w", id, err))
			continue
		}
		created = append(created, *b)
		keys = append(keys, b.Key())
	}

	if len(keys) > 0 {
		s.inv.AfterWrite(ctx, sess.FamilyID, keys...)
		s.publish(ctx, sess.FamilyID, feed.TopicShopping)
	}
	if errs != nil {
		s.logger.Warn("checkout partially failed", "family_id", sess.FamilyID, "failed", len(multierr.Errors(errs)), "created", len(created))
	}
	return created, errs
}

// checkoutOne creates a batch from one checked entry and deletes the entry. The batch
// takes category and threshold from its existing group; it is pending setup
// when the item is new or the entry has no expiry.
func (s *Service) checkoutOne(ctx context.Context, sess auth.Session, id string) (*model.Batch, error) {
	var out *model.Batch
	err := s.store.RunTx(ctx, func(ctx context.Context, tx port.Tx) error {
		e, err := tx.GetShopping(ctx, sess.FamilyID, id)
		if err != nil {
			return err
		}
		if e == nil {
			return fmt.Errorf("entry %s: %w", id, port.ErrNotFound)
		}
		if !e.Checked {
			return fmt.Errorf("%w: entry %s is not checked", model.ErrInvalid, id)
		}

		key := e.Key()
		group, err := tx.FindBatches(ctx, port.BatchQuery{FamilyID: key.FamilyID, NameKey: key.Name, OwnerID: key.OwnerID})
		if err != nil {
			return err
		}

		var (
			category, unit string
			threshold      *int
		)
		for _, g := range group {
			if category == "" {
				category = g.Category
			}
			if unit == "" {
				unit = g.Unit
			}
			if th, ok := g.Threshold(); ok && threshold == nil {
				threshold = &th
			}
		}

		b := &model.Batch{
			FamilyID:       e.FamilyID,
			Name:           e.Name,
			Category:       cmp.Or(category, e.Category, grocery.Categorize(e.Name)),
			Quantity:       e.Quantity,
			Unit:           cmp.Or(e.Unit, unit, model.DefaultUnit),
			ExpiresAt:      e.ExpiresAt,
			OwnerID:        e.OwnerID,
			OwnerName:      e.OwnerName,
			MinThreshold:   threshold,
			PendingSetup:   len(group) == 0 || !e.HasExpiry(),
			LastModifiedBy: sess.UserID,
		}
		if err := tx.InsertBatch(ctx, b); err != nil {
			return err
		}
		if err := tx.DeleteShopping(ctx, *e); err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}
