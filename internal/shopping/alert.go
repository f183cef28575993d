package shopping

import (
	"context"
	"fmt"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/feed"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/port"
)

// AcceptAlert puts the shortfall of a low-stock alert on the shopping list
// and marks the alert ADDED in the same transaction. Accepting an alert that
// is already ADDED changes nothing and returns a nil entry.
func (s *Service) AcceptAlert(ctx context.Context, sess auth.Session, id string) (*model.ShoppingEntry, error) {
	if err := sess.RequireFamily(); err != nil {
		return nil, err
	}

	var out *model.ShoppingEntry
	err := s.store.RunTx(ctx, func(ctx context.Context, tx port.Tx) error {
		out = nil
		a, err := tx.GetAlert(ctx, sess.FamilyID, id)
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("alert %s: %w", id, port.ErrNotFound)
		}
		if a.Status == model.AlertAdded {
			return nil
		}

		e, err := quickAdd(ctx, tx, sess, Item{
			Name:     a.ItemName,
			Quantity: model.RestockQuantity(a.Threshold, a.CurrentTotal),
			Unit:     a.Unit,
			OwnerID:  a.OwnerID,
		})
		if err != nil {
			return err
		}
		a.Status = model.AlertAdded
		if err := tx.PutAlert(ctx, a); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("accept alert: %w", err)
	}

	if out != nil {
		s.logger.Info("alert accepted", "family_id", sess.FamilyID, "alert_id", id, "quantity", out.Quantity)
		s.publish(ctx, sess.FamilyID, feed.TopicShopping, feed.TopicAlerts)
	}
	return out, nil
}

// DismissAlert hides an alert from the actor's pending list.
func (s *Service) DismissAlert(ctx context.Context, sess auth.Session, id string) error {
	if err := sess.RequireFamily(); err != nil {
		return err
	}
	err := s.store.RunTx(ctx, func(ctx context.Context, tx port.Tx) error {
		a, err := tx.GetAlert(ctx, sess.FamilyID, id)
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("alert %s: %w", id, port.ErrNotFound)
		}
		if a.IgnoredByUser(sess.UserID) {
			return nil
		}
		a.IgnoredBy = append(a.IgnoredBy, sess.UserID)
		return tx.PutAlert(ctx, a)
	})
	if err != nil {
		return fmt.Errorf("dismiss alert: %w", err)
	}

	s.publish(ctx, sess.FamilyID, feed.TopicAlerts)
	return nil
}
