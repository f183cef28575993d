package inventory

import (
	"context"
	"fmt"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/port"
)

// PickFIFO returns the batch to consume next: the one with the soonest
// expiry, with undated batches last. Ties go to the earlier batch in the list.
func PickFIFO(batches []model.Batch) (model.Batch, bool) {
	if len(batches) == 0 {
		return model.Batch{}, false
	}
	best := batches[0]
	for _, b := range batches[1:] {
		if fifoBefore(b, best) {
			best = b
		}
	}
	return best, true
}

func fifoBefore(a, b model.Batch) bool {
	switch {
	case !a.HasExpiry():
		return false
	case !b.HasExpiry():
		return true
	default:
		return a.ExpiresAt.Before(*b.ExpiresAt)
	}
}

// ConsumeOne takes one unit from the FIFO batch of an item and returns the
// owner id of the consumed stock. Pending-setup batches are never consumed.
func (s *Service) ConsumeOne(ctx context.Context, sess auth.Session, name, ownerID string) (string, error) {
	if err := sess.RequireFamily(); err != nil {
		return "", err
	}
	if !CanManage(sess, ownerID) {
		return "", ErrPermissionDenied
	}
	key, err := groupKey(sess.FamilyID, name, ownerID)
	if err != nil {
		return "", err
	}

	var consumed string
	err = s.store.RunTx(ctx, func(ctx context.Context, tx port.Tx) error {
		batches, err := tx.FindBatches(ctx, port.BatchQuery{
			FamilyID:       key.FamilyID,
			NameKey:        key.Name,
			OwnerID:        key.OwnerID,
			ExcludePending: true,
		})
		if err != nil {
			return err
		}
		target, ok := PickFIFO(batches)
		if !ok {
			return ErrNoStock
		}
		consumed = target.OwnerID

		if target.Quantity <= 1 {
			return tx.DeleteBatch(ctx, target)
		}
		target.Quantity--
		target.LastModifiedBy = sess.UserID
		return tx.UpdateBatch(ctx, &target)
	})
	if err != nil {
		return "", fmt.Errorf("consume %q: %w", name, err)
	}

	s.logger.Debug("consumed one", "family_id", key.FamilyID, "item", key.Name, "owner", consumed)
	s.afterWrite(ctx, key.FamilyID, key)
	return consumed, nil
}
