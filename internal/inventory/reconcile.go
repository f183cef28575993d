package inventory

import (
	"context"
	"fmt"
	"slices"

	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/port"
)

// Reconcile recomputes the low-stock alert of one aggregation key. The alert
// exists iff the key's total is positive and at most its threshold. Running
// it again on unchanged batches writes nothing.
func (s *Service) Reconcile(ctx context.Context, key model.GroupKey) error {
	err := s.store.RunTx(ctx, func(ctx context.Context, tx port.Tx) error {
		return reconcileTx(ctx, tx, key)
	})
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", key.AlertID(), err)
	}
	return nil
}

func reconcileTx(ctx context.Context, tx port.Tx, key model.GroupKey) error {
	id := key.AlertID()

	batches, err := tx.FindBatches(ctx, port.BatchQuery{FamilyID: key.FamilyID, NameKey: key.Name, OwnerID: key.OwnerID})
	if err != nil {
		return err
	}
	existing, err := tx.GetAlert(ctx, key.FamilyID, id)
	if err != nil {
		return err
	}

	total, threshold, unit := summarize(batches)
	if len(batches) == 0 || threshold == 0 || total <= 0 || total > threshold {
		if existing == nil {
			return nil
		}
		return tx.DeleteAlert(ctx, key.FamilyID, id)
	}

	if existing != nil && existing.CurrentTotal == total && existing.Threshold == threshold && existing.Unit == unit {
		return nil
	}

	a := &model.Alert{
		ID:           id,
		FamilyID:     key.FamilyID,
		ItemName:     batches[0].Name,
		OwnerID:      key.OwnerID,
		Status:       model.AlertPending,
		CurrentTotal: total,
		Threshold:    threshold,
		Unit:         unit,
	}
	if existing != nil {
		a.CreatedAt = existing.CreatedAt
		a.IgnoredBy = slices.Clone(existing.IgnoredBy)
	}
	return tx.PutAlert(ctx, a)
}
