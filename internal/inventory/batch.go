package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/family"
	"github.com/dukerupert/larder/internal/grocery"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/port"
)

// NewBatch is the input of AddBatch. An empty OwnerID means the actor.
type NewBatch struct {
	Name         string     `json:"name"`
	Category     string     `json:"category"`
	Quantity     int        `json:"quantity"`
	Unit         string     `json:"unit"`
	ExpiresAt    *time.Time `json:"expires_at"`
	OwnerID      string     `json:"owner_id"`
	Location     string     `json:"location"`
	Notes        string     `json:"notes"`
	MinThreshold *int       `json:"min_threshold"`
	Quick        bool       `json:"quick"`
}

// BatchPatch lists the fields EditBatch changes; nil fields are kept.
type BatchPatch struct {
	Name        *string    `json:"name"`
	Category    *string    `json:"category"`
	Unit        *string    `json:"unit"`
	Location    *string    `json:"location"`
	Notes       *string    `json:"notes"`
	Quantity    *int       `json:"quantity"`
	ExpiresAt   *time.Time `json:"expires_at"`
	ClearExpiry bool       `json:"clear_expiry"`
}

func (s *Service) AddBatch(ctx context.Context, sess auth.Session, in NewBatch) (*model.Batch, error) {
	if err := sess.RequireFamily(); err != nil {
		return nil, err
	}
	if in.OwnerID == "" {
		in.OwnerID = sess.UserID
	}
	if !CanManage(sess, in.OwnerID) {
		return nil, ErrPermissionDenied
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", model.ErrInvalid)
	}
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", model.ErrInvalid)
	}
	if in.MinThreshold != nil && *in.MinThreshold < 0 {
		return nil, fmt.Errorf("%w: threshold must not be negative", model.ErrInvalid)
	}

	var created *model.Batch
	err := s.store.RunTx(ctx, func(ctx context.Context, tx port.Tx) error {
		ownerName, err := family.OwnerName(ctx, tx, sess.FamilyID, in.OwnerID)
		if err != nil {
			return err
		}
		b := &model.Batch{
			FamilyID:       sess.FamilyID,
			Name:           strings.TrimSpace(in.Name),
			Category:       strings.TrimSpace(in.Category),
			Quantity:       in.Quantity,
			Unit:           strings.TrimSpace(in.Unit),
			ExpiresAt:      in.ExpiresAt,
			OwnerID:        in.OwnerID,
			OwnerName:      ownerName,
			Location:       strings.TrimSpace(in.Location),
			Notes:          in.Notes,
			MinThreshold:   in.MinThreshold,
			PendingSetup:   in.Quick,
			LastModifiedBy: sess.UserID,
		}
		if err := s.joinGroup(ctx, tx, b); err != nil {
			return err
		}
		if err := tx.InsertBatch(ctx, b); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add batch: %w", err)
	}

	s.afterWrite(ctx, sess.FamilyID, created.Key())
	return created, nil
}

// joinGroup fills blank fields of a new batch from its existing group. An
// explicit threshold on b is copied to the rest of the group instead.
func (s *Service) joinGroup(ctx context.Context, tx port.Tx, b *model.Batch) error {
	key := b.Key()
	group, err := tx.FindBatches(ctx, port.BatchQuery{FamilyID: key.FamilyID, NameKey: key.Name, OwnerID: key.OwnerID})
	if err != nil {
		return err
	}

	_, groupThreshold, groupUnit := summarize(group)
	if b.Category == "" {
		for _, g := range group {
			if g.Category != "" {
				b.Category = g.Category
				break
			}
		}
	}
	if b.Category == "" {
		b.Category = grocery.Categorize(b.Name)
	}
	if b.Unit == "" {
		b.Unit = groupUnit
	}
	if b.Unit == "" {
		b.Unit = model.DefaultUnit
	}

	if b.MinThreshold == nil {
		if groupThreshold > 0 {
			th := groupThreshold
			b.MinThreshold = &th
		}
		return nil
	}
	_, err = syncThreshold(ctx, tx, group, b.MinThreshold, b.LastModifiedBy)
	return err
}

// syncThreshold writes th to every batch of group that differs and returns
// how many were changed.
func syncThreshold(ctx context.Context, tx port.Tx, group []model.Batch, th *int, actor string) (int, error) {
	want := normThreshold(th)
	changed := 0
	for i := range group {
		b := group[i]
		if normThreshold(b.MinThreshold) == want {
			continue
		}
		if want == 0 {
			b.MinThreshold = nil
		} else {
			v := want
			b.MinThreshold = &v
		}
		b.LastModifiedBy = actor
		if err := tx.UpdateBatch(ctx, &b); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

func normThreshold(th *int) int {
	if th == nil || *th < 0 {
		return 0
	}
	return *th
}

// mutate loads a batch the actor may manage, applies fn to it and stores the
// result; a batch left at quantity 0 or below is deleted. It returns the batch
// as loaded and as stored (nil when deleted).
func (s *Service) mutate(ctx context.Context, sess auth.Session, id string, fn func(b *model.Batch) error) (model.Batch, *model.Batch, error) {
	if err := sess.RequireFamily(); err != nil {
		return model.Batch{}, nil, err
	}

	var (
		before model.Batch
		after  *model.Batch
	)
	err := s.store.RunTx(ctx, func(ctx context.Context, tx port.Tx) error {
		b, err := tx.GetBatch(ctx, sess.FamilyID, id)
		if err != nil {
			return err
		}
		if b == nil {
			return fmt.Errorf("batch %s: %w", id, port.ErrNotFound)
		}
		if !CanManage(sess, b.OwnerID) {
			return ErrPermissionDenied
		}
		before = *b
		after = nil

		if err := fn(b); err != nil {
			return err
		}
		if b.Quantity <= 0 {
			return tx.DeleteBatch(ctx, before)
		}
		b.LastModifiedBy = sess.UserID
		if err := tx.UpdateBatch(ctx, b); err != nil {
			return err
		}
		after = b
		return nil
	})
	if err != nil {
		return model.Batch{}, nil, err
	}

	keys := []model.GroupKey{before.Key()}
	if after != nil {
		keys = append(keys, after.Key())
	}
	s.afterWrite(ctx, sess.FamilyID, keys...)
	return before, after, nil
}

// EditBatch applies patch; the result is nil when the quantity was set to 0.
func (s *Service) EditBatch(ctx context.Context, sess auth.Session, id string, patch BatchPatch) (*model.Batch, error) {
	_, after, err := s.mutate(ctx, sess, id, func(b *model.Batch) error {
		if patch.Name != nil {
			if strings.TrimSpace(*patch.Name) == "" {
				return fmt.Errorf("%w: name is required", model.ErrInvalid)
			}
			b.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Category != nil {
			b.Category = strings.TrimSpace(*patch.Category)
		}
		if patch.Unit != nil {
			b.Unit = strings.TrimSpace(*patch.Unit)
		}
		if patch.Location != nil {
			b.Location = strings.TrimSpace(*patch.Location)
		}
		if patch.Notes != nil {
			b.Notes = *patch.Notes
		}
		if patch.ClearExpiry {
			b.ExpiresAt = nil
		} else if patch.ExpiresAt != nil {
			b.ExpiresAt = patch.ExpiresAt
		}
		if patch.Quantity != nil {
			if *patch.Quantity < 0 {
				return fmt.Errorf("%w: quantity must not be negative", model.ErrInvalid)
			}
			b.Quantity = *patch.Quantity
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("edit batch: %w", err)
	}
	return after, nil
}

// AdjustQuantity adds delta (which may be negative) to a batch.
func (s *Service) AdjustQuantity(ctx context.Context, sess auth.Session, id string, delta int) (*model.Batch, error) {
	_, after, err := s.mutate(ctx, sess, id, func(b *model.Batch) error {
		b.Quantity += delta
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("adjust batch: %w", err)
	}
	return after, nil
}

// CompleteSetup confirms a pending batch, optionally setting its category
// and expiry.
func (s *Service) CompleteSetup(ctx context.Context, sess auth.Session, id, category string, expiresAt *time.Time) (*model.Batch, error) {
	_, after, err := s.mutate(ctx, sess, id, func(b *model.Batch) error {
		b.PendingSetup = false
		if c := strings.TrimSpace(category); c != "" {
			b.Category = c
		}
		if expiresAt != nil {
			b.ExpiresAt = expiresAt
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("complete setup: %w", err)
	}
	return after, nil
}

func (s *Service) DeleteBatch(ctx context.Context, sess auth.Session, id string) error {
	_, _, err := s.mutate(ctx, sess, id, func(b *model.Batch) error {
		b.Quantity = 0
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	return nil
}

// DeleteGroup removes every batch of an item and its alert.
func (s *Service) DeleteGroup(ctx context.Context, sess auth.Session, name, ownerID string) (int, error) {
	if err := sess.RequireFamily(); err != nil {
		return 0, err
	}
	if !CanManage(sess, ownerID) {
		return 0, ErrPermissionDenied
	}
	key, err := groupKey(sess.FamilyID, name, ownerID)
	if err != nil {
		return 0, err
	}

	deleted := 0
	err = s.store.RunTx(ctx, func(ctx context.Context, tx port.Tx) error {
		deleted = 0
		group, err := tx.FindBatches(ctx, port.BatchQuery{FamilyID: key.FamilyID, NameKey: key.Name, OwnerID: key.OwnerID})
		if err != nil {
			return err
		}
		for _, b := range group {
			if err := tx.DeleteBatch(ctx, b); err != nil {
				return err
			}
			deleted++
		}
		return tx.DeleteAlert(ctx, key.FamilyID, key.AlertID())
	})
	if err != nil {
		return 0, fmt.Errorf("delete group: %w", err)
	}

	s.afterWrite(ctx, sess.FamilyID, key)
	return deleted, nil
}

// Transfer moves amount units of a batch to another owner. Moving the whole
// quantity removes the source batch. The new batch is never pending setup.
func (s *Service) Transfer(ctx context.Context, sess auth.Session, id string, amount int, targetOwner string) (*model.Batch, error) {
	if err := sess.RequireFamily(); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", model.ErrInvalid)
	}
	if targetOwner == "" {
		return nil, fmt.Errorf("%w: target owner is required", model.ErrInvalid)
	}

	var source, moved model.Batch
	err := s.store.RunTx(ctx, func(ctx context.Context, tx port.Tx) error {
		src, err := tx.GetBatch(ctx, sess.FamilyID, id)
		if err != nil {
			return err
		}
		if src == nil {
			return fmt.Errorf("batch %s: %w", id, port.ErrNotFound)
		}
		if !CanManage(sess, src.OwnerID) {
			return ErrPermissionDenied
		}
		if src.OwnerID == targetOwner {
			return fmt.Errorf("%w: batch already belongs to %s", model.ErrInvalid, targetOwner)
		}
		targetName, err := family.OwnerName(ctx, tx, sess.FamilyID, targetOwner)
		if err != nil {
			return err
		}
		source = *src

		n := min(amount, src.Quantity)
		if n == src.Quantity {
			err = tx.DeleteBatch(ctx, *src)
		} else {
			src.Quantity -= n
			src.LastModifiedBy = sess.UserID
			err = tx.UpdateBatch(ctx, src)
		}
		if err != nil {
			return err
		}

		targetKey := model.NewGroupKey(sess.FamilyID, source.Name, targetOwner)
		targetGroup, err := tx.FindBatches(ctx, port.BatchQuery{FamilyID: targetKey.FamilyID, NameKey: targetKey.Name, OwnerID: targetKey.OwnerID})
		if err != nil {
			return err
		}
		threshold := source.MinThreshold
		if _, th, _ := summarize(targetGroup); th > 0 {
			threshold = &th
		}

		moved = source
		moved.ID = ""
		moved.OwnerID = targetOwner
		moved.OwnerName = targetName
		moved.Quantity = n
		moved.MinThreshold = threshold
		moved.PendingSetup = false
		moved.LastModifiedBy = sess.UserID
		return tx.InsertBatch(ctx, &moved)
	})
	if err != nil {
		return nil, fmt.Errorf("transfer batch: %w", err)
	}

	s.afterWrite(ctx, sess.FamilyID, source.Key(), moved.Key())
	return &moved, nil
}

// SetGroupThreshold sets (or, with nil or 0, clears) the low-stock threshold
// of every batch of an item and returns how many batches changed.
func (s *Service) SetGroupThreshold(ctx context.Context, sess auth.Session, name, ownerID string, threshold *int) (int, error) {
	if err := sess.RequireFamily(); err != nil {
		return 0, err
	}
	if threshold != nil && *threshold < 0 {
		return 0, fmt.Errorf("%w: threshold must not be negative", model.ErrInvalid)
	}
	if !CanManage(sess, ownerID) {
		return 0, ErrPermissionDenied
	}
	key, err := groupKey(sess.FamilyID, name, ownerID)
	if err != nil {
		return 0, err
	}

	changed := 0
	err = s.store.RunTx(ctx, func(ctx context.Context, tx port.Tx) error {
		group, err := tx.FindBatches(ctx, port.BatchQuery{FamilyID: key.FamilyID, NameKey: key.Name, OwnerID: key.OwnerID})
		if err != nil {
			return err
		}
		if len(group) == 0 {
			return fmt.Errorf("item %s: %w", key.Name, port.ErrNotFound)
		}
		changed, err = syncThreshold(ctx, tx, group, threshold, sess.UserID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("set threshold: %w", err)
	}

	s.afterWrite(ctx, sess.FamilyID, key)
	return changed, nil
}
