// Package shopping is the bridge between the shopping list and inventory:
// quick-add merging, checkout into batches, alert acceptance and barcode scans.
package shopping

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/family"
	"github.com/dukerupert/larder/internal/feed"
	"github.com/dukerupert/larder/internal/grocery"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/port"
)

// Reconciler refreshes derived alerts after inventory was written.
type Reconciler interface {
	AfterWrite(ctx context.Context, familyID string, keys ...model.GroupKey)
}

type Service struct {
	store  port.Store
	inv    Reconciler
	pub    feed.Publisher
	logger *slog.Logger
}

func NewService(store port.Store, inv Reconciler, pub feed.Publisher, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		inv:    inv,
		pub:    pub,
		logger: logger,
	}
}

// Item is the input of QuickAdd. An empty OwnerID means the actor.
type Item struct {
	Name      string     `json:"name"`
	Quantity  int        `json:"quantity"`
	Unit      string     `json:"unit"`
	Category  string     `json:"category"`
	OwnerID   string     `json:"owner_id"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// EntryPatch lists the fields Update changes; nil fields are kept.
type EntryPatch struct {
	Checked     *bool      `json:"checked"`
	Quantity    *int       `json:"quantity"`
	Unit        *string    `json:"unit"`
	Category    *string    `json:"category"`
	ExpiresAt   *time.Time `json:"expires_at"`
	ClearExpiry bool       `json:"clear_expiry"`
}

// List returns the family's shopping list, unchecked entries first.
func (s *Service) List(ctx context.Context, sess auth.Session) ([]model.ShoppingEntry, error) {
	if err := sess.RequireFamily(); err != nil {
		return nil, err
	}
	entries, err := s.store.FindShopping(ctx, port.ShoppingQuery{FamilyID: sess.FamilyID})
	if err != nil {
		return nil, fmt.Errorf("load shopping list: %w", err)
	}
	slices.SortStableFunc(entries, func(a, b model.ShoppingEntry) int {
		if a.Checked != b.Checked {
			if a.Checked {
				return 1
			}
			return -1
		}
		return cmp.Or(
			strings.Compare(model.NormalizeName(a.Name), model.NormalizeName(b.Name)),
			strings.Compare(a.OwnerID, b.OwnerID),
		)
	})
	return entries, nil
}

// QuickAdd adds quantity to the unchecked entry of the same item and owner,
// or inserts a new entry when there is none.
func (s *Service) QuickAdd(ctx context.Context, sess auth.Session, in Item) (*model.ShoppingEntry, error) {
	if err := sess.RequireFamily(); err != nil {
		return nil, err
	}

	var out *model.ShoppingEntry
	err := s.store.RunTx(ctx, func(ctx context.Context, tx port.Tx) error {
		e, err := quickAdd(ctx, tx, sess, in)
		if err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("quick add: %w", err)
	}

	s.publish(ctx, sess.FamilyID, feed.TopicShopping)
	return out, nil
}

func quickAdd(ctx context.Context, tx port.Tx, sess auth.Session, in Item) (*model.ShoppingEntry, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", model.ErrInvalid)
	}
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", model.ErrInvalid)
	}
	owner := cmp.Or(in.OwnerID, sess.UserID)
	key := model.NewGroupKey(sess.FamilyID, name, owner)

	unchecked := false
	existing, err := tx.FindShopping(ctx, port.ShoppingQuery{
		FamilyID: key.FamilyID,
		NameKey:  key.Name,
		OwnerID:  key.OwnerID,
		Checked:  &unchecked,
	})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		e := existing[0]
		e.Quantity += in.Quantity
		if !e.HasExpiry() && in.ExpiresAt != nil {
			e.ExpiresAt = in.ExpiresAt
		}
		if err := tx.UpdateShopping(ctx, &e); err != nil {
			return nil, err
		}
		return &e, nil
	}

	ownerName, err := family.OwnerName(ctx, tx, sess.FamilyID, owner)
	if err != nil {
		return nil, err
	}
	e := &model.ShoppingEntry{
		FamilyID:  sess.FamilyID,
		Name:      name,
		Quantity:  in.Quantity,
		Unit:      cmp.Or(strings.TrimSpace(in.Unit), model.DefaultUnit),
		Category:  cmp.Or(strings.TrimSpace(in.Category), grocery.Categorize(name)),
		OwnerID:   owner,
		OwnerName: ownerName,
		ExpiresAt: in.ExpiresAt,
		AddedBy:   sess.UserID,
	}
	if err := tx.InsertShopping(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) Update(ctx context.Context, sess auth.Session, id string, patch EntryPatch) (*model.ShoppingEntry, error) {
	if err := sess.RequireFamily(); err != nil {
		return nil, err
	}
	if patch.Quantity != nil && *patch.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", model.ErrInvalid)
	}

	var out *model.ShoppingEntry
	err := s.store.RunTx(ctx, func(ctx context.Context, tx port.Tx) error {
		e, err := tx.GetShopping(ctx, sess.FamilyID, id)
		if err != nil {
			return err
		}
		if e == nil {
			return fmt.Errorf("entry %s: %w", id, port.ErrNotFound)
		}
		if patch.Checked != nil {
			e.Checked = *patch.Checked
		}
		if patch.Quantity != nil {
			e.Quantity = *patch.Quantity
		}
		if patch.Unit != nil {
			e.Unit = cmp.Or(strings.TrimSpace(*patch.Unit), model.DefaultUnit)
		}
		if patch.Category != nil {
			e.Category = strings.TrimSpace(*patch.Category)
		}
		if patch.ClearExpiry {
			e.ExpiresAt = nil
		} else if patch.ExpiresAt != nil {
			e.ExpiresAt = patch.ExpiresAt
		}
		if err := tx.UpdateShopping(ctx, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}

	s.publish(ctx, sess.FamilyID, feed.TopicShopping)
	return out, nil
}

func (s *Service) Delete(ctx context.Context, sess auth.Session, id string) error {
	if err := sess.RequireFamily(); err != nil {
		return err
	}
	err := s.store.RunTx(ctx, func(ctx context.Context, tx port.Tx) error {
		e, err := tx.GetShopping(ctx, sess.FamilyID, id)
		if err != nil {
			return err
		}
		if e == nil {
			return fmt.Errorf("entry %s: %w", id, port.ErrNotFound)
		}
		return tx.DeleteShopping(ctx, *e)
	})
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	s.publish(ctx, sess.FamilyID, feed.TopicShopping)
	return nil
}

func (s *Service) publish(ctx context.Context, familyID string, topics ...feed.Topic) {
	s.pub.Publish(ctx, feed.Change{FamilyID: familyID, Topics: topics})
}
