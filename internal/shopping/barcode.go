package shopping

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/feed"
	"github.com/dukerupert/larder/internal/grocery"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/port"
)

// RegisterBarcode stores or replaces a product in the family barcode library.
func (s *Service) RegisterBarcode(ctx context.Context, sess auth.Session, p model.BarcodeProduct) (*model.BarcodeProduct, error) {
	if err := sess.RequireFamily(); err != nil {
		return nil, err
	}
	p.FamilyID = sess.FamilyID
	p.Code = strings.TrimSpace(p.Code)
	p.Name = strings.TrimSpace(p.Name)
	if strings.TrimSpace(p.Category) == "" {
		p.Category = grocery.Categorize(p.Name)
	}
	if err := s.store.PutBarcode(ctx, &p); err != nil {
		return nil, fmt.Errorf("register barcode: %w", err)
	}
	return &p, nil
}

func (s *Service) LookupBarcode(ctx context.Context, sess auth.Session, code string) (*model.BarcodeProduct, error) {
	if err := sess.RequireFamily(); err != nil {
		return nil, err
	}
	p, err := s.store.GetBarcode(ctx, sess.FamilyID, strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("lookup barcode: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("barcode %s: %w", code, port.ErrNotFound)
	}
	return p, nil
}

// ScanAdd quick-adds one unit of a scanned product for the actor.
func (s *Service) ScanAdd(ctx context.Context, sess auth.Session, code string) (*model.ShoppingEntry, error) {
	if err := sess.RequireFamily(); err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)

	var out *model.ShoppingEntry
	err := s.store.RunTx(ctx, func(ctx context.Context, tx port.Tx) error {
		p, err := tx.GetBarcode(ctx, sess.FamilyID, code)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("barcode %s: %w", code, port.ErrNotFound)
		}
		e, err := quickAdd(ctx, tx, sess, Item{
			Name:     p.Name,
			Quantity: 1,
			Unit:     p.Unit,
			Category: p.Category,
		})
		if err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan add: %w", err)
	}

	s.publish(ctx, sess.FamilyID, feed.TopicShopping)
	return out, nil
}
