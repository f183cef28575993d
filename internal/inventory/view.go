package inventory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/family"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/port"
)

// GroupView is the detail of one item: its batches in consumption order.
type GroupView struct {
	Key           model.GroupKey `json:"key"`
	Name          string         `json:"name"`
	OwnerName     string         `json:"owner_name"`
	Unit          string         `json:"unit"`
	Category      string         `json:"category"`
	Batches       []model.Batch  `json:"batches"`
	Total         int            `json:"total"`
	Threshold     int            `json:"threshold"`
	LowStock      bool           `json:"low_stock"`
	ClosestExpiry *time.Time     `json:"closest_expiry,omitempty"`
	Restock       int            `json:"restock,omitempty"`
}

// OwnerGroup summarizes one owner's stock of an item.
type OwnerGroup struct {
	OwnerID    string `json:"owner_id"`
	OwnerName  string `json:"owner_name"`
	Total      int    `json:"total"`
	Unit       string `json:"unit"`
	BatchCount int    `json:"batch_count"`
	// Locked is set when the actor may not change this stock.
	Locked bool `json:"locked"`
}

// Snapshot returns the family's inventory as display sections. A non-empty
// prefix limits it to items whose name starts with it.
func (s *Service) Snapshot(ctx context.Context, sess auth.Session, prefix string) ([]Section, error) {
	if err := sess.RequireFamily(); err != nil {
		return nil, err
	}
	batches, err := s.store.FindBatches(ctx, port.BatchQuery{
		FamilyID:   sess.FamilyID,
		NamePrefix: model.NormalizeName(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	return s.agg.Aggregate(batches, s.now()), nil
}

// Group returns the batches of one item sorted for consumption.
func (s *Service) Group(ctx context.Context, sess auth.Session, name, ownerID string) (*GroupView, error) {
	if err := sess.RequireFamily(); err != nil {
		return nil, err
	}
	key, err := groupKey(sess.FamilyID, name, ownerID)
	if err != nil {
		return nil, err
	}
	batches, err := s.store.FindBatches(ctx, port.BatchQuery{FamilyID: key.FamilyID, NameKey: key.Name, OwnerID: key.OwnerID})
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}
	if len(batches) == 0 {
		return nil, fmt.Errorf("item %s: %w", key.Name, port.ErrNotFound)
	}

	slices.SortStableFunc(batches, func(a, b model.Batch) int {
		switch {
		case fifoBefore(a, b):
			return -1
		case fifoBefore(b, a):
			return 1
		default:
			return 0
		}
	})

	total, threshold, unit := summarize(batches)
	v := &GroupView{
		Key:       key,
		Name:      batches[0].Name,
		OwnerName: batches[0].OwnerName,
		Unit:      cmp.Or(unit, model.DefaultUnit),
		Category:  categoryOf(representative(batches)),
		Batches:   batches,
		Total:     total,
		Threshold: threshold,
		LowStock:  threshold > 0 && total <= threshold,
	}
	if batches[0].HasExpiry() {
		v.ClosestExpiry = batches[0].ExpiresAt
	}
	if v.LowStock {
		v.Restock = model.RestockQuantity(threshold, total)
	}
	return v, nil
}

// OwnerGroups lists who holds stock of an item: the actor first, then
// public stock, then other members by name.
func (s *Service) OwnerGroups(ctx context.Context, sess auth.Session, name string) ([]OwnerGroup, error) {
	if err := sess.RequireFamily(); err != nil {
		return nil, err
	}
	nameKey := model.NormalizeName(name)
	if nameKey == "" {
		return nil, fmt.Errorf("%w: name is required", model.ErrInvalid)
	}
	batches, err := s.store.FindBatches(ctx, port.BatchQuery{FamilyID: sess.FamilyID, NameKey: nameKey})
	if err != nil {
		return nil, fmt.Errorf("load owners: %w", err)
	}
	names, err := family.MemberNames(ctx, s.store, sess.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}

	byOwner := make(map[string][]model.Batch)
	for _, b := range batches {
		byOwner[b.OwnerID] = append(byOwner[b.OwnerID], b)
	}

	out := make([]OwnerGroup, 0, len(byOwner))
	for owner, group := range byOwner {
		total, _, unit := summarize(group)
		ownerName := names[owner]
		if ownerName == "" {
			ownerName = group[0].OwnerName
		}
		out = append(out, OwnerGroup{
			OwnerID:    owner,
			OwnerName:  ownerName,
			Total:      total,
			Unit:       cmp.Or(unit, model.DefaultUnit),
			BatchCount: len(group),
			Locked:     !CanManage(sess, owner),
		})
	}

	rank := func(g OwnerGroup) int {
		switch {
		case g.OwnerID == sess.UserID:
			return 0
		case model.IsPublic(g.OwnerID):
			return 1
		default:
			return 2
		}
	}
	slices.SortFunc(out, func(a, b OwnerGroup) int {
		return cmp.Or(
			cmp.Compare(rank(a), rank(b)),
			strings.Compare(strings.ToLower(a.OwnerName), strings.ToLower(b.OwnerName)),
			strings.Compare(a.OwnerID, b.OwnerID),
		)
	})
	return out, nil
}

// Alerts lists the family's low-stock alerts, most urgent first. With
// pendingOnly it leaves out alerts already added to the shopping list and
// those the actor dismissed.
func (s *Service) Alerts(ctx context.Context, sess auth.Session, pendingOnly bool) ([]model.Alert, error) {
	if err := sess.RequireFamily(); err != nil {
		return nil, err
	}
	alerts, err := s.store.ListAlerts(ctx, sess.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	if pendingOnly {
		alerts = slices.DeleteFunc(alerts, func(a model.Alert) bool {
			return a.Status != model.AlertPending || a.IgnoredByUser(sess.UserID)
		})
	}
	slices.SortStableFunc(alerts, func(a, b model.Alert) int {
		return cmp.Or(
			cmp.Compare(a.CurrentTotal-a.Threshold, b.CurrentTotal-b.Threshold),
			strings.Compare(a.ID, b.ID),
		)
	})
	return alerts, nil
}
