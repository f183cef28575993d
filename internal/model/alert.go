package model

import (
	"slices"
	"time"
)

type AlertStatus string

const (
	AlertPending AlertStatus = "PENDING"
	AlertAdded   AlertStatus = "ADDED"
)

// Alert is the derived low-stock record for one aggregation key.
type Alert struct {
	ID           string      `json:"id" validate:"required"`
	FamilyID     string      `json:"family_id" validate:"required"`
	ItemName     string      `json:"item_name" validate:"required"`
	OwnerID      string      `json:"owner_id" validate:"required"`
	Status       AlertStatus `json:"status" validate:"oneof=PENDING ADDED"`
	CurrentTotal int         `json:"current_total" validate:"gt=0"`
	Threshold    int         `json:"threshold" validate:"gt=0"`
	Unit         string      `json:"unit"`
	IgnoredBy    []string    `json:"ignored_by"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Key returns the aggregation key the alert was derived from.
func (a Alert) Key() GroupKey {
	return NewGroupKey(a.FamilyID, a.ItemName, a.OwnerID)
}

func (a Alert) IgnoredByUser(userID string) bool {
	return slices.Contains(a.IgnoredBy, userID)
}

// RestockQuantity is how many units bring the total back above the threshold.
func RestockQuantity(threshold, total int) int {
	return max(threshold-total+1, 1)
}
