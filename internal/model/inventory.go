package model

import (
	"strings"
	"time"
)

// PublicOwner is the owner id of stock shared by the whole family.
const PublicOwner = "PUBLIC"

// PublicOwnerName is the display name used for PublicOwner.
const PublicOwnerName = "Public"

const (
	DefaultCategory = "Others"
	DefaultUnit     = "Pcs"
)

// Batch is one stock-keeping record of an item with its own quantity and expiry.
type Batch struct {
	ID             string     `json:"id"`
	FamilyID       string     `json:"family_id" validate:"required"`
	Name           string     `json:"name" validate:"required,max=120"`
	Category       string     `json:"category" validate:"max=60"`
	Quantity       int        `json:"quantity" validate:"gte=0"`
	Unit           string     `json:"unit" validate:"max=20"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	OwnerID        string     `json:"owner_id" validate:"required"`
	OwnerName      string     `json:"owner_name"`
	Location       string     `json:"location" validate:"max=60"`
	Notes          string     `json:"notes" validate:"max=500"`
	MinThreshold   *int       `json:"min_threshold,omitempty" validate:"omitempty,gte=0"`
	PendingSetup   bool       `json:"pending_setup"`
	LastModifiedBy string     `json:"last_modified_by"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Key returns the aggregation key the batch belongs to.
func (b Batch) Key() GroupKey {
	return NewGroupKey(b.FamilyID, b.Name, b.OwnerID)
}

// HasExpiry reports whether the batch carries a usable expiry date.
func (b Batch) HasExpiry() bool {
	return b.ExpiresAt != nil && b.ExpiresAt.Unix() > 0
}

// Threshold returns the batch threshold when it is set and positive.
func (b Batch) Threshold() (int, bool) {
	if b.MinThreshold == nil || *b.MinThreshold <= 0 {
		return 0, false
	}
	return *b.MinThreshold, true
}

// GroupKey identifies one logical item: all batches of the same normalized
// name and owner within a family.
type GroupKey struct {
	FamilyID string `json:"family_id"`
	Name     string `json:"name"`
	OwnerID  string `json:"owner_id"`
}

func NewGroupKey(familyID, name, ownerID string) GroupKey {
	return GroupKey{FamilyID: familyID, Name: NormalizeName(name), OwnerID: ownerID}
}

// AlertID is the alert document id for the key, unique within a family.
func (k GroupKey) AlertID() string {
	return k.Name + "_" + k.OwnerID
}

// NormalizeName folds an item name into its aggregation form.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsPublic reports whether ownerID is the shared owner sentinel.
func IsPublic(ownerID string) bool {
	return ownerID == PublicOwner
}
