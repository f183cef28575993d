package model

import "time"

type ShoppingEntry struct {
	ID        string     `json:"id"`
	FamilyID  string     `json:"family_id" validate:"required"`
	Name      string     `json:"name" validate:"required,max=120"`
	Quantity  int        `json:"quantity" validate:"gt=0"`
	Unit      string     `json:"unit" validate:"max=20"`
	Category  string     `json:"category" validate:"max=60"`
	OwnerID   string     `json:"owner_id" validate:"required"`
	OwnerName string     `json:"owner_name"`
	Checked   bool       `json:"checked"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	AddedBy   string     `json:"added_by"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (e ShoppingEntry) Key() GroupKey {
	return NewGroupKey(e.FamilyID, e.Name, e.OwnerID)
}

func (e ShoppingEntry) HasExpiry() bool {
	return e.ExpiresAt != nil && e.ExpiresAt.Unix() > 0
}
