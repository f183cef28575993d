package model

import (
	"slices"
	"time"
)

const (
	DefaultMemberLimit = 5
	MinMemberLimit     = 2
)

type Family struct {
	ID          string    `json:"id"`
	Code        string    `json:"code" validate:"required,len=6,alphanum"`
	Name        string    `json:"name" validate:"required,max=80"`
	CreatorID   string    `json:"creator_id" validate:"required"`
	Members     []string  `json:"members"`
	MemberLimit int       `json:"member_limit" validate:"gte=2"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (f Family) HasMember(userID string) bool {
	return slices.Contains(f.Members, userID)
}

// User is a member profile. FamilyID is empty until the user creates or joins a family.
type User struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name" validate:"required,max=80"`
	Color     string    `json:"color" validate:"omitempty,hexcolor"`
	FamilyID  string    `json:"family_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
