package auth

import (
	"context"
	"errors"
)

// ErrNoFamily reports a member acting on family data before joining one.
var ErrNoFamily = errors.New("not a member of any family")

type contextKey struct{}

// Session identifies the signed-in member and the family they act in.
// FamilyID is empty until the member creates or joins a family.
type Session struct {
	UserID   string
	UserName string
	FamilyID string
}

func (s Session) HasFamily() bool {
	return s.FamilyID != ""
}

func (s Session) RequireFamily() error {
	if !s.HasFamily() {
		return ErrNoFamily
	}
	return nil
}

func WithAuth(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

func FamilyID(ctx context.Context) string {
	s, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return s.FamilyID
}

func UserID(ctx context.Context) string {
	s, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return s.UserID
}
