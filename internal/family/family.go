// Package family manages families, their join codes and member profiles.
package family

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/feed"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/port"
)

var (
	ErrFamilyFull    = errors.New("family is full")
	ErrInvalidCode   = errors.New("no family with that code")
	ErrNotMember     = errors.New("not a member of this family")
	ErrCodeExhausted = errors.New("could not allocate a unique family code")
)

const (
	codeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeAttempts = 10
)

type Service struct {
	store   port.Store
	pub     feed.Publisher
	logger  *slog.Logger
	newCode func() string
}

func NewService(store port.Store, pub feed.Publisher, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		pub:     pub,
		logger:  logger,
		newCode: randomCode,
	}
}

// View is a family with its member profiles.
type View struct {
	Family  model.Family `json:"family"`
	Members []model.User `json:"members"`
}

// EnsureUser returns the profile for id, creating it on first sight.
func (s *Service) EnsureUser(ctx context.Context, id, name string) (*model.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = "Member"
	}
	u = &model.User{ID: id, Name: name}
	if err := s.store.PutUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user created", "user_id", id)
	return u, nil
}

func (s *Service) UpdateProfile(ctx context.Context, sess auth.Session, name, color *string) (*model.User, error) {
	var out *model.User
	err := s.store.RunTx(ctx, func(ctx context.Context, tx port.Tx) error {
		u, err := tx.GetUser(ctx, sess.UserID)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("user %s: %w", sess.UserID, port.ErrNotFound)
		}
		if name != nil {
			u.Name = strings.TrimSpace(*name)
		}
		if color != nil {
			u.Color = strings.TrimSpace(*color)
		}
		if err := tx.PutUser(ctx, u); err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if out.FamilyID != "" {
		s.pub.Publish(ctx, feed.Change{FamilyID: out.FamilyID, Topics: []feed.Topic{feed.TopicFamily}})
	}
	return out, nil
}

// Create makes a new family with the caller as its first member. A
// memberLimit of 0 selects the default.
func (s *Service) Create(ctx context.Context, sess auth.Session, name string, memberLimit int) (*model.Family, error) {
	name = strings.TrimSpace(name)
	if memberLimit == 0 {
		memberLimit = model.DefaultMemberLimit
	}
	if memberLimit < model.MinMemberLimit {
		return nil, fmt.Errorf("%w: member limit must be at least %d", model.ErrInvalid, model.MinMemberLimit)
	}

	var (
		created  *model.Family
		previous string
	)
	err := s.store.RunTx(ctx, func(ctx context.Context, tx port.Tx) error {
		u, err := tx.GetUser(ctx, sess.UserID)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("user %s: %w", sess.UserID, port.ErrNotFound)
		}

		code, err := s.uniqueCode(ctx, tx)
		if err != nil {
			return err
		}

		previous = u.FamilyID
		if err := leave(ctx, tx, u); err != nil {
			return err
		}

		f := &model.Family{
			Code:        code,
			Name:        name,
			CreatorID:   u.ID,
			Members:     []string{u.ID},
			MemberLimit: memberLimit,
		}
		if err := tx.InsertFamily(ctx, f); err != nil {
			return err
		}
		u.FamilyID = f.ID
		if err := tx.PutUser(ctx, u); err != nil {
			return err
		}
		created = f
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create family: %w", err)
	}

	s.logger.Info("family created", "family_id", created.ID, "creator", sess.UserID)
	s.publishFamilies(ctx, created.ID, previous)
	return created, nil
}

// Join adds the caller to the family with the given code, leaving any
// previous family. Joining a family twice is a no-op.
func (s *Service) Join(ctx context.Context, sess auth.Session, code string) (*model.Family, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != codeLength {
		return nil, ErrInvalidCode
	}

	var (
		joined   *model.Family
		previous string
	)
	err := s.store.RunTx(ctx, func(ctx context.Context, tx port.Tx) error {
		f, err := tx.GetFamilyByCode(ctx, code)
		if err != nil {
			return err
		}
		if f == nil {
			return ErrInvalidCode
		}
		u, err := tx.GetUser(ctx, sess.UserID)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("user %s: %w", sess.UserID, port.ErrNotFound)
		}

		previous = ""
		member := f.HasMember(u.ID)
		if member && u.FamilyID == f.ID {
			joined = f
			return nil
		}
		if !member && len(f.Members) >= f.MemberLimit {
			return ErrFamilyFull
		}
		if u.FamilyID != f.ID {
			previous = u.FamilyID
			if err := leave(ctx, tx, u); err != nil {
				return err
			}
		}
		if !member {
			f.Members = append(f.Members, u.ID)
			if err := tx.UpdateFamily(ctx, f); err != nil {
				return err
			}
		}
		joined = f

		u.FamilyID = f.ID
		return tx.PutUser(ctx, u)
	})
	if err != nil {
		return nil, fmt.Errorf("join family: %w", err)
	}

	s.logger.Info("family joined", "family_id", joined.ID, "user_id", sess.UserID)
	s.publishFamilies(ctx, joined.ID, previous)
	return joined, nil
}

func (s *Service) Current(ctx context.Context, sess auth.Session) (*View, error) {
	if err := sess.RequireFamily(); err != nil {
		return nil, err
	}
	f, err := s.store.GetFamily(ctx, sess.FamilyID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("family %s: %w", sess.FamilyID, port.ErrNotFound)
	}
	members, err := s.store.ListUsersByFamily(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	return &View{Family: *f, Members: members}, nil
}

// UpdateSettings renames the family and/or changes its member limit. The
// limit can not drop below the current member count.
func (s *Service) UpdateSettings(ctx context.Context, sess auth.Session, name *string, memberLimit *int) (*model.Family, error) {
	if err := sess.RequireFamily(); err != nil {
		return nil, err
	}

	var out *model.Family
	err := s.store.RunTx(ctx, func(ctx context.Context, tx port.Tx) error {
		f, err := tx.GetFamily(ctx, sess.FamilyID)
		if err != nil {
			return err
		}
		if f == nil {
			return fmt.Errorf("family %s: %w", sess.FamilyID, port.ErrNotFound)
		}
		if !f.HasMember(sess.UserID) {
			return ErrNotMember
		}
		if name != nil {
			f.Name = strings.TrimSpace(*name)
		}
		if memberLimit != nil {
			limit := *memberLimit
			if limit < model.MinMemberLimit || limit < len(f.Members) {
				return fmt.Errorf("%w: member limit must be at least %d", model.ErrInvalid, max(model.MinMemberLimit, len(f.Members)))
			}
			f.MemberLimit = limit
		}
		if err := tx.UpdateFamily(ctx, f); err != nil {
			return err
		}
		out = f
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update family: %w", err)
	}
	s.pub.Publish(ctx, feed.Change{FamilyID: out.ID, Topics: []feed.Topic{feed.TopicFamily}})
	return out, nil
}

// MemberNames maps every member id of the family, plus the public owner, to
// a display name.
func MemberNames(ctx context.Context, users port.UserRepository, familyID string) (map[string]string, error) {
	members, err := users.ListUsersByFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(members)+1)
	names[model.PublicOwner] = model.PublicOwnerName
	for _, u := range members {
		names[u.ID] = u.Name
	}
	return names, nil
}

// OwnerName resolves the display name of an owner within a family.
func OwnerName(ctx context.Context, users port.UserRepository, familyID, ownerID string) (string, error) {
	if model.IsPublic(ownerID) {
		return model.PublicOwnerName, nil
	}
	u, err := users.GetUser(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if u == nil || u.FamilyID != familyID {
		return "", fmt.Errorf("owner %s: %w", ownerID, ErrNotMember)
	}
	return u.Name, nil
}

func (s *Service) uniqueCode(ctx context.Context, tx port.Tx) (string, error) {
	for range codeAttempts {
		code := s.newCode()
		existing, err := tx.GetFamilyByCode(ctx, code)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

// leave removes u from its current family's member list, if any.
func leave(ctx context.Context, tx port.Tx, u *model.User) error {
	if u.FamilyID == "" {
		return nil
	}
	old, err := tx.GetFamily(ctx, u.FamilyID)
	if err != nil {
		return err
	}
	u.FamilyID = ""
	if old == nil || !old.HasMember(u.ID) {
		return nil
	}
	old.Members = slices.DeleteFunc(old.Members, func(id string) bool { return id == u.ID })
	return tx.UpdateFamily(ctx, old)
}

func (s *Service) publishFamilies(ctx context.Context, ids ...string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		s.pub.Publish(ctx, feed.Change{FamilyID: id, Topics: []feed.Topic{feed.TopicFamily}})
	}
}

func randomCode() string {
	b := make([]byte, codeLength)
	rand.Read(b)
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b)
}
