package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/larder/internal/model"
)

type familyRow struct {
	ID          string `db:"id"`
	Code        string `db:"code"`
	Name        string `db:"name"`
	CreatorID   string `db:"creator_id"`
	MemberLimit int    `db:"member_limit"`
	Version     int64  `db:"version"`
	CreatedAt   int64  `db:"created_at"`
	UpdatedAt   int64  `db:"updated_at"`
}

const familyCols = `id, code, name, creator_id, member_limit, version, created_at, updated_at`

func (s *queries) loadFamily(ctx context.Context, where string, arg any) (*model.Family, error) {
	var r familyRow
	err := sqlx.GetContext(ctx, s.q, &r, `SELECT `+familyCols+` FROM families WHERE `+where, arg)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}

	var members []string
	err = sqlx.SelectContext(ctx, s.q, &members,
		`SELECT user_id FROM family_members WHERE family_id = ? ORDER BY position`, r.ID)
	if err != nil {
		return nil, fmt.Errorf("list family members: %w", err)
	}

	return &model.Family{
		ID:          r.ID,
		Code:        r.Code,
		Name:        r.Name,
		CreatorID:   r.CreatorID,
		Members:     members,
		MemberLimit: r.MemberLimit,
		Version:     r.Version,
		CreatedAt:   fromMillis(r.CreatedAt),
		UpdatedAt:   fromMillis(r.UpdatedAt),
	}, nil
}

func (s *queries) GetFamily(ctx context.Context, id string) (*model.Family, error) {
	return s.loadFamily(ctx, `id = ?`, id)
}

func (s *queries) GetFamilyByCode(ctx context.Context, code string) (*model.Family, error) {
	return s.loadFamily(ctx, `code = ?`, strings.ToUpper(strings.TrimSpace(code)))
}

// InsertFamily writes the family and its member list. Call it inside RunTx.
func (s *queries) InsertFamily(ctx context.Context, f *model.Family) error {
	if err := model.Validate(f); err != nil {
		return err
	}
	now := s.now().UTC()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.Version = 1
	f.CreatedAt = now
	f.UpdatedAt = now

	_, err := sqlx.NamedExecContext(ctx, s.q,
		`INSERT INTO families (`+familyCols+`) VALUES (:id, :code, :name, :creator_id, :member_limit, :version, :created_at, :updated_at)`,
		familyRow{
			ID:          f.ID,
			Code:        f.Code,
			Name:        f.Name,
			CreatorID:   f.CreatorID,
			MemberLimit: f.MemberLimit,
			Version:     f.Version,
			CreatedAt:   toMillis(f.CreatedAt),
			UpdatedAt:   toMillis(f.UpdatedAt),
		},
	)
	if err != nil {
		return fmt.Errorf("insert family: %w", classify(err))
	}
	return s.writeMembers(ctx, f)
}

// UpdateFamily replaces name, limit and member list. Call it inside RunTx.
func (s *queries) UpdateFamily(ctx context.Context, f *model.Family) error {
	if err := model.Validate(f); err != nil {
		return err
	}
	now := s.now().UTC()
	res, err := s.q.ExecContext(ctx,
		`UPDATE families SET name = ?, member_limit = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		f.Name, f.MemberLimit, toMillis(now), f.ID, f.Version,
	)
	if err != nil {
		return fmt.Errorf("update family: %w", classify(err))
	}
	if err := checkAffected(res, "update family"); err != nil {
		return err
	}
	f.Version++
	f.UpdatedAt = now

	if _, err := s.q.ExecContext(ctx, `DELETE FROM family_members WHERE family_id = ?`, f.ID); err != nil {
		return fmt.Errorf("clear family members: %w", classify(err))
	}
	return s.writeMembers(ctx, f)
}

func (s *queries) writeMembers(ctx context.Context, f *model.Family) error {
	for i, userID := range f.Members {
		_, err := s.q.ExecContext(ctx,
			`INSERT INTO family_members (family_id, user_id, position) VALUES (?, ?, ?)`,
			f.ID, userID, i,
		)
		if err != nil {
			return fmt.Errorf("insert family member: %w", classify(err))
		}
	}
	return nil
}
