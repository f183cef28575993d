package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/larder/internal/model"
)

type userRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Color     string `db:"color"`
	FamilyID  string `db:"family_id"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

const userCols = `id, name, color, family_id, created_at, updated_at`

func (r userRow) model() model.User {
	return model.User{
		ID:        r.ID,
		Name:      r.Name,
		Color:     r.Color,
		FamilyID:  r.FamilyID,
		CreatedAt: fromMillis(r.CreatedAt),
		UpdatedAt: fromMillis(r.UpdatedAt),
	}
}

func (s *queries) GetUser(ctx context.Context, id string) (*model.User, error) {
	var r userRow
	err := sqlx.GetContext(ctx, s.q, &r, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u := r.model()
	return &u, nil
}

func (s *queries) ListUsersByFamily(ctx context.Context, familyID string) ([]model.User, error) {
	var rows []userRow
	err := sqlx.SelectContext(ctx, s.q, &rows,
		`SELECT `+userCols+` FROM users WHERE family_id = ? ORDER BY name, id`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]model.User, len(rows))
	for i, r := range rows {
		users[i] = r.model()
	}
	return users, nil
}

func (s *queries) PutUser(ctx context.Context, u *model.User) error {
	if err := model.Validate(u); err != nil {
		return err
	}
	now := s.now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	_, err := sqlx.NamedExecContext(ctx, s.q,
		`INSERT INTO users (`+userCols+`) VALUES (:id, :name, :color, :family_id, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, color = excluded.color, family_id = excluded.family_id, updated_at = excluded.updated_at`,
		userRow{
			ID:        u.ID,
			Name:      u.Name,
			Color:     u.Color,
			FamilyID:  u.FamilyID,
			CreatedAt: toMillis(u.CreatedAt),
			UpdatedAt: toMillis(u.UpdatedAt),
		},
	)
	if err != nil {
		return fmt.Errorf("put user: %w", classify(err))
	}
	return nil
}
