package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/port"
)

type shoppingRow struct {
	ID        string `db:"id"`
	FamilyID  string `db:"family_id"`
	Name      string `db:"name"`
	NameKey   string `db:"name_key"`
	Quantity  int    `db:"quantity"`
	Unit      string `db:"unit"`
	Category  string `db:"category"`
	OwnerID   string `db:"owner_id"`
	OwnerName string `db:"owner_name"`
	Checked   bool   `db:"checked"`
	ExpiresAt int64  `db:"expires_at"`
	AddedBy   string `db:"added_by"`
	Version   int64  `db:"version"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

const shoppingCols = `id, family_id, name, name_key, quantity, unit, category, owner_id, owner_name, checked,
	expires_at, added_by, version, created_at, updated_at`

func newShoppingRow(e *model.ShoppingEntry) shoppingRow {
	return shoppingRow{
		ID:        e.ID,
		FamilyID:  e.FamilyID,
		Name:      strings.TrimSpace(e.Name),
		NameKey:   model.NormalizeName(e.Name),
		Quantity:  e.Quantity,
		Unit:      e.Unit,
		Category:  e.Category,
		OwnerID:   e.OwnerID,
		OwnerName: e.OwnerName,
		Checked:   e.Checked,
		ExpiresAt: expiryToMillis(e.ExpiresAt),
		AddedBy:   e.AddedBy,
		Version:   e.Version,
		CreatedAt: toMillis(e.CreatedAt),
		UpdatedAt: toMillis(e.UpdatedAt),
	}
}

func (r shoppingRow) model() model.ShoppingEntry {
	return model.ShoppingEntry{
		ID:        r.ID,
		FamilyID:  r.FamilyID,
		Name:      r.Name,
		Quantity:  r.Quantity,
		Unit:      r.Unit,
		Category:  r.Category,
		OwnerID:   r.OwnerID,
		OwnerName: r.OwnerName,
		Checked:   r.Checked,
		ExpiresAt: expiryFromMillis(r.ExpiresAt),
		AddedBy:   r.AddedBy,
		Version:   r.Version,
		CreatedAt: fromMillis(r.CreatedAt),
		UpdatedAt: fromMillis(r.UpdatedAt),
	}
}

func (s *queries) FindShopping(ctx context.Context, q port.ShoppingQuery) ([]model.ShoppingEntry, error) {
	var (
		where []string
		args  []any
	)
	if q.FamilyID != "" {
		where = append(where, "family_id = ?")
		args = append(args, q.FamilyID)
	}
	if q.NameKey != "" {
		where = append(where, "name_key = ?")
		args = append(args, model.NormalizeName(q.NameKey))
	}
	if q.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, q.OwnerID)
	}
	if q.Checked != nil {
		where = append(where, "checked = ?")
		args = append(args, *q.Checked)
	}

	query := `SELECT ` + shoppingCols + ` FROM shopping_lists`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, rowid`

	var rows []shoppingRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("find shopping entries: %w", err)
	}
	entries := make([]model.ShoppingEntry, len(rows))
	for i, r := range rows {
		entries[i] = r.model()
	}
	return entries, nil
}

func (s *queries) GetShopping(ctx context.Context, familyID, id string) (*model.ShoppingEntry, error) {
	var r shoppingRow
	err := sqlx.GetContext(ctx, s.q, &r, `SELECT `+shoppingCols+` FROM shopping_lists WHERE family_id = ? AND id = ?`, familyID, id)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shopping entry: %w", err)
	}
	e := r.model()
	return &e, nil
}

func (s *queries) InsertShopping(ctx context.Context, e *model.ShoppingEntry) error {
	if err := model.Validate(e); err != nil {
		return err
	}
	now := s.now().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Version = 1
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := sqlx.NamedExecContext(ctx, s.q,
		`INSERT INTO shopping_lists (`+shoppingCols+`) VALUES (:id, :family_id, :name, :name_key, :quantity, :unit,
			:category, :owner_id, :owner_name, :checked, :expires_at, :added_by, :version, :created_at, :updated_at)`,
		newShoppingRow(e),
	)
	if err != nil {
		return fmt.Errorf("insert shopping entry: %w", classify(err))
	}
	return nil
}

func (s *queries) UpdateShopping(ctx context.Context, e *model.ShoppingEntry) error {
	if err := model.Validate(e); err != nil {
		return err
	}
	now := s.now().UTC()
	r := newShoppingRow(e)
	r.UpdatedAt = toMillis(now)

	res, err := sqlx.NamedExecContext(ctx, s.q,
		`UPDATE shopping_lists SET name = :name, name_key = :name_key, quantity = :quantity, unit = :unit,
			category = :category, owner_id = :owner_id, owner_name = :owner_name, checked = :checked,
			expires_at = :expires_at, version = version + 1, updated_at = :updated_at
		WHERE id = :id AND family_id = :family_id AND version = :version`,
		r,
	)
	if err != nil {
		return fmt.Errorf("update shopping entry: %w", classify(err))
	}
	if err := checkAffected(res, "update shopping entry"); err != nil {
		return err
	}
	e.Version++
	e.UpdatedAt = now
	return nil
}

func (s *queries) DeleteShopping(ctx context.Context, e model.ShoppingEntry) error {
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM shopping_lists WHERE id = ? AND family_id = ? AND version = ?`,
		e.ID, e.FamilyID, e.Version,
	)
	if err != nil {
		return fmt.Errorf("delete shopping entry: %w", classify(err))
	}
	return checkAffected(res, "delete shopping entry")
}
