package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/port"
)

type batchRow struct {
	ID             string        `db:"id"`
	FamilyID       string        `db:"family_id"`
	Name           string        `db:"name"`
	NameKey        string        `db:"name_key"`
	Category       string        `db:"category"`
	Quantity       int           `db:"quantity"`
	Unit           string        `db:"unit"`
	ExpiresAt      int64         `db:"expires_at"`
	OwnerID        string        `db:"owner_id"`
	OwnerName      string        `db:"owner_name"`
	Location       string        `db:"location"`
	Notes          string        `db:"notes"`
	MinThreshold   sql.NullInt64 `db:"min_threshold"`
	PendingSetup   bool          `db:"pending_setup"`
	LastModifiedBy string        `db:"last_modified_by"`
	Version        int64         `db:"version"`
	CreatedAt      int64         `db:"created_at"`
	UpdatedAt      int64         `db:"updated_at"`
}

const batchCols = `id, family_id, name, name_key, category, quantity, unit, expires_at, owner_id, owner_name,
	location, notes, min_threshold, pending_setup, last_modified_by, version, created_at, updated_at`

func newBatchRow(b *model.Batch) batchRow {
	r := batchRow{
		ID:             b.ID,
		FamilyID:       b.FamilyID,
		Name:           strings.TrimSpace(b.Name),
		NameKey:        model.NormalizeName(b.Name),
		Category:       b.Category,
		Quantity:       b.Quantity,
		Unit:           b.Unit,
		ExpiresAt:      expiryToMillis(b.ExpiresAt),
		OwnerID:        b.OwnerID,
		OwnerName:      b.OwnerName,
		Location:       b.Location,
		Notes:          b.Notes,
		PendingSetup:   b.PendingSetup,
		LastModifiedBy: b.LastModifiedBy,
		Version:        b.Version,
		CreatedAt:      toMillis(b.CreatedAt),
		UpdatedAt:      toMillis(b.UpdatedAt),
	}
	if b.MinThreshold != nil {
		r.MinThreshold = sql.NullInt64{Int64: int64(*b.MinThreshold), Valid: true}
	}
	return r
}

func (r batchRow) model() model.Batch {
	b := model.Batch{
		ID:             r.ID,
		FamilyID:       r.FamilyID,
		Name:           r.Name,
		Category:       r.Category,
		Quantity:       r.Quantity,
		Unit:           r.Unit,
		ExpiresAt:      expiryFromMillis(r.ExpiresAt),
		OwnerID:        r.OwnerID,
		OwnerName:      r.OwnerName,
		Location:       r.Location,
		Notes:          r.Notes,
		PendingSetup:   r.PendingSetup,
		LastModifiedBy: r.LastModifiedBy,
		Version:        r.Version,
		CreatedAt:      fromMillis(r.CreatedAt),
		UpdatedAt:      fromMillis(r.UpdatedAt),
	}
	if r.MinThreshold.Valid {
		th := int(r.MinThreshold.Int64)
		b.MinThreshold = &th
	}
	return b
}

func (s *queries) FindBatches(ctx context.Context, q port.BatchQuery) ([]model.Batch, error) {
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
	if q.NamePrefix != "" {
		where = append(where, `name_key LIKE ? ESCAPE '\'`)
		args = append(args, likePrefix(model.NormalizeName(q.NamePrefix)))
	}
	if q.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, q.OwnerID)
	}
	if q.ExcludePending {
		where = append(where, "pending_setup = 0")
	}

	query := `SELECT ` + batchCols + ` FROM inventory`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, rowid`

	var rows []batchRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("find batches: %w", err)
	}
	batches := make([]model.Batch, len(rows))
	for i, r := range rows {
		batches[i] = r.model()
	}
	return batches, nil
}

func (s *queries) GetBatch(ctx context.Context, familyID, id string) (*model.Batch, error) {
	var r batchRow
	err := sqlx.GetContext(ctx, s.q, &r, `SELECT `+batchCols+` FROM inventory WHERE family_id = ? AND id = ?`, familyID, id)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	b := r.model()
	return &b, nil
}

func (s *queries) InsertBatch(ctx context.Context, b *model.Batch) error {
	if err := model.Validate(b); err != nil {
		return err
	}
	now := s.now().UTC()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.Version = 1
	b.CreatedAt = now
	b.UpdatedAt = now

	_, err := sqlx.NamedExecContext(ctx, s.q,
		`INSERT INTO inventory (`+batchCols+`) VALUES (:id, :family_id, :name, :name_key, :category, :quantity, :unit,
			:expires_at, :owner_id, :owner_name, :location, :notes, :min_threshold, :pending_setup,
			:last_modified_by, :version, :created_at, :updated_at)`,
		newBatchRow(b),
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", classify(err))
	}
	return nil
}

func (s *queries) UpdateBatch(ctx context.Context, b *model.Batch) error {
	if err := model.Validate(b); err != nil {
		return err
	}
	now := s.now().UTC()
	r := newBatchRow(b)
	r.UpdatedAt = toMillis(now)

	res, err := sqlx.NamedExecContext(ctx, s.q,
		`UPDATE inventory SET name = :name, name_key = :name_key, category = :category, quantity = :quantity,
			unit = :unit, expires_at = :expires_at, owner_id = :owner_id, owner_name = :owner_name,
			location = :location, notes = :notes, min_threshold = :min_threshold, pending_setup = :pending_setup,
			last_modified_by = :last_modified_by, version = version + 1, updated_at = :updated_at
		WHERE id = :id AND family_id = :family_id AND version = :version`,
		r,
	)
	if err != nil {
		return fmt.Errorf("update batch: %w", classify(err))
	}
	if err := checkAffected(res, "update batch"); err != nil {
		return err
	}
	b.Version++
	b.UpdatedAt = now
	return nil
}

func (s *queries) DeleteBatch(ctx context.Context, b model.Batch) error {
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM inventory WHERE id = ? AND family_id = ? AND version = ?`,
		b.ID, b.FamilyID, b.Version,
	)
	if err != nil {
		return fmt.Errorf("delete batch: %w", classify(err))
	}
	return checkAffected(res, "delete batch")
}
