package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/larder/internal/model"
)

type alertRow struct {
	FamilyID     string `db:"family_id"`
	ID           string `db:"id"`
	ItemName     string `db:"item_name"`
	OwnerID      string `db:"owner_id"`
	Status       string `db:"status"`
	CurrentTotal int    `db:"current_total"`
	Threshold    int    `db:"threshold"`
	Unit         string `db:"unit"`
	IgnoredBy    string `db:"ignored_by"`
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

const alertCols = `family_id, id, item_name, owner_id, status, current_total, threshold, unit, ignored_by, created_at, updated_at`

func (r alertRow) model() (model.Alert, error) {
	a := model.Alert{
		ID:           r.ID,
		FamilyID:     r.FamilyID,
		ItemName:     r.ItemName,
		OwnerID:      r.OwnerID,
		Status:       model.AlertStatus(r.Status),
		CurrentTotal: r.CurrentTotal,
		Threshold:    r.Threshold,
		Unit:         r.Unit,
		CreatedAt:    fromMillis(r.CreatedAt),
		UpdatedAt:    fromMillis(r.UpdatedAt),
	}
	if r.IgnoredBy != "" {
		if err := json.Unmarshal([]byte(r.IgnoredBy), &a.IgnoredBy); err != nil {
			return a, fmt.Errorf("decode ignored_by: %w", err)
		}
	}
	return a, nil
}

func (s *queries) ListAlerts(ctx context.Context, familyID string) ([]model.Alert, error) {
	var rows []alertRow
	err := sqlx.SelectContext(ctx, s.q, &rows,
		`SELECT `+alertCols+` FROM alerts WHERE family_id = ? ORDER BY item_name, owner_id`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	alerts := make([]model.Alert, 0, len(rows))
	for _, r := range rows {
		a, err := r.model()
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

func (s *queries) GetAlert(ctx context.Context, familyID, id string) (*model.Alert, error) {
	var r alertRow
	err := sqlx.GetContext(ctx, s.q, &r, `SELECT `+alertCols+` FROM alerts WHERE family_id = ? AND id = ?`, familyID, id)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	a, err := r.model()
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *queries) PutAlert(ctx context.Context, a *model.Alert) error {
	if err := model.Validate(a); err != nil {
		return err
	}
	now := s.now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	ignored := a.IgnoredBy
	if ignored == nil {
		ignored = []string{}
	}
	ignoredJSON, err := json.Marshal(ignored)
	if err != nil {
		return fmt.Errorf("encode ignored_by: %w", err)
	}

	_, err = sqlx.NamedExecContext(ctx, s.q,
		`INSERT INTO alerts (`+alertCols+`) VALUES (:family_id, :id, :item_name, :owner_id, :status,
			:current_total, :threshold, :unit, :ignored_by, :created_at, :updated_at)
		ON CONFLICT (family_id, id) DO UPDATE SET
			item_name = excluded.item_name, owner_id = excluded.owner_id, status = excluded.status,
			current_total = excluded.current_total, threshold = excluded.threshold, unit = excluded.unit,
			ignored_by = excluded.ignored_by, updated_at = excluded.updated_at`,
		alertRow{
			FamilyID:     a.FamilyID,
			ID:           a.ID,
			ItemName:     a.ItemName,
			OwnerID:      a.OwnerID,
			Status:       string(a.Status),
			CurrentTotal: a.CurrentTotal,
			Threshold:    a.Threshold,
			Unit:         a.Unit,
			IgnoredBy:    string(ignoredJSON),
			CreatedAt:    toMillis(a.CreatedAt),
			UpdatedAt:    toMillis(a.UpdatedAt),
		},
	)
	if err != nil {
		return fmt.Errorf("put alert: %w", classify(err))
	}
	return nil
}

func (s *queries) DeleteAlert(ctx context.Context, familyID, id string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM alerts WHERE family_id = ? AND id = ?`, familyID, id); err != nil {
		return fmt.Errorf("delete alert: %w", classify(err))
	}
	return nil
}
