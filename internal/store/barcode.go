package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/larder/internal/model"
)

const barcodeCols = `family_id, code, name, category, unit`

func (s *queries) GetBarcode(ctx context.Context, familyID, code string) (*model.BarcodeProduct, error) {
	var p struct {
		FamilyID string `db:"family_id"`
		Code     string `db:"code"`
		Name     string `db:"name"`
		Category string `db:"category"`
		Unit     string `db:"unit"`
	}
	err := sqlx.GetContext(ctx, s.q, &p,
		`SELECT `+barcodeCols+` FROM barcode_library WHERE family_id = ? AND code = ?`,
		familyID, strings.TrimSpace(code))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get barcode: %w", err)
	}
	return &model.BarcodeProduct{
		FamilyID: p.FamilyID,
		Code:     p.Code,
		Name:     p.Name,
		Category: p.Category,
		Unit:     p.Unit,
	}, nil
}

func (s *queries) PutBarcode(ctx context.Context, p *model.BarcodeProduct) error {
	p.Code = strings.TrimSpace(p.Code)
	if err := model.Validate(p); err != nil {
		return err
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO barcode_library (`+barcodeCols+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (family_id, code) DO UPDATE SET
			name = excluded.name, category = excluded.category, unit = excluded.unit`,
		p.FamilyID, p.Code, p.Name, p.Category, p.Unit,
	)
	if err != nil {
		return fmt.Errorf("put barcode: %w", classify(err))
	}
	return nil
}
