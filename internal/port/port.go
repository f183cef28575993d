// Package port declares the document store used by the inventory services.
// Adapters live in internal/store (sqlite) and internal/mongostore.
package port

import (
	"context"

	"github.com/dukerupert/larder/internal/model"
)

// BatchQuery filters inventory batches. Empty fields do not filter.
type BatchQuery struct {
	FamilyID       string
	NameKey        string
	NamePrefix     string
	OwnerID        string
	ExcludePending bool
}

// ShoppingQuery filters shopping-list entries. A nil Checked does not filter.
type ShoppingQuery struct {
	FamilyID string
	NameKey  string
	OwnerID  string
	Checked  *bool
}

// Updates and deletes of versioned records compare Version and fail with
// ErrConflict when the stored document changed or vanished. A successful
// update increments Version on the passed record.

type BatchRepository interface {
	FindBatches(ctx context.Context, q BatchQuery) ([]model.Batch, error)
	GetBatch(ctx context.Context, familyID, id string) (*model.Batch, error)
	InsertBatch(ctx context.Context, b *model.Batch) error
	UpdateBatch(ctx context.Context, b *model.Batch) error
	DeleteBatch(ctx context.Context, b model.Batch) error
}

type AlertRepository interface {
	ListAlerts(ctx context.Context, familyID string) ([]model.Alert, error)
	GetAlert(ctx context.Context, familyID, id string) (*model.Alert, error)
	PutAlert(ctx context.Context, a *model.Alert) error
	// DeleteAlert is a no-op when the alert does not exist.
	DeleteAlert(ctx context.Context, familyID, id string) error
}

type ShoppingRepository interface {
	FindShopping(ctx context.Context, q ShoppingQuery) ([]model.ShoppingEntry, error)
	GetShopping(ctx context.Context, familyID, id string) (*model.ShoppingEntry, error)
	InsertShopping(ctx context.Context, e *model.ShoppingEntry) error
	UpdateShopping(ctx context.Context, e *model.ShoppingEntry) error
	DeleteShopping(ctx context.Context, e model.ShoppingEntry) error
}

type FamilyRepository interface {
	GetFamily(ctx context.Context, id string) (*model.Family, error)
	GetFamilyByCode(ctx context.Context, code string) (*model.Family, error)
	InsertFamily(ctx context.Context, f *model.Family) error
	UpdateFamily(ctx context.Context, f *model.Family) error
}

type UserRepository interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	ListUsersByFamily(ctx context.Context, familyID string) ([]model.User, error)
	PutUser(ctx context.Context, u *model.User) error
}

type BarcodeRepository interface {
	GetBarcode(ctx context.Context, familyID, code string) (*model.BarcodeProduct, error)
	PutBarcode(ctx context.Context, p *model.BarcodeProduct) error
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	BatchRepository
	AlertRepository
	ShoppingRepository
	FamilyRepository
	UserRepository
	BarcodeRepository
}

// Store is a Tx outside of any transaction plus the transaction primitive.
type Store interface {
	Tx

	// RunTx runs fn in one transaction. fn may run more than once: it is
	// replayed when the commit, or any versioned write, hits ErrConflict.
	// fn must use only the tx it is given.
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Close() error
}
