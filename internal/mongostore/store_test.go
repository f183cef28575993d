package mongostore

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/port"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("LARDER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("LARDER_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbName := "larder_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	s, err := Open(ctx, uri, dbName, WithClock(func() time.Time { return testNow }), WithTxAttempts(3))
	if err != nil {
		t.Skipf("mongo not available at %s: %v", uri, err)
	}
	t.Cleanup(func() {
		s.Database().Drop(context.Background())
		s.Close()
	})
	return s
}

func intPtr(i int) *int { return &i }

func TestBatchVersioning(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	b := &model.Batch{
		FamilyID:     "fam",
		Name:         " Milk ",
		Quantity:     2,
		Unit:         "L",
		OwnerID:      model.PublicOwner,
		MinThreshold: intPtr(3),
	}
	if err := s.InsertBatch(ctx, b); err != nil {
		t.Fatalf("insert batch: %v", err)
	}

	found, err := s.FindBatches(ctx, port.BatchQuery{FamilyID: "fam", NameKey: "MILK"})
	if err != nil {
		t.Fatalf("find batches: %v", err)
	}
	if len(found) != 1 || found[0].Name != "Milk" || *found[0].MinThreshold != 3 {
		t.Fatalf("found = %+v, want trimmed Milk with threshold 3", found)
	}

	stale := *b
	b.Quantity = 1
	b.MinThreshold = nil
	if err := s.UpdateBatch(ctx, b); err != nil {
		t.Fatalf("update batch: %v", err)
	}
	if b.Version != 2 {
		t.Errorf("Version = %d, want 2", b.Version)
	}
	got, _ := s.GetBatch(ctx, "fam", b.ID)
	if got.MinThreshold != nil {
		t.Errorf("MinThreshold = %v, want cleared", *got.MinThreshold)
	}

	stale.Quantity = 5
	if err := s.UpdateBatch(ctx, &stale); !errors.Is(err, port.ErrConflict) {
		t.Errorf("stale update err = %v, want ErrConflict", err)
	}
	if err := s.DeleteBatch(ctx, stale); !errors.Is(err, port.ErrConflict) {
		t.Errorf("stale delete err = %v, want ErrConflict", err)
	}
	if err := s.DeleteBatch(ctx, *b); err != nil {
		t.Fatalf("delete batch: %v", err)
	}
	if got, _ := s.GetBatch(ctx, "fam", b.ID); got != nil {
		t.Error("batch still present after delete")
	}
}

func TestFindBatchesPrefixAndOrder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"Rice", "rice noodles", "Rye (dark)", "Beans"} {
		if err := s.InsertBatch(ctx, &model.Batch{FamilyID: "fam", Name: name, Quantity: 1, OwnerID: "u1"}); err != nil {
			t.Fatalf("insert %s: %v", name, err)
		}
	}

	found, err := s.FindBatches(ctx, port.BatchQuery{FamilyID: "fam", NamePrefix: "ri"})
	if err != nil {
		t.Fatalf("find batches: %v", err)
	}
	if len(found) != 2 || found[0].Name != "Rice" || found[1].Name != "rice noodles" {
		t.Errorf("found = %+v, want Rice then rice noodles", found)
	}

	found, _ = s.FindBatches(ctx, port.BatchQuery{FamilyID: "fam", NamePrefix: "rye ("})
	if len(found) != 1 {
		t.Errorf("regex metacharacters: found %d, want 1", len(found))
	}
}

func TestPutAlertKeepsCreatedAt(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	a := &model.Alert{
		ID:           "milk_PUBLIC",
		FamilyID:     "fam",
		ItemName:     "Milk",
		OwnerID:      model.PublicOwner,
		Status:       model.AlertPending,
		CurrentTotal: 2,
		Threshold:    3,
		Unit:         "L",
	}
	if err := s.PutAlert(ctx, a); err != nil {
		t.Fatalf("put alert: %v", err)
	}

	later := testNow.Add(time.Hour)
	s.now = func() time.Time { return later }
	a.CreatedAt = time.Time{}
	a.CurrentTotal = 1
	a.IgnoredBy = []string{"u2"}
	if err := s.PutAlert(ctx, a); err != nil {
		t.Fatalf("put alert again: %v", err)
	}

	got, err := s.GetAlert(ctx, "fam", "milk_PUBLIC")
	if err != nil || got == nil {
		t.Fatalf("get alert: %v %v", got, err)
	}
	if !got.CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, testNow)
	}
	if got.CurrentTotal != 1 || len(got.IgnoredBy) != 1 {
		t.Errorf("alert = %+v", got)
	}

	// Same alert id in another family is a different document.
	if other, _ := s.GetAlert(ctx, "other", "milk_PUBLIC"); other != nil {
		t.Error("alert leaked across families")
	}

	if err := s.DeleteAlert(ctx, "fam", "milk_PUBLIC"); err != nil {
		t.Fatalf("delete alert: %v", err)
	}
	if err := s.DeleteAlert(ctx, "fam", "milk_PUBLIC"); err != nil {
		t.Errorf("delete missing alert: %v", err)
	}
}

func TestRunTxReplaysConflicts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	b := &model.Batch{FamilyID: "fam", Name: "Eggs", Quantity: 6, OwnerID: "u1"}
	if err := s.InsertBatch(ctx, b); err != nil {
		t.Fatalf("insert batch: %v", err)
	}

	calls := 0
	err := s.RunTx(ctx, func(ctx context.Context, tx port.Tx) error {
		calls++
		got, err := tx.GetBatch(ctx, "fam", b.ID)
		if err != nil {
			return err
		}
		if calls == 1 {
			// A stale copy loses the race once.
			got.Version--
		}
		got.Quantity--
		return tx.UpdateBatch(ctx, got)
	})
	if err != nil {
		t.Fatalf("run tx: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	got, _ := s.GetBatch(ctx, "fam", b.ID)
	if got.Quantity != 5 {
		t.Errorf("Quantity = %d, want 5", got.Quantity)
	}
}

func TestFamilyAndUsers(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.RunTx(ctx, func(ctx context.Context, tx port.Tx) error {
		f := &model.Family{Code: "ABC123", Name: "Home", CreatorID: "u1", Members: []string{"u1"}, MemberLimit: 5}
		if err := tx.InsertFamily(ctx, f); err != nil {
			return err
		}
		return tx.PutUser(ctx, &model.User{ID: "u1", Name: "Ann", FamilyID: f.ID})
	})
	if err != nil {
		t.Fatalf("create family: %v", err)
	}

	f, err := s.GetFamilyByCode(ctx, " abc123 ")
	if err != nil || f == nil {
		t.Fatalf("get by code: %v %v", f, err)
	}
	f.Members = append(f.Members, "u2")
	if err := s.UpdateFamily(ctx, f); err != nil {
		t.Fatalf("update family: %v", err)
	}
	got, _ := s.GetFamily(ctx, f.ID)
	if len(got.Members) != 2 || got.Version != 2 {
		t.Errorf("family = %+v, want 2 members at version 2", got)
	}

	users, err := s.ListUsersByFamily(ctx, f.ID)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 1 || users[0].Name != "Ann" {
		t.Errorf("users = %+v", users)
	}

	dup := &model.Family{Code: "ABC123", Name: "Copy", CreatorID: "u3", Members: []string{"u3"}, MemberLimit: 5}
	if err := s.InsertFamily(ctx, dup); !errors.Is(err, port.ErrConflict) {
		t.Errorf("duplicate code err = %v, want ErrConflict", err)
	}
}

func TestBarcodes(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	p := &model.BarcodeProduct{FamilyID: "fam", Code: " 4006381333931 ", Name: "Pencils", Unit: "Pcs"}
	if err := s.PutBarcode(ctx, p); err != nil {
		t.Fatalf("put barcode: %v", err)
	}
	got, err := s.GetBarcode(ctx, "fam", "4006381333931")
	if err != nil || got == nil || got.Name != "Pencils" {
		t.Fatalf("get barcode = %v, %v", got, err)
	}
	if other, _ := s.GetBarcode(ctx, "other", "4006381333931"); other != nil {
		t.Error("barcode leaked across families")
	}
}
