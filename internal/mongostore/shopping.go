package mongostore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/port"
)

type shoppingDoc struct {
	ID        string     `bson:"_id"`
	FamilyID  string     `bson:"family_id"`
	Name      string     `bson:"name"`
	NameKey   string     `bson:"name_key"`
	Quantity  int        `bson:"quantity"`
	Unit      string     `bson:"unit"`
	Category  string     `bson:"category"`
	OwnerID   string     `bson:"owner_id"`
	OwnerName string     `bson:"owner_name"`
	Checked   bool       `bson:"checked"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
	AddedBy   string     `bson:"added_by"`
	Version   int64      `bson:"version"`
	Seq       int64      `bson:"seq"`
	CreatedAt time.Time  `bson:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at"`
}

func newShoppingDoc(e *model.ShoppingEntry) shoppingDoc {
	return shoppingDoc{
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
		ExpiresAt: expiry(e.ExpiresAt),
		AddedBy:   e.AddedBy,
		Version:   e.Version,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func (d shoppingDoc) model() model.ShoppingEntry {
	return model.ShoppingEntry{
		ID:        d.ID,
		FamilyID:  d.FamilyID,
		Name:      d.Name,
		Quantity:  d.Quantity,
		Unit:      d.Unit,
		Category:  d.Category,
		OwnerID:   d.OwnerID,
		OwnerName: d.OwnerName,
		Checked:   d.Checked,
		ExpiresAt: ptrUTC(d.ExpiresAt),
		AddedBy:   d.AddedBy,
		Version:   d.Version,
		CreatedAt: utc(d.CreatedAt),
		UpdatedAt: utc(d.UpdatedAt),
	}
}

func (q *queries) FindShopping(ctx context.Context, sq port.ShoppingQuery) ([]model.ShoppingEntry, error) {
	filter := bson.M{}
	if sq.FamilyID != "" {
		filter["family_id"] = sq.FamilyID
	}
	if sq.NameKey != "" {
		filter["name_key"] = model.NormalizeName(sq.NameKey)
	}
	if sq.OwnerID != "" {
		filter["owner_id"] = sq.OwnerID
	}
	if sq.Checked != nil {
		filter["checked"] = *sq.Checked
	}

	cur, err := q.db.Collection(colShopping).Find(ctx, filter, options.Find().SetSort(insertionOrder))
	if err != nil {
		return nil, fmt.Errorf("find shopping entries: %w", classify(err))
	}
	var docs []shoppingDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode shopping entries: %w", classify(err))
	}
	entries := make([]model.ShoppingEntry, len(docs))
	for i, d := range docs {
		entries[i] = d.model()
	}
	return entries, nil
}

func (q *queries) GetShopping(ctx context.Context, familyID, id string) (*model.ShoppingEntry, error) {
	var d shoppingDoc
	err := q.db.Collection(colShopping).FindOne(ctx, bson.M{"_id": id, "family_id": familyID}).Decode(&d)
	if isNoDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shopping entry: %w", classify(err))
	}
	e := d.model()
	return &e, nil
}

func (q *queries) InsertShopping(ctx context.Context, e *model.ShoppingEntry) error {
	if err := model.Validate(e); err != nil {
		return err
	}
	now := q.now().UTC().Truncate(time.Millisecond)
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Version = 1
	e.CreatedAt = now
	e.UpdatedAt = now

	d := newShoppingDoc(e)
	d.Seq = q.nextSeq()
	if _, err := q.db.Collection(colShopping).InsertOne(ctx, d); err != nil {
		return fmt.Errorf("insert shopping entry: %w", classify(err))
	}
	return nil
}

func (q *queries) UpdateShopping(ctx context.Context, e *model.ShoppingEntry) error {
	if err := model.Validate(e); err != nil {
		return err
	}
	now := q.now().UTC().Truncate(time.Millisecond)
	d := newShoppingDoc(e)

	set := bson.M{
		"name":       d.Name,
		"name_key":   d.NameKey,
		"quantity":   d.Quantity,
		"unit":       d.Unit,
		"category":   d.Category,
		"owner_id":   d.OwnerID,
		"owner_name": d.OwnerName,
		"checked":    d.Checked,
		"updated_at": now,
	}
	update := bson.M{"$inc": bson.M{"version": 1}}
	if d.ExpiresAt != nil {
		set["expires_at"] = d.ExpiresAt
	} else {
		update["$unset"] = bson.M{"expires_at": ""}
	}
	update["$set"] = set

	res, err := q.db.Collection(colShopping).UpdateOne(ctx,
		bson.M{"_id": e.ID, "family_id": e.FamilyID, "version": e.Version},
		update,
	)
	if err != nil {
		return fmt.Errorf("update shopping entry: %w", classify(err))
	}
	if err := checkMatched(res.MatchedCount, "update shopping entry"); err != nil {
		return err
	}
	e.Version++
	e.UpdatedAt = now
	return nil
}

func (q *queries) DeleteShopping(ctx context.Context, e model.ShoppingEntry) error {
	res, err := q.db.Collection(colShopping).DeleteOne(ctx,
		bson.M{"_id": e.ID, "family_id": e.FamilyID, "version": e.Version})
	if err != nil {
		return fmt.Errorf("delete shopping entry: %w", classify(err))
	}
	return checkMatched(res.DeletedCount, "delete shopping entry")
}
