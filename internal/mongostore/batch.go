package mongostore

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/port"
)

type batchDoc struct {
	ID             string     `bson:"_id"`
	FamilyID       string     `bson:"family_id"`
	Name           string     `bson:"name"`
	NameKey        string     `bson:"name_key"`
	Category       string     `bson:"category"`
	Quantity       int        `bson:"quantity"`
	Unit           string     `bson:"unit"`
	ExpiresAt      *time.Time `bson:"expires_at,omitempty"`
	OwnerID        string     `bson:"owner_id"`
	OwnerName      string     `bson:"owner_name"`
	Location       string     `bson:"location"`
	Notes          string     `bson:"notes"`
	MinThreshold   *int       `bson:"min_threshold,omitempty"`
	PendingSetup   bool       `bson:"pending_setup"`
	LastModifiedBy string     `bson:"last_modified_by"`
	Version        int64      `bson:"version"`
	Seq            int64      `bson:"seq"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
}

func newBatchDoc(b *model.Batch) batchDoc {
	return batchDoc{
		ID:             b.ID,
		FamilyID:       b.FamilyID,
		Name:           strings.TrimSpace(b.Name),
		NameKey:        model.NormalizeName(b.Name),
		Category:       b.Category,
		Quantity:       b.Quantity,
		Unit:           b.Unit,
		ExpiresAt:      expiry(b.ExpiresAt),
		OwnerID:        b.OwnerID,
		OwnerName:      b.OwnerName,
		Location:       b.Location,
		Notes:          b.Notes,
		MinThreshold:   b.MinThreshold,
		PendingSetup:   b.PendingSetup,
		LastModifiedBy: b.LastModifiedBy,
		Version:        b.Version,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func (d batchDoc) model() model.Batch {
	return model.Batch{
		ID:             d.ID,
		FamilyID:       d.FamilyID,
		Name:           d.Name,
		Category:       d.Category,
		Quantity:       d.Quantity,
		Unit:           d.Unit,
		ExpiresAt:      ptrUTC(d.ExpiresAt),
		OwnerID:        d.OwnerID,
		OwnerName:      d.OwnerName,
		Location:       d.Location,
		Notes:          d.Notes,
		MinThreshold:   d.MinThreshold,
		PendingSetup:   d.PendingSetup,
		LastModifiedBy: d.LastModifiedBy,
		Version:        d.Version,
		CreatedAt:      utc(d.CreatedAt),
		UpdatedAt:      utc(d.UpdatedAt),
	}
}

// insertionOrder matches the sqlite adapter's created_at, rowid ordering.
var insertionOrder = bson.D{{Key: "created_at", Value: 1}, {Key: "seq", Value: 1}}

func (q *queries) FindBatches(ctx context.Context, bq port.BatchQuery) ([]model.Batch, error) {
	filter := bson.M{}
	if bq.FamilyID != "" {
		filter["family_id"] = bq.FamilyID
	}
	if bq.NameKey != "" {
		filter["name_key"] = model.NormalizeName(bq.NameKey)
	}
	if bq.NamePrefix != "" {
		filter["name_key"] = bson.M{"$regex": "^" + regexp.QuoteMeta(model.NormalizeName(bq.NamePrefix))}
	}
	if bq.OwnerID != "" {
		filter["owner_id"] = bq.OwnerID
	}
	if bq.ExcludePending {
		filter["pending_setup"] = false
	}

	cur, err := q.db.Collection(colInventory).Find(ctx, filter, options.Find().SetSort(insertionOrder))
	if err != nil {
		return nil, fmt.Errorf("find batches: %w", classify(err))
	}
	var docs []batchDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode batches: %w", classify(err))
	}
	batches := make([]model.Batch, len(docs))
	for i, d := range docs {
		batches[i] = d.model()
	}
	return batches, nil
}

func (q *queries) GetBatch(ctx context.Context, familyID, id string) (*model.Batch, error) {
	var d batchDoc
	err := q.db.Collection(colInventory).FindOne(ctx, bson.M{"_id": id, "family_id": familyID}).Decode(&d)
	if isNoDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", classify(err))
	}
	b := d.model()
	return &b, nil
}

func (q *queries) InsertBatch(ctx context.Context, b *model.Batch) error {
	if err := model.Validate(b); err != nil {
		return err
	}
	now := q.now().UTC().Truncate(time.Millisecond)
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.Version = 1
	b.CreatedAt = now
	b.UpdatedAt = now

	d := newBatchDoc(b)
	d.Seq = q.nextSeq()
	if _, err := q.db.Collection(colInventory).InsertOne(ctx, d); err != nil {
		return fmt.Errorf("insert batch: %w", classify(err))
	}
	return nil
}

func (q *queries) UpdateBatch(ctx context.Context, b *model.Batch) error {
	if err := model.Validate(b); err != nil {
		return err
	}
	now := q.now().UTC().Truncate(time.Millisecond)
	d := newBatchDoc(b)

	set := bson.M{
		"name":             d.Name,
		"name_key":         d.NameKey,
		"category":         d.Category,
		"quantity":         d.Quantity,
		"unit":             d.Unit,
		"owner_id":         d.OwnerID,
		"owner_name":       d.OwnerName,
		"location":         d.Location,
		"notes":            d.Notes,
		"pending_setup":    d.PendingSetup,
		"last_modified_by": d.LastModifiedBy,
		"updated_at":       now,
	}
	unset := bson.M{}
	if d.ExpiresAt != nil {
		set["expires_at"] = d.ExpiresAt
	} else {
		unset["expires_at"] = ""
	}
	if d.MinThreshold != nil {
		set["min_threshold"] = *d.MinThreshold
	} else {
		unset["min_threshold"] = ""
	}
	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	res, err := q.db.Collection(colInventory).UpdateOne(ctx,
		bson.M{"_id": b.ID, "family_id": b.FamilyID, "version": b.Version},
		update,
	)
	if err != nil {
		return fmt.Errorf("update batch: %w", classify(err))
	}
	if err := checkMatched(res.MatchedCount, "update batch"); err != nil {
		return err
	}
	b.Version++
	b.UpdatedAt = now
	return nil
}

func (q *queries) DeleteBatch(ctx context.Context, b model.Batch) error {
	res, err := q.db.Collection(colInventory).DeleteOne(ctx,
		bson.M{"_id": b.ID, "family_id": b.FamilyID, "version": b.Version})
	if err != nil {
		return fmt.Errorf("delete batch: %w", classify(err))
	}
	return checkMatched(res.DeletedCount, "delete batch")
}
