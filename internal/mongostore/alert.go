package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dukerupert/larder/internal/model"
)

type alertDoc struct {
	Key          string    `bson:"_id"`
	FamilyID     string    `bson:"family_id"`
	ID           string    `bson:"id"`
	ItemName     string    `bson:"item_name"`
	OwnerID      string    `bson:"owner_id"`
	Status       string    `bson:"status"`
	CurrentTotal int       `bson:"current_total"`
	Threshold    int       `bson:"threshold"`
	Unit         string    `bson:"unit"`
	IgnoredBy    []string  `bson:"ignored_by"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (d alertDoc) model() model.Alert {
	return model.Alert{
		ID:           d.ID,
		FamilyID:     d.FamilyID,
		ItemName:     d.ItemName,
		OwnerID:      d.OwnerID,
		Status:       model.AlertStatus(d.Status),
		CurrentTotal: d.CurrentTotal,
		Threshold:    d.Threshold,
		Unit:         d.Unit,
		IgnoredBy:    d.IgnoredBy,
		CreatedAt:    utc(d.CreatedAt),
		UpdatedAt:    utc(d.UpdatedAt),
	}
}

func (q *queries) ListAlerts(ctx context.Context, familyID string) ([]model.Alert, error) {
	cur, err := q.db.Collection(colAlerts).Find(ctx, bson.M{"family_id": familyID},
		options.Find().SetSort(bson.D{{Key: "item_name", Value: 1}, {Key: "owner_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", classify(err))
	}
	var docs []alertDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode alerts: %w", classify(err))
	}
	alerts := make([]model.Alert, len(docs))
	for i, d := range docs {
		alerts[i] = d.model()
	}
	return alerts, nil
}

func (q *queries) GetAlert(ctx context.Context, familyID, id string) (*model.Alert, error) {
	var d alertDoc
	err := q.db.Collection(colAlerts).FindOne(ctx, bson.M{"_id": compoundID(familyID, id)}).Decode(&d)
	if isNoDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", classify(err))
	}
	a := d.model()
	return &a, nil
}

// PutAlert upserts the alert; created_at is only written on insert.
func (q *queries) PutAlert(ctx context.Context, a *model.Alert) error {
	if err := model.Validate(a); err != nil {
		return err
	}
	now := q.now().UTC().Truncate(time.Millisecond)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	ignored := a.IgnoredBy
	if ignored == nil {
		ignored = []string{}
	}

	_, err := q.db.Collection(colAlerts).UpdateOne(ctx,
		bson.M{"_id": compoundID(a.FamilyID, a.ID)},
		bson.M{
			"$set": bson.M{
				"family_id":     a.FamilyID,
				"id":            a.ID,
				"item_name":     a.ItemName,
				"owner_id":      a.OwnerID,
				"status":        string(a.Status),
				"current_total": a.CurrentTotal,
				"threshold":     a.Threshold,
				"unit":          a.Unit,
				"ignored_by":    ignored,
				"updated_at":    a.UpdatedAt,
			},
			"$setOnInsert": bson.M{"created_at": a.CreatedAt},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("put alert: %w", classify(err))
	}
	return nil
}

func (q *queries) DeleteAlert(ctx context.Context, familyID, id string) error {
	if _, err := q.db.Collection(colAlerts).DeleteOne(ctx, bson.M{"_id": compoundID(familyID, id)}); err != nil {
		return fmt.Errorf("delete alert: %w", classify(err))
	}
	return nil
}
