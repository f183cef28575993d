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
)

type familyDoc struct {
	ID          string    `bson:"_id"`
	Code        string    `bson:"code"`
	Name        string    `bson:"name"`
	CreatorID   string    `bson:"creator_id"`
	Members     []string  `bson:"members"`
	MemberLimit int       `bson:"member_limit"`
	Version     int64     `bson:"version"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d familyDoc) model() *model.Family {
	return &model.Family{
		ID:          d.ID,
		Code:        d.Code,
		Name:        d.Name,
		CreatorID:   d.CreatorID,
		Members:     d.Members,
		MemberLimit: d.MemberLimit,
		Version:     d.Version,
		CreatedAt:   utc(d.CreatedAt),
		UpdatedAt:   utc(d.UpdatedAt),
	}
}

func (q *queries) findFamily(ctx context.Context, filter bson.M) (*model.Family, error) {
	var d familyDoc
	err := q.db.Collection(colFamilies).FindOne(ctx, filter).Decode(&d)
	if isNoDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", classify(err))
	}
	return d.model(), nil
}

func (q *queries) GetFamily(ctx context.Context, id string) (*model.Family, error) {
	return q.findFamily(ctx, bson.M{"_id": id})
}

func (q *queries) GetFamilyByCode(ctx context.Context, code string) (*model.Family, error) {
	return q.findFamily(ctx, bson.M{"code": strings.ToUpper(strings.TrimSpace(code))})
}

func (q *queries) InsertFamily(ctx context.Context, f *model.Family) error {
	if err := model.Validate(f); err != nil {
		return err
	}
	now := q.now().UTC().Truncate(time.Millisecond)
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.Version = 1
	f.CreatedAt = now
	f.UpdatedAt = now

	members := f.Members
	if members == nil {
		members = []string{}
	}
	_, err := q.db.Collection(colFamilies).InsertOne(ctx, familyDoc{
		ID:          f.ID,
		Code:        f.Code,
		Name:        f.Name,
		CreatorID:   f.CreatorID,
		Members:     members,
		MemberLimit: f.MemberLimit,
		Version:     f.Version,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert family: %w", classify(err))
	}
	return nil
}

func (q *queries) UpdateFamily(ctx context.Context, f *model.Family) error {
	if err := model.Validate(f); err != nil {
		return err
	}
	now := q.now().UTC().Truncate(time.Millisecond)
	members := f.Members
	if members == nil {
		members = []string{}
	}

	res, err := q.db.Collection(colFamilies).UpdateOne(ctx,
		bson.M{"_id": f.ID, "version": f.Version},
		bson.M{
			"$set": bson.M{
				"name":         f.Name,
				"member_limit": f.MemberLimit,
				"members":      members,
				"updated_at":   now,
			},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return fmt.Errorf("update family: %w", classify(err))
	}
	if err := checkMatched(res.MatchedCount, "update family"); err != nil {
		return err
	}
	f.Version++
	f.UpdatedAt = now
	return nil
}

type userDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Color     string    `bson:"color"`
	FamilyID  string    `bson:"family_id"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d userDoc) model() model.User {
	return model.User{
		ID:        d.ID,
		Name:      d.Name,
		Color:     d.Color,
		FamilyID:  d.FamilyID,
		CreatedAt: utc(d.CreatedAt),
		UpdatedAt: utc(d.UpdatedAt),
	}
}

func (q *queries) GetUser(ctx context.Context, id string) (*model.User, error) {
	var d userDoc
	err := q.db.Collection(colUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if isNoDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", classify(err))
	}
	u := d.model()
	return &u, nil
}

func (q *queries) ListUsersByFamily(ctx context.Context, familyID string) ([]model.User, error) {
	cur, err := q.db.Collection(colUsers).Find(ctx, bson.M{"family_id": familyID},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", classify(err))
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", classify(err))
	}
	users := make([]model.User, len(docs))
	for i, d := range docs {
		users[i] = d.model()
	}
	return users, nil
}

func (q *queries) PutUser(ctx context.Context, u *model.User) error {
	if err := model.Validate(u); err != nil {
		return err
	}
	now := q.now().UTC().Truncate(time.Millisecond)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	_, err := q.db.Collection(colUsers).UpdateOne(ctx,
		bson.M{"_id": u.ID},
		bson.M{
			"$set": bson.M{
				"name":       u.Name,
				"color":      u.Color,
				"family_id":  u.FamilyID,
				"updated_at": u.UpdatedAt,
			},
			"$setOnInsert": bson.M{"created_at": u.CreatedAt},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("put user: %w", classify(err))
	}
	return nil
}

type barcodeDoc struct {
	Key      string `bson:"_id"`
	FamilyID string `bson:"family_id"`
	Code     string `bson:"code"`
	Name     string `bson:"name"`
	Category string `bson:"category"`
	Unit     string `bson:"unit"`
}

func (q *queries) GetBarcode(ctx context.Context, familyID, code string) (*model.BarcodeProduct, error) {
	var d barcodeDoc
	err := q.db.Collection(colBarcodes).FindOne(ctx, bson.M{"_id": compoundID(familyID, strings.TrimSpace(code))}).Decode(&d)
	if isNoDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get barcode: %w", classify(err))
	}
	return &model.BarcodeProduct{
		FamilyID: d.FamilyID,
		Code:     d.Code,
		Name:     d.Name,
		Category: d.Category,
		Unit:     d.Unit,
	}, nil
}

func (q *queries) PutBarcode(ctx context.Context, p *model.BarcodeProduct) error {
	p.Code = strings.TrimSpace(p.Code)
	if err := model.Validate(p); err != nil {
		return err
	}
	d := barcodeDoc{
		Key:      compoundID(p.FamilyID, p.Code),
		FamilyID: p.FamilyID,
		Code:     p.Code,
		Name:     p.Name,
		Category: p.Category,
		Unit:     p.Unit,
	}
	_, err := q.db.Collection(colBarcodes).ReplaceOne(ctx, bson.M{"_id": d.Key}, d, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put barcode: %w", classify(err))
	}
	return nil
}
