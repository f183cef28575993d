package mongostore

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/dukerupert/larder/internal/feed"
)

func rawDoc(t *testing.T, v any) bson.Raw {
	t.Helper()
	b, err := bson.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestChangeEventToChange(t *testing.T) {
	event := func(coll, id string, full bson.Raw) changeEvent {
		var ev changeEvent
		ev.NS.Coll = coll
		ev.DocumentKey.ID = id
		ev.FullDocument = full
		return ev
	}

	tests := []struct {
		name       string
		ev         changeEvent
		wantOK     bool
		wantFamily string
		wantTopic  feed.Topic
	}{
		{
			name:       "batch update",
			ev:         event(colInventory, "b1", rawDoc(t, bson.M{"_id": "b1", "family_id": "fam"})),
			wantOK:     true,
			wantFamily: "fam",
			wantTopic:  feed.TopicInventory,
		},
		{
			name:      "batch delete fans out",
			ev:        event(colInventory, "b1", nil),
			wantOK:    true,
			wantTopic: feed.TopicInventory,
		},
		{
			name:       "alert delete keeps family from id",
			ev:         event(colAlerts, "fam/milk_PUBLIC", nil),
			wantOK:     true,
			wantFamily: "fam",
			wantTopic:  feed.TopicAlerts,
		},
		{
			name:       "shopping insert",
			ev:         event(colShopping, "e1", rawDoc(t, bson.M{"_id": "e1", "family_id": "fam"})),
			wantOK:     true,
			wantFamily: "fam",
			wantTopic:  feed.TopicShopping,
		},
		{
			name:       "family update",
			ev:         event(colFamilies, "fam", nil),
			wantOK:     true,
			wantFamily: "fam",
			wantTopic:  feed.TopicFamily,
		},
		{
			name:       "user joins",
			ev:         event(colUsers, "u1", rawDoc(t, bson.M{"_id": "u1", "family_id": "fam"})),
			wantOK:     true,
			wantFamily: "fam",
			wantTopic:  feed.TopicFamily,
		},
		{
			name: "barcode ignored",
			ev:   event(colBarcodes, "fam/123", nil),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := tt.ev.toChange()
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if c.FamilyID != tt.wantFamily {
				t.Errorf("FamilyID = %q, want %q", c.FamilyID, tt.wantFamily)
			}
			if !c.Has(tt.wantTopic) || len(c.Topics) != 1 {
				t.Errorf("Topics = %v, want [%s]", c.Topics, tt.wantTopic)
			}
		})
	}
}
