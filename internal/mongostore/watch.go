package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dukerupert/larder/internal/feed"
)

var collectionTopics = map[string]feed.Topic{
	colInventory: feed.TopicInventory,
	colAlerts:    feed.TopicAlerts,
	colShopping:  feed.TopicShopping,
	colFamilies:  feed.TopicFamily,
	colUsers:     feed.TopicFamily,
}

type changeEvent struct {
	OperationType string `bson:"operationType"`
	NS            struct {
		Coll string `bson:"coll"`
	} `bson:"ns"`
	DocumentKey struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument bson.Raw `bson:"fullDocument"`
}

// toChange maps a change-stream event onto a feed.Change. Collections that
// feed no snapshot report false.
func (ev changeEvent) toChange() (feed.Change, bool) {
	topic, ok := collectionTopics[ev.NS.Coll]
	if !ok {
		return feed.Change{}, false
	}
	return feed.Change{FamilyID: ev.familyID(), Topics: []feed.Topic{topic}}, true
}

// familyID is empty when the event does not reveal the family, which is the
// case for deleted batches and entries.
func (ev changeEvent) familyID() string {
	if ev.NS.Coll == colFamilies {
		return ev.DocumentKey.ID
	}
	if len(ev.FullDocument) > 0 {
		if id, ok := ev.FullDocument.Lookup("family_id").StringValueOK(); ok {
			return id
		}
	}
	if ev.NS.Coll == colAlerts {
		if family, _, ok := strings.Cut(ev.DocumentKey.ID, "/"); ok {
			return family
		}
	}
	return ""
}

// Watch publishes a feed.Change for every write seen on the database's
// change stream until ctx is done. A broken stream is reopened after the
// last seen event.
func (s *Store) Watch(ctx context.Context, pub feed.Publisher, logger *slog.Logger) error {
	var resumeToken bson.Raw

	b := retry.NewExponential(500 * time.Millisecond)
	b = retry.WithCappedDuration(30*time.Second, b)

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
		if resumeToken != nil {
			opts.SetResumeAfter(resumeToken)
		}
		cs, err := s.db.Watch(ctx, mongo.Pipeline{}, opts)
		if err != nil {
			logger.Warn("open change stream failed", "error", err)
			return retry.RetryableError(fmt.Errorf("open change stream: %w", classify(err)))
		}
		defer cs.Close(context.Background())
		logger.Info("change stream opened", "database", s.db.Name())

		for cs.Next(ctx) {
			resumeToken = append(bson.Raw(nil), cs.ResumeToken()...)

			var ev changeEvent
			if err := cs.Decode(&ev); err != nil {
				logger.Warn("discarding undecodable change event", "error", err)
				continue
			}
			if c, ok := ev.toChange(); ok {
				pub.Publish(ctx, c)
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn("change stream interrupted", "error", cs.Err())
		return retry.RetryableError(fmt.Errorf("change stream: %w", classify(cs.Err())))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
