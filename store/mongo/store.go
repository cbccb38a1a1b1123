// Package mongo implements waitlist.Store on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/xraph/warden/waitlist"
)

// DefaultCollection is the waitlist collection name.
const DefaultCollection = "waitlist"

// topSources is the number of sources returned by Stats.
const topSources = 5

// Compile-time interface check.
var _ waitlist.Store = (*Store)(nil)

// Store implements waitlist.Store using the MongoDB driver.
type Store struct {
	client *mongo.Client
	db     string
	col    *mongo.Collection
}

// Connect dials uri and returns a store over db.collection.
func Connect(ctx context.Context, uri, db, collection string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("warden/mongo: connect: %w", err)
	}

	s := New(client, db, collection)
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// New creates a store over an existing client.
func New(client *mongo.Client, db, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{
		client: client,
		db:     db,
		col:    client.Database(db).Collection(collection),
	}
}

// Migrate creates the indexes the statistics queries rely on.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: waitlist.KeyCreatedAt, Value: -1}}},
		{Keys: bson.D{{Key: waitlist.KeySource, Value: 1}}},
		{Keys: bson.D{{Key: waitlist.KeyStatus, Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("warden/mongo: migrate %s indexes: %w", s.col.Name(), err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("warden/mongo: ping: %w", errors.Join(waitlist.ErrUnavailable, err))
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Count returns the number of waitlist documents.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.col.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("warden/mongo: count: %w", err)
	}
	return n, nil
}

type bucketModel struct {
	Key   any   `bson:"_id"`
	Count int64 `bson:"count"`
}

// Stats aggregates totals, status and source breakdowns and the latest entry.
func (s *Store) Stats(ctx context.Context, since time.Time) (*waitlist.Stats, error) {
	total, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.col.CountDocuments(ctx, bson.D{
		{Key: waitlist.KeyCreatedAt, Value: bson.D{{Key: "$gte", Value: since}}},
	})
	if err != nil {
		return nil, fmt.Errorf("warden/mongo: count recent: %w", err)
	}

	byStatus, err := s.group(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + waitlist.KeyStatus},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("warden/mongo: group by status: %w", err)
	}
	for i := range byStatus {
		if byStatus[i].Key == "" {
			byStatus[i].Key = "Unknown"
		}
	}

	sources, err := s.group(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: waitlist.KeySource, Value: bson.D{{Key: "$nin", Value: bson.A{nil, ""}}}},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + waitlist.KeySource},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
		{{Key: "$limit", Value: topSources}},
	})
	if err != nil {
		return nil, fmt.Errorf("warden/mongo: group by source: %w", err)
	}

	latest, err := s.latest(ctx)
	if err != nil {
		return nil, err
	}

	return &waitlist.Stats{
		Total:      total,
		Recent:     recent,
		ByStatus:   byStatus,
		TopSources: sources,
		Latest:     latest,
		Database:   s.db,
		Collection: s.col.Name(),
	}, nil
}

func (s *Store) group(ctx context.Context, pipeline mongo.Pipeline) ([]waitlist.Bucket, error) {
	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var models []bucketModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, err
	}

	out := make([]waitlist.Bucket, 0, len(models))
	for _, m := range models {
		key := ""
		if m.Key != nil {
			key = fmt.Sprint(normalize(m.Key))
		}
		out = append(out, waitlist.Bucket{Key: key, Count: m.Count})
	}
	return out, nil
}

func (s *Store) latest(ctx context.Context) (*waitlist.Entry, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: waitlist.KeyCreatedAt, Value: -1}})

	var doc bson.M
	err := s.col.FindOne(ctx, bson.D{}, opts).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("warden/mongo: latest entry: %w", err)
	}

	e := waitlist.FromDocument(normalizeDoc(doc))
	return &e, nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
