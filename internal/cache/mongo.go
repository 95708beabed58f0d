package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nostalgiatan/see/internal/types"
)

// scanWindow bounds how many recent entries a token search pulls back
// from MongoDB before client-side matching.
const scanWindow = 200

// Mongo persists cache entries in a MongoDB collection so results
// survive restarts.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
	ttl        time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64

	logger *slog.Logger
	now    func() time.Time
}

// NewMongo connects to MongoDB and verifies the connection with a ping.
// Connect and ping share a 10 second budget.
func NewMongo(uri, database, collection string, ttl time.Duration, logger *slog.Logger) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Mongo{
		client:     client,
		collection: client.Database(database).Collection(collection),
		ttl:        ttl,
		logger:     logger.With("component", "cache_mongo"),
		now:        time.Now,
	}, nil
}

func (s *Mongo) Name() string { return "mongodb" }

func (s *Mongo) Put(query string, items []types.ResultItem, engines []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entry := &Entry{
		Query:     query,
		Items:     items,
		Engines:   engines,
		CreatedAt: s.now(),
	}
	_, err := s.collection.ReplaceOne(ctx,
		bson.M{"query": query},
		entry,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	return nil
}

func (s *Mongo) Get(query string, maxAge time.Duration) (*Entry, bool) {
	if maxAge <= 0 {
		maxAge = s.ttl
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var entry Entry
	err := s.collection.FindOne(ctx, bson.M{"query": query}).Decode(&entry)
	if err != nil || s.now().Sub(entry.CreatedAt) > maxAge {
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	return &entry, true
}

func (s *Mongo) FindByTokens(tokens []string, limit int) []types.ResultItem {
	if len(tokens) == 0 || limit == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Pull the most recent entries and match client-side, mirroring the
	// memory backend. Token matching stays in one place this way.
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(scanWindow)
	cur, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		s.logger.Warn("cache token search failed", "error", err)
		return nil
	}
	defer cur.Close(ctx)

	var out []types.ResultItem
	for cur.Next(ctx) {
		var entry Entry
		if err := cur.Decode(&entry); err != nil {
			continue
		}
		for i := range entry.Items {
			if itemMatches(&entry.Items[i], tokens) {
				out = append(out, entry.Items[i])
				if limit > 0 && len(out) >= limit {
					return out
				}
			}
		}
	}
	return out
}

func (s *Mongo) Stats() Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		s.logger.Warn("cache count failed", "error", err)
	}
	return Stats{
		Entries: int(count),
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}
}

func (s *Mongo) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	return nil
}

func (s *Mongo) Cleanup() int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := s.now().Add(-s.ttl)
	res, err := s.collection.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		s.logger.Warn("cache cleanup failed", "error", err)
		return 0
	}
	return int(res.DeletedCount)
}

func (s *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
