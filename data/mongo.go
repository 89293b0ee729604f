// Package data provides read access to the music document database.
package data

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/soundstats/music-api/interfaces"
	"github.com/soundstats/music-api/logging"
)

// Collections served by the backend
const (
	ArtistsCollection = "artists"
	SongsCollection   = "songs"
)

// DefaultServerSelectionTimeout bounds how long an operation waits for a
// reachable server. A serverSelectionTimeoutMS in the URI takes precedence.
const DefaultServerSelectionTimeout = 5 * time.Second

// Compile-time check to ensure MongoStore implements DocumentStore
var _ interfaces.DocumentStore = (*MongoStore)(nil)

// MongoStore reads whole collections from one MongoDB database
type MongoStore struct {
	client       *mongo.Client
	db           *mongo.Database
	queryTimeout time.Duration
}

// NewMongoStore connects to uri and selects database. The driver connects
// lazily, so an unreachable server surfaces on the first query or Ping,
// after at most DefaultServerSelectionTimeout.
// queryTimeout <= 0 leaves queries bounded only by the request context.
func NewMongoStore(uri, database string, queryTimeout time.Duration) (*MongoStore, error) {
	opts := options.Client().
		SetServerSelectionTimeout(DefaultServerSelectionTimeout).
		ApplyURI(uri).
		SetAppName("music-api").
		// Nested documents decode as maps so they serialize as JSON objects
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongodb client: %w", err)
	}

	logging.Info("MongoDB client created", "database", database)

	return &MongoStore{
		client:       client,
		db:           client.Database(database),
		queryTimeout: queryTimeout,
	}, nil
}

// FindAll runs an unfiltered find on collection and returns every document
// as stored: no projection, sort or limit.
func (s *MongoStore) FindAll(ctx context.Context, collection string) ([]interfaces.Document, error) {
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	cursor, err := s.db.Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	var docs []interfaces.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", collection, err)
	}

	if docs == nil {
		docs = []interfaces.Document{}
	}

	return docs, nil
}

// Ping checks that the primary is reachable
func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodb ping failed: %w", err)
	}
	return nil
}

// Close disconnects the client
func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from mongodb: %w", err)
	}
	return nil
}
