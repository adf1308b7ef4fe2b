package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/kailas-cloud/polyqa/internal/domain"
)

// collection is the subset of *mongo.Collection used by the store.
type collection interface {
	InsertMany(
		ctx context.Context, documents any, opts ...options.Lister[options.InsertManyOptions],
	) (*mongo.InsertManyResult, error)
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error)
}

type indexView interface {
	CreateOne(
		ctx context.Context, model mongo.IndexModel, opts ...options.Lister[options.CreateIndexesOptions],
	) (string, error)
}

type turnDoc struct {
	ID        string    `bson:"_id"`
	SessionID string    `bson:"session_id"`
	Role      string    `bson:"role"`
	Content   string    `bson:"content"`
	Original  string    `bson:"original,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

// MongoStore keeps turns in a MongoDB collection, one document per turn.
type MongoStore struct {
	client  *mongo.Client
	coll    collection
	indexes indexView
}

// NewMongo creates the store. The driver dials lazily on first use.
func NewMongo(uri, database, coll string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	c := client.Database(database).Collection(coll)
	return &MongoStore{client: client, coll: c, indexes: c.Indexes()}, nil
}

// EnsureIndexes creates the session lookup index. It needs a reachable server.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.indexes.CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create session index: %w", err)
	}
	return nil
}

// Driver returns the configured driver name.
func (s *MongoStore) Driver() string { return DriverMongo }

// Append inserts turns in one round-trip.
func (s *MongoStore) Append(ctx context.Context, turns ...domain.Turn) (err error) {
	defer func() { observe(DriverMongo, "append", err) }()

	if len(turns) == 0 {
		return nil
	}
	prepared, err := prepare(turns)
	if err != nil {
		return fmt.Errorf("prepare turns: %w", err)
	}

	docs := make([]turnDoc, len(prepared))
	for i, t := range prepared {
		docs[i] = turnDoc{
			ID:        t.ID,
			SessionID: t.SessionID,
			Role:      string(t.Role),
			Content:   t.Content,
			Original:  t.Original,
			CreatedAt: t.CreatedAt,
		}
	}

	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert turns: %w", err)
	}
	return nil
}

// History returns the last limit turns of a session, oldest first.
func (s *MongoStore) History(ctx context.Context, sessionID string, limit int) (_ []domain.Turn, err error) {
	defer func() { observe(DriverMongo, "history", err) }()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.coll.Find(ctx, bson.D{{Key: "session_id", Value: sessionID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find turns: %w", err)
	}

	var docs []turnDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode turns: %w", err)
	}

	turns := make([]domain.Turn, len(docs))
	for i, d := range docs {
		turns[i] = domain.Turn{
			ID:        d.ID,
			SessionID: d.SessionID,
			Role:      domain.Role(d.Role),
			Content:   d.Content,
			Original:  d.Original,
			CreatedAt: d.CreatedAt.UTC(),
		}
	}
	slices.Reverse(turns)
	return turns, nil
}

// Ping checks connectivity to the primary.
func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongo disconnect: %w", err)
	}
	return nil
}
