package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweetpotato0/studygen/cache"
	"github.com/sweetpotato0/studygen/content"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements cache.Store using MongoDB.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// MongoConfig holds MongoDB connection configuration.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// DefaultMongoConfig returns default MongoDB configuration.
func DefaultMongoConfig() *MongoConfig {
	return &MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "studygen",
		Collection: "generated_content",
	}
}

// mongoArtifact is the stored document. The artifact is kept as its JSON
// encoding so reads return exactly what was written.
type mongoArtifact struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	TopicID   string    `bson:"topic_id"`
	Payload   string    `bson:"payload"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoStore connects to MongoDB and prepares the collection.
func NewMongoStore(ctx context.Context, config *MongoConfig) (*MongoStore, error) {
	if config == nil {
		config = DefaultMongoConfig()
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store := &MongoStore{
		client:     client,
		collection: client.Database(config.Database).Collection(config.Collection),
	}
	if err := store.createIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return store, nil
}

func (s *MongoStore) createIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}},
	})
	return err
}

// Get implements cache.Store.
func (s *MongoStore) Get(ctx context.Context, userID, topicID string) (*content.GeneratedTopicContent, error) {
	var doc mongoArtifact
	err := s.collection.FindOne(ctx, bson.M{"_id": cache.Key(userID, topicID)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, cache.NotFound(userID, topicID)
		}
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}
	return cache.Decode([]byte(doc.Payload))
}

// Put implements cache.Store with an upsert.
func (s *MongoStore) Put(ctx context.Context, userID, topicID string, doc *content.GeneratedTopicContent) error {
	data, err := cache.Encode(doc)
	if err != nil {
		return err
	}
	key := cache.Key(userID, topicID)
	record := mongoArtifact{
		ID:        key,
		UserID:    userID,
		TopicID:   topicID,
		Payload:   string(data),
		UpdatedAt: time.Now().UTC(),
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.collection.ReplaceOne(ctx, bson.M{"_id": key}, record, opts); err != nil {
		return fmt.Errorf("failed to store artifact: %w", err)
	}
	return nil
}

// Ping checks if the MongoDB connection is alive.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
