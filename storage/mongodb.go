package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/blavejr/finadvisor/config"
	"github.com/blavejr/finadvisor/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps the index in a MongoDB collection named after the configured collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoStore(cfg *config.Config) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(cfg.MongoDatabase).Collection(cfg.Collection)

	log.Printf("Connected to MongoDB: %s/%s", cfg.MongoDatabase, cfg.Collection)

	s := &MongoStore{
		client:     client,
		collection: collection,
	}
	if err := s.ensureIndexes(); err != nil {
		log.Printf("Note: index creation skipped: %v", err)
	}
	return s, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// ensureIndexes creates the record_index index Search sorts on if it doesn't exist
func (s *MongoStore) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cursor, err := s.collection.Indexes().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indexes: %w", err)
	}
	defer cursor.Close(ctx)

	var indexes []bson.M
	if err := cursor.All(ctx, &indexes); err != nil {
		return fmt.Errorf("failed to decode indexes: %w", err)
	}

	for _, idx := range indexes {
		if name, ok := idx["name"].(string); ok && name == "record_index" {
			return nil
		}
	}

	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "record_index", Value: 1},
			{Key: "chunk_index", Value: 1},
		},
		Options: options.Index().SetName("record_index"),
	}
	if _, err := s.collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	log.Println("Chunk index created")
	return nil
}

// the collection counts as an existing index once it holds chunks
func (s *MongoStore) Exists(ctx context.Context) (bool, error) {
	count, err := s.CountChunks(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *MongoStore) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	log.Printf("Starting MongoDB insert for %d chunks...", len(chunks))
	startTime := time.Now()

	if len(chunks) == 0 {
		return fmt.Errorf("no chunks to insert")
	}

	docs := make([]interface{}, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chunk
	}

	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	insertTime := time.Since(startTime)
	log.Printf("Successfully inserted %d chunks in %v (avg: %v per chunk)", len(chunks), insertTime, insertTime/time.Duration(len(chunks)))
	return nil
}

// ReplaceChunks inserts the new chunks before deleting every other one, so a
// failed insert leaves the previous index in place.
func (s *MongoStore) ReplaceChunks(ctx context.Context, chunks []models.Chunk) error {
	if err := s.InsertChunks(ctx, chunks); err != nil {
		return err
	}

	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		ids[i] = chunk.ID
	}
	result, err := s.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$nin": ids}})
	if err != nil {
		return fmt.Errorf("failed to delete stale chunks: %w", err)
	}
	log.Printf("Removed %d stale chunks", result.DeletedCount)
	return nil
}

// Search loads every chunk in record order and ranks it by cosine similarity in process.
func (s *MongoStore) Search(ctx context.Context, queryEmbedding []float32, limit int) ([]models.SearchResult, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "record_index", Value: 1},
		{Key: "chunk_index", Value: 1},
	})
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunks: %w", err)
	}
	defer cursor.Close(ctx)

	var chunks []models.Chunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode chunks: %w", err)
	}

	return rank(queryEmbedding, chunks, limit), nil
}

func (s *MongoStore) CountChunks(ctx context.Context) (int64, error) {
	count, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

func (s *MongoStore) Clear(ctx context.Context) error {
	if _, err := s.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}
