package db

import (
	"context"
	"fmt"

	"podscribe/pkg/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Client wraps the MongoDB client and the episode collection
type Client struct {
	mongoClient *mongo.Client
	database    *mongo.Database
	collection  *mongo.Collection
}

// NewClient creates a new database client
func NewClient(connectionString, databaseName, collectionName string) *Client {
	clientOptions := options.Client().ApplyURI(connectionString)
	mongoClient, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		// Return client with nil - error will be caught during Connect()
		return &Client{}
	}

	database := mongoClient.Database(databaseName)
	collection := database.Collection(collectionName)

	return &Client{
		mongoClient: mongoClient,
		database:    database,
		collection:  collection,
	}
}

// Connect establishes connection to MongoDB
func (c *Client) Connect(ctx context.Context) error {
	if c.mongoClient == nil {
		return fmt.Errorf("mongo client not initialized")
	}
	return c.mongoClient.Ping(ctx, nil)
}

// Close closes the MongoDB connection
func (c *Client) Close(ctx context.Context) error {
	if c.mongoClient == nil {
		return nil
	}
	return c.mongoClient.Disconnect(ctx)
}

// SaveEpisode upserts an episode using its slug as the unique key
func (c *Client) SaveEpisode(ctx context.Context, entry *domain.CatalogEntry) error {
	if c.collection == nil {
		return fmt.Errorf("collection not initialized")
	}

	doc, err := episodeDocument(entry)
	if err != nil {
		return err
	}

	filter := bson.M{"slug": entry.Slug}
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)

	_, err = c.collection.UpdateOne(ctx, filter, update, opts)
	return err
}

// GetAllSlugs fetches all slugs from the database and returns them as a set
func (c *Client) GetAllSlugs(ctx context.Context) (map[string]bool, error) {
	if c.collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	cursor, err := c.collection.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"slug": 1, "_id": 0}))
	if err != nil {
		return nil, fmt.Errorf("failed to query slugs: %w", err)
	}
	defer cursor.Close(ctx)

	slugs := make(map[string]bool)
	for cursor.Next(ctx) {
		var result struct {
			Slug string `bson:"slug"`
		}
		if err := cursor.Decode(&result); err != nil {
			continue // Skip invalid documents
		}
		if result.Slug != "" {
			slugs[result.Slug] = true
		}
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return slugs, nil
}

// episodeDocument converts entry to a BSON document. The JSON-LD metadata
// is stored as a nested document so it stays queryable.
func episodeDocument(entry *domain.CatalogEntry) (bson.M, error) {
	raw, err := bson.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encode episode %s: %w", entry.Slug, err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode episode %s: %w", entry.Slug, err)
	}

	if len(entry.Metadata) > 0 {
		var metadata bson.M
		if err := bson.UnmarshalExtJSON(entry.Metadata, false, &metadata); err != nil {
			return nil, fmt.Errorf("convert metadata of %s: %w", entry.Slug, err)
		}
		doc["metadata"] = metadata
	}
	return doc, nil
}
