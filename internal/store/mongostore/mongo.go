// Package mongostore implements the sheet library on MongoDB, for deployments
// that share one document database across instances.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// CollectionSheets holds song sheet documents.
const CollectionSheets = "music_sheets"

// Collection is the subset of *mongo.Collection the repository uses.
type Collection interface {
	FindOne(ctx context.Context, filter any) SingleResult
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) (Cursor, error)
	InsertOne(ctx context.Context, document any) error
	ReplaceOne(ctx context.Context, filter, replacement any) (int64, error)
	DeleteOne(ctx context.Context, filter any) (int64, error)
	CreateIndex(ctx context.Context, model mongo.IndexModel) (string, error)
}

// SingleResult decodes one document.
type SingleResult interface {
	Decode(v any) error
}

// Cursor iterates a result set.
type Cursor interface {
	All(ctx context.Context, result any) error
	Close(ctx context.Context) error
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (mc *mongoCollection) FindOne(ctx context.Context, filter any) SingleResult {
	return mc.coll.FindOne(ctx, filter)
}

func (mc *mongoCollection) Find(ctx context.Context, filter any, opts ...*options.FindOptions) (Cursor, error) {
	cur, err := mc.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func (mc *mongoCollection) InsertOne(ctx context.Context, document any) error {
	_, err := mc.coll.InsertOne(ctx, document)
	return err
}

func (mc *mongoCollection) ReplaceOne(ctx context.Context, filter, replacement any) (int64, error) {
	res, err := mc.coll.ReplaceOne(ctx, filter, replacement)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (mc *mongoCollection) DeleteOne(ctx context.Context, filter any) (int64, error) {
	res, err := mc.coll.DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (mc *mongoCollection) CreateIndex(ctx context.Context, model mongo.IndexModel) (string, error) {
	return mc.coll.Indexes().CreateOne(ctx, model)
}

// Client owns the driver connection.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and pings the primary before returning.
func Connect(ctx context.Context, uri, database string, timeout time.Duration) (*Client, error) {
	opts := options.Client().ApplyURI(uri).SetTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Client{client: client, db: client.Database(database)}, nil
}

// Collection returns a wrapped collection of the configured database.
func (c *Client) Collection(name string) Collection {
	return &mongoCollection{coll: c.db.Collection(name)}
}

// Ping checks the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// EnsureIndexes creates the sheet indexes. The unique version index is what
// makes concurrent creates of one arrangement safe across instances.
func EnsureIndexes(ctx context.Context, coll Collection) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "songName", Value: 1},
				{Key: "songArtist", Value: 1},
				{Key: "songKey", Value: 1},
				{Key: "songArrangedBy", Value: 1},
			},
			Options: options.Index().SetName("song_version_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "songName", Value: 1}, {Key: "songArtist", Value: 1}},
			Options: options.Index().SetName("song_identity"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("created_at"),
		},
	}
	for _, model := range models {
		if _, err := coll.CreateIndex(ctx, model); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
