package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	co "github.com/ilnaes/ownpad/internal/common"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type roomRecord struct {
	Room    string      `bson:"_id"`
	Content string      `bson:"content"`
	Ranges  co.RangeSet `bson:"ranges"`
	Updated time.Time   `bson:"updated"`
}

type mongoStore struct {
	client *mongo.Client
	rooms  *mongo.Collection
}

// NewMongoStore keeps room documents in the "rooms" collection of db.
func NewMongoStore(ctx context.Context, uri, db string) (Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &mongoStore{
		client: client,
		rooms:  client.Database(db).Collection("rooms"),
	}, nil
}

func (m *mongoStore) Save(ctx context.Context, room string, doc co.Document) error {
	rec := roomRecord{
		Room:    room,
		Content: doc.Content,
		Ranges:  doc.Ranges,
		Updated: time.Now(),
	}
	opts := options.Replace().SetUpsert(true)

	_, err := m.rooms.ReplaceOne(ctx, bson.D{{Key: "_id", Value: room}}, rec, opts)
	return err
}

func (m *mongoStore) Load(ctx context.Context, room string) (co.Document, error) {
	var rec roomRecord
	err := m.rooms.FindOne(ctx, bson.D{{Key: "_id", Value: room}}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return co.Document{}, ErrNotFound
	} else if err != nil {
		return co.Document{}, err
	}

	return co.Received(rec.Content, rec.Ranges), nil
}

func (m *mongoStore) Delete(ctx context.Context, room string) error {
	_, err := m.rooms.DeleteOne(ctx, bson.D{{Key: "_id", Value: room}})
	return err
}

func (m *mongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
