package reports

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore persists reports in MongoDB.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type mongoReport struct {
	ID         string    `bson:"_id"`
	ReceivedAt time.Time `bson:"received_at"`
	UserAgent  string    `bson:"user_agent,omitempty"`
	Body       Body      `bson:"body"`
}

// NewMongoStore connects to MongoDB and ensures the report collection's
// indexes exist.
func NewMongoStore(ctx context.Context, connectionString, database, collection string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateMany(connectCtx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "received_at", Value: -1}}},
	})
	if err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, fmt.Errorf("create report indexes: %w", err)
	}

	return &MongoStore{client: client, collection: coll}, nil
}

// Save records one report.
func (s *MongoStore) Save(ctx context.Context, report Report) error {
	doc := mongoReport{
		ID:         report.ID,
		ReceivedAt: report.ReceivedAt,
		UserAgent:  report.UserAgent,
		Body:       report.Body,
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// List returns up to limit reports, newest first.
func (s *MongoStore) List(ctx context.Context, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "received_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer cursor.Close(ctx)

	var out []Report
	for cursor.Next(ctx) {
		var doc mongoReport
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		out = append(out, Report{
			ID:         doc.ID,
			ReceivedAt: doc.ReceivedAt,
			UserAgent:  doc.UserAgent,
			Body:       doc.Body,
		})
	}
	return out, cursor.Err()
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
