package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/root-sector/group-chat-module-keylifecycle/interfaces"
	"github.com/root-sector/group-chat-module-keylifecycle/types"
)

const auditCollection = "auditEvents"

// MongoDBStore implements audit event storage using MongoDB. The bound is
// enforced by trimming the oldest documents after each append.
type MongoDBStore struct {
	db      *mongo.Database
	maxSize int
}

// NewMongoDBStore creates a new MongoDB audit store.
func NewMongoDBStore(db *mongo.Database, maxSize int) interfaces.AuditStore {
	if maxSize <= 0 {
		maxSize = types.DefaultMaxAuditEvents
	}
	return &MongoDBStore{db: db, maxSize: maxSize}
}

// Append inserts the event and evicts the oldest documents past the cap.
func (s *MongoDBStore) Append(ctx context.Context, event *types.AuditEvent) error {
	coll := s.db.Collection(auditCollection)

	if _, err := coll.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to store audit event: %w", err)
	}

	count, err := coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to count audit events: %w", err)
	}
	if count <= int64(s.maxSize) {
		return nil
	}

	// Collect the IDs of the oldest overflow documents and delete them.
	overflow := count - int64(s.maxSize)
	cursor, err := coll.Find(ctx, bson.M{},
		options.Find().
			SetSort(bson.M{"timestamp": 1}).
			SetLimit(overflow).
			SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return fmt.Errorf("failed to find overflow audit events: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return fmt.Errorf("failed to decode overflow audit events: %w", err)
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	if len(ids) > 0 {
		if _, err := coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
			return fmt.Errorf("failed to evict overflow audit events: %w", err)
		}
	}
	return nil
}

// Query returns matching events newest first, up to filter.Limit.
func (s *MongoDBStore) Query(ctx context.Context, filter types.AuditFilter) ([]*types.AuditEvent, error) {
	query := bson.M{}
	if filter.EventType != "" {
		query["eventType"] = filter.EventType
	}
	if filter.UserID != "" {
		query["userId"] = filter.UserID
	}
	if filter.GroupID != "" {
		query["groupId"] = filter.GroupID
	}
	if filter.Severity != "" {
		query["severity"] = filter.Severity
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	timeRange := bson.M{}
	if !filter.From.IsZero() {
		timeRange["$gte"] = filter.From
	}
	if !filter.To.IsZero() {
		timeRange["$lte"] = filter.To
	}
	if len(timeRange) > 0 {
		query["timestamp"] = timeRange
	}

	opts := options.Find().SetSort(bson.M{"timestamp": -1})
	if filter.Limit > 0 {
		opts = opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.db.Collection(auditCollection).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*types.AuditEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode audit events: %w", err)
	}
	return events, nil
}

// Purge removes events older than the given instant and returns the count.
func (s *MongoDBStore) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := s.db.Collection(auditCollection).DeleteMany(ctx, bson.M{
		"timestamp": bson.M{"$lt": olderThan},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit events: %w", err)
	}
	return int(result.DeletedCount), nil
}
