package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	wrapping "github.com/hashicorp/go-kms-wrapping/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/root-sector/group-chat-module-keylifecycle/types"
)

const (
	scheduleCollection   = "rotationSchedules"
	wrappedKeyCollection = "groupKeys"
)

// MongoDBStore persists rotation schedules and KMS-wrapped group keys in
// MongoDB. Schedules are keyed by group ID; the wrapped-key collection
// holds only the latest epoch per group.
type MongoDBStore struct {
	db *mongo.Database
}

// NewMongoDBStore creates a new MongoDB rotation store.
func NewMongoDBStore(db *mongo.Database) *MongoDBStore {
	return &MongoDBStore{db: db}
}

// GetSchedule returns the schedule for a group.
func (s *MongoDBStore) GetSchedule(ctx context.Context, groupID string) (*types.RotationSchedule, error) {
	var schedule types.RotationSchedule
	err := s.db.Collection(scheduleCollection).FindOne(ctx, bson.M{"_id": groupID}).Decode(&schedule)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, types.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("failed to get rotation schedule: %w", err)
	}
	return &schedule, nil
}

// StoreSchedule inserts or replaces the group's schedule.
func (s *MongoDBStore) StoreSchedule(ctx context.Context, schedule *types.RotationSchedule) error {
	_, err := s.db.Collection(scheduleCollection).ReplaceOne(
		ctx,
		bson.M{"_id": schedule.GroupID},
		schedule,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to store rotation schedule: %w", err)
	}
	return nil
}

// DeleteSchedule removes the group's schedule.
func (s *MongoDBStore) DeleteSchedule(ctx context.Context, groupID string) error {
	_, err := s.db.Collection(scheduleCollection).DeleteOne(ctx, bson.M{"_id": groupID})
	if err != nil {
		return fmt.Errorf("failed to delete rotation schedule: %w", err)
	}
	return nil
}

type wrappedKeyDoc struct {
	GroupID   string             `bson:"_id"`
	Version   int                `bson:"version"`
	Blob      *wrapping.BlobInfo `bson:"blob"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

// StoreWrappedKey persists the KMS-wrapped key for the group's epoch.
func (s *MongoDBStore) StoreWrappedKey(ctx context.Context, groupID string, version int, blob *wrapping.BlobInfo) error {
	doc := wrappedKeyDoc{
		GroupID:   groupID,
		Version:   version,
		Blob:      blob,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.db.Collection(wrappedKeyCollection).ReplaceOne(
		ctx,
		bson.M{"_id": groupID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to store wrapped group key: %w", err)
	}
	return nil
}

// GetWrappedKey returns the latest wrapped key and its version.
func (s *MongoDBStore) GetWrappedKey(ctx context.Context, groupID string) (*wrapping.BlobInfo, int, error) {
	var doc wrappedKeyDoc
	err := s.db.Collection(wrappedKeyCollection).FindOne(ctx, bson.M{"_id": groupID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, 0, types.ErrWrappedKeyNotFound
		}
		return nil, 0, fmt.Errorf("failed to get wrapped group key: %w", err)
	}
	return doc.Blob, doc.Version, nil
}
