package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vietddude/taskwatcher/internal/core/domain"
	"github.com/vietddude/taskwatcher/internal/infra/storage"
)

type checkpointDoc struct {
	Name        string `bson:"name"`
	BlockNumber int64  `bson:"block_number"`
	UpdatedAt   int64  `bson:"updated_at"`
}

// CheckpointRepo implements storage.CheckpointRepository, one document per
// checkpoint name.
type CheckpointRepo struct {
	db   *Database
	name string
}

var _ storage.CheckpointRepository = (*CheckpointRepo)(nil)

func NewCheckpointRepo(db *Database, name string) *CheckpointRepo {
	return &CheckpointRepo{db: db, name: name}
}

func (r *CheckpointRepo) Load(ctx context.Context) (uint64, error) {
	var doc checkpointDoc
	err := r.db.collection(checkpointsCollection).
		FindOne(ctx, bson.D{{Key: "name", Value: r.name}}).
		Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get checkpoint: %w", domain.ErrPersistence, err)
	}
	return uint64(doc.BlockNumber), nil
}

func (r *CheckpointRepo) Save(ctx context.Context, height uint64) error {
	filter := bson.D{{Key: "name", Value: r.name}}
	update := bson.D{{
		Key: "$set",
		Value: bson.D{
			{Key: "block_number", Value: int64(height)},
			{Key: "updated_at", Value: time.Now().Unix()},
		},
	}}
	_, err := r.db.collection(checkpointsCollection).
		UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: failed to save checkpoint: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Cursor returns the stored checkpoint with its update time, or nil when
// nothing has been saved.
func (r *CheckpointRepo) Cursor(ctx context.Context) (*domain.Cursor, error) {
	var doc checkpointDoc
	err := r.db.collection(checkpointsCollection).
		FindOne(ctx, bson.D{{Key: "name", Value: r.name}}).
		Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get checkpoint: %w", domain.ErrPersistence, err)
	}
	return &domain.Cursor{
		Name:        doc.Name,
		BlockNumber: uint64(doc.BlockNumber),
		UpdatedAt:   time.Unix(doc.UpdatedAt, 0),
	}, nil
}
