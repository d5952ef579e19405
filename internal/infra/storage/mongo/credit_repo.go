package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vietddude/taskwatcher/internal/core/domain"
	"github.com/vietddude/taskwatcher/internal/infra/storage"
)

// CreditRepo implements storage.CreditLedger on the user_tasks collection.
type CreditRepo struct {
	db *Database
}

var _ storage.CreditLedger = (*CreditRepo)(nil)

func NewCreditRepo(db *Database) *CreditRepo {
	return &CreditRepo{db: db}
}

// InsertIfAbsent relies on the unique index: a duplicate key error means the
// credit already exists.
func (r *CreditRepo) InsertIfAbsent(
	ctx context.Context,
	userAddress string,
	taskID domain.TaskID,
) (domain.InsertResult, error) {
	record := domain.CreditRecord{
		UserAddress: userAddress,
		TaskID:      taskID,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := r.db.collection(creditsCollection).InsertOne(ctx, record)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.AlreadyExisted, nil
		}
		return 0, fmt.Errorf("%w: failed to insert credit: %w", domain.ErrStore, err)
	}
	return domain.Inserted, nil
}

func (r *CreditRepo) List(ctx context.Context, taskID *domain.TaskID) ([]domain.CreditRecord, error) {
	filter := bson.D{}
	if taskID != nil {
		filter = bson.D{{Key: "task_id", Value: int(*taskID)}}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "task_id", Value: 1}, {Key: "created_at", Value: 1}}).
		SetProjection(bson.D{{Key: "_id", Value: 0}})

	cursor, err := r.db.collection(creditsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list credits: %w", domain.ErrStore, err)
	}
	defer cursor.Close(ctx)

	var records []domain.CreditRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("%w: failed to decode credits: %w", domain.ErrStore, err)
	}
	return records, nil
}

func (r *CreditRepo) Count(ctx context.Context) (int64, error) {
	n, err := r.db.collection(creditsCollection).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count credits: %w", domain.ErrStore, err)
	}
	return n, nil
}
