package implementation

import (
	"context"
	"errors"
	"fmt"
	"time"

	wdamodels "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Models"
	interfaces "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Repository/Interfaces"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultOpTimeout = 5 * time.Second

type MongoSessionRepository struct {
	coll      *mongo.Collection
	opTimeout time.Duration
}

func NewMongoSessionRepository(coll *mongo.Collection, opTimeout time.Duration) *MongoSessionRepository {
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	return &MongoSessionRepository{coll: coll, opTimeout: opTimeout}
}

var _ interfaces.SessionRepository = (*MongoSessionRepository)(nil)
var _ interfaces.IndexManager = (*MongoSessionRepository)(nil)

// Upsert runs a single findAndModify keyed on deviceId. Concurrent first writes
// for one device converge on one document only while the unique deviceId index
// from EnsureIndexes exists; without it each racing upsert may insert.
func (r *MongoSessionRepository) Upsert(ctx context.Context, u wdamodels.SensorUpdate, at time.Time) (wdamodels.UpsertResult, error) {
	at = wdamodels.Timestamp(at)
	fields := u.Fields()

	res, err := r.upsertOnce(ctx, u, at)
	// Two inserts racing on the unique deviceId index: the loser retries as an update.
	if err != nil && mongo.IsDuplicateKeyError(err) {
		res, err = r.upsertOnce(ctx, u, at)
	}
	if err != nil {
		return wdamodels.UpsertResult{}, err
	}
	if !res.Created() {
		res.FieldsChanged = fields
	}
	return res, nil
}

func (r *MongoSessionRepository) upsertOnce(ctx context.Context, u wdamodels.SensorUpdate, at time.Time) (wdamodels.UpsertResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	newID := primitive.NewObjectID()
	filter := bson.D{{Key: wdamodels.FieldDeviceID, Value: u.DeviceID}}
	update := bson.D{
		{Key: "$set", Value: setDocument(u, at)},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "_id", Value: newID},
			{Key: wdamodels.FieldCreatedAt, Value: at},
		}},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.Before).
		SetProjection(bson.D{{Key: "_id", Value: 1}})

	var before struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return wdamodels.UpsertResult{Outcome: wdamodels.OutcomeCreated, ID: newID}, nil
	}
	if err != nil {
		return wdamodels.UpsertResult{}, fmt.Errorf("upsert session %q: %w", u.DeviceID, err)
	}
	return wdamodels.UpsertResult{Outcome: wdamodels.OutcomeUpdated, ID: before.ID}, nil
}

// setDocument builds the $set stage: only submitted fields plus updatedAt
func setDocument(u wdamodels.SensorUpdate, at time.Time) bson.D {
	set := bson.D{}
	if u.HeartRate != nil {
		set = append(set, bson.E{Key: string(wdamodels.HeartRate), Value: *u.HeartRate})
	}
	if u.Accelerometer != nil {
		set = append(set, bson.E{Key: string(wdamodels.Accelerometer), Value: *u.Accelerometer})
	}
	if u.Gyroscope != nil {
		g := *u.Gyroscope
		if u.GyroscopeMode == wdamodels.GyroscopePerAxis {
			prefix := string(wdamodels.Gyroscope) + "."
			set = append(set,
				bson.E{Key: prefix + "x", Value: g.X},
				bson.E{Key: prefix + "y", Value: g.Y},
				bson.E{Key: prefix + "z", Value: g.Z},
			)
		} else {
			set = append(set, bson.E{Key: string(wdamodels.Gyroscope), Value: g})
		}
	}
	if u.Steps != nil {
		set = append(set, bson.E{Key: string(wdamodels.Steps), Value: *u.Steps})
	}
	return append(set, bson.E{Key: wdamodels.FieldUpdatedAt, Value: at})
}

func (r *MongoSessionRepository) FindByDevice(ctx context.Context, deviceID string) (*wdamodels.SensorSession, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	var s wdamodels.SensorSession
	err := r.coll.FindOne(ctx, bson.D{{Key: wdamodels.FieldDeviceID, Value: deviceID}}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session %q: %w", deviceID, err)
	}
	return &s, nil
}

// List returns sessions, most recently updated first. limit <= 0 means no limit.
func (r *MongoSessionRepository) List(ctx context.Context, limit int64) ([]wdamodels.SensorSession, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{
		{Key: wdamodels.FieldUpdatedAt, Value: -1},
		{Key: "_id", Value: -1},
	})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer cur.Close(ctx)

	sessions := make([]wdamodels.SensorSession, 0)
	if err := cur.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	if sessions == nil {
		sessions = []wdamodels.SensorSession{}
	}
	return sessions, nil
}

// EnsureIndexes creates the unique deviceId index and the updatedAt sort index
func (r *MongoSessionRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: wdamodels.FieldDeviceID, Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_deviceId"),
		},
		{
			Keys:    bson.D{{Key: wdamodels.FieldUpdatedAt, Value: -1}},
			Options: options.Index().SetName("updatedAt_desc"),
		},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create session indexes: %w", err)
	}
	return nil
}
