package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/repository"
)

const (
	collFarms         = "farms"
	collAnimals       = "animals"
	collHousing       = "housing_units"
	collAssignments   = "housing_assignments"
	collMatings       = "mating_records"
	collTransactions  = "transactions"
	collMedical       = "medical_records"
	collNotifications = "notifications"
	collCounters      = "counters"
)

var _ repository.Store = (*MongoDBRepository)(nil)

// MongoDBRepository implements repository.Store on MongoDB. Transactions use
// multi-document sessions and therefore need a replica set or sharded cluster.
type MongoDBRepository struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// NewMongoDBRepository connects, pings and ensures the indexes the store relies on.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		disconnect(client, logger)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	r := &MongoDBRepository{
		client: client,
		db:     client.Database(dbName),
		logger: logger,
	}
	if err := r.ensureIndexes(ctx); err != nil {
		disconnect(client, logger)
		return nil, err
	}
	return r, nil
}

// disconnect releases a client that failed setup. ctx of the caller may already be done.
func disconnect(client *mongo.Client, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		logger.Warn("failed to disconnect mongodb client", zap.Error(err))
	}
}

func (r *MongoDBRepository) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collAnimals: {
			{Keys: bson.D{{Key: "farm_id", Value: 1}, {Key: "tag", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "farm_id", Value: 1}, {Key: "housing_id", Value: 1}}},
		},
		collAssignments: {
			{Keys: bson.D{{Key: "farm_id", Value: 1}, {Key: "animal_id", Value: 1}, {Key: "start", Value: 1}}},
		},
		collTransactions: {
			{Keys: bson.D{{Key: "farm_id", Value: 1}, {Key: "date", Value: 1}}},
		},
		collNotifications: {
			{Keys: bson.D{{Key: "farm_id", Value: 1}, {Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for coll, specs := range indexes {
		if _, err := r.db.Collection(coll).Indexes().CreateMany(ctx, specs); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// View runs fn with plain, non-transactional reads.
func (r *MongoDBRepository) View(ctx context.Context, fn func(repository.View) error) error {
	return fn(&reader{db: r.db, ctx: func(c context.Context) context.Context { return c }})
}

// RunInTransaction runs fn inside a session transaction. The driver retries fn on
// transient transaction errors, so fn must not have side effects outside the Tx.
func (r *MongoDBRepository) RunInTransaction(ctx context.Context, fn func(repository.Tx) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("%w: start session: %v", models.ErrProvider, err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		t := &tx{reader: reader{db: r.db, ctx: func(context.Context) context.Context { return sc }}}
		return nil, fn(t)
	})
	if err != nil {
		r.logger.Debug("transaction aborted", zap.Error(err))
		return err
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// reader resolves every call's context through ctx so that reads made inside a
// transaction run on the session context.
type reader struct {
	db  *mongo.Database
	ctx func(context.Context) context.Context
}

func (r *reader) findOne(ctx context.Context, coll string, filter bson.M, out any, what string, notFound error) error {
	err := r.db.Collection(coll).FindOne(r.ctx(ctx), filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", what, notFound)
	}
	if err != nil {
		return fmt.Errorf("%w: find %s: %v", models.ErrProvider, what, err)
	}
	return nil
}

func findAll[T any](ctx context.Context, r *reader, coll string, filter bson.M, sort bson.D) ([]T, error) {
	cur, err := r.db.Collection(coll).Find(r.ctx(ctx), filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", models.ErrProvider, coll, err)
	}
	var out []T
	if err := cur.All(r.ctx(ctx), &out); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", models.ErrProvider, coll, err)
	}
	return out, nil
}

func (r *reader) ListFarms(ctx context.Context) ([]models.Farm, error) {
	return findAll[models.Farm](ctx, r, collFarms, bson.M{}, bson.D{{Key: "_id", Value: 1}})
}

func (r *reader) GetFarm(ctx context.Context, farmID string) (models.Farm, error) {
	var f models.Farm
	err := r.findOne(ctx, collFarms, bson.M{"_id": farmID}, &f, "farm "+farmID, models.ErrNotFound)
	return f, err
}

func (r *reader) GetAnimal(ctx context.Context, farmID, animalID string) (models.Animal, error) {
	var a models.Animal
	err := r.findOne(ctx, collAnimals, bson.M{"_id": animalID, "farm_id": farmID}, &a, "animal "+animalID, models.ErrNotFound)
	return a, err
}

func (r *reader) FindAnimalByTag(ctx context.Context, farmID, tag string) (models.Animal, error) {
	tag = strings.TrimSpace(tag)
	var a models.Animal
	err := r.findOne(ctx, collAnimals, bson.M{"tag": tag, "farm_id": farmID}, &a, "animal tag "+tag, models.ErrNotFound)
	return a, err
}

func (r *reader) ListAnimals(ctx context.Context, farmID string, filter repository.AnimalFilter) ([]models.Animal, error) {
	q := bson.M{"farm_id": farmID}
	if filter.Status != "" {
		q["status"] = filter.Status
	} else if filter.LiveOnly {
		q["status"] = bson.M{"$nin": []models.AnimalStatus{models.StatusSold, models.StatusDeceasedNatural, models.StatusDeceasedProcessed}}
	}
	if filter.HousingID != "" {
		q["housing_id"] = filter.HousingID
	}
	animals, err := findAll[models.Animal](ctx, r, collAnimals, q, bson.D{{Key: "tag", Value: 1}})
	if err != nil {
		return nil, err
	}
	out := animals[:0]
	for _, a := range animals {
		if filter.Match(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *reader) GetHousing(ctx context.Context, farmID, housingID string) (models.HousingUnit, error) {
	var h models.HousingUnit
	err := r.findOne(ctx, collHousing, bson.M{"_id": housingID, "farm_id": farmID}, &h, housingID, models.ErrHousingNotFound)
	return h, err
}

func (r *reader) ListHousing(ctx context.Context, farmID string) ([]models.HousingUnit, error) {
	return findAll[models.HousingUnit](ctx, r, collHousing, bson.M{"farm_id": farmID}, bson.D{{Key: "label", Value: 1}})
}

func (r *reader) ListAssignments(ctx context.Context, farmID, animalID string) ([]models.HousingAssignment, error) {
	q := bson.M{"farm_id": farmID}
	if animalID != "" {
		q["animal_id"] = animalID
	}
	out, err := findAll[models.HousingAssignment](ctx, r, collAssignments, q, bson.D{{Key: "start", Value: 1}, {Key: "_id", Value: 1}})
	if err != nil {
		return nil, err
	}
	repository.SortAssignments(out)
	return out, nil
}

func (r *reader) GetMating(ctx context.Context, farmID, matingID string) (models.MatingRecord, error) {
	var m models.MatingRecord
	err := r.findOne(ctx, collMatings, bson.M{"_id": matingID, "farm_id": farmID}, &m, "mating "+matingID, models.ErrNotFound)
	return m, err
}

func (r *reader) ListMatings(ctx context.Context, farmID string) ([]models.MatingRecord, error) {
	return findAll[models.MatingRecord](ctx, r, collMatings, bson.M{"farm_id": farmID}, bson.D{{Key: "mating_date", Value: 1}, {Key: "_id", Value: 1}})
}

func (r *reader) ListTransactions(ctx context.Context, farmID string, period repository.Period) ([]models.Transaction, error) {
	q := bson.M{"farm_id": farmID}
	dateRange := bson.M{}
	if !period.From.IsZero() {
		dateRange["$gte"] = period.From
	}
	if !period.To.IsZero() {
		dateRange["$lte"] = period.To
	}
	if len(dateRange) > 0 {
		q["date"] = dateRange
	}
	return findAll[models.Transaction](ctx, r, collTransactions, q, bson.D{{Key: "date", Value: 1}, {Key: "created_at", Value: 1}})
}

func (r *reader) ListMedicalRecords(ctx context.Context, farmID, animalID string) ([]models.MedicalRecord, error) {
	q := bson.M{"farm_id": farmID}
	if animalID != "" {
		q["animal_id"] = animalID
	}
	return findAll[models.MedicalRecord](ctx, r, collMedical, q, bson.D{{Key: "date", Value: 1}})
}

func (r *reader) ListNotifications(ctx context.Context, farmID string) ([]models.Notification, error) {
	return findAll[models.Notification](ctx, r, collNotifications, bson.M{"farm_id": farmID}, bson.D{{Key: "due_date", Value: 1}, {Key: "key", Value: 1}})
}

type tx struct {
	reader
}

func (t *tx) replace(ctx context.Context, coll, id string, doc any) error {
	if id == "" {
		return fmt.Errorf("put %s: empty id", coll)
	}
	_, err := t.db.Collection(coll).ReplaceOne(t.ctx(ctx), bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) && coll == collAnimals {
		return fmt.Errorf("put %s %s: %w", coll, id, models.ErrDuplicateTag)
	}
	if err != nil {
		return fmt.Errorf("%w: put %s %s: %v", models.ErrProvider, coll, id, err)
	}
	return nil
}

func (t *tx) PutFarm(ctx context.Context, farm models.Farm) error {
	return t.replace(ctx, collFarms, farm.ID, farm)
}

func (t *tx) PutAnimal(ctx context.Context, animal models.Animal) error {
	return t.replace(ctx, collAnimals, animal.ID, animal)
}

func (t *tx) PutHousing(ctx context.Context, unit models.HousingUnit) error {
	return t.replace(ctx, collHousing, unit.ID, unit)
}

func (t *tx) PutAssignment(ctx context.Context, assignment models.HousingAssignment) error {
	return t.replace(ctx, collAssignments, assignment.ID, assignment)
}

func (t *tx) PutMating(ctx context.Context, record models.MatingRecord) error {
	return t.replace(ctx, collMatings, record.ID, record)
}

func (t *tx) PutTransaction(ctx context.Context, txn models.Transaction) error {
	return t.replace(ctx, collTransactions, txn.ID, txn)
}

func (t *tx) PutMedicalRecord(ctx context.Context, record models.MedicalRecord) error {
	return t.replace(ctx, collMedical, record.ID, record)
}

func (t *tx) PutNotification(ctx context.Context, n models.Notification) error {
	return t.replace(ctx, collNotifications, n.ID, n)
}

func (t *tx) NextSequence(ctx context.Context, farmID, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := t.db.Collection(collCounters).FindOneAndUpdate(
		t.ctx(ctx),
		bson.M{"_id": farmID + ":" + name},
		bson.M{"$inc": bson.M{"seq": int64(1)}, "$setOnInsert": bson.M{"farm_id": farmID}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("%w: next sequence %s: %v", models.ErrProvider, name, err)
	}
	return counter.Seq, nil
}
