package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/case-framework/field-survey-backend/pkg/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const dbNameSuffix = "fieldSurveyDB"

type MongoStore struct {
	DBClient        *mongo.Client
	timeout         int
	noCursorTimeout bool
	DBNamePrefix    string
	indexes         []Index
}

func NewMongoStore(configs db.DBConfig, indexes []Index) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(configs.Timeout)*time.Second)
	defer cancel()

	dbClient, err := mongo.Connect(ctx,
		options.Client().ApplyURI(configs.URI),
		options.Client().SetMaxConnIdleTime(time.Duration(configs.IdleConnTimeout)*time.Second),
		options.Client().SetMaxPoolSize(configs.MaxPoolSize),
	)
	if err != nil {
		return nil, err
	}

	ctx, conCancel := context.WithTimeout(context.Background(), time.Duration(configs.Timeout)*time.Second)
	err = dbClient.Ping(ctx, nil)
	defer conCancel()

	if err != nil {
		return nil, err
	}

	store := &MongoStore{
		DBClient:        dbClient,
		timeout:         configs.Timeout,
		noCursorTimeout: configs.NoCursorTimeout,
		DBNamePrefix:    configs.DBNamePrefix,
		indexes:         indexes,
	}

	if configs.RunIndexCreation {
		if err := store.EnsureIndexes(context.Background()); err != nil {
			slog.Error("Error ensuring indexes for field survey DB", slog.String("error", err.Error()))
		}
	}

	return store, nil
}

func (s *MongoStore) getDBName() string {
	return s.DBNamePrefix + dbNameSuffix
}

func (s *MongoStore) collection(name string) *mongo.Collection {
	return s.DBClient.Database(s.getDBName()).Collection(name)
}

func (s *MongoStore) getContext(parent context.Context) (ctx context.Context, cancel context.CancelFunc) {
	return context.WithTimeout(parent, time.Duration(s.timeout)*time.Second)
}

// EnsureIndexes creates the declared indexes that do not exist yet. Existing indexes are matched
// by name and left untouched.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	slog.Debug("Ensuring indexes for field survey DB")
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	for _, index := range s.indexes {
		collection := s.collection(index.Collection)

		existing, err := db.ListCollectionIndexes(ctx, collection)
		if err != nil {
			slog.Error("Error listing indexes", slog.String("collection", index.Collection), slog.String("error", err.Error()))
			return err
		}
		if hasIndex(existing, index.Name) {
			continue
		}

		keys := bson.D{}
		for _, key := range index.Keys {
			keys = append(keys, bson.E{Key: key, Value: 1})
		}
		opts := options.Index().SetName(index.Name).SetUnique(index.Unique)
		if len(index.PartialFilter) > 0 {
			opts.SetPartialFilterExpression(index.PartialFilter)
		}

		if _, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: opts}); err != nil {
			slog.Error("Error creating index", slog.String("collection", index.Collection), slog.String("index", index.Name), slog.String("error", err.Error()))
			return err
		}
	}
	return nil
}

// ListIndexes returns the indexes present on every collection an index is declared for.
func (s *MongoStore) ListIndexes(ctx context.Context) (map[string][]bson.M, error) {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	result := map[string][]bson.M{}
	for _, index := range s.indexes {
		if _, done := result[index.Collection]; done {
			continue
		}
		existing, err := db.ListCollectionIndexes(ctx, s.collection(index.Collection))
		if err != nil {
			return nil, err
		}
		result[index.Collection] = existing
	}
	return result, nil
}

// DropIndexes removes the declared indexes, or with all set every index except _id on the
// collections they belong to.
func (s *MongoStore) DropIndexes(ctx context.Context, all bool) error {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	if all {
		dropped := map[string]bool{}
		for _, index := range s.indexes {
			if dropped[index.Collection] {
				continue
			}
			if _, err := s.collection(index.Collection).Indexes().DropAll(ctx); err != nil {
				slog.Error("Error dropping indexes", slog.String("collection", index.Collection), slog.String("error", err.Error()))
				return err
			}
			dropped[index.Collection] = true
		}
		return nil
	}

	for _, index := range s.indexes {
		existing, err := db.ListCollectionIndexes(ctx, s.collection(index.Collection))
		if err != nil {
			return err
		}
		if !hasIndex(existing, index.Name) {
			continue
		}
		if _, err := s.collection(index.Collection).Indexes().DropOne(ctx, index.Name); err != nil {
			slog.Error("Error dropping index", slog.String("collection", index.Collection), slog.String("index", index.Name), slog.String("error", err.Error()))
			return err
		}
	}
	return nil
}

func hasIndex(existing []bson.M, name string) bool {
	for _, index := range existing {
		if index["name"] == name {
			return true
		}
	}
	return false
}

func (s *MongoStore) List(ctx context.Context, collection string, query Query, out any) error {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	filter := query.Filter
	if filter == nil {
		filter = bson.M{}
	}

	opts := options.Find()
	if len(query.Sort) > 0 {
		sort := bson.D{}
		for _, field := range query.Sort {
			direction := 1
			if field.Desc {
				direction = -1
			}
			sort = append(sort, bson.E{Key: field.Key, Value: direction})
		}
		opts.SetSort(sort)
	}
	if query.Offset > 0 {
		opts.SetSkip(query.Offset)
	}
	if query.Limit > 0 {
		opts.SetLimit(query.Limit)
	}
	if s.noCursorTimeout {
		opts.SetNoCursorTimeout(true)
	}

	cursor, err := s.collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	return cursor.All(ctx, out)
}

func (s *MongoStore) Count(ctx context.Context, collection string, filter bson.M) (int64, error) {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	if filter == nil {
		filter = bson.M{}
	}
	return s.collection(collection).CountDocuments(ctx, filter)
}

func (s *MongoStore) Get(ctx context.Context, collection string, id string, out any) error {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	err := s.collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *MongoStore) Create(ctx context.Context, collection string, doc any) (string, error) {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	res, err := s.collection(collection).InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("%w: %s", ErrConflict, err.Error())
		}
		return "", err
	}

	switch id := res.InsertedID.(type) {
	case string:
		return id, nil
	case primitive.ObjectID:
		return id.Hex(), nil
	default:
		return fmt.Sprint(id), nil
	}
}

func (s *MongoStore) Update(ctx context.Context, collection string, id string, expect bson.M, patch bson.M, out any) error {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	filter := bson.M{}
	for key, value := range expect {
		filter[key] = value
	}
	filter["_id"] = id

	res := s.collection(collection).FindOneAndUpdate(
		ctx,
		filter,
		bson.M{"$set": patch},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if err := res.Err(); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrConflict, err.Error())
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return err
		}

		count, countErr := s.collection(collection).CountDocuments(ctx, bson.M{"_id": id})
		if countErr != nil {
			return countErr
		}
		if count == 0 {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %s/%s does not match the expected state", ErrConflict, collection, id)
	}

	if out == nil {
		return nil
	}
	return res.Decode(out)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.DBClient.Disconnect(ctx)
}
