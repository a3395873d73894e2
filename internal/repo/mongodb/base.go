package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nguyentranbao-ct/family-chat/internal/models"
)

type IEntity interface {
	CollectionName() string
}

// baseRepo holds the collection plumbing shared by the typed repositories.
type baseRepo[E IEntity] struct {
	coll *mongo.Collection
}

func newBaseRepo[E IEntity](db *DB) baseRepo[E] {
	var entity E
	return baseRepo[E]{
		coll: db.Database.Collection(entity.CollectionName()),
	}
}

func (r *baseRepo[E]) insert(ctx context.Context, entity *E) error {
	_, err := r.coll.InsertOne(ctx, entity)
	return err
}

// insertMany is unordered: a failing document does not stop the rest.
func (r *baseRepo[E]) insertMany(ctx context.Context, entities []*E) error {
	if len(entities) == 0 {
		return nil
	}
	docs := make([]any, 0, len(entities))
	for _, e := range entities {
		docs = append(docs, e)
	}
	_, err := r.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return err
}

func (r *baseRepo[E]) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*E, error) {
	var entity E
	err := r.coll.FindOne(ctx, filter, opts...).Decode(&entity)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *baseRepo[E]) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*E, error) {
	cursor, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer cursor.Close(ctx)

	entities := []*E{}
	if err := cursor.All(ctx, &entities); err != nil {
		return nil, fmt.Errorf("cursor all: %w", err)
	}
	return entities, nil
}

func (r *baseRepo[E]) count(ctx context.Context, filter bson.M) (int64, error) {
	return r.coll.CountDocuments(ctx, filter)
}

// updateOne returns models.ErrNotFound when nothing matched the filter.
func (r *baseRepo[E]) updateOne(ctx context.Context, filter bson.M, update bson.M) (*mongo.UpdateResult, error) {
	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, models.ErrNotFound
	}
	return result, nil
}

func (r *baseRepo[E]) updateMany(ctx context.Context, filter bson.M, update bson.M) (int64, error) {
	result, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

func (r *baseRepo[E]) deleteOne(ctx context.Context, filter bson.M) error {
	result, err := r.coll.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *baseRepo[E]) deleteMany(ctx context.Context, filter bson.M) (int64, error) {
	result, err := r.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
