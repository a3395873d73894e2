package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// ErrDuplicateKey is returned when a write hits one of the unique indexes.
var ErrDuplicateKey = errors.New("duplicate key")

// wrapWriteErr maps driver unique index violations to ErrDuplicateKey.
func wrapWriteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", op, ErrDuplicateKey)
	}
	return fmt.Errorf("%s: %w", op, err)
}

type indexer interface {
	createIndexes(ctx context.Context) error
}

// EnsureIndexes creates the indexes every repository relies on.
// Unique indexes back the dedup guarantees so failures are fatal.
func EnsureIndexes(ctx context.Context, repos ...any) error {
	for _, r := range repos {
		ix, ok := r.(indexer)
		if !ok {
			continue
		}
		if err := ix.createIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}

func createIndexes(ctx context.Context, coll *mongo.Collection, indexes []mongo.IndexModel) error {
	if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create indexes on %s: %w", coll.Name(), err)
	}
	return nil
}

