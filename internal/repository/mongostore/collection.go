// Package mongostore implements the repository contracts on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Lixing-Zhang/service-marketplace/internal/repository"
)

// Collection is a generic repository over one mongo collection.
type Collection[T any] struct {
	coll *mongo.Collection
}

// NewCollection wraps coll.
func NewCollection[T any](coll *mongo.Collection) *Collection[T] {
	return &Collection[T]{coll: coll}
}

func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	return c.findOne(ctx, bson.M{"_id": id})
}

func (c *Collection[T]) FindOne(ctx context.Context, filter repository.Filter) (*T, error) {
	docs, err := c.find(ctx, toBSON(filter), options.Find().SetSort(newestFirst).SetLimit(1))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, repository.ErrNotFound
	}
	return &docs[0], nil
}

func (c *Collection[T]) Find(ctx context.Context, filter repository.Filter) ([]T, error) {
	return c.find(ctx, toBSON(filter), options.Find().SetSort(newestFirst))
}

func (c *Collection[T]) Insert(ctx context.Context, doc *T) error {
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
		}
		return fmt.Errorf("insert into %s: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *Collection[T]) Replace(ctx context.Context, id string, doc *T) error {
	res, err := c.coll.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
		}
		return fmt.Errorf("replace in %s: %w", c.coll.Name(), err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (c *Collection[T]) Patch(ctx context.Context, id string, fields map[string]any) error {
	res, err := c.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M(fields)})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
		}
		return fmt.Errorf("patch in %s: %w", c.coll.Name(), err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	res, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete from %s: %w", c.coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// exists reports whether a document with id is present.
func (c *Collection[T]) exists(ctx context.Context, id string) (bool, error) {
	n, err := c.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count in %s: %w", c.coll.Name(), err)
	}
	return n > 0, nil
}

// conditionalUpdate applies update to the document matching id and cond.
// A miss is reported as ErrConditionFailed when the document exists and
// ErrNotFound when it does not.
func (c *Collection[T]) conditionalUpdate(ctx context.Context, id string, cond bson.M, update bson.M) error {
	filter := bson.M{"_id": id}
	for k, v := range cond {
		filter[k] = v
	}

	res, err := c.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
		}
		return fmt.Errorf("update in %s: %w", c.coll.Name(), err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	found, err := c.exists(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return repository.ErrNotFound
	}
	return repository.ErrConditionFailed
}

func (c *Collection[T]) findOne(ctx context.Context, filter bson.M) (*T, error) {
	var doc T
	err := c.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.coll.Name(), err)
	}
	return &doc, nil
}

func (c *Collection[T]) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]T, error) {
	cursor, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.coll.Name(), err)
	}
	defer cursor.Close(ctx)

	docs := make([]T, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.coll.Name(), err)
	}
	return docs, nil
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func toBSON(filter repository.Filter) bson.M {
	m := bson.M{}
	for k, v := range filter {
		m[k] = v
	}
	return m
}
