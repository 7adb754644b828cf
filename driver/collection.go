// Package driver exposes MongoDB collections, databases and their operations
// as demand-driven rx publishers. Cursor-backed reads (Find, Aggregate,
// ListIndexes, ...) stream documents one server batch at a time; one-shot
// operations (counts, writes, drops) emit a single result then complete.
// Every Subscribe re-runs the captured operation against the server from
// scratch with its own cursor.
package driver

import (
	"context"
	"fmt"

	"github.com/datazip-inc/rxmongo/rx"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Collection is a handle scoped to one collection. It is cheap to copy and
// carries no mutable state shared across subscriptions.
type Collection struct {
	config *Config
	coll   *mongo.Collection
}

func (c *Collection) Name() string {
	return c.coll.Name()
}

// Find streams documents matching filter, in server order, one batch per
// round-trip.
func (c *Collection) Find(ctx context.Context, filter bson.M, opts FindOptions) rx.Publisher[bson.M] {
	if filter == nil {
		filter = bson.M{}
	}
	batch := c.config.BatchSize
	return rx.NewCursorPublisher(newBatchCursor[bson.M](ctx, func(ctx context.Context) (*mongo.Cursor, error) {
		return c.coll.Find(ctx, filter, opts.apply(batch))
	}))
}

// Aggregate streams the results of an aggregation pipeline.
func (c *Collection) Aggregate(ctx context.Context, pipeline mongo.Pipeline, opts AggregateOptions) rx.Publisher[bson.M] {
	batch := c.config.BatchSize
	return rx.NewCursorPublisher(newBatchCursor[bson.M](ctx, func(ctx context.Context) (*mongo.Cursor, error) {
		return c.coll.Aggregate(ctx, pipeline, opts.apply(batch))
	}))
}

// Distinct streams the distinct values of a field among documents matching
// filter.
func (c *Collection) Distinct(ctx context.Context, field string, filter bson.M, opts DistinctOptions) rx.Publisher[interface{}] {
	if filter == nil {
		filter = bson.M{}
	}
	return rx.NewCursorPublisher(newSliceCursor(func() ([]interface{}, error) {
		values, err := c.coll.Distinct(ctx, field, filter, opts.apply())
		if err != nil {
			return nil, fmt.Errorf("failed to read distinct values: %s", err)
		}
		return values, nil
	}))
}

// Watch streams change events for the collection. Events are delivered in
// server order under the same demand rules as query reads; the stream keeps
// running until cancelled, failed, or invalidated by the server.
func (c *Collection) Watch(ctx context.Context, pipeline mongo.Pipeline, opts ChangeStreamOptions) rx.Publisher[bson.M] {
	if pipeline == nil {
		pipeline = mongo.Pipeline{}
	}
	batch := c.config.BatchSize
	return rx.NewCursorPublisher(newChangeStreamCursor(ctx, func(ctx context.Context) (*mongo.ChangeStream, error) {
		return c.coll.Watch(ctx, pipeline, opts.apply(batch))
	}))
}

// ListIndexes streams the index description documents of the collection.
func (c *Collection) ListIndexes(ctx context.Context) rx.Publisher[bson.M] {
	return rx.NewCursorPublisher(newBatchCursor[bson.M](ctx, func(ctx context.Context) (*mongo.Cursor, error) {
		return c.coll.Indexes().List(ctx)
	}))
}

// CountDocuments emits the number of documents matching filter.
func (c *Collection) CountDocuments(ctx context.Context, filter bson.M, opts CountOptions) rx.Publisher[int64] {
	if filter == nil {
		filter = bson.M{}
	}
	return rx.NewSingleResultPublisher(runAsync(func() (int64, error) {
		return c.coll.CountDocuments(ctx, filter, opts.apply())
	}))
}

// EstimatedDocumentCount emits the collection's document count from
// collection metadata, without scanning.
func (c *Collection) EstimatedDocumentCount(ctx context.Context) rx.Publisher[int64] {
	return rx.NewSingleResultPublisher(runAsync(func() (int64, error) {
		return c.coll.EstimatedDocumentCount(ctx)
	}))
}

// InsertOne emits the insert result for a single document.
func (c *Collection) InsertOne(ctx context.Context, document bson.M) rx.Publisher[*mongo.InsertOneResult] {
	return rx.NewSingleResultPublisher(runAsync(func() (*mongo.InsertOneResult, error) {
		return c.coll.InsertOne(ctx, document)
	}))
}

// InsertMany emits the insert result for a batch of documents.
func (c *Collection) InsertMany(ctx context.Context, documents []interface{}) rx.Publisher[*mongo.InsertManyResult] {
	return rx.NewSingleResultPublisher(runAsync(func() (*mongo.InsertManyResult, error) {
		return c.coll.InsertMany(ctx, documents)
	}))
}

// BulkWrite emits the combined result of executing the given write models as
// one batch.
func (c *Collection) BulkWrite(ctx context.Context, models []mongo.WriteModel, opts BulkWriteOptions) rx.Publisher[*mongo.BulkWriteResult] {
	return rx.NewSingleResultPublisher(runAsync(func() (*mongo.BulkWriteResult, error) {
		return c.coll.BulkWrite(ctx, models, opts.apply())
	}))
}

// UpdateOne emits the update result for the first document matching filter.
func (c *Collection) UpdateOne(ctx context.Context, filter bson.M, update bson.M, opts UpdateOptions) rx.Publisher[*mongo.UpdateResult] {
	return rx.NewSingleResultPublisher(runAsync(func() (*mongo.UpdateResult, error) {
		return c.coll.UpdateOne(ctx, filter, update, opts.apply())
	}))
}

// UpdateMany emits the update result for all documents matching filter.
func (c *Collection) UpdateMany(ctx context.Context, filter bson.M, update bson.M, opts UpdateOptions) rx.Publisher[*mongo.UpdateResult] {
	return rx.NewSingleResultPublisher(runAsync(func() (*mongo.UpdateResult, error) {
		return c.coll.UpdateMany(ctx, filter, update, opts.apply())
	}))
}

// ReplaceOne emits the update result of replacing the first document
// matching filter.
func (c *Collection) ReplaceOne(ctx context.Context, filter bson.M, replacement bson.M) rx.Publisher[*mongo.UpdateResult] {
	return rx.NewSingleResultPublisher(runAsync(func() (*mongo.UpdateResult, error) {
		return c.coll.ReplaceOne(ctx, filter, replacement)
	}))
}

// DeleteOne emits the delete result for the first document matching filter.
func (c *Collection) DeleteOne(ctx context.Context, filter bson.M) rx.Publisher[*mongo.DeleteResult] {
	return rx.NewSingleResultPublisher(runAsync(func() (*mongo.DeleteResult, error) {
		return c.coll.DeleteOne(ctx, filter)
	}))
}

// DeleteMany emits the delete result for all documents matching filter.
func (c *Collection) DeleteMany(ctx context.Context, filter bson.M) rx.Publisher[*mongo.DeleteResult] {
	return rx.NewSingleResultPublisher(runAsync(func() (*mongo.DeleteResult, error) {
		return c.coll.DeleteMany(ctx, filter)
	}))
}

// CreateIndex emits the name of the created index.
func (c *Collection) CreateIndex(ctx context.Context, model IndexModel) rx.Publisher[string] {
	return rx.NewSingleResultPublisher(runAsync(func() (string, error) {
		name, err := c.coll.Indexes().CreateOne(ctx, model.apply())
		if err != nil {
			return "", fmt.Errorf("failed to create index: %s", err)
		}
		return name, nil
	}))
}

// DropIndex drops the named index; the stream emits a single Ack then
// completes.
func (c *Collection) DropIndex(ctx context.Context, name string) rx.Publisher[rx.Ack] {
	return rx.NewSingleResultPublisher(runAck(func() error {
		_, err := c.coll.Indexes().DropOne(ctx, name)
		return err
	}))
}

// Drop drops the collection; the stream emits a single Ack then completes.
func (c *Collection) Drop(ctx context.Context) rx.Publisher[rx.Ack] {
	return rx.NewSingleResultPublisher(runAck(func() error {
		return c.coll.Drop(ctx)
	}))
}
