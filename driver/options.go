package driver

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Per-operation options are immutable values threaded through the call that
// creates a publisher. The publisher captures the value, so mutating a local
// options variable after the call can never affect an existing subscription.

type FindOptions struct {
	Sort       bson.D
	Projection bson.D
	Skip       int64
	Limit      int64
	BatchSize  int32
	MaxTime    time.Duration
}

func (o FindOptions) apply(defaultBatch int) *options.FindOptions {
	opts := options.Find()
	if o.Sort != nil {
		opts.SetSort(o.Sort)
	}
	if o.Projection != nil {
		opts.SetProjection(o.Projection)
	}
	if o.Skip > 0 {
		opts.SetSkip(o.Skip)
	}
	if o.Limit > 0 {
		opts.SetLimit(o.Limit)
	}
	opts.SetBatchSize(resolveBatchSize(o.BatchSize, defaultBatch))
	if o.MaxTime > 0 {
		opts.SetMaxTime(o.MaxTime)
	}
	return opts
}

type AggregateOptions struct {
	AllowDiskUse bool
	BatchSize    int32
	MaxTime      time.Duration
}

func (o AggregateOptions) apply(defaultBatch int) *options.AggregateOptions {
	opts := options.Aggregate()
	if o.AllowDiskUse {
		opts.SetAllowDiskUse(true)
	}
	opts.SetBatchSize(resolveBatchSize(o.BatchSize, defaultBatch))
	if o.MaxTime > 0 {
		opts.SetMaxTime(o.MaxTime)
	}
	return opts
}

type DistinctOptions struct {
	MaxTime time.Duration
}

func (o DistinctOptions) apply() *options.DistinctOptions {
	opts := options.Distinct()
	if o.MaxTime > 0 {
		opts.SetMaxTime(o.MaxTime)
	}
	return opts
}

type CountOptions struct {
	Skip    int64
	Limit   int64
	MaxTime time.Duration
}

func (o CountOptions) apply() *options.CountOptions {
	opts := options.Count()
	if o.Skip > 0 {
		opts.SetSkip(o.Skip)
	}
	if o.Limit > 0 {
		opts.SetLimit(o.Limit)
	}
	if o.MaxTime > 0 {
		opts.SetMaxTime(o.MaxTime)
	}
	return opts
}

type ChangeStreamOptions struct {
	// Ask the server to attach the full post-image to update events
	// instead of just the delta
	FullDocument bool
	BatchSize    int32
	MaxAwaitTime time.Duration
	ResumeAfter  bson.M
}

func (o ChangeStreamOptions) apply(defaultBatch int) *options.ChangeStreamOptions {
	opts := options.ChangeStream()
	if o.FullDocument {
		opts.SetFullDocument(options.UpdateLookup)
	}
	opts.SetBatchSize(resolveBatchSize(o.BatchSize, defaultBatch))
	if o.MaxAwaitTime > 0 {
		opts.SetMaxAwaitTime(o.MaxAwaitTime)
	}
	if o.ResumeAfter != nil {
		opts.SetResumeAfter(o.ResumeAfter)
	}
	return opts
}

type BulkWriteOptions struct {
	// Keep executing remaining write models after one fails; the server
	// default is ordered execution stopping at the first error
	Unordered bool
}

func (o BulkWriteOptions) apply() *options.BulkWriteOptions {
	opts := options.BulkWrite()
	if o.Unordered {
		opts.SetOrdered(false)
	}
	return opts
}

type UpdateOptions struct {
	Upsert bool
}

func (o UpdateOptions) apply() *options.UpdateOptions {
	opts := options.Update()
	if o.Upsert {
		opts.SetUpsert(true)
	}
	return opts
}

type IndexOptions struct {
	Name        string
	Unique      bool
	Sparse      bool
	ExpireAfter time.Duration
}

// IndexModel pairs index keys with their options.
type IndexModel struct {
	Keys    bson.D
	Options IndexOptions
}

func (m IndexModel) apply() mongo.IndexModel {
	opts := options.Index()
	if m.Options.Name != "" {
		opts.SetName(m.Options.Name)
	}
	if m.Options.Unique {
		opts.SetUnique(true)
	}
	if m.Options.Sparse {
		opts.SetSparse(true)
	}
	if m.Options.ExpireAfter > 0 {
		opts.SetExpireAfterSeconds(int32(m.Options.ExpireAfter / time.Second))
	}
	return mongo.IndexModel{Keys: m.Keys, Options: opts}
}

func resolveBatchSize(requested int32, fallback int) int32 {
	if requested > 0 {
		return requested
	}
	return int32(fallback)
}
