package driver

import (
	"context"
	"fmt"

	"github.com/datazip-inc/rxmongo/rx"
	"github.com/datazip-inc/rxmongo/utils/logger"
	"github.com/datazip-inc/rxmongo/utils/safego"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// batchCursor adapts a *mongo.Cursor into the engine's asynchronous fetch
// capability. The query is opened lazily on the first fetch, so subscribing
// without ever requesting performs no server round-trip. Each FetchNext
// collects exactly one server batch; hasMore is derived from the server
// cursor id.
//
// The engine serializes FetchNext/Close calls (single fetch in flight, close
// only after the last fetch settled), so no locking is needed here.
type batchCursor[T any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	open   func(ctx context.Context) (*mongo.Cursor, error)
	cursor *mongo.Cursor
}

// newBatchCursor returns a factory producing one lazy cursor per
// subscription; open re-runs the query from scratch each time.
func newBatchCursor[T any](ctx context.Context, open func(ctx context.Context) (*mongo.Cursor, error)) rx.CursorFactory[T] {
	return func() (rx.AsyncBatchCursor[T], error) {
		cursorCtx, cancel := context.WithCancel(ctx)
		return &batchCursor[T]{ctx: cursorCtx, cancel: cancel, open: open}, nil
	}
}

func (b *batchCursor[T]) FetchNext(callback func(batch []T, hasMore bool, err error)) {
	safego.Run(func() {
		if b.cursor == nil {
			cursor, err := b.open(b.ctx)
			if err != nil {
				callback(nil, false, fmt.Errorf("failed to create cursor: %s", err))
				return
			}
			b.cursor = cursor
		}

		var batch []T
		for b.cursor.Next(b.ctx) {
			var doc T
			if err := b.cursor.Decode(&doc); err != nil {
				callback(nil, false, fmt.Errorf("failed to decode document: %s", err))
				return
			}
			batch = append(batch, doc)
			if b.cursor.RemainingBatchLength() == 0 {
				// stop at the server batch boundary instead of
				// forcing the next getMore
				break
			}
		}
		if err := b.cursor.Err(); err != nil {
			callback(nil, false, err)
			return
		}

		callback(batch, b.cursor.ID() != 0, nil)
	})
}

func (b *batchCursor[T]) Close() {
	safego.Run(func() {
		b.cancel()
		if b.cursor != nil {
			if err := b.cursor.Close(context.Background()); err != nil {
				logger.Warnf("failed to close cursor: %s", err)
			}
		}
	})
}

// changeStreamCursor adapts a *mongo.ChangeStream into the engine's fetch
// capability. Unlike a query cursor a change stream never exhausts on its
// own: each FetchNext blocks until at least one event arrives, then returns
// the rest of the current server batch without waiting for more. The stream
// completes only if the server invalidates the cursor.
type changeStreamCursor struct {
	ctx    context.Context
	cancel context.CancelFunc
	open   func(ctx context.Context) (*mongo.ChangeStream, error)
	stream *mongo.ChangeStream
}

func newChangeStreamCursor(ctx context.Context, open func(ctx context.Context) (*mongo.ChangeStream, error)) rx.CursorFactory[bson.M] {
	return func() (rx.AsyncBatchCursor[bson.M], error) {
		streamCtx, cancel := context.WithCancel(ctx)
		return &changeStreamCursor{ctx: streamCtx, cancel: cancel, open: open}, nil
	}
}

func (c *changeStreamCursor) FetchNext(callback func(batch []bson.M, hasMore bool, err error)) {
	safego.Run(func() {
		if c.stream == nil {
			stream, err := c.open(c.ctx)
			if err != nil {
				callback(nil, false, fmt.Errorf("failed to open change stream: %s", err))
				return
			}
			c.stream = stream
		}

		var batch []bson.M
		for c.stream.Next(c.ctx) {
			var event bson.M
			if err := c.stream.Decode(&event); err != nil {
				callback(nil, false, fmt.Errorf("error while decoding: %s", err))
				return
			}
			batch = append(batch, event)
			if c.stream.RemainingBatchLength() == 0 {
				break
			}
		}
		if err := c.stream.Err(); err != nil {
			callback(nil, false, err)
			return
		}

		callback(batch, c.stream.ID() != 0, nil)
	})
}

func (c *changeStreamCursor) Close() {
	safego.Run(func() {
		c.cancel()
		if c.stream != nil {
			if err := c.stream.Close(context.Background()); err != nil {
				logger.Warnf("failed to close change stream: %s", err)
			}
		}
	})
}

// sliceCursor exposes an operation producing one finite result set as a
// single-batch cursor, keeping list-style operations demand-bounded.
type sliceCursor[T any] struct {
	fetch func() ([]T, error)
}

func newSliceCursor[T any](fetch func() ([]T, error)) rx.CursorFactory[T] {
	return func() (rx.AsyncBatchCursor[T], error) {
		return &sliceCursor[T]{fetch: fetch}, nil
	}
}

func (c *sliceCursor[T]) FetchNext(callback func(batch []T, hasMore bool, err error)) {
	safego.Run(func() {
		items, err := c.fetch()
		callback(items, false, err)
	})
}

func (c *sliceCursor[T]) Close() {}

// runAsync lifts a synchronous driver call into the engine's one-shot
// callback contract, running it off the caller goroutine.
func runAsync[T any](op func() (T, error)) rx.AsyncOperation[T] {
	return func(callback func(value T, ok bool, err error)) {
		safego.Run(func() {
			value, err := op()
			if err != nil {
				var zero T
				callback(zero, false, err)
				return
			}
			callback(value, true, nil)
		})
	}
}

// runAck lifts a void driver call into the callback contract, mapping bare
// success onto a single Ack item.
func runAck(op func() error) rx.AsyncOperation[rx.Ack] {
	return func(callback func(value rx.Ack, ok bool, err error)) {
		safego.Run(func() {
			if err := op(); err != nil {
				callback(rx.Ack{}, false, err)
				return
			}
			callback(rx.Ack{}, true, nil)
		})
	}
}
