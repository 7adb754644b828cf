package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/datazip-inc/rxmongo/rx"
	"github.com/datazip-inc/rxmongo/utils"
	"github.com/datazip-inc/rxmongo/utils/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
)

const pingTimeout = 30 * time.Second

// Client is an explicit handle to a MongoDB deployment whose operations are
// exposed as demand-driven publishers. Configuration is carried by the handle
// itself; there is no process-global client state.
type Client struct {
	config *Config
	conn   *mongo.Client
}

// NewClient validates the config and connects, retrying with exponential
// backoff up to the configured retry count.
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %s", err)
	}

	opts := options.Client()
	opts.ApplyURI(config.URI())
	opts.SetCompressors([]string{"snappy"}) // using Snappy compression; read here https://en.wikipedia.org/wiki/Snappy_(compression)
	if config.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(uint64(config.MaxPoolSize))
	}

	client := &Client{config: config}
	err := utils.RetryOnBackoff(config.RetryCount, time.Second, func() error {
		conn, err := mongo.Connect(ctx, opts)
		if err != nil {
			return err
		}

		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := conn.Ping(pingCtx, opts.ReadPreference); err != nil {
			_ = conn.Disconnect(ctx)
			return fmt.Errorf("failed to ping: %s", err)
		}

		client.conn = conn
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("connected to %s", config.URI())
	return client, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.conn.Disconnect(ctx)
}

func (c *Client) Database(name string) *Database {
	db := c.conn.Database(name, options.Database().SetReadConcern(readconcern.Majority()))
	return &Database{config: c.config, db: db}
}

// DefaultDatabase returns a handle to the database named in the config.
func (c *Client) DefaultDatabase() *Database {
	return c.Database(c.config.Database)
}

// ListDatabaseNames streams the names of all databases visible to the
// authenticated user.
func (c *Client) ListDatabaseNames(ctx context.Context) rx.Publisher[string] {
	return rx.NewCursorPublisher(newSliceCursor(func() ([]string, error) {
		names, err := c.conn.ListDatabaseNames(ctx, bson.M{})
		if err != nil {
			return nil, fmt.Errorf("failed to list databases: %s", err)
		}
		return names, nil
	}))
}

// Database is a handle scoped to one database.
type Database struct {
	config *Config
	db     *mongo.Database
}

func (d *Database) Name() string {
	return d.db.Name()
}

func (d *Database) Collection(name string) *Collection {
	return &Collection{config: d.config, coll: d.db.Collection(name)}
}

// RunCommand runs an arbitrary database command and emits its reply document.
func (d *Database) RunCommand(ctx context.Context, command bson.D) rx.Publisher[bson.M] {
	return rx.NewSingleResultPublisher(runAsync(func() (bson.M, error) {
		var reply bson.M
		if err := d.db.RunCommand(ctx, command).Decode(&reply); err != nil {
			return nil, fmt.Errorf("failed to run command: %s", err)
		}
		return reply, nil
	}))
}

// Drop drops the database. The stream emits a single Ack then completes.
func (d *Database) Drop(ctx context.Context) rx.Publisher[rx.Ack] {
	return rx.NewSingleResultPublisher(runAck(func() error {
		return d.db.Drop(ctx)
	}))
}

// ListCollections streams collection description documents, one per
// collection, fetched batch-wise from the server.
func (d *Database) ListCollections(ctx context.Context, filter bson.M) rx.Publisher[bson.M] {
	if filter == nil {
		filter = bson.M{}
	}
	return rx.NewCursorPublisher(newBatchCursor[bson.M](ctx, func(ctx context.Context) (*mongo.Cursor, error) {
		return d.db.ListCollections(ctx, filter)
	}))
}
