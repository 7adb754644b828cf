package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/datazip-inc/rxmongo/driver"
	"github.com/datazip-inc/rxmongo/rx"
	"github.com/datazip-inc/rxmongo/utils"
	"github.com/datazip-inc/rxmongo/utils/logger"
	"github.com/datazip-inc/rxmongo/utils/safego"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	configPath string
	collection string
	filterJSON string
	logDir     string
	limit      int64
	batchSize  int32
	timeout    int64 // seconds

	config *driver.Config
)

var rootCmd = &cobra.Command{
	Use:   "rxmongo",
	Short: "stream MongoDB query results with demand-driven backpressure",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.Init()
		if logDir != "" {
			logger.FileLogger(logDir, "rxmongo")
		}
		viper.SetDefault("timeout", int64(300))
		if err := viper.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
			return err
		}
		if collection == "" {
			return fmt.Errorf("--collection is required")
		}

		config = &driver.Config{}
		return utils.UnmarshalFile(configPath, config, true)
	},
}

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "stream matching documents as NDJSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, client *driver.Client) error {
			filter := bson.M{}
			if filterJSON != "" {
				if err := bson.UnmarshalExtJSON([]byte(filterJSON), false, &filter); err != nil {
					return fmt.Errorf("failed to parse filter: %s", err)
				}
			}

			coll := client.DefaultDatabase().Collection(collection)
			publisher := coll.Find(ctx, filter, driver.FindOptions{Limit: limit, BatchSize: batchSize})

			encoder := json.NewEncoder(os.Stdout)
			done := make(chan error, 1)
			count := 0
			publisher.Subscribe(&rx.SubscriberFuncs[bson.M]{
				Next: func(doc bson.M) {
					count++
					if err := encoder.Encode(doc); err != nil {
						logger.Errorf("failed to encode document: %s", err)
					}
				},
				Err:       func(err error) { done <- err },
				Completed: func() { done <- nil },
			})

			err := <-done
			logger.Infof("streamed %d documents from %s", count, collection)
			return err
		})
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "count matching documents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, client *driver.Client) error {
			filter := bson.M{}
			if filterJSON != "" {
				if err := bson.UnmarshalExtJSON([]byte(filterJSON), false, &filter); err != nil {
					return fmt.Errorf("failed to parse filter: %s", err)
				}
			}

			coll := client.DefaultDatabase().Collection(collection)
			var count int64
			if err := await(coll.CountDocuments(ctx, filter, driver.CountOptions{}), &count); err != nil {
				return err
			}

			fmt.Println(count)
			return nil
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "stream change events as NDJSON until the timeout elapses",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, client *driver.Client) error {
			coll := client.DefaultDatabase().Collection(collection)
			publisher := coll.Watch(ctx, nil, driver.ChangeStreamOptions{FullDocument: true, BatchSize: batchSize})

			encoder := json.NewEncoder(os.Stdout)
			done := make(chan error, 1)
			publisher.Subscribe(&rx.SubscriberFuncs[bson.M]{
				Next: func(event bson.M) {
					if err := encoder.Encode(event); err != nil {
						logger.Errorf("failed to encode change event: %s", err)
					}
				},
				Err:       func(err error) { done <- err },
				Completed: func() { done <- nil },
			})

			return <-done
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "print matched and estimated document counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, client *driver.Client) error {
			filter := bson.M{}
			if filterJSON != "" {
				if err := bson.UnmarshalExtJSON([]byte(filterJSON), false, &filter); err != nil {
					return fmt.Errorf("failed to parse filter: %s", err)
				}
			}

			coll := client.DefaultDatabase().Collection(collection)
			var matched, estimated int64
			err := utils.ErrExec(
				func() error { return await(coll.CountDocuments(ctx, filter, driver.CountOptions{}), &matched) },
				func() error { return await(coll.EstimatedDocumentCount(ctx), &estimated) },
			)
			if err != nil {
				return err
			}

			return json.NewEncoder(os.Stdout).Encode(bson.M{"matched": matched, "estimated": estimated})
		})
	},
}

// await subscribes with unbounded demand and blocks until the stream
// terminates, leaving the last emitted value in out.
func await[T any](p rx.Publisher[T], out *T) error {
	done := make(chan error, 1)
	p.Subscribe(&rx.SubscriberFuncs[T]{
		Next:      func(v T) { *out = v },
		Err:       func(err error) { done <- err },
		Completed: func() { done <- nil },
	})
	return <-done
}

func withClient(ctx context.Context, fn func(context.Context, *driver.Client) error) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(viper.GetInt64("timeout"))*time.Second)
	defer cancel()

	client, err := driver.NewClient(ctx, config)
	if err != nil {
		return err
	}

	return utils.ErrExecSequential(
		utils.ErrExecFormat("streaming failed: %s", func() error { return fn(ctx, client) }),
		utils.ErrExecFormat("failed to close client: %s", func() error { return client.Close(context.Background()) }),
	)
}

func main() {
	defer safego.Recovery(true)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "path to the connection config file")
	rootCmd.PersistentFlags().StringVar(&collection, "collection", "", "collection to operate on")
	rootCmd.PersistentFlags().StringVar(&filterJSON, "filter", "", "extended-JSON filter document")
	rootCmd.PersistentFlags().Int64Var(&timeout, "timeout", 300, "operation timeout in seconds")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "folder to mirror logs into")
	findCmd.Flags().Int64Var(&limit, "limit", 0, "maximum number of documents to stream")
	findCmd.Flags().Int32Var(&batchSize, "batch-size", 0, "server batch size hint")
	watchCmd.Flags().Int32Var(&batchSize, "batch-size", 0, "server batch size hint")
	rootCmd.AddCommand(findCmd, countCmd, statsCmd, watchCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Fatalf("command failed: %s", err)
	}
}
