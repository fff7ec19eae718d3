package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/turtacn/DexAtlas/internal/application/pipeline"
	"github.com/turtacn/DexAtlas/internal/infrastructure/database/postgres"
	"github.com/turtacn/DexAtlas/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/DexAtlas/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/internal/infrastructure/storage/minio"
)

func newPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Upload the release to MinIO and announce it on Kafka",
		Long: "Publish uploads the published artifacts and checksums.json under\n" +
			"<prefix>/<run_id>/ when minio.enabled is set, and emits a\n" +
			"dataset.released event when kafka.enabled is set.  A blocked gate\n" +
			"or stale checksums refuse the publish.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd, func(ctx context.Context, cc *CLIContext, p *pipeline.Pipeline) (*Result, error) {
				var (
					store    pipeline.ReleaseStore
					notifier pipeline.ReleaseNotifier
				)
				if cc.Config.MinIO.Enabled {
					client, err := minio.NewMinIOClient(ctx, cc.Config.MinIO, cc.Logger)
					if err != nil {
						return nil, err
					}
					store = minio.NewReleaseRepository(client, cc.Logger)
				}
				if cc.Config.Kafka.Enabled {
					if cc.Config.Kafka.CreateTopic {
						if err := ensureReleaseTopic(ctx, cc); err != nil {
							return nil, err
						}
					}
					producer, err := kafka.NewProducer(cc.Config.Kafka, cc.Logger)
					if err != nil {
						return nil, err
					}
					defer func() {
						if err := producer.Close(); err != nil {
							cc.Logger.Warn("kafka producer close failed", logging.Err(err))
						}
					}()
					notifier = producer
				}

				res, err := p.Publish(ctx, store, notifier)
				if err != nil {
					return nil, err
				}
				out := NewResult(res).Add("run_id", res.RunID)
				if res.Upload != nil {
					out.Add("bucket", res.Upload.Bucket).
						Add("prefix", res.Upload.Prefix).
						Add("objects", len(res.Upload.Objects))
				}
				if res.Event != nil {
					out.Add("event_id", res.Event.EventID).Add("event_type", res.Event.EventType)
				}
				return out, nil
			})
		},
	}
}

func newExportCmd() *cobra.Command {
	var (
		skipMigrations bool
		rollback       int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Upsert the curated dataset into PostgreSQL",
		Long: "Export applies the embedded schema migrations and upserts the\n" +
			"curated records and the run header.  Re-exporting a run replaces\n" +
			"its rows.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd, func(ctx context.Context, cc *CLIContext, p *pipeline.Pipeline) (*Result, error) {
				dsn := postgres.BuildDSN(cc.Config.Database)
				if rollback > 0 {
					if err := postgres.RollbackMigration(dsn, rollback); err != nil {
						return nil, err
					}
					return NewResult(map[string]int{"rolled_back": rollback}).Add("rolled_back", rollback), nil
				}
				if !skipMigrations {
					if _, err := postgres.RunMigrations(dsn, cc.Logger); err != nil {
						return nil, err
					}
				}
				pool, err := postgres.NewConnectionPool(ctx, cc.Config.Database, cc.Logger)
				if err != nil {
					return nil, err
				}
				defer pool.Close()

				n, err := p.Export(ctx, repositories.NewTrialRepository(pool, cc.Logger))
				if err != nil {
					return nil, err
				}
				return NewResult(map[string]int{"exported": n}).
					Add("database", cc.Config.Database.DBName).
					Add("exported", n), nil
			})
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply schema migrations before exporting")
	cmd.Flags().IntVar(&rollback, "rollback", 0, "roll back N migrations instead of exporting")
	return cmd
}

// ensureReleaseTopic creates the release topic when it does not exist yet.
func ensureReleaseTopic(ctx context.Context, cc *CLIContext) error {
	tm, err := kafka.NewTopicManager(cc.Config.Kafka.Brokers, cc.Logger)
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.CreateTopic(ctx, kafka.ReleaseTopic(cc.Config.Kafka.Topic))
}

//Personal.AI order the ending
