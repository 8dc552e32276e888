package index

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"

	"github.com/repokit/testrepo/internal/cmd/base"
	"github.com/repokit/testrepo/internal/config"
	"github.com/repokit/testrepo/internal/db"
	"github.com/repokit/testrepo/pkg/indexer"
	"github.com/repokit/testrepo/pkg/indexer/queue"
	"github.com/repokit/testrepo/pkg/kafka"
	"github.com/repokit/testrepo/pkg/records"
	"github.com/repokit/testrepo/pkg/search/adapters/bleve"
)

type RunCommand struct {
	*base.Command

	flagConfig    string
	flagFromStart bool
}

func (c *RunCommand) Synopsis() string {
	return "Process the index queue"
}

func (c *RunCommand) Help() string {
	return `Usage: testrepo index run -config=config.hcl

  Consumes index requests queued by "testrepo index reindex" and writes the
  records to the search index until interrupted. The search index must not be
  open by a running server.` + c.Flags().Help()
}

func (c *RunCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("run", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "", "(Required) Path to the testrepo config file",
	)
	f.BoolVar(
		&c.flagFromStart, "from-start", true,
		"Start a new consumer group at the oldest queued request.",
	)

	return f
}

func (c *RunCommand) Run(args []string) int {
	logger, ui := c.Log, c.UI

	flags := c.Flags()
	if err := flags.Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	if c.flagConfig == "" {
		ui.Error("config flag is required")
		return 1
	}
	cfg, err := config.NewConfig(c.flagConfig)
	if err != nil {
		ui.Error(fmt.Sprintf("error parsing config file: %v", err))
		return 1
	}
	logger.SetLevel(hclog.LevelFromString(cfg.LogLevel))

	database, err := db.NewDB(*cfg.Database, logger)
	if err != nil {
		ui.Error(fmt.Sprintf("error initializing database: %v", err))
		return 1
	}
	if sqlDB, err := database.DB(); err == nil {
		defer sqlDB.Close()
	}

	provider, err := bleve.NewAdapter(&bleve.Config{
		IndexPath:       cfg.Search.IndexPath,
		RefreshInterval: cfg.Search.RefreshIntervalDuration(),
		Logger:          logger,
	})
	if err != nil {
		ui.Error(fmt.Sprintf("error initializing search provider: %v", err))
		return 1
	}
	defer func() {
		if err := provider.Close(); err != nil {
			logger.Error("error closing search provider", "error", err)
		}
	}()

	recordIndexer, err := indexer.NewRecordIndexer(provider,
		records.RESTEndpoints[records.EndpointKey].PIDFetcher, logger)
	if err != nil {
		ui.Error(fmt.Sprintf("error creating indexer: %v", err))
		return 1
	}

	consumer, err := queue.NewConsumer(queue.ConsumerConfig{
		Brokers:          kafka.GetBrokers(cfg),
		Topic:            kafka.GetIndexTopic(cfg),
		ConsumerGroup:    kafka.GetConsumerGroup(cfg),
		ConsumeFromStart: c.flagFromStart,
		Processor:        queue.NewProcessor(database, recordIndexer, cfg.Indexer.Retries(), logger),
		Logger:           logger,
	})
	if err != nil {
		ui.Error(fmt.Sprintf("error creating index queue consumer: %v", err))
		return 1
	}
	defer consumer.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.Info(fmt.Sprintf("Processing index requests from topic %q", kafka.GetIndexTopic(cfg)))
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		ui.Error(fmt.Sprintf("error processing index queue: %v", err))
		return 1
	}

	ui.Info("Index queue consumer stopped")
	return 0
}
