package index

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/repokit/testrepo/internal/cmd/base"
	"github.com/repokit/testrepo/internal/config"
	"github.com/repokit/testrepo/internal/db"
	"github.com/repokit/testrepo/pkg/indexer/queue"
	"github.com/repokit/testrepo/pkg/kafka"
	"github.com/repokit/testrepo/pkg/models"
)

type ReindexCommand struct {
	*base.Command

	flagConfig  string
	flagDryRun  bool
	flagTimeout time.Duration
}

func (c *ReindexCommand) Synopsis() string {
	return "Queue every record for indexing"
}

func (c *ReindexCommand) Help() string {
	return `Usage: testrepo index reindex -config=config.hcl

  Publishes an index request for every record that is not deleted. The
  requests are processed by "testrepo index run".` + c.Flags().Help()
}

func (c *ReindexCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("reindex", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "", "(Required) Path to the testrepo config file",
	)
	f.BoolVar(
		&c.flagDryRun, "dry-run", false,
		"Only print how many records would be queued.",
	)
	f.DurationVar(
		&c.flagTimeout, "timeout", 5*time.Minute,
		"Maximum time to wait for the queue to accept the requests.",
	)

	return f
}

func (c *ReindexCommand) Run(args []string) int {
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

	database, err := db.NewDB(*cfg.Database, logger)
	if err != nil {
		ui.Error(fmt.Sprintf("error initializing database: %v", err))
		return 1
	}
	if sqlDB, err := database.DB(); err == nil {
		defer sqlDB.Close()
	}

	var recs models.Records
	ids, err := recs.FindAllIDs(database)
	if err != nil {
		ui.Error(fmt.Sprintf("error listing records: %v", err))
		return 1
	}

	if c.flagDryRun {
		ui.Info(fmt.Sprintf("Would queue %d record(s) for indexing", len(ids)))
		return 0
	}

	producer, err := queue.NewProducer(queue.ProducerConfig{
		Brokers: kafka.GetBrokers(cfg),
		Topic:   kafka.GetIndexTopic(cfg),
		Logger:  logger,
	})
	if err != nil {
		ui.Error(fmt.Sprintf("error creating index queue producer: %v", err))
		return 1
	}
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), c.flagTimeout)
	defer cancel()

	if err := producer.BulkIndex(ctx, ids); err != nil {
		ui.Error(fmt.Sprintf("error queueing records: %v", err))
		return 1
	}

	ui.Info(fmt.Sprintf("Queued %d record(s) for indexing", len(ids)))
	return 0
}
