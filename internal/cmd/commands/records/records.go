package records

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/repokit/testrepo/internal/cmd/base"
	"github.com/repokit/testrepo/internal/config"
	"github.com/repokit/testrepo/pkg/client"
	"github.com/repokit/testrepo/pkg/seed"
)

// Collection is the collection demo records are posted to.
const Collection = "records"

type Command struct {
	*base.Command

	flagConfig        string
	flagCount         int
	flagMinWords      int
	flagMaxWords      int
	flagSeed          int64
	flagURL           string
	flagTLSSkipVerify bool
}

func (c *Command) Synopsis() string {
	return "Create demo records through the REST API"
}

func (c *Command) Help() string {
	return `Usage: testrepo records [options]

  Generates fake records and posts them one at a time to
  https://<server_name>/api/records/, where server_name is read from the
  config file. The command stops at the first record that is not created.` +
		c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("records", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "",
		"Path to the testrepo config file. Required unless -url is set.",
	)
	f.IntVar(
		&c.flagCount, "count", 20,
		"Number of records to create.",
	)
	f.IntVar(
		&c.flagMinWords, "min-words", 5,
		"Minimum number of words in a title.",
	)
	f.IntVar(
		&c.flagMaxWords, "max-words", 10,
		"Maximum number of words in a title.",
	)
	f.Int64Var(
		&c.flagSeed, "seed", 0,
		"Seed of the fake data generator. 0 picks a random seed.",
	)
	f.StringVar(
		&c.flagURL, "url", "",
		"API root to post to. Overrides https://<server_name>/api/.",
	)
	f.BoolVar(
		&c.flagTLSSkipVerify, "tls-skip-verify", true,
		"Skip TLS certificate verification.",
	)

	return f
}

func (c *Command) Run(args []string) int {
	logger, ui := c.Log, c.UI

	flags := c.Flags()
	if err := flags.Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	if c.flagCount < 0 {
		ui.Error("count must not be negative")
		return 1
	}
	if c.flagMinWords < 1 || c.flagMaxWords < c.flagMinWords {
		ui.Error("min-words must be at least 1 and not greater than max-words")
		return 1
	}

	baseURL := c.flagURL
	if baseURL == "" {
		if c.flagConfig == "" {
			ui.Error("config flag is required when -url is not set")
			return 1
		}
		cfg, err := config.NewConfig(c.flagConfig)
		if err != nil {
			ui.Error(fmt.Sprintf("error parsing config file: %v", err))
			return 1
		}
		baseURL = fmt.Sprintf("https://%s/api/", cfg.ServerName)
	}

	apiClient, err := client.New(client.Config{
		BaseURL:       baseURL,
		TLSSkipVerify: c.flagTLSSkipVerify,
		Logger:        logger,
	})
	if err != nil {
		ui.Error(fmt.Sprintf("error creating API client: %v", err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recs := seed.NewGenerator(c.flagSeed).Batch(c.flagCount, c.flagMinWords, c.flagMaxWords)
	seeder := &seed.Seeder{
		Client:     apiClient,
		Collection: Collection,
		Logger:     logger,
		OnCreated: func(idx int, rec *client.Record) {
			ui.Output(fmt.Sprintf("created record %d/%d: %s", idx+1, len(recs), rec.ID))
		},
	}

	created, err := seeder.Run(ctx, recs)
	if err != nil {
		var serr *seed.Error
		if errors.As(err, &serr) {
			ui.Error(fmt.Sprintf("error creating record %d of %d: %v",
				serr.Index+1, len(recs), serr.Err))
		} else {
			ui.Error(fmt.Sprintf("error creating records: %v", err))
		}
		ui.Warn(fmt.Sprintf("%d record(s) were created before the failure", created))
		return 1
	}

	ui.Info(fmt.Sprintf("Created %d record(s) at %s", created, apiClient.CollectionURL(Collection)))
	return 0
}
