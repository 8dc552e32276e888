package index

import (
	"github.com/mitchellh/cli"

	"github.com/repokit/testrepo/internal/cmd/base"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Manage the search index"
}

func (c *Command) Help() string {
	return `Usage: testrepo index <subcommand> [options] [args]

  This command groups subcommands for bulk indexing records through the
  index queue.`
}

func (c *Command) Run(args []string) int {
	return cli.RunResultHelp
}
