package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/repokit/testrepo/internal/cmd/base"
	"github.com/repokit/testrepo/internal/cmd/commands/index"
	"github.com/repokit/testrepo/internal/cmd/commands/records"
	"github.com/repokit/testrepo/internal/cmd/commands/server"
	"github.com/repokit/testrepo/internal/cmd/commands/version"
)

// Commands is the mapping of all available commands.
var Commands map[string]cli.CommandFactory

func initCommands(log hclog.Logger, ui cli.Ui) {
	b := &base.Command{
		Log: log,
		UI:  ui,
	}

	Commands = map[string]cli.CommandFactory{
		"index": func() (cli.Command, error) {
			return &index.Command{Command: b}, nil
		},
		"index reindex": func() (cli.Command, error) {
			return &index.ReindexCommand{Command: b}, nil
		},
		"index run": func() (cli.Command, error) {
			return &index.RunCommand{Command: b}, nil
		},
		"records": func() (cli.Command, error) {
			return &records.Command{Command: b}, nil
		},
		"server": func() (cli.Command, error) {
			return &server.Command{Command: b}, nil
		},
		"version": func() (cli.Command, error) {
			return &version.Command{Command: b}, nil
		},
	}
}
