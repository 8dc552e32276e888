package server

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/repokit/testrepo/internal/api"
	"github.com/repokit/testrepo/internal/cmd/base"
	"github.com/repokit/testrepo/internal/config"
	"github.com/repokit/testrepo/internal/server"
)

type Command struct {
	*base.Command

	flagConfig string
	flagAddr   string
}

func (c *Command) Synopsis() string {
	return "Run the server"
}

func (c *Command) Help() string {
	return `Usage: testrepo server -config=config.hcl

  Runs the records REST API. The server serves HTTPS when tls_cert_file and
  tls_key_file are set in the server block.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("server", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "", "(Required) Path to the testrepo config file",
	)
	f.StringVar(
		&c.flagAddr, "addr", "",
		"Listen address. Overrides the server block of the config file.",
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

	if c.flagConfig == "" {
		ui.Error("config flag is required")
		return 1
	}
	cfg, err := config.NewConfig(c.flagConfig)
	if err != nil {
		ui.Error(fmt.Sprintf("error parsing config file: %v", err))
		return 1
	}
	if c.flagAddr != "" {
		cfg.Server.Addr = c.flagAddr
	}
	logger.SetLevel(hclog.LevelFromString(cfg.LogLevel))

	srv, err := server.New(cfg, logger)
	if err != nil {
		ui.Error(err.Error())
		return 1
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error("error closing server resources", "error", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewHandler(*srv),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.Server.TLSEnabled() {
			ui.Info(fmt.Sprintf("Listening on https://%s", cfg.Server.Addr))
			err = httpServer.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			ui.Info(fmt.Sprintf("Listening on http://%s", cfg.Server.Addr))
			err = httpServer.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			ui.Error(fmt.Sprintf("error starting listener: %v", err))
			return 1
		}
		return 0
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutDuration())
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		ui.Error(fmt.Sprintf("error shutting down server: %v", err))
		return 1
	}

	return 0
}
