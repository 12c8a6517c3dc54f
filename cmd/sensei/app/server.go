// Package app provides the sensei server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kart-io/sensei/cmd/sensei/app/options"
	sensei "github.com/kart-io/sensei/internal/sensei"
	"github.com/kart-io/sensei/pkg/infra/app"
)

// commandDesc is the description of the command.
const commandDesc = `Sensei

A question answering service for security topics.

Every prompt is classified into a category that selects the answering
persona. Human corrections are stored and always win over the model, so
the router learns from feedback. Answers are grounded on an in-process
knowledge index and served over HTTP on TCP or a Unix socket.`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(sensei.Name),
		app.WithShortDescription("Query router and knowledge-grounded answer service"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
		app.WithArgs(cobra.NoArgs),
		app.WithSilence(),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
