// Package main is the entry point for splitup.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.trai.ch/splitup/cmd/splitup/commands"
	"go.trai.ch/splitup/internal/adapters/config"
	"go.trai.ch/splitup/internal/adapters/events"
	"go.trai.ch/splitup/internal/adapters/logger"
	"go.trai.ch/splitup/internal/app"
	_ "go.trai.ch/splitup/internal/wiring"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	lg, _ := logger.New().(*logger.Logger)
	lg.SetOutput(stderr)

	cli := commands.New(provider(lg), func() commands.EventRecorder { return events.NewRecorder() })
	cli.SetArgs(args)
	cli.SetOutput(stdout, stderr)

	if err := cli.Execute(ctx); err != nil {
		lg.Error(err)
		return 1
	}
	return 0
}

// provider loads the configuration, applies it to lg and builds the application graph.
func provider(lg *logger.Logger) commands.Provider {
	return func(ctx context.Context, opts commands.Options) (commands.Application, error) {
		cfg, err := config.NewLoader().Load(config.ResolvePath(opts.ConfigPath))
		if err != nil {
			return nil, err
		}
		if opts.LogLevel != "" {
			cfg.LogLevel = opts.LogLevel
		}
		if err := lg.Configure(cfg.LogFormat, cfg.LogLevel); err != nil {
			return nil, err
		}

		buildOpts := []app.BuildOption{app.WithLogger(lg)}
		if opts.Events != nil {
			buildOpts = append(buildOpts, app.WithPublisher(opts.Events))
		}
		components, err := app.Build(ctx, cfg, buildOpts...)
		if err != nil {
			return nil, err
		}
		return components.App, nil
	}
}
