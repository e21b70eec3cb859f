// Package main provides the ecolyon command-line client.
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/ecolyon/ecolyon/internal/app"
	"github.com/ecolyon/ecolyon/internal/command"
	"github.com/ecolyon/ecolyon/internal/config"
)

// Version is set at compile time via ldflags.
var Version = "dev"

func main() {
	level := zerolog.ErrorLevel
	if os.Getenv("ECOLYON_DEBUG") == "YES" {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()

	cliApp := command.NewApp(Version, func(c *cli.Context) (command.Aggregator, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}

		if err := command.ApplyFlags(c, &cfg); err != nil {
			return nil, err
		}
		// Air quality is not part of the CLI.
		cfg.ATMOAPIToken = ""

		services, err := app.Build(c.Context, cfg, log, app.Options{})
		if err != nil {
			return nil, err
		}
		return services.Infrastructure, nil
	})

	if err := cliApp.Run(os.Args); err != nil {
		cli.HandleExitCoder(err)
		log.Error().Err(err).Send()
		os.Exit(1)
	}
}
