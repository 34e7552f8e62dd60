package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/desertthunder/blindspot/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{Logger: logger})
	defer runner.Close()

	app := &cli.Command{
		Name:    "blindspot",
		Usage:   "Turn-based music blind test over Spotify Connect",
		Version: "0.3.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output JSON instead of tables",
			},
		},
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, io.EOF) {
			logger.Warn("input closed, exiting")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
