package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("studio failed")
	}
}

func run(args []string) error {
	app := &cli.App{
		Name:  "studio",
		Usage: "composite, mix and record live sources",
		Flags: []cli.Flag{ // Global flags.
			&cli.BoolFlag{
				Name:        "debug",
				Value:       false,
				Usage:       "enable debug logging",
				DefaultText: "false",
				EnvVars:     []string{"DEBUG"},
			},
		},
		Commands: []*cli.Command{
			recordCommand(),
		},
	}

	return app.Run(args)
}
