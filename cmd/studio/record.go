package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"

	"github.com/thesyncim/studio"
)

const configFlagName = "config"

// recordOptions holds the flags of the record command.
type recordOptions struct {
	Users       int
	Duration    time.Duration
	OutDir      string
	Camera      bool
	ScreenShare bool
	Mirror      string
	FPS         int
	VideoFPS    int
	Quality     int
	Timeslice   time.Duration
}

func recordCommand() *cli.Command {
	var (
		logger  zerolog.Logger
		options recordOptions
	)

	flags := func() (flags []cli.Flag) {
		for _, v := range [][]cli.Flag{
			loadConfigFlag(),
			recordFlags(&options),
		} {
			flags = append(flags, v...)
		}
		return
	}()

	return &cli.Command{
		Name:  "record",
		Usage: "Record synthetic participants to " + studio.RecordingFilename,
		Flags: flags,
		Before: func(c *cli.Context) error {
			if err := altsrc.InitInputSourceWithContext(
				flags,
				altsrc.NewTomlSourceFromFlagFunc(configFlagName),
			)(c); err != nil {
				return err
			}

			// Set up logger.
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if c.Bool("debug") {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
			logger = log.With().Str("service", "studio").Str("command", "record").Logger()
			return nil
		},
		Action: func(c *cli.Context) error {
			return record(c.Context, logger, options)
		},
		After: func(c *cli.Context) error {
			logger.Info().Msg("exits")
			return nil
		},
	}
}

func record(ctx context.Context, logger zerolog.Logger, options recordOptions) error {
	mirror := studio.MirrorFirstPrimary
	switch options.Mirror {
	case "first-primary", "":
	case "none":
		mirror = studio.MirrorNone
	default:
		return fmt.Errorf("unknown mirror policy %q", options.Mirror)
	}

	config := studio.DefaultStudioConfig()
	config.Users = options.Users
	if options.Users == 0 {
		config.Users = -1
	}
	config.FPS = options.FPS
	config.MirrorPolicy = mirror
	config.Emitter = studio.DirEmitter{Dir: options.OutDir}
	config.Recorder.VideoFPS = options.VideoFPS
	config.Recorder.JPEGQuality = options.Quality
	config.Recorder.Timeslice = options.Timeslice
	config.Logger = logger

	s := studio.NewStudio(config)
	defer s.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if options.Camera {
		if err := s.EnableCamera(ctx); err != nil {
			return err
		}
	}
	if options.ScreenShare {
		if err := s.EnableScreenShare(ctx); err != nil {
			return err
		}
	}

	if err := s.StartRecording(); err != nil {
		return err
	}
	logger.Info().
		Int("users", s.Users()).
		Dur("duration", options.Duration).
		Str("out", options.OutDir).
		Msg("recording")

	timer := time.NewTimer(options.Duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		logger.Info().Msg("interrupted, finishing recording")
	case <-timer.C:
	}

	return s.StopRecording()
}

// loadConfigFlag sets a config file path for the record command.
func loadConfigFlag() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    configFlagName,
			Aliases: []string{"c"},
			Usage:   "TOML config file path",
		},
	}
}

func recordFlags(options *recordOptions) []cli.Flag {
	return []cli.Flag{
		altsrc.NewIntFlag(&cli.IntFlag{
			Name:        "record.users",
			Usage:       "Number of participants",
			Value:       2,
			DefaultText: "2",
			Destination: &options.Users,
		}),
		altsrc.NewDurationFlag(&cli.DurationFlag{
			Name:        "record.duration",
			Usage:       "How long to record",
			Value:       5 * time.Second,
			DefaultText: "5s",
			Destination: &options.Duration,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "record.out",
			Usage:       "Directory the recording is written to",
			Value:       ".",
			DefaultText: ".",
			Destination: &options.OutDir,
		}),
		altsrc.NewBoolFlag(&cli.BoolFlag{
			Name:        "record.camera",
			Usage:       "Enable the synthetic camera and microphone",
			Value:       true,
			DefaultText: "true",
			Destination: &options.Camera,
		}),
		altsrc.NewBoolFlag(&cli.BoolFlag{
			Name:        "record.screen_share",
			Usage:       "Share the synthetic display",
			Value:       false,
			DefaultText: "false",
			Destination: &options.ScreenShare,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "record.mirror",
			Usage:       "Initial binding of new participants: first-primary or none",
			Value:       "first-primary",
			DefaultText: "first-primary",
			Destination: &options.Mirror,
		}),
		altsrc.NewIntFlag(&cli.IntFlag{
			Name:        "render.fps",
			Usage:       "Composite render rate",
			Value:       60,
			DefaultText: "60",
			Destination: &options.FPS,
		}),
		altsrc.NewIntFlag(&cli.IntFlag{
			Name:        "encoder.fps",
			Usage:       "Encoded video frame rate",
			Value:       30,
			DefaultText: "30",
			Destination: &options.VideoFPS,
		}),
		altsrc.NewIntFlag(&cli.IntFlag{
			Name:        "encoder.quality",
			Usage:       "JPEG quality (1-100)",
			Value:       75,
			DefaultText: "75",
			Destination: &options.Quality,
		}),
		altsrc.NewDurationFlag(&cli.DurationFlag{
			Name:        "encoder.timeslice",
			Usage:       "Interval between delivered chunks",
			Value:       time.Second,
			DefaultText: "1s",
			Destination: &options.Timeslice,
		}),
	}
}
