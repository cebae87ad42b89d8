// Package cmd implements the flow-player command line.
package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"flow-player/pkg/config"
	"flow-player/pkg/mpeg"
	"flow-player/pkg/source"
)

var (
	cfgFile  string
	logLevel string

	cfg    *config.Config
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:           "flow-player",
	Short:         "Audio-synchronised video player built on FFmpeg and SDL2",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		cfg = c
		logger = setupLogger(c.Log)
		if c.File != "" {
			logger.Debug().Str("file", c.File).Msg("Config loaded")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file (default ./flow-player.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(playCmd, grabCmd, probeCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("flow-player failed")
		if logger.GetLevel() == zerolog.Disabled {
			os.Stderr.WriteString(err.Error() + "\n")
		}
		os.Exit(1)
	}
}

func setupLogger(c config.Log) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil || c.Level == "" {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	if c.Pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().
			Timestamp().
			Logger()
	}

	return zerolog.New(os.Stderr).
		With().
		Timestamp().
		Logger()
}

func newBackend() *mpeg.Backend {
	return mpeg.NewBackend(mpeg.Options{
		VideoDecoder:  cfg.Decoder.Video,
		ForceSoftware: cfg.Decoder.ForceSoftware,
		Threads:       cfg.Decoder.Threads,
	}, logger)
}

func newResolver() *source.Resolver {
	return source.NewResolver(cfg.SourceOptions(), logger)
}
