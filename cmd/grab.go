package cmd

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"time"

	"github.com/spf13/cobra"

	"flow-player/pkg/player"
)

var (
	grabAt      time.Duration
	grabOut     string
	grabTimeout time.Duration
)

var grabCmd = &cobra.Command{
	Use:   "grab <path>",
	Short: "Write the frame at a position as PNG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout := grabTimeout
		if timeout <= 0 {
			timeout = cfg.Player.GrabTimeout
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		start := time.Now()
		f, err := player.Grab(ctx, newBackend(), newResolver().Resolve, args[0], grabAt, logger)
		if err != nil {
			return err
		}

		out, err := os.Create(grabOut)
		if err != nil {
			return err
		}
		if err := png.Encode(out, f.Image()); err != nil {
			out.Close()
			return fmt.Errorf("failed to encode %s: %w", grabOut, err)
		}
		if err := out.Close(); err != nil {
			return err
		}

		logger.Info().
			Str("out", grabOut).
			Dur("pts", f.PTS).
			Int("width", f.Width).
			Int("height", f.Height).
			Dur("took", time.Since(start)).
			Msg("Frame grabbed")
		return nil
	},
}

func init() {
	grabCmd.Flags().DurationVar(&grabAt, "at", 0, "Position of the frame")
	grabCmd.Flags().StringVarP(&grabOut, "out", "o", "frame.png", "Output PNG file")
	grabCmd.Flags().DurationVar(&grabTimeout, "timeout", 0, "Give up after this long (default player.grab_timeout)")
}
