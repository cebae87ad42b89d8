package cmd

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"flow-player/pkg/mpeg"
	"flow-player/pkg/video"
)

var probeDecoders bool

var probeCmd = &cobra.Command{
	Use:   "probe [path]",
	Short: "Print stream information and the decoder that would be used",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()

		if probeDecoders {
			hw := lo.Filter(mpeg.Decoders(), func(name string, _ int) bool {
				return video.IsHardwareDecoder(name)
			})
			fmt.Fprintf(w, "hardware decoders: %s\n", strings.Join(hw, " "))
		}
		if len(args) == 0 {
			if !probeDecoders {
				return fmt.Errorf("probe needs a path or --decoders")
			}
			return nil
		}

		loc, err := newResolver().Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		c, err := newBackend().Open(loc)
		if err != nil {
			return err
		}
		defer c.Close()

		if c.Info().Video != nil {
			vd, err := c.OpenVideo()
			if err != nil {
				return err
			}
			vd.Close()
		}

		info := c.Info()
		fmt.Fprintf(w, "url:       %s\n", info.URL)
		fmt.Fprintf(w, "format:    %s\n", info.Format)
		fmt.Fprintf(w, "duration:  %s\n", info.Duration)
		fmt.Fprintf(w, "seekable:  %t\n", info.Seekable)
		if v := info.Video; v != nil {
			fmt.Fprintf(w, "video:     %s %dx%d @ %.3f fps\n", v.Codec, v.Width, v.Height, v.FPS)
			fmt.Fprintf(w, "decoder:   %s (hardware=%t)\n", v.Decoder, v.Hardware)
			fmt.Fprintf(w, "tried:     %s\n", strings.Join(video.DecoderCandidates(v.Codec, cfg.Decoder.Video, cfg.Decoder.ForceSoftware), " "))
		}
		if a := info.Audio; a != nil {
			fmt.Fprintf(w, "audio:     %s %d Hz, %d channels\n", a.Codec, a.SampleRate, a.Channels)
		}
		return nil
	},
}

func init() {
	probeCmd.Flags().BoolVar(&probeDecoders, "decoders", false, "List hardware decoders compiled into FFmpeg")
}
