package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hackclub/blurhash/internal/blurhash"
	"github.com/hackclub/blurhash/internal/imageproc"
)

var (
	renderOut     string
	renderWidth   int
	renderHeight  int
	renderPunch   int
	renderQuality int
)

var renderCmd = &cobra.Command{
	Use:   "render <hash>",
	Short: "Decode a blurhash into a JPEG placeholder",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "placeholder.jpg", "output file (- for stdout)")
	renderCmd.Flags().IntVar(&renderWidth, "width", 32, "width in pixels (max 512)")
	renderCmd.Flags().IntVar(&renderHeight, "height", 32, "height in pixels (max 512)")
	renderCmd.Flags().IntVar(&renderPunch, "punch", 1, "contrast boost")
	renderCmd.Flags().IntVarP(&renderQuality, "quality", "q", 90, "JPEG quality 1-100")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	img, err := blurhash.Render(args[0], renderWidth, renderHeight, renderPunch)
	if err != nil {
		return err
	}

	data, err := imageproc.EncodeJPEG(img, renderQuality)
	if err != nil {
		return err
	}

	if renderOut == "-" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(renderOut, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", renderOut, err)
	}

	b := img.Bounds()
	logger := newLogger()
	logger.Info().Str("file", renderOut).Int("width", b.Dx()).Int("height", b.Dy()).Msg("placeholder written")
	return nil
}
