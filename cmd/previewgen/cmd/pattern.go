package cmd

import (
	"bytes"
	"fmt"
	"image/png"
	"os"

	"github.com/lumastock/preview/internal/pattern"
	"github.com/spf13/cobra"
)

var patternFlags struct {
	width, height int
	text          string
	png           string
}

var patternCmd = &cobra.Command{
	Use:   "pattern",
	Short: "Print the watermark pattern for a canvas as SVG",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		text := patternFlags.text
		if text == "" {
			text = cfg.Policy.WatermarkText
		}
		p, err := pattern.New(patternFlags.width, patternFlags.height, text)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), p.SVG())

		if patternFlags.png == "" {
			return nil
		}
		overlay, err := p.Render()
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, overlay); err != nil {
			return err
		}
		return os.WriteFile(patternFlags.png, buf.Bytes(), 0o644)
	},
}

func init() {
	rootCmd.AddCommand(patternCmd)

	patternCmd.Flags().IntVar(&patternFlags.width, "width", 600, "canvas width")
	patternCmd.Flags().IntVar(&patternFlags.height, "height", 450, "canvas height")
	patternCmd.Flags().StringVar(&patternFlags.text, "text", "", "watermark text (default from config)")
	patternCmd.Flags().StringVar(&patternFlags.png, "png", "", "also write the rendered overlay to this PNG file")
}
