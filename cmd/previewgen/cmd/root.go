// Package cmd contains the previewgen commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/lumastock/preview"
	"github.com/lumastock/preview/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	logger  = zerolog.Nop()
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "previewgen",
	Short: "Watermarked image preview generator",
	Long: `previewgen turns uploaded images into watermarked, size-bounded JPEG
previews that are safe to show in public.

Example usage:
  previewgen generate photo.jpg preview.jpg    # One preview
  previewgen batch uploads/                    # Every image in a directory
  previewgen pattern --width 600 --height 450  # Print the watermark SVG
  previewgen extract preview.jpg               # Read the provenance id`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .previewgen.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger, err = newLogger(os.Stderr, level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	logger.Debug().
		Int("max_input_pixels", cfg.Policy.MaxInputPixels).
		Int("max_preview_width", cfg.Policy.MaxPreviewWidth).
		Str("storage_dir", cfg.Storage.Dir).
		Msg("configuration loaded")
	return nil
}

// generatorOptions maps the loaded configuration onto preview options.
func generatorOptions(c *config.Config) []preview.Option {
	return []preview.Option{
		preview.WithMaxInputPixels(c.Policy.MaxInputPixels),
		preview.WithMaxPreviewWidth(c.Policy.MaxPreviewWidth),
		preview.WithWatermarkText(c.Policy.WatermarkText),
		preview.WithQuality(c.Policy.Quality),
		preview.WithTimeout(c.Policy.Timeout),
		preview.WithLogger(logger),
	}
}

// parseID accepts a UUID, or "auto" for a fresh random one.
func parseID(s string) (uuid.UUID, error) {
	if s == "auto" {
		return uuid.New(), nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid provenance id %q: %w", s, err)
	}
	return id, nil
}
