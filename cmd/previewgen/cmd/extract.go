package cmd

import (
	"fmt"
	"os"

	"github.com/lumastock/preview"
	"github.com/lumastock/preview/internal/raster"
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract <preview>",
	Short: "Print the provenance id embedded in a preview",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		h, err := raster.ReadHeader(data)
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		img, err := raster.Decode(data, h, h.Pixels())
		if err != nil {
			return fmt.Errorf("decode %s: %w", args[0], err)
		}
		id, err := preview.ExtractProvenance(cmd.Context(), img)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
