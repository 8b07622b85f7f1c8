package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"skctl/internal/ski"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [file.ski]",
	Short: "Decode a SKI archive into a picture",
	Long: `Decode a downloaded SKI archive without contacting the backend. The red,
green and blue bands are composed into an 8-bit picture; the band list is
printed first.

Example:
  skctl decode scene.ski --out scene.png --width 1024`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		width, _ := cmd.Flags().GetInt("width")

		c, err := ski.OpenFile(args[0])
		if err != nil {
			return err
		}
		defer c.Close()

		printBands(cmd, c)
		if err := savePicture(cmd.Context(), c, out, width); err != nil {
			return err
		}
		cmd.Printf("✓ Decoded %s to %s\n", args[0], out)
		return nil
	},
}

func printBands(cmd *cobra.Command, c *ski.Container) {
	if s := c.Manifest.Scene; s != nil {
		cmd.Printf("%sScene:%s       %s (%s %s)\n", colorDim, colorReset, s.SceneID, s.Satellite, s.Datetime)
	}
	names := make([]string, 0, c.NumBands())
	for _, b := range c.Manifest.Bands {
		name := b.Name()
		if b.BitDepth > 0 {
			name = fmt.Sprintf("%s/%d", name, b.BitDepth)
		}
		names = append(names, name)
	}
	cmd.Printf("%sBands:%s       %s\n", colorDim, colorReset, strings.Join(names, ", "))
}

func init() {
	decodeCmd.Flags().StringP("out", "o", "image.png", "output picture")
	decodeCmd.Flags().Int("width", 0, "resize the picture to this width in pixels")
	rootCmd.AddCommand(decodeCmd)
}
