package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"skctl/internal/detection"
	"skctl/internal/imagery"
)

var catalogueCmd = &cobra.Command{
	Use:   "catalogue",
	Short: "List the known datasets and detection map types",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("%sDatasets%s\n", colorBold, colorReset)
		for _, p := range imagery.Providers() {
			cmd.Printf("  %-6s %s\n", p, strings.Join(imagery.Datasets(p), ", "))
		}

		types := make([]string, 0, len(detection.MapTypes()))
		for _, mt := range detection.MapTypes() {
			types = append(types, string(mt))
		}
		cmd.Printf("%sMap types%s\n  %s\n", colorBold, colorReset, strings.Join(types, ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogueCmd)
}
