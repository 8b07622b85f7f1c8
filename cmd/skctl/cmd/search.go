package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"skctl/internal/geo"
	"skctl/internal/imagery"
	"skctl/internal/task"
	"skctl/pkg/api"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search for scenes over an extent",
	Long: `Search a provider dataset for scenes intersecting a GeoJSON extent.

Datetimes use the format "YYYY-MM-DD hh:mm:ss". Run 'skctl catalogue' for the
known providers and datasets.

Example:
  skctl search --provider gbdx --dataset idaho-pansharpened --extent area.geojson
  skctl search --provider ee --dataset COPERNICUS/S2 --extent area.geojson \
    --start "2018-01-01 00:00:00" --end "2018-02-01 00:00:00" --min-intersection 0.5 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		search, err := searchFromFlags(cmd)
		if err != nil {
			return err
		}

		scenes, job, err := task.Run(cmd.Context(), current.client, search, current.waitOptions()...)
		if err != nil {
			return jobError(job, err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd, scenes)
		}
		printScenes(cmd, scenes)
		return nil
	},
}

// searchFromFlags builds a search from the flags shared with run.
func searchFromFlags(cmd *cobra.Command) (imagery.Search, error) {
	flags := cmd.Flags()
	provider, _ := flags.GetString("provider")
	dataset, _ := flags.GetString("dataset")
	extentPath, _ := flags.GetString("extent")
	start, _ := flags.GetString("start")
	end, _ := flags.GetString("end")

	if extentPath == "" {
		return imagery.Search{}, fmt.Errorf("--extent is required")
	}
	extent, err := geo.LoadEncoded(extentPath)
	if err != nil {
		return imagery.Search{}, err
	}

	s := imagery.Search{
		BaseURL:       current.cfg.ImageryURL,
		Provider:      provider,
		Dataset:       dataset,
		Extent:        extent,
		StartDatetime: start,
		EndDatetime:   end,
	}
	if flags.Changed("min-intersection") {
		v, _ := flags.GetFloat64("min-intersection")
		s.MinIntersection = &v
	}
	return s, nil
}

func addSearchFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("provider", "p", "gbdx", "imagery provider")
	flags.StringP("dataset", "d", "idaho-pansharpened", "provider dataset")
	flags.StringP("extent", "e", "", "GeoJSON file with the area of interest (required)")
	flags.String("start", "", "earliest acquisition datetime")
	flags.String("end", "", "latest acquisition datetime")
	flags.Float64("min-intersection", 0, "minimum fraction of the extent a scene must cover, 0 to 1")
}

func printScenes(cmd *cobra.Command, scenes []api.SceneMetadata) {
	if len(scenes) == 0 {
		cmd.Println("No scenes found")
		return
	}
	cmd.Printf("%sFound %d scenes%s\n", colorBold, len(scenes), colorReset)
	cmd.Println("──────────────────────────────")
	for _, s := range scenes {
		cloud := "-"
		if s.CloudCover != nil {
			cloud = fmt.Sprintf("%.0f%%", *s.CloudCover*100)
		}
		cmd.Printf("%s  %s%s%s  %-12s cloud %s\n", s.SceneID, colorDim, s.Datetime, colorReset, s.Satellite, cloud)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	addSearchFlags(searchCmd)
	searchCmd.Flags().Bool("json", false, "print the scenes as JSON")
	rootCmd.AddCommand(searchCmd)
}
