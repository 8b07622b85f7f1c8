package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"skctl/internal/detection"
	"skctl/internal/geo"
	"skctl/internal/task"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run a detection over a scene",
	Long: `Run a detection map over the part of a scene inside a GeoJSON extent,
then download every result tile and merge their features.

Features lying on tile borders may appear once per tile. Without --out the
feature collection is printed to stdout.

Example:
  skctl detect --scene <scene-id> --extent area.geojson --map-type cars --out cars.geojson`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		sceneID, _ := flags.GetString("scene")
		extentPath, _ := flags.GetString("extent")
		mapType, _ := flags.GetString("map-type")
		out, _ := flags.GetString("out")
		geometryID, _ := flags.GetString("geometry")

		mt, err := detection.ParseMapType(mapType)
		if err != nil {
			return err
		}
		if extentPath == "" {
			return fmt.Errorf("--extent is required")
		}
		extent, err := geo.LoadEncoded(extentPath)
		if err != nil {
			return err
		}

		fc, err := detect(cmd.Context(), sceneID, mt, extent, geometryID)
		if err != nil {
			return err
		}

		if out == "" {
			return printJSON(cmd, fc)
		}
		data, err := fc.MarshalJSON()
		if err != nil {
			return fmt.Errorf("failed to encode features: %w", err)
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}
		cmd.Printf("✓ %d %s features saved to %s\n", len(fc.Features), mt, out)
		return nil
	},
}

// detect runs a detection job and gathers the features of all its tiles.
func detect(ctx context.Context, sceneID string, mt detection.MapType, extent []byte, geometryID string) (*geojson.FeatureCollection, error) {
	op := detection.Kraken{BaseURL: current.cfg.KrakenURL, SceneID: sceneID, Extent: extent, MapType: mt}
	res, job, err := task.Run(ctx, current.client, op, current.waitOptions()...)
	if err != nil {
		return nil, jobError(job, err)
	}

	f := detection.NewTileFetcher(current.client,
		detection.WithBaseURL(current.cfg.KrakenURL),
		detection.WithGeometryID(geometryID),
		detection.WithConcurrency(current.cfg.TileConcurrency),
		detection.WithRate(current.cfg.TileRate),
	)
	fc, err := f.Features(ctx, res)
	if err != nil {
		return nil, jobError(job, err)
	}
	return fc, nil
}

func init() {
	flags := detectCmd.Flags()
	flags.StringP("scene", "s", "", "scene id from a search (required)")
	flags.StringP("extent", "e", "", "GeoJSON file with the area to analyse (required)")
	flags.StringP("map-type", "m", string(detection.MapCars), "detection map type")
	flags.String("geometry", detection.AnyGeometry, "geometry id within the map")
	flags.StringP("out", "o", "", "output GeoJSON file (default stdout)")

	rootCmd.AddCommand(detectCmd)
}
