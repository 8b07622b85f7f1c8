package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/cobra"

	"skctl/internal/detection"
	"skctl/internal/imagery"
	"skctl/internal/task"
	"skctl/pkg/api"
)

var unsafeFileChars = regexp.MustCompile(`[^-a-zA-Z0-9_.() ]+`)

// sceneFileName names the picture of a scene after its acquisition.
func sceneFileName(s api.SceneMetadata) string {
	return unsafeFileChars.ReplaceAllString(fmt.Sprintf("%s_%s.png", s.Datetime, s.Satellite), "_")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search, extract and detect in one step",
	Long: `Search for scenes over an extent, then for every scene found extract the
image and run a detection over it.

Each picture is saved to the output directory as <datetime>_<satellite>.png and
the number of detected features is printed next to it. A scene that fails is
reported and the remaining scenes still run.

Example:
  skctl run --provider gbdx --dataset idaho-pansharpened --extent area.geojson --out-dir ./scenes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		flags := cmd.Flags()
		outDir, _ := flags.GetString("out-dir")
		mapType, _ := flags.GetString("map-type")
		width, _ := flags.GetInt("width")

		mt, err := detection.ParseMapType(mapType)
		if err != nil {
			return err
		}
		search, err := searchFromFlags(cmd)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}

		scenes, job, err := task.Run(ctx, current.client, search, current.waitOptions()...)
		if err != nil {
			return jobError(job, err)
		}
		if len(scenes) == 0 {
			cmd.Println("No scenes found")
			return nil
		}

		failed := 0
		for _, scene := range scenes {
			out := filepath.Join(outDir, sceneFileName(scene))
			n, err := runScene(cmd, scene, search, mt, out, width)
			if err != nil {
				failed++
				current.log.ErrorContext(ctx, "scene failed", "scene_id", scene.SceneID, "error", err)
				cmd.Printf("✗ %s: %v\n", scene.SceneID, err)
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}
			cmd.Printf("✓ %s: %d %s features\n", out, n, mt)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d scenes failed", failed, len(scenes))
		}
		return nil
	},
}

// runScene extracts one scene to out and counts its detections.
func runScene(cmd *cobra.Command, scene api.SceneMetadata, search imagery.Search, mt detection.MapType, out string, width int) (int, error) {
	ctx := cmd.Context()

	op := imagery.GetImage{BaseURL: current.cfg.ImageryURL, SceneID: scene.SceneID, Extent: search.Extent}
	res, job, err := task.Run(ctx, current.client, op, current.waitOptions()...)
	if err != nil {
		return 0, jobError(job, err)
	}
	if err := saveImage(ctx, res, out, width); err != nil {
		return 0, jobError(job, err)
	}

	fc, err := detect(ctx, scene.SceneID, mt, search.Extent, detection.AnyGeometry)
	if err != nil {
		return 0, err
	}
	return len(fc.Features), nil
}

func init() {
	addSearchFlags(runCmd)
	flags := runCmd.Flags()
	flags.StringP("map-type", "m", string(detection.MapCars), "detection map type")
	flags.String("out-dir", ".", "directory for the scene pictures")
	flags.Int("width", 0, "resize pictures to this width in pixels")

	rootCmd.AddCommand(runCmd)
}
