package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "skctl",
	Short: "skctl is a command line tool for the satellite imagery backend",
	Long: `skctl is the command-line interface for a remote geospatial imagery backend.

Every backend call is an asynchronous pipeline: skctl submits a request,
polls the pipeline until it is RESOLVED or FAILED, then fetches the result.
Extracted images arrive as SKI archives, which skctl decodes into PNG or JPEG.

Common workflows:

  Find scenes over an area:
    skctl search --provider gbdx --dataset idaho-pansharpened --extent area.geojson

  Extract one scene as a picture:
    skctl image --scene <scene-id> --extent area.geojson --out scene.png

  Detect cars and save the features:
    skctl detect --scene <scene-id> --extent area.geojson --map-type cars --out cars.geojson

  Search, extract and detect in one go:
    skctl run --provider gbdx --dataset idaho-pansharpened --extent area.geojson

  Inspect a pipeline or decode a downloaded archive:
    skctl status <pipeline-id>
    skctl decode image.ski --out image.png

Configuration:
  Flags, SKCTL_* environment variables, a .env file and a YAML config file
  (default $HOME/.skctl.yaml) are read in that order of precedence:
    SKCTL_TOKEN          Bearer token for authentication
    SKCTL_TOKEN_FILE     JSON file holding id_token and token_end_time
    SKCTL_IMAGERY_URL    Imagery service endpoint
    SKCTL_KRAKEN_URL     Detection service endpoint
    SKCTL_TASKING_URL    Tasking service endpoint
    SKCTL_POLL_INTERVAL  Delay between status polls (default 10s)`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, which cancels any wait in
// progress when done. Telemetry is flushed even when the command fails.
func ExecuteContext(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	return errors.Join(err, teardown())
}

// configPath returns the --config flag or, if present, $HOME/.skctl.yaml.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".skctl.yaml")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return ""
	}
	return path
}

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"token":         "token",
	"token-file":    "token_file",
	"imagery-url":   "imagery_url",
	"kraken-url":    "kraken_url",
	"tasking-url":   "tasking_url",
	"poll-interval": "poll_interval",
	"max-attempts":  "max_attempts",
	"wait-timeout":  "wait_timeout",
	"log-level":     "log_level",
}

// bindFlags binds the persistent flags to v. Unset flags do not override
// other sources.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.Root().PersistentFlags()
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.skctl.yaml)")
	flags.StringP("token", "t", "", "API token for authentication")
	flags.String("token-file", "", "token file with id_token and token_end_time")
	flags.String("imagery-url", "", "imagery service URL")
	flags.String("kraken-url", "", "detection service URL")
	flags.String("tasking-url", "", "tasking service URL")
	flags.Duration("poll-interval", 0, "delay between status polls")
	flags.Int("max-attempts", 0, "maximum status polls per job (0 = unlimited)")
	flags.Duration("wait-timeout", 0, "maximum time to wait for a job (0 = no limit)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
}
