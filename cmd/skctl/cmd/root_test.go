package cmd

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"skctl/internal/simulator"
)

const testExtent = `{"type":"Polygon","coordinates":[[[14.40,50.08],[14.42,50.08],[14.42,50.09],[14.40,50.09],[14.40,50.08]]]}`

// resetViper clears global configuration and every flag value left behind
// by an earlier command run.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Setenv("HOME", t.TempDir())
	cfgFile = ""

	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)
}

// useSimulator points every service URL at a fresh simulator.
func useSimulator(t *testing.T, opts ...simulator.Option) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(simulator.NewBackend(append([]simulator.Option{simulator.WithTokens("secret")}, opts...)...).Handler())
	t.Cleanup(srv.Close)

	viper.Set("imagery_url", srv.URL)
	viper.Set("kraken_url", srv.URL)
	viper.Set("tasking_url", srv.URL)
	viper.Set("token", "secret")
	viper.Set("poll_interval", time.Millisecond)
	return srv
}

func writeExtent(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "area.geojson")
	if err := os.WriteFile(path, []byte(testExtent), 0o600); err != nil {
		t.Fatalf("failed to write extent: %v", err)
	}
	return path
}

// execute runs the CLI and returns what it printed on stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	want := []string{"search", "image", "detect", "status", "decode", "run", "catalogue", "token"}
	for _, name := range want {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected %q subcommand to be registered with root command", name)
		}
	}
}

func TestRootCommand_Help(t *testing.T) {
	resetViper(t)
	stdout, _, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("root command should execute without error: %v", err)
	}
	if !strings.Contains(stdout, "SKCTL_TOKEN") {
		t.Errorf("help should document the environment, got: %s", stdout)
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	resetViper(t)
	if _, _, err := execute(t, "unknown-command-xyz"); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestRootCommand_CustomConfigFile(t *testing.T) {
	resetViper(t)
	srv := httptest.NewServer(simulator.NewBackend(simulator.WithTokens("config-token")).Handler())
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "skctl.yaml")
	content := "imagery_url: " + srv.URL + "\ntasking_url: " + srv.URL + "\ntoken: config-token\npoll_interval: 1ms\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	stdout, _, err := execute(t, "--config", path, "search", "--extent", writeExtent(t))
	if err != nil {
		t.Fatalf("search with config file failed: %v", err)
	}
	if !strings.Contains(stdout, "Found 3 scenes") {
		t.Errorf("expected scenes from the configured backend, got: %s", stdout)
	}
}

func TestRootCommand_FlagsOverrideConfig(t *testing.T) {
	resetViper(t)
	srv := httptest.NewServer(simulator.NewBackend(simulator.WithTokens("secret")).Handler())
	defer srv.Close()
	t.Setenv("SKCTL_TOKEN", "wrong")
	t.Setenv("SKCTL_IMAGERY_URL", "http://127.0.0.1:1")

	_, _, err := execute(t, "--token", "secret", "--imagery-url", srv.URL, "--tasking-url", srv.URL,
		"--poll-interval", "1ms", "search", "--extent", writeExtent(t))
	if err != nil {
		t.Fatalf("expected flags to win over the environment, got: %v", err)
	}
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	resetViper(t)
	t.Setenv("SKCTL_LOG_LEVEL", "chatty")

	_, _, err := execute(t, "catalogue")
	if err == nil || !strings.Contains(err.Error(), "log level") {
		t.Errorf("expected log level error, got: %v", err)
	}
}

func TestRootCommand_LogsToStderr(t *testing.T) {
	resetViper(t)
	useSimulator(t)

	stdout, stderr, err := execute(t, "search", "--extent", writeExtent(t), "--json")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if !strings.Contains(stderr, `"request_id"`) || !strings.Contains(stderr, "job submitted") {
		t.Errorf("expected JSON logs with a request id on stderr, got: %s", stderr)
	}
	if strings.Contains(stdout, "job submitted") {
		t.Errorf("logs leaked into stdout: %s", stdout)
	}
}

func TestCatalogueCommand(t *testing.T) {
	resetViper(t)
	stdout, _, err := execute(t, "catalogue")
	if err != nil {
		t.Fatalf("catalogue failed: %v", err)
	}
	for _, want := range []string{"gbdx", "COPERNICUS/S2", "solar-panels", "ndvi"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in catalogue, got: %s", want, stdout)
		}
	}
}
