package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"skctl/internal/auth"
	"skctl/internal/config"
	"skctl/internal/logger"
	"skctl/internal/observability"
	"skctl/internal/task"
)

// tokenLeeway refreshes a file token this long before it expires.
const tokenLeeway = time.Minute

// app is the state shared by the commands of one invocation.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	client *task.Client

	cancel   context.CancelFunc
	shutdown []func(context.Context) error
}

var current *app

func setup(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	if err := bindFlags(cmd, v); err != nil {
		return err
	}
	if err := config.Bind(v, configPath()); err != nil {
		return err
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}

	log := logger.New(cmd.ErrOrStderr(), cfg.LogLevel)
	// cobra hands the root context to a subcommand only while the
	// subcommand has none, so a context set by an earlier run would stick.
	ctx, cancel := context.WithCancel(logger.WithRequestID(cmd.Root().Context(), uuid.NewString()))
	a := &app{cfg: cfg, log: log, cancel: cancel}

	shutdownTracer, err := observability.InitTracer(ctx, "skctl", cfg.OTELEndpoint)
	if err != nil {
		cancel()
		return err
	}
	a.shutdown = append(a.shutdown, shutdownTracer)

	if cfg.MetricsAddr != "" {
		handler, shutdownMetrics, err := observability.InitMetrics()
		if err != nil {
			cancel()
			return err
		}
		a.shutdown = append(a.shutdown, shutdownMetrics)
		go func() {
			if err := observability.ServeMetrics(ctx, cfg.MetricsAddr, handler, log); err != nil {
				log.Error("metrics listener failed", "error", err)
			}
		}()
	}

	a.client = task.NewClient(tokenSource(cfg),
		task.WithTaskingURL(cfg.TaskingURL),
		task.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		task.WithLogger(log),
	)

	current = a
	cmd.SetContext(ctx)
	return nil
}

func teardown() error {
	a := current
	if a == nil {
		return nil
	}
	current = nil
	a.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	for _, fn := range a.shutdown {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}

// tokenSource prefers an explicit token over the token file. Without either,
// requests that need credentials fail with auth.ErrNoToken.
func tokenSource(cfg *config.Config) auth.TokenSource {
	if cfg.Token != "" || cfg.TokenFile == "" {
		return auth.StaticToken(cfg.Token)
	}
	path := cfg.TokenFile
	return auth.NewCachingSource(func(ctx context.Context) (string, time.Time, error) {
		return auth.LoadTokenFile(path)
	}, tokenLeeway)
}

// waitOptions turns the polling settings into wait options.
func (a *app) waitOptions() []task.WaitOption {
	return []task.WaitOption{
		task.WithInterval(a.cfg.PollInterval),
		task.WithMaxAttempts(a.cfg.MaxAttempts),
		task.WithTimeout(a.cfg.WaitTimeout),
	}
}

// jobError names the pipeline in err when one was created.
func jobError[R any](job *task.Job[R], err error) error {
	if err == nil {
		return nil
	}
	if job != nil && job.ID != "" {
		return fmt.Errorf("%s pipeline %s: %w", job.Kind(), job.ID, err)
	}
	return err
}
