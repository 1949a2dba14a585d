package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/sketchstorm/internal/config"
	"github.com/dshills/sketchstorm/internal/logging"
	"github.com/dshills/sketchstorm/internal/metrics"
	"github.com/dshills/sketchstorm/internal/script"
	"github.com/dshills/sketchstorm/internal/watcher"
)

type runOptions struct {
	watch       bool
	logLevel    string
	metricsAddr string
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run SCRIPT",
		Short: "Run a Lua scenario script",
		Long: `Runs a Lua scenario script against a fresh canvas and prints the
resulting history depth. With --watch the script is re-run whenever it
or the configuration file changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runScript(ctx, cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Re-run the script when it changes")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while watching")
	return cmd
}

// session holds what a run needs that is derived from configuration.
type session struct {
	logger *slog.Logger
	runner *script.Runner
}

func newSession(cfg config.Config, opts runOptions, out, errOut io.Writer, collector *metrics.Collector) session {
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	logger := logging.New(cfg.Logging, errOut)

	ropts := []script.Option{
		script.WithHistoryConfig(cfg.History),
		script.WithLogger(logger),
		script.WithOutput(out),
	}
	if collector != nil {
		ropts = append(ropts, script.WithObserver(collector))
	}
	return session{logger: logger, runner: script.NewRunner(ropts...)}
}

func runScript(ctx context.Context, cmd *cobra.Command, path string, opts runOptions) error {
	cfg, cfgPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	var (
		reg       *prometheus.Registry
		collector *metrics.Collector
	)
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		collector = metrics.New(reg, cfg.Metrics.Namespace)
	}

	s := newSession(cfg, opts, out, errOut, collector)
	runOnce := func() error {
		res, err := s.runner.RunFile(ctx, path)
		if res.Name != "" {
			fmt.Fprintln(out, res)
		}
		return err
	}

	if !opts.watch {
		return runOnce()
	}

	w, err := watcher.New(watcher.WithLogger(s.logger))
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Watch(path); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	var cfgAbs string
	if cfgPath != "" {
		if err := w.Watch(cfgPath); err != nil {
			return fmt.Errorf("watching %s: %w", cfgPath, err)
		}
		cfgAbs, _ = filepath.Abs(cfgPath)
	}

	if err := runOnce(); err != nil {
		s.logger.Error("run failed", "error", err)
	}

	logger := s.logger
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx, func(e watcher.Event) {
			if e.Op == watcher.OpRemove {
				s.logger.Warn("watched file removed", "path", e.Path)
				return
			}
			if e.Path == cfgAbs {
				next, _, err := loadConfig(cmd)
				if err != nil {
					s.logger.Error("config reload failed", "error", err)
					return
				}
				s = newSession(next, opts, out, errOut, collector)
				s.logger.Info("config reloaded", "path", cfgPath)
			}
			if err := runOnce(); err != nil {
				s.logger.Error("run failed", "error", err)
			}
		})
	})

	if reg != nil && opts.metricsAddr != "" {
		srv := &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("serving metrics", "addr", opts.metricsAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
