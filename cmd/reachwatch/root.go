package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/el173/use-reachability/reachability"
)

var errOffline = errors.New("target is offline")

type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "reachwatch",
		Short:         "Reachability monitor for an HTTP health endpoint",
		Version:       reachability.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), opts, cmd.ErrOrStderr())
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "reachwatch.yaml", "path to the configuration file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newCheckCmd(opts))
	return cmd
}

func newLogger(w io.Writer, level string, debug bool) *slog.Logger {
	lvl, err := parseLevel(level)
	if err != nil || debug {
		lvl = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.RFC3339,
	}))
}

func runWatch(ctx context.Context, opts *rootOptions, logOut io.Writer) error {
	_ = godotenv.Load()

	cfg, err := LoadConfig(opts.configPath)
	if err != nil {
		newLogger(logOut, "", false).Error("failed to load config", "error", err)
		return err
	}

	logger := newLogger(logOut, cfg.Logging.Level, opts.debug)
	slog.SetDefault(logger)

	client, err := reachability.NewHTTPClient(cfg.TransportOptions()...)
	if err != nil {
		logger.Error("failed to build http client", "error", err)
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	notifier := reachability.NewNotifier()
	engine, err := reachability.New(
		reachability.WithLogger(logger),
		reachability.WithRegisterer(registry),
		reachability.WithNamespace(cfg.Metrics.Namespace),
		reachability.WithTransport(client),
		reachability.WithConnectivitySource(notifier),
	)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		return err
	}

	changes := &changeTracker{}
	onChange := func(bool) { changes.mark(time.Now()) }

	if err := engine.Start(ctx, cfg.Reachability(onChange)); err != nil {
		logger.Error("failed to start engine", "error", err)
		return err
	}
	defer engine.Stop()

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newMux(engine, changes, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			engine.Stop()
			return server.Shutdown(shutdownCtx)
		case err := <-serverErr:
			logger.Error("http server failed", "error", err)
			return err
		case sig := <-sigs:
			switch sig {
			case syscall.SIGHUP:
				cfg = reload(ctx, logger, opts.configPath, cfg, engine, onChange)
			case syscall.SIGUSR1:
				logger.Info("connectivity restored signal received")
				notifier.Notify()
			}
		}
	}
}

// reconciler is the part of the engine a reload drives.
type reconciler interface {
	Reconcile(ctx context.Context, cfg reachability.Config) (bool, error)
}

// reload re-reads the config file and reconciles the engine with it. It
// returns the loaded config, or current when the reload failed. Transport
// settings apply only at startup, so a change is reported once.
func reload(ctx context.Context, logger *slog.Logger, path string, current FileConfig, engine reconciler, onChange func(bool)) FileConfig {
	next, err := LoadConfig(path)
	if err != nil {
		logger.Error("reload failed, keeping current config", "error", err)
		return current
	}
	if next.Transport != current.Transport {
		logger.Warn("transport settings changed, restart to apply them")
	}

	restarted, err := engine.Reconcile(ctx, next.Reachability(onChange))
	if err != nil {
		logger.Error("reload failed", "error", err)
		return current
	}
	logger.Info("config reloaded", "restarted", restarted)
	return next
}

func newCheckCmd(root *rootOptions) *cobra.Command {
	var (
		retries int
		delay   time.Duration
		timeout time.Duration
		http2   bool
	)

	cmd := &cobra.Command{
		Use:   "check URL",
		Short: "Run a single check cycle and exit non-zero when the target is offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []reachability.TransportOption
			if http2 {
				opts = append(opts, reachability.WithHTTP2(true))
			}
			client, err := reachability.NewHTTPClient(opts...)
			if err != nil {
				return err
			}

			policy := reachability.RetryPolicy{
				Prober:       reachability.NewClientProber(reachability.StdClient(client)),
				MaxRetries:   retries,
				InitialDelay: delay,
				Timeout:      timeout,
			}
			cycle := policy.Run(cmd.Context(), args[0])

			out := cmd.OutOrStdout()
			for _, a := range cycle.Attempts {
				fmt.Fprintf(out, "attempt %d: %s status=%d latency=%s\n",
					a.Index, a.Result.Category, a.Result.StatusCode, a.Result.Latency.Round(time.Millisecond))
				if root.debug && a.Result.Err != nil {
					fmt.Fprintf(out, "  error: %v\n", a.Result.Err)
				}
			}
			if !cycle.Verdict {
				fmt.Fprintln(out, "offline")
				return errOffline
			}
			fmt.Fprintln(out, "online")
			return nil
		},
	}
	cmd.Flags().IntVar(&retries, "retries", reachability.DefaultMaxRetries, "retries after the first failed attempt")
	cmd.Flags().DurationVar(&delay, "retry-delay", reachability.DefaultInitialRetryDelay, "delay before the first retry, doubled each time")
	cmd.Flags().DurationVar(&timeout, "timeout", reachability.DefaultTimeout, "per-attempt timeout")
	cmd.Flags().BoolVar(&http2, "http2", false, "negotiate HTTP/2 over TLS")
	return cmd
}
