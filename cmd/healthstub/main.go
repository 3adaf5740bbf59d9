// Command healthstub serves a health endpoint whose status code and latency
// can be changed at runtime, for exercising reachwatch end to end.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func defaultAddr() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return ":" + port
}

func newRootCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:           "healthstub",
		Short:         "Health endpoint with a status code and latency settable at runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			_ = godotenv.Load()
			if !cmd.Flags().Changed("addr") {
				addr = defaultAddr()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), addr, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address (defaults to :$PORT)")
	return cmd
}

func serve(ctx context.Context, addr string, logOut io.Writer) error {
	logger := slog.New(tint.NewHandler(logOut, &tint.Options{TimeFormat: time.RFC3339}))

	server := &http.Server{
		Addr:              addr,
		Handler:           newStubHandler(newStubState(), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("starting healthstub", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		return err
	}
	return nil
}
