// Example: monitor one health endpoint and export Prometheus metrics.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/el173/use-reachability/reachability"
)

func main() {
	engine, err := reachability.New(reachability.WithLogger(slog.Default()))
	if err != nil {
		log.Fatal(err)
	}

	cfg := reachability.NewConfig("https://api.example.com/health",
		reachability.CheckInterval(10*time.Second),
		reachability.MaxRetries(2),
		reachability.OnStatusChange(func(online bool) {
			slog.Info("reachability changed", "online", online)
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Start(ctx, cfg); err != nil {
		log.Fatal(err)
	}

	// Expose Prometheus metrics on /metrics.
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(":9090", nil); err != nil {
			log.Fatal(err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	engine.Stop()
}
