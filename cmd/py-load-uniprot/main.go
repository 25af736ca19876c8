// Command py-load-uniprot loads a UniProtKB XML dataset into
// PostgreSQL, either as a full load (atomic schema swap) or a delta
// load (in-place merge).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gowthamrao/py-load-unitprot/internal/config"
	"github.com/gowthamrao/py-load-unitprot/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func run() error {
	log.SetFormatter(&log.JSONFormatter{})

	s := &config.Settings{}
	s.Bind(pflag.CommandLine)
	pflag.Parse()

	if err := s.ApplyEnv(pflag.CommandLine, os.LookupEnv); err != nil {
		return fmt.Errorf("invalid environment override: %w", err)
	}

	if err := s.Preflight(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go serveMetrics(s.MetricsAddr)

	_, err := pipeline.Run(ctx, s)
	return err
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Warn("metrics server stopped")
	}
}
