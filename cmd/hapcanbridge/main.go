// Package main is the hapcanbridge daemon entrypoint: CLI flags, config
// load, supervisor construction, and a graceful SIGINT/SIGTERM shutdown.
/*
 * Copyright (c) 2023, ALCP IoT. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alcp-iot/hapcanbridge/cmn/cos"
	"github.com/alcp-iot/hapcanbridge/cmn/nlog"
	"github.com/alcp-iot/hapcanbridge/config"
	"github.com/alcp-iot/hapcanbridge/hapcan"
	"github.com/alcp-iot/hapcanbridge/hk"
	"github.com/alcp-iot/hapcanbridge/metrics"
)

var (
	configPath  string
	logDir      string
	metricsAddr string
	verbose     bool
)

func init() {
	flag.StringVar(&configPath, "config", "/etc/hapcanbridge/config.json", "path to the bridge configuration file")
	flag.StringVar(&logDir, "logdir", "", "directory for rotating log files (default: stderr)")
	flag.StringVar(&metricsAddr, "metrics", "", "address to serve Prometheus /metrics on (default: disabled)")
	flag.BoolVar(&verbose, "verbose", false, "log skipped CAN error frames at INFO level")
}

func main() {
	flag.Parse()

	if logDir != "" {
		if err := nlog.SetOutput(logDir, "hapcanbridge"); err != nil {
			cos.Exitf("failed to set up logging in %q: %v", logDir, err)
		}
	}

	watcher := config.NewWatcher(configPath)
	cfg := watcher.Load()
	nlog.Infof("loaded configuration from %s (mqtt=%v socketServer=%v can1=%v)",
		configPath, cfg.EnableMQTT, cfg.EnableSocketServer, cfg.EnableCAN1)

	bridge, err := New(cfg, watcher, hapcan.Mock{})
	if err != nil {
		cos.ExitLogf("failed to construct bridge: %v", err)
	}

	reg := prometheus.NewRegistry()
	metrics.Register(reg)
	if metricsAddr != "" {
		go serveMetrics(metricsAddr, reg)
	}

	go hk.DefaultHK.Run()
	hk.WaitStarted()

	ctx, cancel := installSignalHandler()
	defer cancel()

	nlog.Infof("hapcanbridge starting")
	if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
		nlog.Errorf("bridge exited with error: %v", err)
		nlog.Flush()
		os.Exit(1)
	}
	nlog.Infof("hapcanbridge shut down")
	nlog.Flush()
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		nlog.Errorf("metrics server on %s exited: %v", addr, err)
	}
}

// installSignalHandler returns a context cancelled on SIGINT/SIGTERM,
// driving graceful shutdown via context cancellation rather than a bare
// os.Exit, so Bridge.Run's goroutines can unwind cleanly.
func installSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-c
		nlog.Infof("received signal %v, shutting down", sig)
		cancel()
	}()
	return ctx, cancel
}
