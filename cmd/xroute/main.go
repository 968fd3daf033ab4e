// Command xroute runs the routes of a YAML route file on a transport.
//
//	xroute --config routes.yaml --transport memory --metrics-addr :9090
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xlog/adapter/zerolog"
	"github.com/trickstertwo/xroute"
	_ "github.com/trickstertwo/xroute/adapter/memory"
	_ "github.com/trickstertwo/xroute/adapter/nats"
	_ "github.com/trickstertwo/xroute/adapter/redisstream"
	"github.com/trickstertwo/xroute/routecfg"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		transport   string
		codec       string
		logLevel    string
		console     bool
		metricsAddr string
		observers   int
		ackTimeout  time.Duration
		stopTimeout time.Duration
	)

	flagSet := pflag.NewFlagSet("xroute", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "routes.yaml", "route definition file")
	flagSet.StringVarP(&transport, "transport", "t", "", "transport name, overriding the file (memory, redis-streams, nats)")
	flagSet.StringVar(&codec, "codec", "", "codec name, overriding the file")
	flagSet.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	flagSet.BoolVar(&console, "console", false, "human readable log output")
	flagSet.StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address")
	flagSet.IntVar(&observers, "observer-workers", 1, "observer pool workers; 0 dispatches inline")
	flagSet.DurationVar(&ackTimeout, "ack-timeout", 5*time.Second, "timeout for acknowledging a delivery")
	flagSet.DurationVar(&stopTimeout, "shutdown-timeout", 10*time.Second, "time allowed for a graceful shutdown")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	level, err := parseLevel(logLevel)
	if err != nil {
		return err
	}
	logger := zerolog.Use(zerolog.Config{
		MinLevel:          level,
		Console:           console,
		ConsoleTimeFormat: time.RFC3339Nano,
		Caller:            level == xlog.LevelDebug,
		CallerSkip:        5,
	}).With(xlog.Str("app", "xroute"))

	file, err := routecfg.Load(configPath)
	if err != nil {
		return err
	}
	if transport != "" {
		file.Transport.Name = transport
	}
	if codec != "" {
		file.Codec = codec
	}
	if file.Transport.Name == "" {
		return errors.New("no transport configured; set transport.name or --transport")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rb := xroute.NewRouterBuilder().
		WithLogger(logger).
		WithClock(xclock.Default()).
		WithMetrics(reg).
		WithObserver(xroute.LoggingObserver{Logger: logger}).
		WithObserverPool(observers, 1024).
		WithAckTimeout(ackTimeout)
	router, err := file.Apply(rb).Build()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if metricsAddr != "" {
		srv = metricsServer(metricsAddr, reg, router)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
				stop()
			}
		}()
	}

	names := make([]string, 0, len(file.Routes))
	for _, r := range file.Routes {
		names = append(names, r.Name)
	}
	logger.Info().
		Str("transport", file.Transport.Name).
		Str("routes", strings.Join(names, ",")).
		Msg("xroute running")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if srv != nil {
		_ = srv.Shutdown(shutdownCtx)
	}
	if err := router.Close(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

func metricsServer(addr string, reg *prometheus.Registry, router *xroute.Router) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := router.Health(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if h.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(h)
	})
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

func parseLevel(s string) (xlog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return xlog.LevelDebug, nil
	case "info", "":
		return xlog.LevelInfo, nil
	case "warn", "warning":
		return xlog.LevelWarn, nil
	case "error":
		return xlog.LevelError, nil
	}
	return xlog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
