// Package main is the entry point for the otterscale-watch binary. Its
// watch subcommand follows a Kubernetes resource (or a WebSocket watch
// endpoint) and keeps the stream alive across failures, resuming from
// the last observed resource version.
//
// Dependencies are assembled via Google Wire; see wire.go.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/otterscale/otterscale-watch/internal/cmd"
	"github.com/otterscale/otterscale-watch/internal/cmd/watch"
	"github.com/otterscale/otterscale-watch/internal/config"
	"github.com/otterscale/otterscale-watch/internal/core"
	"github.com/otterscale/otterscale-watch/internal/transport/ws"
)

// version is injected at build time via -ldflags
// (e.g. -ldflags "-X main.version=v1.2.3").
var version = "devel"

func main() {
	// Cancel on SIGINT (Ctrl+C) or SIGTERM (container runtime).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// Cobra is configured with SilenceErrors: true, so we
		// print the error here for consistent formatting.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires all dependencies and executes the root Cobra command.
func run(ctx context.Context) error {
	rootCmd, cleanup, err := wireCmd()
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer cleanup()

	return rootCmd.ExecuteContext(ctx)
}

// newCmd is a Wire provider that constructs the root Cobra command and
// registers the watch subcommand. The watcher is wired lazily inside
// RunE so that flag values are visible to its providers.
func newCmd(conf *config.Config) (*cobra.Command, error) {
	c := &cobra.Command{
		Use:           "otterscale-watch",
		Short:         "OtterScale Watch: a resumable watch over Kubernetes resources.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	watchCmd, err := cmd.NewWatchCommand(conf, func() (*watch.Watcher, func(), error) {
		return wireWatcher(conf)
	})
	if err != nil {
		return nil, err
	}

	c.AddCommand(watchCmd)

	return c, nil
}

// provideMeterProvider is a Wire provider that installs a Prometheus
// backed OpenTelemetry meter provider as the global provider, so that
// promhttp.Handler serves every registered instrument.
func provideMeterProvider() (metric.MeterProvider, func(), error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(mp)

	cleanup := func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			slog.Warn("meter provider shutdown failed", "error", err)
		}
	}
	return mp, cleanup, nil
}

// provideStreamFactory is a Wire provider that selects the watch
// source. The Kubernetes source validates the resource against
// discovery before the first connection attempt.
func provideStreamFactory(conf *config.Config, uc *core.WatchUseCase) (core.StreamFactory[*unstructured.Unstructured], error) {
	switch src := conf.WatchSource(); src {
	case config.SourceWebSocket:
		f, err := ws.NewFactory(conf.WatchWebSocketURL())
		if err != nil {
			return nil, err
		}
		slog.Info("watching websocket endpoint", "url", conf.WatchWebSocketURL())
		return f.Open, nil

	case config.SourceKubernetes:
		gvr, err := uc.Validate(conf.WatchGroup(), conf.WatchVersion(), conf.WatchResource())
		if err != nil {
			return nil, err
		}
		slog.Info("watching kubernetes resource",
			"gvr", gvr.String(),
			"namespace", conf.WatchNamespace(),
			"label_selector", conf.WatchLabelSelector(),
		)
		return uc.StreamFactory(gvr, core.WatchOptions{
			Namespace:     conf.WatchNamespace(),
			LabelSelector: conf.WatchLabelSelector(),
			FieldSelector: conf.WatchFieldSelector(),
		}), nil

	default:
		return nil, &core.ErrInvalidInput{Field: "watch.source", Message: fmt.Sprintf("unsupported source %q", src)}
	}
}

// provideOutput is a Wire provider for the event sink.
func provideOutput() io.Writer {
	return os.Stdout
}
