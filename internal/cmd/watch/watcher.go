// Package watch implements the runtime of the watch command: the
// resumable watch service plus an optional metrics and status server.
package watch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/otterscale/otterscale-watch/internal/app"
	"github.com/otterscale/otterscale-watch/internal/transport"
	"github.com/otterscale/otterscale-watch/internal/transport/http"
)

// Config holds the runtime parameters for a Watcher.
type Config struct {
	// MetricsAddress is where /metrics and /status are served. Empty
	// disables the HTTP server.
	MetricsAddress string
}

// Watcher runs a WatchService and its operational HTTP endpoints in
// parallel via transport.Serve.
type Watcher struct {
	handler *Handler
	service *app.WatchService
}

func NewWatcher(handler *Handler, service *app.WatchService) *Watcher {
	return &Watcher{handler: handler, service: service}
}

// Run blocks until ctx is cancelled or a listener fails.
func (w *Watcher) Run(ctx context.Context, cfg Config) error {
	listeners := []transport.Listener{w.service}

	if cfg.MetricsAddress != "" {
		httpSrv, err := http.NewServer(
			http.WithAddress(cfg.MetricsAddress),
			http.WithMount(w.handler.Mount),
		)
		if err != nil {
			return fmt.Errorf("failed to create HTTP server: %w", err)
		}
		listeners = append(listeners, httpSrv)
	} else {
		slog.Info("metrics address not set, HTTP server disabled")
	}

	return transport.Serve(ctx, listeners...)
}
