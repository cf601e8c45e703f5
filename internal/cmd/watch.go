package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/otterscale/otterscale-watch/internal/cmd/watch"
	"github.com/otterscale/otterscale-watch/internal/config"
)

type WatchInjector func() (*watch.Watcher, func(), error)

func NewWatchCommand(conf *config.Config, newWatcher WatchInjector) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "watch",
		Short:   "Watch a resource and print every change, reconnecting from the last resource version on failure",
		Example: "otterscale-watch watch --version=v1 --resource=pods --namespace=default --reconnect-delay=3s",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, cleanup, err := newWatcher()
			if err != nil {
				return fmt.Errorf("failed to initialize watcher: %w", err)
			}
			defer cleanup()

			cfg := watch.Config{
				MetricsAddress: conf.MetricsAddress(),
			}

			return w.Run(cmd.Context(), cfg)
		},
	}

	if err := conf.BindFlags(cmd.Flags(), config.WatchOptions); err != nil {
		return nil, err
	}

	return cmd, nil
}
