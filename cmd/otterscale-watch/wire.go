//go:build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/spf13/cobra"

	"github.com/otterscale/otterscale-watch/internal/app"
	"github.com/otterscale/otterscale-watch/internal/cmd"
	"github.com/otterscale/otterscale-watch/internal/cmd/watch"
	"github.com/otterscale/otterscale-watch/internal/config"
	"github.com/otterscale/otterscale-watch/internal/core"
	"github.com/otterscale/otterscale-watch/internal/kubernetes"
)

func wireCmd() (*cobra.Command, func(), error) {
	panic(wire.Build(
		newCmd,
		config.ProviderSet,
	))
}

func wireWatcher(conf *config.Config) (*watch.Watcher, func(), error) {
	panic(wire.Build(
		provideMeterProvider,
		provideStreamFactory,
		provideOutput,
		cmd.ProviderSet,
		app.ProviderSet,
		core.ProviderSet,
		kubernetes.ProviderSet,
	))
}
