package cmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/otterscale/otterscale-watch/internal/cmd/watch"
	"github.com/otterscale/otterscale-watch/internal/config"
)

func TestNewWatchCommand_BindsFlags(t *testing.T) {
	conf, err := config.New()
	require.NoError(t, err)

	cmd, err := NewWatchCommand(conf, func() (*watch.Watcher, func(), error) {
		return nil, nil, errors.New("unused")
	})
	require.NoError(t, err)

	for _, o := range config.WatchOptions {
		require.NotNil(t, cmd.Flags().Lookup(o.Flag), o.Flag)
	}

	require.NoError(t, cmd.Flags().Parse([]string{"--resource=deployments", "--group=apps", "--reconnect-delay=5s"}))
	require.Equal(t, "deployments", conf.WatchResource())
	require.Equal(t, "apps", conf.WatchGroup())
	require.Equal(t, "5s", conf.WatchReconnectDelay().String())
}

func TestNewWatchCommand_InjectorError(t *testing.T) {
	conf, err := config.New()
	require.NoError(t, err)

	cmd, err := NewWatchCommand(conf, func() (*watch.Watcher, func(), error) {
		return nil, nil, errors.New("no kubeconfig")
	})
	require.NoError(t, err)

	cmd.SetArgs([]string{})
	err = cmd.Execute()
	require.ErrorContains(t, err, "failed to initialize watcher: no kubeconfig")
}
