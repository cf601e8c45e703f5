package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestToFlag(t *testing.T) {
	tests := map[string]string{
		keyWatchLabelSelector:  "label-selector",
		keyWatchReconnectDelay: "reconnect-delay",
		keyWatchWebSocketURL:   "websocket-url",
		keyMetricsAddress:      "metrics-address",
	}
	for key, want := range tests {
		require.Equal(t, want, toFlag(key), key)
	}
}

func TestConfig_Defaults(t *testing.T) {
	conf, err := New()
	require.NoError(t, err)

	require.Equal(t, SourceKubernetes, conf.WatchSource())
	require.Equal(t, 3*time.Second, conf.WatchReconnectDelay())
	require.Equal(t, "v1", conf.WatchVersion())
	require.Equal(t, "pods", conf.WatchResource())
	require.Empty(t, conf.WatchResourceVersion())
	require.Equal(t, ":9090", conf.MetricsAddress())
}

func TestConfig_EnvOverridesDefault(t *testing.T) {
	t.Setenv("OTTERSCALE_WATCH_NAMESPACE", "kube-system")
	t.Setenv("OTTERSCALE_WATCH_RECONNECT_DELAY", "500ms")

	conf, err := New()
	require.NoError(t, err)

	require.Equal(t, "kube-system", conf.WatchNamespace())
	require.Equal(t, 500*time.Millisecond, conf.WatchReconnectDelay())
}

func TestConfig_FlagOverridesEnv(t *testing.T) {
	t.Setenv("OTTERSCALE_WATCH_RESOURCE_VERSION", "10")

	conf, err := New()
	require.NoError(t, err)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, conf.BindFlags(fs, WatchOptions))
	require.NoError(t, fs.Parse([]string{"--resource-version=42", "--source=websocket"}))

	require.Equal(t, "42", conf.WatchResourceVersion())
	require.Equal(t, SourceWebSocket, conf.WatchSource())
}

func TestConfig_BindFlagsRejectsUnsupportedType(t *testing.T) {
	conf, err := New()
	require.NoError(t, err)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	err = conf.BindFlags(fs, []Option{{Key: "watch.bogus", Flag: "bogus", Default: 1.5}})
	require.Error(t, err)
}
