package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	v *viper.Viper
}

func New() (*Config, error) {
	v := viper.New()

	// default values
	for _, o := range WatchOptions {
		v.SetDefault(o.Key, o.Default)
	}

	// load config from file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/otterscale/")

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !(errors.As(err, &notFoundErr) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// load config from environment variables
	v.SetEnvPrefix("OTTERSCALE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Config{v: v}, nil
}

func (c *Config) BindFlags(fs *pflag.FlagSet, options []Option) error {
	for _, o := range options {
		switch v := o.Default.(type) {
		case string:
			fs.String(o.Flag, v, o.Description)
		case int:
			fs.Int(o.Flag, v, o.Description)
		case bool:
			fs.Bool(o.Flag, v, o.Description)
		case []string:
			fs.StringSlice(o.Flag, v, o.Description)
		case time.Duration:
			fs.Duration(o.Flag, v, o.Description)
		default:
			return fmt.Errorf("unsupported flag type for key: %s", o.Key)
		}

		if err := c.v.BindPFlag(o.Key, fs.Lookup(o.Flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", o.Flag, err)
		}
	}

	return nil
}

func (c *Config) WatchSource() string {
	return c.v.GetString(keyWatchSource) // OTTERSCALE_WATCH_SOURCE
}

func (c *Config) WatchReconnectDelay() time.Duration {
	return c.v.GetDuration(keyWatchReconnectDelay) // OTTERSCALE_WATCH_RECONNECT_DELAY
}

func (c *Config) WatchKubeconfig() string {
	return c.v.GetString(keyWatchKubeconfig) // OTTERSCALE_WATCH_KUBECONFIG
}

func (c *Config) WatchGroup() string {
	return c.v.GetString(keyWatchGroup) // OTTERSCALE_WATCH_GROUP
}

func (c *Config) WatchVersion() string {
	return c.v.GetString(keyWatchVersion) // OTTERSCALE_WATCH_VERSION
}

func (c *Config) WatchResource() string {
	return c.v.GetString(keyWatchResource) // OTTERSCALE_WATCH_RESOURCE
}

func (c *Config) WatchNamespace() string {
	return c.v.GetString(keyWatchNamespace) // OTTERSCALE_WATCH_NAMESPACE
}

func (c *Config) WatchLabelSelector() string {
	return c.v.GetString(keyWatchLabelSelector) // OTTERSCALE_WATCH_LABEL_SELECTOR
}

func (c *Config) WatchFieldSelector() string {
	return c.v.GetString(keyWatchFieldSelector) // OTTERSCALE_WATCH_FIELD_SELECTOR
}

func (c *Config) WatchResourceVersion() string {
	return c.v.GetString(keyWatchResourceVersion) // OTTERSCALE_WATCH_RESOURCE_VERSION
}

func (c *Config) WatchWebSocketURL() string {
	return c.v.GetString(keyWatchWebSocketURL) // OTTERSCALE_WATCH_WEBSOCKET_URL
}

func (c *Config) MetricsAddress() string {
	return c.v.GetString(keyMetricsAddress) // OTTERSCALE_METRICS_ADDRESS
}
