// Package config provides unified configuration loading from files,
// environment variables, and CLI flags using viper and pflag.
//
// Resolution order (highest wins):
//  1. CLI flags
//  2. Environment variables (prefix OTTERSCALE_)
//  3. Config file (config.yaml in . or /etc/otterscale/)
//  4. Compiled defaults
package config

// Viper keys for watch configuration.
const (
	keyWatchSource          = "watch.source"
	keyWatchReconnectDelay  = "watch.reconnect_delay"
	keyWatchKubeconfig      = "watch.kubeconfig"
	keyWatchGroup           = "watch.group"
	keyWatchVersion         = "watch.version"
	keyWatchResource        = "watch.resource"
	keyWatchNamespace       = "watch.namespace"
	keyWatchLabelSelector   = "watch.label_selector"
	keyWatchFieldSelector   = "watch.field_selector"
	keyWatchResourceVersion = "watch.resource_version"
	keyWatchWebSocketURL    = "watch.websocket_url"
)

// Viper keys for metrics configuration.
const (
	keyMetricsAddress = "metrics.address"
)
