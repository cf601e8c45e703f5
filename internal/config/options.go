package config

import (
	"strings"
	"time"
)

// Option describes a single configuration entry: its viper key, the
// corresponding CLI flag name, the compiled default, and a
// human-readable description shown in --help output.
type Option struct {
	Key         string
	Flag        string
	Default     any
	Description string
}

// Sources accepted by watch.source.
const (
	SourceKubernetes = "kubernetes"
	SourceWebSocket  = "websocket"
)

// WatchOptions defines the configuration entries of the watch
// command. Each entry is registered as a viper default and a CLI flag.
var WatchOptions = []Option{
	{Key: keyWatchSource, Flag: toFlag(keyWatchSource), Default: SourceKubernetes, Description: "Watch source (kubernetes or websocket)"},
	{Key: keyWatchReconnectDelay, Flag: toFlag(keyWatchReconnectDelay), Default: 3 * time.Second, Description: "Delay before reconnecting a failed watch"},
	{Key: keyWatchKubeconfig, Flag: toFlag(keyWatchKubeconfig), Default: "", Description: "Path to kubeconfig when not running in-cluster"},
	{Key: keyWatchGroup, Flag: toFlag(keyWatchGroup), Default: "", Description: "API group of the watched resource"},
	{Key: keyWatchVersion, Flag: toFlag(keyWatchVersion), Default: "v1", Description: "API version of the watched resource"},
	{Key: keyWatchResource, Flag: toFlag(keyWatchResource), Default: "pods", Description: "Plural name of the watched resource"},
	{Key: keyWatchNamespace, Flag: toFlag(keyWatchNamespace), Default: "", Description: "Namespace to watch (all namespaces if empty)"},
	{Key: keyWatchLabelSelector, Flag: toFlag(keyWatchLabelSelector), Default: "", Description: "Label selector"},
	{Key: keyWatchFieldSelector, Flag: toFlag(keyWatchFieldSelector), Default: "", Description: "Field selector"},
	{Key: keyWatchResourceVersion, Flag: toFlag(keyWatchResourceVersion), Default: "", Description: "Resource version to resume from (latest if empty)"},
	{Key: keyWatchWebSocketURL, Flag: toFlag(keyWatchWebSocketURL), Default: "ws://127.0.0.1:8299/watch", Description: "WebSocket watch endpoint"},
	{Key: keyMetricsAddress, Flag: toFlag(keyMetricsAddress), Default: ":9090", Description: "Prometheus metrics listen address (disabled if empty)"},
}

// toFlag converts a viper key like "watch.label_selector" into a CLI
// flag like "label-selector" by lower-casing, replacing dots and
// underscores with hyphens, and stripping the "watch-" prefix.
func toFlag(key string) string {
	flag := strings.ToLower(key)
	flag = strings.ReplaceAll(flag, ".", "-")
	flag = strings.ReplaceAll(flag, "_", "-")
	flag = strings.TrimPrefix(flag, "watch-")
	return flag
}
