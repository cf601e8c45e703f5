// Package kubernetes adapts client-go watches to core.EventSource.
package kubernetes

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/otterscale/otterscale-watch/internal/config"
)

// Kubernetes lazily builds and caches the clients used by the repos.
type Kubernetes struct {
	conf *config.Config

	mu              sync.Mutex
	restConfig      *rest.Config
	dynamicClient   dynamic.Interface
	discoveryClient discovery.DiscoveryInterface
}

func New(conf *config.Config) *Kubernetes {
	return &Kubernetes{
		conf: conf,
	}
}

// config prefers the in-cluster service account and falls back to a
// kubeconfig for local development.
func (m *Kubernetes) config() (*rest.Config, error) {
	if m.restConfig != nil {
		return m.restConfig, nil
	}

	if cfg, err := rest.InClusterConfig(); err == nil {
		m.restConfig = cfg
		return cfg, nil
	}

	kubeconfig := m.conf.WatchKubeconfig()
	if kubeconfig == "" {
		kubeconfig = os.Getenv("KUBECONFIG")
	}
	if kubeconfig == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			kubeconfig = filepath.Join(home, ".kube", "config")
		}
	}

	cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build kube config: %w", err)
	}

	m.restConfig = cfg
	return cfg, nil
}

func (m *Kubernetes) dynamic() (dynamic.Interface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dynamicClient != nil {
		return m.dynamicClient, nil
	}

	cfg, err := m.config()
	if err != nil {
		return nil, err
	}

	client, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, err
	}

	m.dynamicClient = client
	return client, nil
}

func (m *Kubernetes) discovery() (discovery.DiscoveryInterface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.discoveryClient != nil {
		return m.discoveryClient, nil
	}

	cfg, err := m.config()
	if err != nil {
		return nil, err
	}

	client, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return nil, err
	}

	m.discoveryClient = client
	return client, nil
}
