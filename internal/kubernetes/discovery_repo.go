package kubernetes

import (
	"fmt"
	"slices"

	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/version"

	"github.com/otterscale/otterscale-watch/internal/core"
)

type discoveryRepo struct {
	kubernetes *Kubernetes
}

func NewDiscoveryRepo(kubernetes *Kubernetes) core.DiscoveryRepo {
	return &discoveryRepo{
		kubernetes: kubernetes,
	}
}

var _ core.DiscoveryRepo = (*discoveryRepo)(nil)

func (r *discoveryRepo) Validate(group, version, res string) (schema.GroupVersionResource, error) {
	client, err := r.kubernetes.discovery()
	if err != nil {
		return schema.GroupVersionResource{}, err
	}

	gvr := schema.GroupVersionResource{
		Group:    group,
		Version:  version,
		Resource: res,
	}

	resources, err := client.ServerResourcesForGroupVersion(gvr.GroupVersion().String())
	if err != nil {
		return schema.GroupVersionResource{}, err
	}

	for i := range resources.APIResources {
		if resources.APIResources[i].Name != gvr.Resource {
			continue
		}
		if !slices.Contains(resources.APIResources[i].Verbs, "watch") {
			return schema.GroupVersionResource{}, &core.ErrInvalidInput{
				Field:   "resource",
				Message: fmt.Sprintf("%q in %s does not support watch", res, gvr.GroupVersion()),
			}
		}
		return gvr, nil
	}

	return schema.GroupVersionResource{}, &core.ErrInvalidInput{
		Field:   "resource",
		Message: fmt.Sprintf("unable to recognize %q in %s", res, gvr.GroupVersion()),
	}
}

func (r *discoveryRepo) Version() (*version.Info, error) {
	client, err := r.kubernetes.discovery()
	if err != nil {
		return nil, err
	}
	return client.ServerVersion()
}
