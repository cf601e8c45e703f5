package kubernetes

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/otterscale/otterscale-watch/internal/core"
)

type resourceRepo struct {
	kubernetes *Kubernetes
}

func NewResourceRepo(kubernetes *Kubernetes) core.ResourceRepo {
	return &resourceRepo{
		kubernetes: kubernetes,
	}
}

var _ core.ResourceRepo = (*resourceRepo)(nil)

func (r *resourceRepo) Watch(ctx context.Context, gvr schema.GroupVersionResource, opts core.WatchOptions) (core.EventSource[*unstructured.Unstructured], error) {
	client, err := r.kubernetes.dynamic()
	if err != nil {
		return nil, err
	}

	listOpts := metav1.ListOptions{
		LabelSelector:       opts.LabelSelector,
		FieldSelector:       opts.FieldSelector,
		Watch:               true,
		AllowWatchBookmarks: true,
		ResourceVersion:     opts.ResourceVersion,
	}

	if opts.SendInitialEvents {
		sendInitialEvents := true
		listOpts.ResourceVersionMatch = metav1.ResourceVersionMatchNotOlderThan
		listOpts.SendInitialEvents = &sendInitialEvents
	}

	w, err := client.Resource(gvr).Namespace(opts.Namespace).Watch(ctx, listOpts)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", gvr, wrapK8sError(err, opts.ResourceVersion))
	}

	return NewWatchSource(w, opts.ResourceVersion, opts.SendInitialEvents), nil
}
