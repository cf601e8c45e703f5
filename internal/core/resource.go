package core

import (
	"context"
	"sync"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/singleflight"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// WatchOptions selects which objects a watch stream delivers.
type WatchOptions struct {
	Namespace     string
	LabelSelector string
	FieldSelector string
	// ResourceVersion is the resume cursor. Empty means "from latest".
	ResourceVersion string
	// SendInitialEvents asks the server to stream the current state
	// first and mark its end with a bookmark (watch-list).
	SendInitialEvents bool
}

//nolint:revive // allows this exported struct name.
type ResourceRepo interface {
	Watch(ctx context.Context, gvr schema.GroupVersionResource, opts WatchOptions) (EventSource[*unstructured.Unstructured], error)
}

type WatchUseCase struct {
	discovery DiscoveryRepo
	resource  ResourceRepo

	featureCache   sync.Map
	featureFlights singleflight.Group
}

func NewWatchUseCase(discovery DiscoveryRepo, resource ResourceRepo) *WatchUseCase {
	return &WatchUseCase{
		discovery: discovery,
		resource:  resource,
	}
}

func (uc *WatchUseCase) Validate(group, version, resource string) (schema.GroupVersionResource, error) {
	if resource == "" {
		return schema.GroupVersionResource{}, &ErrInvalidInput{Field: "resource", Message: "must not be empty"}
	}
	if version == "" {
		return schema.GroupVersionResource{}, &ErrInvalidInput{Field: "version", Message: "must not be empty"}
	}
	return uc.discovery.Validate(group, version, resource)
}

// StreamFactory returns a factory opening Kubernetes watches on gvr.
// The cursor passed by RetryWatch overrides opts.ResourceVersion.
func (uc *WatchUseCase) StreamFactory(gvr schema.GroupVersionResource, opts WatchOptions) StreamFactory[*unstructured.Unstructured] {
	return func(ctx context.Context, cursor string) (EventSource[*unstructured.Unstructured], error) {
		o := opts
		o.ResourceVersion = cursor
		o.SendInitialEvents = false

		// Resuming from a cursor must not replay the current state.
		if cursor == "" {
			watchList, err := uc.watchListFeature()
			if err != nil {
				return nil, err
			}
			o.SendInitialEvents = watchList
		}

		return uc.resource.Watch(ctx, gvr, o)
	}
}

const watchListFeatureKey = "watch-list"

func (uc *WatchUseCase) watchListFeature() (bool, error) {
	if v, ok := uc.featureCache.Load(watchListFeatureKey); ok {
		return v.(bool), nil
	}

	v, err, _ := uc.featureFlights.Do(watchListFeatureKey, func() (any, error) {
		version, err := uc.discovery.Version()
		if err != nil {
			return false, err
		}

		kubeVersion, err := semver.NewVersion(version.String())
		if err != nil {
			return false, err
		}

		// https://kubernetes.io/docs/reference/using-api/api-concepts/#streaming-lists
		// v1.34 beta default on
		watchListVersion, err := semver.NewVersion("v1.34.0")
		if err != nil {
			return false, err
		}

		enabled := kubeVersion.GreaterThanEqual(watchListVersion)
		uc.featureCache.Store(watchListFeatureKey, enabled)

		return enabled, nil
	})
	if err != nil {
		return false, err
	}

	return v.(bool), nil
}
