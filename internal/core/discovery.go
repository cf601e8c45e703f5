package core

import (
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/version"
)

type DiscoveryRepo interface {
	// Validate returns the resource if the API server serves it and
	// it supports the watch verb.
	Validate(group, version, resource string) (schema.GroupVersionResource, error)
	Version() (*version.Info, error)
}
