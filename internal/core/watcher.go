package core

import (
	"context"
	"reflect"
)

// WatchEventType represents the type of a resource watch event.
// This is a domain-level type that decouples the core layer from
// k8s.io/apimachinery/pkg/watch.EventType.
type WatchEventType string

const (
	// WatchEventOpen marks a stream message without an object meaning
	// the connection is live and caught up. Sources translate it into
	// StreamHandlers.OnOpen.
	WatchEventOpen WatchEventType = "OPEN"

	WatchEventAdded    WatchEventType = "ADDED"
	WatchEventModified WatchEventType = "MODIFIED"
	WatchEventDeleted  WatchEventType = "DELETED"
	WatchEventBookmark WatchEventType = "BOOKMARK"
)

// IsData reports whether events of this type carry an object.
func (t WatchEventType) IsData() bool {
	switch t {
	case WatchEventAdded, WatchEventModified, WatchEventDeleted, WatchEventBookmark:
		return true
	}
	return false
}

// Resource is anything carrying a resource version in its metadata.
// *unstructured.Unstructured and every metav1.Object satisfy it.
type Resource interface {
	GetResourceVersion() string
}

// WatchEvent represents a single data event from a resource watch
// stream. The open signal is never a WatchEvent; it travels through
// StreamHandlers.OnOpen instead, so an empty data event can never be
// mistaken for it.
type WatchEvent[T Resource] struct {
	Type   WatchEventType
	Object T
	// Replayed marks objects streamed as part of an initial listing.
	// Their versions are unordered and are not resume points.
	Replayed bool
}

// Cursor returns the resume token carried by the event's object, or
// "" when the event must not move the cursor.
func (e WatchEvent[T]) Cursor() string {
	if e.Replayed || isNil(e.Object) {
		return ""
	}
	return e.Object.GetResourceVersion()
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// StreamHandlers are registered on an EventSource. A source calls
// them sequentially, in stream order, and calls OnError at most once.
type StreamHandlers[T Resource] struct {
	OnOpen  func()
	OnData  func(WatchEvent[T])
	OnError func(error)
}

// EventSource is a single subscription to a watch stream. It can be
// implemented over any transport (Kubernetes watch, WebSocket, ...).
type EventSource[T Resource] interface {
	// Subscribe registers the handlers and starts delivery. It must
	// not block on the stream itself.
	Subscribe(StreamHandlers[T])
	// Cancel terminates the subscription. It is safe to call more
	// than once and after the stream has failed.
	Cancel()
}

// StreamFactory opens a fresh EventSource resuming from cursor. An
// empty cursor means "watch from latest". The context is cancelled
// when the subscription is torn down.
type StreamFactory[T Resource] func(ctx context.Context, cursor string) (EventSource[T], error)
