package kubernetes

import (
	"fmt"
	"sync"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/watch"

	"github.com/otterscale/otterscale-watch/internal/core"
)

// WatchSource adapts a client-go watch.Interface to core.EventSource.
//
// Without initial events the open signal is emitted as soon as the
// subscription starts, since a successful Watch call means the
// connection is live. With initial events (watch-list) it is emitted
// after the bookmark annotated with metav1.InitialEventsAnnotationKey,
// when the stream has caught up. Events before that bookmark are marked
// Replayed so they never move the resume cursor.
type WatchSource struct {
	watcher  watch.Interface
	cursor   string
	awaitEnd bool

	once sync.Once
	done chan struct{}
}

func NewWatchSource(w watch.Interface, cursor string, sendInitialEvents bool) *WatchSource {
	return &WatchSource{
		watcher:  w,
		cursor:   cursor,
		awaitEnd: sendInitialEvents,
		done:     make(chan struct{}),
	}
}

var _ core.EventSource[*unstructured.Unstructured] = (*WatchSource)(nil)

// Subscribe starts delivering events on a new goroutine.
func (s *WatchSource) Subscribe(h core.StreamHandlers[*unstructured.Unstructured]) {
	go s.run(h)
}

// Cancel stops the underlying watch. It does not wait for an in-flight
// handler, so it may be called from within one.
func (s *WatchSource) Cancel() {
	s.once.Do(func() {
		close(s.done)
		s.watcher.Stop()
	})
}

func (s *WatchSource) cancelled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *WatchSource) run(h core.StreamHandlers[*unstructured.Unstructured]) {
	defer s.Cancel()

	opened := !s.awaitEnd
	if opened {
		h.OnOpen()
	}

	for {
		var (
			ev watch.Event
			ok bool
		)
		select {
		case <-s.done:
			return
		case ev, ok = <-s.watcher.ResultChan():
		}

		if s.cancelled() {
			return
		}
		if !ok {
			h.OnError(core.ErrWatchClosed)
			return
		}

		switch ev.Type {
		case watch.Added, watch.Modified, watch.Deleted, watch.Bookmark:
			obj, isObj := ev.Object.(*unstructured.Unstructured)
			if !isObj {
				h.OnError(fmt.Errorf("unexpected watch object %T", ev.Object))
				return
			}
			end := !opened && ev.Type == watch.Bookmark && isInitialEventsEnd(obj)

			// Until the initial listing ends, versions are those of the
			// listed objects, in no particular order.
			replayed := !opened && !end
			if c := obj.GetResourceVersion(); c != "" && !replayed {
				s.cursor = c
			}

			h.OnData(core.WatchEvent[*unstructured.Unstructured]{
				Type:     core.WatchEventType(ev.Type),
				Object:   obj,
				Replayed: replayed,
			})

			if end && !s.cancelled() {
				opened = true
				h.OnOpen()
			}

		case watch.Error:
			h.OnError(wrapK8sError(apierrors.FromObject(ev.Object), s.cursor))
			return

		default:
			h.OnError(fmt.Errorf("unknown watch event type %q", ev.Type))
			return
		}
	}
}

func isInitialEventsEnd(obj *unstructured.Unstructured) bool {
	return obj.GetAnnotations()[metav1.InitialEventsAnnotationKey] == "true"
}
