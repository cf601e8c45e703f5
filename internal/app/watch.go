package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/otterscale/otterscale-watch/internal/config"
	"github.com/otterscale/otterscale-watch/internal/core"
)

// WatchStatus is the caller-visible connection state of a watch.
type WatchStatus struct {
	Connected       bool            `json:"connected"`
	State           core.WatchState `json:"state"`
	ResourceVersion string          `json:"resourceVersion,omitempty"`
	Events          uint64          `json:"events"`
	LastError       string          `json:"lastError,omitempty"`
}

// eventLine is one line of output per delivered event.
type eventLine struct {
	Type            core.WatchEventType `json:"type"`
	Kind            string              `json:"kind,omitempty"`
	Namespace       string              `json:"namespace,omitempty"`
	Name            string              `json:"name,omitempty"`
	ResourceVersion string              `json:"resourceVersion,omitempty"`
}

// WatchService runs a RetryWatch for the lifetime of a context and
// writes every change event to an io.Writer as a JSON line. It
// implements transport.Listener.
type WatchService struct {
	watch  *core.RetryWatch[*unstructured.Unstructured]
	cursor string
	log    *slog.Logger

	outMu sync.Mutex
	enc   *json.Encoder

	mu        sync.Mutex
	connected bool
	events    uint64
	lastErr   error
}

// NewWatchService returns a WatchService that resumes from cursor.
func NewWatchService(open core.StreamFactory[*unstructured.Unstructured], cursor string, out io.Writer, opts ...core.RetryWatchOption) *WatchService {
	s := &WatchService{
		cursor: cursor,
		log:    slog.Default().With("component", "watch-service"),
		enc:    json.NewEncoder(out),
	}
	s.watch = core.NewRetryWatch(open, core.WatchCallbacks[*unstructured.Unstructured]{
		OnOpen:  s.onOpen,
		OnEvent: s.onEvent,
		OnError: s.onError,
	}, opts...)
	return s
}

// ProvideWatchService builds a WatchService from configuration.
func ProvideWatchService(conf *config.Config, open core.StreamFactory[*unstructured.Unstructured], out io.Writer, metrics *core.WatchMetrics) *WatchService {
	return NewWatchService(open, conf.WatchResourceVersion(), out,
		core.WithReconnectDelay(conf.WatchReconnectDelay()),
		core.WithWatchMetrics(metrics),
	)
}

// Start begins watching and blocks until ctx is cancelled.
func (s *WatchService) Start(ctx context.Context) error {
	s.log.Info("starting", "resource_version", s.cursor)
	s.watch.Start(ctx, s.cursor)

	<-ctx.Done()
	return nil
}

// Stop tears down the watch and its pending retry.
func (s *WatchService) Stop(context.Context) error {
	s.log.Info("shutting down", "resource_version", s.watch.Cursor())
	s.watch.Stop()
	return nil
}

// Status returns a snapshot of the connection state.
func (s *WatchService) Status() WatchStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := WatchStatus{
		Connected:       s.connected,
		State:           s.watch.State(),
		ResourceVersion: s.watch.Cursor(),
		Events:          s.events,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// StatusHandler serves Status as JSON.
func (s *WatchService) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		st := s.Status()
		if !st.Connected {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(st)
	})
}

func (s *WatchService) onOpen() {
	s.mu.Lock()
	reconnected := s.lastErr != nil
	s.connected = true
	s.lastErr = nil
	s.mu.Unlock()

	if reconnected {
		s.log.Info("Watch reconnected", "resource_version", s.watch.Cursor())
		return
	}
	s.log.Info("Watch connected")
}

func (s *WatchService) onEvent(e core.WatchEvent[*unstructured.Unstructured]) {
	s.mu.Lock()
	s.events++
	s.mu.Unlock()

	// Bookmarks only advance the cursor.
	if e.Type == core.WatchEventBookmark || e.Object == nil {
		return
	}

	line := eventLine{
		Type:            e.Type,
		Kind:            e.Object.GetKind(),
		Namespace:       e.Object.GetNamespace(),
		Name:            e.Object.GetName(),
		ResourceVersion: e.Object.GetResourceVersion(),
	}

	s.outMu.Lock()
	defer s.outMu.Unlock()
	if err := s.enc.Encode(line); err != nil {
		s.log.Error("failed to write event", "error", err)
	}
}

func (s *WatchService) onError(err error) {
	s.mu.Lock()
	s.connected = false
	s.lastErr = err
	s.mu.Unlock()

	var subscription string
	var failure *core.ErrStreamFailure
	if errors.As(err, &failure) {
		subscription = failure.Subscription
	}

	var expired *core.ErrCursorExpired
	if errors.As(err, &expired) {
		s.log.Warn("Resource version expired, retrying from latest",
			"subscription", subscription,
			"resource_version", expired.Cursor,
		)
		s.watch.ResetCursor("")
		return
	}

	s.log.Warn("Watch disconnected", "subscription", subscription, "error", err)
}
