// Package ws implements core.EventSource over a WebSocket connection.
//
// Every text frame is a JSON object with a "type" field. "OPEN" frames
// carry nothing and mark the connection as live; ADDED, MODIFIED,
// DELETED and BOOKMARK frames carry the Kubernetes object under
// "object"; ERROR frames carry a metav1.Status and end the stream.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/otterscale/otterscale-watch/internal/core"
	"github.com/otterscale/otterscale-watch/internal/kubernetes"
)

const (
	// FrameTypeError ends the stream with the Status in "object".
	FrameTypeError core.WatchEventType = "ERROR"

	maxFrameSize = 16 << 20 // 16 MiB
)

// Frame is the wire representation of one stream message.
type Frame struct {
	Type   core.WatchEventType `json:"type"`
	Object json.RawMessage     `json:"object,omitempty"`
}

// Dialer opens WebSocket connections. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d Dialer) FactoryOption {
	return func(f *Factory) { f.dialer = d }
}

// WithHeader adds headers to every handshake request.
func WithHeader(h http.Header) FactoryOption {
	return func(f *Factory) { f.header = h }
}

// WithLogger configures a structured logger. Defaults to slog.Default
// with a "component" attribute.
func WithLogger(log *slog.Logger) FactoryOption {
	return func(f *Factory) { f.log = log }
}

// Factory opens WebSocket watch streams. The cursor is passed as the
// resourceVersion query parameter.
type Factory struct {
	url    *url.URL
	dialer Dialer
	header http.Header
	log    *slog.Logger
}

func NewFactory(rawURL string, opts ...FactoryOption) (*Factory, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &core.ErrInvalidInput{Field: "websocket url", Message: err.Error()}
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, &core.ErrInvalidInput{Field: "websocket url", Message: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}

	f := &Factory{
		url:    u,
		dialer: websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = slog.Default().With("component", "ws-source")
	}
	return f, nil
}

// Open satisfies core.StreamFactory.
func (f *Factory) Open(ctx context.Context, cursor string) (core.EventSource[*unstructured.Unstructured], error) {
	u := *f.url
	q := u.Query()
	q.Del("resourceVersion")
	if cursor != "" {
		q.Set("resourceVersion", cursor)
	}
	u.RawQuery = q.Encode()

	conn, resp, err := f.dialer.DialContext(ctx, u.String(), f.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Redacted(), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	conn.SetReadLimit(maxFrameSize)

	f.log.Debug("WebSocket watch connected", "url", u.Redacted())
	return NewSource(conn, cursor), nil
}

// Source is a single WebSocket watch subscription.
type Source struct {
	conn   *websocket.Conn
	cursor string

	once sync.Once
	done chan struct{}
}

func NewSource(conn *websocket.Conn, cursor string) *Source {
	return &Source{
		conn:   conn,
		cursor: cursor,
		done:   make(chan struct{}),
	}
}

var _ core.EventSource[*unstructured.Unstructured] = (*Source)(nil)

// Subscribe starts the read loop on a new goroutine.
func (s *Source) Subscribe(h core.StreamHandlers[*unstructured.Unstructured]) {
	go s.run(h)
}

// Cancel closes the connection without waiting for the read loop.
func (s *Source) Cancel() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *Source) cancelled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Source) run(h core.StreamHandlers[*unstructured.Unstructured]) {
	defer s.Cancel()

	for {
		var frame Frame
		err := s.conn.ReadJSON(&frame)
		if s.cancelled() {
			return
		}
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.OnError(core.ErrWatchClosed)
				return
			}
			h.OnError(fmt.Errorf("read frame: %w", err))
			return
		}

		if err := s.dispatch(frame, h); err != nil {
			h.OnError(err)
			return
		}
	}
}

var errStreamEnded = errors.New("stream ended by server")

func (s *Source) dispatch(frame Frame, h core.StreamHandlers[*unstructured.Unstructured]) error {
	switch {
	case frame.Type == core.WatchEventOpen:
		h.OnOpen()
		return nil

	case frame.Type.IsData():
		e := core.WatchEvent[*unstructured.Unstructured]{Type: frame.Type}
		if len(frame.Object) > 0 && string(frame.Object) != "null" {
			obj := &unstructured.Unstructured{}
			if err := obj.UnmarshalJSON(frame.Object); err != nil {
				return fmt.Errorf("decode %s object: %w", frame.Type, err)
			}
			if c := obj.GetResourceVersion(); c != "" {
				s.cursor = c
			}
			e.Object = obj
		}
		h.OnData(e)
		return nil

	case frame.Type == FrameTypeError:
		var status metav1.Status
		if err := json.Unmarshal(frame.Object, &status); err != nil {
			return fmt.Errorf("%w: undecodable status: %v", errStreamEnded, err)
		}
		return kubernetes.FromStatus(&status, s.cursor)
	}

	return fmt.Errorf("unknown frame type %q", frame.Type)
}
