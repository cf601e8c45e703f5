package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/otterscale/otterscale-watch/internal/core"
)

var upgrader = websocket.Upgrader{}

// script is run once per accepted connection with the requested cursor.
type script func(conn *websocket.Conn, cursor string)

func newServer(t *testing.T, scripts ...script) (string, func() []string) {
	t.Helper()

	var (
		mu      sync.Mutex
		cursors []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		mu.Lock()
		cursors = append(cursors, r.URL.Query().Get("resourceVersion"))
		n := len(cursors)
		mu.Unlock()

		if n <= len(scripts) {
			scripts[n-1](conn, r.URL.Query().Get("resourceVersion"))
			return
		}
		// Keep later connections open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/watch"
	return url, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), cursors...)
	}
}

func writeFrames(t *testing.T, conn *websocket.Conn, frames ...string) {
	for _, f := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			t.Errorf("write frame: %v", err)
			return
		}
	}
}

func closeNormally(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

// waitForClose blocks until the client side of conn is gone.
func waitForClose(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func podFrame(typ, rv string) string {
	return `{"type":"` + typ + `","object":{"apiVersion":"v1","kind":"Pod","metadata":{"name":"p","namespace":"default","resourceVersion":"` + rv + `"}}}`
}

type collector struct {
	opens  chan struct{}
	events chan core.WatchEvent[*unstructured.Unstructured]
	errs   chan error
}

func newCollector() *collector {
	return &collector{
		opens:  make(chan struct{}, 16),
		events: make(chan core.WatchEvent[*unstructured.Unstructured], 16),
		errs:   make(chan error, 16),
	}
}

func (c *collector) handlers() core.StreamHandlers[*unstructured.Unstructured] {
	return core.StreamHandlers[*unstructured.Unstructured]{
		OnOpen:  func() { c.opens <- struct{}{} },
		OnData:  func(e core.WatchEvent[*unstructured.Unstructured]) { c.events <- e },
		OnError: func(err error) { c.errs <- err },
	}
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
		var zero T
		return zero
	}
}

func TestFactory_RejectsNonWebSocketURL(t *testing.T) {
	_, err := NewFactory("http://example.com/watch")
	var invalid *core.ErrInvalidInput
	require.True(t, errors.As(err, &invalid), "got %v", err)
}

func TestSource_DeliversFramesInOrder(t *testing.T) {
	url, cursors := newServer(t, func(conn *websocket.Conn, _ string) {
		writeFrames(t, conn,
			`{"type":"OPEN"}`,
			podFrame("ADDED", "2"),
			podFrame("MODIFIED", "3"),
			`{"type":"BOOKMARK"}`,
		)
		waitForClose(conn)
	})

	f, err := NewFactory(url)
	require.NoError(t, err)

	src, err := f.Open(context.Background(), "1")
	require.NoError(t, err)
	defer src.Cancel()

	c := newCollector()
	src.Subscribe(c.handlers())

	recv(t, c.opens)
	e := recv(t, c.events)
	require.Equal(t, core.WatchEventAdded, e.Type)
	require.Equal(t, "2", e.Cursor())
	e = recv(t, c.events)
	require.Equal(t, core.WatchEventModified, e.Type)
	require.Equal(t, "3", e.Cursor())

	// An empty data event is still data, never an open signal.
	e = recv(t, c.events)
	require.Equal(t, core.WatchEventBookmark, e.Type)
	require.Nil(t, e.Object)
	require.Empty(t, c.opens)

	require.Equal(t, []string{"1"}, cursors())
}

func TestSource_ExpiredStatusFrame(t *testing.T) {
	url, _ := newServer(t, func(conn *websocket.Conn, _ string) {
		writeFrames(t, conn,
			`{"type":"OPEN"}`,
			podFrame("ADDED", "9"),
			`{"type":"ERROR","object":{"kind":"Status","apiVersion":"v1","status":"Failure","reason":"Expired","code":410,"message":"too old"}}`,
		)
		waitForClose(conn)
	})

	f, err := NewFactory(url)
	require.NoError(t, err)
	src, err := f.Open(context.Background(), "")
	require.NoError(t, err)
	defer src.Cancel()

	c := newCollector()
	src.Subscribe(c.handlers())

	recv(t, c.opens)
	recv(t, c.events)

	var expired *core.ErrCursorExpired
	err = recv(t, c.errs)
	require.True(t, errors.As(err, &expired), "got %v", err)
	require.Equal(t, "9", expired.Cursor)
}

func TestSource_NormalCloseIsWatchClosed(t *testing.T) {
	url, _ := newServer(t, func(conn *websocket.Conn, _ string) {
		writeFrames(t, conn, `{"type":"OPEN"}`)
		closeNormally(conn)
	})

	f, err := NewFactory(url)
	require.NoError(t, err)
	src, err := f.Open(context.Background(), "")
	require.NoError(t, err)
	defer src.Cancel()

	c := newCollector()
	src.Subscribe(c.handlers())

	recv(t, c.opens)
	require.ErrorIs(t, recv(t, c.errs), core.ErrWatchClosed)
}

func TestSource_UnknownFrameType(t *testing.T) {
	url, _ := newServer(t, func(conn *websocket.Conn, _ string) {
		writeFrames(t, conn, `{"type":"SURPRISE"}`)
		waitForClose(conn)
	})

	f, err := NewFactory(url)
	require.NoError(t, err)
	src, err := f.Open(context.Background(), "")
	require.NoError(t, err)
	defer src.Cancel()

	c := newCollector()
	src.Subscribe(c.handlers())

	require.ErrorContains(t, recv(t, c.errs), "unknown frame type")
}

func TestFactory_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f, err := NewFactory("ws" + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)

	_, err = f.Open(context.Background(), "")
	require.ErrorContains(t, err, "status 503")
}

func TestRetryWatch_ResumesOverWebSocket(t *testing.T) {
	url, cursors := newServer(t,
		func(conn *websocket.Conn, _ string) {
			writeFrames(t, conn, `{"type":"OPEN"}`, podFrame("ADDED", "10"), podFrame("MODIFIED", "11"))
			closeNormally(conn)
		},
		func(conn *websocket.Conn, _ string) {
			writeFrames(t, conn, `{"type":"OPEN"}`, podFrame("MODIFIED", "12"))
			waitForClose(conn)
		},
	)

	f, err := NewFactory(url)
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		opens  int
		events []string
		errs   []error
	)
	w := core.NewRetryWatch(f.Open, core.WatchCallbacks[*unstructured.Unstructured]{
		OnOpen: func() {
			mu.Lock()
			defer mu.Unlock()
			opens++
		},
		OnEvent: func(e core.WatchEvent[*unstructured.Unstructured]) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, e.Cursor())
		},
		OnError: func(err error) {
			mu.Lock()
			defer mu.Unlock()
			errs = append(errs, err)
		},
	}, core.WithReconnectDelay(10*time.Millisecond))
	defer w.Stop()

	w.Start(context.Background(), "")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 3 && opens == 2
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	require.Equal(t, []string{"10", "11", "12"}, events)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], core.ErrWatchClosed)
	mu.Unlock()

	require.Equal(t, []string{"", "11"}, cursors())
	require.Equal(t, "12", w.Cursor())
}
