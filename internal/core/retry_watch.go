package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"
)

// DefaultReconnectDelay is the fixed wait between a stream failure and
// the next connection attempt.
const DefaultReconnectDelay = 3 * time.Second

// WatchState is the lifecycle state of a RetryWatch.
type WatchState string

const (
	WatchStateIdle           WatchState = "idle"
	WatchStateConnecting     WatchState = "connecting"
	WatchStateOpen           WatchState = "open"
	WatchStateWaitingToRetry WatchState = "waiting_to_retry"
)

// Clock schedules delayed restarts. clock.RealClock satisfies it.
type Clock interface {
	AfterFunc(d time.Duration, f func()) clock.Timer
}

// WatchCallbacks are invoked by RetryWatch one at a time, on the
// goroutine that delivered the underlying stream message, and must not
// block for long. Start and Stop wait for a running callback to return,
// so a callback must not call them on its own watch; it may call
// ResetCursor, Cursor and State.
type WatchCallbacks[T Resource] struct {
	// OnOpen is called whenever a connection is (re-)established, so
	// it should clear any previously surfaced error.
	OnOpen func()
	// OnEvent is called for every data event, in stream order.
	OnEvent func(WatchEvent[T])
	// OnError is called with an *ErrStreamFailure whenever the active
	// connection fails. The retry is scheduled after it returns.
	OnError func(error)
}

// RetryWatchOption configures a RetryWatch.
type RetryWatchOption func(*retryWatchOptions)

type retryWatchOptions struct {
	delay   time.Duration
	clock   Clock
	log     *slog.Logger
	metrics *WatchMetrics
}

// WithReconnectDelay sets the fixed retry delay. Non-positive values
// keep DefaultReconnectDelay.
func WithReconnectDelay(d time.Duration) RetryWatchOption {
	return func(o *retryWatchOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithClock replaces the clock used to schedule retries.
func WithClock(c Clock) RetryWatchOption {
	return func(o *retryWatchOptions) { o.clock = c }
}

// WithWatchLogger configures a structured logger. Defaults to
// slog.Default with a "component" attribute.
func WithWatchLogger(log *slog.Logger) RetryWatchOption {
	return func(o *retryWatchOptions) { o.log = log }
}

// WithWatchMetrics records connects, failures and events.
func WithWatchMetrics(m *WatchMetrics) RetryWatchOption {
	return func(o *retryWatchOptions) { o.metrics = m }
}

// RetryWatch makes a watch stream look like a single, permanently
// available feed. It re-opens the stream after every failure, after a
// fixed delay, resuming from the newest cursor it has observed.
//
// A RetryWatch owns at most one live subscription and at most one
// pending retry timer. Both are replaced together on every Start,
// Stop and failure, guarded by an epoch counter: callbacks from a
// subscription whose epoch is no longer current are dropped. Callbacks
// run under a delivery lock that Start and Stop drain after bumping the
// epoch, so none of a superseded subscription's callbacks is running
// or starts once they return.
type RetryWatch[T Resource] struct {
	open      StreamFactory[T]
	callbacks WatchCallbacks[T]

	delay   time.Duration
	clock   Clock
	log     *slog.Logger
	metrics *WatchMetrics

	deliver sync.Mutex

	mu      sync.Mutex
	epoch   uint64
	run     uint64
	state   WatchState
	cursor  string
	ctx     context.Context
	sub     *subscription[T]
	timer   clock.Timer
	unwatch func() bool
}

type subscription[T Resource] struct {
	id     string
	source EventSource[T]
	cancel context.CancelFunc
}

// NewRetryWatch creates an idle RetryWatch around the given factory.
func NewRetryWatch[T Resource](open StreamFactory[T], callbacks WatchCallbacks[T], opts ...RetryWatchOption) *RetryWatch[T] {
	o := retryWatchOptions{
		delay: DefaultReconnectDelay,
		clock: clock.RealClock{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = slog.Default().With("component", "retry-watch")
	}

	return &RetryWatch[T]{
		open:      open,
		callbacks: callbacks,
		delay:     o.delay,
		clock:     o.clock,
		log:       o.log,
		metrics:   o.metrics,
		state:     WatchStateIdle,
	}
}

// Start tears down any active subscription and pending retry, then
// opens a new stream from cursor. Calling Start with an older cursor
// than the one last observed is an intentional reset.
//
// Cancelling ctx has the same effect as Stop.
func (w *RetryWatch[T]) Start(ctx context.Context, cursor string) {
	w.mu.Lock()
	w.run++
	release := w.resetLocked()
	w.cursor = cursor
	if ctx.Err() != nil {
		w.state = WatchStateIdle
		w.mu.Unlock()
		release()
		w.drain()
		return
	}
	w.ctx = ctx
	run, epoch := w.run, w.epoch
	w.unwatch = context.AfterFunc(ctx, func() { w.stopRun(run) })
	w.mu.Unlock()

	release()
	w.drain()
	w.connect(epoch)
}

// Stop cancels the active subscription and any pending retry. It is
// idempotent and safe to call on a watch that was never started. No
// stream is opened and no callback runs after Stop returns.
func (w *RetryWatch[T]) Stop() {
	w.mu.Lock()
	w.run++
	w.stopLocked()()
	w.drain()
}

// ResetCursor replaces the cursor the next connection attempt resumes
// from. The live subscription is left alone. Unlike Start and Stop it
// may be called from a callback.
func (w *RetryWatch[T]) ResetCursor(cursor string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cursor = cursor
}

// Cursor returns the cursor the next connection attempt would use.
func (w *RetryWatch[T]) Cursor() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cursor
}

// State returns the current lifecycle state.
func (w *RetryWatch[T]) State() WatchState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *RetryWatch[T]) stopRun(run uint64) {
	w.mu.Lock()
	if run != w.run {
		w.mu.Unlock()
		return
	}
	w.stopLocked()()
	w.drain()
}

// drain waits for a running callback to return. Callers must have
// invalidated the epoch first.
func (w *RetryWatch[T]) drain() {
	w.deliver.Lock()
	//nolint:staticcheck // SA2001: the empty critical section is the barrier.
	w.deliver.Unlock()
}

// stopLocked moves the watch to Idle and unlocks w.mu. The returned
// func releases the detached subscription.
func (w *RetryWatch[T]) stopLocked() func() {
	wasIdle := w.state == WatchStateIdle
	release := w.resetLocked()
	w.state = WatchStateIdle
	w.mu.Unlock()

	if !wasIdle {
		w.log.Debug("Watch stopped")
	}
	return release
}

// resetLocked invalidates the current epoch and detaches everything
// the watch owns. Cancelling the detached subscription happens in the
// returned func, outside the lock.
func (w *RetryWatch[T]) resetLocked() func() {
	if w.unwatch != nil {
		w.unwatch()
		w.unwatch = nil
	}
	return w.detachLocked()
}

// detachLocked bumps the epoch, stops the retry timer and detaches the
// live subscription.
func (w *RetryWatch[T]) detachLocked() func() {
	w.epoch++

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}

	sub := w.sub
	w.sub = nil
	if sub == nil {
		return func() {}
	}

	source, cancel := sub.source, sub.cancel
	return func() {
		if source != nil {
			source.Cancel()
		}
		cancel()
	}
}

func (w *RetryWatch[T]) connect(epoch uint64) {
	w.mu.Lock()
	if epoch != w.epoch {
		w.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(w.ctx)
	sub := &subscription[T]{id: uuid.NewString(), cancel: cancel}
	w.sub = sub
	w.timer = nil
	w.state = WatchStateConnecting
	cursor := w.cursor
	w.mu.Unlock()

	w.log.Debug("Opening watch stream", "subscription", sub.id, "cursor", cursor)
	w.metrics.connect()

	source, err := w.open(ctx, cursor)
	if err != nil {
		w.fail(epoch, err)
		return
	}

	w.mu.Lock()
	if epoch != w.epoch {
		// Superseded while the factory ran; whoever bumped the epoch
		// already cancelled ctx.
		w.mu.Unlock()
		source.Cancel()
		return
	}
	sub.source = source
	w.mu.Unlock()

	source.Subscribe(StreamHandlers[T]{
		OnOpen:  func() { w.handleOpen(epoch, sub.id) },
		OnData:  func(e WatchEvent[T]) { w.handleData(epoch, e) },
		OnError: func(err error) { w.fail(epoch, err) },
	})
}

func (w *RetryWatch[T]) handleOpen(epoch uint64, id string) {
	w.deliver.Lock()
	defer w.deliver.Unlock()

	w.mu.Lock()
	if epoch != w.epoch {
		w.mu.Unlock()
		return
	}
	w.state = WatchStateOpen
	w.mu.Unlock()

	w.log.Debug("Watch stream open", "subscription", id)
	if w.callbacks.OnOpen != nil {
		w.callbacks.OnOpen()
	}
}

func (w *RetryWatch[T]) handleData(epoch uint64, e WatchEvent[T]) {
	w.deliver.Lock()
	defer w.deliver.Unlock()

	w.mu.Lock()
	if epoch != w.epoch {
		w.mu.Unlock()
		return
	}
	if c := e.Cursor(); c != "" {
		w.cursor = c
	}
	w.mu.Unlock()

	w.metrics.event(e.Type)
	if w.callbacks.OnEvent != nil {
		w.callbacks.OnEvent(e)
	}
}

// fail reports a failure of the subscription at epoch and schedules
// the next attempt. Later callbacks from that subscription are dropped.
func (w *RetryWatch[T]) fail(epoch uint64, err error) {
	w.deliver.Lock()
	defer w.deliver.Unlock()

	w.mu.Lock()
	if epoch != w.epoch {
		w.mu.Unlock()
		return
	}
	failure := &ErrStreamFailure{Cursor: w.cursor, Err: err}
	if w.sub != nil {
		failure.Subscription = w.sub.id
	}
	release := w.detachLocked()
	epoch = w.epoch
	w.state = WatchStateWaitingToRetry
	w.mu.Unlock()

	release()

	w.metrics.failure()
	w.log.Warn("Watch stream failed, retrying",
		"subscription", failure.Subscription,
		"cursor", failure.Cursor,
		"retry_in", w.delay,
		"error", err,
	)
	if w.callbacks.OnError != nil {
		w.callbacks.OnError(failure)
	}

	// The cursor is read when the timer fires, so a ResetCursor from
	// OnError applies to this retry.
	w.mu.Lock()
	defer w.mu.Unlock()
	if epoch != w.epoch {
		return
	}
	w.timer = w.clock.AfterFunc(w.delay, func() { w.connect(epoch) })
}
