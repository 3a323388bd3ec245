// Package eventloop implements a single-threaded cooperative scheduler over
// two event sources, external ingress (input events, publishes and tasks
// from other goroutines) and timer deadlines, together with the contract
// based publish/subscribe registry that everything else is built on.
//
// # Threading
//
// The goroutine that calls Run becomes the loop goroutine. Every callback,
// timer firing and contract mutation happens there. Before Run is called the
// setting-up goroutine is treated as the only thread, so publishes dispatch
// synchronously. While the loop is running, publishes from other goroutines
// are queued for the next iteration.
//
// # Ordering
//
// Subscriptions of one contract are invoked in registration order. Within a
// single iteration expired timers (by deadline, then creation order) are
// dispatched before ingress, which is processed in FIFO order.
package eventloop

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/viewloop/internal/goroutineid"
	"github.com/joeycumines/viewloop/internal/input"
)

type loopState int32

const (
	stateAwake loopState = iota
	stateRunning
	stateTerminated
)

// task is a unit of ingress work: either a function or a deferred publish.
type task struct {
	fn       func()
	contract *Contract
	payload  any
}

// Loop is the event loop. Create one with New; a Loop runs at most once.
type Loop struct {
	_ [0]func()

	logger  *slog.Logger
	onError func(*SubscriptionCallbackError)

	owner goroutineid.Owner
	state atomic.Int32
	stop  atomic.Bool
	done  chan struct{}
	wake  chan struct{}

	ingressMu sync.Mutex
	ingress   []task

	ids        atomic.Uint64
	timers     timerManager
	input      *Contract
	iterations atomic.Uint64
	// current is the iteration being run, zero between iterations.
	current uint64
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used to report callback failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithErrorHandler registers a function receiving every callback failure,
// after it has been logged.
func WithErrorHandler(fn func(*SubscriptionCallbackError)) Option {
	return func(l *Loop) {
		l.onError = fn
	}
}

// New creates a loop. The loop's input contract (see Input) exists from the
// start.
func New(opts ...Option) *Loop {
	l := &Loop{
		logger: slog.Default(),
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.input = l.NewContract("input", reflect.TypeFor[input.Event]())
	return l
}

// NewContract creates a contract whose payload type is fixed to payload
// (nil for no payload).
func (l *Loop) NewContract(name string, payload reflect.Type) *Contract {
	return &Contract{
		loop:    l,
		id:      l.ids.Add(1),
		name:    name,
		payload: payload,
	}
}

// NewContractOf creates a contract carrying payloads of type T.
func NewContractOf[T any](l *Loop, name string) *Contract {
	return l.NewContract(name, reflect.TypeFor[T]())
}

// Input returns the contract on which raw input events are published, one
// iteration after they are posted.
func (l *Loop) Input() *Contract { return l.input }

// Logger returns the loop's logger.
func (l *Loop) Logger() *slog.Logger { return l.logger }

// Subscribe registers cb on c with the given captured context. The
// subscription is FIFO-ordered after existing ones. Subscribing from inside
// a callback is allowed; the new subscription receives nothing until
// the next iteration.
func (l *Loop) Subscribe(c *Contract, cb Callback, captured ...any) (*Subscription, error) {
	if c == nil {
		return nil, ErrInvalidContract
	}
	if cb == nil {
		return nil, ErrNilCallback
	}
	if c.loop != l {
		return nil, ErrForeignContract
	}
	if err := l.checkGoroutine(); err != nil {
		return nil, err
	}
	if c.destroyed {
		return nil, fmt.Errorf("%w: %s", ErrContractDestroyed, c.name)
	}
	s := &Subscription{
		id:       l.ids.Add(1),
		contract: c,
		cb:       cb,
		captured: slices.Clone(captured),
		enabled:  true,
		since:    l.current,
	}
	c.subs = append(c.subs, s)
	return s, nil
}

// Timer creates a timer of the given kind and returns its firing contract.
// The first deadline is one period from now. Timers created inside a
// callback can fire no earlier than the next iteration.
func (l *Loop) Timer(kind TimerKind, period time.Duration) (*Contract, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPeriod, period)
	}
	if kind != Oneshot && kind != Periodic {
		return nil, fmt.Errorf("eventloop: unknown timer kind %v", kind)
	}
	if err := l.checkGoroutine(); err != nil {
		return nil, err
	}
	if loopState(l.state.Load()) == stateTerminated {
		return nil, ErrLoopTerminated
	}
	c := l.NewContract(fmt.Sprintf("timer(%s %v)", kind, period), reflect.TypeFor[uint64]())
	t := &Timer{kind: kind, period: period, contract: c, index: -1}
	c.timer = t
	l.timers.add(t, time.Now())
	return c, nil
}

// TimerHandle returns the timer behind a contract created by Timer.
func (l *Loop) TimerHandle(c *Contract) (*Timer, bool) {
	if c == nil || c.timer == nil {
		return nil, false
	}
	return c.timer, true
}

// PendingTimers returns the number of scheduled timers.
func (l *Loop) PendingTimers() int { return l.timers.len() }

// Publish delivers payload to every enabled subscription of c. On the loop
// goroutine (or before the loop starts) dispatch is synchronous and
// complete when Publish returns. From any other goroutine while the loop is
// running, the publish is queued for the next iteration.
func (l *Loop) Publish(c *Contract, payload any) error {
	if c == nil {
		return ErrInvalidContract
	}
	if c.loop != l {
		return ErrForeignContract
	}
	if err := c.checkPayload(payload); err != nil {
		return err
	}
	if l.owner.Owned() && !l.owner.IsCurrent() {
		return l.enqueue(task{contract: c, payload: payload})
	}
	if c.destroyed {
		return fmt.Errorf("%w: %s", ErrContractDestroyed, c.name)
	}
	l.dispatch(c, payload)
	return nil
}

// PostInput queues a raw input event. It is safe to call from any goroutine
// and is always delivered on a later iteration, via Input.
func (l *Loop) PostInput(ev input.Event) error {
	if !ev.Key.Valid() || !ev.Type.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidInput, ev)
	}
	return l.enqueue(task{contract: l.input, payload: ev})
}

// Submit queues fn to run on the loop goroutine. It is safe to call from any
// goroutine.
func (l *Loop) Submit(fn func()) error {
	if fn == nil {
		return nil
	}
	return l.enqueue(task{fn: fn})
}

func (l *Loop) enqueue(t task) error {
	l.ingressMu.Lock()
	if loopState(l.state.Load()) == stateTerminated {
		l.ingressMu.Unlock()
		return ErrLoopTerminated
	}
	l.ingress = append(l.ingress, t)
	l.ingressMu.Unlock()
	l.signal()
	return nil
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run drives the loop on the calling goroutine until Stop is called or ctx
// is cancelled. Work selected for the iteration in progress when Stop is
// called still completes. Run returns nil after Stop and ctx.Err() after
// cancellation.
func (l *Loop) Run(ctx context.Context) error {
	if l.owner.IsCurrent() {
		return ErrReentrantRun
	}
	if !l.state.CompareAndSwap(int32(stateAwake), int32(stateRunning)) {
		if loopState(l.state.Load()) == stateTerminated {
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}
	l.owner.Claim()
	defer func() {
		l.ingressMu.Lock()
		l.state.Store(int32(stateTerminated))
		dropped := len(l.ingress)
		l.ingress = nil
		l.ingressMu.Unlock()
		l.owner.Release()
		if dropped > 0 {
			l.logger.Debug("eventloop: dropped queued work on exit", slog.Int("tasks", dropped))
		}
		close(l.done)
	}()

	for {
		if l.stop.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		l.wait(ctx)
		if ctx.Err() != nil && !l.stop.Load() {
			continue
		}
		l.tick(time.Now())
	}
}

// Stop requests termination. It may be called from callbacks or from other
// goroutines, any number of times.
func (l *Loop) Stop() {
	l.stop.Store(true)
	l.signal()
}

// Stopped returns a channel closed once Run has returned.
func (l *Loop) Stopped() <-chan struct{} { return l.done }

// Running reports whether Run is in progress.
func (l *Loop) Running() bool {
	return loopState(l.state.Load()) == stateRunning
}

// Iterations returns the number of completed iterations.
func (l *Loop) Iterations() uint64 { return l.iterations.Load() }

// wait blocks until the nearest of the next timer deadline and the next
// ingress signal. An idle loop waits indefinitely.
func (l *Loop) wait(ctx context.Context) {
	l.ingressMu.Lock()
	pending := len(l.ingress)
	l.ingressMu.Unlock()
	if pending > 0 || l.stop.Load() {
		return
	}

	var timeout <-chan time.Time
	if deadline, ok := l.timers.next(); ok {
		d := time.Until(deadline)
		if d <= 0 {
			return
		}
		t := time.NewTimer(d)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-l.wake:
	case <-timeout:
	case <-ctx.Done():
	}
}

// tick runs one iteration: due timers first, then the ingress batch that
// was queued when the iteration started.
func (l *Loop) tick(now time.Time) {
	l.current = l.iterations.Add(1)
	defer func() { l.current = 0 }()

	for _, t := range l.timers.expire(now) {
		l.dispatch(t.contract, t.ticks)
		if t.kind == Oneshot {
			t.contract.destroy()
		}
	}

	l.ingressMu.Lock()
	batch := l.ingress
	l.ingress = nil
	l.ingressMu.Unlock()

	for i, t := range batch {
		l.execute(t)
		batch[i] = task{}
	}
}

func (l *Loop) execute(t task) {
	if t.fn != nil {
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("eventloop: task panicked", slog.Any("panic", r))
			}
		}()
		t.fn()
		return
	}
	if t.contract.destroyed {
		l.logger.Debug("eventloop: dropping publish to destroyed contract", slog.String("contract", t.contract.name))
		return
	}
	l.dispatch(t.contract, t.payload)
}

// dispatch invokes the enabled subscriptions of c from a snapshot taken
// before the first invocation. Subscriptions made during the current
// iteration are skipped.
func (l *Loop) dispatch(c *Contract, payload any) {
	if c.destroyed || len(c.subs) == 0 {
		return
	}
	snapshot := slices.Clone(c.subs)
	for _, s := range snapshot {
		if s.cancelled || !s.enabled || (s.since != 0 && s.since == l.current) {
			continue
		}
		if err := s.invoke(payload); err != nil {
			l.report(err)
		}
	}
}

func (l *Loop) report(err error) {
	cbErr, ok := err.(*SubscriptionCallbackError)
	if !ok {
		cbErr = &SubscriptionCallbackError{Err: err}
	}
	l.logger.Error("eventloop: subscription callback failed",
		slog.String("contract", cbErr.Contract),
		slog.Uint64("subscription", cbErr.Subscription),
		slog.Any("error", cbErr.Err),
	)
	if l.onError != nil {
		l.onError(cbErr)
	}
}

// checkGoroutine rejects mutation of loop-owned state from a foreign
// goroutine while the loop is running.
func (l *Loop) checkGoroutine() error {
	if l.owner.Owned() && !l.owner.IsCurrent() {
		return ErrNotLoopGoroutine
	}
	return nil
}
