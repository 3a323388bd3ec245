package eventloop

import (
	"fmt"
	"reflect"
	"slices"
)

// Callback is invoked for every publish on a subscribed contract.
//
// item is the published payload and captured is the subscription's current
// context. Returning a non-nil slice replaces the captured context for the
// next invocation; returning nil keeps it. A returned error (or a panic) is
// reported as a SubscriptionCallbackError and does not stop the loop.
type Callback func(sub *Subscription, item any, captured []any) ([]any, error)

// Contract is a typed event channel with an ordered list of subscriptions.
//
// Contracts are owned by the loop goroutine: once the loop is running they
// may only be subscribed to or destroyed from callbacks. Publishing is
// allowed from any goroutine.
type Contract struct {
	loop      *Loop
	id        uint64
	name      string
	payload   reflect.Type
	subs      []*Subscription
	timer     *Timer
	destroyed bool
}

// ID returns the contract's unique identifier within its loop.
func (c *Contract) ID() uint64 { return c.id }

// Name returns the contract's diagnostic name.
func (c *Contract) Name() string { return c.name }

// PayloadType returns the payload type fixed at creation, nil for contracts
// that carry no payload.
func (c *Contract) PayloadType() reflect.Type { return c.payload }

// Destroyed reports whether the contract has been destroyed.
func (c *Contract) Destroyed() bool { return c.destroyed }

// Subscribers returns the number of live (not cancelled) subscriptions,
// enabled or not.
func (c *Contract) Subscribers() int { return len(c.subs) }

// Publish is shorthand for c's loop Publish.
func (c *Contract) Publish(payload any) error {
	if c == nil {
		return ErrInvalidContract
	}
	return c.loop.Publish(c, payload)
}

// Destroy invalidates every subscription and, for timer contracts, cancels
// the timer. Destroying twice is a no-op.
func (c *Contract) Destroy() error {
	if c == nil {
		return ErrInvalidContract
	}
	if err := c.loop.checkGoroutine(); err != nil {
		return err
	}
	c.destroy()
	return nil
}

func (c *Contract) destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	for _, s := range c.subs {
		s.cancelled = true
	}
	c.subs = nil
	if c.timer != nil {
		c.loop.timers.remove(c.timer)
		c.timer.done = true
	}
}

func (c *Contract) String() string {
	return fmt.Sprintf("contract(%d %s)", c.id, c.name)
}

func (c *Contract) checkPayload(payload any) error {
	if c.payload == nil {
		if payload != nil {
			return fmt.Errorf("%w: %s takes no payload, got %T", ErrPayloadType, c.name, payload)
		}
		return nil
	}
	if payload == nil {
		switch c.payload.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice:
			return nil
		}
		return fmt.Errorf("%w: %s requires %s, got nil", ErrPayloadType, c.name, c.payload)
	}
	if t := reflect.TypeOf(payload); !t.AssignableTo(c.payload) {
		return fmt.Errorf("%w: %s requires %s, got %s", ErrPayloadType, c.name, c.payload, t)
	}
	return nil
}

func (c *Contract) removeSub(s *Subscription) {
	if i := slices.Index(c.subs, s); i >= 0 {
		c.subs = slices.Delete(c.subs, i, i+1)
	}
}

// Subscription binds a callback and its captured context to a contract.
//
// Registering the same callback twice on one contract yields two
// subscriptions, and both are invoked.
type Subscription struct {
	id        uint64
	contract  *Contract
	cb        Callback
	captured  []any
	enabled   bool
	cancelled bool
	since     uint64
}

// ID returns the subscription's identifier.
func (s *Subscription) ID() uint64 { return s.id }

// Contract returns the subscribed contract.
func (s *Subscription) Contract() *Contract { return s.contract }

// Captured returns a copy of the current captured context.
func (s *Subscription) Captured() []any { return slices.Clone(s.captured) }

// Enabled reports whether the subscription receives publishes.
func (s *Subscription) Enabled() bool { return s.enabled && !s.cancelled }

// Active reports whether the subscription has not been cancelled, either
// directly or by destruction of its contract.
func (s *Subscription) Active() bool { return !s.cancelled }

// Enable resumes delivery to a disabled subscription.
func (s *Subscription) Enable() { s.enabled = true }

// Disable suspends delivery without cancelling.
func (s *Subscription) Disable() { s.enabled = false }

// Cancel removes the subscription from its contract. If called while the
// contract is being dispatched, the subscription is skipped unless it has
// already been invoked in that pass; an in-progress invocation of the
// subscription itself runs to completion.
func (s *Subscription) Cancel() error {
	if s.cancelled {
		return nil
	}
	if err := s.contract.loop.checkGoroutine(); err != nil {
		return err
	}
	s.cancelled = true
	s.contract.removeSub(s)
	return nil
}

// invoke runs the callback, folding its returned context into s.
func (s *Subscription) invoke(item any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SubscriptionCallbackError{
				Contract:     s.contract.name,
				ContractID:   s.contract.id,
				Subscription: s.id,
				Panic:        r,
				Err:          fmt.Errorf("panic: %v", r),
			}
		}
	}()
	next, cbErr := s.cb(s, item, slices.Clone(s.captured))
	if cbErr != nil {
		return &SubscriptionCallbackError{
			Contract:     s.contract.name,
			ContractID:   s.contract.id,
			Subscription: s.id,
			Err:          cbErr,
		}
	}
	if next != nil {
		s.captured = next
	}
	return nil
}
