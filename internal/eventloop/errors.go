package eventloop

import (
	"errors"
	"fmt"
)

var (
	// ErrLoopAlreadyRunning is returned when Run is called on a loop that is already running.
	ErrLoopAlreadyRunning = errors.New("eventloop: loop is already running")

	// ErrLoopTerminated is returned when operations are attempted on a terminated loop.
	ErrLoopTerminated = errors.New("eventloop: loop has been terminated")

	// ErrReentrantRun is returned when Run is called from within the loop itself.
	ErrReentrantRun = errors.New("eventloop: cannot call Run() from within the loop")

	// ErrNotLoopGoroutine is returned when a loop-owned structure is mutated
	// from another goroutine while the loop is running.
	ErrNotLoopGoroutine = errors.New("eventloop: must be called from the loop goroutine")

	// ErrInvalidContract is returned for a nil contract.
	ErrInvalidContract = errors.New("eventloop: invalid contract")

	// ErrContractDestroyed is returned when subscribing or publishing to a destroyed contract.
	ErrContractDestroyed = errors.New("eventloop: contract has been destroyed")

	// ErrForeignContract is returned when a contract created by one loop is used with another.
	ErrForeignContract = errors.New("eventloop: contract belongs to another loop")

	// ErrPayloadType is returned when a payload does not match the contract's payload type.
	ErrPayloadType = errors.New("eventloop: payload type mismatch")

	// ErrNilCallback is returned when subscribing a nil callback.
	ErrNilCallback = errors.New("eventloop: nil callback")

	// ErrInvalidPeriod is returned when a timer period is not positive.
	ErrInvalidPeriod = errors.New("eventloop: timer period must be positive")

	// ErrInvalidInput is returned by PostInput for unknown keys or types.
	ErrInvalidInput = errors.New("eventloop: invalid input event")
)

// SubscriptionCallbackError describes a subscription callback that failed
// during dispatch, either by returning an error or by panicking. The loop
// reports it and continues.
type SubscriptionCallbackError struct {
	// Contract is the name of the contract being dispatched.
	Contract string
	// ContractID identifies the contract.
	ContractID uint64
	// Subscription identifies the failing subscription.
	Subscription uint64
	// Panic holds the recovered value when the callback panicked.
	Panic any
	// Err is the returned error, or a description of the panic.
	Err error
}

func (e *SubscriptionCallbackError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("eventloop: subscription %d on %q panicked: %v", e.Subscription, e.Contract, e.Panic)
	}
	return fmt.Sprintf("eventloop: subscription %d on %q failed: %v", e.Subscription, e.Contract, e.Err)
}

func (e *SubscriptionCallbackError) Unwrap() error {
	return e.Err
}
