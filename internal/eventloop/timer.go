package eventloop

import (
	"container/heap"
	"fmt"
	"strings"
	"time"
)

// TimerKind selects between single-shot and repeating timers.
type TimerKind int

const (
	// Oneshot timers fire once and are then destroyed.
	Oneshot TimerKind = iota
	// Periodic timers fire every period until cancelled.
	Periodic
)

func (k TimerKind) String() string {
	switch k {
	case Oneshot:
		return "oneshot"
	case Periodic:
		return "periodic"
	default:
		return fmt.Sprintf("TimerKind(%d)", int(k))
	}
}

// ParseTimerKind parses "oneshot" or "periodic".
func ParseTimerKind(s string) (TimerKind, error) {
	switch strings.ToLower(s) {
	case "oneshot":
		return Oneshot, nil
	case "periodic":
		return Periodic, nil
	}
	return 0, fmt.Errorf("eventloop: unknown timer kind %q", s)
}

// Timer is a scheduled firing of a contract. Its contract's payload is the
// uint64 number of times the timer has fired, starting at 1.
type Timer struct {
	kind     TimerKind
	period   time.Duration
	deadline time.Time
	seq      uint64
	ticks    uint64
	contract *Contract
	index    int
	done     bool
}

// Kind returns the timer kind.
func (t *Timer) Kind() TimerKind { return t.kind }

// Period returns the timer period.
func (t *Timer) Period() time.Duration { return t.period }

// Deadline returns the next scheduled fire time. It is only meaningful while
// the timer is active.
func (t *Timer) Deadline() time.Time { return t.deadline }

// Ticks returns how many times the timer has fired.
func (t *Timer) Ticks() uint64 { return t.ticks }

// Contract returns the firing contract.
func (t *Timer) Contract() *Contract { return t.contract }

// Active reports whether the timer can still fire.
func (t *Timer) Active() bool { return !t.done }

// Cancel stops the timer and destroys its contract.
func (t *Timer) Cancel() error {
	return t.contract.Destroy()
}

// timerHeap is a min-heap ordered by deadline, then creation order.
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// timerManager tracks pending timers and computes the next wake deadline.
// All methods take the current time explicitly.
type timerManager struct {
	heap timerHeap
	seq  uint64
}

func (m *timerManager) add(t *Timer, now time.Time) {
	m.seq++
	t.seq = m.seq
	t.deadline = now.Add(t.period)
	heap.Push(&m.heap, t)
}

func (m *timerManager) remove(t *Timer) {
	if t.index >= 0 && t.index < len(m.heap) && m.heap[t.index] == t {
		heap.Remove(&m.heap, t.index)
	}
}

// next returns the earliest pending deadline.
func (m *timerManager) next() (time.Time, bool) {
	if len(m.heap) == 0 {
		return time.Time{}, false
	}
	return m.heap[0].deadline, true
}

func (m *timerManager) len() int { return len(m.heap) }

// expire pops every timer due at now, in deadline order. Periodic timers are
// rescheduled on their absolute grid before being returned: deadlines that
// were missed entirely are skipped rather than fired in a burst. Oneshot
// timers are marked done. Each returned timer has had its tick count
// incremented.
func (m *timerManager) expire(now time.Time) []*Timer {
	var due []*Timer
	for len(m.heap) > 0 && !m.heap[0].deadline.After(now) {
		due = append(due, heap.Pop(&m.heap).(*Timer))
	}
	for _, t := range due {
		t.ticks++
		if t.kind == Oneshot {
			t.done = true
			continue
		}
		t.deadline = nextDeadline(t.deadline, t.period, now)
		heap.Push(&m.heap, t)
	}
	return due
}

// nextDeadline advances deadline by whole periods until it is after now.
func nextDeadline(deadline time.Time, period time.Duration, now time.Time) time.Time {
	deadline = deadline.Add(period)
	if lag := now.Sub(deadline); lag >= 0 {
		deadline = deadline.Add((lag/period + 1) * period)
	}
	return deadline
}
