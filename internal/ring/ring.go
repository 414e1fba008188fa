// Package ring provides the delay-slot ring buffers nodes read their
// input through. A buffer has one slot per possible arrival step within
// the maximum network delay; deposits made while step t is being
// processed always land in slots t+1 .. t+maxDelay, and the slot for
// the current step is drained exactly once before it is reused.
//
// The buffers carry no locks. Correctness relies on the kernel's phase
// ordering: all deposits for a slot happen in delivery phases of earlier
// steps, all on the goroutine that owns the target node, and the owner
// drains the slot during its update phase.
package ring

import (
	"fmt"

	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/simtime"
)

// Accumulator is a ring buffer for continuous input channels. Deposits
// into the same slot combine additively.
type Accumulator struct {
	slots []float64
}

// NewAccumulator creates an accumulator covering delays up to maxDelay
// steps, so capacity is maxDelay+1 slots.
func NewAccumulator(maxDelay simtime.Step) (*Accumulator, error) {
	if maxDelay < 1 {
		return nil, fmt.Errorf("ring capacity needs maxDelay >= 1, got %d", maxDelay)
	}
	return &Accumulator{slots: make([]float64, maxDelay+1)}, nil
}

// Capacity returns the number of slots.
func (a *Accumulator) Capacity() int { return len(a.slots) }

// Deposit adds v into the slot for step at.
func (a *Accumulator) Deposit(at simtime.Step, v float64) {
	a.slots[int(at)%len(a.slots)] += v
}

// ReadAndClear returns the accumulated value for step at and resets the
// slot to zero so it can serve step at+capacity.
func (a *Accumulator) ReadAndClear(at simtime.Step) float64 {
	i := int(at) % len(a.slots)
	v := a.slots[i]
	a.slots[i] = 0
	return v
}

// Queue is a ring buffer for discrete event channels. Deposits into the
// same slot are kept as an ordered list in deposit order.
type Queue struct {
	slots [][]event.Delivery
}

// NewQueue creates a queue ring covering delays up to maxDelay steps.
func NewQueue(maxDelay simtime.Step) (*Queue, error) {
	if maxDelay < 1 {
		return nil, fmt.Errorf("ring capacity needs maxDelay >= 1, got %d", maxDelay)
	}
	return &Queue{slots: make([][]event.Delivery, maxDelay+1)}, nil
}

// Capacity returns the number of slots.
func (q *Queue) Capacity() int { return len(q.slots) }

// Deposit appends d to the slot for its scheduled step.
func (q *Queue) Deposit(d event.Delivery) {
	i := int(d.Step) % len(q.slots)
	q.slots[i] = append(q.slots[i], d)
}

// ReadAndClear returns the deliveries scheduled for step at, in deposit
// order, and resets the slot. The caller owns the returned slice.
func (q *Queue) ReadAndClear(at simtime.Step) []event.Delivery {
	i := int(at) % len(q.slots)
	ds := q.slots[i]
	q.slots[i] = nil
	return ds
}
