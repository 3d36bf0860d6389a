package attack

import (
	"context"
	"fmt"
	"time"
)

// Injection timing, relative to the moment the card's ARQC is observed:
//
//	T+0    ARQC leaves the card, terminal goes online
//	T+15ms forged TC delivered to the terminal
//	T+45ms legitimate online response expected
//
// A TC that cannot be on the terminal leg before T+45ms is useless.
const (
	DefaultInjectionOffset = 15 * time.Millisecond
	DefaultInjectionWindow = 45 * time.Millisecond
)

// Clock is the time source of the scheduler.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock. time.Now readings carry the monotonic
// component, so deadline comparisons are immune to clock steps.
var SystemClock Clock = systemClock{}

// Slot is an approved injection time.
type Slot struct {
	At       time.Time // earliest delivery
	Deadline time.Time // legitimate response expected
	Latency  time.Duration
}

// Scheduler decides whether and when a forged TC may be delivered.
type Scheduler struct {
	Offset time.Duration
	Window time.Duration
	Clock  Clock
}

// NewScheduler returns a scheduler with the default timing on the system clock.
func NewScheduler() *Scheduler {
	return &Scheduler{
		Offset: DefaultInjectionOffset,
		Window: DefaultInjectionWindow,
		Clock:  SystemClock,
	}
}

func (s *Scheduler) clock() Clock {
	if s.Clock == nil {
		return SystemClock
	}
	return s.Clock
}

// Deadline is the moment the legitimate online response is expected.
func (s *Scheduler) Deadline(observed time.Time) time.Time {
	return observed.Add(s.Window)
}

// Plan computes the injection slot for tx. A transaction with no recorded
// ARQC time is planned from now.
func (s *Scheduler) Plan(tx *Transaction) (Slot, error) {
	now := s.clock().Now()

	observed := tx.ARQCObservedAt
	if observed.IsZero() {
		observed = now
	}

	slot := Slot{
		At:       observed.Add(s.Offset),
		Deadline: s.Deadline(observed),
		Latency:  tx.DeliveryLatency,
	}
	if slot.At.Before(now) {
		slot.At = now
	}

	if !slot.At.Add(slot.Latency).Before(slot.Deadline) {
		return Slot{}, fmt.Errorf("%w: delivery at %s + %s misses deadline by %s",
			ErrInjectionWindowExpired,
			slot.At.Sub(observed), slot.Latency,
			slot.At.Add(slot.Latency).Sub(slot.Deadline))
	}
	return slot, nil
}

// Wait blocks until the slot opens, then checks the deadline again. It
// returns ctx.Err() when the relay gives up first (for example because the
// legitimate response already arrived).
func (s *Scheduler) Wait(ctx context.Context, slot Slot) error {
	clk := s.clock()

	if d := slot.At.Sub(clk.Now()); d > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(d):
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	if !clk.Now().Add(slot.Latency).Before(slot.Deadline) {
		return fmt.Errorf("%w: woke up too late", ErrInjectionWindowExpired)
	}
	return nil
}
