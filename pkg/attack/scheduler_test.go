package attack

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestScheduler_Plan(t *testing.T) {
	tests := []struct {
		name     string
		age      time.Duration // time since the ARQC was observed
		latency  time.Duration
		wantAt   time.Duration // relative to observation
		wantFail bool
	}{
		{name: "Fresh ARQC", wantAt: 15 * time.Millisecond},
		{name: "Fresh ARQC with latency", latency: 29 * time.Millisecond, wantAt: 15 * time.Millisecond},
		{name: "Latency reaches deadline", latency: 30 * time.Millisecond, wantFail: true},
		{name: "Late observation", age: 40 * time.Millisecond, wantAt: 40 * time.Millisecond},
		{name: "Late observation with latency", age: 40 * time.Millisecond, latency: 5 * time.Millisecond, wantFail: true},
		{name: "Window gone", age: 50 * time.Millisecond, wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := newFakeClock()
			s := &Scheduler{Offset: DefaultInjectionOffset, Window: DefaultInjectionWindow, Clock: clk}

			observed := clk.Now()
			clk.Advance(tt.age)

			tx := NewTransaction("4111")
			tx.ARQCObservedAt = observed
			tx.DeliveryLatency = tt.latency

			slot, err := s.Plan(tx)
			if tt.wantFail {
				if !errors.Is(err, ErrInjectionWindowExpired) {
					t.Fatalf("expected ErrInjectionWindowExpired, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got := slot.At.Sub(observed); got != tt.wantAt {
				t.Errorf("slot at T+%s, want T+%s", got, tt.wantAt)
			}
			if got := slot.Deadline.Sub(observed); got != DefaultInjectionWindow {
				t.Errorf("deadline at T+%s, want T+%s", got, DefaultInjectionWindow)
			}
		})
	}
}

func TestScheduler_PlanWithoutObservation(t *testing.T) {
	clk := newFakeClock()
	s := &Scheduler{Offset: DefaultInjectionOffset, Window: DefaultInjectionWindow, Clock: clk}

	slot, err := s.Plan(NewTransaction("4111"))
	if err != nil {
		t.Fatal(err)
	}
	if !slot.At.Equal(clk.Now().Add(DefaultInjectionOffset)) {
		t.Errorf("slot should be planned from now, got %s", slot.At)
	}
}

func TestScheduler_Wait(t *testing.T) {
	clk := newFakeClock()
	s := &Scheduler{Offset: DefaultInjectionOffset, Window: DefaultInjectionWindow, Clock: clk}

	tx := NewTransaction("4111")
	tx.ARQCObservedAt = clk.Now()

	slot, err := s.Plan(tx)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Wait(context.Background(), slot); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if !clk.Now().Equal(slot.At) {
		t.Errorf("woke at %s, want %s", clk.Now(), slot.At)
	}
}

func TestScheduler_WaitWokeTooLate(t *testing.T) {
	clk := newFakeClock()
	clk.overshoot = 40 * time.Millisecond
	s := &Scheduler{Offset: DefaultInjectionOffset, Window: DefaultInjectionWindow, Clock: clk}

	tx := NewTransaction("4111")
	tx.ARQCObservedAt = clk.Now()

	slot, err := s.Plan(tx)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Wait(context.Background(), slot); !errors.Is(err, ErrInjectionWindowExpired) {
		t.Errorf("expected ErrInjectionWindowExpired, got %v", err)
	}
}

func TestScheduler_WaitCancelled(t *testing.T) {
	clk := &stuckClock{fakeClock: newFakeClock()}
	s := &Scheduler{Offset: DefaultInjectionOffset, Window: DefaultInjectionWindow, Clock: clk}

	tx := NewTransaction("4111")
	tx.ARQCObservedAt = clk.Now()
	slot, err := s.Plan(tx)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Wait(ctx, slot); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestScheduler_SystemClock(t *testing.T) {
	s := NewScheduler()
	s.Offset = time.Millisecond
	s.Window = time.Second

	tx := NewTransaction("4111")
	tx.ARQCObservedAt = time.Now()

	slot, err := s.Plan(tx)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Wait(context.Background(), slot); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
}
