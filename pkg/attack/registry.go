package attack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Processor rewrites one intercepted buffer. On error it returns nil bytes;
// processors never retry.
type Processor interface {
	Process(ctx context.Context, tx *Transaction, apdu []byte, dir Direction) ([]byte, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, tx *Transaction, apdu []byte, dir Direction) ([]byte, error)

func (f ProcessorFunc) Process(ctx context.Context, tx *Transaction, apdu []byte, dir Direction) ([]byte, error) {
	return f(ctx, tx, apdu, dir)
}

// Registry maps attack types to processors. Register takes the write lock,
// Dispatch only reads, so sessions may dispatch concurrently.
type Registry struct {
	mu         sync.RWMutex
	processors map[Type]Processor

	logger  *slog.Logger
	metrics *Metrics
}

// NewRegistry creates an empty registry. logger and metrics may be nil.
func NewRegistry(logger *slog.Logger, metrics *Metrics) *Registry {
	return &Registry{
		processors: make(map[Type]Processor),
		logger:     orDefault(logger),
		metrics:    metrics,
	}
}

// Register binds p to t.
func (r *Registry) Register(t Type, p Processor) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownAttackType, t)
	}
	if p == nil {
		return fmt.Errorf("nil processor for %s", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.processors[t]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, t)
	}
	r.processors[t] = p
	return nil
}

// Lookup returns the processor bound to t.
func (r *Registry) Lookup(t Type) (Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[t]
	return p, ok
}

// Registered lists the bound types in Types() order.
func (r *Registry) Registered() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Type, 0, len(r.processors))
	for _, t := range Types() {
		if _, ok := r.processors[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Dispatch routes apdu to the processor registered for t and returns its
// output unchanged. An unknown type fails before any processor runs.
func (r *Registry) Dispatch(ctx context.Context, t Type, tx *Transaction, apdu []byte, dir Direction) ([]byte, error) {
	p, ok := r.Lookup(t)
	if !ok {
		r.metrics.observeDispatch(t, outcomeUnknownType)
		return nil, fmt.Errorf("%w: %q", ErrUnknownAttackType, t)
	}

	out, err := p.Process(ctx, tx, apdu, dir)
	outcome := classify(err)
	r.metrics.observeDispatch(t, outcome)

	r.logger.Debug("attack dispatched",
		slog.String("attack_type", string(t)),
		slog.String("direction", dir.String()),
		slog.String("tx_id", txID(tx)),
		slog.Int("in_len", len(apdu)),
		slog.Int("out_len", len(out)),
		slog.String("outcome", outcome),
	)

	if err != nil {
		return nil, err
	}
	return out, nil
}

func classify(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrWrongDirection):
		return outcomeWrongDirection
	case errors.Is(err, ErrInjectionWindowExpired):
		return outcomeWindowExpired
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return outcomeCancelled
	default:
		return outcomeError
	}
}

func txID(tx *Transaction) string {
	if tx == nil {
		return ""
	}
	return tx.ID.String()
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
