// Package attack holds the processors that rewrite intercepted EMV APDUs and
// the registry that dispatches them.
//
// The set of attacks is closed: auth_downgrade, state_confusion and
// cross_kernel. A relay picks one per session, builds a Transaction per
// payment, and hands every intercepted buffer to Registry.Dispatch together
// with its direction.
package attack

import (
	"fmt"
	"strings"
)

// Type selects an attack processor.
type Type string

const (
	TypeAuthDowngrade  Type = "auth_downgrade"
	TypeStateConfusion Type = "state_confusion"
	TypeCrossKernel    Type = "cross_kernel"
)

// Types lists every attack type, in registration order.
func Types() []Type {
	return []Type{TypeAuthDowngrade, TypeStateConfusion, TypeCrossKernel}
}

// Valid reports whether t belongs to the closed set.
func (t Type) Valid() bool {
	switch t {
	case TypeAuthDowngrade, TypeStateConfusion, TypeCrossKernel:
		return true
	default:
		return false
	}
}

// ParseType accepts an attack name (case-insensitive).
func ParseType(name string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(name)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAttackType, name)
	}
	return t, nil
}

// Direction is the leg of the relay a buffer was captured on.
type Direction int

const (
	CardToTerminal Direction = iota
	TerminalToCard
)

func (d Direction) String() string {
	switch d {
	case CardToTerminal:
		return "card_to_terminal"
	case TerminalToCard:
		return "terminal_to_card"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection accepts "card_to_terminal" or "terminal_to_card".
func ParseDirection(name string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "card_to_terminal":
		return CardToTerminal, nil
	case "terminal_to_card":
		return TerminalToCard, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", name)
	}
}

func requireDirection(t Type, got, want Direction) error {
	if got != want {
		return fmt.Errorf("%w: %s expects %s, got %s", ErrWrongDirection, t, want, got)
	}
	return nil
}
