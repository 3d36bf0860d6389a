package attack

import (
	"errors"

	"github.com/gregLibert/emv-mutator/pkg/emv"
)

var (
	// ErrUnknownAttackType is returned for a type outside the closed set or
	// with no registered processor.
	ErrUnknownAttackType = errors.New("unknown attack type")

	// ErrWrongDirection is returned when a processor is handed a buffer from
	// the leg it does not rewrite. Nothing has been parsed at that point.
	ErrWrongDirection = errors.New("wrong direction")

	// ErrInjectionWindowExpired is returned when a forged TC could no longer
	// reach the terminal before the legitimate online response.
	ErrInjectionWindowExpired = errors.New("injection window expired")

	// ErrNoTransaction is returned by processors that read or update the
	// transaction state when none is given.
	ErrNoTransaction = errors.New("no transaction")

	// ErrAlreadyRegistered is returned by Register for a type that already
	// has a processor.
	ErrAlreadyRegistered = errors.New("processor already registered")

	// ErrUnsupportedDialect is emv.ErrUnsupportedDialect.
	ErrUnsupportedDialect = emv.ErrUnsupportedDialect
)
