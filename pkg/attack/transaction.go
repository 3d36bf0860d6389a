package attack

import (
	"time"

	"github.com/google/uuid"
	"github.com/gregLibert/emv-mutator/pkg/emv"
)

// Transaction is the state carried across the APDUs of one payment. It is
// the only cross-message state the processors see, and it is owned by a
// single relay session: it is not safe for concurrent use.
type Transaction struct {
	ID  uuid.UUID
	PAN string // PAN surrogate, seeds the decoy key

	// Filled from the card's ARQC.
	ATC            uint16
	ARQCObservedAt time.Time

	// DeliveryLatency is the relay's estimate of the time needed to put a
	// frame on the terminal leg.
	DeliveryLatency time.Duration

	// GPORound counts the GPO responses seen by the cross-kernel processor.
	GPORound int
	// Track2 is pinned on the first cross-kernel build.
	Track2 []byte

	// Scheme is the card scheme learned from the SELECT response, if any.
	// CrossKernel serves it before the trigger round.
	Scheme emv.Dialect
}

// NewTransaction starts a transaction for the given PAN surrogate.
func NewTransaction(pan string) *Transaction {
	return &Transaction{ID: uuid.New(), PAN: pan}
}
