package iso7816

// TRANSACTION:
// One Command APDU sent by the terminal followed by the Response APDU the
// terminal eventually received. On a relay the response may differ from what
// the card produced, so the trace records what was forwarded.
//
// TRACE:
// A chronological sequence of Transactions for one relayed payment
// transaction (SELECT, GET PROCESSING OPTIONS, READ RECORD..., GENERATE AC).
// It lives in memory for the duration of a relay session only.

// Transaction represents a completed Command-Response pair.
type Transaction struct {
	Command  *CommandAPDU
	Response *ResponseAPDU
}

// IsSuccess checks if the transaction ended with a successful status.
// It returns false if the response is missing.
func (t *Transaction) IsSuccess() bool {
	if t.Response == nil {
		return false
	}
	return t.Response.Status.IsSuccess()
}

// Trace is a sequence of transactions (Command-Response pairs).
type Trace []Transaction

// Last returns the final transaction of the trace.
// Returns nil if the trace is empty.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// IsSuccess checks if the FINAL transaction in the trace was successful.
func (t Trace) IsSuccess() bool {
	last := t.Last()
	if last == nil {
		return false
	}
	return last.IsSuccess()
}

// Count returns how many transactions carried the given instruction.
// A relay uses it to number GET PROCESSING OPTIONS rounds.
func (t Trace) Count(ins InsCode) int {
	n := 0
	for i := range t {
		if t[i].Command != nil && t[i].Command.Instruction.Raw == ins {
			n++
		}
	}
	return n
}
