package emv

import (
	"fmt"
	"strings"
)

// KERNEL DIALECTS
//
// Mastercard (kernel 2) and Visa (kernel 3) cards answer GET PROCESSING
// OPTIONS with different AIP / AFL conventions. A terminal picks its kernel
// from the selected AID, then trusts the AIP for the authentication method.
// Building the same Track2 payload under both conventions produces two
// responses that disagree on the authentication method while naming the same
// account.

// Dialect names a card scheme's GPO conventions.
type Dialect string

const (
	DialectMastercard Dialect = "mastercard"
	DialectVisa       Dialect = "visa"
)

// ParseDialect accepts "mastercard" or "visa" (case-insensitive).
func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(name))); d {
	case DialectMastercard, DialectVisa:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDialect, name)
	}
}

// Other returns the opposite dialect.
func (d Dialect) Other() Dialect {
	if d == DialectMastercard {
		return DialectVisa
	}
	return DialectMastercard
}

// DialectProfile is the AIP and AFL a dialect puts in its GPO response.
type DialectProfile struct {
	AIP AIP
	AFL AFL
}

// DefaultTrack2 is the Track 2 equivalent payload shared by both dialect
// builds when the intercepted response does not provide one.
var DefaultTrack2 = []byte{0x47, 0x61, 0x73, 0x9F, 0xFF, 0x01, 0x23, 0x12, 0x01, 0x00, 0x0F}

// DefaultProfiles returns the built-in dialect conventions.
//
//	mastercard: AIP 5E00 (SDA + CDA), AFL 08010200
//	visa:       AIP 2000 (DDA),       AFL 08010100
func DefaultProfiles() map[Dialect]DialectProfile {
	return map[Dialect]DialectProfile{
		DialectMastercard: {AIP: AIP{0x5E, 0x00}, AFL: AFL{0x08, 0x01, 0x02, 0x00}},
		DialectVisa:       {AIP: AIP{0x20, 0x00}, AFL: AFL{0x08, 0x01, 0x01, 0x00}},
	}
}

// BuildDialectGPO builds a GPO response carrying track2 under the profile's
// conventions. Template 1 has no Track2 field, so it is built as compact.
func BuildDialectGPO(p DialectProfile, track2 []byte, format GPOFormat) *GPOResponse {
	if format == FormatTemplate1 {
		format = FormatCompact
	}
	return &GPOResponse{
		Format: format,
		AIP:    p.AIP,
		AFL:    AFL(clone(p.AFL)),
		Track2: clone(track2),
	}
}
