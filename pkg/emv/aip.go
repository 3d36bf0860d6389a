package emv

import (
	"fmt"
	"strings"

	"github.com/gregLibert/emv-mutator/pkg/bits"
)

// APPLICATION INTERCHANGE PROFILE (AIP), tag '82', 2 bytes.
//
// Byte 1 carries the offline data authentication capabilities. In the 7..0
// numbering used by the EMV tables (MSB = bit 7) the relevant bits are:
//
//	bit 6 (0x40)  SDA supported
//	bit 5 (0x20)  DDA supported
//	bit 1 (0x02)  CDA supported
//	bit 0 (0x01)  Issuer Authentication supported
//
// The codec is deliberately permissive: any combination encodes, including
// ones no compliant card would send. Byte 2 and the unnamed bits of byte 1
// are carried through untouched.

// Positions in pkg/bits numbering (1 = LSB).
const (
	aipPosSDA        uint = 7
	aipPosDDA        uint = 6
	aipPosCDA        uint = 2
	aipPosIssuerAuth uint = 1
)

// AIPLen is the fixed size of the AIP.
const AIPLen = 2

// Capability is one authentication capability announced by the AIP.
type Capability int

const (
	CapSDA Capability = iota
	CapDDA
	CapCDA
	CapIssuerAuth
)

func (c Capability) String() string {
	switch c {
	case CapSDA:
		return "SDA"
	case CapDDA:
		return "DDA"
	case CapCDA:
		return "CDA"
	case CapIssuerAuth:
		return "IssuerAuth"
	default:
		return fmt.Sprintf("Capability(%d)", int(c))
	}
}

func (c Capability) position() uint {
	switch c {
	case CapSDA:
		return aipPosSDA
	case CapDDA:
		return aipPosDDA
	case CapCDA:
		return aipPosCDA
	case CapIssuerAuth:
		return aipPosIssuerAuth
	default:
		return 0
	}
}

// AIP is the 2-byte Application Interchange Profile.
type AIP [AIPLen]byte

// ParseAIP reads the AIP from the first two bytes of b.
func ParseAIP(b []byte) (AIP, error) {
	if len(b) < AIPLen {
		return AIP{}, tooShort("AIP", AIPLen, len(b))
	}
	return AIP{b[0], b[1]}, nil
}

// Bytes serializes the AIP. The result is always two bytes.
func (a AIP) Bytes() []byte {
	return []byte{a[0], a[1]}
}

// Has reports whether the capability bit is set.
func (a AIP) Has(c Capability) bool {
	return bits.IsSet(a[0], c.position())
}

// With returns a copy with the capability bit set.
func (a AIP) With(c Capability) AIP {
	a[0] = bits.Set(a[0], c.position())
	return a
}

// Without returns a copy with the capability bit cleared.
func (a AIP) Without(c Capability) AIP {
	a[0] = bits.Clear(a[0], c.position())
	return a
}

// Capabilities lists the announced capabilities, strongest first.
func (a AIP) Capabilities() []Capability {
	var out []Capability
	for _, c := range []Capability{CapCDA, CapDDA, CapSDA, CapIssuerAuth} {
		if a.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// StrongestODA returns the strongest offline data authentication method
// announced (CDA > DDA > SDA). ok is false when none is set.
func (a AIP) StrongestODA() (c Capability, ok bool) {
	for _, c := range []Capability{CapCDA, CapDDA, CapSDA} {
		if a.Has(c) {
			return c, true
		}
	}
	return 0, false
}

func (a AIP) String() string {
	names := make([]string, 0, 4)
	for _, c := range a.Capabilities() {
		names = append(names, c.String())
	}
	return fmt.Sprintf("%02X%02X [%s]", a[0], a[1], strings.Join(names, " "))
}

// DowngradeAIP clears CDA and DDA and sets SDA. Every other bit is kept, so
// the result announces SDA as the strongest method whatever the input was.
// The rule is idempotent.
func DowngradeAIP(a AIP) AIP {
	return a.Without(CapCDA).Without(CapDDA).With(CapSDA)
}
