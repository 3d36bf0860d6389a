package emv

import "bytes"

// Registered Application Provider Identifiers (first 5 bytes of an AID).
var (
	RIDMastercard = []byte{0xA0, 0x00, 0x00, 0x00, 0x04}
	RIDVisa       = []byte{0xA0, 0x00, 0x00, 0x00, 0x03}
)

// SchemeForAID maps an AID to the dialect of its scheme.
func SchemeForAID(aid []byte) (Dialect, bool) {
	switch {
	case bytes.HasPrefix(aid, RIDMastercard):
		return DialectMastercard, true
	case bytes.HasPrefix(aid, RIDVisa):
		return DialectVisa, true
	default:
		return "", false
	}
}

// Scheme returns the scheme of the selected application (DF Name, tag '84').
func (f *FCI) Scheme() (Dialect, bool) {
	return SchemeForAID(f.DFName)
}
