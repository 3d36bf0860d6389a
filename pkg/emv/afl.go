package emv

import (
	"fmt"

	"github.com/gregLibert/emv-mutator/pkg/bits"
)

// APPLICATION FILE LOCATOR (AFL), tag '94'.
//
// A list of 4-byte entries: SFI (bits 8-4 of byte 1), first record, last
// record, number of records taking part in offline data authentication.
// Mutation treats the AFL as an opaque blob: it is copied or substituted
// whole, never rewritten entry by entry.

// AFLEntryLen is the size of one AFL entry.
const AFLEntryLen = 4

// AFL is the raw Application File Locator.
type AFL []byte

// AFLEntry is a decoded view of one AFL entry.
type AFLEntry struct {
	SFI         byte
	FirstRecord byte
	LastRecord  byte
	ODARecords  byte
}

func (e AFLEntry) String() string {
	return fmt.Sprintf("SFI %d records %d-%d (ODA %d)", e.SFI, e.FirstRecord, e.LastRecord, e.ODARecords)
}

// ParseAFL validates that b is a non-empty sequence of 4-byte entries and
// returns a private copy.
func ParseAFL(b []byte) (AFL, error) {
	if len(b) < AFLEntryLen {
		return nil, tooShort("AFL", AFLEntryLen, len(b))
	}
	if len(b)%AFLEntryLen != 0 {
		return nil, &FieldError{Field: "AFL", Err: fmt.Errorf("length %d is not a multiple of %d", len(b), AFLEntryLen)}
	}
	return AFL(clone(b)), nil
}

// Entries decodes the AFL. A trailing partial entry is ignored.
func (a AFL) Entries() []AFLEntry {
	out := make([]AFLEntry, 0, len(a)/AFLEntryLen)
	for i := 0; i+AFLEntryLen <= len(a); i += AFLEntryLen {
		out = append(out, AFLEntry{
			SFI:         bits.GetRange(a[i], 8, 4),
			FirstRecord: a[i+1],
			LastRecord:  a[i+2],
			ODARecords:  a[i+3],
		})
	}
	return out
}

// Bytes returns a copy of the AFL.
func (a AFL) Bytes() []byte {
	return clone(a)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
