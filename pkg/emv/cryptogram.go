package emv

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/gregLibert/emv-mutator/pkg/bits"
	"github.com/gregLibert/emv-mutator/pkg/tlv"
	"github.com/moov-io/bertlv"
)

// GENERATE APPLICATION CRYPTOGRAM response data.
//
//	CID (1) || ATC (2, big-endian) || Application Cryptogram (8) || IAD (var)
//
// Bits 8-7 of the Cryptogram Information Data give the cryptogram type:
// 00 = AAC (decline), 01 = TC (offline approval), 10 = ARQC (go online).
// Format 1 wraps the concatenation in tag '80'; format 2 carries each element
// in its own tag inside template '77'.

// Cryptogram Information Data values.
const (
	CIDAAC  byte = 0x00
	CIDTC   byte = 0x40
	CIDARQC byte = 0x80
)

// CryptogramLen is the length of an Application Cryptogram.
const CryptogramLen = 8

// TCRecordMinLen is CID + ATC + AC.
const TCRecordMinLen = 1 + 2 + CryptogramLen

// CryptogramType is the decoded type bits of the CID.
type CryptogramType int

const (
	CryptogramAAC CryptogramType = iota
	CryptogramTC
	CryptogramARQC
	CryptogramRFU
)

func (c CryptogramType) String() string {
	switch c {
	case CryptogramAAC:
		return "AAC"
	case CryptogramTC:
		return "TC"
	case CryptogramARQC:
		return "ARQC"
	default:
		return "RFU"
	}
}

// TCRecord is the cryptogram response body. The layout is shared by TC, ARQC
// and AAC; CID tells them apart.
type TCRecord struct {
	CID        byte
	ATC        uint16
	Cryptogram [CryptogramLen]byte
	IAD        []byte
}

// Type decodes the cryptogram type from the CID.
func (r *TCRecord) Type() CryptogramType {
	return CryptogramType(bits.GetRange(r.CID, 8, 7))
}

// Len is 1 + 2 + 8 + len(IAD).
func (r *TCRecord) Len() int {
	return TCRecordMinLen + len(r.IAD)
}

// Bytes serializes CID || ATC || AC || IAD.
func (r *TCRecord) Bytes() []byte {
	out := make([]byte, 0, r.Len())
	out = append(out, r.CID)
	out = binary.BigEndian.AppendUint16(out, r.ATC)
	out = append(out, r.Cryptogram[:]...)
	return append(out, r.IAD...)
}

// ParseTCRecord decodes the raw concatenated form.
func ParseTCRecord(b []byte) (*TCRecord, error) {
	if len(b) < TCRecordMinLen {
		return nil, tooShort("TC", TCRecordMinLen, len(b))
	}
	r := &TCRecord{
		CID: b[0],
		ATC: binary.BigEndian.Uint16(b[1:3]),
		IAD: clone(b[TCRecordMinLen:]),
	}
	copy(r.Cryptogram[:], b[3:TCRecordMinLen])
	return r, nil
}

// generateACTemplate2 maps the format 2 response.
type generateACTemplate2 struct {
	CID        []byte `tlv:"9F27"`
	ATC        []byte `tlv:"9F36" fmt:"int"`
	Cryptogram []byte `tlv:"9F26"`
	IAD        []byte `tlv:"9F10"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// ParseGenerateACResponse decodes a GENERATE AC response data field in
// format 1 ('80') or format 2 ('77').
func ParseGenerateACResponse(data []byte) (*TCRecord, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, &FieldError{Field: "GENERATE AC response", Err: err}
	}
	if len(packets) == 0 {
		return nil, tooShort("GENERATE AC response", TCRecordMinLen, 0)
	}

	switch tag := strings.ToUpper(packets[0].Tag); tag {
	case "80":
		return ParseTCRecord(packets[0].Value)
	case "77":
		var body generateACTemplate2
		if err := tlv.UnmarshalFromPackets(packets[0].TLVs, &body); err != nil {
			return nil, &FieldError{Field: "GENERATE AC template 77", Err: err}
		}
		if len(body.CID) != 1 {
			return nil, tooShort("CID", 1, len(body.CID))
		}
		if len(body.ATC) != 2 {
			return nil, tooShort("ATC", 2, len(body.ATC))
		}
		if len(body.Cryptogram) != CryptogramLen {
			return nil, tooShort("AC", CryptogramLen, len(body.Cryptogram))
		}
		r := &TCRecord{
			CID: body.CID[0],
			ATC: binary.BigEndian.Uint16(body.ATC),
			IAD: clone(body.IAD),
		}
		copy(r.Cryptogram[:], body.Cryptogram)
		return r, nil
	default:
		return nil, &FieldError{Field: "GENERATE AC response", Err: fmt.Errorf("unexpected template %s", tag)}
	}
}

// EncodeGenerateACResponse wraps the record in a format 1 ('80') template.
func EncodeGenerateACResponse(r *TCRecord) ([]byte, error) {
	out, err := bertlv.Encode([]bertlv.TLV{{Tag: "80", Value: r.Bytes()}})
	if err != nil {
		return nil, fmt.Errorf("encode GENERATE AC response: %w", err)
	}
	return out, nil
}
