package iso7816

import (
	"fmt"

	"github.com/gregLibert/emv-mutator/pkg/bits"
)

// CLASS BYTE (CLA), ISO/IEC 7816-4 section 5.4.1.
//
// On a payment relay two families show up: the interindustry class '00'
// (SELECT, READ RECORD) and the EMV proprietary class '80' (GET PROCESSING
// OPTIONS, GENERATE AC). Interindustry classes also encode chaining, secure
// messaging and the logical channel:
//
//	00xx xxxx  first interindustry:   SM on bits 4-3, channel 0-3 on bits 2-1
//	01xx xxxx  further interindustry: SM on bit 6, channel 4-19 on bits 4-1 (+4)
//	1xxx xxxx  proprietary, opaque
//
// Bit 5 flags command chaining in both interindustry forms.

// SecureMessaging defines the security level applied to the APDU.
type SecureMessaging int

const (
	// SMNone indicates no secure messaging or no indication given.
	SMNone SecureMessaging = 0
	// SMProprietary indicates a proprietary secure messaging format (First Interindustry only).
	SMProprietary SecureMessaging = 1
	// SMHeaderNoProc indicates SM according to ISO, where the header is not processed.
	SMHeaderNoProc SecureMessaging = 2
	// SMHeaderAuth indicates SM according to ISO, where the header is authenticated (First Interindustry only).
	SMHeaderAuth SecureMessaging = 3
)

// Class represents the parsed ISO 7816-4 Class byte (CLA).
type Class struct {
	Raw             byte
	IsProprietary   bool
	IsChained       bool
	SecureMessaging SecureMessaging
	Channel         uint8 // Logical channel number (0-19)
}

// NewClass creates a Class object by decoding a raw CLA byte.
func NewClass(cla byte) (Class, error) {
	if cla == 0xFF {
		return Class{}, fmt.Errorf("invalid CLA value: 0xFF is reserved")
	}

	c := Class{Raw: cla}

	// Bit 8 indicates proprietary class
	if bits.IsSet(cla, 8) {
		c.IsProprietary = true
		return c, nil
	}

	// Bit 5 is always Command Chaining
	c.IsChained = bits.IsSet(cla, 5)

	// Bit 7 determines the encoding structure
	if !bits.IsSet(cla, 7) {
		// First Interindustry Structure (00xx xxxx)
		// SM is on bits 4-3
		c.SecureMessaging = SecureMessaging(bits.GetRange(cla, 4, 3))
		// Channel is on bits 2-1
		c.Channel = bits.GetRange(cla, 2, 1)
	} else {
		// Further Interindustry Structure (01xx xxxx)
		// SM is on bit 6
		if bits.IsSet(cla, 6) {
			c.SecureMessaging = SMHeaderNoProc
		} else {
			c.SecureMessaging = SMNone
		}
		// Channel offset is on bits 4-1 (Value + 4)
		c.Channel = bits.GetRange(cla, 4, 1) + 4
	}

	return c, nil
}

// Encode converts the Class object back to its byte representation.
func (c *Class) Encode() (byte, error) {
	if c.IsProprietary {
		return c.Raw, nil
	}

	var res byte

	if c.Channel <= 3 {
		// First Interindustry Encoding
		if c.IsChained {
			res = bits.Set(res, 5)
		}
		// Set SM (Bits 4-3)
		res |= byte(c.SecureMessaging) << 2
		// Set Channel (Bits 2-1)
		res |= c.Channel
	} else {
		// Further Interindustry Encoding
		res = bits.Set(res, 7) // Indicator for Further Interindustry

		if c.IsChained {
			res = bits.Set(res, 5)
		}
		// SM (Bit 6)
		if c.SecureMessaging != SMNone {
			res = bits.Set(res, 6)
		}
		// Set Channel (Bits 4-1, Offset 4)
		res |= (c.Channel - 4)
	}

	return res, nil
}

// Verbose returns a human-readable description of the CLA byte configuration.
func (c Class) Verbose() string {
	if c.IsEMVProprietary() {
		return fmt.Sprintf("Class: EMV payment (0x%02X)", c.Raw)
	}
	if c.IsProprietary {
		return fmt.Sprintf("Class: Proprietary (0x%02X)", c.Raw)
	}

	rangeName := "First Interindustry (Ch 0-3)"
	if c.Channel >= 4 {
		rangeName = "Further Interindustry (Ch 4-19)"
	}

	smDesc := "Unknown"
	switch c.SecureMessaging {
	case SMNone:
		smDesc = "None"
	case SMProprietary:
		smDesc = "Proprietary"
	case SMHeaderNoProc:
		smDesc = "ISO (Header not processed)"
	case SMHeaderAuth:
		smDesc = "ISO (Header authenticated)"
	}

	chaining := "Last or only command"
	if c.IsChained {
		chaining = "More commands follow (Chaining)"
	}

	return fmt.Sprintf(
		"Range: %s\nChaining: %s\nSecure Messaging: %s\nLogical Channel: %d",
		rangeName, chaining, smDesc, c.Channel,
	)
}

// IsEMVProprietary reports whether the class is the EMV payment class '8X'
// used by GET PROCESSING OPTIONS and GENERATE AC.
func (c Class) IsEMVProprietary() bool {
	return c.IsProprietary && c.Raw&0xF0 == 0x80
}
